package http

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/robertarktes/cinema-seat-booking/internal/account"
	"github.com/robertarktes/cinema-seat-booking/internal/domain"
	"github.com/robertarktes/cinema-seat-booking/internal/idempotency"
	"github.com/robertarktes/cinema-seat-booking/internal/observability"
	"github.com/robertarktes/cinema-seat-booking/internal/rateLimit"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	userKey
)

// RoleHeader selects which account table basic auth credentials are checked against.
const RoleHeader = "X-Role"

func loggerFrom(ctx context.Context) observability.Logger {
	if l, ok := ctx.Value(loggerKey).(observability.Logger); ok {
		return l
	}
	return observability.NopLogger()
}

func userFrom(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(userKey).(domain.User)
	return u, ok
}

func RequestIDMiddleware(next http.Handler) http.Handler {
	return middleware.RequestID(next)
}

// LoggerMiddleware puts a request scoped logger into the context and logs
// every finished request.
func LoggerMiddleware(logger observability.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			entry := logger.WithFields(map[string]interface{}{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
			})
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), loggerKey, entry)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			observability.RequestsTotal.WithLabelValues(route, strconv.Itoa(status), r.Method).Inc()
			entry.WithFields(map[string]interface{}{
				"status":      status,
				"duration_ms": time.Since(start).Milliseconds(),
			}).Debug("request served")
		})
	}
}

// AuthMiddleware checks HTTP basic credentials against the account table
// named by the X-Role header (customer when absent).
func AuthMiddleware(accounts *account.Service) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok {
				unauthorized(w, "missing credentials")
				return
			}
			role, err := domain.ParseRole(r.Header.Get(RoleHeader))
			if err != nil {
				writeError(w, r, err)
				return
			}
			u, err := accounts.Login(r.Context(), role, username, password)
			if errors.IsAny(err, domain.ErrNotFound, domain.ErrForbidden) {
				unauthorized(w, "invalid credentials")
				return
			}
			if err != nil {
				writeError(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), userKey, u)
			ctx = context.WithValue(ctx, loggerKey, loggerFrom(ctx).WithField("username", u.Username))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Basic realm="cinema"`)
	writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized", Message: msg})
}

// IdempotencyMiddleware replays the stored response of a POST whose
// Idempotency-Key was seen before. Keys are scoped to the authenticated user.
func IdempotencyMiddleware(idemp *idempotency.Idempotency) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_input", Message: "missing Idempotency-Key"})
				return
			}
			if len(key) < 16 {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_input", Message: "invalid Idempotency-Key"})
				return
			}
			if u, ok := userFrom(r.Context()); ok {
				key = u.Username + ":" + key
			}

			stored, err := idemp.Begin(r.Context(), key)
			if errors.Is(err, idempotency.ErrInProgress) {
				writeJSON(w, http.StatusConflict, errorResponse{Error: "in_progress", Message: err.Error()})
				return
			}
			if err != nil {
				writeError(w, r, errors.Wrap(err, "idempotency lookup"))
				return
			}
			if stored != nil {
				w.Header().Set("Content-Type", stored.ContentType)
				w.Header().Set("Idempotent-Replayed", "true")
				w.WriteHeader(stored.Status)
				_, _ = w.Write(stored.Result)
				return
			}

			var body bytes.Buffer
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&body)
			next.ServeHTTP(ww, r)

			// server errors are not remembered so the client may retry
			var resp *idempotency.Response
			if status := ww.Status(); status != 0 && status < http.StatusInternalServerError {
				resp = &idempotency.Response{
					Status:      status,
					ContentType: ww.Header().Get("Content-Type"),
					Result:      body.Bytes(),
				}
			}
			if err := idemp.Finish(context.WithoutCancel(r.Context()), key, resp); err != nil {
				loggerFrom(r.Context()).WithError(err).Warn("failed to store idempotent response")
			}
		})
	}
}

// RateLimitMiddleware limits requests per client address and, once
// authenticated, per user.
func RateLimitMiddleware(rl *rateLimit.RateLimiter, perIP, perUser int) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + clientIP(r)
			rate := perIP
			if u, ok := userFrom(r.Context()); ok {
				key = "user:" + string(u.Role) + ":" + u.Username
				rate = perUser
			}
			if !rl.Allow(r.Context(), key, rate, time.Minute) {
				w.Header().Set("Retry-After", "60")
				writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate_limited", Message: "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
