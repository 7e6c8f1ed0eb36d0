package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/riandyrn/otelchi"
	"github.com/robertarktes/cinema-seat-booking/internal/account"
	"github.com/robertarktes/cinema-seat-booking/internal/idempotency"
	"github.com/robertarktes/cinema-seat-booking/internal/observability"
	"github.com/robertarktes/cinema-seat-booking/internal/rateLimit"
)

type RouterConfig struct {
	ServiceName   string
	IPRateLimit   int
	UserRateLimit int
}

func SetupRouter(h *Handlers, cfg RouterConfig, accounts *account.Service, logger observability.Logger, rl *rateLimit.RateLimiter, idemp *idempotency.Idempotency) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(otelchi.Middleware(cfg.ServiceName, otelchi.WithChiRoutes(r)))

	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(rl, cfg.IPRateLimit, cfg.UserRateLimit))

		r.Get("/v1/films", h.ListFilms)
		r.Get("/v1/films/{filmID}/showings", h.ListShowings)
		r.Get("/v1/showings/{filmID}/{date}/{time}/seats", h.GetSeats)
		r.Post("/v1/customers", h.Register)
	})

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(accounts))
		r.Use(RateLimitMiddleware(rl, cfg.IPRateLimit, cfg.UserRateLimit))

		r.Post("/v1/films", h.CreateFilm)
		r.Post("/v1/films/{filmID}/showings", h.CreateShowing)

		r.With(IdempotencyMiddleware(idemp)).Post("/v1/bookings", h.CreateBooking)
		r.Get("/v1/bookings", h.ListBookings)
		r.Delete("/v1/bookings/{id}", h.CancelBooking)

		r.Get("/v1/customers/me", h.GetProfile)
		r.Patch("/v1/customers/me", h.UpdateProfile)

		r.Get("/v1/reports/showings.csv", h.ExportReport)
	})

	return r
}
