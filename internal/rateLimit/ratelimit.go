package rateLimit

import (
	"context"
	"sync"
	"time"

	redisadapter "github.com/robertarktes/cinema-seat-booking/internal/adapters/redis"
	"github.com/robertarktes/cinema-seat-booking/internal/observability"
)

type counter interface {
	Incr(ctx context.Context, key string, period time.Duration) (int64, error)
}

type RateLimiter struct {
	counter counter
	logger  observability.Logger
}

func NewRateLimiter(redis *redisadapter.Counter, logger observability.Logger) *RateLimiter {
	return &RateLimiter{counter: redis, logger: logger}
}

// NewLocal counts in process memory, for single-instance runs.
func NewLocal(logger observability.Logger) *RateLimiter {
	return &RateLimiter{counter: newWindowCounter(time.Now), logger: logger}
}

// Allow reports whether key is still within rate requests for the current
// period. Counter failures let the request through.
func (rl *RateLimiter) Allow(ctx context.Context, key string, rate int, period time.Duration) bool {
	n, err := rl.counter.Incr(ctx, key, period)
	if err != nil {
		rl.logger.WithError(err).WithField("key", key).Warn("rate limit counter unavailable")
		return true
	}
	if n > int64(rate) {
		observability.RateLimitExceeded.Inc()
		return false
	}
	return true
}

type window struct {
	count int64
	ends  time.Time
}

type windowCounter struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]*window
}

func newWindowCounter(now func() time.Time) *windowCounter {
	return &windowCounter{now: now, windows: make(map[string]*window)}
}

func (c *windowCounter) Incr(ctx context.Context, key string, period time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	w, ok := c.windows[key]
	if !ok || !now.Before(w.ends) {
		w = &window{ends: now.Add(period)}
		c.windows[key] = w
	}
	w.count++
	return w.count, nil
}
