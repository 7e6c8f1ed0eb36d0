package rateLimit

import (
	"context"
	"testing"
	"time"

	"github.com/robertarktes/cinema-seat-booking/internal/observability"
	"github.com/stretchr/testify/assert"
)

func TestAllowFixedWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := &RateLimiter{counter: newWindowCounter(func() time.Time { return now }), logger: observability.NopLogger()}

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow(ctx, "user:alice", 3, time.Minute))
	}
	assert.False(t, rl.Allow(ctx, "user:alice", 3, time.Minute))
	assert.True(t, rl.Allow(ctx, "user:bob", 3, time.Minute))

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow(ctx, "user:alice", 3, time.Minute))
}
