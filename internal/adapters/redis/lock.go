package redis

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robertarktes/cinema-seat-booking/internal/domain"
)

// releaseScript deletes the lock only while it still holds our token, so a
// lock that expired and was taken by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ShowingLock is a booking.Locker shared by every process talking to the
// same redis. The TTL caps how long a crashed holder can block a showing.
type ShowingLock struct {
	client *redis.Client
	ttl    time.Duration
	poll   time.Duration
}

func NewShowingLock(client *redis.Client, ttl time.Duration) *ShowingLock {
	return &ShowingLock{client: client, ttl: ttl, poll: 25 * time.Millisecond}
}

func (l *ShowingLock) Acquire(ctx context.Context, key string, wait time.Duration) (func(), error) {
	fullKey := "lock:" + key
	token := uuid.NewString()
	deadline := time.Now().Add(wait)

	for {
		ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil {
			return nil, errors.Wrapf(err, "lock %s", key)
		}
		if ok {
			return func() {
				// the caller's ctx may already be done
				releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = releaseScript.Run(releaseCtx, l.client, []string{fullKey}, token).Err()
			}, nil
		}
		if !time.Now().Before(deadline) {
			return nil, errors.Wrapf(domain.ErrShowingBusy, "lock %s", key)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.poll):
		}
	}
}
