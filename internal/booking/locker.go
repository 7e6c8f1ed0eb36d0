package booking

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/cinema-seat-booking/internal/domain"
)

// LocalLocker is an in-process Locker with one slot per key.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{})}
}

func (l *LocalLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

func (l *LocalLocker) Acquire(ctx context.Context, key string, wait time.Duration) (func(), error) {
	ch := l.slot(key)
	var once sync.Once
	release := func() { once.Do(func() { <-ch }) }

	select {
	case ch <- struct{}{}:
		return release, nil
	default:
	}
	if wait <= 0 {
		return nil, errors.Wrapf(domain.ErrShowingBusy, "lock %s", key)
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case ch <- struct{}{}:
		return release, nil
	case <-timer.C:
		return nil, errors.Wrapf(domain.ErrShowingBusy, "lock %s", key)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
