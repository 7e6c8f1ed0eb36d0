package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	redisadapter "github.com/robertarktes/cinema-seat-booking/internal/adapters/redis"
)

// ErrInProgress is returned by Begin while another request with the same key runs.
var ErrInProgress = errors.New("request with this idempotency key is in progress")

type backend interface {
	Get(ctx context.Context, key string) (*redisadapter.IdempResponse, error)
	Set(ctx context.Context, key string, resp redisadapter.IdempResponse, ttl time.Duration) error
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type Idempotency struct {
	store backend
	ttl   time.Duration
}

func NewIdempotency(redis *redisadapter.Idempotency, ttl time.Duration) *Idempotency {
	return &Idempotency{store: redis, ttl: ttl}
}

// NewInMemory keeps responses in process memory, for single-instance runs.
func NewInMemory(ttl time.Duration) *Idempotency {
	return &Idempotency{store: newMemoryBackend(time.Now), ttl: ttl}
}

type Response struct {
	Status      int
	ContentType string
	Result      []byte
}

func (i *Idempotency) Get(ctx context.Context, key string) (*Response, error) {
	stored, err := i.store.Get(ctx, key)
	if err != nil || stored == nil {
		return nil, err
	}
	return &Response{Status: stored.Status, ContentType: stored.ContentType, Result: stored.Result}, nil
}

func (i *Idempotency) Set(ctx context.Context, key string, resp Response) error {
	return i.store.Set(ctx, key, redisadapter.IdempResponse{
		Status:      resp.Status,
		ContentType: resp.ContentType,
		Result:      resp.Result,
	}, i.ttl)
}

// Begin returns the stored response for key if there is one. Otherwise it
// claims the key and the caller must call Finish once it has a response.
func (i *Idempotency) Begin(ctx context.Context, key string) (*Response, error) {
	if resp, err := i.Get(ctx, key); err != nil || resp != nil {
		return resp, err
	}
	ok, err := i.store.Claim(ctx, key, i.ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		// the other request may have finished in between
		if resp, err := i.Get(ctx, key); err != nil || resp != nil {
			return resp, err
		}
		return nil, ErrInProgress
	}
	return nil, nil
}

// Finish stores resp when it is non-nil and drops the claim taken by Begin.
func (i *Idempotency) Finish(ctx context.Context, key string, resp *Response) error {
	var err error
	if resp != nil {
		err = i.Set(ctx, key, *resp)
	}
	return errors.CombineErrors(err, i.store.Release(ctx, key))
}

type memoryEntry struct {
	resp    redisadapter.IdempResponse
	expires time.Time
}

type memoryBackend struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
	claims  map[string]time.Time
}

func newMemoryBackend(now func() time.Time) *memoryBackend {
	return &memoryBackend{
		now:     now,
		entries: make(map[string]memoryEntry),
		claims:  make(map[string]time.Time),
	}
}

func (m *memoryBackend) Get(ctx context.Context, key string) (*redisadapter.IdempResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || !m.now().Before(e.expires) {
		delete(m.entries, key)
		return nil, nil
	}
	resp := e.resp
	return &resp, nil
}

func (m *memoryBackend) Set(ctx context.Context, key string, resp redisadapter.IdempResponse, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{resp: resp, expires: m.now().Add(ttl)}
	return nil
}

func (m *memoryBackend) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if until, ok := m.claims[key]; ok && m.now().Before(until) {
		return false, nil
	}
	m.claims[key] = m.now().Add(ttl)
	return true, nil
}

func (m *memoryBackend) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claims, key)
	return nil
}
