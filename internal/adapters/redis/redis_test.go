package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	goredis "github.com/redis/go-redis/v9"
	redisadapter "github.com/robertarktes/cinema-seat-booking/internal/adapters/redis"
	"github.com/robertarktes/cinema-seat-booking/internal/domain"
	"github.com/stretchr/testify/suite"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

type RedisSuite struct {
	suite.Suite
	ctx       context.Context
	container *tcredis.RedisContainer
	client    *goredis.Client
}

func TestRedisSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	suite.Run(t, new(RedisSuite))
}

func (s *RedisSuite) SetupSuite() {
	s.ctx = context.Background()
	container, err := tcredis.Run(s.ctx, "redis:7-alpine")
	s.Require().NoError(err)
	s.container = container

	uri, err := container.ConnectionString(s.ctx)
	s.Require().NoError(err)
	opts, err := goredis.ParseURL(uri)
	s.Require().NoError(err)
	s.client, err = redisadapter.NewClient(s.ctx, opts)
	s.Require().NoError(err)
}

func (s *RedisSuite) TearDownSuite() {
	if s.client != nil {
		_ = s.client.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *RedisSuite) SetupTest() {
	s.Require().NoError(s.client.FlushAll(s.ctx).Err())
}

func (s *RedisSuite) TestShowingLockIsExclusive() {
	lock := redisadapter.NewShowingLock(s.client, 10*time.Second)

	release, err := lock.Acquire(s.ctx, "showing:1", 0)
	s.Require().NoError(err)

	_, err = lock.Acquire(s.ctx, "showing:1", 100*time.Millisecond)
	s.True(errors.Is(err, domain.ErrShowingBusy))

	other, err := lock.Acquire(s.ctx, "showing:2", 0)
	s.Require().NoError(err)
	other()

	release()
	again, err := lock.Acquire(s.ctx, "showing:1", 0)
	s.Require().NoError(err)
	again()
}

func (s *RedisSuite) TestShowingLockWaitsForRelease() {
	lock := redisadapter.NewShowingLock(s.client, 10*time.Second)
	release, err := lock.Acquire(s.ctx, "showing:1", 0)
	s.Require().NoError(err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		release()
	}()

	next, err := lock.Acquire(s.ctx, "showing:1", 2*time.Second)
	s.Require().NoError(err)
	next()
}

func (s *RedisSuite) TestStaleReleaseKeepsNewHoldersLock() {
	lock := redisadapter.NewShowingLock(s.client, 100*time.Millisecond)
	stale, err := lock.Acquire(s.ctx, "showing:1", 0)
	s.Require().NoError(err)

	time.Sleep(200 * time.Millisecond)
	fresh, err := lock.Acquire(s.ctx, "showing:1", 0)
	s.Require().NoError(err)
	defer fresh()

	stale()
	_, err = lock.Acquire(s.ctx, "showing:1", 0)
	s.True(errors.Is(err, domain.ErrShowingBusy))
}

func (s *RedisSuite) TestIdempotency() {
	idem := redisadapter.NewIdempotency(s.client)

	resp, err := idem.Get(s.ctx, "k")
	s.Require().NoError(err)
	s.Nil(resp)

	ok, err := idem.Claim(s.ctx, "k", time.Minute)
	s.Require().NoError(err)
	s.True(ok)
	ok, err = idem.Claim(s.ctx, "k", time.Minute)
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(idem.Set(s.ctx, "k", redisadapter.IdempResponse{Status: 201, Result: []byte("{}")}, time.Minute))
	s.Require().NoError(idem.Release(s.ctx, "k"))

	resp, err = idem.Get(s.ctx, "k")
	s.Require().NoError(err)
	s.Require().NotNil(resp)
	s.Equal(201, resp.Status)
}

func (s *RedisSuite) TestCounterWindow() {
	c := redisadapter.NewCounter(s.client)
	for want := int64(1); want <= 3; want++ {
		n, err := c.Incr(s.ctx, "ip:1", time.Minute)
		s.Require().NoError(err)
		s.Equal(want, n)
	}
	ttl, err := s.client.TTL(s.ctx, "rl:ip:1").Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
}
