package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/robertarktes/cinema-seat-booking/internal/app"
	"github.com/robertarktes/cinema-seat-booking/internal/config"
	"github.com/robertarktes/cinema-seat-booking/internal/domain"
	"github.com/robertarktes/cinema-seat-booking/internal/observability"
	"github.com/robertarktes/cinema-seat-booking/internal/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInMemory(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		StoreDriver:        config.StoreMemory,
		SeatLockWait:       time.Second,
		ReserveMaxAttempts: 3,
		IdempotencyTTL:     time.Hour,
		AdminUsername:      "root",
		AdminPassword:      "secret",
	}
	a, err := app.New(ctx, cfg, observability.NopLogger())
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Ready(ctx))
	admin, err := a.Accounts.Login(ctx, domain.RoleAdmin, "root", "secret")
	require.NoError(t, err)

	_, showing, err := a.Catalog.AddFilm(ctx, admin, "Metropolis", "", time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC), "20:00")
	require.NoError(t, err)
	b, err := a.Bookings.Reserve(ctx, showing, domain.User{Username: "alice", Role: domain.RoleCustomer}, []domain.SeatLabel{"A1"})
	require.NoError(t, err)
	assert.Equal(t, "A1", b.SeatString())

	n, err := a.Store.Drain(ctx, 10, func(context.Context, outbox.Message) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
