package catalog_test

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/cinema-seat-booking/internal/adapters/memory"
	"github.com/robertarktes/cinema-seat-booking/internal/catalog"
	"github.com/robertarktes/cinema-seat-booking/internal/domain"
	"github.com/robertarktes/cinema-seat-booking/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin    = domain.User{Username: "root", Role: domain.RoleAdmin}
	customer = domain.User{Username: "alice", Role: domain.RoleCustomer}
	day      = time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
)

func newService() (*catalog.Service, *memory.Store) {
	store := memory.NewStore()
	return catalog.NewService(store, observability.NopLogger()), store
}

func TestAddFilmCreatesShowingAndLedgerRow(t *testing.T) {
	ctx := context.Background()
	svc, store := newService()

	film, showing, err := svc.AddFilm(ctx, admin, " Metropolis ", "Fritz Lang", day, "9:00")
	require.NoError(t, err)
	assert.Equal(t, "Metropolis", film.Title)
	assert.Equal(t, film.ID, showing.FilmID)
	assert.Equal(t, "09:00", showing.Time)

	ok, err := svc.Exists(ctx, showing)
	require.NoError(t, err)
	assert.True(t, ok)

	row, err := store.SeatStates(ctx, showing)
	require.NoError(t, err)
	available, taken := row.Counts()
	assert.Equal(t, 25, available)
	assert.Zero(t, taken)
}

func TestAddFilmRejections(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	_, _, err := svc.AddFilm(ctx, customer, "Metropolis", "", day, "09:00")
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	_, _, err = svc.AddFilm(ctx, admin, "  ", "", day, "09:00")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	_, _, err = svc.AddFilm(ctx, admin, "Metropolis", "", day, "nine")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	_, _, err = svc.AddFilm(ctx, admin, "Metropolis", "", day, "09:00")
	require.NoError(t, err)
	_, _, err = svc.AddFilm(ctx, admin, "Metropolis", "", day, "11:00")
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestAddShowing(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	film, first, err := svc.AddFilm(ctx, admin, "Nosferatu", "", day, "19:30")
	require.NoError(t, err)

	_, err = svc.AddShowing(ctx, admin, film.ID, day, "19:30")
	assert.True(t, errors.Is(err, domain.ErrConflict), "occupied time slot")

	_, err = svc.AddShowing(ctx, admin, 999, day, "10:00")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = svc.AddShowing(ctx, customer, film.ID, day, "10:00")
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	next := day.AddDate(0, 0, 1)
	second, err := svc.AddShowing(ctx, admin, film.ID, next, "10:00")
	require.NoError(t, err)

	showings, err := svc.ListShowings(ctx, film.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.Showing{first, second}, showings)

	onDay, err := svc.ShowingsOn(ctx, film.ID, next)
	require.NoError(t, err)
	assert.Equal(t, []domain.Showing{second}, onDay)

	dates, err := svc.Dates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day, next}, dates)

	_, err = svc.ListShowings(ctx, 999)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestFilmsOnAndOverview(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	_, _, err := svc.AddFilm(ctx, admin, "Metropolis", "", day, "09:00")
	require.NoError(t, err)
	_, _, err = svc.AddFilm(ctx, admin, "Nosferatu", "", day.AddDate(0, 0, 1), "21:00")
	require.NoError(t, err)

	films, err := svc.FilmsOn(ctx, day)
	require.NoError(t, err)
	require.Len(t, films, 1)
	assert.Equal(t, "Metropolis", films[0].Title)

	overview, err := svc.Overview(ctx)
	require.NoError(t, err)
	require.Len(t, overview, 2)
	assert.Equal(t, "Metropolis", overview[0].Title)
	assert.Equal(t, "Nosferatu", overview[1].Title)
}
