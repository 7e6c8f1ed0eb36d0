package domain_test

import (
	"testing"
	"time"

	"github.com/robertarktes/cinema-seat-booking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShowingInFutureOf(t *testing.T) {
	now := time.Date(2026, 10, 18, 23, 59, 0, 0, time.UTC)

	tomorrow := domain.NewShowing(1, now.AddDate(0, 0, 1), "10:00")
	today := domain.NewShowing(1, now, "23:00")
	yesterday := domain.NewShowing(1, now.AddDate(0, 0, -1), "10:00")

	assert.True(t, tomorrow.InFutureOf(now))
	assert.False(t, today.InFutureOf(now))
	assert.False(t, yesterday.InFutureOf(now))
}

func TestParseDate(t *testing.T) {
	d, err := domain.ParseDate("2019/01/01")
	require.NoError(t, err)
	s := domain.NewShowing(3, d, " 19:30 ")
	assert.Equal(t, "2019/01/01", s.DateString())
	assert.Equal(t, "19:30", s.Time)
	assert.Equal(t, "3:2019-01-01:19:30", s.Key())

	_, err = domain.ParseDate("01-01-2019")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBookingSeatString(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 5, 0, 0, time.UTC)
	b := domain.NewBooking(domain.NewShowing(1, now, "10:00"), "alice", []domain.SeatLabel{"B4", "B3"}, now)
	assert.Equal(t, "B4 B3", b.SeatString())
	assert.Equal(t, "2026/10/18 09:05", b.TimeMark())
	assert.Equal(t, b.Seats, domain.ParseSeatString(b.SeatString()))
}

func TestRoleCapabilities(t *testing.T) {
	customer := domain.User{Username: "c", Role: domain.RoleCustomer}
	admin := domain.User{Username: "a", Role: domain.RoleAdmin}

	assert.True(t, customer.Can(domain.CapBook))
	assert.True(t, customer.Can(domain.CapCancel))
	assert.False(t, customer.Can(domain.CapExportReport))
	assert.ErrorIs(t, customer.Require(domain.CapManageCatalog), domain.ErrForbidden)

	assert.True(t, admin.Can(domain.CapManageCatalog))
	assert.False(t, admin.Can(domain.CapBook))
	assert.NoError(t, admin.Require(domain.CapInspectSeats))

	role, err := domain.ParseRole("A")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, role)
	_, err = domain.ParseRole("x")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUserApplyProfile(t *testing.T) {
	u := domain.User{Username: "bob", Email: "old@example.com"}
	field, err := domain.ParseProfileField("Email")
	require.NoError(t, err)
	updated := u.Apply(field, "new@example.com")
	assert.Equal(t, "new@example.com", updated.Email)
	assert.Equal(t, "old@example.com", u.Email)

	_, err = domain.ParseProfileField("username")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
