package account_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/cinema-seat-booking/internal/account"
	"github.com/robertarktes/cinema-seat-booking/internal/adapters/memory"
	"github.com/robertarktes/cinema-seat-booking/internal/domain"
	"github.com/robertarktes/cinema-seat-booking/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := account.NewService(memory.NewStore(), observability.NopLogger())

	u, err := svc.Register(ctx, domain.User{Username: " alice ", Password: "pw", Role: domain.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, domain.RoleCustomer, u.Role, "registration never creates admins")

	_, err = svc.Register(ctx, domain.User{Username: "alice", Password: "other"})
	assert.True(t, errors.Is(err, domain.ErrConflict))

	_, err = svc.Register(ctx, domain.User{Username: "bob"})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	got, err := svc.Login(ctx, domain.RoleCustomer, "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = svc.Login(ctx, domain.RoleCustomer, "alice", "wrong")
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	_, err = svc.Login(ctx, domain.RoleCustomer, "nobody", "pw")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = svc.Login(ctx, domain.RoleAdmin, "alice", "pw")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := account.NewService(store, observability.NopLogger())
	u, err := svc.Register(ctx, domain.User{Username: "alice", Password: "pw", FirstName: "Al"})
	require.NoError(t, err)

	updated, err := svc.UpdateProfile(ctx, u, domain.FieldFirstName, "Alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", updated.FirstName)
	assert.Equal(t, "alice", updated.Username)

	_, err = svc.UpdateProfile(ctx, u, domain.ProfileField("username"), "mallory")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	_, err = svc.UpdateProfile(ctx, u, domain.FieldPassword, "")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	require.NoError(t, store.CreateUser(ctx, domain.User{Username: "root", Password: "pw", Role: domain.RoleAdmin}))
	_, err = svc.UpdateProfile(ctx, domain.User{Username: "root", Role: domain.RoleAdmin}, domain.FieldEmail, "x")
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	profile, err := svc.Profile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", profile.FirstName)
}

func TestEnsureAdmin(t *testing.T) {
	ctx := context.Background()
	svc := account.NewService(memory.NewStore(), observability.NopLogger())

	require.NoError(t, svc.EnsureAdmin(ctx, "root", "secret"))
	require.NoError(t, svc.EnsureAdmin(ctx, "root", "changed"), "existing admin is kept")

	u, err := svc.Login(ctx, domain.RoleAdmin, "root", "secret")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, u.Role)

	_, err = svc.Login(ctx, domain.RoleCustomer, "root", "secret")
	assert.True(t, errors.Is(err, domain.ErrNotFound), "admins are not customers")

	assert.True(t, errors.Is(svc.EnsureAdmin(ctx, "root2", ""), domain.ErrInvalidInput))
}
