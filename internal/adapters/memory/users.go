package memory

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/cinema-seat-booking/internal/domain"
)

func (s *Store) User(ctx context.Context, role domain.Role, username string) (domain.User, error) {
	var (
		u  domain.User
		ok bool
	)
	s.read(func(st *state) { u, ok = st.users[role][username] })
	if !ok {
		return domain.User{}, errors.Wrapf(domain.ErrNotFound, "%s %q", role, username)
	}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u domain.User) error {
	return s.update(func(st *state) error {
		users, ok := st.users[u.Role]
		if !ok {
			return errors.Wrapf(domain.ErrInvalidInput, "role %q", u.Role)
		}
		if _, dup := users[u.Username]; dup {
			return errors.Wrapf(domain.ErrConflict, "username %q", u.Username)
		}
		users[u.Username] = u
		return nil
	})
}

func (s *Store) UpdateUserField(ctx context.Context, role domain.Role, username string, field domain.ProfileField, value string) error {
	return s.update(func(st *state) error {
		u, ok := st.users[role][username]
		if !ok {
			return errors.Wrapf(domain.ErrNotFound, "%s %q", role, username)
		}
		st.users[role][username] = u.Apply(field, value)
		return nil
	})
}
