// Package account registers customers, authenticates users and edits profiles.
package account

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/cinema-seat-booking/internal/domain"
	"github.com/robertarktes/cinema-seat-booking/internal/observability"
)

type Store interface {
	User(ctx context.Context, role domain.Role, username string) (domain.User, error)
	CreateUser(ctx context.Context, u domain.User) error
	UpdateUserField(ctx context.Context, role domain.Role, username string, field domain.ProfileField, value string) error
}

type Service struct {
	store  Store
	logger observability.Logger
}

func NewService(store Store, logger observability.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Register creates a customer account. Admin accounts are provisioned out of band.
func (s *Service) Register(ctx context.Context, u domain.User) (domain.User, error) {
	u.Username = strings.TrimSpace(u.Username)
	u.Role = domain.RoleCustomer
	if err := u.Validate(); err != nil {
		return domain.User{}, err
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return domain.User{}, errors.Wrapf(domain.ErrConflict, "username %q is not available", u.Username)
		}
		return domain.User{}, err
	}
	s.logger.WithField("username", u.Username).Info("customer account created")
	return u, nil
}

// EnsureAdmin creates the admin account unless one with that username exists.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) error {
	u := domain.User{Username: strings.TrimSpace(username), Password: password, Role: domain.RoleAdmin}
	if err := u.Validate(); err != nil {
		return err
	}
	err := s.store.CreateUser(ctx, u)
	if errors.Is(err, domain.ErrConflict) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "create admin %q", u.Username)
	}
	s.logger.WithField("username", u.Username).Info("admin account created")
	return nil
}

// Login checks the password of a user with the given role.
func (s *Service) Login(ctx context.Context, role domain.Role, username, password string) (domain.User, error) {
	u, err := s.store.User(ctx, role, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.WithFields(map[string]interface{}{"role": role, "username": username}).Info("username does not exist")
		}
		return domain.User{}, err
	}
	if !u.CheckPassword(password) {
		s.logger.WithFields(map[string]interface{}{"role": role, "username": username}).Info("incorrect password")
		return domain.User{}, errors.Wrap(domain.ErrForbidden, "incorrect password")
	}
	s.logger.WithFields(map[string]interface{}{"role": role, "username": username}).Info("logged in")
	return u, nil
}

func (s *Service) Profile(ctx context.Context, username string) (domain.User, error) {
	return s.store.User(ctx, domain.RoleCustomer, username)
}

// UpdateProfile changes one field of the user's own profile. The username
// cannot be changed.
func (s *Service) UpdateProfile(ctx context.Context, u domain.User, field domain.ProfileField, value string) (domain.User, error) {
	if err := u.Require(domain.CapEditProfile); err != nil {
		return domain.User{}, err
	}
	if _, err := domain.ParseProfileField(string(field)); err != nil {
		return domain.User{}, err
	}
	if field == domain.FieldPassword && value == "" {
		return domain.User{}, errors.Wrap(domain.ErrInvalidInput, "password cannot be empty")
	}
	if err := s.store.UpdateUserField(ctx, u.Role, u.Username, field, value); err != nil {
		return domain.User{}, err
	}
	s.logger.WithFields(map[string]interface{}{"username": u.Username, "field": field}).Info("profile updated")
	return s.store.User(ctx, u.Role, u.Username)
}
