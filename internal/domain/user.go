package domain

import (
	"strings"

	"github.com/cockroachdb/errors"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

type Capability int

const (
	CapBook Capability = iota
	CapCancel
	CapEditProfile
	CapManageCatalog
	CapInspectSeats
	CapExportReport
)

var roleCapabilities = map[Role]map[Capability]bool{
	RoleCustomer: {
		CapBook:        true,
		CapCancel:      true,
		CapEditProfile: true,
	},
	RoleAdmin: {
		CapManageCatalog: true,
		CapInspectSeats:  true,
		CapExportReport:  true,
	},
}

func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a", "admin":
		return RoleAdmin, nil
	case "", "c", "customer":
		return RoleCustomer, nil
	}
	return "", errors.Wrapf(ErrInvalidInput, "unknown role %q", s)
}

func (r Role) Can(c Capability) bool {
	return roleCapabilities[r][c]
}

type User struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
	Email     string
	Role      Role
}

func (u User) Can(c Capability) bool {
	return u.Role.Can(c)
}

// Require fails with ErrForbidden when the user's role lacks the capability.
func (u User) Require(c Capability) error {
	if !u.Can(c) {
		return errors.Wrapf(ErrForbidden, "%s %q", u.Role, u.Username)
	}
	return nil
}

// CheckPassword compares plaintext passwords.
func (u User) CheckPassword(pw string) bool {
	return u.Password == pw
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return errors.Wrap(ErrInvalidInput, "username is required")
	}
	if u.Password == "" {
		return errors.Wrap(ErrInvalidInput, "password is required")
	}
	return nil
}

// ProfileField is a user attribute that may be edited after registration.
type ProfileField string

const (
	FieldPassword  ProfileField = "password"
	FieldFirstName ProfileField = "firstname"
	FieldLastName  ProfileField = "lastname"
	FieldEmail     ProfileField = "email"
)

func ProfileFields() []ProfileField {
	return []ProfileField{FieldPassword, FieldFirstName, FieldLastName, FieldEmail}
}

func ParseProfileField(s string) (ProfileField, error) {
	f := ProfileField(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ProfileFields() {
		if f == known {
			return f, nil
		}
	}
	return "", errors.Wrapf(ErrInvalidInput, "profile field %q cannot be changed", s)
}

// Apply returns a copy of u with the field set to value.
func (u User) Apply(field ProfileField, value string) User {
	switch field {
	case FieldPassword:
		u.Password = value
	case FieldFirstName:
		u.FirstName = value
	case FieldLastName:
		u.LastName = value
	case FieldEmail:
		u.Email = value
	}
	return u
}
