package crdb

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/cinema-seat-booking/internal/domain"
)

var userTables = map[domain.Role]string{
	domain.RoleAdmin:    "admins",
	domain.RoleCustomer: "customers",
}

var profileColumns = map[domain.ProfileField]string{
	domain.FieldPassword:  "password",
	domain.FieldFirstName: "first_name",
	domain.FieldLastName:  "last_name",
	domain.FieldEmail:     "email",
}

func userTable(role domain.Role) (string, error) {
	t, ok := userTables[role]
	if !ok {
		return "", errors.Wrapf(domain.ErrInvalidInput, "role %q", role)
	}
	return pgx.Identifier{t}.Sanitize(), nil
}

func (r *Repository) User(ctx context.Context, role domain.Role, username string) (domain.User, error) {
	table, err := userTable(role)
	if err != nil {
		return domain.User{}, err
	}
	u := domain.User{Role: role}
	err = r.pool.QueryRow(ctx, `
		SELECT username, password, first_name, last_name, email FROM `+table+` WHERE username = $1
	`, username).Scan(&u.Username, &u.Password, &u.FirstName, &u.LastName, &u.Email)
	if err != nil {
		return domain.User{}, errors.Wrapf(mapErr(err), "%s %q", role, username)
	}
	return u, nil
}

func (r *Repository) CreateUser(ctx context.Context, u domain.User) error {
	table, err := userTable(u.Role)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO `+table+` (username, password, first_name, last_name, email)
		VALUES ($1, $2, $3, $4, $5)
	`, u.Username, u.Password, u.FirstName, u.LastName, u.Email)
	if err != nil {
		return errors.Wrapf(mapErr(err), "username %q", u.Username)
	}
	return nil
}

func (r *Repository) UpdateUserField(ctx context.Context, role domain.Role, username string, field domain.ProfileField, value string) error {
	table, err := userTable(role)
	if err != nil {
		return err
	}
	col, ok := profileColumns[field]
	if !ok {
		return errors.Wrapf(domain.ErrInvalidInput, "profile field %q", field)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE `+table+` SET `+pgx.Identifier{col}.Sanitize()+` = $2 WHERE username = $1`,
		username, value)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(domain.ErrNotFound, "%s %q", role, username)
	}
	return nil
}
