package crdb

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/cinema-seat-booking/internal/domain"
)

func (r *Repository) Exists(ctx context.Context, showing domain.Showing) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM showings WHERE film_id = $1 AND show_date = $2 AND show_time = $3)
	`, showing.FilmID, showing.Date, showing.Time).Scan(&ok)
	return ok, mapErr(err)
}

func (r *Repository) Films(ctx context.Context) ([]domain.Film, error) {
	return r.queryFilms(ctx, `SELECT id, title, description FROM films ORDER BY id`)
}

func (r *Repository) Film(ctx context.Context, id int64) (domain.Film, error) {
	var f domain.Film
	err := r.pool.QueryRow(ctx, `SELECT id, title, description FROM films WHERE id = $1`, id).
		Scan(&f.ID, &f.Title, &f.Description)
	if err != nil {
		return domain.Film{}, errors.Wrapf(mapErr(err), "film %d", id)
	}
	return f, nil
}

func (r *Repository) FilmsOn(ctx context.Context, date time.Time) ([]domain.Film, error) {
	return r.queryFilms(ctx, `
		SELECT DISTINCT f.id, f.title, f.description
		FROM films f JOIN showings s ON s.film_id = f.id
		WHERE s.show_date = $1
		ORDER BY f.id
	`, domain.DateOf(date))
}

func (r *Repository) queryFilms(ctx context.Context, sql string, args ...any) ([]domain.Film, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []domain.Film
	for rows.Next() {
		var f domain.Film
		if err := rows.Scan(&f.ID, &f.Title, &f.Description); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *Repository) Showings(ctx context.Context, filmID int64) ([]domain.Showing, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT film_id, show_date, show_time FROM showings
		WHERE film_id = $1 ORDER BY show_date, show_time
	`, filmID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []domain.Showing
	for rows.Next() {
		var s domain.Showing
		if err := rows.Scan(&s.FilmID, &s.Date, &s.Time); err != nil {
			return nil, err
		}
		s.Date = domain.DateOf(s.Date)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) Dates(ctx context.Context) ([]time.Time, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT show_date FROM showings ORDER BY show_date`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, domain.DateOf(d))
	}
	return out, rows.Err()
}

func (r *Repository) Overview(ctx context.Context) ([]domain.ShowingWithFilm, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.film_id, s.show_date, s.show_time, f.title
		FROM showings s JOIN films f ON f.id = s.film_id
		ORDER BY s.show_date, s.show_time, s.film_id
	`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []domain.ShowingWithFilm
	for rows.Next() {
		var s domain.ShowingWithFilm
		if err := rows.Scan(&s.FilmID, &s.Date, &s.Time, &s.Title); err != nil {
			return nil, err
		}
		s.Date = domain.DateOf(s.Date)
		out = append(out, s)
	}
	return out, rows.Err()
}

// CreateFilm stores the film together with its first showing and that
// showing's seat ledger row.
func (r *Repository) CreateFilm(ctx context.Context, film domain.Film, first domain.Showing) (domain.Film, error) {
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO films (title, description) VALUES ($1, $2) RETURNING id
		`, film.Title, film.Description).Scan(&film.ID)
		if err != nil {
			return errors.Wrapf(mapErr(err), "film %q", film.Title)
		}
		first.FilmID = film.ID
		return insertShowing(ctx, tx, first)
	})
	if err != nil {
		return domain.Film{}, err
	}
	return film, nil
}

func (r *Repository) CreateShowing(ctx context.Context, showing domain.Showing) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		return insertShowing(ctx, tx, showing)
	})
}

func insertShowing(ctx context.Context, tx pgx.Tx, s domain.Showing) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO showings (film_id, show_date, show_time) VALUES ($1, $2, $3)
	`, s.FilmID, s.Date, s.Time)
	if err != nil {
		return errors.Wrapf(mapErr(err), "showing %s", s.Key())
	}
	// every seat column defaults to available
	_, err = tx.Exec(ctx, `
		INSERT INTO seat_ledger (film_id, show_date, show_time) VALUES ($1, $2, $3)
	`, s.FilmID, s.Date, s.Time)
	if err != nil {
		return errors.Wrapf(mapErr(err), "seat ledger row %s", s.Key())
	}
	return nil
}
