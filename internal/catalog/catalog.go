// Package catalog lists films and their showings and lets admins schedule new ones.
package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/cinema-seat-booking/internal/domain"
	"github.com/robertarktes/cinema-seat-booking/internal/observability"
)

// TimeLayout is the screening time format, e.g. 09:00.
const TimeLayout = "15:04"

type Store interface {
	Exists(ctx context.Context, showing domain.Showing) (bool, error)
	Films(ctx context.Context) ([]domain.Film, error)
	Film(ctx context.Context, id int64) (domain.Film, error)
	Showings(ctx context.Context, filmID int64) ([]domain.Showing, error)
	Dates(ctx context.Context) ([]time.Time, error)
	FilmsOn(ctx context.Context, date time.Time) ([]domain.Film, error)
	Overview(ctx context.Context) ([]domain.ShowingWithFilm, error)
	// CreateFilm stores the film, its first showing and that showing's
	// all-available seat ledger row, or nothing.
	CreateFilm(ctx context.Context, film domain.Film, first domain.Showing) (domain.Film, error)
	// CreateShowing stores the showing and its seat ledger row, or nothing.
	CreateShowing(ctx context.Context, showing domain.Showing) error
}

type Service struct {
	store  Store
	logger observability.Logger
}

func NewService(store Store, logger observability.Logger) *Service {
	return &Service{store: store, logger: logger}
}

func (s *Service) Exists(ctx context.Context, showing domain.Showing) (bool, error) {
	return s.store.Exists(ctx, showing)
}

func (s *Service) Films(ctx context.Context) ([]domain.Film, error) {
	return s.store.Films(ctx)
}

func (s *Service) Film(ctx context.Context, id int64) (domain.Film, error) {
	return s.store.Film(ctx, id)
}

// ListShowings returns the showings of a film ordered by date and time.
func (s *Service) ListShowings(ctx context.Context, filmID int64) ([]domain.Showing, error) {
	if _, err := s.store.Film(ctx, filmID); err != nil {
		return nil, err
	}
	return s.store.Showings(ctx, filmID)
}

// ShowingsOn returns the showings of a film on one date.
func (s *Service) ShowingsOn(ctx context.Context, filmID int64, date time.Time) ([]domain.Showing, error) {
	all, err := s.ListShowings(ctx, filmID)
	if err != nil {
		return nil, err
	}
	day := domain.DateOf(date)
	var out []domain.Showing
	for _, sh := range all {
		if sh.Date.Equal(day) {
			out = append(out, sh)
		}
	}
	return out, nil
}

// Dates returns every distinct screening date in ascending order.
func (s *Service) Dates(ctx context.Context) ([]time.Time, error) {
	return s.store.Dates(ctx)
}

func (s *Service) FilmsOn(ctx context.Context, date time.Time) ([]domain.Film, error) {
	return s.store.FilmsOn(ctx, date)
}

func (s *Service) Overview(ctx context.Context) ([]domain.ShowingWithFilm, error) {
	return s.store.Overview(ctx)
}

func (s *Service) AddFilm(ctx context.Context, admin domain.User, title, description string, date time.Time, timeOfDay string) (domain.Film, domain.Showing, error) {
	if err := admin.Require(domain.CapManageCatalog); err != nil {
		return domain.Film{}, domain.Showing{}, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Film{}, domain.Showing{}, errors.Wrap(domain.ErrInvalidInput, "film title is required")
	}
	showing, err := newShowing(0, date, timeOfDay)
	if err != nil {
		return domain.Film{}, domain.Showing{}, err
	}

	film, err := s.store.CreateFilm(ctx, domain.Film{Title: title, Description: strings.TrimSpace(description)}, showing)
	if err != nil {
		return domain.Film{}, domain.Showing{}, errors.Wrapf(err, "add film %q", title)
	}
	showing.FilmID = film.ID
	s.logger.WithFields(map[string]interface{}{
		"admin":   admin.Username,
		"film_id": film.ID,
		"showing": showing.Key(),
	}).Info("film added")
	return film, showing, nil
}

func (s *Service) AddShowing(ctx context.Context, admin domain.User, filmID int64, date time.Time, timeOfDay string) (domain.Showing, error) {
	if err := admin.Require(domain.CapManageCatalog); err != nil {
		return domain.Showing{}, err
	}
	showing, err := newShowing(filmID, date, timeOfDay)
	if err != nil {
		return domain.Showing{}, err
	}
	if err := s.store.CreateShowing(ctx, showing); err != nil {
		return domain.Showing{}, errors.Wrapf(err, "add showing %s", showing.Key())
	}
	s.logger.WithFields(map[string]interface{}{
		"admin":   admin.Username,
		"showing": showing.Key(),
	}).Info("screening time added")
	return showing, nil
}

func newShowing(filmID int64, date time.Time, timeOfDay string) (domain.Showing, error) {
	t, err := time.Parse(TimeLayout, strings.TrimSpace(timeOfDay))
	if err != nil {
		return domain.Showing{}, errors.Wrapf(domain.ErrInvalidInput, "time %q must look like 09:00", timeOfDay)
	}
	if date.IsZero() {
		return domain.Showing{}, errors.Wrap(domain.ErrInvalidInput, "screening date is required")
	}
	return domain.NewShowing(filmID, date, t.Format(TimeLayout)), nil
}
