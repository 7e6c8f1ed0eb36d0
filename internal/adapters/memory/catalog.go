package memory

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/cinema-seat-booking/internal/domain"
)

func (s *Store) Exists(ctx context.Context, showing domain.Showing) (bool, error) {
	var ok bool
	s.read(func(st *state) { _, ok = st.showings[showing.Key()] })
	return ok, nil
}

func (s *Store) Films(ctx context.Context) ([]domain.Film, error) {
	var out []domain.Film
	s.read(func(st *state) {
		for _, f := range st.films {
			out = append(out, f)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Film(ctx context.Context, id int64) (domain.Film, error) {
	var (
		f  domain.Film
		ok bool
	)
	s.read(func(st *state) { f, ok = st.films[id] })
	if !ok {
		return domain.Film{}, errors.Wrapf(domain.ErrNotFound, "film %d", id)
	}
	return f, nil
}

func (s *Store) Showings(ctx context.Context, filmID int64) ([]domain.Showing, error) {
	var out []domain.Showing
	s.read(func(st *state) {
		for _, sh := range st.showings {
			if sh.FilmID == filmID {
				out = append(out, sh)
			}
		}
	})
	sortShowings(out)
	return out, nil
}

func (s *Store) Dates(ctx context.Context) ([]time.Time, error) {
	seen := make(map[time.Time]struct{})
	var out []time.Time
	s.read(func(st *state) {
		for _, sh := range st.showings {
			if _, ok := seen[sh.Date]; !ok {
				seen[sh.Date] = struct{}{}
				out = append(out, sh.Date)
			}
		}
	})
	sortDates(out)
	return out, nil
}

func (s *Store) FilmsOn(ctx context.Context, date time.Time) ([]domain.Film, error) {
	day := domain.DateOf(date)
	seen := make(map[int64]struct{})
	var out []domain.Film
	s.read(func(st *state) {
		for _, sh := range st.showings {
			if !sh.Date.Equal(day) {
				continue
			}
			if _, ok := seen[sh.FilmID]; ok {
				continue
			}
			seen[sh.FilmID] = struct{}{}
			out = append(out, st.films[sh.FilmID])
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Overview(ctx context.Context) ([]domain.ShowingWithFilm, error) {
	var list []domain.Showing
	titles := make(map[int64]string)
	s.read(func(st *state) {
		for _, sh := range st.showings {
			list = append(list, sh)
		}
		for id, f := range st.films {
			titles[id] = f.Title
		}
	})
	sortShowings(list)
	out := make([]domain.ShowingWithFilm, len(list))
	for i, sh := range list {
		out[i] = domain.ShowingWithFilm{Showing: sh, Title: titles[sh.FilmID]}
	}
	return out, nil
}

func (s *Store) CreateFilm(ctx context.Context, film domain.Film, first domain.Showing) (domain.Film, error) {
	err := s.update(func(st *state) error {
		for _, f := range st.films {
			if f.Title == film.Title {
				return errors.Wrapf(domain.ErrConflict, "film %q", film.Title)
			}
		}
		st.nextFilmID++
		film.ID = st.nextFilmID
		st.films[film.ID] = film
		first.FilmID = film.ID
		return addShowing(st, first)
	})
	if err != nil {
		return domain.Film{}, err
	}
	return film, nil
}

func (s *Store) CreateShowing(ctx context.Context, showing domain.Showing) error {
	return s.update(func(st *state) error {
		return addShowing(st, showing)
	})
}

func addShowing(st *state, showing domain.Showing) error {
	if _, ok := st.films[showing.FilmID]; !ok {
		return errors.Wrapf(domain.ErrNotFound, "film %d", showing.FilmID)
	}
	key := showing.Key()
	if _, dup := st.showings[key]; dup {
		return errors.Wrapf(domain.ErrConflict, "showing %s", key)
	}
	st.showings[key] = showing
	st.ledger[key] = domain.NewSeatStates()
	return nil
}
