package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// DateLayout is the screening date format shown to and typed by users.
const DateLayout = "2006/01/02"

type Film struct {
	ID          int64
	Title       string
	Description string
}

// Showing is one screening of a film, identified by (FilmID, Date, Time).
type Showing struct {
	FilmID int64
	Date   time.Time
	Time   string
}

type ShowingWithFilm struct {
	Showing
	Title string
}

func NewShowing(filmID int64, date time.Time, timeOfDay string) Showing {
	return Showing{FilmID: filmID, Date: DateOf(date), Time: strings.TrimSpace(timeOfDay)}
}

// DateOf drops the clock part of t and pins the calendar date to UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrInvalidInput, "date %q must look like 2019/01/01", s)
	}
	return t, nil
}

func (s Showing) DateString() string {
	return s.Date.Format(DateLayout)
}

// Key identifies the showing for locking and logging.
func (s Showing) Key() string {
	return fmt.Sprintf("%d:%s:%s", s.FilmID, s.Date.Format("2006-01-02"), s.Time)
}

func (s Showing) Validate() error {
	if s.FilmID <= 0 {
		return errors.Wrap(ErrInvalidInput, "film id must be positive")
	}
	if s.Date.IsZero() {
		return errors.Wrap(ErrInvalidInput, "screening date is required")
	}
	if s.Time == "" {
		return errors.Wrap(ErrInvalidInput, "screening time is required")
	}
	return nil
}

// InFutureOf reports whether the screening date is strictly after the date of now.
func (s Showing) InFutureOf(now time.Time) bool {
	return DateOf(s.Date).After(DateOf(now))
}
