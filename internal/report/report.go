// Package report exports per-showing seat counts as CSV.
package report

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/cinema-seat-booking/internal/domain"
	"github.com/robertarktes/cinema-seat-booking/internal/observability"
)

var Header = []string{"filmID", "film", "date", "time", "available_seats", "booked_seats"}

type Showings interface {
	Overview(ctx context.Context) ([]domain.ShowingWithFilm, error)
}

type SeatCounter interface {
	CountAvailable(ctx context.Context, showing domain.Showing) (available, taken int, err error)
}

type Exporter struct {
	showings Showings
	seats    SeatCounter
	logger   observability.Logger
}

func NewExporter(showings Showings, seats SeatCounter, logger observability.Logger) *Exporter {
	return &Exporter{showings: showings, seats: seats, logger: logger}
}

// FileName is the export name for a report taken at now.
func FileName(now time.Time) string {
	return now.Format("20060102_1504") + "_filmsAndSeats.csv"
}

// WriteCSV writes one row per showing, ordered by date and time.
func (e *Exporter) WriteCSV(ctx context.Context, admin domain.User, w io.Writer) error {
	if err := admin.Require(domain.CapExportReport); err != nil {
		return err
	}
	list, err := e.showings.Overview(ctx)
	if err != nil {
		return errors.Wrap(err, "list showings")
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, s := range list {
		available, booked, err := e.seats.CountAvailable(ctx, s.Showing)
		if err != nil {
			return errors.Wrapf(err, "count seats of %s", s.Key())
		}
		err = cw.Write([]string{
			strconv.FormatInt(s.FilmID, 10),
			s.Title,
			s.DateString(),
			s.Time,
			strconv.Itoa(available),
			strconv.Itoa(booked),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	e.logger.WithFields(map[string]interface{}{"admin": admin.Username, "rows": len(list)}).Info("file exported")
	return nil
}
