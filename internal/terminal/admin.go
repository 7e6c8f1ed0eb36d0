package terminal

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/cinema-seat-booking/internal/domain"
	"github.com/robertarktes/cinema-seat-booking/internal/report"
)

func (s *Session) adminMenu(ctx context.Context, u domain.User) error {
	s.println("")
	s.banner("Welcome to the management system. ;)")
	for {
		action, err := s.pick("\nEnter 'A' to add films; enter 'O' to output information; enter 'C' to check booking; enter 'L' to log out: ",
			msgInvalidRetry, "A", "O", "C", "L")
		if err != nil {
			return err
		}
		switch action {
		case "A":
			err = s.addFilm(ctx, u)
		case "O":
			err = s.export(ctx, u)
		case "C":
			err = s.checkSeats(ctx)
		case "L":
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// addFilm schedules a screening of a new or an existing film, starting over
// until the admin confirms an entry the catalog accepts.
func (s *Session) addFilm(ctx context.Context, u domain.User) error {
	for {
		kind, err := s.pick("Enter 't' to add a new screening time of an existing film; enter 'n' to add a new film: ",
			msgInvalidRetry, "t", "n")
		if err != nil {
			return err
		}

		var film domain.Film
		if kind == "t" {
			films, err := s.Catalog.Films(ctx)
			if err != nil {
				return err
			}
			if len(films) == 0 {
				s.println("There is no film yet.")
				continue
			}
			if film, err = s.selectFilm(films); err != nil {
				return err
			}
		} else {
			if film.Title, err = s.ask("Enter the film title: "); err != nil {
				return err
			}
			if film.Description, err = s.ask("Enter the description of the film: "); err != nil {
				return err
			}
		}
		rawDate, err := s.ask("Enter the screening date (e.g. 2019/01/01): ")
		if err != nil {
			return err
		}
		rawTime, err := s.ask("Enter the screening time (e.g. 09:00): ")
		if err != nil {
			return err
		}

		s.table("Insert Film Confirmation", []string{"Film", "Description", "Date", "Time"},
			[][]string{{film.Title, film.Description, rawDate, rawTime}})
		confirm, err := s.pick("Enter 'Y' to confirm; enter 'N' to start again: ", msgInvalidRetry, "Y", "N")
		if err != nil {
			return err
		}
		if confirm == "N" {
			continue
		}

		date, err := domain.ParseDate(rawDate)
		if err != nil {
			s.println(msgSomething)
			continue
		}
		if kind == "t" {
			_, err = s.Catalog.AddShowing(ctx, u, film.ID, date, rawTime)
		} else {
			_, _, err = s.Catalog.AddFilm(ctx, u, film.Title, film.Description, date, rawTime)
		}
		switch {
		case err == nil && kind == "t":
			s.println("Screening time added!")
			return nil
		case err == nil:
			s.println("Film added!")
			return nil
		case errors.Is(err, domain.ErrConflict) && kind == "t":
			s.println("This time slot is occupied...")
		case errors.Is(err, domain.ErrConflict):
			s.println("This film already exists!")
		case errors.IsAny(err, domain.ErrInvalidInput, domain.ErrNotFound):
			s.println(msgSomething)
		default:
			return err
		}
	}
}

func (s *Session) export(ctx context.Context, u domain.User) error {
	name := report.FileName(s.now())
	f, err := s.create(name)
	if err != nil {
		return errors.Wrapf(err, "create %s", name)
	}
	if err := s.Reports.WriteCSV(ctx, u, f); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "write %s", name)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "close %s", name)
	}
	s.println("File exported.")
	return nil
}

// checkSeats prints the seat map of one showing with its counts.
func (s *Session) checkSeats(ctx context.Context) error {
	date, ok, err := s.selectDate(ctx)
	if err != nil || !ok {
		return err
	}
	films, err := s.Catalog.FilmsOn(ctx, date)
	if err != nil {
		return err
	}
	film, err := s.selectFilm(films)
	if err != nil {
		return err
	}
	showing, ok, err := s.selectShowing(ctx, film.ID, date)
	if err != nil || !ok {
		return err
	}

	row, err := s.Bookings.Grid(ctx, showing)
	if err != nil {
		return err
	}
	available, booked := row.Counts()
	s.printf("\nSeats of '%s' screening at %s on %s\n\n", film.Title, showing.Time, showing.DateString())
	s.printf("%s\n", row.Grid())
	s.printf("Total: %d; Booked: %d; Available: %d\n", domain.SeatCount, booked, available)
	return nil
}
