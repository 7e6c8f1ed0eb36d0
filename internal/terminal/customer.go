package terminal

import (
	"context"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/cinema-seat-booking/internal/domain"
)

func (s *Session) customerMenu(ctx context.Context, u domain.User) error {
	for {
		action, err := s.pick("\nEnter 'B' to book a seat; enter 'P' to update your profile; enter 'M' to manage your booking; enter 'L' to log out: ",
			msgInvalidRetry, "B", "P", "M", "L")
		if err != nil {
			return err
		}
		switch action {
		case "B":
			err = s.book(ctx, u)
		case "P":
			u, err = s.updateProfile(ctx, u)
		case "M":
			err = s.manageBookings(ctx, u)
		case "L":
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (s *Session) book(ctx context.Context, u domain.User) error {
	date, ok, err := s.selectDate(ctx)
	if err != nil || !ok {
		return err
	}
	films, err := s.Catalog.FilmsOn(ctx, date)
	if err != nil {
		return err
	}

	s.banner("Welcome to the booking system. :D")
	film, err := s.selectFilm(films)
	if err != nil {
		return err
	}
	showing, ok, err := s.selectShowing(ctx, film.ID, date)
	if err != nil || !ok {
		return err
	}
	if err := s.printGrid(ctx, showing); err != nil {
		return err
	}

	for {
		raw, err := s.ask("Please enter the seats you want to book (e.g., B3 B4): ")
		if err != nil {
			return err
		}
		seats, err := domain.ParseSeatSelection(raw)
		if err != nil {
			s.println("Invalid input! Please enter A1 - E5.")
			continue
		}

		b, err := s.Bookings.Reserve(ctx, showing, u, seats)
		var unavailable *domain.SeatUnavailableError
		switch {
		case err == nil:
			s.println("Successfully booked!")
			s.table("Booking Summary", []string{"FilmID", "Screening Date", "Screening Time", "Seat"}, [][]string{{
				strconv.FormatInt(b.Showing.FilmID, 10), b.Showing.DateString(), b.Showing.Time, b.SeatString(),
			}})
			return nil
		case errors.As(err, &unavailable):
			s.printf("%s is/are not available. Please try again.\n", joinSeats(unavailable.Seats, ", "))
			if err := s.printGrid(ctx, showing); err != nil {
				return err
			}
		case errors.IsAny(err, domain.ErrShowingBusy, domain.ErrSerializationFailure):
			s.println("Someone else is booking this showing right now. Please try again.")
		case errors.Is(err, domain.ErrInvalidSeatSelection):
			s.println("Invalid input! Please enter A1 - E5.")
		default:
			s.logger.WithError(err).WithField("showing", showing.Key()).Error("booking failed")
			s.println(msgSomething)
			return nil
		}
	}
}

func (s *Session) printGrid(ctx context.Context, showing domain.Showing) error {
	row, err := s.Bookings.Grid(ctx, showing)
	if err != nil {
		return err
	}
	s.printf("\n%s\n", row.Grid())
	return nil
}

func (s *Session) updateProfile(ctx context.Context, u domain.User) (domain.User, error) {
	for {
		s.table("User Profile", []string{"Username", "First Name", "Last Name", "Email"},
			[][]string{{u.Username, u.FirstName, u.LastName, u.Email}})

		fields := domain.ProfileFields()
		for i, f := range fields {
			s.printf("%d: %s\n", i+1, f)
		}
		raw, err := s.ask("Please enter the section you want to change (you cannot change your username), or enter 'r' to return: ")
		if err != nil {
			return u, err
		}
		for {
			if strings.EqualFold(strings.TrimSpace(raw), "r") {
				return u, nil
			}
			if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n >= 1 && n <= len(fields) {
				raw = string(fields[n-1])
				break
			}
			s.println(msgInvalidRetry)
			if raw, err = s.ask("Please enter the section you want to change (you cannot change your username): "); err != nil {
				return u, err
			}
		}
		field := domain.ProfileField(raw)

		var value string
		for {
			if value, err = s.ask("Please enter your new " + raw + ": "); err != nil {
				return u, err
			}
			confirm, err := s.ask("Please confirm your new " + raw + ": ")
			if err != nil {
				return u, err
			}
			if value == confirm {
				break
			}
			s.println("Your inputs do not match! Please try again.")
		}

		updated, err := s.Accounts.UpdateProfile(ctx, u, field, value)
		switch {
		case err == nil:
			u = updated
			s.println("Profile updated successfully!")
		case errors.Is(err, domain.ErrInvalidInput):
			s.println(msgInvalidRetry)
		default:
			return u, err
		}

		next, err := s.pick("Enter 'u' to update other information; enter 'r' to return: ", msgInvalidRetry, "u", "r")
		if err != nil || next == "r" {
			return u, err
		}
	}
}

func (s *Session) manageBookings(ctx context.Context, u domain.User) error {
	history, err := s.Bookings.History(ctx, u.Username)
	if err != nil {
		return err
	}

	rows := make([][]string, len(history))
	for i, b := range history {
		title := ""
		if f, err := s.Catalog.Film(ctx, b.Showing.FilmID); err == nil {
			title = f.Title
		}
		rows[i] = []string{strconv.Itoa(i + 1), title, b.Showing.DateString(), b.Showing.Time, b.SeatString()}
	}
	s.table(u.Username+"'s Booking History", []string{"BookingID", "Film", "Screening Date", "Screening Time", "Seat"}, rows)
	if len(history) == 0 {
		s.println("You have no booking history...")
		return nil
	}

	var choice domain.Booking
	for {
		raw, err := s.ask("Please enter the ID of the booking you want to cancel; 'r' to return: ")
		if err != nil {
			return err
		}
		if strings.TrimSpace(raw) == "r" {
			return nil
		}
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n >= 1 && n <= len(history) {
			choice = history[n-1]
			break
		}
		s.println(msgInvalidRetry)
	}

	_, err = s.Bookings.Cancel(ctx, u, choice.ID)
	switch {
	case err == nil:
		s.println("Booking deleted!")
	case errors.Is(err, domain.ErrCancellationWindowClosed):
		s.println("You can only change a future booking.")
	case errors.Is(err, domain.ErrShowingBusy):
		s.println("Someone else is booking this showing right now. Please try again.")
	case errors.Is(err, domain.ErrNotFound):
		s.println("This booking no longer exists.")
	default:
		s.logger.WithError(err).WithField("booking_id", choice.ID.String()).Error("cancellation failed")
		s.println(msgSomething)
	}
	return nil
}

func joinSeats(seats []domain.SeatLabel, sep string) string {
	labels := make([]string, len(seats))
	for i, l := range seats {
		labels[i] = string(l)
	}
	return strings.Join(labels, sep)
}
