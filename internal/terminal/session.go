// Package terminal is the line-oriented menu client of the cinema. One
// Session serves one person at a keyboard; several sessions may share the
// same services.
package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/cinema-seat-booking/internal/account"
	"github.com/robertarktes/cinema-seat-booking/internal/booking"
	"github.com/robertarktes/cinema-seat-booking/internal/catalog"
	"github.com/robertarktes/cinema-seat-booking/internal/domain"
	"github.com/robertarktes/cinema-seat-booking/internal/observability"
	"github.com/robertarktes/cinema-seat-booking/internal/report"
)

const (
	msgInvalid      = "Invalid input!"
	msgInvalidRetry = "Invalid input! Please try again."
	msgSomething    = "Something is wrong. Please try again."
)

type Services struct {
	Accounts *account.Service
	Catalog  *catalog.Service
	Bookings *booking.Service
	Reports  *report.Exporter
}

type Session struct {
	Services

	in     *bufio.Scanner
	out    io.Writer
	logger observability.Logger
	now    func() time.Time
	create func(name string) (io.WriteCloser, error)
}

type Option func(*Session)

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithFileCreator replaces os.Create for report exports.
func WithFileCreator(create func(name string) (io.WriteCloser, error)) Option {
	return func(s *Session) { s.create = create }
}

func NewSession(svc Services, in io.Reader, out io.Writer, logger observability.Logger, opts ...Option) *Session {
	s := &Session{
		Services: svc,
		in:       bufio.NewScanner(in),
		out:      out,
		logger:   logger,
		now:      time.Now,
		create: func(name string) (io.WriteCloser, error) {
			return os.Create(name)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run serves menus until the user exits or the input ends.
func (s *Session) Run(ctx context.Context) error {
	s.banner("Welcome to THE CINEMA")
	err := s.loop(ctx)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	s.println("")
	s.banner("Bye Bye. See you next time!")
	return nil
}

func (s *Session) loop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		choice, err := s.pick("'A' if you are an admin; 'C' if you are a customer; 'N' to create a new account; 'E' to exit: ",
			msgInvalid, "A", "C", "N", "E")
		if err != nil {
			return err
		}

		role := domain.RoleCustomer
		switch choice {
		case "E":
			return nil
		case "N":
			if err := s.register(ctx); err != nil {
				return err
			}
		case "A":
			role = domain.RoleAdmin
		}

		u, err := s.login(ctx, role)
		if err != nil {
			return err
		}
		if u.Role == domain.RoleAdmin {
			err = s.adminMenu(ctx, u)
		} else {
			err = s.customerMenu(ctx, u)
		}
		if err != nil {
			return err
		}
		s.printf("%s logged out successfully!\n\n", u.Username)
	}
}

func (s *Session) register(ctx context.Context) error {
	username, err := s.ask("Username: ")
	if err != nil {
		return err
	}
	for {
		taken, err := s.usernameTaken(ctx, username)
		if err != nil {
			return err
		}
		if !taken && strings.TrimSpace(username) != "" {
			break
		}
		if username, err = s.ask("Oops! The username is not available. Please try another one: "); err != nil {
			return err
		}
	}

	var password string
	for {
		if password, err = s.ask("Password: "); err != nil {
			return err
		}
		confirm, err := s.ask("Please confirm your password: ")
		if err != nil {
			return err
		}
		if password == confirm && password != "" {
			break
		}
		s.println("Password does not match, please try again.")
	}

	u := domain.User{Username: username, Password: password}
	if u.FirstName, err = s.ask("Your first name: "); err != nil {
		return err
	}
	if u.LastName, err = s.ask("Your last name: "); err != nil {
		return err
	}
	if u.Email, err = s.ask("Your email: "); err != nil {
		return err
	}
	if _, err := s.Accounts.Register(ctx, u); err != nil {
		return errors.Wrap(err, "register customer")
	}
	s.println("Account created!")
	s.println("Please log in...")
	return nil
}

func (s *Session) usernameTaken(ctx context.Context, username string) (bool, error) {
	_, err := s.Accounts.Profile(ctx, strings.TrimSpace(username))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrNotFound):
		return false, nil
	}
	return false, err
}

func (s *Session) login(ctx context.Context, role domain.Role) (domain.User, error) {
	username, err := s.ask("Username: ")
	if err != nil {
		return domain.User{}, err
	}
	password, err := s.ask("Password: ")
	if err != nil {
		return domain.User{}, err
	}
	for {
		u, err := s.Accounts.Login(ctx, role, username, password)
		switch {
		case err == nil:
			s.println("Logged in successfully!")
			return u, nil
		case errors.Is(err, domain.ErrNotFound):
			s.println("The username doesn't exist! Please try again.")
			if username, err = s.ask("Username: "); err != nil {
				return domain.User{}, err
			}
		case errors.Is(err, domain.ErrForbidden):
			s.println("The password is not correct! Please try again.")
		default:
			return domain.User{}, err
		}
		if password, err = s.ask("Password: "); err != nil {
			return domain.User{}, err
		}
	}
}

// selectDate lists the screening dates and returns the chosen one. ok is
// false when nothing is scheduled.
func (s *Session) selectDate(ctx context.Context) (date time.Time, ok bool, err error) {
	dates, err := s.Catalog.Dates(ctx)
	if err != nil {
		return time.Time{}, false, err
	}
	if len(dates) == 0 {
		s.println("No screening is scheduled yet.")
		return time.Time{}, false, nil
	}
	labels := make([]string, len(dates))
	for i, d := range dates {
		labels[i] = d.Format(domain.DateLayout)
	}
	i, err := s.choose("Please select a date: ", labels)
	if err != nil {
		return time.Time{}, false, err
	}
	return dates[i], true, nil
}

func (s *Session) selectFilm(films []domain.Film) (domain.Film, error) {
	rows := make([][]string, len(films))
	for i, f := range films {
		rows[i] = []string{strconv.FormatInt(f.ID, 10), f.Title, f.Description}
	}
	s.table("Films", []string{"ID", "Film", "Description"}, rows)

	for {
		raw, err := s.ask("Please enter the film ID: ")
		if err != nil {
			return domain.Film{}, err
		}
		id, convErr := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if convErr == nil {
			for _, f := range films {
				if f.ID == id {
					return f, nil
				}
			}
		}
		s.println("Invalid film ID. Please try again.")
	}
}

// selectShowing asks for one of the film's time slots on date. ok is false
// when the film has none that day.
func (s *Session) selectShowing(ctx context.Context, filmID int64, date time.Time) (domain.Showing, bool, error) {
	showings, err := s.Catalog.ShowingsOn(ctx, filmID, date)
	if err != nil {
		return domain.Showing{}, false, err
	}
	if len(showings) == 0 {
		s.println("No available time slot on this day...\nPlease try again.")
		return domain.Showing{}, false, nil
	}
	labels := make([]string, len(showings))
	for i, sh := range showings {
		labels[i] = sh.Time
	}
	i, err := s.choose("Please select a time slot: ", labels)
	if err != nil {
		return domain.Showing{}, false, err
	}
	return showings[i], true, nil
}

// choose prints a numbered list and returns the zero-based index picked.
func (s *Session) choose(prompt string, options []string) (int, error) {
	for {
		s.println("")
		for i, o := range options {
			s.printf("%d: %s\n", i+1, o)
		}
		raw, err := s.ask(prompt)
		if err != nil {
			return 0, err
		}
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n >= 1 && n <= len(options) {
			return n - 1, nil
		}
		s.println(msgInvalidRetry)
	}
}

// pick re-prompts until the answer is one of the options, compared case
// insensitively. The option is returned as given.
func (s *Session) pick(prompt, invalid string, options ...string) (string, error) {
	for {
		raw, err := s.ask(prompt)
		if err != nil {
			return "", err
		}
		for _, o := range options {
			if strings.EqualFold(strings.TrimSpace(raw), o) {
				return o, nil
			}
		}
		s.println(invalid)
	}
}

func (s *Session) ask(prompt string) (string, error) {
	fmt.Fprint(s.out, prompt)
	if !s.in.Scan() {
		if err := s.in.Err(); err != nil {
			return "", errors.Wrap(err, "read input")
		}
		return "", io.EOF
	}
	return strings.TrimRight(s.in.Text(), "\r"), nil
}

func (s *Session) println(line string) {
	fmt.Fprintln(s.out, line)
}

func (s *Session) printf(format string, args ...interface{}) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *Session) banner(text string) {
	rule := strings.Repeat("-", len(text)+8)
	s.printf("%s\n    %s\n%s\n\n", rule, text, rule)
}

func (s *Session) table(title string, header []string, rows [][]string) {
	s.printf("\n%s\n", title)
	tw := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	_ = tw.Flush()
	s.println("")
}
