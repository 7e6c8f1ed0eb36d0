// Package memory keeps the whole cinema in process memory. Transactions run
// one at a time against a private copy that replaces the live state on commit.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/cinema-seat-booking/internal/booking"
	"github.com/robertarktes/cinema-seat-booking/internal/domain"
	"github.com/robertarktes/cinema-seat-booking/internal/outbox"
)

// Fault points accepted by InjectFault.
const (
	OpSetSeats      = "set_seats"
	OpInsertBooking = "insert_booking"
	OpDeleteBooking = "delete_booking"
	OpEnqueue       = "enqueue"
	OpCommit        = "commit"
)

// Event is an outbox entry written by a committed transaction.
type Event struct {
	ID        uuid.UUID
	Type      string
	Payload   domain.BookingEvent
	CreatedAt time.Time
	Published bool
}

type state struct {
	films      map[int64]domain.Film
	nextFilmID int64
	showings   map[string]domain.Showing
	ledger     map[string]domain.SeatStates
	bookings   map[uuid.UUID]domain.Booking
	users      map[domain.Role]map[string]domain.User
	events     []Event
}

func newState() *state {
	return &state{
		films:    make(map[int64]domain.Film),
		showings: make(map[string]domain.Showing),
		ledger:   make(map[string]domain.SeatStates),
		bookings: make(map[uuid.UUID]domain.Booking),
		users: map[domain.Role]map[string]domain.User{
			domain.RoleAdmin:    {},
			domain.RoleCustomer: {},
		},
	}
}

func (s *state) clone() *state {
	c := &state{
		films:      make(map[int64]domain.Film, len(s.films)),
		nextFilmID: s.nextFilmID,
		showings:   make(map[string]domain.Showing, len(s.showings)),
		ledger:     make(map[string]domain.SeatStates, len(s.ledger)),
		bookings:   make(map[uuid.UUID]domain.Booking, len(s.bookings)),
		users:      make(map[domain.Role]map[string]domain.User, len(s.users)),
		events:     append([]Event(nil), s.events...),
	}
	for k, v := range s.films {
		c.films[k] = v
	}
	for k, v := range s.showings {
		c.showings[k] = v
	}
	for k, v := range s.ledger {
		c.ledger[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for role, users := range s.users {
		cp := make(map[string]domain.User, len(users))
		for k, v := range users {
			cp[k] = v
		}
		c.users[role] = cp
	}
	return c
}

type Store struct {
	mu     sync.Mutex
	st     *state
	faults map[string]error
}

func NewStore() *Store {
	return &Store{st: newState(), faults: make(map[string]error)}
}

// InjectFault makes the next call at op fail with err.
func (s *Store) InjectFault(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

func (s *Store) fault(op string) error {
	err := s.faults[op]
	delete(s.faults, op)
	return err
}

// update applies fn to a copy of the state and keeps it only on success.
func (s *Store) update(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.st.clone()
	if err := fn(work); err != nil {
		return err
	}
	if err := s.fault(OpCommit); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) read(fn func(st *state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.st)
}

func (s *Store) InTx(ctx context.Context, fn func(tx booking.LedgerTx) error) error {
	return s.update(func(st *state) error {
		return fn(&ledgerTx{store: s, st: st})
	})
}

func (s *Store) SeatStates(ctx context.Context, showing domain.Showing) (domain.SeatStates, error) {
	var (
		row domain.SeatStates
		ok  bool
	)
	s.read(func(st *state) { row, ok = st.ledger[showing.Key()] })
	if !ok {
		return domain.SeatStates{}, errors.Wrapf(domain.ErrNotFound, "seat ledger row %s", showing.Key())
	}
	return row, nil
}

func (s *Store) Booking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	var (
		b  domain.Booking
		ok bool
	)
	s.read(func(st *state) { b, ok = st.bookings[id] })
	if !ok {
		return domain.Booking{}, errors.Wrapf(domain.ErrNotFound, "booking %s", id)
	}
	return b, nil
}

func (s *Store) BookingsByUser(ctx context.Context, username string) ([]domain.Booking, error) {
	var out []domain.Booking
	s.read(func(st *state) {
		for _, b := range st.bookings {
			if b.Username == username {
				out = append(out, b)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Events returns every booking event committed so far.
func (s *Store) Events() []Event {
	var out []Event
	s.read(func(st *state) { out = append(out, st.events...) })
	return out
}

// Drain implements outbox.Source over the committed events.
func (s *Store) Drain(ctx context.Context, limit int, publish func(context.Context, outbox.Message) error) (int, error) {
	var pending []Event
	s.read(func(st *state) {
		for _, e := range st.events {
			if len(pending) == limit {
				break
			}
			if !e.Published {
				pending = append(pending, e)
			}
		}
	})

	sent := 0
	for _, e := range pending {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return sent, errors.Wrap(err, "marshal booking event")
		}
		err = publish(ctx, outbox.Message{
			ID:        e.ID,
			EventType: e.Type,
			Payload:   payload,
			DedupeKey: e.Type + ":" + e.Payload.BookingID.String(),
			CreatedAt: e.CreatedAt,
		})
		if err != nil {
			return sent, err
		}
		s.markPublished(e.ID)
		sent++
	}
	return sent, nil
}

func (s *Store) markPublished(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.st.events {
		if s.st.events[i].ID == id {
			s.st.events[i].Published = true
		}
	}
}

type ledgerTx struct {
	store *Store
	st    *state
}

func (t *ledgerTx) LockSeats(ctx context.Context, showing domain.Showing) (domain.SeatStates, error) {
	row, ok := t.st.ledger[showing.Key()]
	if !ok {
		return domain.SeatStates{}, errors.Wrapf(domain.ErrNotFound, "seat ledger row %s", showing.Key())
	}
	return row, nil
}

func (t *ledgerTx) SetSeats(ctx context.Context, showing domain.Showing, seats []domain.SeatLabel, from, to domain.SeatState) (bool, error) {
	if err := t.store.fault(OpSetSeats); err != nil {
		return false, err
	}
	row, ok := t.st.ledger[showing.Key()]
	if !ok {
		return false, nil
	}
	for _, seat := range seats {
		if row.State(seat) != from {
			return false, nil
		}
	}
	t.st.ledger[showing.Key()] = row.With(seats, to)
	return true, nil
}

func (t *ledgerTx) InsertBooking(ctx context.Context, b domain.Booking) error {
	if err := t.store.fault(OpInsertBooking); err != nil {
		return err
	}
	if _, ok := t.st.showings[b.Showing.Key()]; !ok {
		return errors.Wrapf(domain.ErrNotFound, "showing %s", b.Showing.Key())
	}
	if _, dup := t.st.bookings[b.ID]; dup {
		return errors.Wrapf(domain.ErrConflict, "booking %s", b.ID)
	}
	t.st.bookings[b.ID] = b
	return nil
}

func (t *ledgerTx) DeleteBooking(ctx context.Context, id uuid.UUID) (bool, error) {
	if err := t.store.fault(OpDeleteBooking); err != nil {
		return false, err
	}
	if _, ok := t.st.bookings[id]; !ok {
		return false, nil
	}
	delete(t.st.bookings, id)
	return true, nil
}

func (t *ledgerTx) Enqueue(ctx context.Context, eventType string, event domain.BookingEvent) error {
	if err := t.store.fault(OpEnqueue); err != nil {
		return err
	}
	t.st.events = append(t.st.events, Event{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   event,
		CreatedAt: event.OccurredAt,
	})
	return nil
}

// SeedShowing is a test convenience that creates a film if needed plus the
// showing and its ledger row.
func (s *Store) SeedShowing(showing domain.Showing, title string) {
	_ = s.update(func(st *state) error {
		if _, ok := st.films[showing.FilmID]; !ok {
			st.films[showing.FilmID] = domain.Film{ID: showing.FilmID, Title: title}
			if showing.FilmID > st.nextFilmID {
				st.nextFilmID = showing.FilmID
			}
		}
		st.showings[showing.Key()] = showing
		st.ledger[showing.Key()] = domain.NewSeatStates()
		return nil
	})
}

// SetLedger overwrites a ledger row; tests use it to corrupt state on purpose.
func (s *Store) SetLedger(showing domain.Showing, row domain.SeatStates) {
	_ = s.update(func(st *state) error {
		st.ledger[showing.Key()] = row
		return nil
	})
}

var (
	_ booking.Store = (*Store)(nil)
	_ outbox.Source = (*Store)(nil)
)

func sortShowings(list []domain.Showing) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		return a.FilmID < b.FilmID
	})
}

func sortDates(list []time.Time) {
	sort.Slice(list, func(i, j int) bool { return list[i].Before(list[j]) })
}
