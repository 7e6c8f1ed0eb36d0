package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/cinema-seat-booking/internal/domain"
)

// LedgerTx is the row-level access the service needs inside one transaction.
// It only ever touches the seat ledger, the booking ledger and the outbox.
type LedgerTx interface {
	// LockSeats reads the seat ledger row and holds it until the transaction ends.
	LockSeats(ctx context.Context, showing domain.Showing) (domain.SeatStates, error)
	// SetSeats moves every listed seat from one state to another. It reports
	// false, and changes nothing, unless all of them were in the from state.
	SetSeats(ctx context.Context, showing domain.Showing, seats []domain.SeatLabel, from, to domain.SeatState) (bool, error)
	InsertBooking(ctx context.Context, b domain.Booking) error
	DeleteBooking(ctx context.Context, id uuid.UUID) (bool, error)
	Enqueue(ctx context.Context, eventType string, event domain.BookingEvent) error
}

// Store owns the seat ledger and the booking ledger.
type Store interface {
	// InTx runs fn in a single transaction. Nothing fn wrote is visible
	// unless fn returns nil and the commit succeeds.
	InTx(ctx context.Context, fn func(tx LedgerTx) error) error
	SeatStates(ctx context.Context, showing domain.Showing) (domain.SeatStates, error)
	Booking(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	BookingsByUser(ctx context.Context, username string) ([]domain.Booking, error)
}

type Catalog interface {
	Exists(ctx context.Context, showing domain.Showing) (bool, error)
}

// Locker serialises work on one key across sessions. Acquire gives up with
// domain.ErrShowingBusy once wait has elapsed.
type Locker interface {
	Acquire(ctx context.Context, key string, wait time.Duration) (release func(), err error)
}

type AuditEntry struct {
	Action    string
	Username  string
	BookingID uuid.UUID
	Showing   domain.Showing
	Seats     []domain.SeatLabel
	Error     string
	At        time.Time
}

type Auditor interface {
	Record(ctx context.Context, entry AuditEntry) error
}
