package booking

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/cinema-seat-booking/internal/domain"
	"github.com/robertarktes/cinema-seat-booking/internal/observability"
)

// Service is the only writer of the seat ledger and the booking ledger.
type Service struct {
	store       Store
	catalog     Catalog
	locker      Locker
	auditor     Auditor
	logger      observability.Logger
	now         func() time.Time
	lockWait    time.Duration
	maxAttempts int
	backoff     time.Duration
}

type Option func(*Service)

// WithLocker replaces the default in-process locker, e.g. with a redis lock
// shared by several API instances.
func WithLocker(l Locker) Option {
	return func(s *Service) { s.locker = l }
}

func WithAuditor(a Auditor) Option {
	return func(s *Service) { s.auditor = a }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLockWait(d time.Duration) Option {
	return func(s *Service) { s.lockWait = d }
}

// WithMaxAttempts bounds how often a reservation is retried after losing a
// serialization race in the store.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func WithRetryBackoff(d time.Duration) Option {
	return func(s *Service) { s.backoff = d }
}

func NewService(store Store, catalog Catalog, logger observability.Logger, opts ...Option) *Service {
	s := &Service{
		store:       store,
		catalog:     catalog,
		locker:      NewLocalLocker(),
		logger:      logger,
		now:         time.Now,
		lockWait:    2 * time.Second,
		maxAttempts: 3,
		backoff:     50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsValidSeatLabel reports whether label names one of the 25 seats.
func (s *Service) IsValidSeatLabel(label string) bool {
	return domain.IsValidSeatLabel(label)
}

// Grid returns the current seat ledger row of the showing.
func (s *Service) Grid(ctx context.Context, showing domain.Showing) (domain.SeatStates, error) {
	row, err := s.store.SeatStates(ctx, showing)
	if err != nil {
		return domain.SeatStates{}, errors.Wrapf(err, "seats of showing %s", showing.Key())
	}
	return row, nil
}

// Availability returns 25 flags in row-major order, true meaning available.
func (s *Service) Availability(ctx context.Context, showing domain.Showing) ([]bool, error) {
	row, err := s.Grid(ctx, showing)
	if err != nil {
		return nil, err
	}
	return row.Availability(), nil
}

func (s *Service) CountAvailable(ctx context.Context, showing domain.Showing) (available, taken int, err error) {
	row, err := s.Grid(ctx, showing)
	if err != nil {
		return 0, 0, err
	}
	available, taken = row.Counts()
	return available, taken, nil
}

// History lists the bookings held by username.
func (s *Service) History(ctx context.Context, username string) ([]domain.Booking, error) {
	bookings, err := s.store.BookingsByUser(ctx, username)
	if err != nil {
		return nil, errors.Wrapf(err, "bookings of %q", username)
	}
	return bookings, nil
}

func (s *Service) Booking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	return s.store.Booking(ctx, id)
}

func (s *Service) lock(ctx context.Context, showing domain.Showing) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	start := time.Now()
	release, err := s.locker.Acquire(ctx, "showing:"+showing.Key(), s.lockWait)
	observability.SeatLockWait.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	return release, nil
}

func (s *Service) audit(ctx context.Context, entry AuditEntry) {
	if s.auditor == nil {
		return
	}
	entry.At = s.now()
	if err := s.auditor.Record(ctx, entry); err != nil {
		s.logger.WithError(err).WithField("action", entry.Action).Warn("failed to record audit entry")
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeOK
	case errors.Is(err, domain.ErrStorageInconsistency):
		return observability.OutcomeInconsistent
	case errors.Is(err, domain.ErrInvalidSeatSelection), errors.Is(err, domain.ErrInvalidInput):
		return observability.OutcomeInvalid
	case errors.Is(err, domain.ErrSeatUnavailable), errors.Is(err, domain.ErrSerializationFailure):
		return observability.OutcomeUnavailable
	case errors.Is(err, domain.ErrShowingBusy):
		return observability.OutcomeBusy
	case errors.Is(err, domain.ErrNotFound):
		return observability.OutcomeNotFound
	case errors.Is(err, domain.ErrForbidden):
		return observability.OutcomeForbidden
	case errors.Is(err, domain.ErrCancellationWindowClosed):
		return observability.OutcomeWindowClosed
	}
	return observability.OutcomeError
}

func seatStrings(seats []domain.SeatLabel) []string {
	out := make([]string, len(seats))
	for i, s := range seats {
		out[i] = string(s)
	}
	return out
}
