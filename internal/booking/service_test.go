package booking_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/cinema-seat-booking/internal/adapters/memory"
	"github.com/robertarktes/cinema-seat-booking/internal/booking"
	"github.com/robertarktes/cinema-seat-booking/internal/domain"
	"github.com/robertarktes/cinema-seat-booking/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"
)

var now = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

type recordingAuditor struct {
	mu      sync.Mutex
	entries []booking.AuditEntry
}

func (a *recordingAuditor) Record(ctx context.Context, e booking.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

func (a *recordingAuditor) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *memory.Store
	auditor *recordingAuditor
	svc     *booking.Service

	future domain.Showing
	today  domain.Showing
	past   domain.Showing

	alice domain.User
	bob   domain.User
	admin domain.User
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.NewStore()
	s.auditor = &recordingAuditor{}

	s.future = domain.NewShowing(1, now.AddDate(0, 0, 2), "19:30")
	s.today = domain.NewShowing(1, now, "21:00")
	s.past = domain.NewShowing(1, now.AddDate(0, 0, -3), "19:30")
	for _, sh := range []domain.Showing{s.future, s.today, s.past} {
		s.store.SeedShowing(sh, "Metropolis")
	}

	s.alice = domain.User{Username: "alice", Role: domain.RoleCustomer}
	s.bob = domain.User{Username: "bob", Role: domain.RoleCustomer}
	s.admin = domain.User{Username: "root", Role: domain.RoleAdmin}

	s.svc = s.newService()
}

func (s *ServiceSuite) newService(opts ...booking.Option) *booking.Service {
	base := []booking.Option{
		booking.WithClock(func() time.Time { return now }),
		booking.WithAuditor(s.auditor),
		booking.WithRetryBackoff(time.Millisecond),
	}
	return booking.NewService(s.store, s.store, observability.NopLogger(), append(base, opts...)...)
}

func (s *ServiceSuite) taken(showing domain.Showing) []domain.SeatLabel {
	row, err := s.store.SeatStates(s.ctx, showing)
	s.Require().NoError(err)
	var out []domain.SeatLabel
	for _, seat := range domain.AllSeats() {
		if row.State(seat) == domain.Taken {
			out = append(out, seat)
		}
	}
	return out
}

func (s *ServiceSuite) assertCountsSumTo25(showing domain.Showing) {
	available, taken, err := s.svc.CountAvailable(s.ctx, showing)
	s.Require().NoError(err)
	s.Equal(25, available+taken)
}

// seedBooking books seats on a showing regardless of the cancellation window.
func (s *ServiceSuite) seedBooking(showing domain.Showing, user domain.User, seats ...domain.SeatLabel) domain.Booking {
	b, err := s.svc.Reserve(s.ctx, showing, user, seats)
	s.Require().NoError(err)
	return b
}

func (s *ServiceSuite) TestReserveMarksExactlyRequestedSeats() {
	b, err := s.svc.Reserve(s.ctx, s.future, s.alice, []domain.SeatLabel{"B3", "B4"})
	s.Require().NoError(err)

	s.Equal("B3 B4", b.SeatString())
	s.Equal("alice", b.Username)
	s.Equal(now, b.CreatedAt)
	s.Equal([]domain.SeatLabel{"B3", "B4"}, s.taken(s.future))

	flags, err := s.svc.Availability(s.ctx, s.future)
	s.Require().NoError(err)
	s.Len(flags, 25)
	s.False(flags[7])
	s.False(flags[8])
	s.True(flags[6])

	available, taken, err := s.svc.CountAvailable(s.ctx, s.future)
	s.Require().NoError(err)
	s.Equal(23, available)
	s.Equal(2, taken)

	stored, err := s.store.Booking(s.ctx, b.ID)
	s.Require().NoError(err)
	s.Equal("B3 B4", stored.SeatString())

	events := s.store.Events()
	s.Require().Len(events, 1)
	s.Equal(domain.EventBookingCreated, events[0].Type)
	s.Equal([]string{"B3", "B4"}, events[0].Payload.Seats)
	s.Equal([]string{domain.EventBookingCreated}, s.auditor.actions())
}

func (s *ServiceSuite) TestReserveKeepsRequestOrder() {
	b, err := s.svc.Reserve(s.ctx, s.future, s.alice, []domain.SeatLabel{"C2", "A1", "E5"})
	s.Require().NoError(err)
	s.Equal("C2 A1 E5", b.SeatString())
}

func (s *ServiceSuite) TestReserveTakenSeatFailsWithoutSideEffects() {
	s.seedBooking(s.future, s.alice, "B3")
	before, err := s.store.SeatStates(s.ctx, s.future)
	s.Require().NoError(err)
	eventsBefore := len(s.store.Events())

	_, err = s.svc.Reserve(s.ctx, s.future, s.bob, []domain.SeatLabel{"A1", "B3"})
	s.Require().Error(err)
	s.True(errors.Is(err, domain.ErrSeatUnavailable))

	var unavailable *domain.SeatUnavailableError
	s.Require().True(errors.As(err, &unavailable))
	s.Equal([]domain.SeatLabel{"B3"}, unavailable.Seats)

	after, err := s.store.SeatStates(s.ctx, s.future)
	s.Require().NoError(err)
	s.Equal(before, after)
	s.Len(s.store.Events(), eventsBefore)

	history, err := s.svc.History(s.ctx, "bob")
	s.Require().NoError(err)
	s.Empty(history)
}

func (s *ServiceSuite) TestReserveRejectsInvalidSelection() {
	cases := map[string][]domain.SeatLabel{
		"empty":      nil,
		"bad row":    {"F1"},
		"bad column": {"A6"},
		"lower case": {"a1"},
		"duplicate":  {"B3", "B3"},
	}
	for name, seats := range cases {
		s.Run(name, func() {
			_, err := s.svc.Reserve(s.ctx, s.future, s.alice, seats)
			s.True(errors.Is(err, domain.ErrInvalidSeatSelection), "%v", err)
		})
	}
	s.Empty(s.taken(s.future))
}

func (s *ServiceSuite) TestReserveUnknownShowing() {
	unknown := domain.NewShowing(99, now.AddDate(0, 0, 1), "10:00")
	_, err := s.svc.Reserve(s.ctx, unknown, s.alice, []domain.SeatLabel{"A1"})
	s.True(errors.Is(err, domain.ErrNotFound))

	_, err = s.svc.Availability(s.ctx, unknown)
	s.True(errors.Is(err, domain.ErrNotFound))
}

func (s *ServiceSuite) TestReserveRequiresCustomerRole() {
	_, err := s.svc.Reserve(s.ctx, s.future, s.admin, []domain.SeatLabel{"A1"})
	s.True(errors.Is(err, domain.ErrForbidden))
	s.Empty(s.taken(s.future))
}

func (s *ServiceSuite) TestReserveRetriesSerializationFailure() {
	s.store.InjectFault(memory.OpCommit, domain.ErrSerializationFailure)

	b, err := s.svc.Reserve(s.ctx, s.future, s.alice, []domain.SeatLabel{"D4"})
	s.Require().NoError(err)
	s.Equal([]domain.SeatLabel{"D4"}, s.taken(s.future))

	history, err := s.svc.History(s.ctx, "alice")
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(b.ID, history[0].ID)
}

func (s *ServiceSuite) TestReserveGivesUpAfterMaxAttempts() {
	svc := s.newService(booking.WithMaxAttempts(1))
	s.store.InjectFault(memory.OpCommit, domain.ErrSerializationFailure)

	_, err := svc.Reserve(s.ctx, s.future, s.alice, []domain.SeatLabel{"D4"})
	s.True(errors.Is(err, domain.ErrSerializationFailure))
	s.Empty(s.taken(s.future))
}

func (s *ServiceSuite) TestReserveFailsFastWhenShowingIsLocked() {
	locker := booking.NewLocalLocker()
	svc := s.newService(booking.WithLocker(locker), booking.WithLockWait(10*time.Millisecond))

	release, err := locker.Acquire(s.ctx, "showing:"+s.future.Key(), 0)
	s.Require().NoError(err)
	defer release()

	_, err = svc.Reserve(s.ctx, s.future, s.alice, []domain.SeatLabel{"A1"})
	s.True(errors.Is(err, domain.ErrShowingBusy))
	s.True(domain.Retryable(err))
	s.Empty(s.taken(s.future))
}

func (s *ServiceSuite) TestConcurrentOverlappingReservations() {
	requests := [][]domain.SeatLabel{{"C1", "C2"}, {"C2", "C3"}}
	users := []domain.User{s.alice, s.bob}

	var (
		mu       sync.Mutex
		winners  []domain.Booking
		failures []error
	)
	g, ctx := errgroup.WithContext(s.ctx)
	for i := range requests {
		i := i
		g.Go(func() error {
			b, err := s.svc.Reserve(ctx, s.future, users[i], requests[i])
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				return nil
			}
			winners = append(winners, b)
			return nil
		})
	}
	s.Require().NoError(g.Wait())

	s.Require().Len(winners, 1)
	s.Require().Len(failures, 1)
	s.True(errors.Is(failures[0], domain.ErrSeatUnavailable))

	_, taken, err := s.svc.CountAvailable(s.ctx, s.future)
	s.Require().NoError(err)
	s.Equal(2, taken)
	s.ElementsMatch(winners[0].Seats, s.taken(s.future))
}

func (s *ServiceSuite) TestManyConcurrentReservationsNeverDoubleBook() {
	const sessions = 20
	var wg sync.WaitGroup
	results := make([]error, sessions)
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := domain.User{Username: uuid.NewString(), Role: domain.RoleCustomer}
			seat := domain.AllSeats()[i%5]
			_, results[i] = s.svc.Reserve(s.ctx, s.future, user, []domain.SeatLabel{seat})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range results {
		if err == nil {
			ok++
			continue
		}
		s.True(errors.Is(err, domain.ErrSeatUnavailable), "%v", err)
	}
	s.Equal(5, ok)
	s.Equal([]domain.SeatLabel{"A1", "A2", "A3", "A4", "A5"}, s.taken(s.future))
	s.assertCountsSumTo25(s.future)
}

func (s *ServiceSuite) TestCancelReleasesSeatsAndRemovesRecord() {
	b := s.seedBooking(s.future, s.alice, "B3", "B4")

	cancelled, err := s.svc.Cancel(s.ctx, s.alice, b.ID)
	s.Require().NoError(err)
	s.Equal(b.ID, cancelled.ID)

	s.Empty(s.taken(s.future))
	_, err = s.store.Booking(s.ctx, b.ID)
	s.True(errors.Is(err, domain.ErrNotFound))

	events := s.store.Events()
	s.Require().Len(events, 2)
	s.Equal(domain.EventBookingCancelled, events[1].Type)
	s.Equal([]string{domain.EventBookingCreated, domain.EventBookingCancelled}, s.auditor.actions())
	s.assertCountsSumTo25(s.future)
}

func (s *ServiceSuite) TestReserveCancelReserveRoundTrip() {
	first := s.seedBooking(s.future, s.alice, "B3", "B4")
	before := s.taken(s.future)

	_, err := s.svc.Cancel(s.ctx, s.alice, first.ID)
	s.Require().NoError(err)

	second, err := s.svc.Reserve(s.ctx, s.future, s.bob, []domain.SeatLabel{"B3", "B4"})
	s.Require().NoError(err)
	s.Equal(before, s.taken(s.future))
	s.Equal("B3 B4", second.SeatString())
}

func (s *ServiceSuite) TestCancelOutsideWindowLeavesEverythingUntouched() {
	for name, showing := range map[string]domain.Showing{"past": s.past, "today": s.today} {
		s.Run(name, func() {
			b := s.seedBooking(showing, s.alice, "A1")
			before, err := s.store.SeatStates(s.ctx, showing)
			s.Require().NoError(err)

			_, err = s.svc.Cancel(s.ctx, s.alice, b.ID)
			s.True(errors.Is(err, domain.ErrCancellationWindowClosed))
			s.False(domain.Retryable(err))

			after, err := s.store.SeatStates(s.ctx, showing)
			s.Require().NoError(err)
			s.Equal(before, after)
			_, err = s.store.Booking(s.ctx, b.ID)
			s.NoError(err)
		})
	}
}

func (s *ServiceSuite) TestCancelSomeoneElsesBooking() {
	b := s.seedBooking(s.future, s.alice, "A1")
	_, err := s.svc.Cancel(s.ctx, s.bob, b.ID)
	s.True(errors.Is(err, domain.ErrForbidden))
	s.Equal([]domain.SeatLabel{"A1"}, s.taken(s.future))
}

func (s *ServiceSuite) TestCancelUnknownBooking() {
	_, err := s.svc.Cancel(s.ctx, s.alice, uuid.New())
	s.True(errors.Is(err, domain.ErrNotFound))
}

func (s *ServiceSuite) TestCancelWriteFailureRollsBackBothSteps() {
	b := s.seedBooking(s.future, s.alice, "B3", "B4")
	s.store.InjectFault(memory.OpSetSeats, errors.New("disk full"))

	_, err := s.svc.Cancel(s.ctx, s.alice, b.ID)
	s.Require().Error(err)
	s.True(errors.Is(err, domain.ErrStorageInconsistency))

	// neither the delete nor the seat release became visible
	_, err = s.store.Booking(s.ctx, b.ID)
	s.NoError(err)
	s.Equal([]domain.SeatLabel{"B3", "B4"}, s.taken(s.future))
	s.Contains(s.auditor.actions(), "booking.cancel_failed")
}

func (s *ServiceSuite) TestCancelCommitFailureIsReportedAsInconsistency() {
	b := s.seedBooking(s.future, s.alice, "C3")
	s.store.InjectFault(memory.OpCommit, errors.New("connection reset"))

	_, err := s.svc.Cancel(s.ctx, s.alice, b.ID)
	s.True(errors.Is(err, domain.ErrStorageInconsistency))
	_, err = s.store.Booking(s.ctx, b.ID)
	s.NoError(err)
	s.Equal([]domain.SeatLabel{"C3"}, s.taken(s.future))
}

func (s *ServiceSuite) TestCancelDetectsLedgerDrift() {
	b := s.seedBooking(s.future, s.alice, "E1")
	s.store.SetLedger(s.future, domain.NewSeatStates())

	_, err := s.svc.Cancel(s.ctx, s.alice, b.ID)
	s.True(errors.Is(err, domain.ErrStorageInconsistency))
	_, err = s.store.Booking(s.ctx, b.ID)
	s.NoError(err)
}

func (s *ServiceSuite) TestHistoryOnlyListsOwnBookings() {
	s.seedBooking(s.future, s.alice, "A1")
	s.seedBooking(s.future, s.bob, "A2")
	s.seedBooking(s.past, s.alice, "A3")

	history, err := s.svc.History(s.ctx, "alice")
	s.Require().NoError(err)
	s.Len(history, 2)
	for _, b := range history {
		s.Equal("alice", b.Username)
	}
}

func TestLocalLockerBoundedWait(t *testing.T) {
	ctx := context.Background()
	l := booking.NewLocalLocker()

	release, err := l.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)

	start := time.Now()
	_, err = l.Acquire(ctx, "k", 20*time.Millisecond)
	assert.True(t, errors.Is(err, domain.ErrShowingBusy))
	assert.Less(t, time.Since(start), time.Second)

	other, err := l.Acquire(ctx, "other", 0)
	require.NoError(t, err)
	other()

	release()
	release()

	again, err := l.Acquire(ctx, "k", 0)
	require.NoError(t, err)
	again()
}

func TestLocalLockerWaitsForRelease(t *testing.T) {
	ctx := context.Background()
	l := booking.NewLocalLocker()

	release, err := l.Acquire(ctx, "k", 0)
	require.NoError(t, err)
	go func() {
		time.Sleep(10 * time.Millisecond)
		release()
	}()

	next, err := l.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	next()
}
