package booking

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/cinema-seat-booking/internal/domain"
	"github.com/robertarktes/cinema-seat-booking/internal/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Reserve marks the requested seats TAKEN and records the booking, or
// changes nothing. The returned booking keeps the seats in request order.
func (s *Service) Reserve(ctx context.Context, showing domain.Showing, customer domain.User, seats []domain.SeatLabel) (domain.Booking, error) {
	ctx, span := observability.Tracer().Start(ctx, "booking.Reserve")
	defer span.End()
	span.SetAttributes(
		attribute.String("showing", showing.Key()),
		attribute.StringSlice("seats", seatStrings(seats)),
	)

	log := s.logger.WithFields(map[string]interface{}{
		"showing":  showing.Key(),
		"username": customer.Username,
		"seats":    seatStrings(seats),
	})

	b, err := s.reserve(ctx, showing, customer, seats)
	observability.ReservationsTotal.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if domain.Retryable(err) || errors.IsAny(err, domain.ErrForbidden, domain.ErrInvalidInput) {
			log.WithError(err).Info("reservation rejected")
		} else {
			log.WithError(err).Error("reservation failed")
		}
		return domain.Booking{}, err
	}

	log.WithField("booking_id", b.ID.String()).Info("seats booked")
	s.audit(ctx, AuditEntry{
		Action:    domain.EventBookingCreated,
		Username:  b.Username,
		BookingID: b.ID,
		Showing:   b.Showing,
		Seats:     b.Seats,
	})
	return b, nil
}

func (s *Service) reserve(ctx context.Context, showing domain.Showing, customer domain.User, seats []domain.SeatLabel) (domain.Booking, error) {
	if err := customer.Require(domain.CapBook); err != nil {
		return domain.Booking{}, err
	}
	if err := domain.ValidateSelection(seats); err != nil {
		return domain.Booking{}, err
	}
	if err := showing.Validate(); err != nil {
		return domain.Booking{}, err
	}

	ok, err := s.catalog.Exists(ctx, showing)
	if err != nil {
		return domain.Booking{}, errors.Wrap(err, "look up showing")
	}
	if !ok {
		return domain.Booking{}, errors.Wrapf(domain.ErrNotFound, "showing %s", showing.Key())
	}

	release, err := s.lock(ctx, showing)
	if err != nil {
		return domain.Booking{}, err
	}
	defer release()

	for attempt := 1; ; attempt++ {
		b, err := s.reserveOnce(ctx, showing, customer.Username, seats)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, domain.ErrSerializationFailure) || attempt >= s.maxAttempts {
			return domain.Booking{}, err
		}
		s.logger.WithField("attempt", attempt).Debug("reservation lost a serialization race, retrying")
		select {
		case <-ctx.Done():
			return domain.Booking{}, ctx.Err()
		case <-time.After(time.Duration(attempt) * s.backoff):
		}
	}
}

// reserveOnce is one read-check-write pass against a fresh copy of the row.
func (s *Service) reserveOnce(ctx context.Context, showing domain.Showing, username string, seats []domain.SeatLabel) (domain.Booking, error) {
	b := domain.NewBooking(showing, username, seats, s.now())

	err := s.store.InTx(ctx, func(tx LedgerTx) error {
		row, err := tx.LockSeats(ctx, showing)
		if err != nil {
			return err
		}
		if occupied := row.Occupied(seats); len(occupied) > 0 {
			return &domain.SeatUnavailableError{Seats: occupied}
		}

		updated, err := tx.SetSeats(ctx, showing, seats, domain.Available, domain.Taken)
		if err != nil {
			return errors.Wrap(err, "mark seats taken")
		}
		if !updated {
			return &domain.SeatUnavailableError{Seats: seats}
		}

		if err := tx.InsertBooking(ctx, b); err != nil {
			return errors.Wrap(err, "insert booking")
		}
		return tx.Enqueue(ctx, domain.EventBookingCreated, domain.NewBookingEvent(b, b.CreatedAt))
	})
	if err != nil {
		return domain.Booking{}, err
	}
	return b, nil
}
