package booking

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/cinema-seat-booking/internal/domain"
	"github.com/robertarktes/cinema-seat-booking/internal/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Cancel releases the seats of a future booking and removes the record, both
// in one transaction. It is never retried here; callers re-invoke explicitly.
func (s *Service) Cancel(ctx context.Context, customer domain.User, bookingID uuid.UUID) (domain.Booking, error) {
	ctx, span := observability.Tracer().Start(ctx, "booking.Cancel")
	defer span.End()
	span.SetAttributes(attribute.String("booking_id", bookingID.String()))

	log := s.logger.WithFields(map[string]interface{}{
		"booking_id": bookingID.String(),
		"username":   customer.Username,
	})

	b, err := s.cancel(ctx, customer, bookingID)
	observability.CancellationsTotal.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		switch {
		case errors.Is(err, domain.ErrStorageInconsistency):
			log.WithError(err).Error("storage inconsistency while cancelling booking")
			s.audit(ctx, AuditEntry{
				Action:    "booking.cancel_failed",
				Username:  customer.Username,
				BookingID: bookingID,
				Showing:   b.Showing,
				Seats:     b.Seats,
				Error:     err.Error(),
			})
		case errors.IsAny(err, domain.ErrCancellationWindowClosed, domain.ErrForbidden, domain.ErrNotFound, domain.ErrShowingBusy):
			log.WithError(err).Info("cancellation rejected")
		default:
			log.WithError(err).Error("cancellation failed")
		}
		return domain.Booking{}, err
	}

	log.WithFields(map[string]interface{}{
		"showing": b.Showing.Key(),
		"seats":   seatStrings(b.Seats),
	}).Info("booking cancelled")
	s.audit(ctx, AuditEntry{
		Action:    domain.EventBookingCancelled,
		Username:  b.Username,
		BookingID: b.ID,
		Showing:   b.Showing,
		Seats:     b.Seats,
	})
	return b, nil
}

// cancel returns the booking it worked on even on failure so the caller can
// log and audit it.
func (s *Service) cancel(ctx context.Context, customer domain.User, bookingID uuid.UUID) (domain.Booking, error) {
	if err := customer.Require(domain.CapCancel); err != nil {
		return domain.Booking{}, err
	}

	b, err := s.store.Booking(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, errors.Wrapf(err, "booking %s", bookingID)
	}
	if b.Username != customer.Username {
		return b, errors.Wrapf(domain.ErrForbidden, "booking %s belongs to another customer", bookingID)
	}
	if !b.Showing.InFutureOf(s.now()) {
		return b, errors.Wrapf(domain.ErrCancellationWindowClosed, "showing on %s", b.Showing.DateString())
	}

	release, err := s.lock(ctx, b.Showing)
	if err != nil {
		return b, err
	}
	defer release()

	wrote := false
	err = s.store.InTx(ctx, func(tx LedgerTx) error {
		row, err := tx.LockSeats(ctx, b.Showing)
		if errors.Is(err, domain.ErrNotFound) {
			return errors.Wrapf(domain.ErrStorageInconsistency, "no seat ledger row for showing %s", b.Showing.Key())
		}
		if err != nil {
			return err
		}
		for _, seat := range b.Seats {
			if row.State(seat) != domain.Taken {
				return errors.Wrapf(domain.ErrStorageInconsistency, "booked seat %s is not taken", string(seat))
			}
		}

		deleted, err := tx.DeleteBooking(ctx, b.ID)
		if err != nil {
			return errors.Wrap(err, "delete booking")
		}
		if !deleted {
			return errors.Wrapf(domain.ErrNotFound, "booking %s", b.ID)
		}
		wrote = true

		released, err := tx.SetSeats(ctx, b.Showing, b.Seats, domain.Taken, domain.Available)
		if err != nil {
			return errors.Wrap(err, "release seats")
		}
		if !released {
			return errors.Wrapf(domain.ErrStorageInconsistency, "seats %s changed during cancellation", b.SeatString())
		}
		return tx.Enqueue(ctx, domain.EventBookingCancelled, domain.NewBookingEvent(b, s.now()))
	})
	if err != nil && wrote && !errors.Is(err, domain.ErrStorageInconsistency) {
		// The booking row was already deleted inside the transaction when a
		// later step failed; surface it as fatal rather than a plain error.
		err = errors.Mark(errors.Wrap(err, "cancellation rolled back"), domain.ErrStorageInconsistency)
	}
	return b, err
}
