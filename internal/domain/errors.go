package domain

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	ErrSerializationFailure     = errors.New("serialization failure")
	ErrNotFound                 = errors.New("not found")
	ErrConflict                 = errors.New("conflict")
	ErrInvalidInput             = errors.New("invalid input")
	ErrInvalidSeatSelection     = errors.New("invalid seat selection")
	ErrSeatUnavailable          = errors.New("seat unavailable")
	ErrCancellationWindowClosed = errors.New("only future bookings can be cancelled")
	ErrStorageInconsistency     = errors.New("storage inconsistency")
	ErrShowingBusy              = errors.New("showing is busy, try again")
	ErrForbidden                = errors.New("forbidden")
)

// SeatUnavailableError names the requested seats that were already taken.
type SeatUnavailableError struct {
	Seats []SeatLabel
}

func (e *SeatUnavailableError) Error() string {
	labels := make([]string, len(e.Seats))
	for i, s := range e.Seats {
		labels[i] = string(s)
	}
	return fmt.Sprintf("seat(s) %s already taken", strings.Join(labels, ", "))
}

func (e *SeatUnavailableError) Is(target error) bool {
	return target == ErrSeatUnavailable
}

// Retryable reports whether the caller may re-prompt and try again.
func Retryable(err error) bool {
	return errors.IsAny(err,
		ErrInvalidSeatSelection,
		ErrSeatUnavailable,
		ErrShowingBusy,
		ErrSerializationFailure,
	)
}
