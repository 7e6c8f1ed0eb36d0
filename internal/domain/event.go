package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventBookingCreated   = "booking.created"
	EventBookingCancelled = "booking.cancelled"
)

// BookingEvent is the payload published when the booking ledger changes.
type BookingEvent struct {
	BookingID  uuid.UUID `json:"booking_id" bson:"booking_id"`
	Username   string    `json:"username" bson:"username"`
	FilmID     int64     `json:"film_id" bson:"film_id"`
	Date       string    `json:"date" bson:"date"`
	Time       string    `json:"time" bson:"time"`
	Seats      []string  `json:"seats" bson:"seats"`
	OccurredAt time.Time `json:"occurred_at" bson:"occurred_at"`
}

func NewBookingEvent(b Booking, at time.Time) BookingEvent {
	seats := make([]string, len(b.Seats))
	for i, s := range b.Seats {
		seats[i] = string(s)
	}
	return BookingEvent{
		BookingID:  b.ID,
		Username:   b.Username,
		FilmID:     b.Showing.FilmID,
		Date:       b.Showing.DateString(),
		Time:       b.Showing.Time,
		Seats:      seats,
		OccurredAt: at,
	}
}
