package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimeMarkLayout renders a booking's creation time.
const TimeMarkLayout = "2006/01/02 15:04"

// Booking is a confirmed reservation of seats for one showing.
type Booking struct {
	ID        uuid.UUID
	CreatedAt time.Time
	Username  string
	Showing   Showing
	Seats     []SeatLabel
}

func NewBooking(showing Showing, username string, seats []SeatLabel, now time.Time) Booking {
	cp := make([]SeatLabel, len(seats))
	copy(cp, seats)
	return Booking{
		ID:        uuid.New(),
		CreatedAt: now,
		Username:  username,
		Showing:   showing,
		Seats:     cp,
	}
}

// SeatString joins the seats with spaces, keeping the order they were requested in.
func (b Booking) SeatString() string {
	labels := make([]string, len(b.Seats))
	for i, s := range b.Seats {
		labels[i] = string(s)
	}
	return strings.Join(labels, " ")
}

func (b Booking) TimeMark() string {
	return b.CreatedAt.Format(TimeMarkLayout)
}

// ParseSeatString is the inverse of SeatString. It does not validate labels.
func ParseSeatString(s string) []SeatLabel {
	fields := strings.Fields(s)
	out := make([]SeatLabel, len(fields))
	for i, f := range fields {
		out[i] = SeatLabel(f)
	}
	return out
}
