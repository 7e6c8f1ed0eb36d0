package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/robertarktes/cinema-seat-booking/internal/domain"
)

type bookingResponse struct {
	ID        uuid.UUID       `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Username  string          `json:"username"`
	Showing   showingResponse `json:"showing"`
	Seats     []string        `json:"seats"`
}

func toBooking(b domain.Booking) bookingResponse {
	seats := make([]string, len(b.Seats))
	for i, s := range b.Seats {
		seats[i] = string(s)
	}
	return bookingResponse{
		ID:        b.ID,
		CreatedAt: b.CreatedAt,
		Username:  b.Username,
		Showing:   toShowing(b.Showing),
		Seats:     seats,
	}
}

type createBookingRequest struct {
	FilmID int64    `json:"film_id" validate:"required,gt=0"`
	Date   string   `json:"date" validate:"required"`
	Time   string   `json:"time" validate:"required"`
	Seats  []string `json:"seats" validate:"required,min=1,max=25,dive,required"`
}

// CreateBooking reserves seats for the authenticated customer.
func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	u, _ := userFrom(r.Context())
	var req createBookingRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	date, err := parsePathDate(req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	seats, err := domain.ParseSeatSelection(strings.Join(req.Seats, " "))
	if err != nil {
		writeError(w, r, err)
		return
	}

	b, err := h.bookings.Reserve(r.Context(), domain.NewShowing(req.FilmID, date, req.Time), u, seats)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/bookings/"+b.ID.String())
	writeJSON(w, http.StatusCreated, toBooking(b))
}

func (h *Handlers) ListBookings(w http.ResponseWriter, r *http.Request) {
	u, _ := userFrom(r.Context())
	list, err := h.bookings.History(r.Context(), u.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]bookingResponse, len(list))
	for i, b := range list {
		out[i] = toBooking(b)
	}
	writeJSON(w, http.StatusOK, out)
}

// CancelBooking releases the seats of one of the customer's future bookings.
func (h *Handlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	u, _ := userFrom(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, errors.Wrap(domain.ErrInvalidInput, "invalid booking id"))
		return
	}
	b, err := h.bookings.Cancel(r.Context(), u, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBooking(b))
}
