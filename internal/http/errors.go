package http

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/cinema-seat-booking/internal/domain"
)

type errorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Seats   []string `json:"seats,omitempty"`
}

// statusOf maps the domain error taxonomy onto HTTP.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidSeatSelection):
		return http.StatusBadRequest, "invalid_seat_selection"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrSeatUnavailable):
		return http.StatusConflict, "seat_unavailable"
	case errors.Is(err, domain.ErrShowingBusy), errors.Is(err, domain.ErrSerializationFailure):
		return http.StatusConflict, "showing_busy"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrCancellationWindowClosed):
		return http.StatusUnprocessableEntity, "cancellation_window_closed"
	case errors.Is(err, domain.ErrStorageInconsistency):
		return http.StatusInternalServerError, "storage_inconsistency"
	}
	return http.StatusInternalServerError, "internal"
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusOf(err)
	resp := errorResponse{Error: code, Message: err.Error()}

	var unavailable *domain.SeatUnavailableError
	if errors.As(err, &unavailable) {
		for _, s := range unavailable.Seats {
			resp.Seats = append(resp.Seats, string(s))
		}
	}
	if status >= http.StatusInternalServerError {
		loggerFrom(r.Context()).WithError(err).Error("request failed")
		if code == "internal" {
			resp.Message = "internal error"
		}
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
