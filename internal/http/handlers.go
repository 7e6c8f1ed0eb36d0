package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/robertarktes/cinema-seat-booking/internal/account"
	"github.com/robertarktes/cinema-seat-booking/internal/booking"
	"github.com/robertarktes/cinema-seat-booking/internal/catalog"
	"github.com/robertarktes/cinema-seat-booking/internal/domain"
	"github.com/robertarktes/cinema-seat-booking/internal/report"
)

// PathDateLayout is the screening date format used in URLs.
const PathDateLayout = "2006-01-02"

type Handlers struct {
	accounts *account.Service
	catalog  *catalog.Service
	bookings *booking.Service
	reports  *report.Exporter
	ready    func(ctx context.Context) error
	validate *validator.Validate
	now      func() time.Time
}

// NewHandlers wires the API handlers. ready backs /v1/readyz and may be nil.
func NewHandlers(accounts *account.Service, catalog *catalog.Service, bookings *booking.Service, reports *report.Exporter, ready func(ctx context.Context) error) *Handlers {
	return &Handlers{
		accounts: accounts,
		catalog:  catalog,
		bookings: bookings,
		reports:  reports,
		ready:    ready,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

// decode reads a JSON body into dst and runs its validate tags.
func (h *Handlers) decode(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Wrapf(domain.ErrInvalidInput, "malformed body: %v", err)
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = fe.Field() + " " + fe.Tag()
			}
			return errors.Wrapf(domain.ErrInvalidInput, "invalid fields: %s", strings.Join(fields, ", "))
		}
		return errors.Wrap(domain.ErrInvalidInput, err.Error())
	}
	return nil
}

type filmResponse struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type showingResponse struct {
	FilmID int64  `json:"film_id"`
	Date   string `json:"date"`
	Time   string `json:"time"`
}

func toFilm(f domain.Film) filmResponse {
	return filmResponse{ID: f.ID, Title: f.Title, Description: f.Description}
}

func toShowing(s domain.Showing) showingResponse {
	return showingResponse{FilmID: s.FilmID, Date: s.Date.Format(PathDateLayout), Time: s.Time}
}

func (h *Handlers) ListFilms(w http.ResponseWriter, r *http.Request) {
	films, err := h.catalog.Films(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]filmResponse, len(films))
	for i, f := range films {
		out[i] = toFilm(f)
	}
	writeJSON(w, http.StatusOK, out)
}

type createFilmRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Date        string `json:"date" validate:"required"`
	Time        string `json:"time" validate:"required"`
}

// CreateFilm adds a film with its first showing.
func (h *Handlers) CreateFilm(w http.ResponseWriter, r *http.Request) {
	u, _ := userFrom(r.Context())
	var req createFilmRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	date, err := parsePathDate(req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	film, showing, err := h.catalog.AddFilm(r.Context(), u, req.Title, req.Description, date, req.Time)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"film":    toFilm(film),
		"showing": toShowing(showing),
	})
}

func (h *Handlers) ListShowings(w http.ResponseWriter, r *http.Request) {
	filmID, err := filmIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.catalog.ListShowings(r.Context(), filmID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]showingResponse, len(list))
	for i, s := range list {
		out[i] = toShowing(s)
	}
	writeJSON(w, http.StatusOK, out)
}

type createShowingRequest struct {
	Date string `json:"date" validate:"required"`
	Time string `json:"time" validate:"required"`
}

func (h *Handlers) CreateShowing(w http.ResponseWriter, r *http.Request) {
	u, _ := userFrom(r.Context())
	filmID, err := filmIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req createShowingRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	date, err := parsePathDate(req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	showing, err := h.catalog.AddShowing(r.Context(), u, filmID, date, req.Time)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toShowing(showing))
}

type seatsResponse struct {
	Showing      showingResponse `json:"showing"`
	Availability []bool          `json:"availability"`
	Grid         []string        `json:"grid"`
	Available    int             `json:"available"`
	Taken        int             `json:"taken"`
}

// GetSeats returns the seat map of one showing: 25 availability flags in
// row-major order, the grid as one string per row and the counts.
func (h *Handlers) GetSeats(w http.ResponseWriter, r *http.Request) {
	showing, err := showingParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	row, err := h.bookings.Grid(r.Context(), showing)
	if err != nil {
		writeError(w, r, err)
		return
	}
	available, taken := row.Counts()
	resp := seatsResponse{
		Showing:      toShowing(showing),
		Availability: row.Availability(),
		Available:    available,
		Taken:        taken,
	}
	for i := 0; i < len(domain.SeatRows); i++ {
		var b strings.Builder
		for _, st := range row[i*domain.SeatColumns : (i+1)*domain.SeatColumns] {
			b.WriteByte(byte(st))
		}
		resp.Grid = append(resp.Grid, b.String())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			loggerFrom(r.Context()).WithError(err).Warn("not ready")
			http.Error(w, "Not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Ready"))
}

func filmIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "filmID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Wrapf(domain.ErrInvalidInput, "film id %q", raw)
	}
	return id, nil
}

func showingParams(r *http.Request) (domain.Showing, error) {
	filmID, err := filmIDParam(r)
	if err != nil {
		return domain.Showing{}, err
	}
	date, err := parsePathDate(chi.URLParam(r, "date"))
	if err != nil {
		return domain.Showing{}, err
	}
	return domain.NewShowing(filmID, date, chi.URLParam(r, "time")), nil
}

// parsePathDate accepts 2006-01-02 as well as the 2006/01/02 form shown to users.
func parsePathDate(s string) (time.Time, error) {
	if t, err := time.Parse(PathDateLayout, s); err == nil {
		return t, nil
	}
	return domain.ParseDate(s)
}
