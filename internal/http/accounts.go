package http

import (
	"bytes"
	"net/http"

	"github.com/robertarktes/cinema-seat-booking/internal/domain"
	"github.com/robertarktes/cinema-seat-booking/internal/report"
)

type profileResponse struct {
	Username  string `json:"username"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

func toProfile(u domain.User) profileResponse {
	return profileResponse{
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Role:      string(u.Role),
	}
}

type registerRequest struct {
	Username  string `json:"username" validate:"required,max=64"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"firstname" validate:"max=100"`
	LastName  string `json:"lastname" validate:"max=100"`
	Email     string `json:"email" validate:"omitempty,email"`
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.accounts.Register(r.Context(), domain.User{
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProfile(u))
}

func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	u, _ := userFrom(r.Context())
	writeJSON(w, http.StatusOK, toProfile(u))
}

type updateProfileRequest struct {
	Field string `json:"field" validate:"required,oneof=password firstname lastname email"`
	Value string `json:"value"`
}

func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	u, _ := userFrom(r.Context())
	var req updateProfileRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := h.accounts.UpdateProfile(r.Context(), u, domain.ProfileField(req.Field), req.Value)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfile(updated))
}

// ExportReport returns the seat report as a CSV download.
func (h *Handlers) ExportReport(w http.ResponseWriter, r *http.Request) {
	u, _ := userFrom(r.Context())
	if err := u.Require(domain.CapExportReport); err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := h.reports.WriteCSV(r.Context(), u, &buf); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.FileName(h.now())+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
