package patient

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ocupmed/platform/internal/shared/errors"
	"github.com/ocupmed/platform/internal/shared/types"
)

// Handler provides HTTP handlers for the patient module
type Handler struct {
	repo *Repository
}

// NewHandler creates a new patient handler
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Routes registers the patient routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListPatients)
	r.Post("/", h.CreatePatient)

	r.Route("/{patientID}", func(r chi.Router) {
		r.Get("/", h.GetPatient)
		r.Get("/claim", h.GetClaim)
	})

	return r
}

type CreatePatientRequest struct {
	FirstName string             `json:"first_name"`
	LastName  string             `json:"last_name"`
	CUIL      string             `json:"cuil,omitempty"`
	BirthDate *time.Time         `json:"birth_date,omitempty"`
	Employer  string             `json:"employer,omitempty"`
	Address   *types.Address     `json:"address,omitempty"`
	Contact   *types.ContactInfo `json:"contact,omitempty"`
	Claim     *NewClaimInput     `json:"claim,omitempty"`
}

func (h *Handler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var req CreatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	var cuil types.CUIL
	if req.CUIL != "" {
		parsed, err := types.ParseCUIL(req.CUIL)
		if err != nil {
			writeError(w, errors.Validation("invalid CUIL", map[string]string{"cuil": err.Error()}))
			return
		}
		cuil = parsed
	}

	p, err := NewPatient(req.FirstName, req.LastName, cuil, req.Claim)
	if err != nil {
		writeError(w, errors.BadRequest(err.Error()))
		return
	}

	p.BirthDate = req.BirthDate
	p.Employer = req.Employer
	if req.Address != nil {
		p.Address = *req.Address
	}
	if req.Contact != nil {
		p.Contact = *req.Contact
	}

	if err := h.repo.Create(r.Context(), p); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	p, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	p, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if p.Claim == nil {
		writeError(w, errors.NotFound("insurance claim", id.String()))
		return
	}

	writeJSON(w, http.StatusOK, p.Claim)
}

func (h *Handler) ListPatients(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Search: r.URL.Query().Get("search"),
	}

	if t := r.URL.Query().Get("type"); t != "" {
		patientType := Type(t)
		filter.Type = &patientType
	}

	patients, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  patients,
		"total": total,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
