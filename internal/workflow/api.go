package workflow

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ocupmed/platform/internal/appointment"
	"github.com/ocupmed/platform/internal/shared/auth"
	"github.com/ocupmed/platform/internal/shared/errors"
	"github.com/ocupmed/platform/internal/shared/types"
)

// Handler exposes the workflow facade over HTTP
type Handler struct {
	service *Service
}

// NewHandler creates a new workflow handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes registers the workflow routes. Consultation creation hangs off the
// patient path because the sequencing rules are evaluated per patient.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/patients/{patientID}", func(r chi.Router) {
		r.Get("/consultation-types", h.ListConsultationTypes)
		r.Get("/consultations", h.ListConsultations)
		r.Post("/consultations", h.CreateConsultation)
		r.Get("/appointments", h.ListAppointments)
	})

	r.Route("/consultations/{consultationID}", func(r chi.Router) {
		r.Get("/", h.GetConsultation)
		r.Get("/deletion-preview", h.PreviewConsultationDeletion)
		r.Delete("/", h.DeleteConsultation)
	})

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", h.ScheduleAppointment)
		r.Get("/agenda", h.Agenda)

		r.Route("/{appointmentID}", func(r chi.Router) {
			r.Get("/", h.GetAppointment)
			r.Post("/cancel", h.transition(appointment.StatusCancelled))
			r.Post("/complete", h.transition(appointment.StatusCompleted))
			r.Post("/no-show", h.transition(appointment.StatusNoShow))
			r.Post("/reschedule", h.transition(appointment.StatusRescheduled))
			r.Get("/deletion-preview", h.PreviewAppointmentDeletion)
			r.Delete("/", h.DeleteAppointment)
		})
	})

	return r
}

func (h *Handler) ListConsultationTypes(w http.ResponseWriter, r *http.Request) {
	patientID, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	available, err := h.service.ListCreatableConsultationTypes(r.Context(), patientID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"types": available})
}

func (h *Handler) ListConsultations(w http.ResponseWriter, r *http.Request) {
	patientID, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	consultations, err := h.service.ListConsultations(r.Context(), patientID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  consultations,
		"total": len(consultations),
	})
}

func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	patientID, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	appointments, err := h.service.ListAppointments(r.Context(), patientID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  appointments,
		"total": len(appointments),
	})
}

func (h *Handler) GetConsultation(w http.ResponseWriter, r *http.Request) {
	consultationID, err := types.ParseID(chi.URLParam(r, "consultationID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid consultation ID"))
		return
	}

	c, err := h.service.GetConsultation(r.Context(), consultationID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	appointmentID, err := types.ParseID(chi.URLParam(r, "appointmentID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid appointment ID"))
		return
	}

	a, err := h.service.GetAppointment(r.Context(), appointmentID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) CreateConsultation(w http.ResponseWriter, r *http.Request) {
	patientID, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	var input CreateConsultationInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	doctorID := auth.ActingDoctorID(r)
	if doctorID.IsZero() {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	c, err := h.service.CreateConsultation(r.Context(), patientID, doctorID, input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) ScheduleAppointment(w http.ResponseWriter, r *http.Request) {
	var input ScheduleInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	doctorID := auth.ActingDoctorID(r)
	if doctorID.IsZero() {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	a, err := h.service.ScheduleAppointment(r.Context(), doctorID, input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, a)
}

// transition builds a handler for one lifecycle endpoint. The target status
// comes from the route, never from the body.
func (h *Handler) transition(target appointment.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appointmentID, err := types.ParseID(chi.URLParam(r, "appointmentID"))
		if err != nil {
			writeError(w, errors.BadRequest("invalid appointment ID"))
			return
		}

		var input StatusChangeInput
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
				writeError(w, errors.BadRequest("invalid request body"))
				return
			}
		}

		doctorID := auth.ActingDoctorID(r)
		if doctorID.IsZero() {
			writeError(w, errors.Unauthorized("authentication required"))
			return
		}

		result, err := h.service.ChangeAppointmentStatus(r.Context(), appointmentID, doctorID, target, input)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func (h *Handler) Agenda(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	doctorID := auth.ActingDoctorID(r)
	if v := r.URL.Query().Get("doctor_id"); v != "" && user.IsAdmin() {
		parsed, err := types.ParseID(v)
		if err != nil {
			writeError(w, errors.BadRequest("invalid doctor ID"))
			return
		}
		doctorID = parsed
	}

	now := time.Now()
	from := now.Truncate(24 * time.Hour)
	to := from.Add(24 * time.Hour)

	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, errors.BadRequest("invalid from time"))
			return
		}
		from = parsed
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, errors.BadRequest("invalid to time"))
			return
		}
		to = parsed
	}

	entries, err := h.service.Agenda(r.Context(), doctorID, from, to)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  entries,
		"total": len(entries),
	})
}

func (h *Handler) PreviewConsultationDeletion(w http.ResponseWriter, r *http.Request) {
	consultationID, err := types.ParseID(chi.URLParam(r, "consultationID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid consultation ID"))
		return
	}

	warning, err := h.service.PreviewConsultationDeletion(r.Context(), consultationID, auth.ActingDoctorID(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, warning)
}

func (h *Handler) PreviewAppointmentDeletion(w http.ResponseWriter, r *http.Request) {
	appointmentID, err := types.ParseID(chi.URLParam(r, "appointmentID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid appointment ID"))
		return
	}

	warning, err := h.service.PreviewAppointmentDeletion(r.Context(), appointmentID, auth.ActingDoctorID(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, warning)
}

func (h *Handler) DeleteConsultation(w http.ResponseWriter, r *http.Request) {
	consultationID, err := types.ParseID(chi.URLParam(r, "consultationID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid consultation ID"))
		return
	}

	if err := h.service.DeleteConsultation(r.Context(), consultationID, auth.ActingDoctorID(r)); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteAppointment(w http.ResponseWriter, r *http.Request) {
	appointmentID, err := types.ParseID(chi.URLParam(r, "appointmentID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid appointment ID"))
		return
	}

	if err := h.service.DeleteAppointment(r.Context(), appointmentID, auth.ActingDoctorID(r)); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
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
