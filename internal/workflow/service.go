package workflow

import (
	"context"
	stderrors "errors"
	"log"
	"time"

	"github.com/ocupmed/platform/internal/appointment"
	"github.com/ocupmed/platform/internal/consultation"
	"github.com/ocupmed/platform/internal/patient"
	"github.com/ocupmed/platform/internal/shared/errors"
	"github.com/ocupmed/platform/internal/shared/events"
	"github.com/ocupmed/platform/internal/shared/metrics"
	"github.com/ocupmed/platform/internal/shared/types"
)

// Service is the single entry point external collaborators call. It is
// stateless: every operation is a read-validate-write sequence against the
// stores, so concurrent requests never need engine-side locks.
type Service struct {
	patients      PatientStore
	consultations ConsultationStore
	appointments  AppointmentStore
	bus           events.EventBus
}

// NewService creates the workflow facade. The event bus may be nil.
func NewService(patients PatientStore, consultations ConsultationStore, appointments AppointmentStore, bus events.EventBus) *Service {
	return &Service{
		patients:      patients,
		consultations: consultations,
		appointments:  appointments,
		bus:           bus,
	}
}

// ListCreatableConsultationTypes returns the consultation types the patient
// may create next, derived from classification and ordered history only.
func (s *Service) ListCreatableConsultationTypes(ctx context.Context, patientID types.ID) ([]consultation.Type, error) {
	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}

	history, err := s.consultations.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	return consultation.AvailableTypes(p, history), nil
}

// GetConsultation returns a single consultation
func (s *Service) GetConsultation(ctx context.Context, consultationID types.ID) (*consultation.Consultation, error) {
	return s.consultations.GetByID(ctx, consultationID)
}

// ListConsultations returns a patient's consultations ordered by creation time
func (s *Service) ListConsultations(ctx context.Context, patientID types.ID) ([]consultation.Consultation, error) {
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	return s.consultations.ListByPatient(ctx, patientID)
}

// GetAppointment returns a single appointment
func (s *Service) GetAppointment(ctx context.Context, appointmentID types.ID) (*appointment.Appointment, error) {
	return s.appointments.GetByID(ctx, appointmentID)
}

// ListAppointments returns a patient's appointments
func (s *Service) ListAppointments(ctx context.Context, patientID types.ID) ([]appointment.Appointment, error) {
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	return s.appointments.ListByPatient(ctx, patientID)
}

// CreateConsultationInput carries the payload for a new consultation
type CreateConsultationInput struct {
	Type              consultation.Type        `json:"type"`
	Reason            string                   `json:"reason"`
	Diagnosis         string                   `json:"diagnosis,omitempty"`
	Indications       string                   `json:"indications,omitempty"`
	Employer          string                   `json:"employer,omitempty"`
	NextAppointmentAt *time.Time               `json:"next_appointment_at,omitempty"`
	ART               *consultation.ARTDetails `json:"art,omitempty"`
}

// CreateConsultation validates the proposed consultation against the
// sequencing rules and persists it, applying claim side effects (ALTA
// closes, REINGRESO reopens) and spawning a follow-up appointment when a
// next-appointment date is given. The current state is always re-read here;
// a caller-held snapshot is never trusted.
func (s *Service) CreateConsultation(ctx context.Context, patientID, actingDoctorID types.ID, input CreateConsultationInput) (*consultation.Consultation, error) {
	var created *consultation.Consultation

	attempt := func() error {
		p, err := s.patients.GetByID(ctx, patientID)
		if err != nil {
			return err
		}

		history, err := s.consultations.ListByPatient(ctx, patientID)
		if err != nil {
			return err
		}

		if err := consultation.ValidateCreate(p, history, input.Type); err != nil {
			if appErr, ok := err.(*errors.AppError); ok {
				metrics.RecordSequencingRejection(appErr.Code)
			}
			return err
		}

		employer := input.Employer
		if employer == "" {
			employer = p.Employer
		}
		if consultation.EmployerRequired(p, input.Type) && employer == "" {
			metrics.RecordSequencingRejection("MISSING_EMPLOYER")
			return errors.MissingEmployer()
		}

		c, err := consultation.New(patientID, actingDoctorID, input.Type, input.Reason)
		if err != nil {
			return errors.BadRequest(err.Error())
		}
		c.Diagnosis = input.Diagnosis
		c.Indications = input.Indications
		c.NextAppointmentAt = input.NextAppointmentAt
		if patient.RequiresSequencedConsultations(p) {
			c.Employer = employer
			c.ART = input.ART
			if c.ART == nil {
				c.ART = &consultation.ARTDetails{}
			}
		}

		if err := s.consultations.Create(ctx, c); err != nil {
			return err
		}

		// The consultation row and the claim status must land together.
		// There is no cross-store transaction here, so the insert goes
		// first and a failed claim write removes the row again before
		// returning. The versioned claim UPDATE still acts as the
		// optimistic lock against a concurrent doctor; a conflict retries
		// the whole attempt against a clean store.
		if p.Claim != nil {
			var claimEvent string
			switch input.Type {
			case consultation.TypeAlta:
				p.Claim.Close(input.Diagnosis, actingDoctorID)
				claimEvent = "claim.closed"
			case consultation.TypeReingreso:
				p.Claim.Reopen()
				claimEvent = "claim.reopened"
			}
			if claimEvent != "" {
				if err := s.patients.UpdateClaim(ctx, p.Claim); err != nil {
					if delErr := s.consultations.Delete(ctx, c.ID); delErr != nil {
						log.Printf("Failed to remove consultation %s after claim write failure: %v", c.ID, delErr)
					}
					return err
				}
				s.publish(ctx, claimEvent, actingDoctorID, map[string]any{
					"claim_id":   p.Claim.ID,
					"patient_id": patientID,
				})
			}
		}

		metrics.RecordConsultationCreated(string(c.Type), string(patient.Classify(p)))
		s.publish(ctx, "consultation.created", actingDoctorID, map[string]any{
			"consultation_id": c.ID,
			"patient_id":      patientID,
			"type":            c.Type,
		})

		// A requested follow-up becomes a scheduled appointment linked back
		// to this consultation.
		if c.NextAppointmentAt != nil {
			followUp, err := appointment.New(patientID, actingDoctorID, *c.NextAppointmentAt)
			if err == nil {
				originID := c.ID
				followUp.OriginConsultationID = &originID
				if err := s.appointments.Create(ctx, followUp); err != nil {
					log.Printf("Failed to create follow-up appointment for consultation %s: %v", c.ID, err)
				} else {
					s.publish(ctx, "appointment.scheduled", actingDoctorID, map[string]any{
						"appointment_id":  followUp.ID,
						"patient_id":      patientID,
						"origin_consultation_id": c.ID,
					})
				}
			}
		}

		created = c
		return nil
	}

	if err := s.withRetry(attempt); err != nil {
		return nil, err
	}
	return created, nil
}

// StatusChangeInput carries the payload for an appointment transition
type StatusChangeInput struct {
	Reason                   string     `json:"reason,omitempty"`
	Notes                    string     `json:"notes,omitempty"`
	CompletionConsultationID types.ID   `json:"completion_consultation_id,omitempty"`
	NewScheduledAt           *time.Time `json:"new_scheduled_at,omitempty"`
}

// StatusChangeResult is the outcome of a transition. Replacement is set
// only for reschedules.
type StatusChangeResult struct {
	Appointment *appointment.Appointment `json:"appointment"`
	Replacement *appointment.Appointment `json:"replacement,omitempty"`
}

// ChangeAppointmentStatus applies a lifecycle transition. The appointment is
// re-read on every attempt so terminal-state enforcement holds under races.
func (s *Service) ChangeAppointmentStatus(ctx context.Context, appointmentID, actingDoctorID types.ID, target appointment.Status, input StatusChangeInput) (*StatusChangeResult, error) {
	var result *StatusChangeResult

	attempt := func() error {
		a, err := s.appointments.GetByID(ctx, appointmentID)
		if err != nil {
			return err
		}
		from := a.Status

		var replacement *appointment.Appointment

		switch target {
		case appointment.StatusCancelled:
			if err := a.Cancel(input.Reason, input.Notes); err != nil {
				return err
			}

		case appointment.StatusCompleted:
			if a.IsTerminal() {
				return errors.TerminalState(string(a.Status))
			}
			if input.CompletionConsultationID.IsZero() {
				return errors.Validation("completion consultation is required", map[string]string{"completion_consultation_id": "required"})
			}
			c, err := s.consultations.GetByID(ctx, input.CompletionConsultationID)
			if err != nil {
				if stderrors.Is(err, errors.ErrNotFound) {
					return errors.ConsultationNotFound(input.CompletionConsultationID.String())
				}
				return err
			}
			if err := a.Complete(c.ID, c.PatientID); err != nil {
				return err
			}

		case appointment.StatusNoShow:
			if err := a.MarkNoShow(); err != nil {
				return err
			}

		case appointment.StatusRescheduled:
			if input.NewScheduledAt == nil {
				return errors.Validation("new scheduled time is required", map[string]string{"new_scheduled_at": "required"})
			}
			replacement, err = a.Reschedule(*input.NewScheduledAt, time.Now())
			if err != nil {
				return err
			}

		default:
			return errors.BadRequest("unsupported target status")
		}

		// For reschedules the replacement is inserted before the old record
		// is closed, and removed again when the versioned update loses the
		// race, so the pair never splits.
		if replacement != nil {
			if err := s.appointments.Create(ctx, replacement); err != nil {
				return err
			}
		}

		if err := s.appointments.Update(ctx, a); err != nil {
			if replacement != nil {
				if delErr := s.appointments.Delete(ctx, replacement.ID); delErr != nil {
					log.Printf("Failed to remove replacement appointment %s after reschedule conflict: %v", replacement.ID, delErr)
				}
			}
			return err
		}

		metrics.RecordAppointmentTransition(string(from), string(a.Status))
		s.publish(ctx, "appointment.status_changed", actingDoctorID, map[string]any{
			"appointment_id": a.ID,
			"patient_id":     a.PatientID,
			"from":           from,
			"to":             a.Status,
		})

		result = &StatusChangeResult{Appointment: a, Replacement: replacement}
		return nil
	}

	if err := s.withRetry(attempt); err != nil {
		return nil, err
	}
	return result, nil
}

// ScheduleInput carries the payload for a new appointment
type ScheduleInput struct {
	PatientID            types.ID   `json:"patient_id"`
	ScheduledAt          time.Time  `json:"scheduled_at"`
	Notes                string     `json:"notes,omitempty"`
	OriginConsultationID *types.ID  `json:"origin_consultation_id,omitempty"`
}

// ScheduleAppointment creates a SCHEDULED appointment for a patient
func (s *Service) ScheduleAppointment(ctx context.Context, actingDoctorID types.ID, input ScheduleInput) (*appointment.Appointment, error) {
	if !input.ScheduledAt.After(time.Now()) {
		return nil, errors.Validation("scheduled time must be in the future", map[string]string{"scheduled_at": "must be future"})
	}

	p, err := s.patients.GetByID(ctx, input.PatientID)
	if err != nil {
		return nil, err
	}

	a, err := appointment.New(p.ID, actingDoctorID, input.ScheduledAt)
	if err != nil {
		return nil, errors.BadRequest(err.Error())
	}
	a.Notes = input.Notes

	if input.OriginConsultationID != nil {
		c, err := s.consultations.GetByID(ctx, *input.OriginConsultationID)
		if err != nil {
			if stderrors.Is(err, errors.ErrNotFound) {
				return nil, errors.ConsultationNotFound(input.OriginConsultationID.String())
			}
			return nil, err
		}
		if c.PatientID != p.ID {
			return nil, errors.ConsultationMismatch()
		}
		a.OriginConsultationID = input.OriginConsultationID
	}

	if err := s.appointments.Create(ctx, a); err != nil {
		return nil, err
	}

	s.publish(ctx, "appointment.scheduled", actingDoctorID, map[string]any{
		"appointment_id": a.ID,
		"patient_id":     a.PatientID,
	})

	return a, nil
}

// AgendaEntry is an appointment annotated with schedule flags computed
// server-side, so clients never re-derive them.
type AgendaEntry struct {
	Appointment appointment.Appointment `json:"appointment"`
	Overdue     bool                    `json:"overdue"`
	Upcoming    bool                    `json:"upcoming"`
}

// Agenda lists a doctor's appointments in a date range
func (s *Service) Agenda(ctx context.Context, doctorID types.ID, from, to time.Time) ([]AgendaEntry, error) {
	appointments, err := s.appointments.ListByDoctor(ctx, doctorID, from, to)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	entries := make([]AgendaEntry, 0, len(appointments))
	for _, a := range appointments {
		entries = append(entries, AgendaEntry{
			Appointment: a,
			Overdue:     a.IsOverdue(now),
			Upcoming:    a.IsUpcoming(now),
		})
	}

	return entries, nil
}

// PreviewConsultationDeletion evaluates the risk of deleting a consultation.
// The result is advisory: the delete is always permitted afterwards.
func (s *Service) PreviewConsultationDeletion(ctx context.Context, consultationID, actingDoctorID types.ID) (Warning, error) {
	c, err := s.consultations.GetByID(ctx, consultationID)
	if err != nil {
		return Warning{}, err
	}

	// A failure to load the surrounding record degrades to HIGH instead of
	// blocking the preview.
	var p *patient.Patient
	var all []consultation.Consultation
	if loaded, err := s.patients.GetByID(ctx, c.PatientID); err == nil {
		p = loaded
		if history, err := s.consultations.ListByPatient(ctx, c.PatientID); err == nil {
			all = history
		} else {
			p = nil
		}
	}

	warning := EvaluateConsultationDeletion(p, c, all)

	metrics.RecordDeletionPreview("consultation", string(warning.Severity))
	s.publish(ctx, "consultation.deletion_previewed", actingDoctorID, map[string]any{
		"consultation_id": c.ID,
		"patient_id":      c.PatientID,
		"severity":        warning.Severity,
	})

	return warning, nil
}

// PreviewAppointmentDeletion evaluates the risk of deleting an appointment
func (s *Service) PreviewAppointmentDeletion(ctx context.Context, appointmentID, actingDoctorID types.ID) (Warning, error) {
	a, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return Warning{}, err
	}

	warning := EvaluateAppointmentDeletion(a)

	metrics.RecordDeletionPreview("appointment", string(warning.Severity))
	s.publish(ctx, "appointment.deletion_previewed", actingDoctorID, map[string]any{
		"appointment_id": a.ID,
		"patient_id":     a.PatientID,
		"severity":       warning.Severity,
	})

	return warning, nil
}

// DeleteConsultation performs the irreversible delete. The caller must have
// surfaced the preview first; the published event records the acknowledgment.
func (s *Service) DeleteConsultation(ctx context.Context, consultationID, actingDoctorID types.ID) error {
	if err := s.consultations.Delete(ctx, consultationID); err != nil {
		return err
	}

	s.publish(ctx, "consultation.deleted", actingDoctorID, map[string]any{
		"consultation_id": consultationID,
	})
	return nil
}

// DeleteAppointment performs the irreversible delete
func (s *Service) DeleteAppointment(ctx context.Context, appointmentID, actingDoctorID types.ID) error {
	if err := s.appointments.Delete(ctx, appointmentID); err != nil {
		return err
	}

	s.publish(ctx, "appointment.deleted", actingDoctorID, map[string]any{
		"appointment_id": appointmentID,
	})
	return nil
}

// withRetry runs a read-validate-write attempt, retrying exactly once on an
// optimistic-lock conflict. The rules are deterministic and the attempt
// re-reads state, so re-running is safe.
func (s *Service) withRetry(attempt func() error) error {
	err := attempt()
	if err != nil && stderrors.Is(err, errors.ErrConcurrentModification) {
		metrics.RecordConcurrencyRetry()
		err = attempt()
	}
	return err
}

func (s *Service) publish(ctx context.Context, eventType string, actorID types.ID, data map[string]any) {
	if s.bus == nil {
		return
	}

	event := events.NewEvent(eventType, "workflow", data).WithActor(actorID, "doctor")
	if err := s.bus.Publish(ctx, event); err != nil {
		log.Printf("Failed to publish %s event: %v", eventType, err)
	}
}
