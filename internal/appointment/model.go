package appointment

import (
	"fmt"
	"time"

	"github.com/ocupmed/platform/internal/shared/errors"
	"github.com/ocupmed/platform/internal/shared/types"
)

// Status defines the lifecycle state of an appointment
type Status string

const (
	StatusScheduled   Status = "SCHEDULED"
	StatusCompleted   Status = "COMPLETED"
	StatusCancelled   Status = "CANCELLED"
	StatusNoShow      Status = "NO_SHOW"
	StatusRescheduled Status = "RESCHEDULED"
)

// IsValid reports whether s is one of the closed enum values
func (s Status) IsValid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow, StatusRescheduled:
		return true
	}
	return false
}

// Appointment is a scheduled encounter. SCHEDULED is the only state that
// permits transitions; every other status is terminal on this record.
// Rescheduling closes the record and creates a new SCHEDULED one.
type Appointment struct {
	ID          types.ID  `json:"id"`
	PatientID   types.ID  `json:"patient_id"`
	DoctorID    types.ID  `json:"doctor_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Status      Status    `json:"status"`

	CancelReason string `json:"cancel_reason,omitempty"`
	Notes        string `json:"notes,omitempty"`

	// OriginConsultationID is the consultation that generated this appointment
	OriginConsultationID *types.ID `json:"origin_consultation_id,omitempty"`
	// CompletionConsultationID is set iff status is COMPLETED
	CompletionConsultationID *types.ID `json:"completion_consultation_id,omitempty"`
	// RescheduledFromID links back to the record this one replaced.
	// Audit/lookup only, never cascades.
	RescheduledFromID *types.ID `json:"rescheduled_from_id,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a scheduled appointment
func New(patientID, doctorID types.ID, scheduledAt time.Time) (*Appointment, error) {
	if patientID.IsZero() {
		return nil, fmt.Errorf("patient is required")
	}
	if doctorID.IsZero() {
		return nil, fmt.Errorf("doctor is required")
	}
	if scheduledAt.IsZero() {
		return nil, fmt.Errorf("scheduled time is required")
	}

	now := time.Now()
	return &Appointment{
		ID:          types.NewID(),
		PatientID:   patientID,
		DoctorID:    doctorID,
		ScheduledAt: scheduledAt,
		Status:      StatusScheduled,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// IsTerminal reports whether the record permits no further transitions
func (a *Appointment) IsTerminal() bool {
	return a.Status != StatusScheduled
}

// HasCompletedConsultation is derived, never stored separately
func (a *Appointment) HasCompletedConsultation() bool {
	return a.Status == StatusCompleted && a.CompletionConsultationID != nil
}

// Cancel transitions SCHEDULED -> CANCELLED. A reason is mandatory.
func (a *Appointment) Cancel(reason, notes string) error {
	if a.IsTerminal() {
		return errors.TerminalState(string(a.Status))
	}
	if reason == "" {
		return errors.Validation("cancellation reason is required", map[string]string{"reason": "required"})
	}

	a.Status = StatusCancelled
	a.CancelReason = reason
	if notes != "" {
		a.Notes = notes
	}
	a.UpdatedAt = time.Now()
	return nil
}

// Complete transitions SCHEDULED -> COMPLETED. The completion consultation
// must belong to the same patient; the caller resolves the reference and
// passes its owning patient along.
func (a *Appointment) Complete(consultationID, consultationPatientID types.ID) error {
	if a.IsTerminal() {
		return errors.TerminalState(string(a.Status))
	}
	if consultationID.IsZero() {
		return errors.Validation("completion consultation is required", map[string]string{"completion_consultation_id": "required"})
	}
	if consultationPatientID != a.PatientID {
		return errors.ConsultationMismatch()
	}

	a.Status = StatusCompleted
	a.CompletionConsultationID = &consultationID
	a.UpdatedAt = time.Now()
	return nil
}

// MarkNoShow transitions SCHEDULED -> NO_SHOW
func (a *Appointment) MarkNoShow() error {
	if a.IsTerminal() {
		return errors.TerminalState(string(a.Status))
	}

	a.Status = StatusNoShow
	a.UpdatedAt = time.Now()
	return nil
}

// Reschedule closes this record as RESCHEDULED and returns the replacement
// SCHEDULED appointment. The new time must be strictly in the future.
func (a *Appointment) Reschedule(newTime time.Time, now time.Time) (*Appointment, error) {
	if a.IsTerminal() {
		return nil, errors.TerminalState(string(a.Status))
	}
	if !newTime.After(now) {
		return nil, errors.Validation("new scheduled time must be in the future", map[string]string{"scheduled_at": "must be future"})
	}

	replacement, err := New(a.PatientID, a.DoctorID, newTime)
	if err != nil {
		return nil, errors.BadRequest(err.Error())
	}
	replacement.OriginConsultationID = a.OriginConsultationID
	replacement.Notes = a.Notes
	fromID := a.ID
	replacement.RescheduledFromID = &fromID

	a.Status = StatusRescheduled
	a.UpdatedAt = now

	return replacement, nil
}

// IsOverdue reports whether a still-scheduled appointment is in the past
func (a *Appointment) IsOverdue(now time.Time) bool {
	return a.Status == StatusScheduled && a.ScheduledAt.Before(now)
}

// IsUpcoming reports whether a scheduled appointment falls within 24 hours
func (a *Appointment) IsUpcoming(now time.Time) bool {
	if a.Status != StatusScheduled {
		return false
	}
	until := a.ScheduledAt.Sub(now)
	return until > 0 && until <= 24*time.Hour
}
