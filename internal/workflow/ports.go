package workflow

import (
	"context"
	"time"

	"github.com/ocupmed/platform/internal/appointment"
	"github.com/ocupmed/platform/internal/consultation"
	"github.com/ocupmed/platform/internal/patient"
	"github.com/ocupmed/platform/internal/shared/types"
)

// PatientStore is the persistence surface the facade needs for patients.
// Satisfied by *patient.Repository.
type PatientStore interface {
	GetByID(ctx context.Context, id types.ID) (*patient.Patient, error)
	UpdateClaim(ctx context.Context, c *patient.InsuranceClaim) error
}

// ConsultationStore is the persistence surface for consultations.
// Satisfied by *consultation.Repository.
type ConsultationStore interface {
	Create(ctx context.Context, c *consultation.Consultation) error
	GetByID(ctx context.Context, id types.ID) (*consultation.Consultation, error)
	ListByPatient(ctx context.Context, patientID types.ID) ([]consultation.Consultation, error)
	Delete(ctx context.Context, id types.ID) error
}

// AppointmentStore is the persistence surface for appointments.
// Satisfied by *appointment.Repository.
type AppointmentStore interface {
	Create(ctx context.Context, a *appointment.Appointment) error
	GetByID(ctx context.Context, id types.ID) (*appointment.Appointment, error)
	Update(ctx context.Context, a *appointment.Appointment) error
	ListByPatient(ctx context.Context, patientID types.ID) ([]appointment.Appointment, error)
	ListByDoctor(ctx context.Context, doctorID types.ID, from, to time.Time) ([]appointment.Appointment, error)
	Delete(ctx context.Context, id types.ID) error
}
