package consultation

import (
	"fmt"
	"time"

	"github.com/ocupmed/platform/internal/shared/types"
)

// Type defines the kind of clinical encounter in the regulated ART workflow
type Type string

const (
	// TypeIngreso is the admission that opens a work-injury case
	TypeIngreso Type = "INGRESO"
	// TypeAtencion is a follow-up visit on an open case
	TypeAtencion Type = "ATENCION"
	// TypeAlta is the discharge that closes the case
	TypeAlta Type = "ALTA"
	// TypeReingreso is a re-admission that reopens a closed case
	TypeReingreso Type = "REINGRESO"
)

// AllTypes returns every consultation type, in workflow order
func AllTypes() []Type {
	return []Type{TypeIngreso, TypeAtencion, TypeAlta, TypeReingreso}
}

// IsValid reports whether t is one of the closed enum values
func (t Type) IsValid() bool {
	switch t {
	case TypeIngreso, TypeAtencion, TypeAlta, TypeReingreso:
		return true
	}
	return false
}

// ARTDetails carries the work-injury fields recorded on ART consultations only
type ARTDetails struct {
	AccidentDescription string `json:"accident_description,omitempty"`
	Establishment       string `json:"establishment,omitempty"`
	Contact             string `json:"contact,omitempty"`
	Treatment           string `json:"treatment,omitempty"`
}

// Consultation is a clinical encounter record. It is never mutated after
// creation; removal goes through the deletion guard.
type Consultation struct {
	ID          types.ID `json:"id"`
	PatientID   types.ID `json:"patient_id"`
	DoctorID    types.ID `json:"doctor_id"`
	Type        Type     `json:"type"`
	Reason      string   `json:"reason"`
	Diagnosis   string   `json:"diagnosis,omitempty"`
	Indications string   `json:"indications,omitempty"`

	// Employer the visit is billed against; required on ART consultations
	Employer string `json:"employer,omitempty"`

	// NextAppointmentAt, when set, spawns a linked scheduled appointment
	NextAppointmentAt *time.Time `json:"next_appointment_at,omitempty"`

	// ART is present only on consultations for ART patients
	ART *ARTDetails `json:"art,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

// New creates a consultation with basic field validation. Sequencing rules
// are the sequencer's concern, not the constructor's.
func New(patientID, doctorID types.ID, consultationType Type, reason string) (*Consultation, error) {
	if patientID.IsZero() {
		return nil, fmt.Errorf("patient is required")
	}
	if doctorID.IsZero() {
		return nil, fmt.Errorf("doctor is required")
	}
	if !consultationType.IsValid() {
		return nil, fmt.Errorf("unknown consultation type %q", consultationType)
	}
	if reason == "" {
		return nil, fmt.Errorf("reason is required")
	}

	return &Consultation{
		ID:        types.NewID(),
		PatientID: patientID,
		DoctorID:  doctorID,
		Type:      consultationType,
		Reason:    reason,
		Version:   1,
		CreatedAt: time.Now(),
	}, nil
}
