package workflow

import (
	"github.com/ocupmed/platform/internal/appointment"
	"github.com/ocupmed/platform/internal/consultation"
	"github.com/ocupmed/platform/internal/patient"
)

// Severity grades how risky a deletion is for the patient record
type Severity string

const (
	SeverityNone   Severity = "NONE"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Warning is the advisory result of a deletion evaluation. It never blocks
// the delete; the caller must surface the message and confirm.
type Warning struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// EvaluateConsultationDeletion grades the risk of removing a consultation.
// Deleting the admission out from under later consultations orphans them,
// so that case is graded HIGH with instructions to delete in reverse order.
// When the patient cannot be resolved the evaluation degrades to HIGH
// rather than guessing.
func EvaluateConsultationDeletion(p *patient.Patient, c *consultation.Consultation, all []consultation.Consultation) Warning {
	if p == nil {
		return Warning{
			Severity: SeverityHigh,
			Message:  "unable to verify safety of this deletion, proceed with caution",
		}
	}

	if !patient.RequiresSequencedConsultations(p) {
		return Warning{Severity: SeverityNone}
	}

	if c.Type == consultation.TypeIngreso {
		for _, other := range all {
			if other.ID != c.ID && other.CreatedAt.After(c.CreatedAt) {
				return Warning{
					Severity: SeverityHigh,
					Message: "later consultations depend on this admission; " +
						"delete in reverse order (ALTA, then ATENCION, then INGRESO)",
				}
			}
		}
	}

	return Warning{
		Severity: SeverityMedium,
		Message:  "this consultation is part of a work-injury case record and cannot be recovered once deleted",
	}
}

// EvaluateAppointmentDeletion grades the risk of removing an appointment.
// Appointments cross-referenced by consultations feed follow-up reporting;
// deleting one breaks that link.
func EvaluateAppointmentDeletion(a *appointment.Appointment) Warning {
	if a == nil {
		return Warning{
			Severity: SeverityHigh,
			Message:  "unable to verify safety of this deletion, proceed with caution",
		}
	}

	if a.OriginConsultationID != nil || a.CompletionConsultationID != nil {
		return Warning{
			Severity: SeverityMedium,
			Message:  "this appointment is linked to a consultation; deleting it breaks the follow-up record",
		}
	}

	return Warning{Severity: SeverityNone}
}
