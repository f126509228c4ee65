package patient

import (
	"fmt"
	"time"

	"github.com/ocupmed/platform/internal/shared/types"
)

// Type classifies how a patient's treatment is billed
type Type string

const (
	// TypeNormal is a general health-insurance patient
	TypeNormal Type = "NORMAL"
	// TypeART is a work-injury-insurance patient with an attached claim
	TypeART Type = "ART"
)

// Contingency defines the kind of occupational event behind a claim
type Contingency string

const (
	ContingencyWorkAccident        Contingency = "ACCIDENTE_TRABAJO"
	ContingencyOccupationalDisease Contingency = "ENFERMEDAD_PROFESIONAL"
	ContingencyCommuteAccident     Contingency = "ACCIDENTE_IN_ITINERE"
)

// ClaimStatus defines the status of an insurance claim
type ClaimStatus string

const (
	ClaimStatusOpen   ClaimStatus = "OPEN"
	ClaimStatusClosed ClaimStatus = "CLOSED"
)

// InsuranceClaim represents a siniestro: a single occupational-injury case
// billed to the work-injury carrier. One-to-one with an ART patient.
type InsuranceClaim struct {
	ID              types.ID    `json:"id"`
	PatientID       types.ID    `json:"patient_id"`
	Contingency     Contingency `json:"contingency"`
	AccidentAt      time.Time   `json:"accident_at"`
	Status          ClaimStatus `json:"status"`
	ClosureReason   string      `json:"closure_reason,omitempty"`
	ClosingDoctorID *types.ID   `json:"closing_doctor_id,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Close marks the claim as closed with a reason and the discharging doctor
func (c *InsuranceClaim) Close(reason string, doctorID types.ID) {
	c.Status = ClaimStatusClosed
	c.ClosureReason = reason
	c.ClosingDoctorID = &doctorID
	c.UpdatedAt = time.Now()
}

// Reopen reverts a closed claim to open after a re-admission
func (c *InsuranceClaim) Reopen() {
	c.Status = ClaimStatusOpen
	c.ClosureReason = ""
	c.ClosingDoctorID = nil
	c.UpdatedAt = time.Now()
}

// IsOpen reports whether the claim is currently open
func (c *InsuranceClaim) IsOpen() bool {
	return c.Status == ClaimStatusOpen
}

// Patient represents a person under the clinic's care
type Patient struct {
	ID        types.ID   `json:"id"`
	Type      Type       `json:"type"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	CUIL      types.CUIL `json:"cuil,omitempty"`
	BirthDate *time.Time `json:"birth_date,omitempty"`

	// Employer is the workplace reference required on every ART consultation
	Employer string `json:"employer,omitempty"`

	Address types.Address     `json:"address"`
	Contact types.ContactInfo `json:"contact"`

	// Claim is present iff the patient is an ART case. The association is
	// fixed at creation and never changes afterwards.
	Claim *InsuranceClaim `json:"claim,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName returns the patient's full name
func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// NewClaimInput carries the claim fields supplied at patient creation
type NewClaimInput struct {
	Contingency Contingency `json:"contingency"`
	AccidentAt  time.Time   `json:"accident_at"`
}

// NewPatient creates a patient, deriving its classification from the
// presence of a claim: attaching one makes the patient an ART case for life.
func NewPatient(firstName, lastName string, cuil types.CUIL, claim *NewClaimInput) (*Patient, error) {
	if firstName == "" || lastName == "" {
		return nil, fmt.Errorf("first and last name are required")
	}

	now := time.Now()
	p := &Patient{
		ID:        types.NewID(),
		Type:      TypeNormal,
		FirstName: firstName,
		LastName:  lastName,
		CUIL:      cuil,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if claim != nil {
		if claim.Contingency == "" {
			return nil, fmt.Errorf("claim contingency is required")
		}
		if claim.AccidentAt.IsZero() {
			return nil, fmt.Errorf("claim accident timestamp is required")
		}

		p.Type = TypeART
		p.Claim = &InsuranceClaim{
			ID:          types.NewID(),
			PatientID:   p.ID,
			Contingency: claim.Contingency,
			AccidentAt:  claim.AccidentAt,
			Status:      ClaimStatusOpen,
			Version:     1,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}

	return p, nil
}
