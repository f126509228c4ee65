package patient

import (
	"testing"
	"time"
)

func newNormalPatient(t *testing.T) *Patient {
	t.Helper()
	p, err := NewPatient("Ana", "García", "", nil)
	if err != nil {
		t.Fatalf("NewPatient: %v", err)
	}
	return p
}

func newARTPatient(t *testing.T) *Patient {
	t.Helper()
	p, err := NewPatient("Juan", "Pérez", "20123456786", &NewClaimInput{
		Contingency: ContingencyWorkAccident,
		AccidentAt:  time.Now().Add(-24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("NewPatient: %v", err)
	}
	return p
}

func TestClassify(t *testing.T) {
	if got := Classify(newNormalPatient(t)); got != TypeNormal {
		t.Errorf("expected NORMAL, got %s", got)
	}

	if got := Classify(newARTPatient(t)); got != TypeART {
		t.Errorf("expected ART, got %s", got)
	}
}

func TestClassificationFollowsClaimPresence(t *testing.T) {
	p := newARTPatient(t)

	if p.Claim == nil {
		t.Fatal("ART patient should carry a claim")
	}
	if !p.Claim.IsOpen() {
		t.Error("new claim should be open")
	}
	if p.Claim.PatientID != p.ID {
		t.Error("claim should reference its patient")
	}

	// Closing the claim does not change the classification: the patient
	// remains an ART case with a closed claim.
	p.Claim.Close("recovered", p.ID)
	if got := Classify(p); got != TypeART {
		t.Errorf("expected ART after claim close, got %s", got)
	}
}

func TestRequiresSequencedConsultations(t *testing.T) {
	if RequiresSequencedConsultations(newNormalPatient(t)) {
		t.Error("NORMAL patient should not be sequenced")
	}
	if !RequiresSequencedConsultations(newARTPatient(t)) {
		t.Error("ART patient should be sequenced")
	}
	if RequiresSequencedConsultations(nil) {
		t.Error("nil patient should not be sequenced")
	}
}

func TestNewPatientValidation(t *testing.T) {
	if _, err := NewPatient("", "Pérez", "", nil); err == nil {
		t.Error("expected error for missing first name")
	}

	if _, err := NewPatient("Juan", "Pérez", "", &NewClaimInput{}); err == nil {
		t.Error("expected error for claim without contingency")
	}

	if _, err := NewPatient("Juan", "Pérez", "", &NewClaimInput{
		Contingency: ContingencyWorkAccident,
	}); err == nil {
		t.Error("expected error for claim without accident timestamp")
	}
}

func TestClaimCloseAndReopen(t *testing.T) {
	p := newARTPatient(t)
	doctorID := p.ID

	p.Claim.Close("full recovery", doctorID)
	if p.Claim.Status != ClaimStatusClosed {
		t.Errorf("expected CLOSED, got %s", p.Claim.Status)
	}
	if p.Claim.ClosureReason != "full recovery" {
		t.Errorf("unexpected closure reason %q", p.Claim.ClosureReason)
	}
	if p.Claim.ClosingDoctorID == nil {
		t.Error("expected closing doctor to be recorded")
	}

	p.Claim.Reopen()
	if !p.Claim.IsOpen() {
		t.Error("expected claim to be open after reopen")
	}
	if p.Claim.ClosureReason != "" || p.Claim.ClosingDoctorID != nil {
		t.Error("reopen should clear closure fields")
	}
}
