package workflow

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/ocupmed/platform/internal/appointment"
	"github.com/ocupmed/platform/internal/consultation"
	"github.com/ocupmed/platform/internal/shared/errors"
	"github.com/ocupmed/platform/internal/shared/types"
)

func TestEvaluateConsultationDeletion(t *testing.T) {
	artP := testARTPatient(t)
	normalP := testNormalPatient(t)

	ingreso := consultation.Consultation{
		ID:        types.NewID(),
		PatientID: artP.ID,
		Type:      consultation.TypeIngreso,
		CreatedAt: time.Now().Add(-3 * time.Hour),
	}
	atencion := consultation.Consultation{
		ID:        types.NewID(),
		PatientID: artP.ID,
		Type:      consultation.TypeAtencion,
		CreatedAt: time.Now().Add(-2 * time.Hour),
	}
	history := []consultation.Consultation{ingreso, atencion}

	// Admission with later consultations: orphaning risk
	w := EvaluateConsultationDeletion(artP, &ingreso, history)
	if w.Severity != SeverityHigh {
		t.Errorf("admission with dependents should be HIGH, got %s", w.Severity)
	}
	if w.Message == "" {
		t.Error("HIGH warning should carry guidance")
	}

	// The latest consultation of an ART record: irreversible but safe order
	w = EvaluateConsultationDeletion(artP, &atencion, history)
	if w.Severity != SeverityMedium {
		t.Errorf("latest ART consultation should be MEDIUM, got %s", w.Severity)
	}

	// Sole admission with nothing after it
	w = EvaluateConsultationDeletion(artP, &ingreso, []consultation.Consultation{ingreso})
	if w.Severity != SeverityMedium {
		t.Errorf("sole admission should be MEDIUM, got %s", w.Severity)
	}

	// NORMAL patient consultations carry no workflow risk
	normalC := consultation.Consultation{
		ID:        types.NewID(),
		PatientID: normalP.ID,
		Type:      consultation.TypeAtencion,
		CreatedAt: time.Now(),
	}
	w = EvaluateConsultationDeletion(normalP, &normalC, []consultation.Consultation{normalC})
	if w.Severity != SeverityNone {
		t.Errorf("NORMAL consultation should be NONE, got %s", w.Severity)
	}

	// Unresolvable patient degrades to HIGH instead of guessing
	w = EvaluateConsultationDeletion(nil, &ingreso, nil)
	if w.Severity != SeverityHigh {
		t.Errorf("unknown patient should degrade to HIGH, got %s", w.Severity)
	}
}

func TestEvaluateAppointmentDeletion(t *testing.T) {
	a, err := appointment.New(types.NewID(), types.NewID(), time.Now().Add(24*time.Hour))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if w := EvaluateAppointmentDeletion(a); w.Severity != SeverityNone {
		t.Errorf("unlinked appointment should be NONE, got %s", w.Severity)
	}

	origin := types.NewID()
	a.OriginConsultationID = &origin
	if w := EvaluateAppointmentDeletion(a); w.Severity != SeverityMedium {
		t.Errorf("linked appointment should be MEDIUM, got %s", w.Severity)
	}

	if w := EvaluateAppointmentDeletion(nil); w.Severity != SeverityHigh {
		t.Errorf("unresolvable appointment should degrade to HIGH, got %s", w.Severity)
	}
}

func TestPreviewConsultationDeletionDegradesWhenPatientMissing(t *testing.T) {
	// Consultation exists but its patient does not resolve
	c := consultation.Consultation{
		ID:        types.NewID(),
		PatientID: types.NewID(),
		Type:      consultation.TypeIngreso,
		Reason:    "accidente",
		CreatedAt: time.Now(),
	}
	consultations := &fakeConsultations{consultations: []consultation.Consultation{c}}
	svc := newTestService(newFakePatients(), consultations, newFakeAppointments())

	w, err := svc.PreviewConsultationDeletion(context.Background(), c.ID, types.NewID())
	if err != nil {
		t.Fatalf("PreviewConsultationDeletion: %v", err)
	}
	if w.Severity != SeverityHigh {
		t.Errorf("expected HIGH when patient cannot be loaded, got %s", w.Severity)
	}
}

func TestPreviewConsultationDeletionNotFound(t *testing.T) {
	svc := newTestService(newFakePatients(), &fakeConsultations{}, newFakeAppointments())

	_, err := svc.PreviewConsultationDeletion(context.Background(), types.NewID(), types.NewID())
	if !stderrors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestDeleteConsultationAfterHighPreviewStillProceeds(t *testing.T) {
	p := testARTPatient(t)
	consultations := &fakeConsultations{}
	svc := newTestService(newFakePatients(p), consultations, newFakeAppointments())
	doctorID := types.NewID()

	seedHistory(t, svc, p, doctorID, consultation.TypeIngreso, consultation.TypeAtencion)
	ingresoID := consultations.consultations[0].ID

	w, err := svc.PreviewConsultationDeletion(context.Background(), ingresoID, doctorID)
	if err != nil {
		t.Fatalf("PreviewConsultationDeletion: %v", err)
	}
	if w.Severity != SeverityHigh {
		t.Fatalf("expected HIGH preview, got %s", w.Severity)
	}

	// The warning is advisory: deletion still succeeds once confirmed
	if err := svc.DeleteConsultation(context.Background(), ingresoID, doctorID); err != nil {
		t.Fatalf("DeleteConsultation: %v", err)
	}
	if len(consultations.consultations) != 1 {
		t.Errorf("expected 1 consultation left, got %d", len(consultations.consultations))
	}
}

func TestDeleteAppointmentNotFound(t *testing.T) {
	svc := newTestService(newFakePatients(), &fakeConsultations{}, newFakeAppointments())

	err := svc.DeleteAppointment(context.Background(), types.NewID(), types.NewID())
	if !stderrors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestPreviewAppointmentDeletion(t *testing.T) {
	p := testARTPatient(t)
	appointments := newFakeAppointments()
	svc := newTestService(newFakePatients(p), &fakeConsultations{}, appointments)
	doctorID := types.NewID()

	c, err := svc.CreateConsultation(context.Background(), p.ID, doctorID, CreateConsultationInput{
		Type:   consultation.TypeIngreso,
		Reason: "accidente",
	})
	if err != nil {
		t.Fatalf("CreateConsultation: %v", err)
	}

	linked, err := svc.ScheduleAppointment(context.Background(), doctorID, ScheduleInput{
		PatientID:            p.ID,
		ScheduledAt:          time.Now().Add(24 * time.Hour),
		OriginConsultationID: &c.ID,
	})
	if err != nil {
		t.Fatalf("ScheduleAppointment: %v", err)
	}

	w, err := svc.PreviewAppointmentDeletion(context.Background(), linked.ID, doctorID)
	if err != nil {
		t.Fatalf("PreviewAppointmentDeletion: %v", err)
	}
	if w.Severity != SeverityMedium {
		t.Errorf("consultation-linked appointment should be MEDIUM, got %s", w.Severity)
	}
}
