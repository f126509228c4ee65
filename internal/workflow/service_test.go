package workflow

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/ocupmed/platform/internal/appointment"
	"github.com/ocupmed/platform/internal/consultation"
	"github.com/ocupmed/platform/internal/patient"
	"github.com/ocupmed/platform/internal/shared/errors"
	"github.com/ocupmed/platform/internal/shared/types"
)

// In-memory stores for facade tests

type fakePatients struct {
	patients map[types.ID]*patient.Patient

	// claimConflicts makes the next N UpdateClaim calls fail with an
	// optimistic-lock conflict
	claimConflicts int
	updateCalls    int
}

func newFakePatients(ps ...*patient.Patient) *fakePatients {
	f := &fakePatients{patients: make(map[types.ID]*patient.Patient)}
	for _, p := range ps {
		f.patients[p.ID] = p
	}
	return f
}

func (f *fakePatients) GetByID(ctx context.Context, id types.ID) (*patient.Patient, error) {
	p, ok := f.patients[id]
	if !ok {
		return nil, errors.NotFound("patient", id.String())
	}
	return p, nil
}

func (f *fakePatients) UpdateClaim(ctx context.Context, c *patient.InsuranceClaim) error {
	f.updateCalls++
	if f.claimConflicts > 0 {
		f.claimConflicts--
		return errors.ConcurrentModification("insurance claim")
	}
	c.Version++
	return nil
}

type fakeConsultations struct {
	consultations []consultation.Consultation

	// createErr fails the next Create call
	createErr error
}

func (f *fakeConsultations) Create(ctx context.Context, c *consultation.Consultation) error {
	if f.createErr != nil {
		err := f.createErr
		f.createErr = nil
		return err
	}
	f.consultations = append(f.consultations, *c)
	return nil
}

func (f *fakeConsultations) GetByID(ctx context.Context, id types.ID) (*consultation.Consultation, error) {
	for i := range f.consultations {
		if f.consultations[i].ID == id {
			c := f.consultations[i]
			return &c, nil
		}
	}
	return nil, errors.NotFound("consultation", id.String())
}

func (f *fakeConsultations) ListByPatient(ctx context.Context, patientID types.ID) ([]consultation.Consultation, error) {
	var out []consultation.Consultation
	for _, c := range f.consultations {
		if c.PatientID == patientID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeConsultations) Delete(ctx context.Context, id types.ID) error {
	for i := range f.consultations {
		if f.consultations[i].ID == id {
			f.consultations = append(f.consultations[:i], f.consultations[i+1:]...)
			return nil
		}
	}
	return errors.NotFound("consultation", id.String())
}

type fakeAppointments struct {
	appointments map[types.ID]*appointment.Appointment

	// updateConflicts makes the next N Update calls fail with an
	// optimistic-lock conflict
	updateConflicts int
	updateCalls     int
}

func newFakeAppointments(as ...*appointment.Appointment) *fakeAppointments {
	f := &fakeAppointments{appointments: make(map[types.ID]*appointment.Appointment)}
	for _, a := range as {
		f.appointments[a.ID] = a
	}
	return f
}

func (f *fakeAppointments) Create(ctx context.Context, a *appointment.Appointment) error {
	copied := *a
	f.appointments[a.ID] = &copied
	return nil
}

func (f *fakeAppointments) GetByID(ctx context.Context, id types.ID) (*appointment.Appointment, error) {
	a, ok := f.appointments[id]
	if !ok {
		return nil, errors.NotFound("appointment", id.String())
	}
	copied := *a
	return &copied, nil
}

func (f *fakeAppointments) Update(ctx context.Context, a *appointment.Appointment) error {
	f.updateCalls++
	if f.updateConflicts > 0 {
		f.updateConflicts--
		return errors.ConcurrentModification("appointment")
	}
	if _, ok := f.appointments[a.ID]; !ok {
		return errors.NotFound("appointment", a.ID.String())
	}
	a.Version++
	copied := *a
	f.appointments[a.ID] = &copied
	return nil
}

func (f *fakeAppointments) ListByPatient(ctx context.Context, patientID types.ID) ([]appointment.Appointment, error) {
	var out []appointment.Appointment
	for _, a := range f.appointments {
		if a.PatientID == patientID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAppointments) ListByDoctor(ctx context.Context, doctorID types.ID, from, to time.Time) ([]appointment.Appointment, error) {
	var out []appointment.Appointment
	for _, a := range f.appointments {
		if a.DoctorID == doctorID && !a.ScheduledAt.Before(from) && !a.ScheduledAt.After(to) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAppointments) Delete(ctx context.Context, id types.ID) error {
	if _, ok := f.appointments[id]; !ok {
		return errors.NotFound("appointment", id.String())
	}
	delete(f.appointments, id)
	return nil
}

// Test fixtures

func testARTPatient(t *testing.T) *patient.Patient {
	t.Helper()
	p, err := patient.NewPatient("Juan", "Pérez", "20123456786", &patient.NewClaimInput{
		Contingency: patient.ContingencyWorkAccident,
		AccidentAt:  time.Now().Add(-48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("NewPatient: %v", err)
	}
	p.Employer = "Metalúrgica San Martín SA"
	return p
}

func testNormalPatient(t *testing.T) *patient.Patient {
	t.Helper()
	p, err := patient.NewPatient("Ana", "García", "", nil)
	if err != nil {
		t.Fatalf("NewPatient: %v", err)
	}
	return p
}

func newTestService(patients *fakePatients, consultations *fakeConsultations, appointments *fakeAppointments) *Service {
	return NewService(patients, consultations, appointments, nil)
}

func seedHistory(t *testing.T, svc *Service, p *patient.Patient, doctorID types.ID, types_ ...consultation.Type) {
	t.Helper()
	for _, ct := range types_ {
		if _, err := svc.CreateConsultation(context.Background(), p.ID, doctorID, CreateConsultationInput{
			Type:   ct,
			Reason: "control",
		}); err != nil {
			t.Fatalf("seed %s: %v", ct, err)
		}
		// Keep createdAt strictly increasing for state replay
		time.Sleep(time.Millisecond)
	}
}

// Tests

func TestCreateConsultationIngreso(t *testing.T) {
	p := testARTPatient(t)
	patients := newFakePatients(p)
	consultations := &fakeConsultations{}
	svc := newTestService(patients, consultations, newFakeAppointments())
	doctorID := types.NewID()

	c, err := svc.CreateConsultation(context.Background(), p.ID, doctorID, CreateConsultationInput{
		Type:   consultation.TypeIngreso,
		Reason: "caída de altura",
	})
	if err != nil {
		t.Fatalf("CreateConsultation: %v", err)
	}

	if c.Type != consultation.TypeIngreso {
		t.Errorf("expected INGRESO, got %s", c.Type)
	}
	if c.Employer != p.Employer {
		t.Errorf("expected employer fallback to patient record, got %q", c.Employer)
	}
	if c.ART == nil {
		t.Error("ART consultation should carry ART details")
	}
	if len(consultations.consultations) != 1 {
		t.Fatalf("expected 1 persisted consultation, got %d", len(consultations.consultations))
	}
	if !p.Claim.IsOpen() {
		t.Error("admission should leave the claim open")
	}
}

func TestCreateConsultationRejectsOutOfSequence(t *testing.T) {
	p := testARTPatient(t)
	consultations := &fakeConsultations{}
	svc := newTestService(newFakePatients(p), consultations, newFakeAppointments())

	_, err := svc.CreateConsultation(context.Background(), p.ID, types.NewID(), CreateConsultationInput{
		Type:   consultation.TypeAtencion,
		Reason: "control",
	})
	if !stderrors.Is(err, errors.ErrSequencingViolation) {
		t.Errorf("expected sequencing violation, got %v", err)
	}
	if len(consultations.consultations) != 0 {
		t.Error("rejected consultation must not be persisted")
	}
}

func TestCreateConsultationMissingEmployer(t *testing.T) {
	p := testARTPatient(t)
	p.Employer = ""
	svc := newTestService(newFakePatients(p), &fakeConsultations{}, newFakeAppointments())

	_, err := svc.CreateConsultation(context.Background(), p.ID, types.NewID(), CreateConsultationInput{
		Type:   consultation.TypeIngreso,
		Reason: "accidente",
	})
	if !stderrors.Is(err, errors.ErrMissingEmployer) {
		t.Errorf("expected missing employer error, got %v", err)
	}
}

func TestCreateConsultationAltaClosesClaim(t *testing.T) {
	p := testARTPatient(t)
	patients := newFakePatients(p)
	svc := newTestService(patients, &fakeConsultations{}, newFakeAppointments())
	doctorID := types.NewID()

	seedHistory(t, svc, p, doctorID, consultation.TypeIngreso, consultation.TypeAtencion)

	if _, err := svc.CreateConsultation(context.Background(), p.ID, doctorID, CreateConsultationInput{
		Type:      consultation.TypeAlta,
		Reason:    "alta médica",
		Diagnosis: "recuperación completa",
	}); err != nil {
		t.Fatalf("CreateConsultation(ALTA): %v", err)
	}

	if p.Claim.IsOpen() {
		t.Error("discharge should close the claim")
	}
	if p.Claim.ClosureReason != "recuperación completa" {
		t.Errorf("closure reason should carry the diagnosis, got %q", p.Claim.ClosureReason)
	}
	if p.Claim.ClosingDoctorID == nil || *p.Claim.ClosingDoctorID != doctorID {
		t.Error("closing doctor should be recorded")
	}
}

func TestCreateConsultationReingresoReopensClaim(t *testing.T) {
	p := testARTPatient(t)
	svc := newTestService(newFakePatients(p), &fakeConsultations{}, newFakeAppointments())
	doctorID := types.NewID()

	seedHistory(t, svc, p, doctorID, consultation.TypeIngreso, consultation.TypeAlta)
	if p.Claim.IsOpen() {
		t.Fatal("claim should be closed after discharge")
	}

	if _, err := svc.CreateConsultation(context.Background(), p.ID, doctorID, CreateConsultationInput{
		Type:   consultation.TypeReingreso,
		Reason: "recaída",
	}); err != nil {
		t.Fatalf("CreateConsultation(REINGRESO): %v", err)
	}

	if !p.Claim.IsOpen() {
		t.Error("re-admission should reopen the claim")
	}
}

func TestCreateConsultationRetriesOnClaimConflict(t *testing.T) {
	p := testARTPatient(t)
	patients := newFakePatients(p)
	svc := newTestService(patients, &fakeConsultations{}, newFakeAppointments())
	doctorID := types.NewID()

	seedHistory(t, svc, p, doctorID, consultation.TypeIngreso)

	patients.claimConflicts = 1
	callsBefore := patients.updateCalls

	if _, err := svc.CreateConsultation(context.Background(), p.ID, doctorID, CreateConsultationInput{
		Type:   consultation.TypeAlta,
		Reason: "alta",
	}); err != nil {
		t.Fatalf("expected single conflict to be retried, got %v", err)
	}
	if patients.updateCalls-callsBefore != 2 {
		t.Errorf("expected exactly one retry, got %d calls", patients.updateCalls-callsBefore)
	}
}

func TestCreateConsultationGivesUpAfterSecondConflict(t *testing.T) {
	p := testARTPatient(t)
	patients := newFakePatients(p)
	svc := newTestService(patients, &fakeConsultations{}, newFakeAppointments())
	doctorID := types.NewID()

	seedHistory(t, svc, p, doctorID, consultation.TypeIngreso)

	patients.claimConflicts = 2
	_, err := svc.CreateConsultation(context.Background(), p.ID, doctorID, CreateConsultationInput{
		Type:   consultation.TypeAlta,
		Reason: "alta",
	})
	if !stderrors.Is(err, errors.ErrConcurrentModification) {
		t.Errorf("expected conflict to surface after retry, got %v", err)
	}
}

func TestCreateConsultationFailedInsertLeavesClaimOpen(t *testing.T) {
	p := testARTPatient(t)
	patients := newFakePatients(p)
	consultations := &fakeConsultations{}
	svc := newTestService(patients, consultations, newFakeAppointments())
	doctorID := types.NewID()

	seedHistory(t, svc, p, doctorID, consultation.TypeIngreso)

	consultations.createErr = stderrors.New("storage offline")
	callsBefore := patients.updateCalls

	_, err := svc.CreateConsultation(context.Background(), p.ID, doctorID, CreateConsultationInput{
		Type:      consultation.TypeAlta,
		Reason:    "alta",
		Diagnosis: "curado",
	})
	if err == nil {
		t.Fatal("expected insert failure to surface")
	}

	// The claim must match the history exactly: no ALTA on record means the
	// claim stays open and the next step is still ATENCION or ALTA.
	if !p.Claim.IsOpen() {
		t.Errorf("claim should remain open after failed insert, got %s", p.Claim.Status)
	}
	if patients.updateCalls != callsBefore {
		t.Errorf("claim should not be written when the insert fails, got %d writes", patients.updateCalls-callsBefore)
	}
	if len(consultations.consultations) != 1 {
		t.Errorf("only the seeded INGRESO should be stored, got %d", len(consultations.consultations))
	}

	available, err := svc.ListCreatableConsultationTypes(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("ListCreatableConsultationTypes: %v", err)
	}
	if len(available) != 2 {
		t.Errorf("open case should still offer ATENCION and ALTA, got %v", available)
	}
}

func TestCreateConsultationRemovesInsertOnClaimConflict(t *testing.T) {
	p := testARTPatient(t)
	patients := newFakePatients(p)
	consultations := &fakeConsultations{}
	svc := newTestService(patients, consultations, newFakeAppointments())
	doctorID := types.NewID()

	seedHistory(t, svc, p, doctorID, consultation.TypeIngreso)

	patients.claimConflicts = 2
	_, err := svc.CreateConsultation(context.Background(), p.ID, doctorID, CreateConsultationInput{
		Type:   consultation.TypeAlta,
		Reason: "alta",
	})
	if !stderrors.Is(err, errors.ErrConcurrentModification) {
		t.Fatalf("expected conflict to surface, got %v", err)
	}

	// Each failed attempt must take its consultation row back out, or the
	// history would show an ALTA the claim never recorded.
	if len(consultations.consultations) != 1 {
		t.Errorf("failed attempts should leave no consultation behind, got %d", len(consultations.consultations))
	}
	for _, c := range consultations.consultations {
		if c.Type == consultation.TypeAlta {
			t.Error("stored history should not contain the failed ALTA")
		}
	}
}

func TestCreateConsultationSpawnsFollowUp(t *testing.T) {
	p := testARTPatient(t)
	appointments := newFakeAppointments()
	svc := newTestService(newFakePatients(p), &fakeConsultations{}, appointments)
	doctorID := types.NewID()

	next := time.Now().Add(7 * 24 * time.Hour)
	c, err := svc.CreateConsultation(context.Background(), p.ID, doctorID, CreateConsultationInput{
		Type:              consultation.TypeIngreso,
		Reason:            "accidente",
		NextAppointmentAt: &next,
	})
	if err != nil {
		t.Fatalf("CreateConsultation: %v", err)
	}

	if len(appointments.appointments) != 1 {
		t.Fatalf("expected a follow-up appointment, got %d", len(appointments.appointments))
	}
	for _, a := range appointments.appointments {
		if a.Status != appointment.StatusScheduled {
			t.Errorf("follow-up should be SCHEDULED, got %s", a.Status)
		}
		if a.OriginConsultationID == nil || *a.OriginConsultationID != c.ID {
			t.Error("follow-up should link back to the consultation")
		}
		if !a.ScheduledAt.Equal(next) {
			t.Error("follow-up should carry the requested time")
		}
	}
}

func TestCreateConsultationNormalPatient(t *testing.T) {
	p := testNormalPatient(t)
	patients := newFakePatients(p)
	svc := newTestService(patients, &fakeConsultations{}, newFakeAppointments())

	// NORMAL patients may create any type without employer or prior history
	c, err := svc.CreateConsultation(context.Background(), p.ID, types.NewID(), CreateConsultationInput{
		Type:   consultation.TypeAlta,
		Reason: "apto laboral",
	})
	if err != nil {
		t.Fatalf("CreateConsultation: %v", err)
	}
	if c.ART != nil {
		t.Error("NORMAL consultation should not carry ART details")
	}
	if patients.updateCalls != 0 {
		t.Error("NORMAL consultation must not touch any claim")
	}
}

func TestListCreatableConsultationTypes(t *testing.T) {
	p := testARTPatient(t)
	svc := newTestService(newFakePatients(p), &fakeConsultations{}, newFakeAppointments())
	doctorID := types.NewID()

	got, err := svc.ListCreatableConsultationTypes(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("ListCreatableConsultationTypes: %v", err)
	}
	if len(got) != 1 || got[0] != consultation.TypeIngreso {
		t.Errorf("fresh ART case should offer only INGRESO, got %v", got)
	}

	seedHistory(t, svc, p, doctorID, consultation.TypeIngreso)

	got, err = svc.ListCreatableConsultationTypes(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("ListCreatableConsultationTypes: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("open case should offer ATENCION and ALTA, got %v", got)
	}
}

func TestChangeAppointmentStatusComplete(t *testing.T) {
	p := testARTPatient(t)
	consultations := &fakeConsultations{}
	svc := newTestService(newFakePatients(p), consultations, newFakeAppointments())
	doctorID := types.NewID()

	c, err := svc.CreateConsultation(context.Background(), p.ID, doctorID, CreateConsultationInput{
		Type:   consultation.TypeIngreso,
		Reason: "accidente",
	})
	if err != nil {
		t.Fatalf("CreateConsultation: %v", err)
	}

	a, err := svc.ScheduleAppointment(context.Background(), doctorID, ScheduleInput{
		PatientID:   p.ID,
		ScheduledAt: time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("ScheduleAppointment: %v", err)
	}

	result, err := svc.ChangeAppointmentStatus(context.Background(), a.ID, doctorID, appointment.StatusCompleted, StatusChangeInput{
		CompletionConsultationID: c.ID,
	})
	if err != nil {
		t.Fatalf("ChangeAppointmentStatus: %v", err)
	}

	if result.Appointment.Status != appointment.StatusCompleted {
		t.Errorf("expected COMPLETED, got %s", result.Appointment.Status)
	}
	if !result.Appointment.HasCompletedConsultation() {
		t.Error("expected completion consultation link")
	}
}

func TestCompleteWithForeignConsultationLeavesScheduled(t *testing.T) {
	p := testARTPatient(t)
	other := testNormalPatient(t)
	consultations := &fakeConsultations{}
	appointments := newFakeAppointments()
	svc := newTestService(newFakePatients(p, other), consultations, appointments)
	doctorID := types.NewID()

	foreign, err := svc.CreateConsultation(context.Background(), other.ID, doctorID, CreateConsultationInput{
		Type:   consultation.TypeAtencion,
		Reason: "control",
	})
	if err != nil {
		t.Fatalf("CreateConsultation: %v", err)
	}

	a, err := svc.ScheduleAppointment(context.Background(), doctorID, ScheduleInput{
		PatientID:   p.ID,
		ScheduledAt: time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("ScheduleAppointment: %v", err)
	}

	_, err = svc.ChangeAppointmentStatus(context.Background(), a.ID, doctorID, appointment.StatusCompleted, StatusChangeInput{
		CompletionConsultationID: foreign.ID,
	})
	if !stderrors.Is(err, errors.ErrConsultationMismatch) {
		t.Errorf("expected consultation mismatch, got %v", err)
	}

	stored, err := appointments.GetByID(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != appointment.StatusScheduled {
		t.Errorf("failed completion must leave the appointment SCHEDULED, got %s", stored.Status)
	}
}

func TestCompleteWithMissingConsultation(t *testing.T) {
	p := testARTPatient(t)
	svc := newTestService(newFakePatients(p), &fakeConsultations{}, newFakeAppointments())
	doctorID := types.NewID()

	a, err := svc.ScheduleAppointment(context.Background(), doctorID, ScheduleInput{
		PatientID:   p.ID,
		ScheduledAt: time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("ScheduleAppointment: %v", err)
	}

	_, err = svc.ChangeAppointmentStatus(context.Background(), a.ID, doctorID, appointment.StatusCompleted, StatusChangeInput{
		CompletionConsultationID: types.NewID(),
	})
	if !stderrors.Is(err, errors.ErrConsultationNotFound) {
		t.Errorf("expected consultation not found, got %v", err)
	}
}

func TestRescheduleCreatesReplacement(t *testing.T) {
	p := testARTPatient(t)
	appointments := newFakeAppointments()
	svc := newTestService(newFakePatients(p), &fakeConsultations{}, appointments)
	doctorID := types.NewID()

	a, err := svc.ScheduleAppointment(context.Background(), doctorID, ScheduleInput{
		PatientID:   p.ID,
		ScheduledAt: time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("ScheduleAppointment: %v", err)
	}

	newTime := time.Now().Add(72 * time.Hour)
	result, err := svc.ChangeAppointmentStatus(context.Background(), a.ID, doctorID, appointment.StatusRescheduled, StatusChangeInput{
		NewScheduledAt: &newTime,
	})
	if err != nil {
		t.Fatalf("ChangeAppointmentStatus: %v", err)
	}

	if result.Appointment.Status != appointment.StatusRescheduled {
		t.Errorf("old record should be RESCHEDULED, got %s", result.Appointment.Status)
	}
	if result.Replacement == nil {
		t.Fatal("expected a replacement appointment")
	}
	if result.Replacement.RescheduledFromID == nil || *result.Replacement.RescheduledFromID != a.ID {
		t.Error("replacement should link back to the old record")
	}
	if len(appointments.appointments) != 2 {
		t.Errorf("expected both records persisted, got %d", len(appointments.appointments))
	}
}

func TestChangeStatusRetriesOnConflict(t *testing.T) {
	p := testARTPatient(t)
	appointments := newFakeAppointments()
	svc := newTestService(newFakePatients(p), &fakeConsultations{}, appointments)
	doctorID := types.NewID()

	a, err := svc.ScheduleAppointment(context.Background(), doctorID, ScheduleInput{
		PatientID:   p.ID,
		ScheduledAt: time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("ScheduleAppointment: %v", err)
	}

	appointments.updateConflicts = 1
	result, err := svc.ChangeAppointmentStatus(context.Background(), a.ID, doctorID, appointment.StatusNoShow, StatusChangeInput{})
	if err != nil {
		t.Fatalf("expected single conflict to be retried, got %v", err)
	}
	if result.Appointment.Status != appointment.StatusNoShow {
		t.Errorf("expected NO_SHOW after retry, got %s", result.Appointment.Status)
	}
}

func TestFailedRescheduleLeavesNoReplacement(t *testing.T) {
	p := testARTPatient(t)
	appointments := newFakeAppointments()
	svc := newTestService(newFakePatients(p), &fakeConsultations{}, appointments)
	doctorID := types.NewID()

	a, err := svc.ScheduleAppointment(context.Background(), doctorID, ScheduleInput{
		PatientID:   p.ID,
		ScheduledAt: time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("ScheduleAppointment: %v", err)
	}

	newTime := time.Now().Add(72 * time.Hour)
	appointments.updateConflicts = 2
	_, err = svc.ChangeAppointmentStatus(context.Background(), a.ID, doctorID, appointment.StatusRescheduled, StatusChangeInput{
		NewScheduledAt: &newTime,
	})
	if !stderrors.Is(err, errors.ErrConcurrentModification) {
		t.Fatalf("expected conflict to surface, got %v", err)
	}

	// A replacement without its closed counterpart would be an orphan, so
	// every losing attempt must take the replacement back out.
	if len(appointments.appointments) != 1 {
		t.Fatalf("expected only the original appointment, got %d", len(appointments.appointments))
	}
	remaining, err := svc.GetAppointment(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("GetAppointment: %v", err)
	}
	if remaining.Status != appointment.StatusScheduled {
		t.Errorf("original should remain SCHEDULED, got %s", remaining.Status)
	}
}

func TestScheduleAppointmentValidatesOrigin(t *testing.T) {
	p := testARTPatient(t)
	other := testNormalPatient(t)
	svc := newTestService(newFakePatients(p, other), &fakeConsultations{}, newFakeAppointments())
	doctorID := types.NewID()

	foreign, err := svc.CreateConsultation(context.Background(), other.ID, doctorID, CreateConsultationInput{
		Type:   consultation.TypeAtencion,
		Reason: "control",
	})
	if err != nil {
		t.Fatalf("CreateConsultation: %v", err)
	}

	_, err = svc.ScheduleAppointment(context.Background(), doctorID, ScheduleInput{
		PatientID:            p.ID,
		ScheduledAt:          time.Now().Add(24 * time.Hour),
		OriginConsultationID: &foreign.ID,
	})
	if !stderrors.Is(err, errors.ErrConsultationMismatch) {
		t.Errorf("expected consultation mismatch, got %v", err)
	}
}

func TestAgendaFlags(t *testing.T) {
	p := testARTPatient(t)
	doctorID := types.NewID()
	now := time.Now()

	overdue, err := appointment.New(p.ID, doctorID, now.Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	upcoming, err := appointment.New(p.ID, doctorID, now.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	appointments := newFakeAppointments(overdue, upcoming)
	svc := newTestService(newFakePatients(p), &fakeConsultations{}, appointments)

	entries, err := svc.Agenda(context.Background(), doctorID, now.Add(-24*time.Hour), now.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Agenda: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 agenda entries, got %d", len(entries))
	}

	for _, e := range entries {
		switch e.Appointment.ID {
		case overdue.ID:
			if !e.Overdue || e.Upcoming {
				t.Errorf("past appointment should be overdue only, got overdue=%v upcoming=%v", e.Overdue, e.Upcoming)
			}
		case upcoming.ID:
			if e.Overdue || !e.Upcoming {
				t.Errorf("near-future appointment should be upcoming only, got overdue=%v upcoming=%v", e.Overdue, e.Upcoming)
			}
		}
	}
}
