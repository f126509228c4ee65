package appointment

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ocupmed/platform/internal/shared/errors"
	"github.com/ocupmed/platform/internal/shared/types"
)

// Repository provides database operations for appointments
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new appointment repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const appointmentColumns = `id, patient_id, doctor_id, scheduled_at, status,
	COALESCE(cancel_reason, ''), COALESCE(notes, ''),
	origin_consultation_id, completion_consultation_id, rescheduled_from_id,
	version, created_at, updated_at`

// Create persists a new appointment
func (r *Repository) Create(ctx context.Context, a *Appointment) error {
	query := `
		INSERT INTO clinic.appointments (
			id, patient_id, doctor_id, scheduled_at, status,
			cancel_reason, notes,
			origin_consultation_id, completion_consultation_id, rescheduled_from_id,
			version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.PatientID, a.DoctorID, a.ScheduledAt, a.Status,
		a.CancelReason, a.Notes,
		a.OriginConsultationID, a.CompletionConsultationID, a.RescheduledFromID,
		a.Version, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create appointment")
	}

	return nil
}

// GetByID retrieves an appointment
func (r *Repository) GetByID(ctx context.Context, id types.ID) (*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM clinic.appointments WHERE id = $1`

	a := &Appointment{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.PatientID, &a.DoctorID, &a.ScheduledAt, &a.Status,
		&a.CancelReason, &a.Notes,
		&a.OriginConsultationID, &a.CompletionConsultationID, &a.RescheduledFromID,
		&a.Version, &a.CreatedAt, &a.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("appointment", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find appointment")
	}

	return a, nil
}

// Update writes an appointment conditionally on its last-read version. A
// version mismatch means another doctor changed the record in between.
func (r *Repository) Update(ctx context.Context, a *Appointment) error {
	query := `
		UPDATE clinic.appointments SET
			scheduled_at = $3, status = $4, cancel_reason = $5, notes = $6,
			completion_consultation_id = $7,
			version = version + 1, updated_at = $8
		WHERE id = $1 AND version = $2`

	result, err := r.pool.Exec(ctx, query,
		a.ID, a.Version, a.ScheduledAt, a.Status, a.CancelReason, a.Notes,
		a.CompletionConsultationID, a.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update appointment")
	}

	if result.RowsAffected() == 0 {
		return errors.ConcurrentModification("appointment")
	}

	a.Version++
	return nil
}

// ListByPatient retrieves a patient's appointments ordered by schedule
func (r *Repository) ListByPatient(ctx context.Context, patientID types.ID) ([]Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
		FROM clinic.appointments
		WHERE patient_id = $1
		ORDER BY scheduled_at`

	return r.queryMany(ctx, query, patientID)
}

// ListByDoctor retrieves a doctor's appointments in a date range
func (r *Repository) ListByDoctor(ctx context.Context, doctorID types.ID, from, to time.Time) ([]Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
		FROM clinic.appointments
		WHERE doctor_id = $1 AND scheduled_at >= $2 AND scheduled_at < $3
		ORDER BY scheduled_at`

	return r.queryMany(ctx, query, doctorID, from, to)
}

// Delete removes an appointment. The deletion guard runs before this.
func (r *Repository) Delete(ctx context.Context, id types.ID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM clinic.appointments WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete appointment")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("appointment", id.String())
	}
	return nil
}

func (r *Repository) queryMany(ctx context.Context, query string, args ...any) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list appointments")
	}
	defer rows.Close()

	var appointments []Appointment
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(
			&a.ID, &a.PatientID, &a.DoctorID, &a.ScheduledAt, &a.Status,
			&a.CancelReason, &a.Notes,
			&a.OriginConsultationID, &a.CompletionConsultationID, &a.RescheduledFromID,
			&a.Version, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan appointment")
		}
		appointments = append(appointments, a)
	}

	return appointments, nil
}
