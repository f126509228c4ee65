package consultation

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ocupmed/platform/internal/shared/errors"
	"github.com/ocupmed/platform/internal/shared/types"
)

// Repository provides database operations for consultations
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new consultation repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create persists a new consultation
func (r *Repository) Create(ctx context.Context, c *Consultation) error {
	query := `
		INSERT INTO clinic.consultations (
			id, patient_id, doctor_id, type, reason, employer, diagnosis, indications,
			next_appointment_at,
			art_accident_description, art_establishment, art_contact, art_treatment,
			version, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)`

	var artAccident, artEstablishment, artContact, artTreatment *string
	if c.ART != nil {
		artAccident = &c.ART.AccidentDescription
		artEstablishment = &c.ART.Establishment
		artContact = &c.ART.Contact
		artTreatment = &c.ART.Treatment
	}

	_, err := r.pool.Exec(ctx, query,
		c.ID, c.PatientID, c.DoctorID, c.Type, c.Reason, c.Employer, c.Diagnosis, c.Indications,
		c.NextAppointmentAt,
		artAccident, artEstablishment, artContact, artTreatment,
		c.Version, c.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create consultation")
	}

	return nil
}

// GetByID retrieves a consultation
func (r *Repository) GetByID(ctx context.Context, id types.ID) (*Consultation, error) {
	query := `
		SELECT id, patient_id, doctor_id, type, reason, COALESCE(employer, ''),
			COALESCE(diagnosis, ''), COALESCE(indications, ''),
			next_appointment_at,
			art_accident_description, art_establishment, art_contact, art_treatment,
			version, created_at
		FROM clinic.consultations
		WHERE id = $1`

	c := &Consultation{}
	var artAccident, artEstablishment, artContact, artTreatment *string

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.PatientID, &c.DoctorID, &c.Type, &c.Reason, &c.Employer,
		&c.Diagnosis, &c.Indications,
		&c.NextAppointmentAt,
		&artAccident, &artEstablishment, &artContact, &artTreatment,
		&c.Version, &c.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("consultation", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find consultation")
	}

	c.ART = scanARTDetails(artAccident, artEstablishment, artContact, artTreatment)

	return c, nil
}

// ListByPatient retrieves a patient's consultations ordered by creation time
func (r *Repository) ListByPatient(ctx context.Context, patientID types.ID) ([]Consultation, error) {
	query := `
		SELECT id, patient_id, doctor_id, type, reason, COALESCE(employer, ''),
			COALESCE(diagnosis, ''), COALESCE(indications, ''),
			next_appointment_at,
			art_accident_description, art_establishment, art_contact, art_treatment,
			version, created_at
		FROM clinic.consultations
		WHERE patient_id = $1
		ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, patientID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list consultations")
	}
	defer rows.Close()

	var consultations []Consultation
	for rows.Next() {
		var c Consultation
		var artAccident, artEstablishment, artContact, artTreatment *string
		if err := rows.Scan(
			&c.ID, &c.PatientID, &c.DoctorID, &c.Type, &c.Reason, &c.Employer,
			&c.Diagnosis, &c.Indications,
			&c.NextAppointmentAt,
			&artAccident, &artEstablishment, &artContact, &artTreatment,
			&c.Version, &c.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan consultation")
		}
		c.ART = scanARTDetails(artAccident, artEstablishment, artContact, artTreatment)
		consultations = append(consultations, c)
	}

	return consultations, nil
}

// Delete removes a consultation. The deletion guard runs before this.
func (r *Repository) Delete(ctx context.Context, id types.ID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM clinic.consultations WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete consultation")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("consultation", id.String())
	}
	return nil
}

func scanARTDetails(accident, establishment, contact, treatment *string) *ARTDetails {
	if accident == nil && establishment == nil && contact == nil && treatment == nil {
		return nil
	}

	details := &ARTDetails{}
	if accident != nil {
		details.AccidentDescription = *accident
	}
	if establishment != nil {
		details.Establishment = *establishment
	}
	if contact != nil {
		details.Contact = *contact
	}
	if treatment != nil {
		details.Treatment = *treatment
	}
	return details
}
