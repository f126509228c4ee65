package patient

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ocupmed/platform/internal/shared/errors"
	"github.com/ocupmed/platform/internal/shared/types"
)

// Repository provides database operations for patients and their claims
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new patient repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create persists a new patient together with its claim, if any
func (r *Repository) Create(ctx context.Context, p *Patient) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO clinic.patients (
			id, type, first_name, last_name, cuil, birth_date, employer,
			address_street, address_city, address_province, address_postal_code, address_country,
			contact_email, contact_phone, contact_mobile,
			version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14, $15,
			$16, $17, $18
		)`

	_, err = tx.Exec(ctx, query,
		p.ID, p.Type, p.FirstName, p.LastName, p.CUIL.String(), p.BirthDate, p.Employer,
		p.Address.Street, p.Address.City, p.Address.Province, p.Address.PostalCode, p.Address.Country,
		p.Contact.Email, p.Contact.Phone, p.Contact.Mobile,
		p.Version, p.CreatedAt, p.UpdatedAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("patient already exists")
		}
		return errors.Wrap(err, "failed to create patient")
	}

	if p.Claim != nil {
		claimQuery := `
			INSERT INTO clinic.insurance_claims (
				id, patient_id, contingency, accident_at, status,
				closure_reason, closing_doctor_id,
				version, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

		_, err = tx.Exec(ctx, claimQuery,
			p.Claim.ID, p.Claim.PatientID, p.Claim.Contingency, p.Claim.AccidentAt, p.Claim.Status,
			p.Claim.ClosureReason, p.Claim.ClosingDoctorID,
			p.Claim.Version, p.Claim.CreatedAt, p.Claim.UpdatedAt,
		)
		if err != nil {
			return errors.Wrap(err, "failed to create insurance claim")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	return nil
}

// GetByID retrieves a patient and its claim
func (r *Repository) GetByID(ctx context.Context, id types.ID) (*Patient, error) {
	query := `
		SELECT id, type, first_name, last_name, cuil, birth_date, employer,
			address_street, address_city, address_province, address_postal_code, address_country,
			contact_email, contact_phone, contact_mobile,
			version, created_at, updated_at
		FROM clinic.patients
		WHERE id = $1`

	p := &Patient{}
	var cuil *string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Type, &p.FirstName, &p.LastName, &cuil, &p.BirthDate, &p.Employer,
		&p.Address.Street, &p.Address.City, &p.Address.Province, &p.Address.PostalCode, &p.Address.Country,
		&p.Contact.Email, &p.Contact.Phone, &p.Contact.Mobile,
		&p.Version, &p.CreatedAt, &p.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("patient", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find patient")
	}
	if cuil != nil {
		p.CUIL = types.CUIL(*cuil)
	}

	claim, err := r.getClaim(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Claim = claim

	return p, nil
}

// getClaim loads the claim attached to a patient, nil when there is none
func (r *Repository) getClaim(ctx context.Context, patientID types.ID) (*InsuranceClaim, error) {
	query := `
		SELECT id, patient_id, contingency, accident_at, status,
			COALESCE(closure_reason, ''), closing_doctor_id,
			version, created_at, updated_at
		FROM clinic.insurance_claims
		WHERE patient_id = $1`

	c := &InsuranceClaim{}
	err := r.pool.QueryRow(ctx, query, patientID).Scan(
		&c.ID, &c.PatientID, &c.Contingency, &c.AccidentAt, &c.Status,
		&c.ClosureReason, &c.ClosingDoctorID,
		&c.Version, &c.CreatedAt, &c.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load insurance claim")
	}

	return c, nil
}

// ListFilter defines filters for listing patients
type ListFilter struct {
	Type   *Type
	Search string
	Limit  int
	Offset int
}

// List retrieves patients matching a filter
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Patient, int, error) {
	where := []string{"1=1"}
	args := []any{}
	argn := 1

	if filter.Type != nil {
		where = append(where, fmt.Sprintf("type = $%d", argn))
		args = append(args, *filter.Type)
		argn++
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(first_name ILIKE $%d OR last_name ILIKE $%d OR cuil LIKE $%d)", argn, argn, argn))
		args = append(args, "%"+filter.Search+"%")
		argn++
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM clinic.patients WHERE " + whereClause
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count patients")
	}

	query := fmt.Sprintf(`
		SELECT id, type, first_name, last_name, cuil, birth_date, employer,
			version, created_at, updated_at
		FROM clinic.patients
		WHERE %s
		ORDER BY last_name, first_name
		LIMIT $%d OFFSET $%d`, whereClause, argn, argn+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list patients")
	}
	defer rows.Close()

	var patients []Patient
	for rows.Next() {
		var p Patient
		var cuil *string
		if err := rows.Scan(
			&p.ID, &p.Type, &p.FirstName, &p.LastName, &cuil, &p.BirthDate, &p.Employer,
			&p.Version, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan patient")
		}
		if cuil != nil {
			p.CUIL = types.CUIL(*cuil)
		}
		patients = append(patients, p)
	}

	return patients, total, nil
}

// UpdateClaim writes a claim conditionally on its last-read version. A
// version mismatch means another doctor changed the claim in between.
func (r *Repository) UpdateClaim(ctx context.Context, c *InsuranceClaim) error {
	query := `
		UPDATE clinic.insurance_claims SET
			status = $3, closure_reason = $4, closing_doctor_id = $5,
			version = version + 1, updated_at = $6
		WHERE id = $1 AND version = $2`

	result, err := r.pool.Exec(ctx, query,
		c.ID, c.Version, c.Status, c.ClosureReason, c.ClosingDoctorID, c.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update insurance claim")
	}

	if result.RowsAffected() == 0 {
		return errors.ConcurrentModification("insurance claim")
	}

	c.Version++
	return nil
}
