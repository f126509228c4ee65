// Package legacy imports patients and their visit history from the clinic's
// previous SQL Server system. The import is a one-shot migration run at
// startup when enabled, not a live synchronization.
package legacy

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver
	"github.com/ocupmed/platform/internal/consultation"
	"github.com/ocupmed/platform/internal/patient"
	"github.com/ocupmed/platform/internal/shared/config"
	"github.com/ocupmed/platform/internal/shared/types"
)

// PatientWriter persists imported patients
type PatientWriter interface {
	Create(ctx context.Context, p *patient.Patient) error
}

// ConsultationWriter persists imported consultations
type ConsultationWriter interface {
	Create(ctx context.Context, c *consultation.Consultation) error
}

// Importer reads the legacy schema and writes into the platform stores
type Importer struct {
	cfg           config.LegacyConfig
	db            *sql.DB
	patients      PatientWriter
	consultations ConsultationWriter
}

// NewImporter creates a legacy importer
func NewImporter(cfg config.LegacyConfig, patients PatientWriter, consultations ConsultationWriter) *Importer {
	return &Importer{cfg: cfg, patients: patients, consultations: consultations}
}

// Open connects to the legacy SQL Server database
func (i *Importer) Open(ctx context.Context) error {
	db, err := sql.Open("sqlserver", i.cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to open legacy database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping legacy database: %w", err)
	}

	i.db = db
	return nil
}

// Close closes the legacy connection
func (i *Importer) Close() {
	if i.db != nil {
		i.db.Close()
	}
}

// Run imports all legacy patients and their visits. Rows that fail
// validation are skipped and reported in the result instead of aborting
// the whole run.
func (i *Importer) Run(ctx context.Context) (*Result, error) {
	if i.db == nil {
		return nil, fmt.Errorf("importer not connected")
	}

	result := &Result{}

	records, err := i.fetchPatients(ctx)
	if err != nil {
		return nil, err
	}

	for _, rec := range records {
		if err := i.importPatient(ctx, rec, result); err != nil {
			result.PatientsSkipped++
			result.Errors = append(result.Errors,
				fmt.Sprintf("patient %s: %v", rec.LegacyID, err))
		}
	}

	log.Printf("Legacy import finished: %d patients, %d visits (%d patients skipped, %d visits skipped)",
		result.PatientsImported, result.VisitsImported, result.PatientsSkipped, result.VisitsSkipped)

	return result, nil
}

func (i *Importer) importPatient(ctx context.Context, rec patientRecord, result *Result) error {
	var cuil types.CUIL
	if rec.CUIL != "" {
		parsed, err := types.ParseCUIL(rec.CUIL)
		if err != nil {
			return fmt.Errorf("invalid CUIL %q: %w", rec.CUIL, err)
		}
		cuil = parsed
	}

	var claim *patient.NewClaimInput
	if rec.IsART {
		if rec.AccidentAt == nil {
			return fmt.Errorf("ART record without accident date")
		}
		claim = &patient.NewClaimInput{
			Contingency: mapContingency(rec.Contingency),
			AccidentAt:  *rec.AccidentAt,
		}
	}

	p, err := patient.NewPatient(rec.FirstName, rec.LastName, cuil, claim)
	if err != nil {
		return err
	}
	p.BirthDate = rec.BirthDate
	p.Employer = rec.Employer
	p.Address = types.NewAddress(rec.Street, rec.City, rec.PostalCode)
	p.Contact = types.ContactInfo{Phone: rec.Phone, Email: rec.Email}
	if p.Claim != nil && rec.ClaimClosed {
		p.Claim.Status = patient.ClaimStatusClosed
		p.Claim.ClosureReason = "closed in legacy system"
	}

	if err := i.patients.Create(ctx, p); err != nil {
		return err
	}
	result.PatientsImported++

	return i.importVisits(ctx, rec.LegacyID, p, result)
}

// importVisits replays a patient's legacy visits oldest first. Each visit
// is validated against the sequencing rules with the history imported so
// far, so a corrupted legacy trail cannot produce an invalid case here.
func (i *Importer) importVisits(ctx context.Context, legacyPatientID string, p *patient.Patient, result *Result) error {
	visits, err := i.fetchVisits(ctx, legacyPatientID)
	if err != nil {
		return err
	}

	var history []consultation.Consultation
	for _, v := range visits {
		consultationType, ok := mapVisitCode(v.VisitCode)
		if !ok {
			result.VisitsSkipped++
			result.Errors = append(result.Errors,
				fmt.Sprintf("visit %s: unknown visit code %q", v.LegacyID, v.VisitCode))
			continue
		}

		if err := consultation.ValidateCreate(p, history, consultationType); err != nil {
			result.VisitsSkipped++
			result.Errors = append(result.Errors,
				fmt.Sprintf("visit %s: %v", v.LegacyID, err))
			continue
		}

		doctorID := types.NewID()
		if parsed, err := types.ParseID(v.DoctorID); err == nil {
			doctorID = parsed
		}

		reason := v.Reason
		if reason == "" {
			reason = "imported legacy visit"
		}

		c, err := consultation.New(p.ID, doctorID, consultationType, reason)
		if err != nil {
			result.VisitsSkipped++
			result.Errors = append(result.Errors,
				fmt.Sprintf("visit %s: %v", v.LegacyID, err))
			continue
		}
		c.Diagnosis = v.Diagnosis
		c.Indications = v.Indications
		c.CreatedAt = v.VisitedAt
		if patient.RequiresSequencedConsultations(p) {
			c.Employer = v.Employer
			if c.Employer == "" {
				c.Employer = p.Employer
			}
			c.ART = &consultation.ARTDetails{}
		}

		if err := i.consultations.Create(ctx, c); err != nil {
			return err
		}

		history = append(history, *c)
		result.VisitsImported++
	}

	return nil
}

func (i *Importer) fetchPatients(ctx context.Context) ([]patientRecord, error) {
	query := `
		SELECT
			p.PacienteID,
			p.Nombre,
			p.Apellido,
			p.CUIL,
			p.FechaNacimiento,
			p.Empleador,
			p.Calle,
			p.Localidad,
			p.CodigoPostal,
			p.Telefono,
			p.Email,
			p.EsART,
			s.Aseguradora,
			s.NumeroSiniestro,
			s.Contingencia,
			s.FechaAccidente,
			s.Cerrado
		FROM dbo.Pacientes p
		LEFT JOIN dbo.Siniestros s ON s.PacienteID = p.PacienteID
		ORDER BY p.PacienteID, s.FechaAccidente DESC`

	rows, err := i.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query legacy patients: %w", err)
	}
	defer rows.Close()

	var records []patientRecord
	for rows.Next() {
		var rec patientRecord
		var cuil, employer, street, city, postal, phone, email sql.NullString
		var birthDate, accidentAt sql.NullTime
		var insurer, claimNumber, contingency sql.NullString
		var claimClosed sql.NullBool

		err := rows.Scan(
			&rec.LegacyID,
			&rec.FirstName,
			&rec.LastName,
			&cuil,
			&birthDate,
			&employer,
			&street,
			&city,
			&postal,
			&phone,
			&email,
			&rec.IsART,
			&insurer,
			&claimNumber,
			&contingency,
			&accidentAt,
			&claimClosed,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan legacy patient: %w", err)
		}

		rec.CUIL = cuil.String
		rec.Employer = employer.String
		rec.Street = street.String
		rec.City = city.String
		rec.PostalCode = postal.String
		rec.Phone = phone.String
		rec.Email = email.String
		rec.InsurerName = insurer.String
		rec.ClaimNumber = claimNumber.String
		rec.Contingency = contingency.String
		if birthDate.Valid {
			rec.BirthDate = &birthDate.Time
		}
		if accidentAt.Valid {
			rec.AccidentAt = &accidentAt.Time
		}
		if claimClosed.Valid {
			rec.ClaimClosed = claimClosed.Bool
		}

		records = append(records, rec)
	}

	return collapseClaims(records), nil
}

// collapseClaims keeps one record per legacy patient. The legacy schema
// allows several siniestros per patient while the platform models a single
// claim, so the most recent accident wins; rows arrive newest first.
func collapseClaims(records []patientRecord) []patientRecord {
	seen := make(map[string]bool, len(records))
	out := make([]patientRecord, 0, len(records))
	for _, rec := range records {
		if seen[rec.LegacyID] {
			continue
		}
		seen[rec.LegacyID] = true
		out = append(out, rec)
	}
	return out
}

func (i *Importer) fetchVisits(ctx context.Context, legacyPatientID string) ([]visitRecord, error) {
	query := `
		SELECT
			AtencionID,
			PacienteID,
			MedicoID,
			TipoAtencion,
			Motivo,
			Diagnostico,
			Indicaciones,
			Empleador,
			FechaAtencion
		FROM dbo.Atenciones
		WHERE PacienteID = @pacienteID
		ORDER BY FechaAtencion ASC`

	rows, err := i.db.QueryContext(ctx, query, sql.Named("pacienteID", legacyPatientID))
	if err != nil {
		return nil, fmt.Errorf("failed to query legacy visits: %w", err)
	}
	defer rows.Close()

	var visits []visitRecord
	for rows.Next() {
		var v visitRecord
		var doctorID, reason, diagnosis, indications, employer sql.NullString

		err := rows.Scan(
			&v.LegacyID,
			&v.PatientID,
			&doctorID,
			&v.VisitCode,
			&reason,
			&diagnosis,
			&indications,
			&employer,
			&v.VisitedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan legacy visit: %w", err)
		}

		v.DoctorID = doctorID.String
		v.Reason = reason.String
		v.Diagnosis = diagnosis.String
		v.Indications = indications.String
		v.Employer = employer.String

		visits = append(visits, v)
	}

	return visits, nil
}

// mapVisitCode maps legacy TipoAtencion codes to consultation types
func mapVisitCode(code string) (consultation.Type, bool) {
	switch code {
	case "ING", "I":
		return consultation.TypeIngreso, true
	case "ATE", "A":
		return consultation.TypeAtencion, true
	case "ALT", "F":
		return consultation.TypeAlta, true
	case "REI", "R":
		return consultation.TypeReingreso, true
	default:
		return "", false
	}
}

// mapContingency maps legacy contingency codes, defaulting to work accident
func mapContingency(code string) patient.Contingency {
	switch code {
	case "EP":
		return patient.ContingencyOccupationalDisease
	case "II":
		return patient.ContingencyCommuteAccident
	default:
		return patient.ContingencyWorkAccident
	}
}
