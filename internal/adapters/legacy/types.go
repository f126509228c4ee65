package legacy

import "time"

// patientRecord is a row from the legacy Pacientes table
type patientRecord struct {
	LegacyID    string
	FirstName   string
	LastName    string
	CUIL        string
	BirthDate   *time.Time
	Employer    string
	Street      string
	City        string
	PostalCode  string
	Phone       string
	Email       string
	IsART       bool
	InsurerName string
	ClaimNumber string
	Contingency string
	AccidentAt  *time.Time
	ClaimClosed bool
}

// visitRecord is a row from the legacy Atenciones table
type visitRecord struct {
	LegacyID    string
	PatientID   string
	DoctorID    string
	VisitCode   string
	Reason      string
	Diagnosis   string
	Indications string
	Employer    string
	VisitedAt   time.Time
}

// Result summarizes an import run
type Result struct {
	PatientsImported  int      `json:"patients_imported"`
	PatientsSkipped   int      `json:"patients_skipped"`
	VisitsImported    int      `json:"visits_imported"`
	VisitsSkipped     int      `json:"visits_skipped"`
	Errors            []string `json:"errors,omitempty"`
}
