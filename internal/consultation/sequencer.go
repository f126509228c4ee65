package consultation

import (
	"sort"

	"github.com/ocupmed/platform/internal/patient"
	"github.com/ocupmed/platform/internal/shared/errors"
)

// caseState is the position of an ART case in the regulated sequence,
// derived purely from the ordered consultation history.
type caseState int

const (
	// stateNone: no consultations yet, only an admission may start the case
	stateNone caseState = iota
	// stateOpen: admitted (or re-admitted) and not discharged since
	stateOpen
	// stateClosed: discharged; only a re-admission reopens the case
	stateClosed
)

// deriveState replays the history in createdAt order. It is the only place
// the sequence position is computed, so it can never drift from the records.
func deriveState(history []Consultation) caseState {
	ordered := make([]Consultation, len(history))
	copy(ordered, history)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	state := stateNone
	for _, c := range ordered {
		switch c.Type {
		case TypeIngreso, TypeReingreso:
			state = stateOpen
		case TypeAlta:
			state = stateClosed
		case TypeAtencion:
			// Follow-ups do not move the case
		}
	}
	return state
}

// AvailableTypes computes the consultation types a patient may create next.
// NORMAL patients are unconstrained; ART patients follow the case state.
func AvailableTypes(p *patient.Patient, history []Consultation) []Type {
	if !patient.RequiresSequencedConsultations(p) {
		return AllTypes()
	}

	switch deriveState(history) {
	case stateNone:
		return []Type{TypeIngreso}
	case stateOpen:
		return []Type{TypeAtencion, TypeAlta}
	case stateClosed:
		return []Type{TypeReingreso}
	}
	return nil
}

// ValidateCreate checks a proposed consultation type against the sequencing
// rules. It is side-effect free and must be called on every creation path;
// callers may filter their own option lists but are never trusted to.
func ValidateCreate(p *patient.Patient, history []Consultation, proposed Type) error {
	if !proposed.IsValid() {
		return errors.Validation("unknown consultation type", map[string]string{"type": string(proposed)})
	}

	if !patient.RequiresSequencedConsultations(p) {
		return nil
	}

	switch deriveState(history) {
	case stateNone:
		if proposed != TypeIngreso {
			return errors.SequencingViolation("INGRESO required first")
		}
	case stateOpen:
		switch proposed {
		case TypeIngreso:
			return errors.DuplicateIngreso()
		case TypeReingreso:
			return errors.SequencingViolation("case is already open, re-admission requires a prior discharge")
		}
	case stateClosed:
		if proposed != TypeReingreso {
			return errors.ClaimClosed()
		}
	}

	return nil
}

// EmployerRequired reports whether the create operation must carry a
// non-empty employer reference. True for every ART consultation.
func EmployerRequired(p *patient.Patient, proposed Type) bool {
	return patient.RequiresSequencedConsultations(p)
}
