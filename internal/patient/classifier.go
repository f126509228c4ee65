package patient

// Classify determines a patient's classification. A patient is an ART case
// if and only if an insurance claim is attached; this is a total function
// and the single source of truth every other component derives from.
func Classify(p *Patient) Type {
	if p != nil && p.Claim != nil {
		return TypeART
	}
	return TypeNormal
}

// RequiresSequencedConsultations reports whether the regulated consultation
// sequence (INGRESO, ATENCION, ALTA, REINGRESO) applies to this patient.
func RequiresSequencedConsultations(p *Patient) bool {
	return Classify(p) == TypeART
}
