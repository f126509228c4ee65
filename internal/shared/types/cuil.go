package types

import (
	"fmt"
	"regexp"
	"strings"
)

// CUIL represents an Argentine worker identification number (11 digits)
// Format: TTNNNNNNNNK where:
// - TT: person type prefix (20, 23, 24, 27 for individuals; 30, 33, 34 for employers)
// - NNNNNNNN: the national identity number (DNI), zero-padded
// - K: checksum digit
type CUIL string

var cuilRegex = regexp.MustCompile(`^\d{11}$`)

// ParseCUIL validates and parses a CUIL string, accepting the common
// hyphenated form (20-12345678-3) as well as bare digits.
func ParseCUIL(s string) (CUIL, error) {
	s = strings.ReplaceAll(s, "-", "")
	if !cuilRegex.MatchString(s) {
		return "", fmt.Errorf("CUIL must be exactly 11 digits")
	}

	cuil := CUIL(s)
	if !cuil.IsValid() {
		return "", fmt.Errorf("invalid CUIL checksum")
	}

	return cuil, nil
}

// String returns the string representation
func (c CUIL) String() string {
	return string(c)
}

// Formatted returns the conventional hyphenated form (TT-NNNNNNNN-K)
func (c CUIL) Formatted() string {
	if len(c) != 11 {
		return string(c)
	}
	return string(c)[:2] + "-" + string(c)[2:10] + "-" + string(c)[10:]
}

// Masked returns a masked version for display (prefix and check digit visible)
func (c CUIL) Masked() string {
	if len(c) != 11 {
		return "***********"
	}
	return string(c)[:2] + "-********-" + string(c)[10:]
}

// IsValid validates the CUIL checksum (mod 11)
func (c CUIL) IsValid() bool {
	if len(c) != 11 {
		return false
	}

	digits := make([]int, 11)
	for i, ch := range c {
		digits[i] = int(ch - '0')
	}

	// Weights defined by AFIP for CUIL/CUIT validation
	weights := []int{5, 4, 3, 2, 7, 6, 5, 4, 3, 2}

	sum := 0
	for i := 0; i < 10; i++ {
		sum += digits[i] * weights[i]
	}

	checkDigit := 11 - sum%11
	switch checkDigit {
	case 11:
		checkDigit = 0
	case 10:
		// Remainder 10 forces a different prefix; such a number is never
		// issued with this exact digit sequence.
		return false
	}

	return digits[10] == checkDigit
}

// IsZero checks if the CUIL is empty
func (c CUIL) IsZero() bool {
	return c == ""
}
