package model

import (
	"strings"
	"time"
)

// PatientDetails holds the demographic record of an already-verified patient.
// Verification itself happens upstream; this type only carries the fields the
// upload pipeline cross-checks against Lloyd George filenames.
type PatientDetails struct {
	// NHSNumber is the patient's 10-digit NHS number.
	NHSNumber string
	// GivenNames are the patient's forenames, in order.
	GivenNames []string
	// FamilyName is the patient's surname.
	FamilyName string
	// BirthDate is the patient's date of birth.
	BirthDate time.Time
}

// FullName returns the given names and family name joined by spaces.
func (p PatientDetails) FullName() string {
	parts := make([]string, 0, len(p.GivenNames)+1)
	parts = append(parts, p.GivenNames...)
	if p.FamilyName != "" {
		parts = append(parts, p.FamilyName)
	}
	return strings.Join(parts, " ")
}
