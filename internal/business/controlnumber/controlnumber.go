// Package controlnumber formats and parses the YYYY-NNNN identifiers assigned
// to business records. The sequence is zero-padded to four digits and widens
// past 9999 instead of truncating.
package controlnumber

import (
	"fmt"
	"strconv"
	"strings"

	dErrors "bizreg/pkg/domain-errors"
)

const (
	// MinYear and MaxYear bound the years that fit the four-digit prefix.
	MinYear = 1
	MaxYear = 9999

	minSeqDigits = 4
)

// Format renders year and sequence as YYYY-NNNN.
func Format(year int, sequence int64) string {
	return fmt.Sprintf("%04d-%0*d", year, minSeqDigits, sequence)
}

// Prefix returns the "YYYY-" prefix shared by every control number of year.
func Prefix(year int) string {
	return fmt.Sprintf("%04d-", year)
}

// Parse splits a control number into year and sequence.
// The input must be exactly four digits, a hyphen, and at least four digits.
func Parse(s string) (year int, sequence int64, err error) {
	yearPart, seqPart, ok := strings.Cut(s, "-")
	if !ok || len(yearPart) != 4 || len(seqPart) < minSeqDigits ||
		!allDigits(yearPart) || !allDigits(seqPart) {
		return 0, 0, malformed(s)
	}
	year, err = strconv.Atoi(yearPart)
	if err != nil {
		return 0, 0, malformed(s)
	}
	sequence, err = strconv.ParseInt(seqPart, 10, 64)
	if err != nil {
		return 0, 0, malformed(s)
	}
	return year, sequence, nil
}

// Valid reports whether s is a well-formed control number.
func Valid(s string) bool {
	_, _, err := Parse(s)
	return err == nil
}

// ParseYear validates a four-digit year filter value.
func ParseYear(s string) (int, error) {
	if len(s) != 4 || !allDigits(s) {
		return 0, dErrors.Validation("year", "year must be a 4-digit number")
	}
	year, _ := strconv.Atoi(s)
	if year < MinYear {
		return 0, dErrors.Validation("year", "year must be between 0001 and 9999")
	}
	return year, nil
}

// YearOf extracts the year prefix of a control number without validating
// the sequence part. It returns "" when the prefix is not four digits.
func YearOf(s string) string {
	if len(s) < 5 || s[4] != '-' || !allDigits(s[:4]) {
		return ""
	}
	return s[:4]
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

func malformed(s string) error {
	return dErrors.Validation("controlNumber", fmt.Sprintf("malformed control number %q", s))
}
