// Package sequence allocates per-year control-number sequences.
//
// Every implementation performs the increment and the read-back as one atomic
// step at the storage layer; none derives the next value from existing
// records. Two calls for the same year never return the same value. Values
// burnt by a failed insert are not reused, so gaps are possible.
package sequence

import (
	"fmt"

	"bizreg/internal/business/controlnumber"
	dErrors "bizreg/pkg/domain-errors"
)

func validateYear(year int) error {
	if year < controlnumber.MinYear || year > controlnumber.MaxYear {
		return dErrors.Validation("year", fmt.Sprintf("year %d out of range", year))
	}
	return nil
}
