// Package query turns request parameters into a canonical Filter, Sort and
// Page that both record stores and the analysis engine consume.
package query

import (
	"strings"
	"time"

	"bizreg/internal/business/controlnumber"
	"bizreg/internal/business/models"
)

// Field names a searchable text field of a business record.
type Field string

const (
	FieldFirstname     Field = "firstname"
	FieldMiddlename    Field = "middlename"
	FieldLastname      Field = "lastname"
	FieldBusinessName  Field = "businessName"
	FieldAddress       Field = "address"
	FieldControlNumber Field = "controlNumber"
)

// Search field sets used by the list, name and address endpoints.
var (
	GeneralSearchFields = []Field{FieldFirstname, FieldMiddlename, FieldLastname, FieldBusinessName, FieldAddress, FieldControlNumber}
	NameSearchFields    = []Field{FieldFirstname, FieldMiddlename, FieldLastname, FieldBusinessName}
	AddressSearchFields = []Field{FieldAddress}
)

// Value reads the field from a record.
func (f Field) Value(b *models.BusinessRecord) string {
	switch f {
	case FieldFirstname:
		return b.Firstname
	case FieldMiddlename:
		return b.Middlename
	case FieldLastname:
		return b.Lastname
	case FieldBusinessName:
		return b.BusinessName
	case FieldAddress:
		return b.Address
	case FieldControlNumber:
		return b.ControlNumber
	}
	return ""
}

// Filter is the canonical predicate over business records. The zero value
// matches everything. Dimensions are AND-combined; within Search the fields
// are OR-combined.
type Filter struct {
	// Search is a literal substring, or a whole-field value with ExactMatch.
	Search       string
	SearchFields []Field
	ExactMatch   bool

	// Year restricts to control numbers prefixed "YYYY-". Zero means any.
	Year   int
	Status models.Status

	// CreatedFrom and CreatedTo bound CreatedAt inclusively.
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// Fields returns the search fields, defaulting to GeneralSearchFields.
func (f Filter) Fields() []Field {
	if len(f.SearchFields) == 0 {
		return GeneralSearchFields
	}
	return f.SearchFields
}

// YearPrefix returns the control-number prefix for Year, or "".
func (f Filter) YearPrefix() string {
	if f.Year == 0 {
		return ""
	}
	return controlnumber.Prefix(f.Year)
}

// WithYear returns a copy restricted to year.
func (f Filter) WithYear(year int) Filter {
	f.Year = year
	return f
}

// Matches evaluates the filter against one record.
func (f Filter) Matches(b *models.BusinessRecord) bool {
	if b == nil {
		return false
	}
	if f.Search != "" && !f.matchesSearch(b) {
		return false
	}
	if f.Year != 0 && !strings.HasPrefix(b.ControlNumber, f.YearPrefix()) {
		return false
	}
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	if f.CreatedFrom != nil && b.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && b.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	return true
}

func (f Filter) matchesSearch(b *models.BusinessRecord) bool {
	needle := f.Search
	if !f.ExactMatch {
		needle = strings.ToLower(needle)
	}
	for _, field := range f.Fields() {
		v := field.Value(b)
		if f.ExactMatch {
			if v == needle {
				return true
			}
			continue
		}
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}

// GroupKey names a derived key for grouped counts.
type GroupKey string

const (
	GroupStatus GroupKey = "status"
	// GroupYear groups by the four-digit control-number prefix.
	GroupYear GroupKey = "year"
)

// GroupValue derives the group key of a record.
func (k GroupKey) GroupValue(b *models.BusinessRecord) string {
	switch k {
	case GroupStatus:
		return string(b.Status)
	case GroupYear:
		return controlnumber.YearOf(b.ControlNumber)
	}
	return ""
}
