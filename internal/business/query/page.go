package query

import (
	"cmp"
	"strings"

	"bizreg/internal/business/models"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// SortField is one of the allow-listed sort keys.
type SortField string

const (
	SortCreatedAt     SortField = "createdAt"
	SortBusinessName  SortField = "businessName"
	SortControlNumber SortField = "controlNumber"
	SortLastname      SortField = "lastname"
)

// ParseSortField maps a requested key onto the allow-list, falling back to
// createdAt.
func ParseSortField(s string) SortField {
	switch f := SortField(strings.TrimSpace(s)); f {
	case SortCreatedAt, SortBusinessName, SortControlNumber, SortLastname:
		return f
	}
	return SortCreatedAt
}

// Sort orders records. Ties are broken by insertion order, oldest first,
// whatever the direction.
type Sort struct {
	Field SortField
	Desc  bool
}

// DefaultSort is newest first.
var DefaultSort = Sort{Field: SortCreatedAt, Desc: true}

// ParseSort builds a Sort from raw sortBy/sortOrder values.
func ParseSort(sortBy, sortOrder string) Sort {
	return Sort{
		Field: ParseSortField(sortBy),
		Desc:  !strings.EqualFold(strings.TrimSpace(sortOrder), "asc"),
	}
}

// Order renders the direction as asc or desc.
func (s Sort) Order() string {
	if s.Desc {
		return "desc"
	}
	return "asc"
}

// Compare orders a and b on the sort field alone, honoring direction.
// It returns 0 on ties so callers can apply the insertion-order tie-break.
func (s Sort) Compare(a, b *models.BusinessRecord) int {
	var c int
	switch s.Field {
	case SortBusinessName:
		c = strings.Compare(a.BusinessName, b.BusinessName)
	case SortControlNumber:
		c = compareControlNumbers(a.ControlNumber, b.ControlNumber)
	case SortLastname:
		c = strings.Compare(a.Lastname, b.Lastname)
	default:
		c = a.CreatedAt.Compare(b.CreatedAt)
	}
	if s.Desc {
		return -c
	}
	return c
}

// compareControlNumbers orders by year, then sequence width, then text, so
// 2025-10000 sorts after 2025-9999. The postgres store orders the same way.
func compareControlNumbers(a, b string) int {
	if c := strings.Compare(yearPart(a), yearPart(b)); c != 0 {
		return c
	}
	if len(a) != len(b) {
		return cmp.Compare(len(a), len(b))
	}
	return strings.Compare(a, b)
}

func yearPart(cn string) string {
	if len(cn) < 4 {
		return cn
	}
	return cn[:4]
}

// Page is a 1-based pagination window.
type Page struct {
	Number int
	Limit  int
}

// NewPage clamps number to >= 1 and limit into [1, MaxLimit].
func NewPage(number, limit int) Page {
	if number < 1 {
		number = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Page{Number: number, Limit: limit}
}

// Offset is the number of records skipped before the window.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}

// PageInfo describes a page of results.
type PageInfo struct {
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	Total       int  `json:"total"`
	TotalPages  int  `json:"totalPages"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

// NewPageInfo derives page metadata from the total match count.
func NewPageInfo(p Page, total int) PageInfo {
	totalPages := 0
	if total > 0 {
		totalPages = (total + p.Limit - 1) / p.Limit
	}
	return PageInfo{
		Page:        p.Number,
		Limit:       p.Limit,
		Total:       total,
		TotalPages:  totalPages,
		HasNextPage: p.Number < totalPages,
		HasPrevPage: p.Number > 1,
	}
}
