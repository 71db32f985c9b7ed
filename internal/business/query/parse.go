package query

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bizreg/internal/business/controlnumber"
	"bizreg/internal/business/models"
	dErrors "bizreg/pkg/domain-errors"
)

const dateLayout = "2006-01-02"

// maxSearchLength bounds free-text search input.
const maxSearchLength = 200

// ListParams is the parsed form of a list request.
type ListParams struct {
	Filter Filter
	Sort   Sort
	Page   Page
}

// Parse reads the recognized list parameters (search, year, status,
// startDate, endDate, exactMatch, sortBy, sortOrder, page, limit) and
// ignores any others. Structurally invalid values are rejected before any
// store is touched. Date bounds are resolved in loc.
func Parse(values url.Values, loc *time.Location) (ListParams, error) {
	filter, err := ParseFilter(values, loc)
	if err != nil {
		return ListParams{}, err
	}
	number, err := parsePositiveInt(values, "page", 1)
	if err != nil {
		return ListParams{}, err
	}
	limit, err := parsePositiveInt(values, "limit", DefaultLimit)
	if err != nil {
		return ListParams{}, err
	}
	page := NewPage(number, limit)
	if page.Number > math.MaxInt/page.Limit {
		return ListParams{}, dErrors.Validation("page", "page is out of range")
	}
	return ListParams{
		Filter: filter,
		Sort:   ParseSort(values.Get("sortBy"), values.Get("sortOrder")),
		Page:   page,
	}, nil
}

// ParseFilter reads only the filter dimensions of a request.
func ParseFilter(values url.Values, loc *time.Location) (Filter, error) {
	if loc == nil {
		loc = time.UTC
	}
	var f Filter

	search, err := parseSearch(values.Get("search"), "search")
	if err != nil {
		return Filter{}, err
	}
	f.Search = search
	f.SearchFields = GeneralSearchFields

	if f.ExactMatch, err = parseBool(values, "exactMatch"); err != nil {
		return Filter{}, err
	}

	if raw := strings.TrimSpace(values.Get("year")); raw != "" {
		year, err := controlnumber.ParseYear(raw)
		if err != nil {
			return Filter{}, err
		}
		f.Year = year
	}

	if raw := strings.TrimSpace(values.Get("status")); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			return Filter{}, err
		}
		f.Status = status
	}

	if raw := strings.TrimSpace(values.Get("startDate")); raw != "" {
		day, err := parseDate(raw, loc, "startDate")
		if err != nil {
			return Filter{}, err
		}
		start := StartOfDay(day, loc)
		f.CreatedFrom = &start
	}
	if raw := strings.TrimSpace(values.Get("endDate")); raw != "" {
		day, err := parseDate(raw, loc, "endDate")
		if err != nil {
			return Filter{}, err
		}
		end := EndOfDay(day, loc)
		f.CreatedTo = &end
	}
	if f.CreatedFrom != nil && f.CreatedTo != nil && f.CreatedFrom.After(*f.CreatedTo) {
		return Filter{}, dErrors.Validation("endDate", "endDate must not be before startDate")
	}
	return f, nil
}

// NameSearch builds the filter for the name search endpoint. The name is
// required.
func NameSearch(name string, exact bool) (Filter, error) {
	return fieldSearch(name, "name", exact, NameSearchFields)
}

// AddressSearch builds the filter for the address search endpoint. The
// address is required.
func AddressSearch(address string, exact bool) (Filter, error) {
	return fieldSearch(address, "address", exact, AddressSearchFields)
}

// ParseExactMatch reads the exactMatch flag, defaulting to false.
func ParseExactMatch(values url.Values) (bool, error) {
	return parseBool(values, "exactMatch")
}

func fieldSearch(value, param string, exact bool, fields []Field) (Filter, error) {
	if strings.TrimSpace(value) == "" {
		return Filter{}, dErrors.Validation(param, param+" parameter is required")
	}
	// Exact matching compares whole stored values, which are trimmed on write.
	value = strings.TrimSpace(value)
	search, err := parseSearch(value, param)
	if err != nil {
		return Filter{}, err
	}
	return Filter{Search: search, SearchFields: fields, ExactMatch: exact}, nil
}

// StartOfDay is 00:00:00.000 of day in loc.
func StartOfDay(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// EndOfDay is 23:59:59.999 of day in loc.
func EndOfDay(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.In(loc).Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), loc)
}

func parseSearch(raw, param string) (string, error) {
	s := strings.TrimSpace(raw)
	if len(s) > maxSearchLength {
		return "", dErrors.Validation(param, param+" is too long")
	}
	return s, nil
}

func parseDate(raw string, loc *time.Location, param string) (time.Time, error) {
	if t, err := time.ParseInLocation(dateLayout, raw, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.In(loc), nil
	}
	return time.Time{}, dErrors.Validation(param, param+" must be a date (YYYY-MM-DD)")
}

func parseBool(values url.Values, param string) (bool, error) {
	raw := strings.TrimSpace(values.Get(param))
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, dErrors.Validation(param, param+" must be true or false")
	}
	return b, nil
}

func parsePositiveInt(values url.Values, param string, def int) (int, error) {
	raw := strings.TrimSpace(values.Get(param))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dErrors.Validation(param, param+" must be an integer")
	}
	return n, nil
}
