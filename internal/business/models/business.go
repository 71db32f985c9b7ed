package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "bizreg/pkg/domain-errors"
)

// BusinessID identifies a business record. It is assigned by the store layer
// and never changes.
type BusinessID uuid.UUID

// NewBusinessID returns a fresh random identifier.
func NewBusinessID() BusinessID {
	return BusinessID(uuid.New())
}

// ParseBusinessID parses a textual UUID, rejecting the nil UUID.
func ParseBusinessID(s string) (BusinessID, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil || parsed == uuid.Nil {
		return BusinessID{}, dErrors.Validation("id", "invalid business id")
	}
	return BusinessID(parsed), nil
}

func (id BusinessID) String() string {
	return uuid.UUID(id).String()
}

func (id BusinessID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id BusinessID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *BusinessID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

// Status tracks how far a registration has progressed.
type Status string

const (
	StatusStep1    Status = "step1"
	StatusStep2    Status = "step2"
	StatusStep3    Status = "step3"
	StatusComplete Status = "complete"
)

// DefaultStatus is applied when a registration omits its status.
const DefaultStatus = StatusComplete

// Statuses lists every valid status in workflow order.
var Statuses = []Status{StatusStep1, StatusStep2, StatusStep3, StatusComplete}

// ParseStatus validates a textual status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.TrimSpace(s))
	if st.IsValid() {
		return st, nil
	}
	return "", dErrors.Validation("status", "status must be one of step1, step2, step3, complete")
}

func (s Status) IsValid() bool {
	switch s {
	case StatusStep1, StatusStep2, StatusStep3, StatusComplete:
		return true
	}
	return false
}

// BusinessRecord is a registered business.
//
// Invariants:
//   - Firstname, Lastname, BusinessName and Address are non-empty and trimmed
//   - Status is one of Statuses
//   - ControlNumber is assigned once at creation and never rewritten
type BusinessRecord struct {
	ID            BusinessID `json:"id"`
	Firstname     string     `json:"firstname"`
	Middlename    string     `json:"middlename,omitempty"`
	Lastname      string     `json:"lastname"`
	BusinessName  string     `json:"businessName"`
	Address       string     `json:"address"`
	Status        Status     `json:"status"`
	ControlNumber string     `json:"controlNumber"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Registration carries the caller-supplied fields of a business record.
type Registration struct {
	Firstname    string
	Middlename   string
	Lastname     string
	BusinessName string
	Address      string
	Status       Status
}

// Normalize trims every text field and applies the default status.
func (r *Registration) Normalize() {
	r.Firstname = strings.TrimSpace(r.Firstname)
	r.Middlename = strings.TrimSpace(r.Middlename)
	r.Lastname = strings.TrimSpace(r.Lastname)
	r.BusinessName = strings.TrimSpace(r.BusinessName)
	r.Address = strings.TrimSpace(r.Address)
	r.Status = Status(strings.TrimSpace(string(r.Status)))
	if r.Status == "" {
		r.Status = DefaultStatus
	}
}

// Validate reports the first missing or invalid field. Call Normalize first.
func (r *Registration) Validate() error {
	required := []struct {
		field, value string
	}{
		{"firstname", r.Firstname},
		{"lastname", r.Lastname},
		{"businessName", r.BusinessName},
		{"address", r.Address},
	}
	for _, f := range required {
		if f.value == "" {
			return dErrors.Validation(f.field, f.field+" is required")
		}
	}
	if !r.Status.IsValid() {
		return dErrors.Validation("status", "status must be one of step1, step2, step3, complete")
	}
	return nil
}

// NewBusinessRecord builds a record from a validated registration.
// The control number and timestamps are filled in by the service and store.
func NewBusinessRecord(id BusinessID, reg Registration, controlNumber string, now time.Time) (*BusinessRecord, error) {
	reg.Normalize()
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	if controlNumber == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "control number is required")
	}
	return &BusinessRecord{
		ID:            id,
		Firstname:     reg.Firstname,
		Middlename:    reg.Middlename,
		Lastname:      reg.Lastname,
		BusinessName:  reg.BusinessName,
		Address:       reg.Address,
		Status:        reg.Status,
		ControlNumber: controlNumber,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// ApplyUpdate replaces the mutable fields. ID, ControlNumber and CreatedAt
// are left untouched.
func (b *BusinessRecord) ApplyUpdate(reg Registration, now time.Time) error {
	reg.Normalize()
	if err := reg.Validate(); err != nil {
		return err
	}
	b.Firstname = reg.Firstname
	b.Middlename = reg.Middlename
	b.Lastname = reg.Lastname
	b.BusinessName = reg.BusinessName
	b.Address = reg.Address
	b.Status = reg.Status
	b.UpdatedAt = now
	return nil
}

// Summary is the projection shown in the dashboard's recent list.
type Summary struct {
	ID            BusinessID `json:"id"`
	Firstname     string     `json:"firstname"`
	Lastname      string     `json:"lastname"`
	BusinessName  string     `json:"businessName"`
	ControlNumber string     `json:"controlNumber"`
	Status        Status     `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Summarize projects a record onto Summary.
func (b *BusinessRecord) Summarize() Summary {
	return Summary{
		ID:            b.ID,
		Firstname:     b.Firstname,
		Lastname:      b.Lastname,
		BusinessName:  b.BusinessName,
		ControlNumber: b.ControlNumber,
		Status:        b.Status,
		CreatedAt:     b.CreatedAt,
	}
}

// Clone returns a copy safe to hand out of a store.
func (b *BusinessRecord) Clone() *BusinessRecord {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}
