package handler

import (
	"strings"

	"bizreg/internal/business/models"
	dErrors "bizreg/pkg/domain-errors"
)

const maxFieldLength = 200

// BusinessRequest is the body of POST and PUT /api/businesses.
type BusinessRequest struct {
	Firstname    string `json:"firstname"`
	Middlename   string `json:"middlename"`
	Lastname     string `json:"lastname"`
	BusinessName string `json:"businessName"`
	Address      string `json:"address"`
	Status       string `json:"status"`
	// ControlNumber is accepted on update only to detect attempts to
	// change it. It is never taken from a create request.
	ControlNumber string `json:"controlNumber"`
}

// Validate implements httputil.Validatable.
func (r *BusinessRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	fields := []struct {
		name, value string
	}{
		{"firstname", r.Firstname},
		{"middlename", r.Middlename},
		{"lastname", r.Lastname},
		{"businessName", r.BusinessName},
		{"address", r.Address},
	}
	for _, f := range fields {
		if len(f.value) > maxFieldLength {
			return dErrors.Validation(f.name, f.name+" must be at most 200 characters")
		}
	}
	r.ControlNumber = strings.TrimSpace(r.ControlNumber)
	reg := r.Registration()
	reg.Normalize()
	return reg.Validate()
}

// Registration converts the body to the domain input.
func (r *BusinessRequest) Registration() models.Registration {
	return models.Registration{
		Firstname:    r.Firstname,
		Middlename:   r.Middlename,
		Lastname:     r.Lastname,
		BusinessName: r.BusinessName,
		Address:      r.Address,
		Status:       models.Status(r.Status),
	}
}
