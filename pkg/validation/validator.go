// Package validation checks request and configuration shapes with struct tags.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/securely/surfacemap/pkg/model"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	MaxEmailLength    = 254
	MaxRecords        = 500
	MaxRelaxIteration = 5000
)

func init() {
	validate = validator.New()
}

// LookupRequest asks for the attack surface of one identity.
type LookupRequest struct {
	Email string `json:"email" validate:"required,max=254"`
	Relax int    `json:"relax" validate:"omitempty,min=0,max=5000"`
}

// RelaxRequest asks for a bounded relaxation pass.
type RelaxRequest struct {
	Iterations int `json:"iterations" validate:"required,min=1,max=5000"`
}

// PointRequest carries canvas coordinates from a pointer or drag event.
type PointRequest struct {
	X *float64 `json:"x" validate:"required"`
	Y *float64 `json:"y" validate:"required"`
}

// ValidateLookupRequest validates a lookup request. The email is trimmed in place.
func ValidateLookupRequest(req *LookupRequest) error {
	if req == nil {
		return fmt.Errorf("%w: lookup request cannot be nil", model.ErrInvalidInput)
	}
	req.Email = strings.TrimSpace(req.Email)
	return Struct(req)
}

// ValidateRecords checks the size of a breach record list. Individual records
// are never rejected here; malformed ones fall back to the default classification.
func ValidateRecords(records []model.BreachRecord) error {
	if len(records) > MaxRecords {
		return fmt.Errorf("%w: Records: maximum %d records allowed, got %d", model.ErrInvalidInput, MaxRecords, len(records))
	}
	return nil
}

// Struct validates any tagged struct and wraps failures as invalid input.
func Struct(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidInput, formatValidationError(err))
	}
	return nil
}

func formatValidationError(err error) error {
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	// First failure only
	for _, e := range validationErrs {
		field := e.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		param := e.Param()

		switch e.Tag() {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "min", "gte":
			return fmt.Errorf("%s: must be at least %s", field, param)
		case "max", "lte":
			return fmt.Errorf("%s: must not exceed %s", field, param)
		case "gt":
			return fmt.Errorf("%s: must be greater than %s", field, param)
		case "oneof":
			return fmt.Errorf("%s: must be one of [%s]", field, param)
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
		}
	}

	return err
}
