package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/kbukum/hostkit/errors"
)

// Validator collects validation errors.
type Validator struct {
	errors []FieldError
}

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates a new Validator.
func New() *Validator {
	return &Validator{
		errors: make([]FieldError, 0),
	}
}

// AddError adds a field error.
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, FieldError{
		Field:   field,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors.
func (v *Validator) Errors() []FieldError {
	return v.errors
}

// Validate returns an AppError if there are validation errors, nil otherwise.
func (v *Validator) Validate() *errors.AppError {
	if !v.HasErrors() {
		return nil
	}

	messages := make([]string, len(v.errors))
	for i, e := range v.errors {
		messages[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}

	return errors.Validation(strings.Join(messages, "; ")).WithDetail("fields", v.errors)
}

// Err is Validate returned as the error interface, so a clean result is a true nil.
func (v *Validator) Err() error {
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// Required checks if a string is non-empty.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "is required")
	}
	return v
}

// Segment checks that a non-empty value is a single key segment.
func (v *Validator) Segment(field, value string) *Validator {
	if value != "" && !IsSegment(value) {
		v.AddError(field, "must be a single key segment")
	}
	return v
}

// PositiveDuration checks that d is greater than zero.
func (v *Validator) PositiveDuration(field string, d time.Duration) *Validator {
	if d <= 0 {
		v.AddError(field, "must be a positive duration")
	}
	return v
}

// MinInt checks if a number meets minimum value.
func (v *Validator) MinInt(field string, value, minVal int) *Validator {
	if value < minVal {
		v.AddError(field, fmt.Sprintf("must be at least %d", minVal))
	}
	return v
}

// PositiveFloat checks that value is greater than zero.
func (v *Validator) PositiveFloat(field string, value float64) *Validator {
	if value <= 0 {
		v.AddError(field, "must be greater than 0")
	}
	return v
}

// OneOf checks if a value is one of the allowed values.
func (v *Validator) OneOf(field, value string, allowed []string) *Validator {
	if value == "" {
		return v
	}
	for _, a := range allowed {
		if value == a {
			return v
		}
	}
	v.AddError(field, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
	return v
}

// Custom applies a custom validation condition.
func (v *Validator) Custom(condition bool, field, message string) *Validator {
	if !condition {
		v.AddError(field, message)
	}
	return v
}
