// Package validation checks candidate bills before they are attached to a user.
//
// Validate reports a failure as a *ValidationError. MustValidate panics with
// the same value for callers that treat a bad bill as unrecoverable.
package validation

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mmynk/billtx/internal/models"
)

// ErrValidationFailed matches every *ValidationError with errors.Is.
var ErrValidationFailed = errors.New("validation failed")

// ValidationError describes the rule a bill broke. The only rule is that
// its date is not after today.
type ValidationError struct {
	Field  string
	Tag    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid bill: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// Validator applies the bill rules against a clock.
type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

// New creates a Validator. A nil now uses time.Now.
func New(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	v := &Validator{validate: validator.New(), now: now}

	// Registration only fails for empty tags or nil funcs.
	_ = v.validate.RegisterValidation("notfuture", v.notFuture)

	return v
}

// Validate checks in and returns a *ValidationError on failure.
func (v *Validator) Validate(in models.BillInput) error {
	err := v.validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("failed to validate bill: %w", err)
	}

	fe := fieldErrs[0]
	return &ValidationError{
		Field:  fe.Field(),
		Tag:    fe.Tag(),
		Reason: reason(fe),
	}
}

// MustValidate is Validate for callers that cannot recover from a bad bill.
// It panics with the *ValidationError.
func (v *Validator) MustValidate(in models.BillInput) {
	if err := v.Validate(in); err != nil {
		panic(err)
	}
}

// Today returns the validator's current calendar date.
func (v *Validator) Today() time.Time {
	return models.Day(v.now())
}

func (v *Validator) notFuture(fl validator.FieldLevel) bool {
	t, ok := fl.Field().Interface().(time.Time)
	if !ok {
		return false
	}
	return !models.Day(t).After(v.Today())
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "notfuture":
		return "is in the future"
	default:
		return "is invalid"
	}
}
