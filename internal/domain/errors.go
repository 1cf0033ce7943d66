package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

var (
	ErrConfig     = errors.New("configuration error")
	ErrValidation = errors.New("validation failed")
	ErrConstraint = errors.New("constraint violation")
	ErrStorage    = errors.New("storage failure")
	ErrNotFound   = errors.New("not found")
	ErrImmutable  = errors.New("record is immutable")
	ErrUnderage   = errors.New("customer is under the minimum age")
	ErrDevice     = errors.New("capture device unavailable")
)

// ValidationError collects every field problem found on one entity.
// It matches ErrValidation with errors.Is.
type ValidationError struct {
	Entity string
	errs   *multierror.Error
}

func NewValidationError(entity string) *ValidationError {
	return &ValidationError{Entity: entity}
}

// Addf records a problem with a single field.
func (e *ValidationError) Addf(field, format string, args ...any) {
	e.errs = multierror.Append(e.errs, fmt.Errorf("%s: %s", field, fmt.Sprintf(format, args...)))
}

// Len is the number of recorded problems.
func (e *ValidationError) Len() int {
	if e.errs == nil {
		return 0
	}
	return e.errs.Len()
}

// Problems returns the individual field problems.
func (e *ValidationError) Problems() []error {
	if e.errs == nil {
		return nil
	}
	return e.errs.Errors
}

// ErrorOrNil returns nil when nothing was recorded, so callers can
// `return v.ErrorOrNil()` after running all checks.
func (e *ValidationError) ErrorOrNil() error {
	if e.Len() == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, e.Len())
	for _, err := range e.Problems() {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("invalid %s: %s", e.Entity, strings.Join(msgs, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
