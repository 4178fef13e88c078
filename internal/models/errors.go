package models

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrNotFound         = errors.New("not found")
	ErrDelivery         = errors.New("delivery failed")
	ErrActionExecution  = errors.New("action execution failed")
)

// ValidationError names the offending field. It is marked with ErrValidation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) error {
	return errors.Mark(&ValidationError{Field: field, Reason: reason}, ErrValidation)
}

// StoreError wraps a backend failure and marks it as ErrStoreUnavailable.
func StoreError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrap(err, msg), ErrStoreUnavailable)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
