package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrValidation           = errors.New("invalid request")
	ErrStorageUnavailable   = errors.New("storage unavailable")
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// ValidationError describes a request field that is missing or malformed.
// It matches ErrValidation with errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a ValidationError for the given field
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidationError checks if an error is a client-input failure
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsStorageError checks if an error came from the storage backend
func IsStorageError(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}
