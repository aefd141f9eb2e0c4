/*
errors.go - Centralized error types for the commission engine

PURPOSE:
  All error kinds in one place. The HTTP layer maps them to status codes;
  the service layer is the only place that creates them.

ERROR CATEGORIES:
  1. Validation errors - missing/invalid field, non-positive amount, bad date
  2. Not found errors  - referenced collaborator/installment does not exist

USAGE:
  Match with errors.Is against the sentinels, or errors.As to get details:

    var verr *generic.ValidationError
    if errors.As(err, &verr) {
        log.Println(verr.Field)
    }

SEE ALSO:
  - commission/service.go: Produces these errors
  - api/handlers.go: Maps them to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when an input field is missing or invalid.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending input field.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NotFoundError identifies the missing record.
type NotFoundError struct {
	Resource string // e.g. "collaborator", "installment"
	ID       int64
}

// NewNotFoundError builds a NotFoundError.
func NewNotFoundError(resource string, id int64) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation returns true if the error is due to invalid input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsClientError returns true if the caller can fix the error by changing the request.
func IsClientError(err error) bool {
	return IsValidation(err) || IsNotFound(err)
}
