package models

import (
	"errors"
	"fmt"
)

// ErrMissingFile is returned when an entity references a PDF that does not
// exist on disk. It is fatal for the document and never retried.
var ErrMissingFile = errors.New("referenced PDF file does not exist")

// ValidationError represents a domain invariant violated at entity construction.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// ExtractionError represents a required field that could not be extracted
// from source text, a table, or the oracle's JSON payload.
type ExtractionError struct {
	Field  string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to extract field '%s': %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("failed to extract field '%s': %s", e.Field, e.Reason)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// NewExtractionError creates a new ExtractionError.
func NewExtractionError(field, reason string) *ExtractionError {
	return &ExtractionError{Field: field, Reason: reason}
}

// WrapExtractionError creates an ExtractionError that preserves the
// originating cause for diagnostics.
func WrapExtractionError(field, reason string, err error) *ExtractionError {
	return &ExtractionError{Field: field, Reason: reason, Err: err}
}
