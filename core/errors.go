// Package core provides the fundamental building blocks of the argil data layer.
// This file defines the error taxonomy: precondition sentinels, field-level
// validation errors, and helpers for wrapped backend errors.
package core

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned when an operation runs against a model whose
// driver was never set and no default driver factory is registered.
// It is a fatal precondition error and is never retried.
var ErrNotConfigured = errors.New("argil: driver not configured")

// ErrUnsupported is returned by drivers for operations their backend cannot
// express (e.g. aggregation pipelines on the memory driver).
var ErrUnsupported = errors.New("argil: operation not supported by driver")

// FieldError reports a validation failure on a single field.
//
// It is thrown before any driver call is issued, carries the offending field
// name, and is fully recoverable by the caller.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("argil: field %q %s", e.Field, e.Message)
}

// newFieldError builds a FieldError, honoring a field-level message override.
func newFieldError(field *Field, message string) *FieldError {
	if field.Message != "" {
		message = field.Message
	}
	return &FieldError{Field: field.Name, Message: message}
}

// IsValidationError reports whether err is (or wraps) a FieldError.
func IsValidationError(err error) bool {
	var fe *FieldError
	return errors.As(err, &fe)
}
