// Copyright (C) 2025 Wildtrace Labs (dev@wildtrace.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package schema

import "errors"

// Sentinel errors for the schema package.
var (
	// ErrUnknownStage is returned when decoding a stage with no registered shape.
	ErrUnknownStage = errors.New("no schema registered for stage")
)

// ValidationError reports a model response that does not match its stage's
// registered shape.
type ValidationError struct {
	// Stage is the stage whose response failed validation.
	Stage string

	// RepairHint is a human/model-readable description of what was wrong,
	// appended to the retry request so the model can correct itself.
	RepairHint string

	// Err is the underlying decode or field validation error.
	Err error
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	return "stage " + e.Stage + ": schema validation failed: " + e.RepairHint
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a ValidationError.
func NewValidationError(stage, hint string, err error) *ValidationError {
	return &ValidationError{Stage: stage, RepairHint: hint, Err: err}
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
