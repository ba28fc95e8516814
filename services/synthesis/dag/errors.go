// Copyright (C) 2025 Wildtrace Labs (dev@wildtrace.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dag

import (
	"errors"
	"fmt"
)

// Sentinel errors for the dag package.
var (
	// ErrNilContext is returned when a nil context is passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicateStage is returned when adding a stage with an existing name.
	ErrDuplicateStage = errors.New("stage with this name already exists")

	// ErrStageNotFound is returned when a dependency references a stage
	// that doesn't exist.
	ErrStageNotFound = errors.New("stage not found")

	// ErrCycleDetected is returned when the stage graph contains a cycle.
	ErrCycleDetected = errors.New("cycle detected in stage graph")

	// ErrBadWeights is returned when stage weights don't sum to 100.
	ErrBadWeights = errors.New("stage weights must sum to 100")

	// ErrNoProgress is returned when no stages can make progress (deadlock).
	ErrNoProgress = errors.New("no progress possible: deadlock or missing dependency")

	// ErrStageTimeout is returned when a stage exceeds its timeout.
	ErrStageTimeout = errors.New("stage execution timed out")

	// ErrRunTimeout is returned when the whole run exceeds its backstop timeout.
	ErrRunTimeout = errors.New("run exceeded its overall timeout")

	// ErrMissingInput is returned by request builders when a stage has no
	// input to analyze (e.g., the acoustic stage with no audio segments).
	ErrMissingInput = errors.New("stage has no input to analyze")
)

// StageError wraps an error with the stage that caused it.
type StageError struct {
	Stage string
	Err   error
}

// Error returns the error message.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %q: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError creates a StageError.
func NewStageError(stage string, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// CycleError provides details about a detected cycle.
type CycleError struct {
	Path []string
}

// Error returns the cycle description.
func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected: %v", e.Path)
}

// Unwrap lets errors.Is match ErrCycleDetected.
func (e *CycleError) Unwrap() error {
	return ErrCycleDetected
}

// NewCycleError creates a CycleError.
func NewCycleError(path []string) *CycleError {
	return &CycleError{Path: path}
}
