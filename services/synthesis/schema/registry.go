// Copyright (C) 2025 Wildtrace Labs (dev@wildtrace.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package schema validates model responses against per-stage output shapes.
//
// Every model response is untrusted input. The registry decodes the raw
// JSON into the typed payload registered for the stage and runs struct
// validation before anything downstream may touch it. A response that does
// not match its stage's shape yields a *ValidationError, which the executor
// treats as retryable (once, with a repair instruction).
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/wildtrace/wildtrace/services/synthesis/datatypes"
)

// decoderFor maps a stage name to a strict decode of its payload type.
type decoderFor func(raw []byte) (datatypes.StagePayload, error)

// Registry holds the known stage output shapes.
//
// Thread Safety:
//
//	Registry is safe for concurrent use after construction. Register is
//	not safe to call concurrently with Decode.
type Registry struct {
	validate *validator.Validate
	decoders map[string]decoderFor
}

// NewRegistry creates a registry pre-populated with the built-in stage
// payload shapes.
func NewRegistry() *Registry {
	r := &Registry{
		validate: validator.New(),
		decoders: make(map[string]decoderFor),
	}

	Register[datatypes.VisualAnalysis](r, datatypes.StageVisualAnalysis)
	Register[datatypes.AcousticProfile](r, datatypes.StageAcousticAnalysis)
	Register[datatypes.TemporalDelta](r, datatypes.StageTemporalDelta)
	Register[datatypes.FusionAnalysis](r, datatypes.StageFusionAnalysis)
	Register[datatypes.AuditReport](r, datatypes.StageAudit)
	Register[datatypes.ExperienceSynthesis](r, datatypes.StageExperienceSynthesis)
	Register[datatypes.Narrative](r, datatypes.StageNarrative)

	return r
}

// Register binds a payload type to a stage name. Later registrations for
// the same stage replace earlier ones, which lets callers override a
// built-in shape when they reconfigure the stage catalog.
func Register[P datatypes.StagePayload](r *Registry, stage string) {
	r.decoders[stage] = func(raw []byte) (datatypes.StagePayload, error) {
		var payload P
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&payload); err != nil {
			return nil, err
		}
		return payload, nil
	}
}

// Known reports whether a stage has a registered output shape.
func (r *Registry) Known(stage string) bool {
	_, ok := r.decoders[stage]
	return ok
}

// Decode parses and validates a raw model response for a stage.
//
// Inputs:
//
//	stage - The stage name the response belongs to.
//	raw - The raw JSON bytes returned by the model invoker.
//
// Outputs:
//
//	datatypes.StagePayload - The typed, validated payload.
//	error - ErrUnknownStage for unregistered stages, *ValidationError when
//	        the response does not match the registered shape.
func (r *Registry) Decode(stage string, raw []byte) (datatypes.StagePayload, error) {
	decode, ok := r.decoders[stage]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStage, stage)
	}

	payload, err := decode(raw)
	if err != nil {
		return nil, NewValidationError(stage, "response is not valid JSON for the expected shape", err)
	}

	if err := r.validate.Struct(payload); err != nil {
		return nil, NewValidationError(stage, describeFieldErrors(err), err)
	}

	return payload, nil
}

// describeFieldErrors turns validator output into a repair hint the model
// can act on during the retry.
func describeFieldErrors(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}

	msg := "invalid fields:"
	for _, fe := range fieldErrs {
		msg += fmt.Sprintf(" %s (%s)", fe.Field(), fe.Tag())
	}
	return msg
}
