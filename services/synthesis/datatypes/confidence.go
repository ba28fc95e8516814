// Copyright (C) 2025 Wildtrace Labs (dev@wildtrace.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides type definitions for the synthesis pipeline.
//
// This package is the leaf of the synthesis service: every other package
// (schema, dag, confidence, record, pipeline) depends on it, and it depends
// on nothing but the standard library and the validator.
package datatypes

// Confidence is the categorical certainty label attached to a stage result
// and to the final record.
//
// Description:
//
//	Confidence is ordered: High > Medium > Low. The ordering matters for
//	aggregation, where the record-level confidence is the minimum over the
//	required stages that completed.
//
// Valid Values:
//   - "low"
//   - "medium"
//   - "high"
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// validConfidences contains all valid Confidence values for validation.
var validConfidences = map[Confidence]bool{
	ConfidenceLow:    true,
	ConfidenceMedium: true,
	ConfidenceHigh:   true,
}

// confidenceRanks maps each Confidence to its ordinal rank.
var confidenceRanks = map[Confidence]int{
	ConfidenceLow:    0,
	ConfidenceMedium: 1,
	ConfidenceHigh:   2,
}

// IsValid checks if the Confidence is a valid value.
func (c Confidence) IsValid() bool {
	return validConfidences[c]
}

// Rank returns the ordinal rank of the Confidence (Low=0, Medium=1, High=2).
// Unknown values rank below Low so they can never raise an aggregate.
func (c Confidence) Rank() int {
	rank, ok := confidenceRanks[c]
	if !ok {
		return -1
	}
	return rank
}

// MinConfidence returns the lower of two confidence values.
func MinConfidence(a, b Confidence) Confidence {
	if a.Rank() <= b.Rank() {
		return a
	}
	return b
}
