// Copyright (C) 2025 Wildtrace Labs (dev@wildtrace.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// LocationContext is the caller-supplied place information for a record.
// The pipeline never resolves coordinates itself; the map layer does that.
type LocationContext struct {
	// Label is the human place name ("Eagle Creek Trail").
	Label string `json:"label"`

	// Park is the containing park or protected area, if known.
	Park string `json:"park,omitempty"`

	// Position is the representative coordinate for the observation.
	Position *GeoPoint `json:"position,omitempty"`
}

// EvidenceRef points at a captured media segment backing a record claim.
// Only segment IDs are stored; the media bytes stay with the external store.
type EvidenceRef struct {
	SegmentID  string    `json:"segment_id"`
	MimeType   string    `json:"mime_type"`
	CapturedAt time.Time `json:"captured_at"`
}

// EnvironmentalRecord is the single output of one synthesis run.
//
// Description:
//
//	Exactly one record is produced per pipeline run, whatever the outcome:
//	a failed run yields a Low-confidence fallback record rather than an
//	error. Records are immutable once assembled; the external journal is
//	responsible for at-most-once persistence per session.
type EnvironmentalRecord struct {
	// ID is deterministic for a given session so that re-assembling the
	// same run yields an identical record.
	ID string `json:"id"`

	// SessionID ties the record to the originating synthesis request.
	SessionID string `json:"session_id"`

	// Timestamp is the single clock reading captured by the caller.
	Timestamp time.Time `json:"timestamp"`

	// Location labels where the observation happened.
	Location LocationContext `json:"location"`

	// Confidence is the aggregated record-level certainty.
	Confidence Confidence `json:"confidence"`

	// Summary is the user-facing description of what was observed. Never
	// empty: fallback records carry an interruption explanation here.
	Summary string `json:"summary"`

	// Tags classify the observation.
	Tags []string `json:"tags,omitempty"`

	// Evidence references the captured media backing the record.
	Evidence []EvidenceRef `json:"evidence,omitempty"`

	// UncertaintyNotes are the human-readable "why is this uncertain"
	// explanations collected during aggregation.
	UncertaintyNotes []string `json:"uncertainty_notes,omitempty"`

	// VisualArtifactID references the photo segment best representing the
	// observation, if the visual stage nominated one.
	VisualArtifactID string `json:"visual_artifact_id,omitempty"`

	// Structured sub-objects, present only when their stage completed.
	Acoustic  *AcousticProfile     `json:"acoustic,omitempty"`
	Temporal  *TemporalDelta       `json:"temporal,omitempty"`
	Fusion    *FusionAnalysis      `json:"fusion,omitempty"`
	Synthesis *ExperienceSynthesis `json:"synthesis,omitempty"`
	Narrative *Narrative           `json:"narrative,omitempty"`

	// Interrupted is true for fallback records produced from failed runs.
	Interrupted bool `json:"interrupted,omitempty"`
}
