// Copyright (C) 2025 Wildtrace Labs (dev@wildtrace.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// Stage names for the default synthesis graph. The exact stage list is
// configuration, not contract; these constants name the payload kinds the
// schema registry knows how to decode.
const (
	StageVisualAnalysis      = "VISUAL_ANALYSIS"
	StageAcousticAnalysis    = "ACOUSTIC_ANALYSIS"
	StageTemporalDelta       = "TEMPORAL_DELTA"
	StageFusionAnalysis      = "FUSION_ANALYSIS"
	StageAudit               = "AUDIT"
	StageExperienceSynthesis = "EXPERIENCE_SYNTHESIS"
	StageNarrative           = "NARRATIVE"
)

// StagePayload is the discriminated union of stage outputs.
//
// Description:
//
//	Each stage produces exactly one payload kind, keyed by stage name.
//	Payloads are decoded and validated by the schema registry before any
//	other component sees them; downstream code can type-switch on the
//	concrete type or dispatch on Kind().
//
// Thread Safety:
//
//	Payloads are immutable after decoding.
type StagePayload interface {
	// Kind returns the stage name this payload belongs to.
	Kind() string

	// Assessed returns the model's self-assessment for this payload.
	Assessed() Assessment
}

// Assessment carries the per-stage confidence annotation every payload must
// include. The audit stage may later downgrade, never upgrade, a stage's
// confidence.
type Assessment struct {
	// Confidence is the stage's self-reported certainty.
	Confidence Confidence `json:"confidence" validate:"required,oneof=low medium high"`

	// UncertaintyNote explains why the stage is uncertain, if it is.
	UncertaintyNote string `json:"uncertainty_note,omitempty"`

	// ImprovementSuggestion tells the hiker how to capture better input
	// next time (e.g., "take photos in better light").
	ImprovementSuggestion string `json:"improvement_suggestion,omitempty"`
}

// Assessed implements StagePayload for embedders.
func (a Assessment) Assessed() Assessment { return a }

// VisualAnalysis is the output of the photo analysis stage.
type VisualAnalysis struct {
	Assessment

	// Scene is a one-sentence description of what the photos show.
	Scene string `json:"scene" validate:"required"`

	// Features are the notable observed elements (flora, fauna, terrain).
	Features []string `json:"features,omitempty"`

	// Conditions describes light and weather as visible in the photos.
	Conditions string `json:"conditions,omitempty"`

	// Tags are suggested classification tags.
	Tags []string `json:"tags,omitempty"`

	// KeySegmentID is the photo segment best representing the observation,
	// surfaced in the record as the visual artifact reference.
	KeySegmentID string `json:"key_segment_id,omitempty"`
}

// Kind implements StagePayload.
func (VisualAnalysis) Kind() string { return StageVisualAnalysis }

// AcousticProfile is the output of the optional audio analysis stage.
type AcousticProfile struct {
	Assessment

	// DominantSounds lists the loudest identified sources.
	DominantSounds []string `json:"dominant_sounds,omitempty"`

	// AmbienceLevel is a coarse loudness label (quiet, moderate, loud).
	AmbienceLevel string `json:"ambience_level" validate:"omitempty,oneof=quiet moderate loud"`

	// WindIndicator describes wind strength as heard (calm, breeze, high wind).
	WindIndicator string `json:"wind_indicator,omitempty"`

	// WildlifeAudible is true when animal calls were identified.
	WildlifeAudible bool `json:"wildlife_audible"`
}

// Kind implements StagePayload.
func (AcousticProfile) Kind() string { return StageAcousticAnalysis }

// ChangeObservation is one detected difference versus prior visits.
type ChangeObservation struct {
	Aspect string `json:"aspect" validate:"required"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// TemporalDelta is the output of the history comparison stage.
type TemporalDelta struct {
	Assessment

	// PriorVisits is how many history entries informed the comparison.
	PriorVisits int `json:"prior_visits" validate:"gte=0"`

	// Changes are the detected differences versus history.
	Changes []ChangeObservation `json:"changes,omitempty"`

	// NoveltyScore estimates how different this visit is from history, 0-1.
	NoveltyScore float64 `json:"novelty_score" validate:"gte=0,lte=1"`

	// Summary is a short prose description of the delta.
	Summary string `json:"summary"`
}

// Kind implements StagePayload.
func (TemporalDelta) Kind() string { return StageTemporalDelta }

// FusedSignal is one cross-modal observation with its source stage.
type FusedSignal struct {
	Source      string `json:"source" validate:"required"`
	Observation string `json:"observation" validate:"required"`
}

// FusionAnalysis is the output of the cross-modal fusion stage, combining
// visual, acoustic, and telemetry signals into one environmental read.
type FusionAnalysis struct {
	Assessment

	// EnvironmentSummary is the fused description of conditions on site.
	EnvironmentSummary string `json:"environment_summary" validate:"required"`

	// Signals are the individual observations that back the summary.
	Signals []FusedSignal `json:"signals,omitempty"`

	// TelemetryHighlights are sensor-derived callouts (e.g., peak altitude).
	TelemetryHighlights []string `json:"telemetry_highlights,omitempty"`
}

// Kind implements StagePayload.
func (FusionAnalysis) Kind() string { return StageFusionAnalysis }

// Inconsistency records a contradiction the audit stage found between two
// other stages' outputs.
type Inconsistency struct {
	StageA string `json:"stage_a" validate:"required"`
	StageB string `json:"stage_b" validate:"required"`
	Detail string `json:"detail" validate:"required"`
}

// DowngradeInstruction tells the aggregator to cap a stage's confidence.
// Downgrades are one-directional: an instruction whose target confidence is
// higher than the stage's own report is ignored.
type DowngradeInstruction struct {
	Stage  string     `json:"stage" validate:"required"`
	To     Confidence `json:"to" validate:"required,oneof=low medium high"`
	Reason string     `json:"reason"`
}

// AuditReport is the output of the verification stage.
type AuditReport struct {
	Assessment

	// Consistent is true when no cross-stage contradictions were found.
	Consistent bool `json:"consistent"`

	// Inconsistencies are the detected contradictions.
	Inconsistencies []Inconsistency `json:"inconsistencies,omitempty" validate:"dive"`

	// Downgrades are the confidence caps the aggregator must apply.
	Downgrades []DowngradeInstruction `json:"downgrades,omitempty" validate:"dive"`
}

// Kind implements StagePayload.
func (AuditReport) Kind() string { return StageAudit }

// ExperienceSynthesis is the output of the stage that folds analysis results
// and effort telemetry into what the outing felt like.
type ExperienceSynthesis struct {
	Assessment

	// Highlights are the standout moments of the observation.
	Highlights []string `json:"highlights,omitempty"`

	// PhysicalEffort is a coarse effort label derived from telemetry.
	PhysicalEffort string `json:"physical_effort,omitempty"`

	// Notable is the single most report-worthy finding.
	Notable string `json:"notable,omitempty"`
}

// Kind implements StagePayload.
func (ExperienceSynthesis) Kind() string { return StageExperienceSynthesis }

// Narrative is the terminal stage output: the record's user-facing text.
type Narrative struct {
	Assessment

	// Summary is the final record summary paragraph.
	Summary string `json:"summary" validate:"required"`

	// Tags are the final classification tags.
	Tags []string `json:"tags,omitempty"`

	// PlaceLabel is the suggested location/park label.
	PlaceLabel string `json:"place_label,omitempty"`
}

// Kind implements StagePayload.
func (Narrative) Kind() string { return StageNarrative }
