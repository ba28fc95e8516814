// Copyright (C) 2025 Wildtrace Labs (dev@wildtrace.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"github.com/wildtrace/wildtrace/services/synthesis/dag"
	"github.com/wildtrace/wildtrace/services/synthesis/datatypes"
)

// Catalog returns the default stage definitions for environmental record
// synthesis. Weights sum to 100; the graph builder enforces it.
//
// The graph:
//
//	VISUAL_ANALYSIS ──┬─> TEMPORAL_DELTA ─────┐
//	                  ├─> FUSION_ANALYSIS ──┬─┴─> EXPERIENCE_SYNTHESIS ─┐
//	ACOUSTIC_ANALYSIS ┘                     └───> AUDIT ────────────────┴─> NARRATIVE
func Catalog() []dag.TaskDefinition {
	return []dag.TaskDefinition{
		{
			Name:   datatypes.StageVisualAnalysis,
			Role:   "field naturalist",
			Weight: 20,
			Instruction: "Examine the attached trail photos. Describe the scene in one sentence, " +
				"list notable flora, fauna, and terrain features, describe light and weather " +
				"conditions, suggest classification tags, and name the segment_id of the photo " +
				"that best represents the observation. Respond with a single JSON object: " +
				`{"scene", "features", "conditions", "tags", "key_segment_id", "confidence", ` +
				`"uncertainty_note", "improvement_suggestion"}. ` +
				"Confidence must be one of low, medium, high.",
		},
		{
			Name:     datatypes.StageAcousticAnalysis,
			Role:     "acoustic ecologist",
			Weight:   10,
			Optional: true,
			Instruction: "Listen to the attached audio clips from a hiking trail. Identify the " +
				"dominant sound sources, rate the overall ambience level as quiet, moderate, or " +
				"loud, describe wind strength as heard, and note whether wildlife is audible. " +
				"Respond with a single JSON object: " +
				`{"dominant_sounds", "ambience_level", "wind_indicator", "wildlife_audible", ` +
				`"confidence", "uncertainty_note", "improvement_suggestion"}. ` +
				"Confidence must be one of low, medium, high.",
		},
		{
			Name:      datatypes.StageTemporalDelta,
			Role:      "returning visitor",
			Weight:    15,
			DependsOn: []string{datatypes.StageVisualAnalysis},
			Instruction: "Compare the current visual analysis against the prior visit summaries in " +
				"the context. Report how many prior visits informed the comparison, list concrete " +
				"changes (aspect, before, after), score how novel this visit is from 0 to 1, and " +
				"summarize the delta in short prose. With no prior visits, report zero visits, no " +
				"changes, and a novelty score of 1. Respond with a single JSON object: " +
				`{"prior_visits", "changes", "novelty_score", "summary", "confidence", ` +
				`"uncertainty_note", "improvement_suggestion"}. ` +
				"Confidence must be one of low, medium, high.",
		},
		{
			Name:      datatypes.StageFusionAnalysis,
			Role:      "environmental analyst",
			Weight:    15,
			DependsOn: []string{datatypes.StageVisualAnalysis, datatypes.StageAcousticAnalysis},
			Instruction: "Fuse the visual analysis, the acoustic profile (absent when no audio was " +
				"captured), and the sensor window in the context into one environmental read. " +
				"Summarize conditions on site, back the summary with individual signals naming " +
				"their source stage, and call out telemetry highlights such as peak altitude or " +
				"sustained climbs. Respond with a single JSON object: " +
				`{"environment_summary", "signals", "telemetry_highlights", "confidence", ` +
				`"uncertainty_note", "improvement_suggestion"}. ` +
				"Confidence must be one of low, medium, high.",
		},
		{
			Name:   datatypes.StageAudit,
			Role:   "verification reviewer",
			Weight: 10,
			DependsOn: []string{
				datatypes.StageVisualAnalysis,
				datatypes.StageAcousticAnalysis,
				datatypes.StageFusionAnalysis,
			},
			Instruction: "Cross-check the upstream stage outputs in the context for contradictions " +
				"(for example, photos showing calm water while audio reports high wind). Report " +
				"whether the outputs are consistent, list each inconsistency with the two stages " +
				"involved, and issue confidence downgrades for stages whose claims are undermined. " +
				"Downgrades may only lower a stage's confidence. Respond with a single JSON object: " +
				`{"consistent", "inconsistencies", "downgrades", "confidence", ` +
				`"uncertainty_note", "improvement_suggestion"}. ` +
				"Confidence must be one of low, medium, high.",
		},
		{
			Name:      datatypes.StageExperienceSynthesis,
			Role:      "trail companion",
			Weight:    15,
			DependsOn: []string{datatypes.StageTemporalDelta, datatypes.StageFusionAnalysis},
			Instruction: "Combine the environmental read, the change analysis, and the effort " +
				"telemetry in the context into what this outing felt like. List the standout " +
				"moments, label the physical effort, and name the single most report-worthy " +
				"finding. Respond with a single JSON object: " +
				`{"highlights", "physical_effort", "notable", "confidence", ` +
				`"uncertainty_note", "improvement_suggestion"}. ` +
				"Confidence must be one of low, medium, high.",
		},
		{
			Name:      datatypes.StageNarrative,
			Role:      "field journal writer",
			Weight:    15,
			DependsOn: []string{datatypes.StageExperienceSynthesis, datatypes.StageAudit},
			Instruction: "Write the final field record from the synthesized experience and the " +
				"verification report in the context. Produce one engaging summary paragraph a " +
				"hiker would want to reread, final classification tags, and a suggested place " +
				"label. Honor the verification report: do not restate claims it flagged as " +
				"inconsistent. Respond with a single JSON object: " +
				`{"summary", "tags", "place_label", "confidence", ` +
				`"uncertainty_note", "improvement_suggestion"}. ` +
				"Confidence must be one of low, medium, high.",
		},
	}
}
