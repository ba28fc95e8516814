// Copyright (C) 2025 Wildtrace Labs (dev@wildtrace.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package confidence folds per-stage results into one record-level
// confidence plus a flat list of human-readable uncertainty notes.
package confidence

import (
	"fmt"
	"sort"

	"github.com/wildtrace/wildtrace/services/synthesis/dag"
	"github.com/wildtrace/wildtrace/services/synthesis/datatypes"
)

// Note is one "why is this uncertain" explanation for the UI to surface.
// The aggregator only collects notes; it renders nothing.
type Note struct {
	// Stage is the stage the note originated from.
	Stage string `json:"stage"`

	// Text is the explanation.
	Text string `json:"text"`
}

// Summary is the aggregation outcome.
type Summary struct {
	// Record is the record-level confidence: the minimum over required
	// stages that completed, after audit downgrades, forced to Low when
	// any required stage failed.
	Record datatypes.Confidence `json:"record"`

	// Fields maps each completed stage to its effective confidence
	// (self-reported, capped by audit downgrades).
	Fields map[string]datatypes.Confidence `json:"fields"`

	// Notes are the collected uncertainty explanations.
	Notes []Note `json:"notes,omitempty"`
}

// Aggregate folds stage results into a record-level confidence.
//
// Description:
//
//	Ordering is High > Medium > Low. Skipped stages are excluded from the
//	minimum. Audit downgrade instructions are applied before the minimum
//	is computed and are one-directional: an instruction can lower a
//	stage's confidence but never raise it (invariant: the audit stage may
//	downgrade, never upgrade). A failed required stage forces the record
//	confidence to Low regardless of everything else.
//
// Inputs:
//
//	results - Terminal results keyed by stage name.
//	defs - The stage definitions, used to tell required from optional.
//
// Outputs:
//
//	Summary - Record confidence, per-stage confidences, and notes.
func Aggregate(results map[string]*dag.TaskResult, defs []dag.TaskDefinition) Summary {
	optional := make(map[string]bool, len(defs))
	order := make([]string, 0, len(defs))
	for _, def := range defs {
		optional[def.Name] = def.Optional
		order = append(order, def.Name)
	}
	sort.Strings(order)

	summary := Summary{
		Record: datatypes.ConfidenceHigh,
		Fields: make(map[string]datatypes.Confidence),
	}

	caps := auditCaps(results)

	requiredFailed := false
	sawRequiredDone := false

	for _, stage := range order {
		res, ok := results[stage]
		if !ok {
			continue
		}

		switch res.Status {
		case dag.TaskSkipped:
			// Never in the minimum.
			continue
		case dag.TaskFailed:
			if !optional[stage] {
				requiredFailed = true
			}
			continue
		case dag.TaskDone:
			// Falls through to confidence handling below.
		default:
			continue
		}

		effective := res.Confidence
		if instr, ok := caps[stage]; ok && instr.To.Rank() < effective.Rank() {
			effective = instr.To
			summary.Notes = append(summary.Notes, Note{
				Stage: stage,
				Text:  fmt.Sprintf("confidence lowered to %s by verification: %s", instr.To, instr.Reason),
			})
		}
		summary.Fields[stage] = effective

		if res.UncertaintyNote != "" {
			summary.Notes = append(summary.Notes, Note{Stage: stage, Text: res.UncertaintyNote})
		}

		if !optional[stage] {
			sawRequiredDone = true
			summary.Record = datatypes.MinConfidence(summary.Record, effective)
		}
	}

	summary.Notes = append(summary.Notes, inconsistencyNotes(results, order)...)

	if requiredFailed {
		summary.Record = datatypes.ConfidenceLow
	} else if !sawRequiredDone {
		// Nothing required ran; don't claim High on an empty basis.
		summary.Record = datatypes.ConfidenceMedium
	}

	return summary
}

// auditCaps extracts downgrade instructions from any completed audit-type
// stage output.
func auditCaps(results map[string]*dag.TaskResult) map[string]datatypes.DowngradeInstruction {
	caps := make(map[string]datatypes.DowngradeInstruction)
	for _, res := range results {
		report, ok := auditReport(res)
		if !ok {
			continue
		}
		for _, d := range report.Downgrades {
			if !d.To.IsValid() {
				continue
			}
			existing, seen := caps[d.Stage]
			if !seen || d.To.Rank() < existing.To.Rank() {
				caps[d.Stage] = d
			}
		}
	}
	return caps
}

// inconsistencyNotes surfaces cross-stage contradictions the audit stage
// flagged, in deterministic stage order. A contradiction is never fatal;
// it only shows up here and in the downgrades it carries.
func inconsistencyNotes(results map[string]*dag.TaskResult, order []string) []Note {
	var notes []Note
	for _, stage := range order {
		report, ok := auditReport(results[stage])
		if !ok {
			continue
		}
		for _, inc := range report.Inconsistencies {
			notes = append(notes, Note{
				Stage: stage,
				Text:  fmt.Sprintf("%s and %s disagree: %s", inc.StageA, inc.StageB, inc.Detail),
			})
		}
	}
	return notes
}

// auditReport unwraps a completed audit-type stage result.
func auditReport(res *dag.TaskResult) (datatypes.AuditReport, bool) {
	if res == nil || res.Status != dag.TaskDone {
		return datatypes.AuditReport{}, false
	}
	report, ok := res.Output.(datatypes.AuditReport)
	return report, ok
}
