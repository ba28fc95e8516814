// Copyright (C) 2025 Wildtrace Labs (dev@wildtrace.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package confidence

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildtrace/wildtrace/services/synthesis/dag"
	"github.com/wildtrace/wildtrace/services/synthesis/datatypes"
)

func defs() []dag.TaskDefinition {
	return []dag.TaskDefinition{
		{Name: datatypes.StageVisualAnalysis, Weight: 40},
		{Name: datatypes.StageAcousticAnalysis, Weight: 20, Optional: true},
		{Name: datatypes.StageAudit, Weight: 40},
	}
}

func done(stage string, c datatypes.Confidence) *dag.TaskResult {
	return &dag.TaskResult{Stage: stage, Status: dag.TaskDone, Confidence: c}
}

func doneAudit(c datatypes.Confidence, report datatypes.AuditReport) *dag.TaskResult {
	report.Assessment = datatypes.Assessment{Confidence: c}
	return &dag.TaskResult{
		Stage:      datatypes.StageAudit,
		Status:     dag.TaskDone,
		Confidence: c,
		Output:     report,
	}
}

func TestAggregate_MinimumOverRequiredStages(t *testing.T) {
	results := map[string]*dag.TaskResult{
		datatypes.StageVisualAnalysis:   done(datatypes.StageVisualAnalysis, datatypes.ConfidenceHigh),
		datatypes.StageAcousticAnalysis: done(datatypes.StageAcousticAnalysis, datatypes.ConfidenceLow),
		datatypes.StageAudit:            doneAudit(datatypes.ConfidenceMedium, datatypes.AuditReport{Consistent: true}),
	}

	summary := Aggregate(results, defs())

	// The optional acoustic Low must not drag the record down; the
	// required minimum is Medium.
	assert.Equal(t, datatypes.ConfidenceMedium, summary.Record)
	assert.Equal(t, datatypes.ConfidenceLow, summary.Fields[datatypes.StageAcousticAnalysis])
}

func TestAggregate_AllHigh(t *testing.T) {
	results := map[string]*dag.TaskResult{
		datatypes.StageVisualAnalysis: done(datatypes.StageVisualAnalysis, datatypes.ConfidenceHigh),
		datatypes.StageAudit:          doneAudit(datatypes.ConfidenceHigh, datatypes.AuditReport{Consistent: true}),
	}

	summary := Aggregate(results, defs())
	assert.Equal(t, datatypes.ConfidenceHigh, summary.Record)
}

func TestAggregate_SkippedStagesExcluded(t *testing.T) {
	results := map[string]*dag.TaskResult{
		datatypes.StageVisualAnalysis: done(datatypes.StageVisualAnalysis, datatypes.ConfidenceHigh),
		datatypes.StageAcousticAnalysis: {
			Stage:  datatypes.StageAcousticAnalysis,
			Status: dag.TaskSkipped,
		},
		datatypes.StageAudit: doneAudit(datatypes.ConfidenceHigh, datatypes.AuditReport{Consistent: true}),
	}

	summary := Aggregate(results, defs())

	assert.Equal(t, datatypes.ConfidenceHigh, summary.Record)
	_, present := summary.Fields[datatypes.StageAcousticAnalysis]
	assert.False(t, present, "skipped stages have no field confidence")
}

func TestAggregate_RequiredFailureForcesLow(t *testing.T) {
	results := map[string]*dag.TaskResult{
		datatypes.StageVisualAnalysis: {
			Stage:  datatypes.StageVisualAnalysis,
			Status: dag.TaskFailed,
			Error:  "model refused",
		},
		datatypes.StageAudit: doneAudit(datatypes.ConfidenceHigh, datatypes.AuditReport{Consistent: true}),
	}

	summary := Aggregate(results, defs())
	assert.Equal(t, datatypes.ConfidenceLow, summary.Record)
}

func TestAggregate_NoRequiredResults(t *testing.T) {
	summary := Aggregate(map[string]*dag.TaskResult{}, defs())
	assert.Equal(t, datatypes.ConfidenceMedium, summary.Record)
}

func TestAggregate_AuditDowngradeCapsStage(t *testing.T) {
	report := datatypes.AuditReport{
		Consistent: false,
		Downgrades: []datatypes.DowngradeInstruction{
			{Stage: datatypes.StageVisualAnalysis, To: datatypes.ConfidenceLow, Reason: "contradicted by telemetry"},
		},
	}
	results := map[string]*dag.TaskResult{
		datatypes.StageVisualAnalysis: done(datatypes.StageVisualAnalysis, datatypes.ConfidenceHigh),
		datatypes.StageAudit:          doneAudit(datatypes.ConfidenceHigh, report),
	}

	summary := Aggregate(results, defs())

	assert.Equal(t, datatypes.ConfidenceLow, summary.Fields[datatypes.StageVisualAnalysis])
	assert.Equal(t, datatypes.ConfidenceLow, summary.Record)

	require.NotEmpty(t, summary.Notes)
	found := false
	for _, note := range summary.Notes {
		if note.Stage == datatypes.StageVisualAnalysis {
			assert.Contains(t, note.Text, "contradicted by telemetry")
			found = true
		}
	}
	assert.True(t, found, "downgrade should surface as a note")
}

func TestAggregate_AuditNeverUpgrades(t *testing.T) {
	report := datatypes.AuditReport{
		Downgrades: []datatypes.DowngradeInstruction{
			// An "upgrade" instruction: target above the stage's own report.
			{Stage: datatypes.StageVisualAnalysis, To: datatypes.ConfidenceHigh, Reason: "looks fine"},
		},
	}
	results := map[string]*dag.TaskResult{
		datatypes.StageVisualAnalysis: done(datatypes.StageVisualAnalysis, datatypes.ConfidenceLow),
		datatypes.StageAudit:          doneAudit(datatypes.ConfidenceHigh, report),
	}

	summary := Aggregate(results, defs())
	assert.Equal(t, datatypes.ConfidenceLow, summary.Fields[datatypes.StageVisualAnalysis])
}

func TestAggregate_CollectsUncertaintyNotes(t *testing.T) {
	visual := done(datatypes.StageVisualAnalysis, datatypes.ConfidenceMedium)
	visual.UncertaintyNote = "photos were backlit"
	results := map[string]*dag.TaskResult{
		datatypes.StageVisualAnalysis: visual,
		datatypes.StageAudit:          doneAudit(datatypes.ConfidenceHigh, datatypes.AuditReport{Consistent: true}),
	}

	summary := Aggregate(results, defs())

	require.Len(t, summary.Notes, 1)
	assert.Equal(t, datatypes.StageVisualAnalysis, summary.Notes[0].Stage)
	assert.Equal(t, "photos were backlit", summary.Notes[0].Text)
}

func TestAggregate_RandomizedMinimumInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	levels := []datatypes.Confidence{
		datatypes.ConfidenceLow,
		datatypes.ConfidenceMedium,
		datatypes.ConfidenceHigh,
	}
	statuses := []dag.TaskStatus{dag.TaskDone, dag.TaskSkipped, dag.TaskFailed}
	stages := []string{
		datatypes.StageVisualAnalysis,
		datatypes.StageAcousticAnalysis,
		datatypes.StageTemporalDelta,
		datatypes.StageFusionAnalysis,
		datatypes.StageAudit,
	}

	for i := 0; i < 500; i++ {
		randomDefs := make([]dag.TaskDefinition, 0, len(stages))
		optional := make(map[string]bool, len(stages))
		for _, s := range stages {
			opt := rng.Intn(3) == 0
			optional[s] = opt
			randomDefs = append(randomDefs, dag.TaskDefinition{Name: s, Weight: 20, Optional: opt})
		}

		results := make(map[string]*dag.TaskResult, len(stages))
		for _, s := range stages {
			if rng.Intn(10) == 0 {
				continue // Stage never ran at all.
			}
			res := &dag.TaskResult{Stage: s, Status: statuses[rng.Intn(len(statuses))]}
			if res.Status == dag.TaskDone {
				res.Confidence = levels[rng.Intn(len(levels))]
			}
			results[s] = res
		}

		// A completed audit stage may carry random downgrade instructions.
		if res, ok := results[datatypes.StageAudit]; ok && res.Status == dag.TaskDone {
			report := datatypes.AuditReport{
				Assessment: datatypes.Assessment{Confidence: res.Confidence},
				Consistent: true,
			}
			for _, s := range stages {
				if rng.Intn(3) == 0 {
					report.Downgrades = append(report.Downgrades, datatypes.DowngradeInstruction{
						Stage:  s,
						To:     levels[rng.Intn(len(levels))],
						Reason: "randomized check",
					})
				}
			}
			res.Output = report
		}

		summary := Aggregate(results, randomDefs)

		want := expectedRecordConfidence(results, optional)
		if summary.Record != want {
			t.Fatalf("iteration %d: Record = %s, want %s", i, summary.Record, want)
		}
		for stage, res := range results {
			if res.Status == dag.TaskSkipped {
				if _, present := summary.Fields[stage]; present {
					t.Fatalf("iteration %d: skipped stage %s has a field confidence", i, stage)
				}
			}
		}
	}
}

// expectedRecordConfidence recomputes the record confidence the long way:
// audit caps first, then the minimum over required completed stages, Low on
// any required failure, Medium when nothing required completed.
func expectedRecordConfidence(results map[string]*dag.TaskResult, optional map[string]bool) datatypes.Confidence {
	caps := make(map[string]datatypes.Confidence)
	for _, res := range results {
		if res.Status != dag.TaskDone {
			continue
		}
		report, ok := res.Output.(datatypes.AuditReport)
		if !ok {
			continue
		}
		for _, d := range report.Downgrades {
			if !d.To.IsValid() {
				continue
			}
			if existing, seen := caps[d.Stage]; !seen || d.To.Rank() < existing.Rank() {
				caps[d.Stage] = d.To
			}
		}
	}

	requiredFailed := false
	sawRequiredDone := false
	record := datatypes.ConfidenceHigh
	for stage, res := range results {
		switch res.Status {
		case dag.TaskFailed:
			if !optional[stage] {
				requiredFailed = true
			}
		case dag.TaskDone:
			effective := res.Confidence
			if c, ok := caps[stage]; ok && c.Rank() < effective.Rank() {
				effective = c
			}
			if !optional[stage] {
				sawRequiredDone = true
				record = datatypes.MinConfidence(record, effective)
			}
		}
	}

	if requiredFailed {
		return datatypes.ConfidenceLow
	}
	if !sawRequiredDone {
		return datatypes.ConfidenceMedium
	}
	return record
}

func TestAggregate_InconsistenciesSurfaceAsNotes(t *testing.T) {
	report := datatypes.AuditReport{
		Consistent: false,
		Inconsistencies: []datatypes.Inconsistency{
			{StageA: datatypes.StageVisualAnalysis, StageB: datatypes.StageAcousticAnalysis, Detail: "calm water vs high wind"},
		},
	}
	results := map[string]*dag.TaskResult{
		datatypes.StageVisualAnalysis: done(datatypes.StageVisualAnalysis, datatypes.ConfidenceHigh),
		datatypes.StageAudit:          doneAudit(datatypes.ConfidenceHigh, report),
	}

	summary := Aggregate(results, defs())

	// A contradiction is reported, never fatal.
	assert.Equal(t, datatypes.ConfidenceHigh, summary.Record)
	require.Len(t, summary.Notes, 1)
	assert.Contains(t, summary.Notes[0].Text, "disagree")
	assert.Contains(t, summary.Notes[0].Text, "calm water vs high wind")
}
