// Copyright (C) 2025 Wildtrace Labs (dev@wildtrace.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package record assembles the single EnvironmentalRecord a synthesis run
// produces, on both the completed and the failed path.
package record

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wildtrace/wildtrace/services/synthesis/confidence"
	"github.com/wildtrace/wildtrace/services/synthesis/dag"
	"github.com/wildtrace/wildtrace/services/synthesis/datatypes"
)

// recordNamespace seeds the deterministic record ID. Assembling the same
// session twice must yield byte-identical records.
var recordNamespace = uuid.MustParse("5b1f3c84-9f1e-4a7d-9a36-2c64d1f0a8e2")

// RecordID returns the deterministic record identifier for a session.
func RecordID(sessionID string) string {
	return uuid.NewSHA1(recordNamespace, []byte(sessionID)).String()
}

// Assembler builds environmental records from run state. It is a pure
// transformation: no clocks, no randomness, no I/O. The caller supplies
// the timestamp.
type Assembler struct{}

// NewAssembler creates an assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Assemble builds the record for a finished run.
//
// Description:
//
//	Every finished run yields exactly one record. Completed runs get the
//	narrative summary, tags, and the structured sub-objects of every
//	completed stage. Failed runs get a Low-confidence fallback record
//	whose summary names the failed stage; evidence references are
//	preserved either way so a later retry can reuse the captured media.
//
// Inputs:
//
//	run - The finished pipeline run (completed or failed).
//	agg - The aggregated confidence summary for the run.
//	rc - The raw inputs the run was started with.
//	now - The single clock reading captured by the caller.
//
// Outputs:
//
//	datatypes.EnvironmentalRecord - The assembled record.
func (a *Assembler) Assemble(run *dag.PipelineRun, agg confidence.Summary, rc *dag.Context, now time.Time) datatypes.EnvironmentalRecord {
	rec := datatypes.EnvironmentalRecord{
		ID:         RecordID(run.SessionID),
		SessionID:  run.SessionID,
		Timestamp:  now,
		Confidence: agg.Record,
	}

	if rc != nil {
		rec.Location = rc.Location
		rec.Evidence = evidenceRefs(rc.Packet)
	}

	for _, note := range agg.Notes {
		rec.UncertaintyNotes = append(rec.UncertaintyNotes, fmt.Sprintf("%s: %s", note.Stage, note.Text))
	}

	attachOutputs(&rec, run)

	if run.CurrentStatus() == dag.RunFailed {
		rec.Interrupted = true
		rec.Confidence = datatypes.ConfidenceLow
		rec.Summary = interruptionSummary(run)
		return rec
	}

	if rec.Narrative != nil {
		rec.Summary = rec.Narrative.Summary
		rec.Tags = rec.Narrative.Tags
		if rec.Location.Label == "" && rec.Narrative.PlaceLabel != "" {
			rec.Location.Label = rec.Narrative.PlaceLabel
		}
	}
	if rec.Summary == "" {
		// A record never ships with an empty summary, whatever the run
		// looked like.
		rec.Summary = "Observation recorded; no narrative could be produced."
	}

	return rec
}

// attachOutputs copies each completed stage's payload into the record's
// structured sub-objects.
func attachOutputs(rec *datatypes.EnvironmentalRecord, run *dag.PipelineRun) {
	for _, res := range run.ResultMap() {
		if res.Status != dag.TaskDone || res.Output == nil {
			continue
		}
		switch out := res.Output.(type) {
		case datatypes.VisualAnalysis:
			rec.VisualArtifactID = out.KeySegmentID
		case datatypes.AcousticProfile:
			profile := out
			rec.Acoustic = &profile
		case datatypes.TemporalDelta:
			delta := out
			rec.Temporal = &delta
		case datatypes.FusionAnalysis:
			fusion := out
			rec.Fusion = &fusion
		case datatypes.ExperienceSynthesis:
			synth := out
			rec.Synthesis = &synth
		case datatypes.Narrative:
			narrative := out
			rec.Narrative = &narrative
		}
	}
}

// evidenceRefs lists the usable segments of the packet as evidence
// references. The record stores IDs only, never media bytes.
func evidenceRefs(packet datatypes.MediaPacket) []datatypes.EvidenceRef {
	segments := packet.ValidSegments()
	if len(segments) == 0 {
		return nil
	}
	refs := make([]datatypes.EvidenceRef, 0, len(segments))
	for _, seg := range segments {
		refs = append(refs, datatypes.EvidenceRef{
			SegmentID:  seg.ID,
			MimeType:   seg.MimeType,
			CapturedAt: seg.CapturedAt,
		})
	}
	return refs
}

// interruptionSummary explains a failed run in user-facing terms.
func interruptionSummary(run *dag.PipelineRun) string {
	stage, _ := run.Failure()
	if stage == "" {
		return "Synthesis was interrupted before it could finish; partial observations are attached."
	}
	return fmt.Sprintf("Synthesis was interrupted while running %s; partial observations are attached.", stage)
}
