// Copyright (C) 2025 Wildtrace Labs (dev@wildtrace.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/wildtrace/wildtrace/services/synthesis/dag"
	"github.com/wildtrace/wildtrace/services/synthesis/datatypes"
	"github.com/wildtrace/wildtrace/services/synthesis/invoker"
)

// stageContext is the structured JSON context attached to every invocation:
// the telemetry envelope, bounded history, the location label, and the
// payloads of completed predecessor stages keyed by stage name.
type stageContext struct {
	Location datatypes.LocationContext         `json:"location"`
	Sensors  datatypes.SensorWindow            `json:"sensors"`
	History  []datatypes.HistoryEntry          `json:"history,omitempty"`
	Inputs   map[string]datatypes.StagePayload `json:"inputs,omitempty"`
}

// BuildRequest resolves a stage's inputs into one invocation request. It is
// the dag.RequestBuilder for the default catalog.
//
// Description:
//
//	Photo stages get the packet's image segments as media parts, the
//	acoustic stage gets audio segments, every other stage works from the
//	structured context alone. The acoustic stage reports ErrMissingInput
//	when the packet has no audio; since the stage is optional, the
//	executor records it as skipped rather than invoking a model with
//	nothing to analyze.
func BuildRequest(def dag.TaskDefinition, rc *dag.Context, preds map[string]datatypes.StagePayload) (invoker.Request, error) {
	if rc == nil {
		return invoker.Request{}, dag.ErrInvalidInput
	}

	req := invoker.Request{
		Stage:       def.Name,
		Role:        def.Role,
		Instruction: def.Instruction,
	}

	switch def.Name {
	case datatypes.StageVisualAnalysis:
		images := rc.Packet.ImageSegments()
		if len(images) == 0 {
			return invoker.Request{}, fmt.Errorf("%w: no usable photos in packet", dag.ErrMissingInput)
		}
		req.Media = mediaParts(images)
	case datatypes.StageAcousticAnalysis:
		audio := rc.Packet.AudioSegments()
		if len(audio) == 0 {
			return invoker.Request{}, fmt.Errorf("%w: no usable audio in packet", dag.ErrMissingInput)
		}
		req.Media = mediaParts(audio)
	}

	sc := stageContext{
		Location: rc.Location,
		Sensors:  datatypes.SummarizeSensors(rc.Sensors),
		History:  datatypes.BoundHistory(rc.History),
		Inputs:   preds,
	}
	raw, err := json.Marshal(sc)
	if err != nil {
		return invoker.Request{}, fmt.Errorf("marshal stage context: %w", err)
	}
	req.Context = raw

	return req, nil
}

// mediaParts converts media segments into invocation media parts.
func mediaParts(segments []datatypes.MediaSegment) []invoker.MediaPart {
	parts := make([]invoker.MediaPart, 0, len(segments))
	for _, seg := range segments {
		parts = append(parts, invoker.MediaPart{
			SegmentID: seg.ID,
			MimeType:  seg.MimeType,
			Bytes:     seg.Bytes,
		})
	}
	return parts
}
