// Copyright (C) 2025 Wildtrace Labs (dev@wildtrace.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package progress maps the executor's weighted progress stream into
// discrete named milestones for display.
//
// The reporter keeps one stream per run, keyed by run ID, so a long-lived
// service can push many sessions (including concurrent ones) through the
// same reporter without their progress bleeding into each other. Within a
// stream the only state is the maximum weight seen so far: even if internal
// events arrive out of order, the externally visible value never regresses.
package progress

import (
	"sync"

	"github.com/wildtrace/wildtrace/services/synthesis/dag"
)

// Milestone is one named point on the fixed progress schedule.
type Milestone struct {
	// Weight is the cumulative progress at which the milestone completes.
	Weight int `json:"weight" yaml:"weight"`

	// Label is the human description shown while working toward it.
	Label string `json:"label" yaml:"label"`

	// Stage is the stage whose completion the milestone roughly tracks.
	Stage string `json:"stage" yaml:"stage"`
}

// DefaultSchedule is the milestone schedule for the default stage catalog.
func DefaultSchedule() []Milestone {
	return []Milestone{
		{Weight: 10, Label: "Listening to the surroundings", Stage: "ACOUSTIC_ANALYSIS"},
		{Weight: 30, Label: "Studying your photos", Stage: "VISUAL_ANALYSIS"},
		{Weight: 50, Label: "Comparing with past visits", Stage: "TEMPORAL_DELTA"},
		{Weight: 65, Label: "Reading the environment", Stage: "FUSION_ANALYSIS"},
		{Weight: 80, Label: "Double-checking the findings", Stage: "AUDIT"},
		{Weight: 90, Label: "Capturing the experience", Stage: "EXPERIENCE_SYNTHESIS"},
		{Weight: 100, Label: "Writing your field record", Stage: "NARRATIVE"},
	}
}

// Snapshot is the externally visible progress state after one event.
type Snapshot struct {
	// RunID identifies the run the snapshot belongs to. Subscribers on a
	// shared reporter use it to tell concurrent runs apart.
	RunID string `json:"run_id"`

	// Weight is the clamped cumulative progress, 0-100, non-decreasing.
	Weight int `json:"weight"`

	// Active is the milestone currently being worked toward. Nil once
	// everything is complete.
	Active *Milestone `json:"active,omitempty"`

	// Completed are the milestones already passed, schedule order.
	Completed []Milestone `json:"completed,omitempty"`
}

// Handler receives snapshots as progress advances.
type Handler func(Snapshot)

// Reporter translates weighted progress events into milestone snapshots,
// one independent stream per run.
//
// Thread Safety:
//
//	Reporter is safe for concurrent use; the executor may deliver events
//	from multiple stage goroutines and multiple runs at once.
type Reporter struct {
	mu       sync.Mutex
	schedule []Milestone
	streams  map[string]int // run ID → max weight seen
	handlers []Handler
}

// NewReporter creates a reporter over a milestone schedule. A nil schedule
// uses DefaultSchedule.
func NewReporter(schedule []Milestone) *Reporter {
	if schedule == nil {
		schedule = DefaultSchedule()
	}
	return &Reporter{
		schedule: schedule,
		streams:  make(map[string]int),
	}
}

// Subscribe registers a handler invoked for every observed event.
func (r *Reporter) Subscribe(h Handler) {
	if h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, h)
}

// OnStageEvent implements dag.EventSink.
func (r *Reporter) OnStageEvent(event dag.Event) {
	r.Observe(event.RunID, event.Weight)
}

// Observe folds one weight sample into a run's monotonic progress stream
// and returns the resulting snapshot.
//
// Inputs:
//
//	runID - The run the sample belongs to. A new ID starts a fresh stream.
//	weight - Cumulative progress, 0-100. Out-of-order or stale values are
//	         clamped to the maximum already seen for that run.
func (r *Reporter) Observe(runID string, weight int) Snapshot {
	r.mu.Lock()
	max := r.streams[runID]
	if weight > max {
		max = weight
	}
	if max > 100 {
		max = 100
	}
	r.streams[runID] = max
	snap := r.snapshotLocked(runID, max)
	handlers := make([]Handler, len(r.handlers))
	copy(handlers, r.handlers)
	r.mu.Unlock()

	for _, h := range handlers {
		h(snap)
	}
	return snap
}

// Current returns a run's latest snapshot without observing a new value.
// A run the reporter has never seen (or has forgotten) reads as weight 0.
func (r *Reporter) Current(runID string) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(runID, r.streams[runID])
}

// Forget drops a run's stream. The owning service calls this once a run is
// terminal and its final snapshot has been delivered, so streams don't
// accumulate over the service's lifetime.
func (r *Reporter) Forget(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.streams, runID)
}

// snapshotLocked builds a snapshot for one run's max weight. Callers hold r.mu.
func (r *Reporter) snapshotLocked(runID string, max int) Snapshot {
	snap := Snapshot{RunID: runID, Weight: max}
	for i, m := range r.schedule {
		if max >= m.Weight {
			snap.Completed = append(snap.Completed, m)
			continue
		}
		milestone := r.schedule[i]
		snap.Active = &milestone
		break
	}
	return snap
}
