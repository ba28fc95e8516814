// Copyright (C) 2025 Wildtrace Labs (dev@wildtrace.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dag

import (
	"sync"
	"time"

	"github.com/wildtrace/wildtrace/services/synthesis/datatypes"
)

// DefaultStageTimeout is the per-stage timeout for tasks that don't set one.
const DefaultStageTimeout = 75 * time.Second

// DefaultRunTimeout is the backstop timeout for a whole run, after which
// the run is forced into the failed state and the fallback record path runs.
const DefaultRunTimeout = 2 * time.Minute

// TaskDefinition is the static per-stage configuration.
//
// Description:
//
//	Task definitions describe the stage graph as data: which stages exist,
//	what they depend on, how much of the progress bar each one owns, and
//	whether the stage may be skipped without failing the run. The exact
//	stage list is configuration, not contract.
type TaskDefinition struct {
	// Name uniquely identifies the stage (e.g., "VISUAL_ANALYSIS").
	Name string `json:"name" yaml:"name"`

	// Role is the persona label handed to the model invoker.
	Role string `json:"role" yaml:"role"`

	// DependsOn names the stages that must reach a terminal state first.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`

	// Weight is this stage's share of run progress. Weights across a graph
	// must sum to exactly 100.
	Weight int `json:"weight" yaml:"weight"`

	// Optional stages never block completion: on timeout, failure, or
	// missing input they are skipped and excluded from the confidence
	// minimum.
	Optional bool `json:"optional,omitempty" yaml:"optional,omitempty"`

	// Timeout overrides the executor's per-stage timeout when positive.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Instruction is the task description sent to the invoker. It must
	// spell out the expected JSON output shape for the stage's schema.
	Instruction string `json:"instruction" yaml:"instruction"`
}

// TaskStatus is the terminal or in-flight status of a stage.
type TaskStatus string

const (
	// TaskPending indicates the stage hasn't started.
	TaskPending TaskStatus = "pending"

	// TaskRunning indicates the stage is executing.
	TaskRunning TaskStatus = "running"

	// TaskDone indicates the stage produced a validated payload.
	TaskDone TaskStatus = "done"

	// TaskSkipped indicates the stage did not run to completion but did
	// not fail the run (optional stage, or downstream of a failure).
	TaskSkipped TaskStatus = "skipped"

	// TaskFailed indicates a required stage exhausted its attempts.
	TaskFailed TaskStatus = "failed"
)

// IsTerminal reports whether the status is done, skipped, or failed.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskDone || s == TaskSkipped || s == TaskFailed
}

// RunStatus is the lifecycle status of a PipelineRun.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// TaskResult is the outcome of one stage execution.
type TaskResult struct {
	// Stage is the stage name.
	Stage string `json:"stage"`

	// Status is the terminal status of the stage.
	Status TaskStatus `json:"status"`

	// Output is the schema-validated payload. Nil unless Status is done.
	Output datatypes.StagePayload `json:"output,omitempty"`

	// Confidence is the stage's self-reported certainty (from the payload).
	Confidence datatypes.Confidence `json:"confidence,omitempty"`

	// UncertaintyNote explains the stage's uncertainty, if any.
	UncertaintyNote string `json:"uncertainty_note,omitempty"`

	// ImprovementSuggestion tells the user how to capture better input.
	ImprovementSuggestion string `json:"improvement_suggestion,omitempty"`

	// Latency is how long the stage took, across all attempts.
	Latency time.Duration `json:"latency"`

	// Attempts is how many invocations were made (1 = no retry).
	Attempts int `json:"attempts"`

	// Error is the final error message for failed stages.
	Error string `json:"error,omitempty"`

	// SkipReason explains why a skipped stage did not run.
	SkipReason string `json:"skip_reason,omitempty"`
}

// Context carries the read-only raw inputs for one run. Stages resolve
// their inputs from here plus their predecessors' payloads.
type Context struct {
	Packet   datatypes.MediaPacket
	Sensors  []datatypes.SensorSample
	History  []datatypes.HistoryEntry
	Location datatypes.LocationContext
}

// Event is one entry of the progress stream.
type Event struct {
	// RunID identifies the run the event belongs to.
	RunID string `json:"run_id"`

	// Stage is the originating stage name.
	Stage string `json:"stage"`

	// Status is the stage status at emission time.
	Status TaskStatus `json:"status"`

	// Weight is the run's cumulative progress (0-100) after this event.
	Weight int `json:"weight"`
}

// EventSink receives progress events from the executor.
//
// Thread Safety:
//
//	OnStageEvent may be called from multiple goroutines; implementations
//	must be safe for concurrent use.
type EventSink interface {
	OnStageEvent(event Event)
}

// PipelineRun tracks one synthesis request end to end.
//
// Description:
//
//	The run is the only shared mutable resource in the pipeline. The
//	executor is its single writer; concurrent stage completions are
//	serialized through the run's mutex so progress increments and result
//	writes cannot race or be lost.
//
// Thread Safety:
//
//	PipelineRun uses internal locking and is safe for concurrent access.
type PipelineRun struct {
	mu sync.RWMutex

	// RunID uniquely identifies this execution.
	RunID string `json:"run_id"`

	// SessionID ties the run to the submitting session.
	SessionID string `json:"session_id"`

	// Status is the run lifecycle status.
	Status RunStatus `json:"status"`

	// StartedAt is when execution began.
	StartedAt time.Time `json:"started_at"`

	// Progress is the cumulative progress, 0-100, non-decreasing.
	Progress int `json:"progress"`

	// Results maps stage name to its terminal result.
	Results map[string]*TaskResult `json:"results"`

	// Statuses tracks per-stage status including in-flight stages.
	Statuses map[string]TaskStatus `json:"statuses"`

	// FailedStage names the stage that failed the run, if any.
	FailedStage string `json:"failed_stage,omitempty"`

	// Error is the run-level error message, if any.
	Error string `json:"error,omitempty"`
}

// NewPipelineRun creates a run in the pending state.
func NewPipelineRun(runID, sessionID string) *PipelineRun {
	return &PipelineRun{
		RunID:     runID,
		SessionID: sessionID,
		Status:    RunPending,
		StartedAt: time.Now(),
		Results:   make(map[string]*TaskResult),
		Statuses:  make(map[string]TaskStatus),
	}
}

// StatusOf returns the stage's status, pending if never set.
func (r *PipelineRun) StatusOf(stage string) TaskStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	status, ok := r.Statuses[stage]
	if !ok {
		return TaskPending
	}
	return status
}

// Result returns the recorded result for a stage.
func (r *PipelineRun) Result(stage string) (*TaskResult, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.Results[stage]
	return res, ok
}

// ResultMap returns a copy of the result map.
func (r *PipelineRun) ResultMap() map[string]*TaskResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*TaskResult, len(r.Results))
	for name, res := range r.Results {
		out[name] = res
	}
	return out
}

// CurrentProgress returns the cumulative progress.
func (r *PipelineRun) CurrentProgress() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Progress
}

// CurrentStatus returns the run status.
func (r *PipelineRun) CurrentStatus() RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Status
}

// Failure returns the stage that failed the run and the run-level error
// message. Both are empty for runs no required stage has failed.
func (r *PipelineRun) Failure() (stage, message string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.FailedStage, r.Error
}

// IsFailed reports whether a required stage has failed the run.
func (r *PipelineRun) IsFailed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.FailedStage != "" || r.Status == RunFailed
}

// setStatus transitions the run lifecycle status.
func (r *PipelineRun) setStatus(status RunStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = status
}

// setStageRunning marks a stage as in flight.
func (r *PipelineRun) setStageRunning(stage string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Statuses[stage] = TaskRunning
}

// recordResult stores a terminal stage result and credits the stage's
// weight to run progress. Progress only ever increases, and only when a
// stage reaches a terminal state. Returns the new cumulative progress.
func (r *PipelineRun) recordResult(def TaskDefinition, res *TaskResult) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Results[def.Name] = res
	r.Statuses[def.Name] = res.Status

	r.Progress += def.Weight
	if r.Progress > 100 {
		r.Progress = 100
	}

	if res.Status == TaskFailed && !def.Optional && r.FailedStage == "" {
		r.FailedStage = def.Name
		r.Error = res.Error
	}

	return r.Progress
}

// predecessorPayloads collects the validated payloads of the named stages
// that completed. Skipped predecessors are simply absent.
func (r *PipelineRun) predecessorPayloads(deps []string) map[string]datatypes.StagePayload {
	r.mu.RLock()
	defer r.mu.RUnlock()

	preds := make(map[string]datatypes.StagePayload, len(deps))
	for _, dep := range deps {
		if res, ok := r.Results[dep]; ok && res.Status == TaskDone && res.Output != nil {
			preds[dep] = res.Output
		}
	}
	return preds
}
