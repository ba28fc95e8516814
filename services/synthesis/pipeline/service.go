// Copyright (C) 2025 Wildtrace Labs (dev@wildtrace.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package pipeline wires the synthesis components into one service: stage
// catalog, executor, schema registry, confidence aggregation, progress
// reporting, and record assembly.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/wildtrace/wildtrace/pkg/logging"
	"github.com/wildtrace/wildtrace/pkg/validation"
	"github.com/wildtrace/wildtrace/services/synthesis/confidence"
	"github.com/wildtrace/wildtrace/services/synthesis/dag"
	"github.com/wildtrace/wildtrace/services/synthesis/datatypes"
	"github.com/wildtrace/wildtrace/services/synthesis/invoker"
	"github.com/wildtrace/wildtrace/services/synthesis/observability"
	"github.com/wildtrace/wildtrace/services/synthesis/progress"
	"github.com/wildtrace/wildtrace/services/synthesis/record"
	"github.com/wildtrace/wildtrace/services/synthesis/schema"
)

// Input is one synthesis request: everything the hiker's device captured,
// plus context from the journal and map collaborators.
type Input struct {
	// SessionID identifies the capture session. One record per session.
	SessionID string `validate:"required"`

	// Timestamp is the single clock reading for the observation.
	Timestamp time.Time `validate:"required"`

	// Packet is the validated media bundle from ingestion.
	Packet datatypes.MediaPacket `validate:"required"`

	// Sensors is the device telemetry series, ordered by time.
	Sensors []datatypes.SensorSample

	// History is the prior records for this area, most recent first.
	History []datatypes.HistoryEntry

	// Location is the caller-resolved place context.
	Location datatypes.LocationContext
}

// Output is the synthesis outcome: the run, its record, and the confidence
// breakdown. Record is nil only when the run was cancelled.
type Output struct {
	Run        *dag.PipelineRun
	Record     *datatypes.EnvironmentalRecord
	Confidence confidence.Summary
}

// Service is the synthesis pipeline entry point.
//
// Thread Safety:
//
//	Service is safe for concurrent use; each Synthesize call gets its own
//	PipelineRun.
type Service struct {
	executor  *dag.Executor
	defs      []dag.TaskDefinition
	assembler *record.Assembler
	reporter  *progress.Reporter
	metrics   *observability.PipelineMetrics
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewService assembles a synthesis service from config and an invoker.
//
// Inputs:
//
//	cfg - Pipeline configuration. Zero-value stages fall back to Catalog().
//	inv - The model invoker. Must not be nil.
//	logger - Logger for pipeline logs. If nil, uses the shared default logger.
//	metrics - Prometheus metrics. May be nil.
//	reporter - Progress reporter wired as the executor's event sink. If
//	           nil, a reporter over the default milestone schedule is
//	           created; retrieve it with Progress().
func NewService(
	cfg Config,
	inv invoker.Invoker,
	logger *slog.Logger,
	metrics *observability.PipelineMetrics,
	reporter *progress.Reporter,
) (*Service, error) {
	if inv == nil {
		return nil, dag.ErrInvalidInput
	}
	if logger == nil {
		logger = logging.Default().Slog()
	}
	if reporter == nil {
		reporter = progress.NewReporter(nil)
	}

	defs := cfg.Stages
	if len(defs) == 0 {
		defs = Catalog()
	}

	graph, err := dag.NewBuilder("synthesis").AddTasks(defs).Build()
	if err != nil {
		return nil, fmt.Errorf("build stage graph: %w", err)
	}

	executor, err := dag.NewExecutor(graph, inv, schema.NewRegistry(), BuildRequest, cfg.Executor, logger, reporter)
	if err != nil {
		return nil, fmt.Errorf("build executor: %w", err)
	}

	return &Service{
		executor:  executor,
		defs:      defs,
		assembler: record.NewAssembler(),
		reporter:  reporter,
		metrics:   metrics,
		validate:  validator.New(),
		logger:    logger,
	}, nil
}

// NewDefaultService builds a service backed by the hosted model API, with
// rate limiting from config.
func NewDefaultService(cfg Config, logger *slog.Logger, metrics *observability.PipelineMetrics) (*Service, error) {
	var opts []invoker.OpenAIOption
	if cfg.RequestsPerMinute > 0 {
		opts = append(opts, invoker.WithRateLimit(float64(cfg.RequestsPerMinute)/60.0, 1))
	}
	inv, err := invoker.NewOpenAIInvoker(opts...)
	if err != nil {
		return nil, err
	}
	return NewService(cfg, inv, logger, metrics, nil)
}

// Progress returns the reporter receiving this service's stage events.
// Snapshots carry the run ID, so subscribers can follow concurrent
// sessions through the one shared reporter.
func (s *Service) Progress() *progress.Reporter {
	return s.reporter
}

// Synthesize runs the pipeline for one capture session and returns exactly
// one environmental record, unless the caller cancels.
//
// Description:
//
//	Invalid input is the only argument error. A packet with no usable
//	media short-circuits: no stages run and a placeholder record is
//	returned at Medium confidence. Stage failures never escape as errors;
//	they resolve into the fallback record path. Caller cancellation
//	discards the run's partial results and returns the context error with
//	no record.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	in - The synthesis request.
//
// Outputs:
//
//	Output - The run, the record, and the confidence breakdown.
//	error - Validation errors, or ctx.Err() after cancellation.
func (s *Service) Synthesize(ctx context.Context, in Input) (Output, error) {
	if ctx == nil {
		return Output{}, dag.ErrNilContext
	}
	if err := s.validate.Struct(in); err != nil {
		return Output{}, fmt.Errorf("%w: %v", dag.ErrInvalidInput, err)
	}
	if err := validation.ValidateSessionID(in.SessionID); err != nil {
		return Output{}, fmt.Errorf("%w: %v", dag.ErrInvalidInput, err)
	}
	if !in.Packet.Status.IsValid() {
		return Output{}, fmt.Errorf("%w: unknown packet status %q", dag.ErrInvalidInput, in.Packet.Status)
	}

	if len(in.Packet.ValidSegments()) == 0 {
		// Nothing to analyze: don't spend model calls to find that out.
		s.logger.Info("no usable media, returning placeholder record",
			slog.String("session_id", in.SessionID),
			slog.Int("discarded", in.Packet.DiscardedCount),
		)
		return s.placeholder(in), nil
	}

	rc := &dag.Context{
		Packet:   in.Packet,
		Sensors:  in.Sensors,
		History:  in.History,
		Location: in.Location,
	}

	if s.metrics != nil {
		s.metrics.RunStarted()
	}
	start := time.Now()

	run, err := s.executor.Run(ctx, in.SessionID, rc)
	if run != nil {
		// The run is terminal and its last snapshot has been delivered;
		// drop the stream so the reporter stays bounded.
		defer s.reporter.Forget(run.RunID)
	}
	if s.metrics != nil && run != nil {
		s.observeRun(run, time.Since(start))
	}
	if err != nil {
		return Output{Run: run}, err
	}

	if run.CurrentStatus() == dag.RunCancelled {
		// Partial results are discarded; the caller walked away.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Output{Run: run}, ctxErr
		}
		return Output{Run: run}, context.Canceled
	}

	summary := confidence.Aggregate(run.ResultMap(), s.defs)
	rec := s.assembler.Assemble(run, summary, rc, in.Timestamp)

	return Output{Run: run, Record: &rec, Confidence: summary}, nil
}

// placeholder builds the no-media record: a completed run with no stage
// results and a Medium-confidence record explaining what happened.
func (s *Service) placeholder(in Input) Output {
	run := dag.NewPipelineRun(uuid.NewString(), in.SessionID)
	run.Status = dag.RunCompleted
	run.Progress = 100

	rec := datatypes.EnvironmentalRecord{
		ID:         record.RecordID(in.SessionID),
		SessionID:  in.SessionID,
		Timestamp:  in.Timestamp,
		Location:   in.Location,
		Confidence: datatypes.ConfidenceMedium,
		Summary: "No usable photos or audio were captured for this observation; " +
			"position and telemetry were recorded.",
	}

	summary := confidence.Summary{
		Record: datatypes.ConfidenceMedium,
		Fields: map[string]datatypes.Confidence{},
	}
	return Output{Run: run, Record: &rec, Confidence: summary}
}

// observeRun records run-level metrics and per-stage outcomes.
func (s *Service) observeRun(run *dag.PipelineRun, elapsed time.Duration) {
	s.metrics.RunFinished(string(run.CurrentStatus()), elapsed.Seconds())
	for stage, res := range run.ResultMap() {
		s.metrics.RecordStageOutcome(stage, string(res.Status), res.Latency.Seconds())
	}
}
