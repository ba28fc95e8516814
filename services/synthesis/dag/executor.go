// Copyright (C) 2025 Wildtrace Labs (dev@wildtrace.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dag

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/wildtrace/wildtrace/services/synthesis/datatypes"
	"github.com/wildtrace/wildtrace/services/synthesis/invoker"
	"github.com/wildtrace/wildtrace/services/synthesis/schema"
)

var (
	tracer = otel.Tracer("wildtrace.synthesis.dag")
	meter  = otel.Meter("wildtrace.synthesis.dag")
)

// RequestBuilder resolves a stage's inputs into one invocation request.
// Implementations live with the stage catalog; the executor only schedules.
// Returning an error wrapping ErrMissingInput skips optional stages.
type RequestBuilder func(def TaskDefinition, rc *Context, preds map[string]datatypes.StagePayload) (invoker.Request, error)

// Config holds the executor's tunable policy.
type Config struct {
	// StageTimeout is the default per-stage timeout.
	StageTimeout time.Duration `json:"stage_timeout" yaml:"stage_timeout"`

	// RunTimeout is the backstop timeout for the whole run.
	RunTimeout time.Duration `json:"run_timeout" yaml:"run_timeout"`

	// RetryLimit is how many extra attempts a stage gets after a retryable
	// invocation error or a schema validation failure.
	RetryLimit int `json:"retry_limit" yaml:"retry_limit"`

	// MaxConcurrent bounds simultaneous model invocations. Zero means
	// unbounded.
	MaxConcurrent int64 `json:"max_concurrent" yaml:"max_concurrent"`
}

// DefaultConfig returns the documented default policy: one retry, 75s per
// stage, two minutes per run.
func DefaultConfig() Config {
	return Config{
		StageTimeout: DefaultStageTimeout,
		RunTimeout:   DefaultRunTimeout,
		RetryLimit:   1,
	}
}

// Executor runs a stage graph against one PipelineRun at a time, maximizing
// concurrency between independent branches.
//
// Description:
//
//	Scheduling is completion-driven: a stage is dispatched the moment its
//	last dependency reaches a terminal state, regardless of what else is
//	still in flight, so a fast branch never waits on a slow sibling. Stage
//	invocations are the only suspension points. The PipelineRun is the
//	single shared mutable resource; all writes go through its mutex.
//
// Thread Safety:
//
//	Executor is safe for concurrent use; multiple runs may execute
//	concurrently on the same Executor.
type Executor struct {
	graph    *Graph
	invoke   invoker.Invoker
	registry *schema.Registry
	build    RequestBuilder
	cfg      Config
	logger   *slog.Logger
	sink     EventSink
	sem      *semaphore.Weighted

	// Metrics (initialized lazily)
	metricsOnce  sync.Once
	stageLatency metric.Float64Histogram
	stageRetries metric.Int64Counter
	activeStages metric.Int64UpDownCounter
	runLatency   metric.Float64Histogram
}

// NewExecutor creates an executor for one stage graph.
//
// Inputs:
//
//	graph - The validated stage graph. Must not be nil.
//	inv - The model invoker. Must not be nil.
//	registry - The schema registry used to validate responses. Must not be nil.
//	build - Resolves per-stage inputs into invocation requests. Must not be nil.
//	cfg - Executor policy; zero fields fall back to DefaultConfig values.
//	logger - Logger for execution logs. If nil, uses slog.Default().
//	sink - Receives progress events. May be nil.
func NewExecutor(
	graph *Graph,
	inv invoker.Invoker,
	registry *schema.Registry,
	build RequestBuilder,
	cfg Config,
	logger *slog.Logger,
	sink EventSink,
) (*Executor, error) {
	if graph == nil || inv == nil || registry == nil || build == nil {
		return nil, ErrInvalidInput
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = DefaultStageTimeout
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = DefaultRunTimeout
	}
	if cfg.RetryLimit < 0 {
		cfg.RetryLimit = 0
	}

	e := &Executor{
		graph:    graph,
		invoke:   inv,
		registry: registry,
		build:    build,
		cfg:      cfg,
		logger:   logger,
		sink:     sink,
	}
	if cfg.MaxConcurrent > 0 {
		e.sem = semaphore.NewWeighted(cfg.MaxConcurrent)
	}
	return e, nil
}

// initMetrics lazily initializes metrics. Metric creation failures degrade
// observability, never execution.
func (e *Executor) initMetrics() {
	e.metricsOnce.Do(func() {
		var initErrors []string

		var err error
		e.stageLatency, err = meter.Float64Histogram("synthesis_stage_duration_seconds",
			metric.WithDescription("Time spent executing each synthesis stage"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "stage_latency: "+err.Error())
		}

		e.stageRetries, err = meter.Int64Counter("synthesis_stage_retries_total",
			metric.WithDescription("Number of stage invocation retries"),
		)
		if err != nil {
			initErrors = append(initErrors, "stage_retries: "+err.Error())
		}

		e.activeStages, err = meter.Int64UpDownCounter("synthesis_active_stages",
			metric.WithDescription("Number of currently executing stages"),
		)
		if err != nil {
			initErrors = append(initErrors, "active_stages: "+err.Error())
		}

		e.runLatency, err = meter.Float64Histogram("synthesis_run_duration_seconds",
			metric.WithDescription("Total pipeline run time"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "run_latency: "+err.Error())
		}

		if len(initErrors) > 0 {
			e.logger.Error("failed to initialize some synthesis metrics (observability degraded)",
				slog.Int("failed_count", len(initErrors)),
				slog.Any("errors", initErrors),
			)
		}
	})
}

// Run executes the stage graph for one synthesis request.
//
// Description:
//
//	Run drives the graph until every stage is terminal, a required stage
//	fails, the backstop timeout fires, or the caller cancels. No stage
//	error ever escapes as an error return: everything resolves into a
//	terminal PipelineRun state. The returned error is non-nil only for
//	caller mistakes (nil context/inputs) or a wedged graph.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil. Cancelling it stops
//	      scheduling; in-flight results are discarded and the run ends in
//	      the cancelled state.
//	sessionID - The submitting session's identifier.
//	rc - The read-only raw inputs. Must not be nil.
//
// Outputs:
//
//	*PipelineRun - The terminal run, whatever the outcome.
//	error - Non-nil only for invalid arguments or a scheduling deadlock.
func (e *Executor) Run(ctx context.Context, sessionID string, rc *Context) (*PipelineRun, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if rc == nil {
		return nil, ErrInvalidInput
	}

	e.initMetrics()

	ctx, span := tracer.Start(ctx, "synthesis.Run",
		trace.WithAttributes(
			attribute.String("graph.name", e.graph.Name()),
			attribute.Int("graph.stage_count", e.graph.TaskCount()),
			attribute.String("session_id", sessionID),
		),
	)
	defer span.End()

	start := time.Now()
	run := NewPipelineRun(uuid.NewString(), sessionID)
	run.setStatus(RunRunning)

	e.logger.Info("pipeline run started",
		slog.String("graph", e.graph.Name()),
		slog.String("run_id", run.RunID),
		slog.String("session_id", sessionID),
		slog.Int("stages", e.graph.TaskCount()),
	)

	runCtx, cancel := context.WithTimeout(ctx, e.cfg.RunTimeout)
	defer cancel()

	if err := e.runStages(runCtx, run, rc); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		run.mu.Lock()
		run.Status = RunFailed
		run.Error = err.Error()
		run.mu.Unlock()
		return run, err
	}

	e.finalize(ctx, runCtx, run)

	duration := time.Since(start)
	if e.runLatency != nil {
		e.runLatency.Record(ctx, duration.Seconds(),
			metric.WithAttributes(
				attribute.String("graph", e.graph.Name()),
				attribute.String("status", string(run.CurrentStatus())),
			),
		)
	}

	switch run.CurrentStatus() {
	case RunCompleted:
		span.SetStatus(codes.Ok, "")
		e.logger.Info("pipeline run completed",
			slog.String("run_id", run.RunID),
			slog.Duration("duration", duration),
			slog.Int("progress", run.CurrentProgress()),
		)
	case RunCancelled:
		span.SetStatus(codes.Error, "run cancelled")
		e.logger.Info("pipeline run cancelled",
			slog.String("run_id", run.RunID),
			slog.Duration("duration", duration),
		)
	default:
		run.mu.RLock()
		failedStage, runErr := run.FailedStage, run.Error
		run.mu.RUnlock()
		span.SetStatus(codes.Error, runErr)
		e.logger.Error("pipeline run failed",
			slog.String("run_id", run.RunID),
			slog.String("failed_stage", failedStage),
			slog.String("error", runErr),
		)
	}

	return run, nil
}

// finalize settles the run's terminal status once scheduling has stopped.
func (e *Executor) finalize(parentCtx, runCtx context.Context, run *PipelineRun) {
	run.mu.Lock()
	defer run.mu.Unlock()

	switch {
	case parentCtx.Err() != nil:
		// Caller cancelled: distinct from failure, no record is assembled.
		run.Status = RunCancelled
		if run.Error == "" {
			run.Error = parentCtx.Err().Error()
		}
	case runCtx.Err() != nil:
		// Backstop timeout: forced failure, the fallback path executes.
		run.Status = RunFailed
		if run.Error == "" {
			run.Error = ErrRunTimeout.Error()
		}
	case run.FailedStage != "":
		run.Status = RunFailed
	default:
		run.Status = RunCompleted
	}
}

// findReady returns the pending stages whose dependencies have all reached
// a terminal state. Skipped dependencies count as satisfied; their payloads
// are simply absent from the stage's inputs.
func (e *Executor) findReady(run *PipelineRun) []TaskDefinition {
	ready := make([]TaskDefinition, 0)

	for _, name := range e.graph.TaskNames() {
		if run.StatusOf(name) != TaskPending {
			continue
		}

		def, _ := e.graph.Task(name)
		allTerminal := true
		for _, dep := range def.DependsOn {
			if !run.StatusOf(dep).IsTerminal() {
				allTerminal = false
				break
			}
		}
		if allTerminal {
			ready = append(ready, def)
		}
	}

	return ready
}

// allTerminal reports whether every stage has reached a terminal state.
func (e *Executor) allTerminal(run *PipelineRun) bool {
	for _, name := range e.graph.TaskNames() {
		if !run.StatusOf(name).IsTerminal() {
			return false
		}
	}
	return true
}

// runStages drives the graph with a completion-driven scheduler: every
// stage whose dependencies are all terminal is dispatched immediately, and
// each completion re-opens dispatch for whatever it unblocked. A required
// failure or a dead context stops new dispatches; in-flight stages still
// run to their own terminal state before the loop returns, which is what
// lets unrelated branches finish after an earlier failure.
func (e *Executor) runStages(runCtx context.Context, run *PipelineRun, rc *Context) error {
	completions := make(chan string, e.graph.TaskCount())
	dispatched := make(map[string]bool, e.graph.TaskCount())
	inFlight := 0

	for {
		if runCtx.Err() == nil && !run.IsFailed() {
			for _, def := range e.findReady(run) {
				if dispatched[def.Name] {
					continue
				}
				dispatched[def.Name] = true
				inFlight++
				go e.runStage(runCtx, def, run, rc, completions)
			}
		}

		if inFlight == 0 {
			if runCtx.Err() != nil || run.IsFailed() || e.allTerminal(run) {
				return nil
			}
			// Nothing in flight and nothing dispatchable: the graph is
			// wedged. Builder validation should make this unreachable.
			return ErrNoProgress
		}

		<-completions
		inFlight--
	}
}

// runStage executes one dispatched stage to its terminal state and signals
// the scheduler. The completion signal fires even when the result is
// discarded, so the scheduler's in-flight count always drains.
func (e *Executor) runStage(
	runCtx context.Context,
	def TaskDefinition,
	run *PipelineRun,
	rc *Context,
	completions chan<- string,
) {
	defer func() { completions <- def.Name }()

	if e.sem != nil {
		if err := e.sem.Acquire(runCtx, 1); err != nil {
			return
		}
		defer e.sem.Release(1)
	}

	run.setStageRunning(def.Name)
	e.emit(Event{RunID: run.RunID, Stage: def.Name, Status: TaskRunning, Weight: run.CurrentProgress()})

	res := e.executeTask(runCtx, def, run, rc)
	if res == nil {
		// Cancelled mid-flight: result discarded.
		return
	}

	progress := run.recordResult(def, res)
	e.emit(Event{RunID: run.RunID, Stage: def.Name, Status: res.Status, Weight: progress})

	if res.Status == TaskFailed && !def.Optional {
		e.skipDependents(def.Name, run)
	}
}

// skipDependents marks every transitive dependent of a failed stage as
// skipped so nothing downstream is ever scheduled.
func (e *Executor) skipDependents(failed string, run *PipelineRun) {
	for _, name := range e.graph.TransitiveDependents(failed) {
		if run.StatusOf(name) != TaskPending {
			continue
		}
		def, _ := e.graph.Task(name)
		res := &TaskResult{
			Stage:      name,
			Status:     TaskSkipped,
			SkipReason: "upstream stage " + failed + " failed",
		}
		progress := run.recordResult(def, res)
		e.emit(Event{RunID: run.RunID, Stage: name, Status: TaskSkipped, Weight: progress})

		e.logger.Info("stage skipped",
			slog.String("stage", name),
			slog.String("reason", res.SkipReason),
		)
	}
}

// executeTask runs one stage to a terminal result, applying the retry and
// timeout policy. Returns nil when the run was cancelled and the result
// must be discarded.
func (e *Executor) executeTask(
	runCtx context.Context,
	def TaskDefinition,
	run *PipelineRun,
	rc *Context,
) *TaskResult {
	ctx, span := tracer.Start(runCtx, def.Name,
		trace.WithAttributes(
			attribute.String("stage", def.Name),
			attribute.StringSlice("stage.depends_on", def.DependsOn),
			attribute.Bool("stage.optional", def.Optional),
			attribute.String("run_id", run.RunID),
		),
	)
	defer span.End()

	if e.activeStages != nil {
		e.activeStages.Add(ctx, 1)
		defer e.activeStages.Add(ctx, -1)
	}

	e.logger.Debug("stage starting",
		slog.String("stage", def.Name),
		slog.String("run_id", run.RunID),
	)

	timeout := def.Timeout
	if timeout <= 0 {
		timeout = e.cfg.StageTimeout
	}
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	preds := run.predecessorPayloads(def.DependsOn)

	var lastErr error
	repairHint := ""
	attempts := 0

	for attempts <= e.cfg.RetryLimit {
		attempts++

		req, err := e.build(def, rc, preds)
		if err != nil {
			if errors.Is(err, ErrMissingInput) && def.Optional {
				span.AddEvent("missing_input")
				return e.settle(ctx, def, &TaskResult{
					Stage:      def.Name,
					Status:     TaskSkipped,
					SkipReason: err.Error(),
					Latency:    time.Since(start),
				})
			}
			// Builder errors are deterministic; retrying is pointless.
			lastErr = err
			break
		}
		req.RepairHint = repairHint

		raw, err := e.invoke.Invoke(stageCtx, req)
		if err != nil {
			if runCtx.Err() != nil {
				// Run-level cancellation or backstop timeout, not a stage
				// fault: the in-flight result is discarded.
				return nil
			}
			if errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
				lastErr = NewStageError(def.Name, ErrStageTimeout)
				span.AddEvent("stage_timeout")
				break
			}
			lastErr = err
			if invoker.IsRetryable(err) && attempts <= e.cfg.RetryLimit {
				e.countRetry(ctx, def.Name, "invocation")
				continue
			}
			break
		}

		payload, err := e.registry.Decode(def.Name, raw)
		if err != nil {
			lastErr = err
			var ve *schema.ValidationError
			if errors.As(err, &ve) && attempts <= e.cfg.RetryLimit {
				repairHint = ve.RepairHint
				e.countRetry(ctx, def.Name, "validation")
				continue
			}
			break
		}

		assessment := payload.Assessed()
		res := &TaskResult{
			Stage:                 def.Name,
			Status:                TaskDone,
			Output:                payload,
			Confidence:            assessment.Confidence,
			UncertaintyNote:       assessment.UncertaintyNote,
			ImprovementSuggestion: assessment.ImprovementSuggestion,
			Latency:               time.Since(start),
			Attempts:              attempts,
		}
		span.SetStatus(codes.Ok, "")
		return e.settle(ctx, def, res)
	}

	res := &TaskResult{
		Stage:    def.Name,
		Status:   TaskFailed,
		Latency:  time.Since(start),
		Attempts: attempts,
	}
	if lastErr != nil {
		res.Error = lastErr.Error()
	}
	if def.Optional {
		// Optional stages never block completion.
		res.Status = TaskSkipped
		res.SkipReason = res.Error
		res.Error = ""
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, def.Name+" did not complete")
	return e.settle(ctx, def, res)
}

// settle records per-stage telemetry and logs the terminal state.
func (e *Executor) settle(ctx context.Context, def TaskDefinition, res *TaskResult) *TaskResult {
	duration := res.Latency

	if e.stageLatency != nil {
		e.stageLatency.Record(ctx, duration.Seconds(),
			metric.WithAttributes(
				attribute.String("stage", def.Name),
				attribute.String("status", string(res.Status)),
			),
		)
	}

	switch res.Status {
	case TaskDone:
		e.logger.Info("stage completed",
			slog.String("stage", def.Name),
			slog.Duration("duration", duration),
			slog.Int("attempts", res.Attempts),
			slog.String("confidence", string(res.Confidence)),
		)
	case TaskSkipped:
		e.logger.Info("stage skipped",
			slog.String("stage", def.Name),
			slog.String("reason", res.SkipReason),
		)
	case TaskFailed:
		e.logger.Error("stage failed",
			slog.String("stage", def.Name),
			slog.Duration("duration", duration),
			slog.Int("attempts", res.Attempts),
			slog.String("error", res.Error),
		)
	}

	return res
}

// countRetry records one retry attempt.
func (e *Executor) countRetry(ctx context.Context, stage, reason string) {
	e.logger.Warn("retrying stage",
		slog.String("stage", stage),
		slog.String("reason", reason),
	)
	if e.stageRetries != nil {
		e.stageRetries.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("stage", stage),
				attribute.String("reason", reason),
			),
		)
	}
}

// emit forwards a progress event to the sink, if one is attached.
func (e *Executor) emit(event Event) {
	if e.sink != nil {
		e.sink.OnStageEvent(event)
	}
}
