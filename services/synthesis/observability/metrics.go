// Copyright (C) 2025 Wildtrace Labs (dev@wildtrace.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the synthesis
// pipeline.
//
// # Description
//
// Metrics cover the run lifecycle and per-stage behavior:
//   - Run counters by final status (completed, failed, cancelled)
//   - Run and stage duration histograms
//   - Stage outcome counters (done, skipped, failed) and retry counters
//   - Active run gauge
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "wildtrace"

// Subsystem for synthesis pipeline metrics
const synthesisSubsystem = "synthesis"

// PipelineMetrics holds the Prometheus metrics for synthesis runs.
//
// # Description
//
// Initialize once at startup via InitMetrics(), or construct against a
// private registry with NewPipelineMetrics() in tests.
//
// # Thread Safety
//
// All operations are thread-safe.
type PipelineMetrics struct {
	// RunsTotal counts finished runs by final status.
	// Labels: status (completed, failed, cancelled)
	RunsTotal *prometheus.CounterVec

	// RunDurationSeconds measures wall time per run by final status.
	// Labels: status (completed, failed, cancelled)
	RunDurationSeconds *prometheus.HistogramVec

	// StageOutcomesTotal counts terminal stage outcomes.
	// Labels: stage, status (done, skipped, failed)
	StageOutcomesTotal *prometheus.CounterVec

	// StageDurationSeconds measures per-stage latency across attempts.
	// Labels: stage
	StageDurationSeconds *prometheus.HistogramVec

	// RetriesTotal counts stage retry attempts.
	// Labels: stage, reason (invocation, validation)
	RetriesTotal *prometheus.CounterVec

	// ActiveRuns tracks runs currently executing.
	ActiveRuns prometheus.Gauge
}

// DefaultMetrics is the singleton instance of PipelineMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *PipelineMetrics

// InitMetrics initializes the default metrics instance against the global
// Prometheus registry.
//
// # Outputs
//
//   - *PipelineMetrics: The initialized metrics instance.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *PipelineMetrics {
	DefaultMetrics = NewPipelineMetrics(prometheus.DefaultRegisterer)
	return DefaultMetrics
}

// NewPipelineMetrics creates and registers the pipeline metrics against the
// given registerer. Tests pass prometheus.NewRegistry().
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	factory := promauto.With(reg)

	return &PipelineMetrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: synthesisSubsystem,
				Name:      "runs_total",
				Help:      "Total finished synthesis runs by final status",
			},
			[]string{"status"},
		),

		RunDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: synthesisSubsystem,
				Name:      "run_duration_seconds",
				Help:      "Wall time per synthesis run by final status",
				Buckets:   []float64{1, 5, 10, 20, 40, 60, 90, 120, 180},
			},
			[]string{"status"},
		),

		StageOutcomesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: synthesisSubsystem,
				Name:      "stage_outcomes_total",
				Help:      "Terminal stage outcomes by stage and status",
			},
			[]string{"stage", "status"},
		),

		StageDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: synthesisSubsystem,
				Name:      "stage_duration_seconds",
				Help:      "Per-stage latency in seconds, across attempts",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 75},
			},
			[]string{"stage"},
		),

		RetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: synthesisSubsystem,
				Name:      "retries_total",
				Help:      "Stage retry attempts by stage and reason",
			},
			[]string{"stage", "reason"},
		),

		ActiveRuns: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: synthesisSubsystem,
				Name:      "active_runs",
				Help:      "Synthesis runs currently executing",
			},
		),
	}
}

// RetryReason categorizes why a stage attempt was retried.
type RetryReason string

const (
	// RetryReasonInvocation indicates a transient model invocation failure.
	RetryReasonInvocation RetryReason = "invocation"

	// RetryReasonValidation indicates a schema validation failure retried
	// with a repair instruction.
	RetryReasonValidation RetryReason = "validation"
)

// RunStarted increments the active run gauge.
func (m *PipelineMetrics) RunStarted() {
	m.ActiveRuns.Inc()
}

// RunFinished records a finished run and decrements the active run gauge.
//
// # Inputs
//
//   - status: The final run status label.
//   - seconds: Run wall time in seconds.
func (m *PipelineMetrics) RunFinished(status string, seconds float64) {
	m.ActiveRuns.Dec()
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDurationSeconds.WithLabelValues(status).Observe(seconds)
}

// RecordStageOutcome records one terminal stage result.
//
// # Inputs
//
//   - stage: The stage name.
//   - status: The terminal stage status label.
//   - seconds: Stage latency in seconds, across attempts.
func (m *PipelineMetrics) RecordStageOutcome(stage, status string, seconds float64) {
	m.StageOutcomesTotal.WithLabelValues(stage, status).Inc()
	m.StageDurationSeconds.WithLabelValues(stage).Observe(seconds)
}

// RecordRetry records one retried stage attempt.
//
// # Inputs
//
//   - stage: The stage name.
//   - reason: Why the attempt was retried.
func (m *PipelineMetrics) RecordRetry(stage string, reason RetryReason) {
	m.RetriesTotal.WithLabelValues(stage, string(reason)).Inc()
}
