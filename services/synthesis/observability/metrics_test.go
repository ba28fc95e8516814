// Copyright (C) 2025 Wildtrace Labs (dev@wildtrace.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPipelineMetrics_RunLifecycle(t *testing.T) {
	m := NewPipelineMetrics(prometheus.NewRegistry())

	m.RunStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveRuns))

	m.RunFinished("completed", 12.5)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveRuns))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("completed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("failed")))
}

func TestPipelineMetrics_StageOutcomes(t *testing.T) {
	m := NewPipelineMetrics(prometheus.NewRegistry())

	m.RecordStageOutcome("VISUAL_ANALYSIS", "done", 3.2)
	m.RecordStageOutcome("VISUAL_ANALYSIS", "done", 1.1)
	m.RecordStageOutcome("ACOUSTIC_ANALYSIS", "skipped", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StageOutcomesTotal.WithLabelValues("VISUAL_ANALYSIS", "done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageOutcomesTotal.WithLabelValues("ACOUSTIC_ANALYSIS", "skipped")))
}

func TestPipelineMetrics_Retries(t *testing.T) {
	m := NewPipelineMetrics(prometheus.NewRegistry())

	m.RecordRetry("VISUAL_ANALYSIS", RetryReasonValidation)
	m.RecordRetry("VISUAL_ANALYSIS", RetryReasonInvocation)
	m.RecordRetry("VISUAL_ANALYSIS", RetryReasonValidation)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RetriesTotal.WithLabelValues("VISUAL_ANALYSIS", "validation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RetriesTotal.WithLabelValues("VISUAL_ANALYSIS", "invocation")))
}
