// Copyright (C) 2025 Wildtrace Labs (dev@wildtrace.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package progress

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildtrace/wildtrace/services/synthesis/dag"
)

func TestDefaultSchedule_EndsAtHundred(t *testing.T) {
	schedule := DefaultSchedule()
	require.NotEmpty(t, schedule)

	prev := 0
	for _, m := range schedule {
		assert.Greater(t, m.Weight, prev, "milestones must be strictly increasing")
		assert.NotEmpty(t, m.Label)
		prev = m.Weight
	}
	assert.Equal(t, 100, schedule[len(schedule)-1].Weight)
}

func TestReporter_Observe_AdvancesThroughMilestones(t *testing.T) {
	r := NewReporter(nil)

	snap := r.Observe("run-1", 0)
	assert.Equal(t, "run-1", snap.RunID)
	assert.Equal(t, 0, snap.Weight)
	require.NotNil(t, snap.Active)
	assert.Equal(t, 10, snap.Active.Weight)
	assert.Empty(t, snap.Completed)

	snap = r.Observe("run-1", 35)
	assert.Equal(t, 35, snap.Weight)
	require.NotNil(t, snap.Active)
	assert.Equal(t, 50, snap.Active.Weight)
	assert.Len(t, snap.Completed, 2)

	snap = r.Observe("run-1", 100)
	assert.Equal(t, 100, snap.Weight)
	assert.Nil(t, snap.Active, "no active milestone once everything is done")
	assert.Len(t, snap.Completed, len(DefaultSchedule()))
}

func TestReporter_Observe_NeverRegresses(t *testing.T) {
	r := NewReporter(nil)

	r.Observe("run-1", 65)
	snap := r.Observe("run-1", 30) // Stale, out-of-order sample.

	assert.Equal(t, 65, snap.Weight)
	assert.Equal(t, 65, r.Current("run-1").Weight)
}

func TestReporter_Observe_CapsAtHundred(t *testing.T) {
	r := NewReporter(nil)
	snap := r.Observe("run-1", 130)
	assert.Equal(t, 100, snap.Weight)
}

func TestReporter_StreamsAreIndependentPerRun(t *testing.T) {
	r := NewReporter(nil)

	// First session runs to the end.
	r.Observe("run-1", 50)
	r.Observe("run-1", 100)
	assert.Equal(t, 100, r.Current("run-1").Weight)

	// A later session must start from zero, not inherit the finished
	// session's clamp.
	snap := r.Observe("run-2", 0)
	assert.Equal(t, 0, snap.Weight)
	require.NotNil(t, snap.Active)
	assert.Empty(t, snap.Completed)

	snap = r.Observe("run-2", 20)
	assert.Equal(t, 20, snap.Weight)
	assert.Equal(t, 100, r.Current("run-1").Weight, "old stream untouched")
}

func TestReporter_ConcurrentRunsDoNotInterleave(t *testing.T) {
	r := NewReporter(nil)

	var wg sync.WaitGroup
	for _, runID := range []string{"run-a", "run-b"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for w := 0; w <= 60; w += 20 {
				r.Observe(id, w)
			}
		}(runID)
	}
	wg.Wait()

	// Each run's clamp is its own maximum, not a shared counter.
	assert.Equal(t, 60, r.Current("run-a").Weight)
	assert.Equal(t, 60, r.Current("run-b").Weight)
}

func TestReporter_Forget(t *testing.T) {
	r := NewReporter(nil)

	r.Observe("run-1", 100)
	r.Forget("run-1")

	assert.Equal(t, 0, r.Current("run-1").Weight, "forgotten stream reads as fresh")
}

func TestReporter_OnStageEvent(t *testing.T) {
	r := NewReporter(nil)

	r.OnStageEvent(dag.Event{RunID: "r1", Stage: "VISUAL_ANALYSIS", Status: dag.TaskDone, Weight: 20})
	assert.Equal(t, 20, r.Current("r1").Weight)
}

func TestReporter_Subscribe(t *testing.T) {
	r := NewReporter(nil)

	var mu sync.Mutex
	var seen []int
	r.Subscribe(func(s Snapshot) {
		mu.Lock()
		seen = append(seen, s.Weight)
		mu.Unlock()
	})

	r.Observe("run-1", 10)
	r.Observe("run-1", 50)
	r.Observe("run-1", 30)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{10, 50, 50}, seen)
}

func TestReporter_CustomSchedule(t *testing.T) {
	r := NewReporter([]Milestone{
		{Weight: 50, Label: "halfway", Stage: "A"},
		{Weight: 100, Label: "done", Stage: "B"},
	})

	snap := r.Observe("run-1", 50)
	assert.Len(t, snap.Completed, 1)
	require.NotNil(t, snap.Active)
	assert.Equal(t, "done", snap.Active.Label)
}

func TestReporter_ConcurrentObserve(t *testing.T) {
	r := NewReporter(nil)

	var wg sync.WaitGroup
	for w := 0; w <= 100; w += 5 {
		wg.Add(1)
		go func(weight int) {
			defer wg.Done()
			r.Observe("run-1", weight)
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 100, r.Current("run-1").Weight)
}
