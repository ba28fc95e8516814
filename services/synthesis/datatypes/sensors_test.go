// Copyright (C) 2025 Wildtrace Labs (dev@wildtrace.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"testing"
	"time"
)

func TestSummarizeSensors_Empty(t *testing.T) {
	w := SummarizeSensors(nil)
	if w.Samples != 0 {
		t.Errorf("Samples = %d, want 0", w.Samples)
	}
	if !w.Start.IsZero() || !w.End.IsZero() {
		t.Error("empty series should produce a zero-valued window")
	}
}

func TestSummarizeSensors(t *testing.T) {
	base := time.Date(2025, 6, 14, 9, 0, 0, 0, time.UTC)
	samples := []SensorSample{
		{Timestamp: base, AltitudeM: 1000, HeartRateBPM: 100, VelocityMS: 1.0, UVIndex: 3, PressureHPa: 900},
		{Timestamp: base.Add(time.Minute), AltitudeM: 1050, HeartRateBPM: 140, VelocityMS: 1.4, UVIndex: 5, PressureHPa: 895},
		{Timestamp: base.Add(2 * time.Minute), AltitudeM: 1030, HeartRateBPM: 120, VelocityMS: 1.2, UVIndex: 4, PressureHPa: 897},
		{Timestamp: base.Add(3 * time.Minute), AltitudeM: 1080, HeartRateBPM: 0, VelocityMS: 1.0, UVIndex: 2, PressureHPa: 892},
	}

	w := SummarizeSensors(samples)

	if w.Samples != 4 {
		t.Errorf("Samples = %d, want 4", w.Samples)
	}
	if !w.Start.Equal(base) || !w.End.Equal(base.Add(3*time.Minute)) {
		t.Errorf("window = [%v, %v], want full span", w.Start, w.End)
	}
	if w.MinAltitudeM != 1000 || w.MaxAltitudeM != 1080 {
		t.Errorf("altitude range = [%v, %v], want [1000, 1080]", w.MinAltitudeM, w.MaxAltitudeM)
	}
	// Ascent only: 1000->1050 (+50), 1050->1030 (descent ignored), 1030->1080 (+50).
	if w.TotalClimbM != 100 {
		t.Errorf("TotalClimbM = %v, want 100", w.TotalClimbM)
	}
	// A zero heart-rate reading means no data, not a flatline.
	if w.AvgHeartRateBPM != 120 {
		t.Errorf("AvgHeartRateBPM = %d, want 120", w.AvgHeartRateBPM)
	}
	if w.MaxHeartRateBPM != 140 {
		t.Errorf("MaxHeartRateBPM = %d, want 140", w.MaxHeartRateBPM)
	}
	if w.MaxUVIndex != 5 {
		t.Errorf("MaxUVIndex = %v, want 5", w.MaxUVIndex)
	}
}
