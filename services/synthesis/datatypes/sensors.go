// Copyright (C) 2025 Wildtrace Labs (dev@wildtrace.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// SensorSample is one entry of the device telemetry time series.
//
// Description:
//
//	Samples arrive ordered by timestamp from the external device pairing
//	layer. The pipeline treats them as read-only context; it never mutates
//	or persists them.
type SensorSample struct {
	Timestamp time.Time `json:"timestamp"`

	// AltitudeM is altitude above sea level in meters.
	AltitudeM float64 `json:"altitude_m"`

	// HeartRateBPM is heart rate in beats per minute. Zero if the device
	// reported no reading.
	HeartRateBPM int `json:"heart_rate_bpm" validate:"gte=0"`

	// PressureHPa is barometric pressure in hectopascals.
	PressureHPa float64 `json:"pressure_hpa" validate:"gte=0"`

	// UVIndex is the measured UV index.
	UVIndex float64 `json:"uv_index" validate:"gte=0"`

	// VelocityMS is ground speed in meters per second.
	VelocityMS float64 `json:"velocity_ms" validate:"gte=0"`

	// ClimbRateMS is vertical speed in meters per second (negative when
	// descending).
	ClimbRateMS float64 `json:"climb_rate_ms"`

	// Cadence is steps per minute.
	Cadence int `json:"cadence" validate:"gte=0"`

	// Position is the optional GPS fix for this sample.
	Position *GeoPoint `json:"position,omitempty"`
}

// SensorWindow condenses a sample series into the structured context handed
// to analysis stages. Feeding the full series to a model wastes tokens and
// drowns the signal; stages only need the envelope.
type SensorWindow struct {
	Samples int `json:"samples"`

	Start time.Time `json:"start,omitempty"`
	End   time.Time `json:"end,omitempty"`

	MinAltitudeM float64 `json:"min_altitude_m"`
	MaxAltitudeM float64 `json:"max_altitude_m"`
	TotalClimbM  float64 `json:"total_climb_m"`

	AvgHeartRateBPM int     `json:"avg_heart_rate_bpm"`
	MaxHeartRateBPM int     `json:"max_heart_rate_bpm"`
	AvgVelocityMS   float64 `json:"avg_velocity_ms"`
	MaxUVIndex      float64 `json:"max_uv_index"`
	AvgPressureHPa  float64 `json:"avg_pressure_hpa"`
}

// SummarizeSensors folds an ordered sample series into a SensorWindow.
//
// Inputs:
//
//	samples - Ordered telemetry entries. May be empty.
//
// Outputs:
//
//	SensorWindow - Zero-valued when samples is empty.
func SummarizeSensors(samples []SensorSample) SensorWindow {
	w := SensorWindow{Samples: len(samples)}
	if len(samples) == 0 {
		return w
	}

	w.Start = samples[0].Timestamp
	w.End = samples[len(samples)-1].Timestamp
	w.MinAltitudeM = samples[0].AltitudeM
	w.MaxAltitudeM = samples[0].AltitudeM

	var hrSum, hrCount int
	var velSum, pressSum float64
	prevAlt := samples[0].AltitudeM

	for _, s := range samples {
		if s.AltitudeM < w.MinAltitudeM {
			w.MinAltitudeM = s.AltitudeM
		}
		if s.AltitudeM > w.MaxAltitudeM {
			w.MaxAltitudeM = s.AltitudeM
		}
		if s.AltitudeM > prevAlt {
			w.TotalClimbM += s.AltitudeM - prevAlt
		}
		prevAlt = s.AltitudeM

		if s.HeartRateBPM > 0 {
			hrSum += s.HeartRateBPM
			hrCount++
			if s.HeartRateBPM > w.MaxHeartRateBPM {
				w.MaxHeartRateBPM = s.HeartRateBPM
			}
		}
		if s.UVIndex > w.MaxUVIndex {
			w.MaxUVIndex = s.UVIndex
		}
		velSum += s.VelocityMS
		pressSum += s.PressureHPa
	}

	if hrCount > 0 {
		w.AvgHeartRateBPM = hrSum / hrCount
	}
	w.AvgVelocityMS = velSum / float64(len(samples))
	w.AvgPressureHPa = pressSum / float64(len(samples))

	return w
}
