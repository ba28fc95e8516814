// Copyright (C) 2025 Wildtrace Labs (dev@wildtrace.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"strings"
	"time"
)

// PacketStatus describes the outcome of the external media ingestion step.
//
// Valid Values:
//   - "validated": every captured segment passed ingestion checks.
//   - "partial": some segments were discarded during ingestion.
//   - "rejected": ingestion discarded everything.
type PacketStatus string

const (
	PacketValidated PacketStatus = "validated"
	PacketPartial   PacketStatus = "partial"
	PacketRejected  PacketStatus = "rejected"
)

// validPacketStatuses contains all valid PacketStatus values.
var validPacketStatuses = map[PacketStatus]bool{
	PacketValidated: true,
	PacketPartial:   true,
	PacketRejected:  true,
}

// IsValid checks if the PacketStatus is a valid value.
func (s PacketStatus) IsValid() bool {
	return validPacketStatuses[s]
}

// GeoPoint is an optional capture location for a media segment.
type GeoPoint struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
	Alt float64 `json:"alt,omitempty"`
}

// MediaSegment is a single captured photo or audio clip.
//
// Description:
//
//	Segments are produced by the external ingestion step and are immutable
//	once handed to the pipeline. Bytes holds the raw capture; QualityScore
//	is the ingestion step's 0-1 assessment of usability.
type MediaSegment struct {
	// ID uniquely identifies the segment within its session.
	ID string `json:"id" validate:"required"`

	// Bytes is the raw capture payload.
	Bytes []byte `json:"bytes,omitempty"`

	// MimeType is the declared media type (e.g., "image/jpeg", "audio/m4a").
	MimeType string `json:"mime_type" validate:"required"`

	// CapturedAt is the capture timestamp.
	CapturedAt time.Time `json:"captured_at"`

	// QualityScore is the ingestion quality assessment, 0-1.
	QualityScore float64 `json:"quality_score" validate:"gte=0,lte=1"`

	// PrivacySafe is false when the segment contains faces, plates, or
	// other content the ingestion step flagged. Unsafe segments never
	// leave the device as model inputs.
	PrivacySafe bool `json:"privacy_safe"`

	// Location is the optional capture position.
	Location *GeoPoint `json:"location,omitempty"`
}

// IsImage reports whether the segment is a photo capture.
func (s MediaSegment) IsImage() bool {
	return strings.HasPrefix(s.MimeType, "image/")
}

// IsAudio reports whether the segment is an audio capture.
func (s MediaSegment) IsAudio() bool {
	return strings.HasPrefix(s.MimeType, "audio/")
}

// Decodable reports whether the segment carries usable bytes.
// Undecodable segments are dropped rather than failing the run.
func (s MediaSegment) Decodable() bool {
	return len(s.Bytes) > 0 && s.MimeType != ""
}

// MediaPacket is the validated media bundle handed in by the external
// ingestion collaborator.
//
// Thread Safety:
//
//	MediaPacket is read-only once handed to the pipeline. No locking is
//	required.
type MediaPacket struct {
	// SessionID ties the packet to one synthesis request.
	SessionID string `json:"session_id" validate:"required"`

	// Segments are the captured media items, capture order preserved.
	Segments []MediaSegment `json:"segments"`

	// DiscardedCount is how many captures ingestion already dropped.
	DiscardedCount int `json:"discarded_count" validate:"gte=0"`

	// Status is the ingestion outcome.
	Status PacketStatus `json:"status" validate:"required"`
}

// ValidSegments returns the segments usable as model inputs: decodable and
// privacy-safe. Undecodable segments are recovered by omission.
func (p MediaPacket) ValidSegments() []MediaSegment {
	valid := make([]MediaSegment, 0, len(p.Segments))
	for _, seg := range p.Segments {
		if seg.Decodable() && seg.PrivacySafe {
			valid = append(valid, seg)
		}
	}
	return valid
}

// ImageSegments returns the valid photo segments.
func (p MediaPacket) ImageSegments() []MediaSegment {
	images := make([]MediaSegment, 0, len(p.Segments))
	for _, seg := range p.ValidSegments() {
		if seg.IsImage() {
			images = append(images, seg)
		}
	}
	return images
}

// AudioSegments returns the valid audio segments. An empty result means the
// acoustic branch of the pipeline has nothing to analyze and is skipped.
func (p MediaPacket) AudioSegments() []MediaSegment {
	audio := make([]MediaSegment, 0, len(p.Segments))
	for _, seg := range p.ValidSegments() {
		if seg.IsAudio() {
			audio = append(audio, seg)
		}
	}
	return audio
}
