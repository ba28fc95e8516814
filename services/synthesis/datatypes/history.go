// Copyright (C) 2025 Wildtrace Labs (dev@wildtrace.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// MaxHistoryEntries bounds how many prior records are considered for change
// detection. The external journal hands the list most-recent-first.
const MaxHistoryEntries = 5

// HistoryEntry is a condensed prior record for the same area, used by the
// temporal-delta stage to describe what changed since the last visit.
type HistoryEntry struct {
	// RecordID references the prior persisted record.
	RecordID string `json:"record_id" validate:"required"`

	// PlaceName is the prior record's location label.
	PlaceName string `json:"place_name"`

	// VisitedAt is when the prior observation was made.
	VisitedAt time.Time `json:"visited_at"`

	// Summary is the prior record's one-paragraph summary.
	Summary string `json:"summary"`

	// Tags are the prior record's classification tags.
	Tags []string `json:"tags,omitempty"`
}

// BoundHistory truncates a most-recent-first history list to the supported
// maximum. Older entries add noise without improving change detection.
func BoundHistory(entries []HistoryEntry) []HistoryEntry {
	if len(entries) <= MaxHistoryEntries {
		return entries
	}
	return entries[:MaxHistoryEntries]
}
