// Copyright (C) 2025 Wildtrace Labs (dev@wildtrace.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation for identifiers that cross
// trust boundaries.
//
// Session and segment identifiers arrive from the device app and end up in
// log lines, file names, and journal keys. Validating them here prevents
// path traversal and log injection from a compromised or buggy client.
package validation

import (
	"fmt"
	"regexp"
)

// identifierPattern matches safe external identifiers: must start with an
// alphanumeric, then alphanumerics, dots, underscores, or hyphens, at most
// 64 characters total.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._\-]{0,63}$`)

// ValidateSessionID validates a capture session identifier.
//
// Valid identifiers:
//   - 1-64 characters
//   - Letters, digits, dots, underscores, hyphens
//   - First character alphanumeric
//
// Returns an error naming the problem if the identifier is invalid.
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session id is empty")
	}
	if len(id) > 64 {
		return fmt.Errorf("session id exceeds 64 characters")
	}
	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("session id %q contains invalid characters", id)
	}
	return nil
}

// ValidateSegmentID validates a media segment identifier. Segment IDs share
// the session identifier format.
func ValidateSegmentID(id string) error {
	if id == "" {
		return fmt.Errorf("segment id is empty")
	}
	if len(id) > 64 {
		return fmt.Errorf("segment id exceeds 64 characters")
	}
	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("segment id %q contains invalid characters", id)
	}
	return nil
}
