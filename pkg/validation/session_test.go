package validation

import (
	"strings"
	"testing"
)

func TestValidateSessionID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"simple", "session-1", false},
		{"uuid", "b3f1c2d4-9e8f-4a7b-a1c2-d3e4f5a6b7c8", false},
		{"dotted", "hike.2025.06.14", false},
		{"single char", "s", false},
		{"empty", "", true},
		{"leading dot", ".hidden", true},
		{"path traversal", "../etc/passwd", true},
		{"slash", "a/b", true},
		{"newline", "abc\ndef", true},
		{"too long", strings.Repeat("a", 65), true},
		{"max length", strings.Repeat("a", 64), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSessionID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSessionID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestValidateSegmentID(t *testing.T) {
	if err := ValidateSegmentID("seg-1"); err != nil {
		t.Errorf("ValidateSegmentID(seg-1) error = %v", err)
	}
	if err := ValidateSegmentID("seg 1"); err == nil {
		t.Error("spaces should be rejected")
	}
	if err := ValidateSegmentID(""); err == nil {
		t.Error("empty segment id should be rejected")
	}
}
