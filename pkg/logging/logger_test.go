// Copyright (C) 2025 Wildtrace Labs (dev@wildtrace.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestLevel_ToSlogLevel(t *testing.T) {
	if LevelDebug.toSlogLevel() != slog.LevelDebug {
		t.Error("Debug should map to slog.LevelDebug")
	}
	if Level(42).toSlogLevel() != slog.LevelInfo {
		t.Error("unknown levels should fall back to Info")
	}
}

func TestNew_FileLogging(t *testing.T) {
	dir := t.TempDir()

	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "test",
		Quiet:   true,
	})
	logger.Info("file entry", "session_id", "s1")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("log dir has %d files, want 1", len(entries))
	}
	if !strings.HasPrefix(entries[0].Name(), "test_") {
		t.Errorf("log file name = %q, want test_ prefix", entries[0].Name())
	}

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("file log should be JSON: %v", err)
	}
	if entry["msg"] != "file entry" {
		t.Errorf("msg = %v, want %q", entry["msg"], "file entry")
	}
	if entry["service"] != "test" {
		t.Errorf("service = %v, want %q", entry["service"], "test")
	}
	if entry["session_id"] != "s1" {
		t.Errorf("session_id = %v, want %q", entry["session_id"], "s1")
	}
}

func TestNew_LevelFilter(t *testing.T) {
	dir := t.TempDir()

	logger := New(Config{Level: LevelWarn, LogDir: dir, Service: "test", Quiet: true})
	logger.Debug("dropped")
	logger.Info("dropped too")
	logger.Warn("kept")
	logger.Close()

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("log dir has %d files, want 1", len(entries))
	}
	data, _ := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if strings.Contains(string(data), "dropped") {
		t.Error("messages below the level filter should be discarded")
	}
	if !strings.Contains(string(data), "kept") {
		t.Error("messages at the level filter should be written")
	}
}

func TestLogger_With(t *testing.T) {
	dir := t.TempDir()

	logger := New(Config{LogDir: dir, Service: "test", Quiet: true})
	child := logger.With("run_id", "r1")
	child.Info("child entry")
	logger.Close()

	entries, _ := os.ReadDir(dir)
	data, _ := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if !strings.Contains(string(data), `"run_id":"r1"`) {
		t.Errorf("child attributes missing from output: %s", data)
	}
}

func TestLogger_Close_Idempotent(t *testing.T) {
	logger := New(Config{LogDir: t.TempDir(), Service: "test", Quiet: true})
	if err := logger.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandPath("~/logs"); got != filepath.Join(home, "logs") {
		t.Errorf("expandPath(~/logs) = %q", got)
	}
	if got := expandPath("/var/log"); got != "/var/log" {
		t.Errorf("expandPath(/var/log) = %q, should be unchanged", got)
	}
}

func TestMultiHandler(t *testing.T) {
	var first, second bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewJSONHandler(&first, nil),
		slog.NewJSONHandler(&second, nil),
	}}

	logger := slog.New(h)
	logger.Info("fan out")

	if !strings.Contains(first.String(), "fan out") || !strings.Contains(second.String(), "fan out") {
		t.Error("record should reach every destination")
	}
	if !h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("Enabled should report true when any destination accepts")
	}
}
