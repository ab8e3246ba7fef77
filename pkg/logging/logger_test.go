// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// waitForEntries polls the exporter until n entries arrive. Export runs
// on a goroutine per log call, so tests must wait rather than assert
// immediately.
func waitForEntries(t *testing.T, exp *BufferedExporter, n int) []LogEntry {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if entries := exp.Entries(); len(entries) >= n {
			return entries
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d exported entries, have %d", n, len(exp.Entries()))
	return nil
}

// readLogLines reads the single log file created under dir and returns
// its name and non-empty lines.
func readLogLines(t *testing.T, dir string) (string, []string) {
	t.Helper()
	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 log file, found %d", len(files))
	}
	data, err := os.ReadFile(filepath.Join(dir, files[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return files[0].Name(), lines
}

// =============================================================================
// Level Tests
// =============================================================================

func TestLevel_String(t *testing.T) {
	cases := map[Level]string{
		LevelDebug: "DEBUG",
		LevelInfo:  "INFO",
		LevelWarn:  "WARN",
		LevelError: "ERROR",
		Level(99):  "UNKNOWN",
	}
	for level, want := range cases {
		if got := level.String(); got != want {
			t.Errorf("Level(%d).String() = %q, want %q", level, got, want)
		}
	}
}

// =============================================================================
// Construction Tests
// =============================================================================

func TestDefault(t *testing.T) {
	logger := Default()
	defer logger.Close()

	if logger.config.Service != "gate" {
		t.Errorf("default service = %q, want %q", logger.config.Service, "gate")
	}
	if logger.config.Level != LevelInfo {
		t.Errorf("default level = %v, want LevelInfo", logger.config.Level)
	}
	if logger.file != nil {
		t.Error("default logger must not open a log file")
	}
}

func TestNew_ZeroConfig(t *testing.T) {
	logger := New(Config{})
	defer logger.Close()

	if logger.slog == nil {
		t.Fatal("zero config must still produce a usable logger")
	}
	// Must not panic on any level.
	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")
}

// =============================================================================
// File Logging Tests
// =============================================================================

func TestFileLogging(t *testing.T) {
	t.Run("writes json lines named by service and date", func(t *testing.T) {
		dir := t.TempDir()
		logger := New(Config{
			LogDir:  dir,
			Service: "gatectl",
			Quiet:   true,
		})
		logger.Info("catalog sealed", "sources", 7)
		if err := logger.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}

		name, lines := readLogLines(t, dir)
		wantName := "gatectl_" + time.Now().Format("2006-01-02") + ".log"
		if name != wantName {
			t.Errorf("log file named %q, want %q", name, wantName)
		}
		if len(lines) != 1 {
			t.Fatalf("expected 1 log line, got %d", len(lines))
		}

		var entry map[string]any
		if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
			t.Fatalf("file log line is not JSON: %v", err)
		}
		if entry["msg"] != "catalog sealed" {
			t.Errorf("msg = %v", entry["msg"])
		}
		if entry["service"] != "gatectl" {
			t.Errorf("service attr = %v", entry["service"])
		}
		if entry["sources"] != float64(7) {
			t.Errorf("sources attr = %v", entry["sources"])
		}
	})

	t.Run("empty service falls back to gate", func(t *testing.T) {
		dir := t.TempDir()
		logger := New(Config{LogDir: dir, Quiet: true})
		logger.Info("started")
		logger.Close()

		name, _ := readLogLines(t, dir)
		if !strings.HasPrefix(name, "gate_") {
			t.Errorf("log file named %q, want gate_ prefix", name)
		}
	})

	t.Run("level filter applies to file output", func(t *testing.T) {
		dir := t.TempDir()
		logger := New(Config{
			Level:   LevelWarn,
			LogDir:  dir,
			Service: "gate-service",
			Quiet:   true,
		})
		logger.Info("filtered out")
		logger.Warn("kept")
		logger.Close()

		_, lines := readLogLines(t, dir)
		if len(lines) != 1 {
			t.Fatalf("expected 1 line above the level floor, got %d", len(lines))
		}
		if !strings.Contains(lines[0], "kept") {
			t.Errorf("surviving line = %q", lines[0])
		}
	})

	t.Run("appends across logger instances", func(t *testing.T) {
		dir := t.TempDir()
		first := New(Config{LogDir: dir, Service: "gate", Quiet: true})
		first.Info("first run")
		first.Close()

		second := New(Config{LogDir: dir, Service: "gate", Quiet: true})
		second.Info("second run")
		second.Close()

		_, lines := readLogLines(t, dir)
		if len(lines) != 2 {
			t.Errorf("expected appended log, got %d lines", len(lines))
		}
	})
}

func TestWith(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{LogDir: dir, Service: "gate-service", Quiet: true})

	child := logger.With("component", "registry")
	child.Info("catalog loaded")
	logger.Close()

	_, lines := readLogLines(t, dir)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if entry["component"] != "registry" {
		t.Errorf("child attr missing: %v", entry)
	}
	if entry["service"] != "gate-service" {
		t.Errorf("parent attr lost: %v", entry)
	}
}

// =============================================================================
// Export Tests
// =============================================================================

func TestExporter(t *testing.T) {
	t.Run("entries reach the exporter", func(t *testing.T) {
		exp := NewBufferedExporter()
		logger := New(Config{Service: "gate-service", Quiet: true, Exporter: exp})
		defer logger.Close()

		logger.Info("gate permitted query", "resolution_id", "res-1", "outcome", "resolved")

		entries := waitForEntries(t, exp, 1)
		entry := entries[0]
		if entry.Message != "gate permitted query" {
			t.Errorf("message = %q", entry.Message)
		}
		if entry.Level != LevelInfo {
			t.Errorf("level = %v", entry.Level)
		}
		if entry.Service != "gate-service" {
			t.Errorf("service = %q", entry.Service)
		}
		if entry.Attrs["resolution_id"] != "res-1" || entry.Attrs["outcome"] != "resolved" {
			t.Errorf("attrs = %v", entry.Attrs)
		}
	})

	t.Run("level filter applies to export", func(t *testing.T) {
		exp := NewBufferedExporter()
		logger := New(Config{Level: LevelWarn, Quiet: true, Exporter: exp})
		defer logger.Close()

		logger.Info("below the floor")
		logger.Error("above the floor")

		entries := waitForEntries(t, exp, 1)
		for _, entry := range entries {
			if entry.Level < LevelWarn {
				t.Errorf("entry below level floor exported: %+v", entry)
			}
		}
	})
}

func TestNopExporter(t *testing.T) {
	exp := &NopExporter{}
	ctx := context.Background()

	if err := exp.Export(ctx, LogEntry{Message: "dropped"}); err != nil {
		t.Errorf("Export returned error: %v", err)
	}
	if err := exp.Flush(ctx); err != nil {
		t.Errorf("Flush returned error: %v", err)
	}
	if err := exp.Close(); err != nil {
		t.Errorf("Close returned error: %v", err)
	}
}

func TestWriterExporter(t *testing.T) {
	var buf bytes.Buffer
	exp := NewWriterExporter(&buf)

	err := exp.Export(context.Background(), LogEntry{
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Level:     LevelWarn,
		Message:   "catalog file changed on disk",
		Attrs:     map[string]any{"path": "source_catalog.yaml"},
	})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"WARN", "catalog file changed on disk", "source_catalog.yaml"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

// =============================================================================
// Helper Tests
// =============================================================================

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	if got := expandPath("~/logs"); got != filepath.Join(home, "logs") {
		t.Errorf("expandPath(~/logs) = %q", got)
	}
	if got := expandPath("/var/log/gate"); got != "/var/log/gate" {
		t.Errorf("absolute path modified: %q", got)
	}
	if got := expandPath(""); got != "" {
		t.Errorf("empty path modified: %q", got)
	}
}

func TestArgsToMap(t *testing.T) {
	t.Run("pairs", func(t *testing.T) {
		m := argsToMap([]any{"outcome", "resolved", "steps", 4})
		if m["outcome"] != "resolved" || m["steps"] != 4 {
			t.Errorf("map = %v", m)
		}
	})

	t.Run("dangling key ignored", func(t *testing.T) {
		m := argsToMap([]any{"outcome", "resolved", "dangling"})
		if len(m) != 1 {
			t.Errorf("map = %v", m)
		}
	})

	t.Run("non-string key skipped", func(t *testing.T) {
		m := argsToMap([]any{42, "value", "outcome", "refused"})
		if len(m) != 1 || m["outcome"] != "refused" {
			t.Errorf("map = %v", m)
		}
	})
}
