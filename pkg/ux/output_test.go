// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
)

// Helper to capture stdout
func captureStdout(f func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	f()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

// Helper to capture stderr
func captureStderr(f func()) string {
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	f()

	w.Close()
	os.Stderr = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func withMode(t *testing.T, m Mode) {
	t.Helper()
	orig := GetMode()
	t.Cleanup(func() { SetMode(orig) })
	SetMode(m)
}

// =============================================================================
// Icon.Render Tests
// =============================================================================

func TestIcon_Render(t *testing.T) {
	for _, icon := range []Icon{IconSuccess, IconWarning, IconError, IconPending} {
		if icon.Render() == "" {
			t.Errorf("expected non-empty result for %q", icon)
		}
	}
	// Icons without specific styling render as themselves
	for _, icon := range []Icon{IconArrow, IconBullet} {
		if icon.Render() != string(icon) {
			t.Errorf("expected %q, got %q", string(icon), icon.Render())
		}
	}
}

// =============================================================================
// Mode Tests
// =============================================================================

func TestParseMode(t *testing.T) {
	cases := []struct {
		input string
		want  Mode
	}{
		{"styled", ModeStyled},
		{"full", ModeStyled},
		{"minimal", ModeMinimal},
		{"m", ModeMinimal},
		{"machine", ModeMachine},
		{"plain", ModeMachine},
		{"QUIET", ModeMachine},
		{"garbage", ModeStyled},
		{"", ModeStyled},
	}
	for _, tc := range cases {
		if got := ParseMode(tc.input); got != tc.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestInitMode_EnvOverride(t *testing.T) {
	orig := GetMode()
	t.Cleanup(func() { SetMode(orig) })

	t.Setenv("GATECTL_OUTPUT", "machine")
	InitMode()
	if GetMode() != ModeMachine {
		t.Errorf("mode = %q, want machine", GetMode())
	}
}

// =============================================================================
// Print Helper Tests
// =============================================================================

func TestTitle_MachineModeSilent(t *testing.T) {
	withMode(t, ModeMachine)

	output := captureStdout(func() {
		Title("Source Catalog")
	})
	if output != "" {
		t.Errorf("expected no output in machine mode, got %q", output)
	}
}

func TestSuccess(t *testing.T) {
	t.Run("machine mode is greppable", func(t *testing.T) {
		withMode(t, ModeMachine)
		output := captureStdout(func() {
			Success("catalog is valid")
		})
		if output != "OK: catalog is valid\n" {
			t.Errorf("output = %q", output)
		}
	})

	t.Run("styled mode includes the text", func(t *testing.T) {
		withMode(t, ModeStyled)
		output := captureStdout(func() {
			Success("catalog is valid")
		})
		if !strings.Contains(output, "catalog is valid") {
			t.Errorf("output = %q", output)
		}
	})
}

func TestWarningAndError_MachineModeUseStderr(t *testing.T) {
	withMode(t, ModeMachine)

	errOut := captureStderr(func() {
		Warning("demo data in play")
		Error("catalog rejected")
	})
	if !strings.Contains(errOut, "WARN: demo data in play") {
		t.Errorf("stderr = %q", errOut)
	}
	if !strings.Contains(errOut, "ERROR: catalog rejected") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestBox_MachineModeFlattens(t *testing.T) {
	withMode(t, ModeMachine)

	output := captureStdout(func() {
		Box("Resolution", "resolved via equipment-telemetry-db")
	})
	if output != "Resolution: resolved via equipment-telemetry-db\n" {
		t.Errorf("output = %q", output)
	}
}

// =============================================================================
// Badge Tests
// =============================================================================

func TestIntegrityBadge(t *testing.T) {
	withMode(t, ModeMachine)

	cases := []string{"real", "demo", "stub", "hybrid", "unknown"}
	for _, status := range cases {
		badge := IntegrityBadge(status)
		if badge != "["+status+"]" {
			t.Errorf("machine-mode badge for %q = %q", status, badge)
		}
	}

	withMode(t, ModeStyled)
	for _, status := range cases {
		if !strings.Contains(IntegrityBadge(status), status) {
			t.Errorf("styled badge for %q lost the status text", status)
		}
	}
}

func TestOutcomeBadge(t *testing.T) {
	withMode(t, ModeMachine)

	for _, outcome := range []string{"resolved", "multi_source", "demo_only", "unresolved", "refused"} {
		if OutcomeBadge(outcome) != "["+outcome+"]" {
			t.Errorf("machine-mode badge for %q = %q", outcome, OutcomeBadge(outcome))
		}
	}
}

func TestStepLine(t *testing.T) {
	withMode(t, ModeMachine)

	line := StepLine(true, "domain_resolve", "bound via authoritative source")
	if line != "ok\tdomain_resolve\tbound via authoritative source" {
		t.Errorf("line = %q", line)
	}
	line = StepLine(false, "outcome", "refusing")
	if !strings.HasPrefix(line, "fail\t") {
		t.Errorf("line = %q", line)
	}
}
