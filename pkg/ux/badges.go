// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import "fmt"

// IntegrityBadge renders a data source integrity status as a short badge.
//
// Statuses are passed as strings so this package stays independent of the
// registry types: "real", "demo", "stub", "hybrid". Unknown statuses render
// muted rather than hiding.
func IntegrityBadge(status string) string {
	label := fmt.Sprintf("[%s]", status)
	if GetMode() == ModeMachine {
		return label
	}
	switch status {
	case "real":
		return Styles.Success.Render(label)
	case "hybrid", "demo":
		return Styles.Warning.Render(label)
	case "stub":
		return Styles.Error.Render(label)
	default:
		return Styles.Muted.Render(label)
	}
}

// OutcomeBadge renders a resolution outcome as a short badge.
func OutcomeBadge(outcome string) string {
	label := fmt.Sprintf("[%s]", outcome)
	if GetMode() == ModeMachine {
		return label
	}
	switch outcome {
	case "resolved", "multi_source":
		return Styles.Success.Render(label)
	case "demo_only", "unresolved":
		return Styles.Warning.Render(label)
	case "refused":
		return Styles.Error.Render(label)
	default:
		return Styles.Muted.Render(label)
	}
}

// StepLine renders one decision log entry for display.
func StepLine(ok bool, stage, detail string) string {
	icon := IconError
	if ok {
		icon = IconSuccess
	}
	if GetMode() == ModeMachine {
		status := "fail"
		if ok {
			status = "ok"
		}
		return fmt.Sprintf("%s\t%s\t%s", status, stage, detail)
	}
	return fmt.Sprintf("%s %s %s", icon.Render(), Styles.Bold.Render(stage), detail)
}
