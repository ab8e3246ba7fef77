// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package traversal executes and records explicit verification actions
// against backing stores before an answer is attempted.
//
// Every action — schema lookup, row preview, metric read, existence check —
// produces a Step appended to the query's Context. The accumulated steps
// are the proof that the assistant actually looked at the data it claims
// to have looked at; provenance validation downstream trusts nothing that
// is not in here.
package traversal

import (
	"time"
)

// =============================================================================
// Actions
// =============================================================================

// Verification action labels. One per engine method.
const (
	ActionListSources       = "list_sources"
	ActionDescribeSchema    = "describe_schema"
	ActionPreviewRows       = "preview_rows"
	ActionSearchIndex       = "search_index"
	ActionCheckEntityExists = "check_entity_exists"
	ActionReadMetric        = "read_metric"
	ActionReadAlertState    = "read_alert_state"
	ActionVerifyOrigin      = "verify_origin"
)

// =============================================================================
// Step
// =============================================================================

// Step records one executed verification action.
//
// # Fields
//
//   - Action: which verification action ran
//   - Args: the arguments it ran with
//   - Result: the result payload (shape depends on Action)
//   - SourceID: the source the action touched; empty for catalog-level
//     actions (list_sources), for verify_origin, which inspects the
//     trail rather than a store, and for failed steps that never reached
//     a backing store (the error text still names the source)
//   - Duration: wall time of the action
//   - Success: whether the action completed and found what it looked for
//   - Error: error text when the backing store failed; failures are data,
//     not exceptions, and never abort the remaining steps
type Step struct {
	Action   string         `json:"action"`
	Args     map[string]any `json:"args,omitempty"`
	Result   map[string]any `json:"result,omitempty"`
	SourceID string         `json:"source_id,omitempty"`
	Duration time.Duration  `json:"duration_ns"`
	Success  bool           `json:"success"`
	Error    string         `json:"error,omitempty"`
}

// =============================================================================
// Context
// =============================================================================

// Context accumulates the verification trail for one query.
//
// # Description
//
// A Context lives exactly as long as one query's verification phase and is
// then discarded — there is nothing to roll back because traversal is
// read-only. Steps are appended in the order the caller invokes actions;
// the engine never reorders them.
//
// # Thread Safety
//
// Not safe for concurrent use. One query, one goroutine, one Context. Run
// concurrent queries with separate engines and contexts.
type Context struct {
	steps        []Step
	touched      map[string]bool
	touchedOrder []string
	retrieved    map[string]any
}

// NewContext creates an empty traversal context.
func NewContext() *Context {
	return &Context{
		touched:   make(map[string]bool),
		retrieved: make(map[string]any),
	}
}

// Steps returns the recorded steps in execution order. The returned slice
// is a copy; the trail itself stays append-only.
func (c *Context) Steps() []Step {
	out := make([]Step, len(c.steps))
	copy(out, c.steps)
	return out
}

// StepCount returns the number of recorded steps.
func (c *Context) StepCount() int {
	return len(c.steps)
}

// TouchedSources returns the distinct source ids touched by data-reading
// steps, in first-touch order.
func (c *Context) TouchedSources() []string {
	out := make([]string, len(c.touchedOrder))
	copy(out, c.touchedOrder)
	return out
}

// WasTouched reports whether a data-reading step actually touched the
// source in this context. This is the predicate behind origin
// verification: a claim about an untouched source is unverified no matter
// how plausible it is.
func (c *Context) WasTouched(sourceID string) bool {
	return c.touched[sourceID]
}

// Retrieved returns the map of data actually fetched during traversal,
// keyed by "action:subject". Callers use it to display what the
// verification phase saw.
func (c *Context) Retrieved() map[string]any {
	out := make(map[string]any, len(c.retrieved))
	for k, v := range c.retrieved {
		out[k] = v
	}
	return out
}

// record appends a step and updates the touched set. Only steps that read
// from a source (non-empty SourceID) mark it touched; verify_origin
// inspects the trail and must not extend it retroactively.
func (c *Context) record(step Step) {
	c.steps = append(c.steps, step)
	if step.SourceID != "" && step.Action != ActionVerifyOrigin {
		if !c.touched[step.SourceID] {
			c.touched[step.SourceID] = true
			c.touchedOrder = append(c.touchedOrder, step.SourceID)
		}
	}
}

// stash stores a retrieved payload under "action:subject".
func (c *Context) stash(key string, value any) {
	c.retrieved[key] = value
}
