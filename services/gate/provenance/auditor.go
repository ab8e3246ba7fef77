// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package provenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianGate/pkg/extensions"
	"github.com/AleutianAI/AleutianGate/services/gate/resolver"
	"github.com/AleutianAI/AleutianGate/services/gate/traversal"
)

// =============================================================================
// Grounding Auditor
// =============================================================================

// GroundingAuditor enforces the mandatory-traversal rule.
//
// # Description
//
// A query-style resolution that reaches the answer stage without a single
// recorded verification step means the answer would be generated from
// nothing but model memory. The auditor flags that condition; the caller
// then runs a minimal fallback traversal (ListSources plus DescribeSchema
// of the primary source) before answering, so the trail is never empty.
//
// Greeting, conversational, action, and out-of-scope intents are exempt:
// they put no data claims in front of the user. Every other label,
// including ones this build has never seen, is held to the rule.
//
// # Thread Safety
//
// Safe for concurrent use; holds no per-query state.
type GroundingAuditor struct {
	audit  extensions.AuditLogger
	logger *slog.Logger
}

// NewGroundingAuditor creates an auditor. A nil audit logger falls back to
// the no-op sink.
func NewGroundingAuditor(audit extensions.AuditLogger) *GroundingAuditor {
	if audit == nil {
		audit = &extensions.NopAuditLogger{}
	}
	return &GroundingAuditor{
		audit:  audit,
		logger: slog.Default().With("component", "grounding_auditor"),
	}
}

// NeedsFallbackTraversal reports whether the answer stage was reached with
// an empty verification trail and a fallback traversal must run first.
//
// # Inputs
//
//   - intentType: the query's intent category
//   - res: the resolution that permitted answering
//   - trail: the traversal context; nil counts as zero steps
//
// # Outputs
//
//   - bool: true when the mandatory-traversal rule fired
func (a *GroundingAuditor) NeedsFallbackTraversal(intentType string, res *resolver.SourceResolution, trail *traversal.Context) bool {
	// Exempt only the known non-query categories. An unrecognized label
	// resolves through the query machinery upstream, so it is held to the
	// same grounding standard here.
	if !resolver.CarriesDataClaims(intentType) {
		return false
	}
	if res == nil || !res.CanProceed() {
		return false
	}
	if trail != nil && trail.StepCount() > 0 {
		return false
	}

	a.logger.Warn("Query reached answer stage with empty verification trail",
		"resolution_id", res.ID,
		"primary_source", res.PrimarySourceID,
	)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.audit.Log(ctx, extensions.AuditEvent{
		EventType:    "provenance.rejected",
		Timestamp:    time.Now().UTC(),
		UserID:       "system",
		Action:       "grounding_check",
		ResourceType: "resolution",
		ResourceID:   res.ID,
		Outcome:      "failure",
		Metadata:     map[string]any{"reason": "empty verification trail on query intent"},
	}); err != nil {
		a.logger.Warn("audit sink rejected grounding event", "error", err)
	}
	return true
}

// RunFallback executes the minimal traversal that satisfies the rule:
// list the catalog, then describe the primary source's first schema when
// one exists. The engine records both steps in its context.
func (a *GroundingAuditor) RunFallback(eng *traversal.Engine, res *resolver.SourceResolution) {
	eng.ListSources()
	if res.PrimarySourceID == "" {
		return
	}
	if src := eng.RegisteredSource(res.PrimarySourceID); src != nil && len(src.Schemas) > 0 {
		eng.DescribeSchema(src.Schemas[0].Name)
	}
}
