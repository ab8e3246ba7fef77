// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianGate/pkg/extensions"
	"github.com/AleutianAI/AleutianGate/services/gate/observability"
)

// genericRefusal is the last-resort message when a non-proceeding
// resolution somehow carries neither a reason nor a clarification. Callers
// must never see an empty refusal.
const genericRefusal = "The assistant could not verify a data source for " +
	"that request and will not attempt an unverified answer."

// Gate is the verification gate wrapped around the resolver.
//
// # Description
//
// The gate is the single yes/no surface callers consult before answering.
// It never enforces demo warnings — those are surfaced, not blocked, here;
// blocking unsafe provenance is the validator's job downstream. What the
// gate does guarantee is that a "no" always comes with a human-readable
// message.
//
// # Thread Safety
//
// Safe for concurrent use; holds no per-query state.
type Gate struct {
	resolver *Resolver
	audit    extensions.AuditLogger
	logger   *slog.Logger
}

// NewGate creates a Gate over a resolver.
//
// # Inputs
//
//   - rs: the resolver (must not be nil)
//   - audit: audit sink for gate decisions; nil falls back to the no-op
//     logger so callers never need nil checks
//
// # Outputs
//
//   - *Gate: ready for concurrent use
//   - error: non-nil if rs is nil
func NewGate(rs *Resolver, audit extensions.AuditLogger) (*Gate, error) {
	if rs == nil {
		return nil, errors.New("gate requires a resolver")
	}
	if audit == nil {
		audit = &extensions.NopAuditLogger{}
	}
	return &Gate{
		resolver: rs,
		audit:    audit,
		logger:   slog.Default().With("component", "gate"),
	}, nil
}

// VerifyOrRefuse resolves the query and decides whether answering may
// proceed.
//
// # Description
//
// canProceed is true iff the resolution outcome is Resolved or
// MultiSource. When false, the message is the clarification if present,
// else the refusal reason, else a generic fallback — never empty. Every
// decision emits an audit event.
//
// # Inputs
//
//   - ctx: for the audit sink only; resolution itself is pure in-memory
//   - req: the parsed query record
//
// # Outputs
//
//   - bool: whether answering may proceed
//   - *SourceResolution: the full resolution, for provenance and display
//   - string: refusal/clarification message; empty iff canProceed
func (g *Gate) VerifyOrRefuse(ctx context.Context, req Request) (bool, *SourceResolution, string) {
	res := g.resolver.Resolve(req)
	observability.RecordResolution(string(res.Outcome), res.CanProceed(), len(res.DemoWarnings))

	if res.CanProceed() {
		g.logger.Info("gate permitted query",
			"resolution_id", res.ID,
			"outcome", string(res.Outcome),
			"primary", res.PrimarySourceID,
			"demo_warnings", len(res.DemoWarnings),
		)
		g.emitAudit(ctx, req, res, "permitted")
		return true, res, ""
	}

	message := res.ClarificationNeeded
	if message == "" {
		message = res.RefusalReason
	}
	if message == "" {
		message = genericRefusal
	}

	g.logger.Info("gate refused query",
		"resolution_id", res.ID,
		"outcome", string(res.Outcome),
		"message", message,
	)
	g.emitAudit(ctx, req, res, "refused")
	return false, res, message
}

// emitAudit records the gate decision. Sink errors are logged, never
// propagated: auditing must not change gate behavior.
func (g *Gate) emitAudit(ctx context.Context, req Request, res *SourceResolution, outcome string) {
	err := g.audit.Log(ctx, extensions.AuditEvent{
		EventType:    "gate.decision",
		Timestamp:    time.Now().UTC(),
		UserID:       "system",
		Action:       req.IntentType,
		ResourceType: "resolution",
		ResourceID:   res.ID,
		Outcome:      outcome,
		Metadata: map[string]any{
			"resolution_outcome": string(res.Outcome),
			"primary_source":     res.PrimarySourceID,
			"domains_unresolved": res.DomainsUnresolved,
			"demo_warnings":      len(res.DemoWarnings),
			"decision_steps":     len(res.Decisions),
		},
	})
	if err != nil {
		g.logger.Warn("audit sink rejected gate decision", "error", err)
	}
}
