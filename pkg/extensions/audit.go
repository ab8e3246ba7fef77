// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package extensions defines the integration seams between the open source
// gate and enterprise deployments. The gate emits one audit event per
// verification decision and per traversal action; FOSS discards them by
// default, enterprise injects sinks that ship them to compliance systems.
package extensions

import (
	"context"
	"sync"
	"time"
)

// AuditEvent represents one security-relevant gate event.
//
// # Event Categories
//
// Events are categorized by type for filtering and alerting:
//   - Gate decisions: "gate.decision"
//   - Traversal actions: "traversal.step"
//   - Registry lifecycle: "registry.sealed", "registry.rejected"
//   - Provenance checks: "provenance.validated", "provenance.rejected"
//
// # Compliance Fields
//
// For answer-lineage audits, always populate:
//   - ResourceType/ResourceID: what was verified (resolution, step, payload)
//   - Outcome: "permitted", "refused", "success", "failure"
//   - Timestamp: audit trail integrity (always UTC)
//
// Example:
//
//	event := AuditEvent{
//	    EventType:    "gate.decision",
//	    Timestamp:    time.Now().UTC(),
//	    UserID:       "system",
//	    Action:       "query",
//	    ResourceType: "resolution",
//	    ResourceID:   resolutionID,
//	    Outcome:      "permitted",
//	    Metadata: map[string]any{
//	        "primary_source": "equipment-telemetry-db",
//	    },
//	}
type AuditEvent struct {
	// EventType categorizes the event ("gate.decision", "traversal.step").
	EventType string

	// Timestamp is when the event occurred (always UTC).
	// If zero, implementations should set it to time.Now().UTC().
	Timestamp time.Time

	// UserID identifies who triggered the event.
	// Use "system" for automated actions, "anonymous" if unknown.
	UserID string

	// Action is the operation attempted ("query", "schedule",
	// "describe_schema", "verify_origin").
	Action string

	// ResourceType is the category of artifact involved
	// ("resolution", "traversal_step", "payload").
	ResourceType string

	// ResourceID is the specific artifact instance (resolution id,
	// traversal step id).
	ResourceID string

	// Outcome is the result ("permitted", "refused", "success", "failure").
	Outcome string

	// Metadata holds event-specific detail (source ids touched, warning
	// counts, error text).
	Metadata map[string]any
}

// AuditFilter defines criteria for querying recorded events.
//
// All fields are optional; non-zero values combine with AND logic.
type AuditFilter struct {
	// EventTypes limits results to specific event types.
	EventTypes []string

	// ResourceID limits results to events about a specific artifact.
	ResourceID string

	// Outcome limits results to a specific outcome.
	Outcome string

	// StartTime is the earliest timestamp to include (inclusive).
	StartTime time.Time

	// EndTime is the latest timestamp to include (exclusive).
	EndTime time.Time

	// Limit caps the number of returned events; zero means
	// implementation-defined.
	Limit int
}

// AuditLogger records gate events for compliance and analysis.
//
// Implementations must be safe for concurrent use. Log should return
// quickly; sink failures are logged by callers but never change gate
// behavior — auditing observes decisions, it does not make them.
//
// # Open Source Behavior
//
// The default NopAuditLogger discards all events, which is appropriate for
// local single-user deployments.
//
// # Enterprise Implementation
//
// Enterprise versions ship events to SIEM systems or compliance databases.
// For decision-lineage events, sync persistence is recommended.
type AuditLogger interface {
	// Log records one event.
	//
	// Implementations should:
	//  1. Set Timestamp if zero
	//  2. Persist or transmit the event
	//  3. Return quickly (buffer internally if needed)
	Log(ctx context.Context, event AuditEvent) error

	// Query retrieves recorded events matching the filter, newest first.
	//
	// NopAuditLogger returns an empty slice (nothing is stored).
	Query(ctx context.Context, filter AuditFilter) ([]AuditEvent, error)

	// Flush ensures buffered events are persisted. Call before shutdown.
	Flush(ctx context.Context) error
}

// NopAuditLogger is the default audit logger for open source.
//
// It discards all events. Thread-safe: no mutable state.
type NopAuditLogger struct{}

// Log discards the event without recording it.
func (l *NopAuditLogger) Log(ctx context.Context, event AuditEvent) error {
	return nil
}

// Query returns an empty slice (no events are stored).
func (l *NopAuditLogger) Query(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	return []AuditEvent{}, nil
}

// Flush is a no-op since nothing is buffered.
func (l *NopAuditLogger) Flush(ctx context.Context) error {
	return nil
}

// Compile-time interface compliance check.
var _ AuditLogger = (*NopAuditLogger)(nil)

// MemoryAuditLogger records events in memory, newest first on Query.
//
// Intended for tests and for the gatectl dry-run surface, where the
// decision trail is printed after resolution. Not suitable for production
// retention: events are lost on process exit.
type MemoryAuditLogger struct {
	mu     sync.Mutex
	events []AuditEvent
}

// NewMemoryAuditLogger creates an empty in-memory audit logger.
func NewMemoryAuditLogger() *MemoryAuditLogger {
	return &MemoryAuditLogger{}
}

// Log appends the event, stamping a zero Timestamp with the current UTC
// time.
func (l *MemoryAuditLogger) Log(ctx context.Context, event AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

// Query returns matching events, newest first.
func (l *MemoryAuditLogger) Query(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []AuditEvent
	for i := len(l.events) - 1; i >= 0; i-- {
		ev := l.events[i]
		if !matchesFilter(ev, filter) {
			continue
		}
		out = append(out, ev)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// Flush is a no-op (events are already in memory).
func (l *MemoryAuditLogger) Flush(ctx context.Context) error {
	return nil
}

var _ AuditLogger = (*MemoryAuditLogger)(nil)

// matchesFilter applies AND logic across the filter's non-zero fields.
func matchesFilter(ev AuditEvent, filter AuditFilter) bool {
	if len(filter.EventTypes) > 0 {
		found := false
		for _, t := range filter.EventTypes {
			if ev.EventType == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.ResourceID != "" && ev.ResourceID != filter.ResourceID {
		return false
	}
	if filter.Outcome != "" && ev.Outcome != filter.Outcome {
		return false
	}
	if !filter.StartTime.IsZero() && ev.Timestamp.Before(filter.StartTime) {
		return false
	}
	if !filter.EndTime.IsZero() && !ev.Timestamp.Before(filter.EndTime) {
		return false
	}
	return true
}
