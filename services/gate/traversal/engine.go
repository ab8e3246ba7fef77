// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package traversal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianGate/pkg/extensions"
	"github.com/AleutianAI/AleutianGate/services/gate/observability"
	"github.com/AleutianAI/AleutianGate/services/gate/registry"
)

// =============================================================================
// Engine
// =============================================================================

// Engine executes verification actions for one query.
//
// # Description
//
// An Engine is request-scoped: construct one per query with the source ids
// that query resolved to, run whatever verification actions the answer
// needs, and read the accumulated trail from Context(). The engine only
// records what it is asked to do — enforcing that a query traversed at all
// is the grounding auditor's job, not the engine's.
//
// Store failures never abort a query. A failed action becomes a
// success=false step with error text, and the remaining actions still run.
//
// # Thread Safety
//
// Not safe for concurrent use; one query, one goroutine. The registry and
// store adapters it reads through are shared and concurrency-safe.
type Engine struct {
	reg      *registry.Registry
	stores   *Stores
	trail    *Context
	resolved []string // resolved source ids, in resolution order
	audit    extensions.AuditLogger
	logger   *slog.Logger
}

// NewEngine creates an engine for one query.
//
// # Inputs
//
//   - reg: the sealed source registry
//   - stores: live store bindings; nil means no store is reachable and
//     every store-touching action records a failed step
//   - resolvedSourceIDs: the query's resolved sources, searched first when
//     an action must locate a table, collection, or entity
//   - audit: audit sink; nil falls back to the no-op logger
//
// # Outputs
//
//   - *Engine: with a fresh, empty Context
//   - error: non-nil if reg is nil or unsealed
func NewEngine(reg *registry.Registry, stores *Stores, resolvedSourceIDs []string, audit extensions.AuditLogger) (*Engine, error) {
	if reg == nil {
		return nil, errors.New("traversal engine requires a registry")
	}
	if !reg.Sealed() {
		return nil, errors.New("traversal engine requires a sealed registry")
	}
	if stores == nil {
		stores = NewStores()
	}
	if audit == nil {
		audit = &extensions.NopAuditLogger{}
	}
	return &Engine{
		reg:      reg,
		stores:   stores,
		trail:    NewContext(),
		resolved: append([]string(nil), resolvedSourceIDs...),
		audit:    audit,
		logger:   slog.Default().With("component", "traversal"),
	}, nil
}

// Context returns the accumulated verification trail.
func (e *Engine) Context() *Context {
	return e.trail
}

// RegisteredSource returns the catalog entry for a source id, or nil.
// Callers use it to pick schemas for fallback traversal without reaching
// around the engine to the registry.
func (e *Engine) RegisteredSource(id string) *registry.DataSource {
	return e.reg.Get(id)
}

// =============================================================================
// Verification Actions
// =============================================================================

// ListSources records a catalog-level listing of every registered source.
//
// This is also the minimal fallback traversal when a query reached the
// answer stage without any verification step.
func (e *Engine) ListSources() Step {
	start := time.Now()
	ids := e.reg.SourceIDs()
	step := Step{
		Action:  ActionListSources,
		Result:  map[string]any{"source_ids": ids, "count": len(ids)},
		Success: true,
	}
	return e.finish(step, start)
}

// DescribeSchema records a schema lookup for the named table.
//
// The owning source is located among the query's resolved sources first,
// then the whole registry. The schema comes from the catalog, but the
// lookup is recorded against the owning source: it demonstrates the
// answer engaged with that source's shape.
func (e *Engine) DescribeSchema(table string) Step {
	start := time.Now()
	step := Step{
		Action: ActionDescribeSchema,
		Args:   map[string]any{"table": table},
	}

	src, schema := e.findTable(table)
	if schema == nil {
		step.Error = fmt.Sprintf("no registered source has a table or collection named %q", table)
		return e.finish(step, start)
	}

	columns := make([]map[string]string, 0, len(schema.Columns))
	for _, col := range schema.Columns {
		columns = append(columns, map[string]string{
			"name":          col.Name,
			"semantic_type": col.SemanticType,
			"unit":          col.Unit,
		})
	}
	step.SourceID = src.ID
	step.Success = true
	step.Result = map[string]any{"table": schema.Name, "columns": columns}
	e.trail.stash(ActionDescribeSchema+":"+table, columns)
	return e.finish(step, start)
}

// PreviewRows records a bounded row preview of the named table.
func (e *Engine) PreviewRows(ctx context.Context, table string, limit int) Step {
	start := time.Now()
	if limit <= 0 {
		limit = 5
	}
	step := Step{
		Action: ActionPreviewRows,
		Args:   map[string]any{"table": table, "limit": limit},
	}

	src, schema := e.findTable(table)
	if schema == nil {
		step.Error = fmt.Sprintf("no registered source has a table named %q", table)
		return e.finish(step, start)
	}
	store, ok := e.stores.Relational[src.ID]
	if !ok {
		// SourceID stays empty: no backend was contacted, so the source
		// must not enter the touched set a later verify_origin consults.
		step.Error = fmt.Sprintf("source %s has no relational store bound", src.ID)
		return e.finish(step, start)
	}

	rows, err := store.PreviewRows(ctx, table, limit)
	step.SourceID = src.ID
	if err != nil {
		step.Error = err.Error()
		return e.finish(step, start)
	}
	step.Success = true
	step.Result = map[string]any{"rows": rows, "count": len(rows)}
	e.trail.stash(ActionPreviewRows+":"+table, rows)
	return e.finish(step, start)
}

// SearchIndex records a verification search against a vector collection.
func (e *Engine) SearchIndex(ctx context.Context, collection, query string, n int) Step {
	start := time.Now()
	if n <= 0 {
		n = 3
	}
	step := Step{
		Action: ActionSearchIndex,
		Args:   map[string]any{"collection": collection, "query": query, "n": n},
	}

	src, _ := e.findTable(collection)
	if src == nil {
		step.Error = fmt.Sprintf("no registered source has a collection named %q", collection)
		return e.finish(step, start)
	}
	index, ok := e.stores.Vector[src.ID]
	if !ok {
		// SourceID stays empty: an unbound source was never contacted and
		// must not become origin-verifiable.
		step.Error = fmt.Sprintf("source %s has no vector index bound", src.ID)
		return e.finish(step, start)
	}

	hits, err := index.Search(ctx, collection, query, n)
	step.SourceID = src.ID
	if err != nil {
		step.Error = err.Error()
		return e.finish(step, start)
	}
	step.Success = true
	step.Result = map[string]any{"hits": hits, "count": len(hits)}
	e.trail.stash(ActionSearchIndex+":"+collection, hits)
	return e.finish(step, start)
}

// CheckEntityExists records a best-effort existence check for a named
// entity across the query's resolved sources.
//
// # Outputs
//
//   - Step: the recorded step; Args list every source probed
//   - bool: whether the entity was found
//   - string: "sourceID/location" where it was found, empty otherwise
func (e *Engine) CheckEntityExists(ctx context.Context, name string) (Step, bool, string) {
	start := time.Now()
	step := Step{
		Action: ActionCheckEntityExists,
		Args:   map[string]any{"name": name},
	}

	var probed []string
	for _, id := range e.probeOrder() {
		finder := e.entityFinder(id)
		if finder == nil {
			continue
		}
		probed = append(probed, id)
		found, location, err := finder(ctx, name)
		if err != nil {
			e.logger.Warn("entity probe failed", "source", id, "entity", name, "error", err)
			continue
		}
		if found {
			foundIn := id + "/" + location
			step.SourceID = id
			step.Success = true
			step.Args["probed"] = probed
			step.Result = map[string]any{"exists": true, "found_in": foundIn}
			return e.finish(step, start), true, foundIn
		}
	}

	step.Args["probed"] = probed
	step.Result = map[string]any{"exists": false}
	if len(probed) == 0 {
		step.Error = "no resolved source has an entity-capable store bound"
	}
	return e.finish(step, start), false, ""
}

// ReadMetric records a metric verification read for an entity.
func (e *Engine) ReadMetric(ctx context.Context, entity, metric string) (Step, MetricReading) {
	start := time.Now()
	step := Step{
		Action: ActionReadMetric,
		Args:   map[string]any{"entity": entity, "metric": metric},
	}

	id, store := e.metricStore()
	if store == nil {
		step.Error = "no resolved source has a metric store bound"
		return e.finish(step, start), MetricReading{}
	}

	reading, err := store.ReadMetric(ctx, entity, metric)
	step.SourceID = id
	if err != nil {
		step.Error = err.Error()
		return e.finish(step, start), MetricReading{}
	}
	reading.SourceID = id
	step.Success = reading.Found
	step.Result = map[string]any{
		"found": reading.Found,
		"value": reading.Value,
		"unit":  reading.Unit,
	}
	if !reading.Found {
		step.Error = fmt.Sprintf("no %s series recorded for %q", metric, entity)
	}
	e.trail.stash(ActionReadMetric+":"+entity+":"+metric, reading)
	return e.finish(step, start), reading
}

// ReadAlertState records an alert-state verification read, optionally
// scoped to one entity.
func (e *Engine) ReadAlertState(ctx context.Context, entity string) (Step, AlertSummary) {
	start := time.Now()
	step := Step{
		Action: ActionReadAlertState,
		Args:   map[string]any{"entity": entity},
	}

	id, store := e.alertStore()
	if store == nil {
		step.Error = "no resolved source has an alert store bound"
		return e.finish(step, start), AlertSummary{}
	}

	summary, err := store.AlertState(ctx, entity)
	step.SourceID = id
	if err != nil {
		step.Error = err.Error()
		return e.finish(step, start), AlertSummary{}
	}
	step.Success = true
	step.Result = map[string]any{"count": summary.Count, "by_severity": summary.BySeverity}
	e.trail.stash(ActionReadAlertState+":"+entity, summary)
	return e.finish(step, start), summary
}

// VerifyOrigin records the anti-hallucination check for a claimed source.
//
// # Description
//
// Verified is true only when a prior data-reading step in this context
// actually touched the claimed source. A claim can be factually correct
// and still unverified: provenance is about demonstrated derivation, not
// post-hoc plausibility. An empty context verifies nothing.
//
// The check itself never extends the touched set — verifying a claim must
// not make the next identical claim pass.
func (e *Engine) VerifyOrigin(claimedSourceID string) (Step, bool) {
	start := time.Now()
	verified := e.trail.WasTouched(claimedSourceID)
	step := Step{
		Action:   ActionVerifyOrigin,
		Args:     map[string]any{"claimed_source_id": claimedSourceID},
		SourceID: claimedSourceID,
		Success:  verified,
		Result:   map[string]any{"verified": verified},
	}
	if !verified {
		step.Error = fmt.Sprintf("source %q was not touched by any prior step in this context", claimedSourceID)
	}
	return e.finish(step, start), verified
}

// =============================================================================
// Internals
// =============================================================================

// finish stamps duration, records the step, and emits metrics and audit.
func (e *Engine) finish(step Step, start time.Time) Step {
	step.Duration = time.Since(start)
	e.trail.record(step)
	observability.RecordTraversalStep(step.Action, step.Success, step.Duration.Seconds())

	outcome := "failure"
	if step.Success {
		outcome = "success"
	}
	auditCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := e.audit.Log(auditCtx, extensions.AuditEvent{
		EventType:    "traversal.step",
		Timestamp:    time.Now().UTC(),
		UserID:       "system",
		Action:       step.Action,
		ResourceType: "traversal_step",
		ResourceID:   step.SourceID,
		Outcome:      outcome,
		Metadata:     map[string]any{"error": step.Error, "duration_ms": step.Duration.Milliseconds()},
	}); err != nil {
		e.logger.Warn("audit sink rejected traversal step", "action", step.Action, "error", err)
	}
	return step
}

// probeOrder returns the resolved sources first, then the remaining
// registered sources, without duplicates.
func (e *Engine) probeOrder() []string {
	seen := make(map[string]bool, len(e.resolved))
	out := make([]string, 0, len(e.resolved))
	for _, id := range e.resolved {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range e.reg.SourceIDs() {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// findTable locates the source owning a table/collection, resolved
// sources first.
func (e *Engine) findTable(table string) (*registry.DataSource, *registry.TableSchema) {
	for _, id := range e.probeOrder() {
		src := e.reg.Get(id)
		if src == nil {
			continue
		}
		if schema := src.Schema(table); schema != nil {
			return src, schema
		}
	}
	return nil, nil
}

// entityFinder returns a FindEntity func for the source, or nil when
// nothing entity-capable is bound to it.
func (e *Engine) entityFinder(sourceID string) func(context.Context, string) (bool, string, error) {
	if store, ok := e.stores.Relational[sourceID]; ok {
		return store.FindEntity
	}
	if store, ok := e.stores.Metrics[sourceID]; ok {
		return store.FindEntity
	}
	return nil
}

// metricStore returns the first resolved source with a metric binding.
func (e *Engine) metricStore() (string, MetricStore) {
	for _, id := range e.probeOrder() {
		if store, ok := e.stores.Metrics[id]; ok {
			return id, store
		}
	}
	return "", nil
}

// alertStore returns the first resolved source with an alert binding.
func (e *Engine) alertStore() (string, AlertStore) {
	for _, id := range e.probeOrder() {
		if store, ok := e.stores.Alerts[id]; ok {
			return id, store
		}
	}
	return "", nil
}

// =============================================================================
// Entity Probe (resolver collaborator)
// =============================================================================

// EntityProbe is the long-lived entity checker handed to the resolver.
//
// # Description
//
// The resolver's entity verification (informational, never blocking) needs
// an existence check before any per-query engine exists. EntityProbe wraps
// the shared store bindings with a short timeout per probe.
//
// # Thread Safety
//
// Safe for concurrent use; delegates to concurrency-safe adapters.
type EntityProbe struct {
	stores  *Stores
	timeout time.Duration
}

// NewEntityProbe creates a probe over the shared store bindings.
func NewEntityProbe(stores *Stores) *EntityProbe {
	if stores == nil {
		stores = NewStores()
	}
	return &EntityProbe{stores: stores, timeout: 2 * time.Second}
}

// CheckEntity reports whether the named entity exists in the given source.
// Unreachable stores report not-found; the resolver treats the result as
// informational either way.
func (p *EntityProbe) CheckEntity(sourceID, name string) (bool, string) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if store, ok := p.stores.Relational[sourceID]; ok {
		if found, location, err := store.FindEntity(ctx, name); err == nil && found {
			return true, sourceID + "/" + location
		}
	}
	if store, ok := p.stores.Metrics[sourceID]; ok {
		if found, location, err := store.FindEntity(ctx, name); err == nil && found {
			return true, sourceID + "/" + location
		}
	}
	return false, ""
}
