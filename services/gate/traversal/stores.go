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
)

// =============================================================================
// Store Interfaces
// =============================================================================
//
// The engine verifies against live stores through these interfaces. Each
// registered source id may have at most one adapter per interface, bound
// in Stores. Adapters are long-lived and shared across queries; they must
// be safe for concurrent use. Production adapters live in this package
// (sqlite.go, influx.go, weaviate.go); tests use the in-memory fakes from
// fakes.go.

// RelationalStore reads table-shaped data for verification.
type RelationalStore interface {
	// PreviewRows returns up to limit rows of the named table, as ordered
	// column->value maps.
	PreviewRows(ctx context.Context, table string, limit int) ([]map[string]any, error)

	// FindEntity reports whether a named entity (device id, alert id,
	// part number) exists anywhere in the store, and where it was found.
	FindEntity(ctx context.Context, name string) (found bool, location string, err error)
}

// SearchHit is one result from a vector index verification search.
type SearchHit struct {
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score,omitempty"`
}

// VectorIndex performs existence/verification searches against a
// similarity index. The gate never ranks or embeds; it only confirms that
// claimed documents are actually present.
type VectorIndex interface {
	// Search returns up to n hits for the query in the named collection.
	Search(ctx context.Context, collection, query string, n int) ([]SearchHit, error)
}

// MetricReading is the result of one metric verification read.
type MetricReading struct {
	Found    bool    `json:"found"`
	Value    float64 `json:"value,omitempty"`
	Unit     string  `json:"unit,omitempty"`
	SourceID string  `json:"source"`
}

// MetricStore reads individual metric values for verification.
type MetricStore interface {
	// ReadMetric returns the latest value of a metric for an entity.
	// A missing entity or metric is Found=false with a nil error; errors
	// are reserved for the store being unreachable.
	ReadMetric(ctx context.Context, entity, metric string) (MetricReading, error)

	// FindEntity reports whether the entity has any recorded series.
	FindEntity(ctx context.Context, name string) (found bool, location string, err error)
}

// AlertSummary is the result of one alert-state verification read.
type AlertSummary struct {
	Count      int            `json:"count"`
	BySeverity map[string]int `json:"by_severity,omitempty"`
}

// AlertStore reads current alert state for verification.
type AlertStore interface {
	// AlertState summarizes open alerts, optionally scoped to one entity
	// (empty entity means all).
	AlertState(ctx context.Context, entity string) (AlertSummary, error)
}

// =============================================================================
// Store Bindings
// =============================================================================

// Stores binds registered source ids to live store adapters.
//
// # Description
//
// A source may appear in more than one map when its adapter implements
// several interfaces (the sqlite alerts adapter is both a RelationalStore
// and an AlertStore). Sources with no binding can still be resolved and
// cited; the engine just reports their verification actions as failed
// steps instead of erroring out.
//
// # Thread Safety
//
// Treat as immutable after startup, like the registry.
type Stores struct {
	Relational map[string]RelationalStore
	Vector     map[string]VectorIndex
	Metrics    map[string]MetricStore
	Alerts     map[string]AlertStore
}

// NewStores creates an empty binding set.
func NewStores() *Stores {
	return &Stores{
		Relational: make(map[string]RelationalStore),
		Vector:     make(map[string]VectorIndex),
		Metrics:    make(map[string]MetricStore),
		Alerts:     make(map[string]AlertStore),
	}
}
