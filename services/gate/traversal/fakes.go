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
	"strings"
)

// =============================================================================
// In-Memory Fakes
// =============================================================================
//
// Deterministic stand-ins for the production adapters. Used by package
// tests and by the gatectl dry-run command, which resolves and traverses
// without any live backend. Each fake carries an Err field to simulate an
// unreachable store.

// FakeRelationalStore serves rows from in-memory tables.
type FakeRelationalStore struct {
	// Tables maps table name -> rows.
	Tables map[string][]map[string]any

	// Entities maps entity name -> table it is found in.
	Entities map[string]string

	// Err, when non-nil, is returned by every call.
	Err error
}

func (f *FakeRelationalStore) PreviewRows(ctx context.Context, table string, limit int) ([]map[string]any, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	rows := f.Tables[table]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]map[string]any, len(rows))
	copy(out, rows)
	return out, nil
}

func (f *FakeRelationalStore) FindEntity(ctx context.Context, name string) (bool, string, error) {
	if f.Err != nil {
		return false, "", f.Err
	}
	table, ok := f.Entities[name]
	return ok, table, nil
}

// FakeVectorIndex serves canned documents, matched by substring.
type FakeVectorIndex struct {
	// Docs maps collection name -> documents.
	Docs map[string][]SearchHit

	Err error
}

func (f *FakeVectorIndex) Search(ctx context.Context, collection, query string, n int) ([]SearchHit, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	var hits []SearchHit
	for _, doc := range f.Docs[collection] {
		if strings.Contains(strings.ToLower(doc.Title+" "+doc.Snippet), strings.ToLower(query)) {
			hits = append(hits, doc)
			if len(hits) >= n {
				break
			}
		}
	}
	return hits, nil
}

// FakeMetricStore serves latest-value readings from a nested map.
type FakeMetricStore struct {
	// Readings maps entity -> metric -> value.
	Readings map[string]map[string]float64

	// Units maps metric -> display unit.
	Units map[string]string

	Err error
}

func (f *FakeMetricStore) ReadMetric(ctx context.Context, entity, metric string) (MetricReading, error) {
	if f.Err != nil {
		return MetricReading{}, f.Err
	}
	reading := MetricReading{Unit: f.Units[metric]}
	if metrics, ok := f.Readings[entity]; ok {
		if value, ok := metrics[metric]; ok {
			reading.Found = true
			reading.Value = value
		}
	}
	return reading, nil
}

func (f *FakeMetricStore) FindEntity(ctx context.Context, name string) (bool, string, error) {
	if f.Err != nil {
		return false, "", f.Err
	}
	_, ok := f.Readings[name]
	return ok, "telemetry", nil
}

// FakeAlertStore serves canned alert summaries keyed by entity; the empty
// key holds the unscoped summary.
type FakeAlertStore struct {
	Summaries map[string]AlertSummary

	Err error
}

func (f *FakeAlertStore) AlertState(ctx context.Context, entity string) (AlertSummary, error) {
	if f.Err != nil {
		return AlertSummary{}, f.Err
	}
	return f.Summaries[entity], nil
}

// Compile-time interface compliance checks.
var (
	_ RelationalStore = (*FakeRelationalStore)(nil)
	_ VectorIndex     = (*FakeVectorIndex)(nil)
	_ MetricStore     = (*FakeMetricStore)(nil)
	_ AlertStore      = (*FakeAlertStore)(nil)
)
