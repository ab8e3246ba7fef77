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
	"database/sql"
	"fmt"
	"regexp"

	_ "modernc.org/sqlite" // pure-Go sqlite driver, no cgo
)

// =============================================================================
// SQLite Adapter
// =============================================================================

// identPattern limits table and column names to plain identifiers. Names
// come from the validated catalog, but they are interpolated into SQL (the
// driver cannot parameterize identifiers), so they get checked again here.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// EntityColumn names one place a SQLiteStore looks when asked whether an
// entity exists.
type EntityColumn struct {
	Table  string
	Column string
}

// SQLiteStore verifies against a local SQLite database.
//
// # Description
//
// Backs the alerts source: it is both a RelationalStore (row previews,
// entity lookups) and an AlertStore (open-alert summaries). All queries are
// read-only; the gate never writes to a backing store.
//
// # Thread Safety
//
// Safe for concurrent use; database/sql pools connections internally.
type SQLiteStore struct {
	db *sql.DB

	// entityColumns are probed in order by FindEntity.
	entityColumns []EntityColumn

	// alertsTable holds open alerts for AlertState. Expected columns:
	// severity, status, and the entity column named in alertsEntityColumn.
	alertsTable       string
	alertsEntityCol   string
	alertsSeverityCol string
	alertsStatusCol   string
}

// SQLiteConfig configures a SQLiteStore. Zero-value fields fall back to
// the defaults the shipped catalog uses.
type SQLiteConfig struct {
	EntityColumns     []EntityColumn
	AlertsTable       string
	AlertsEntityCol   string
	AlertsSeverityCol string
	AlertsStatusCol   string
}

// OpenSQLiteStore opens the database at path and wraps it in a store.
//
// # Inputs
//
//   - path: filesystem path to the sqlite database file
//   - cfg: table/column layout; zero value uses the shipped defaults
//
// # Outputs
//
//   - *SQLiteStore: ready for concurrent use
//   - error: non-nil if the file cannot be opened or the layout names an
//     invalid identifier
func OpenSQLiteStore(path string, cfg SQLiteConfig) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	store, err := NewSQLiteStore(db, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStore wraps an existing database handle. The caller keeps
// ownership of the handle's lifecycle.
func NewSQLiteStore(db *sql.DB, cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.AlertsTable == "" {
		cfg.AlertsTable = "alerts"
	}
	if cfg.AlertsEntityCol == "" {
		cfg.AlertsEntityCol = "device_id"
	}
	if cfg.AlertsSeverityCol == "" {
		cfg.AlertsSeverityCol = "severity"
	}
	if cfg.AlertsStatusCol == "" {
		cfg.AlertsStatusCol = "status"
	}
	if len(cfg.EntityColumns) == 0 {
		cfg.EntityColumns = []EntityColumn{{Table: cfg.AlertsTable, Column: cfg.AlertsEntityCol}}
	}

	for _, name := range []string{cfg.AlertsTable, cfg.AlertsEntityCol, cfg.AlertsSeverityCol, cfg.AlertsStatusCol} {
		if !identPattern.MatchString(name) {
			return nil, fmt.Errorf("invalid sqlite identifier %q", name)
		}
	}
	for _, ec := range cfg.EntityColumns {
		if !identPattern.MatchString(ec.Table) || !identPattern.MatchString(ec.Column) {
			return nil, fmt.Errorf("invalid entity column %q.%q", ec.Table, ec.Column)
		}
	}

	return &SQLiteStore{
		db:                db,
		entityColumns:     cfg.EntityColumns,
		alertsTable:       cfg.AlertsTable,
		alertsEntityCol:   cfg.AlertsEntityCol,
		alertsSeverityCol: cfg.AlertsSeverityCol,
		alertsStatusCol:   cfg.AlertsStatusCol,
	}, nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// PreviewRows returns up to limit rows of the named table as ordered
// column->value maps.
func (s *SQLiteStore) PreviewRows(ctx context.Context, table string, limit int) ([]map[string]any, error) {
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %q LIMIT ?", table), limit)
	if err != nil {
		return nil, fmt.Errorf("preview of %s failed: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			// database/sql hands back []byte for TEXT under some drivers
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// FindEntity probes the configured entity columns in order and reports the
// first table the entity appears in.
func (s *SQLiteStore) FindEntity(ctx context.Context, name string) (bool, string, error) {
	for _, ec := range s.entityColumns {
		var one int
		query := fmt.Sprintf("SELECT 1 FROM %q WHERE %q = ? LIMIT 1", ec.Table, ec.Column)
		err := s.db.QueryRowContext(ctx, query, name).Scan(&one)
		switch {
		case err == sql.ErrNoRows:
			continue
		case err != nil:
			return false, "", fmt.Errorf("entity lookup in %s failed: %w", ec.Table, err)
		default:
			return true, ec.Table, nil
		}
	}
	return false, "", nil
}

// AlertState summarizes open alerts, optionally scoped to one entity.
func (s *SQLiteStore) AlertState(ctx context.Context, entity string) (AlertSummary, error) {
	query := fmt.Sprintf(
		"SELECT %q, COUNT(*) FROM %q WHERE %q = 'open'",
		s.alertsSeverityCol, s.alertsTable, s.alertsStatusCol,
	)
	args := []any{}
	if entity != "" {
		query += fmt.Sprintf(" AND %q = ?", s.alertsEntityCol)
		args = append(args, entity)
	}
	query += fmt.Sprintf(" GROUP BY %q", s.alertsSeverityCol)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return AlertSummary{}, fmt.Errorf("alert state query failed: %w", err)
	}
	defer rows.Close()

	summary := AlertSummary{BySeverity: make(map[string]int)}
	for rows.Next() {
		var severity string
		var count int
		if err := rows.Scan(&severity, &count); err != nil {
			return AlertSummary{}, err
		}
		summary.BySeverity[severity] = count
		summary.Count += count
	}
	return summary, rows.Err()
}

// Compile-time interface compliance checks.
var (
	_ RelationalStore = (*SQLiteStore)(nil)
	_ AlertStore      = (*SQLiteStore)(nil)
)
