// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package registry holds the static catalog of every data source the gate
// is allowed to answer from, plus the domain ownership map that names which
// source is ground truth for each domain.
//
// The registry is built once at process start from a declarative catalog,
// validated, and then treated as immutable. Both the resolver and the
// traversal engine read from it; nothing writes to it after startup, so
// concurrent reads need no locking.
package registry

import (
	"fmt"
	"regexp"
)

// =============================================================================
// Source Kinds
// =============================================================================

// SourceKind categorizes what a data source physically is.
type SourceKind string

const (
	// KindRelationalStore is a table-shaped store (SQL database,
	// time-series bucket exposed through measurement schemas).
	KindRelationalStore SourceKind = "relational-store"

	// KindVectorStore is a similarity-search index (Weaviate collection).
	KindVectorStore SourceKind = "vector-store"

	// KindInferenceService is a model endpoint. It generates text; it is
	// never a source of facts and can never own a domain.
	KindInferenceService SourceKind = "inference-service"

	// KindExternalAPI is a third-party or sibling service reached over HTTP.
	KindExternalAPI SourceKind = "external-api"

	// KindFileStore is a document or object store.
	KindFileStore SourceKind = "file-store"
)

// Valid reports whether k is one of the recognized source kinds.
func (k SourceKind) Valid() bool {
	switch k {
	case KindRelationalStore, KindVectorStore, KindInferenceService,
		KindExternalAPI, KindFileStore:
		return true
	}
	return false
}

// =============================================================================
// Integrity Status
// =============================================================================

// IntegrityStatus declares how trustworthy a source's data is.
//
// # Description
//
// Every source must carry an explicit status. The distinction between Real
// and the rest is safety-critical: Demo and Hybrid data must always be
// disclosed to the user, and Stub sources must never back an answer at all.
//
//   - IntegrityReal: live production data.
//   - IntegrityDemo: fixture data with no production meaning.
//   - IntegrityStub: a placeholder service that fakes responses. Answers
//     derived from a Stub are never safe.
//   - IntegrityHybrid: real schema, seeded or non-live data.
type IntegrityStatus string

const (
	IntegrityReal   IntegrityStatus = "real"
	IntegrityDemo   IntegrityStatus = "demo"
	IntegrityStub   IntegrityStatus = "stub"
	IntegrityHybrid IntegrityStatus = "hybrid"
)

// Valid reports whether s is one of the recognized statuses.
func (s IntegrityStatus) Valid() bool {
	switch s {
	case IntegrityReal, IntegrityDemo, IntegrityStub, IntegrityHybrid:
		return true
	}
	return false
}

// NeedsDisclosure reports whether data from a source with this status must
// carry a warning when it contributes to an answer.
func (s IntegrityStatus) NeedsDisclosure() bool {
	return s == IntegrityDemo || s == IntegrityStub || s == IntegrityHybrid
}

// =============================================================================
// Schemas
// =============================================================================

// ColumnSchema describes one column of a table or collection.
//
// SemanticType names what the column means ("temperature", "device_id"),
// Unit names the physical unit when one applies ("celsius", "psi").
type ColumnSchema struct {
	Name         string `yaml:"name" json:"name" validate:"required"`
	SemanticType string `yaml:"semantic_type" json:"semantic_type"`
	Unit         string `yaml:"unit,omitempty" json:"unit,omitempty"`
}

// TableSchema describes one table, measurement, or collection in a source.
type TableSchema struct {
	Name    string         `yaml:"name" json:"name" validate:"required"`
	Columns []ColumnSchema `yaml:"columns" json:"columns"`
}

// Column returns the named column schema, or nil if the table has no such
// column.
func (t *TableSchema) Column(name string) *ColumnSchema {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// =============================================================================
// Data Source
// =============================================================================

// DataSource describes one backing store or service the assistant may
// answer from.
//
// # Description
//
// A DataSource is a catalog entry, not a connection: it records identity,
// trust level, domain ownership, and schema shape. The traversal engine
// binds live store adapters to source ids separately, so the catalog can be
// validated without any backing store being reachable.
//
// # Fields
//
//   - ID: unique identifier, referenced by domain ownership and provenance
//   - Name: human-readable display name
//   - Kind: what the source physically is
//   - Status: integrity status (always explicit, never inferred)
//   - Domains: the domains this source can serve
//   - Schemas: ordered table/collection schemas
//   - AuthoritativeFor: query categories this source is ground truth for
//   - Priority: tie-break among candidates for a domain (higher wins)
//
// # Thread Safety
//
// DataSource values are immutable after registration. Do not mutate a
// registered source.
type DataSource struct {
	ID               string          `yaml:"id" json:"id" validate:"required"`
	Name             string          `yaml:"name" json:"name" validate:"required"`
	Kind             SourceKind      `yaml:"kind" json:"kind" validate:"required"`
	Status           IntegrityStatus `yaml:"status" json:"status" validate:"required"`
	Domains          []string        `yaml:"domains,omitempty" json:"domains,omitempty"`
	Schemas          []TableSchema   `yaml:"schemas,omitempty" json:"schemas,omitempty"`
	AuthoritativeFor []string        `yaml:"authoritative_for,omitempty" json:"authoritative_for,omitempty"`
	Priority         int             `yaml:"priority" json:"priority"`
}

// Schema returns the named table schema, or nil if the source has no such
// table.
func (s *DataSource) Schema(table string) *TableSchema {
	for i := range s.Schemas {
		if s.Schemas[i].Name == table {
			return &s.Schemas[i]
		}
	}
	return nil
}

// ServesDomain reports whether the source lists the given domain.
func (s *DataSource) ServesDomain(domain string) bool {
	for _, d := range s.Domains {
		if d == domain {
			return true
		}
	}
	return false
}

// NewInferenceService builds a DataSource for a model endpoint.
//
// # Description
//
// Inference services generate text; they can never be ground truth for any
// domain. This constructor is the only sanctioned way to register one: it
// structurally cannot carry domains or authoritative categories, and it
// pins priority to zero so an inference service can never win a domain
// tie-break. ValidateCompleteness additionally rejects any
// inference-service entry that arrives with domains attached (e.g. from a
// hand-edited catalog file).
//
// # Inputs
//
//   - id: unique source id
//   - name: display name
//   - status: integrity status of the endpoint itself
//
// # Outputs
//
//   - DataSource: an inference-service entry with no domain ownership
func NewInferenceService(id, name string, status IntegrityStatus) DataSource {
	return DataSource{
		ID:       id,
		Name:     name,
		Kind:     KindInferenceService,
		Status:   status,
		Priority: 0,
	}
}

// =============================================================================
// Domain Ownership
// =============================================================================

// DomainOwnership maps a domain name to its sources.
//
// # Fields
//
//   - Domain: the domain name ("equipment-telemetry", "alerts")
//   - PrimarySourceID: the single source designated as ground truth
//   - SecondarySourceIDs: additional sources that may supplement answers
//   - RecognitionPatterns: regexes used only as a last-resort inference aid
//     when a query declares no domains; matching is always logged as
//     inference, never treated as an explicit declaration
type DomainOwnership struct {
	Domain              string   `yaml:"domain" json:"domain" validate:"required"`
	PrimarySourceID     string   `yaml:"primary_source_id" json:"primary_source_id" validate:"required"`
	SecondarySourceIDs  []string `yaml:"secondary_source_ids,omitempty" json:"secondary_source_ids,omitempty"`
	RecognitionPatterns []string `yaml:"recognition_patterns,omitempty" json:"recognition_patterns,omitempty"`

	// compiled holds the compiled recognition patterns. Populated by
	// Registry.RegisterDomain; invalid patterns are rejected there.
	compiled []*regexp.Regexp
}

// Matches reports whether any recognition pattern matches the raw text.
//
// Patterns are matched case-insensitively. Returns false when the ownership
// has no patterns.
func (o *DomainOwnership) Matches(rawText string) bool {
	for _, re := range o.compiled {
		if re.MatchString(rawText) {
			return true
		}
	}
	return false
}

// compilePatterns compiles the recognition patterns, returning an error on
// the first invalid one.
func (o *DomainOwnership) compilePatterns() error {
	o.compiled = make([]*regexp.Regexp, 0, len(o.RecognitionPatterns))
	for _, p := range o.RecognitionPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return fmt.Errorf("domain %q: invalid recognition pattern %q: %w", o.Domain, p, err)
		}
		o.compiled = append(o.compiled, re)
	}
	return nil
}
