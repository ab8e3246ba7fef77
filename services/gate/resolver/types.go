// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolver maps a parsed query (intent, domains, entities) to the
// authoritative data sources that may back its answer, or fails closed.
//
// Resolution is a small, strict state machine: every branch it takes is
// appended to a decision log, every refusal carries a human-readable
// reason, and no query ever falls through to a silent default source.
package resolver

// =============================================================================
// Intent Categories
// =============================================================================

// Intent category strings as produced by the upstream intent classifier.
// The resolver does not classify; it only consumes these labels.
const (
	IntentQuery          = "query"
	IntentAction         = "action"
	IntentSchedule       = "schedule"
	IntentGreeting       = "greeting"
	IntentConversational = "conversational"
	IntentOutOfScope     = "out_of_scope"
)

// ActionsSourceID is the single fixed source that action-style intents
// (anything mutating external state) resolve against.
const ActionsSourceID = "actions-scheduler"

// needsNoData reports whether the intent category never touches a data
// source (pure conversation).
func needsNoData(intentType string) bool {
	return intentType == IntentGreeting || intentType == IntentConversational
}

// isActionStyle reports whether the intent mutates external state.
func isActionStyle(intentType string) bool {
	return intentType == IntentAction || intentType == IntentSchedule
}

// CarriesDataClaims reports whether an intent category can put data
// claims in front of the user, meaning its answers must be backed by a
// verification trail. Only the known non-query categories are exempt;
// unrecognized labels count as data-bearing, mirroring how Resolve routes
// them through the query machinery so a new upstream label fails closed.
func CarriesDataClaims(intentType string) bool {
	if needsNoData(intentType) || isActionStyle(intentType) {
		return false
	}
	return intentType != IntentOutOfScope
}

// =============================================================================
// Request
// =============================================================================

// Request is the inbound record consumed from intent parsing and entity
// extraction.
//
// # Fields
//
//   - IntentType: intent category label (see the Intent constants)
//   - Domains: ordered list of explicitly declared domain tags
//   - Entities: entity kind -> extracted entity names (e.g. "devices" ->
//     ["pump-001"])
//   - RawText: the original query text, used only as a fallback for domain
//     inference when Domains is empty
type Request struct {
	IntentType string              `json:"intent_type"`
	Domains    []string            `json:"domains,omitempty"`
	Entities   map[string][]string `json:"entities,omitempty"`
	RawText    string              `json:"raw_text,omitempty"`
}

// =============================================================================
// Outcome
// =============================================================================

// Outcome is the tagged result variant of one resolution.
type Outcome string

const (
	// OutcomeResolved means a single source backs the answer (or the
	// intent needed no data at all).
	OutcomeResolved Outcome = "resolved"

	// OutcomeMultiSource means multiple domains resolved to distinct
	// sources; a primary plus ordered secondaries back the answer.
	OutcomeMultiSource Outcome = "multi_source"

	// OutcomeDemoOnly means resolution succeeded but every backing source
	// holds pure demo fixtures. The gate does not proceed on demo-only
	// data.
	OutcomeDemoOnly Outcome = "demo_only"

	// OutcomeUnresolved means the query was too ambiguous to bind to any
	// domain; a clarification prompt is attached.
	OutcomeUnresolved Outcome = "unresolved"

	// OutcomeRefused means the query is deliberately not answered; a
	// refusal reason is attached.
	OutcomeRefused Outcome = "refused"
)

// =============================================================================
// Decision Log
// =============================================================================

// Decision stage labels. Every resolution step writes exactly one entry.
const (
	StageIntent          = "intent"
	StageActionSource    = "action_source"
	StageDomainInference = "domain_inference"
	StageDomainResolve   = "domain_resolve"
	StageDemoDisclosure  = "demo_disclosure"
	StageOutcome         = "outcome"
	StageEntityCheck     = "entity_check"
)

// DecisionStep is one entry in a resolution's append-only decision log.
//
// Steps carry no timestamps: identical inputs must produce byte-identical
// logs, which is what makes resolution auditable and testable.
type DecisionStep struct {
	Stage    string `json:"stage"`
	Domain   string `json:"domain,omitempty"`
	SourceID string `json:"source_id,omitempty"`
	Detail   string `json:"detail"`
	OK       bool   `json:"ok"`
}

// =============================================================================
// Source Resolution
// =============================================================================

// SourceResolution is the immutable result of resolving one query.
//
// # Description
//
// Created per query, never persisted beyond the request. Exactly one of
// RefusalReason / ClarificationNeeded is set for non-proceeding outcomes;
// both are empty for Resolved and MultiSource.
//
// # Fields
//
//   - ID: unique id for correlating logs and audit events
//   - Outcome: the tagged result variant
//   - PrimarySourceID: the source backing the answer (empty for no-data
//     intents and failed resolutions)
//   - SecondarySourceIDs: ordered additional sources (MultiSource only)
//   - DomainSources: domain -> resolved source id
//   - DomainsUnresolved: domains that failed to resolve
//   - DemoWarnings: one human-readable warning per demo/hybrid/stub source
//     involved; never suppressed
//   - RefusalReason: why the query is refused (Refused/DemoOnly)
//   - ClarificationNeeded: follow-up question for the user (Unresolved)
//   - Decisions: the append-only decision log
type SourceResolution struct {
	ID                  string            `json:"id"`
	Outcome             Outcome           `json:"outcome"`
	PrimarySourceID     string            `json:"primary_source_id,omitempty"`
	SecondarySourceIDs  []string          `json:"secondary_source_ids,omitempty"`
	DomainSources       map[string]string `json:"domain_sources,omitempty"`
	DomainsUnresolved   []string          `json:"domains_unresolved,omitempty"`
	DemoWarnings        []string          `json:"demo_warnings,omitempty"`
	RefusalReason       string            `json:"refusal_reason,omitempty"`
	ClarificationNeeded string            `json:"clarification_needed,omitempty"`
	Decisions           []DecisionStep    `json:"decisions"`
}

// CanProceed reports whether this resolution permits answering.
func (r *SourceResolution) CanProceed() bool {
	return r.Outcome == OutcomeResolved || r.Outcome == OutcomeMultiSource
}

// ResolvedSourceIDs returns the primary source followed by the ordered
// secondaries. Empty for no-data intents and failed resolutions.
func (r *SourceResolution) ResolvedSourceIDs() []string {
	var out []string
	if r.PrimarySourceID != "" {
		out = append(out, r.PrimarySourceID)
	}
	out = append(out, r.SecondarySourceIDs...)
	return out
}

// log appends one decision step. Internal: the resolution is immutable
// once returned to the caller.
func (r *SourceResolution) log(step DecisionStep) {
	r.Decisions = append(r.Decisions, step)
}

// =============================================================================
// Collaborator Interfaces
// =============================================================================

// EntityChecker performs a best-effort existence check for a named entity
// against a source. The traversal engine implements this; the resolver
// only consumes it, and treats failures as informational.
type EntityChecker interface {
	// CheckEntity reports whether the named entity exists in the given
	// source, and which table/collection it was found in.
	CheckEntity(sourceID, name string) (exists bool, foundIn string)
}
