// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package provenance validates that every outgoing answer names the real
// sources it was derived from.
//
// The resolver decides what MAY back an answer; the traversal engine
// records what WAS read. This package closes the loop: it assembles the
// derivation record from both, and rejects any payload whose lineage is
// empty, unregistered, or tainted by a stub source.
package provenance

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/AleutianGate/services/gate/observability"
	"github.com/AleutianAI/AleutianGate/services/gate/registry"
	"github.com/AleutianAI/AleutianGate/services/gate/resolver"
	"github.com/AleutianAI/AleutianGate/services/gate/traversal"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrNoDerivation means the provenance record has an empty derived_from
	// list. An answer that cannot name any source did not come from data.
	ErrNoDerivation = errors.New("derived_from is empty")

	// ErrUnregisteredSource means the provenance names a source id the
	// registry has never heard of.
	ErrUnregisteredSource = errors.New("source is not registered")

	// ErrStubDerivation means a stub source contributed to the answer.
	// Stub data is never safe, regardless of what else contributed.
	ErrStubDerivation = errors.New("answer derives from a stub source")
)

// =============================================================================
// Response Provenance
// =============================================================================

// ResponseProvenance is the derivation record attached to every answer.
//
// # Fields
//
//   - ResolutionID: correlates the record with its resolution and audit
//     events
//   - Outcome: the resolution outcome the answer was produced under
//   - DerivedFrom: every source id that contributed, in first-contribution
//     order (resolved sources, then traversal-touched, then extras)
//   - SafeToAnswer: false when DerivedFrom is empty or any contributing
//     source is a stub
//   - Warnings: the resolution's demo/hybrid disclosures, carried through
//     so downstream rendering cannot drop them
type ResponseProvenance struct {
	ResolutionID string           `json:"resolution_id"`
	Outcome      resolver.Outcome `json:"outcome"`
	DerivedFrom  []string         `json:"derived_from"`
	SafeToAnswer bool             `json:"safe_to_answer"`
	Warnings     []string         `json:"warnings,omitempty"`
}

// BuildResponseProvenance assembles the derivation record for one answer.
//
// # Description
//
// DerivedFrom is the deduplicated union of the resolution's sources, the
// traversal context's touched set, and any extra ids the caller knows
// contributed (e.g. the fixed action source). Order is deterministic:
// resolution order, then first-touch order, then extras as given.
//
// SafeToAnswer requires a non-empty derivation in which no contributing
// source has stub status. Sources missing from the registry do not flip
// SafeToAnswer here — Validate rejects them outright.
//
// # Inputs
//
//   - reg: the sealed registry, for integrity lookups
//   - res: the query's resolution
//   - trail: the traversal context; nil means no traversal ran
//   - extra: additional contributing source ids
func BuildResponseProvenance(reg *registry.Registry, res *resolver.SourceResolution, trail *traversal.Context, extra ...string) ResponseProvenance {
	prov := ResponseProvenance{
		ResolutionID: res.ID,
		Outcome:      res.Outcome,
		Warnings:     append([]string(nil), res.DemoWarnings...),
	}

	seen := make(map[string]bool)
	add := func(ids []string) {
		for _, id := range ids {
			if id != "" && !seen[id] {
				seen[id] = true
				prov.DerivedFrom = append(prov.DerivedFrom, id)
			}
		}
	}
	add(res.ResolvedSourceIDs())
	if trail != nil {
		add(trail.TouchedSources())
	}
	add(extra)

	prov.SafeToAnswer = len(prov.DerivedFrom) > 0
	for _, id := range prov.DerivedFrom {
		if src := reg.Get(id); src != nil && src.Status == registry.IntegrityStub {
			prov.SafeToAnswer = false
			break
		}
	}
	return prov
}

// Validate rejects provenance records that must not leave the gate.
//
// # Outputs
//
//   - error: ErrNoDerivation for an empty derived_from list,
//     ErrUnregisteredSource for unknown ids, ErrStubDerivation when a stub
//     contributed. Nil means the record may ship.
func Validate(reg *registry.Registry, prov ResponseProvenance) error {
	err := validate(reg, prov)
	observability.RecordProvenanceCheck(err == nil)
	return err
}

func validate(reg *registry.Registry, prov ResponseProvenance) error {
	if len(prov.DerivedFrom) == 0 {
		return fmt.Errorf("provenance for resolution %s: %w", prov.ResolutionID, ErrNoDerivation)
	}
	for _, id := range prov.DerivedFrom {
		src := reg.Get(id)
		if src == nil {
			return fmt.Errorf("provenance names %q: %w", id, ErrUnregisteredSource)
		}
		if src.Status == registry.IntegrityStub {
			return fmt.Errorf("provenance names %q: %w", id, ErrStubDerivation)
		}
	}
	if !prov.SafeToAnswer {
		return fmt.Errorf("provenance for resolution %s is marked unsafe", prov.ResolutionID)
	}
	return nil
}

// =============================================================================
// Data Markers
// =============================================================================

// DataMarkers is the fixed-field trust annotation attached to each data
// payload an answer embeds. Fixed fields, not free text: a renderer cannot
// "forget" to mention integrity when it is a struct field.
type DataMarkers struct {
	SourceID        string                   `json:"source_id"`
	IntegrityStatus registry.IntegrityStatus `json:"integrity_status"`
	Authoritative   bool                     `json:"authoritative"`
	SafeToAnswer    bool                     `json:"safe_to_answer"`
}

// MarkersFor builds the markers for one contributing source.
//
// Authoritative is true only for a registered, non-stub source that is
// ground truth for at least one category. Unregistered ids produce markers
// that fail ValidateDataMarkers, never a panic.
func MarkersFor(reg *registry.Registry, sourceID string) DataMarkers {
	m := DataMarkers{SourceID: sourceID}
	src := reg.Get(sourceID)
	if src == nil {
		return m
	}
	m.IntegrityStatus = src.Status
	m.Authoritative = src.Status != registry.IntegrityStub && len(src.AuthoritativeFor) > 0
	m.SafeToAnswer = src.Status != registry.IntegrityStub
	return m
}

// ValidateDataMarkers rejects marker structs that misrepresent a source.
//
// # Outputs
//
//   - error: non-nil when the source is unregistered, the declared status
//     disagrees with the registry, or a stub source is marked
//     authoritative or safe
func ValidateDataMarkers(reg *registry.Registry, m DataMarkers) error {
	src := reg.Get(m.SourceID)
	if src == nil {
		return fmt.Errorf("markers name %q: %w", m.SourceID, ErrUnregisteredSource)
	}
	if m.IntegrityStatus != src.Status {
		return fmt.Errorf("markers for %s declare status %q but registry says %q",
			m.SourceID, m.IntegrityStatus, src.Status)
	}
	if src.Status == registry.IntegrityStub {
		if m.Authoritative {
			return fmt.Errorf("markers for %s: stub sources are never authoritative", m.SourceID)
		}
		if m.SafeToAnswer {
			return fmt.Errorf("markers for %s: %w", m.SourceID, ErrStubDerivation)
		}
	}
	return nil
}
