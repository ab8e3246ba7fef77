// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrSealed is returned when registering into a sealed registry.
	ErrSealed = errors.New("registry is sealed; sources cannot be added after startup validation")

	// ErrDuplicateSource is returned when a source id is registered twice.
	ErrDuplicateSource = errors.New("source id already registered")

	// ErrDuplicateDomain is returned when a domain is registered twice.
	ErrDuplicateDomain = errors.New("domain already registered")

	// ErrIncomplete is returned by Seal when completeness validation fails.
	ErrIncomplete = errors.New("registry failed completeness validation")
)

// RequiredDomains is the minimal domain set every deployment must register.
// Startup fails if any of these is missing.
var RequiredDomains = []string{"equipment-telemetry", "alerts"}

// =============================================================================
// Registry
// =============================================================================

// Registry is the catalog of data sources and domain ownership.
//
// # Description
//
// Built once at process start, validated with ValidateCompleteness, then
// sealed. After sealing, the registry is read-only and safe to share across
// all concurrently executing queries without locking.
//
// # Thread Safety
//
// Not safe for concurrent mutation. Register everything from a single
// goroutine during startup, call Seal, then share freely.
type Registry struct {
	sources   map[string]*DataSource
	sourceIDs []string // registration order, for deterministic listing

	domains     map[string]*DomainOwnership
	domainNames []string // registration order

	sealed bool
}

// New creates an empty, unsealed Registry.
func New() *Registry {
	return &Registry{
		sources: make(map[string]*DataSource),
		domains: make(map[string]*DomainOwnership),
	}
}

// Register adds a data source to the registry.
//
// # Inputs
//
//   - src: the source to register; copied, so later mutation of the
//     caller's value has no effect
//
// # Outputs
//
//   - error: ErrSealed after Seal, ErrDuplicateSource on id reuse, or a
//     validation error for malformed entries
func (r *Registry) Register(src DataSource) error {
	if r.sealed {
		return ErrSealed
	}
	if src.ID == "" {
		return errors.New("source id must not be empty")
	}
	if _, exists := r.sources[src.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSource, src.ID)
	}
	if !src.Kind.Valid() {
		return fmt.Errorf("source %q: unknown kind %q", src.ID, src.Kind)
	}

	copied := src
	r.sources[src.ID] = &copied
	r.sourceIDs = append(r.sourceIDs, src.ID)
	return nil
}

// RegisterDomain adds a domain ownership entry.
//
// Recognition patterns are compiled here; an invalid pattern rejects the
// whole entry.
func (r *Registry) RegisterDomain(own DomainOwnership) error {
	if r.sealed {
		return ErrSealed
	}
	if own.Domain == "" {
		return errors.New("domain name must not be empty")
	}
	if _, exists := r.domains[own.Domain]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateDomain, own.Domain)
	}
	if err := own.compilePatterns(); err != nil {
		return err
	}

	copied := own
	r.domains[own.Domain] = &copied
	r.domainNames = append(r.domainNames, own.Domain)
	return nil
}

// Get returns the source with the given id, or nil if unregistered.
func (r *Registry) Get(id string) *DataSource {
	return r.sources[id]
}

// Has reports whether the id names a registered source.
func (r *Registry) Has(id string) bool {
	_, ok := r.sources[id]
	return ok
}

// IsDemo reports whether the source exists and carries a status that needs
// disclosure (Demo, Stub, or Hybrid). Unknown ids return false.
func (r *Registry) IsDemo(id string) bool {
	src, ok := r.sources[id]
	return ok && src.Status.NeedsDisclosure()
}

// SourceIDs returns all registered source ids in registration order.
func (r *Registry) SourceIDs() []string {
	out := make([]string, len(r.sourceIDs))
	copy(out, r.sourceIDs)
	return out
}

// Sources returns all registered sources in registration order.
func (r *Registry) Sources() []*DataSource {
	out := make([]*DataSource, 0, len(r.sourceIDs))
	for _, id := range r.sourceIDs {
		out = append(out, r.sources[id])
	}
	return out
}

// Domains returns all registered domain names in registration order.
func (r *Registry) Domains() []string {
	out := make([]string, len(r.domainNames))
	copy(out, r.domainNames)
	return out
}

// Ownership returns the ownership entry for a domain, or nil.
func (r *Registry) Ownership(domain string) *DomainOwnership {
	return r.domains[domain]
}

// SourcesForDomain returns every source serving the domain, ordered by
// priority descending. Ties break on source id so the order is stable
// across processes.
//
// Inference services never appear in the result regardless of what their
// catalog entry claims.
func (r *Registry) SourcesForDomain(domain string) []*DataSource {
	var out []*DataSource
	for _, id := range r.sourceIDs {
		src := r.sources[id]
		if src.Kind == KindInferenceService {
			continue
		}
		if src.ServesDomain(domain) {
			out = append(out, src)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// AuthoritativeFor returns the domain's designated primary source, or nil
// when the domain is unregistered or its primary id does not resolve.
func (r *Registry) AuthoritativeFor(domain string) *DataSource {
	own, ok := r.domains[domain]
	if !ok {
		return nil
	}
	return r.sources[own.PrimarySourceID]
}

// InferDomains matches raw query text against every domain's recognition
// patterns and returns the matching domains in registration order.
//
// This is a last-resort aid for queries that declared no domains. Callers
// must log the inference; the registry itself stays silent.
func (r *Registry) InferDomains(rawText string) []string {
	if rawText == "" {
		return nil
	}
	var matched []string
	for _, name := range r.domainNames {
		if r.domains[name].Matches(rawText) {
			matched = append(matched, name)
		}
	}
	return matched
}

// =============================================================================
// Completeness Validation
// =============================================================================

// Violation describes one completeness failure found at startup.
type Violation struct {
	SourceID string `json:"source_id,omitempty"`
	Domain   string `json:"domain,omitempty"`
	Message  string `json:"message"`
}

func (v Violation) String() string {
	switch {
	case v.SourceID != "":
		return fmt.Sprintf("source %s: %s", v.SourceID, v.Message)
	case v.Domain != "":
		return fmt.Sprintf("domain %s: %s", v.Domain, v.Message)
	default:
		return v.Message
	}
}

// ValidateCompleteness checks the registry against the startup invariants.
//
// # Description
//
// This is the hard startup gate. It fails when:
//   - zero sources are registered
//   - any domain's primary source id is unregistered
//   - any source lacks an explicit integrity status
//   - any inference-service source declares domains or authoritative
//     categories
//   - any Stub-status source declares authoritative categories
//   - any required domain (equipment-telemetry, alerts) is absent
//
// # Outputs
//
//   - bool: true when the registry is complete
//   - []Violation: every violation found (never partial; all are reported)
func (r *Registry) ValidateCompleteness() (bool, []Violation) {
	var violations []Violation

	if len(r.sources) == 0 {
		violations = append(violations, Violation{Message: "no data sources registered"})
	}

	for _, id := range r.sourceIDs {
		src := r.sources[id]
		if !src.Status.Valid() {
			violations = append(violations, Violation{
				SourceID: id,
				Message:  fmt.Sprintf("integrity status %q is not one of real/demo/stub/hybrid", src.Status),
			})
		}
		if src.Kind == KindInferenceService {
			if len(src.Domains) > 0 {
				violations = append(violations, Violation{
					SourceID: id,
					Message:  "inference-service sources must not declare domains",
				})
			}
			if len(src.AuthoritativeFor) > 0 {
				violations = append(violations, Violation{
					SourceID: id,
					Message:  "inference-service sources must not be authoritative for any category",
				})
			}
		}
		if src.Status == IntegrityStub && len(src.AuthoritativeFor) > 0 {
			violations = append(violations, Violation{
				SourceID: id,
				Message:  "stub sources must not be authoritative for any category",
			})
		}
	}

	for _, name := range r.domainNames {
		own := r.domains[name]
		if !r.Has(own.PrimarySourceID) {
			violations = append(violations, Violation{
				Domain:  name,
				Message: fmt.Sprintf("primary source %q is not registered", own.PrimarySourceID),
			})
		}
		for _, sec := range own.SecondarySourceIDs {
			if !r.Has(sec) {
				violations = append(violations, Violation{
					Domain:  name,
					Message: fmt.Sprintf("secondary source %q is not registered", sec),
				})
			}
		}
	}

	for _, required := range RequiredDomains {
		if _, ok := r.domains[required]; !ok {
			violations = append(violations, Violation{
				Domain:  required,
				Message: "required domain is not registered",
			})
		}
	}

	return len(violations) == 0, violations
}

// Seal validates the registry and freezes it.
//
// # Description
//
// Seal is the only way to make a registry usable by the resolver and gate
// constructors: both refuse unsealed registries, so a process that skips
// validation structurally cannot serve queries. On failure every violation
// is logged and the registry stays unsealed.
//
// # Outputs
//
//   - error: ErrIncomplete (wrapped with the first violation) when
//     validation fails
func (r *Registry) Seal() error {
	ok, violations := r.ValidateCompleteness()
	if !ok {
		for _, v := range violations {
			slog.Error("Registry completeness violation", "violation", v.String())
		}
		return fmt.Errorf("%w: %s (and %d more)", ErrIncomplete, violations[0].String(), len(violations)-1)
	}
	r.sealed = true
	return nil
}

// Sealed reports whether the registry passed validation and is frozen.
func (r *Registry) Sealed() bool {
	return r.sealed
}
