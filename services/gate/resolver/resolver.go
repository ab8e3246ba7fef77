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
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/AleutianAI/AleutianGate/services/gate/registry"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// Fixed Messages
// =============================================================================

const (
	outOfScopeReason = "This assistant only answers operational questions " +
		"backed by registered data sources. That request is outside what it " +
		"can verify, so it will not attempt an answer."

	actionsUnavailableReason = "Action requests need the work order " +
		"scheduler, which is not configured in this deployment."

	demoOnlyReason = "Only demonstration data is available for that request. " +
		"The assistant does not present demo fixtures as operational answers."
)

// =============================================================================
// Resolver
// =============================================================================

// Resolver binds parsed queries to authoritative sources.
//
// # Description
//
// One Resolver is constructed at startup and shared; it holds no per-query
// state. Each Resolve call produces a fresh SourceResolution. The resolver
// only reads from the registry — it never mutates it.
//
// # Thread Safety
//
// Safe for concurrent use. The registry is sealed (read-only) and the
// optional entity checker must be concurrency-safe, which the traversal
// engine's implementation is.
type Resolver struct {
	reg     *registry.Registry
	checker EntityChecker
	logger  *slog.Logger
}

// NewResolver creates a Resolver over a sealed registry.
//
// # Inputs
//
//   - reg: the sealed source registry
//   - checker: optional entity existence checker; nil disables entity
//     verification (each skip is still logged)
//
// # Outputs
//
//   - *Resolver: ready for concurrent use
//   - error: non-nil if the registry is nil or unsealed; an unsealed
//     registry means completeness validation never ran, and the resolver
//     refuses to exist in that state
func NewResolver(reg *registry.Registry, checker EntityChecker) (*Resolver, error) {
	if reg == nil {
		return nil, errors.New("resolver requires a registry")
	}
	if !reg.Sealed() {
		return nil, errors.New("resolver requires a sealed registry; run completeness validation first")
	}
	return &Resolver{
		reg:     reg,
		checker: checker,
		logger:  slog.Default().With("component", "resolver"),
	}, nil
}

// Resolve maps one query to its backing sources, or fails closed.
//
// # Description
//
// Runs the resolution state machine in order, short-circuiting:
//
//  1. No-data intents (greeting, conversational) resolve immediately with
//     no source.
//  2. Out-of-scope intents are refused with a fixed reason.
//  3. Action-style intents resolve against the fixed scheduler source.
//  4. Query intents with no declared domains fall back to logged regex
//     inference over the raw text; an empty result refuses (raw text
//     present, nothing matched) or asks for clarification (no raw text).
//  5. Each domain resolves to its authoritative source, else the highest
//     priority source serving it, else is recorded unresolved. Lookups fan
//     out concurrently and merge in the caller's domain order.
//  6. Every demo/hybrid/stub source involved appends a disclosure warning.
//  7. The outcome is selected from what resolved.
//  8. Supplied entities are checked best-effort against the primary
//     source; failures are informational only.
//
// # Inputs
//
//   - req: the parsed query record
//
// # Outputs
//
//   - *SourceResolution: immutable; Refused/Unresolved outcomes always
//     carry a non-empty reason or clarification
func (rs *Resolver) Resolve(req Request) *SourceResolution {
	res := &SourceResolution{
		ID:            uuid.NewString(),
		DomainSources: make(map[string]string),
	}

	// Step 1: intents with no data need.
	if needsNoData(req.IntentType) {
		res.Outcome = OutcomeResolved
		res.log(DecisionStep{
			Stage:  StageIntent,
			Detail: fmt.Sprintf("intent %q needs no data source; nothing to verify", req.IntentType),
			OK:     true,
		})
		return res
	}

	// Step 2: explicitly out-of-scope intents. No domain inference is
	// attempted for these.
	if req.IntentType == IntentOutOfScope {
		res.Outcome = OutcomeRefused
		res.RefusalReason = outOfScopeReason
		res.log(DecisionStep{
			Stage:  StageIntent,
			Detail: "intent is out of scope; refusing without domain inference",
			OK:     false,
		})
		return res
	}

	// Step 3: action-style intents bind to the fixed scheduler source.
	if isActionStyle(req.IntentType) {
		return rs.resolveAction(req, res)
	}

	// Steps 4-8: query-style resolution. Unrecognized intent labels are
	// treated as queries so a new upstream label fails closed through the
	// domain machinery instead of bypassing it.
	return rs.resolveQuery(req, res)
}

// resolveAction binds an action intent to the scheduler source.
func (rs *Resolver) resolveAction(req Request, res *SourceResolution) *SourceResolution {
	src := rs.reg.Get(ActionsSourceID)
	if src == nil {
		res.Outcome = OutcomeRefused
		res.RefusalReason = actionsUnavailableReason
		res.log(DecisionStep{
			Stage:    StageActionSource,
			SourceID: ActionsSourceID,
			Detail:   "actions source is not registered",
			OK:       false,
		})
		return res
	}

	res.Outcome = OutcomeResolved
	res.PrimarySourceID = src.ID
	res.log(DecisionStep{
		Stage:    StageActionSource,
		SourceID: src.ID,
		Detail:   fmt.Sprintf("action intent %q bound to %s", req.IntentType, src.Name),
		OK:       true,
	})
	rs.appendDisclosures(res, "", src)
	return res
}

// resolveQuery runs domain binding for query-style intents.
func (rs *Resolver) resolveQuery(req Request, res *SourceResolution) *SourceResolution {
	domains := req.Domains

	// Step 4: fall back to recognition-pattern inference. Inference is an
	// explicit, logged step — never a hidden default.
	if len(domains) == 0 {
		domains = rs.reg.InferDomains(req.RawText)
		res.log(DecisionStep{
			Stage: StageDomainInference,
			Detail: fmt.Sprintf("no domains declared; recognition patterns inferred %d domain(s) from raw text: %s",
				len(domains), strings.Join(domains, ", ")),
			OK: len(domains) > 0,
		})

		if len(domains) == 0 {
			known := strings.Join(rs.reg.Domains(), ", ")
			if strings.TrimSpace(req.RawText) == "" {
				res.Outcome = OutcomeUnresolved
				res.ClarificationNeeded = fmt.Sprintf(
					"Which subject is this about? I can answer questions on: %s.", known)
			} else {
				res.Outcome = OutcomeRefused
				res.RefusalReason = fmt.Sprintf(
					"That question does not match any subject this assistant can verify. "+
						"It can answer questions on: %s.", known)
			}
			res.log(DecisionStep{
				Stage:  StageOutcome,
				Detail: "no domain could be bound; failing closed",
				OK:     false,
			})
			return res
		}
	}

	// Step 5: resolve every domain. Lookups are independent reads against
	// the sealed registry, so they fan out; merging follows the caller's
	// domain order so identical inputs produce identical logs.
	resolved := rs.resolveDomains(res, domains)

	// Step 7: outcome selection.
	rs.selectOutcome(res, domains, resolved)

	// Step 8: best-effort entity verification, informational only.
	if res.CanProceed() && res.PrimarySourceID != "" {
		rs.verifyEntities(res, req.Entities)
	}

	rs.logger.Debug("resolution complete",
		"resolution_id", res.ID,
		"outcome", string(res.Outcome),
		"primary", res.PrimarySourceID,
		"unresolved", res.DomainsUnresolved,
	)
	return res
}

// domainLookup is the result of one concurrent domain resolution.
type domainLookup struct {
	source        *registry.DataSource
	authoritative bool
}

// resolveDomains binds each domain to a source and returns the per-domain
// results in input order. Every attempt is logged, success or failure.
func (rs *Resolver) resolveDomains(res *SourceResolution, domains []string) []domainLookup {
	results := make([]domainLookup, len(domains))

	var g errgroup.Group
	for i, domain := range domains {
		g.Go(func() error {
			if src := rs.reg.AuthoritativeFor(domain); src != nil {
				results[i] = domainLookup{source: src, authoritative: true}
				return nil
			}
			if candidates := rs.reg.SourcesForDomain(domain); len(candidates) > 0 {
				results[i] = domainLookup{source: candidates[0]}
			}
			return nil
		})
	}
	// Lookups never return errors; Wait only orders the merge after all
	// writes have happened.
	_ = g.Wait()

	for i, domain := range domains {
		lookup := results[i]
		if lookup.source == nil {
			res.DomainsUnresolved = append(res.DomainsUnresolved, domain)
			res.log(DecisionStep{
				Stage:  StageDomainResolve,
				Domain: domain,
				Detail: "no authoritative or fallback source serves this domain",
				OK:     false,
			})
			continue
		}

		res.DomainSources[domain] = lookup.source.ID
		how := "highest-priority fallback"
		if lookup.authoritative {
			how = "authoritative source"
		}
		res.log(DecisionStep{
			Stage:    StageDomainResolve,
			Domain:   domain,
			SourceID: lookup.source.ID,
			Detail:   fmt.Sprintf("bound via %s", how),
			OK:       true,
		})

		// Step 6: unconditional disclosure for non-Real sources.
		rs.appendDisclosures(res, domain, lookup.source)
	}

	return results
}

// appendDisclosures records a demo/hybrid/stub warning for the source.
// Warnings are never suppressed, and duplicates are fine: one warning per
// domain-source pairing keeps the disclosure attributable.
func (rs *Resolver) appendDisclosures(res *SourceResolution, domain string, src *registry.DataSource) {
	if !src.Status.NeedsDisclosure() {
		return
	}
	where := "this request"
	if domain != "" {
		where = fmt.Sprintf("domain %q", domain)
	}
	warning := fmt.Sprintf("%s is served by %s (%s) with %s data; results may not reflect live production values",
		where, src.Name, src.ID, src.Status)
	res.DemoWarnings = append(res.DemoWarnings, warning)
	res.log(DecisionStep{
		Stage:    StageDemoDisclosure,
		Domain:   domain,
		SourceID: src.ID,
		Detail:   warning,
		OK:       true,
	})
}

// selectOutcome picks the outcome variant from the per-domain results.
func (rs *Resolver) selectOutcome(res *SourceResolution, domains []string, resolved []domainLookup) {
	// Distinct sources in caller domain order.
	var distinct []*registry.DataSource
	seen := make(map[string]bool)
	for _, lookup := range resolved {
		if lookup.source == nil || seen[lookup.source.ID] {
			continue
		}
		seen[lookup.source.ID] = true
		distinct = append(distinct, lookup.source)
	}

	switch {
	case len(distinct) == 0:
		res.Outcome = OutcomeRefused
		sort.Strings(res.DomainsUnresolved)
		res.RefusalReason = fmt.Sprintf(
			"No registered data source can answer for: %s. The assistant does not guess.",
			strings.Join(res.DomainsUnresolved, ", "))
		res.log(DecisionStep{
			Stage:  StageOutcome,
			Detail: "zero domains resolved; refusing",
			OK:     false,
		})

	case allDemo(distinct):
		res.Outcome = OutcomeDemoOnly
		res.PrimarySourceID = distinct[0].ID
		for _, src := range distinct[1:] {
			res.SecondarySourceIDs = append(res.SecondarySourceIDs, src.ID)
		}
		res.RefusalReason = demoOnlyReason
		res.log(DecisionStep{
			Stage:    StageOutcome,
			SourceID: res.PrimarySourceID,
			Detail:   "every resolved source holds demo fixtures only",
			OK:       false,
		})

	case len(distinct) == 1:
		res.Outcome = OutcomeResolved
		res.PrimarySourceID = distinct[0].ID
		res.log(DecisionStep{
			Stage:    StageOutcome,
			SourceID: res.PrimarySourceID,
			Detail:   fmt.Sprintf("%d domain(s) share one source; resolved", len(domains)),
			OK:       true,
		})

	default:
		res.Outcome = OutcomeMultiSource
		res.PrimarySourceID = distinct[0].ID
		for _, src := range distinct[1:] {
			res.SecondarySourceIDs = append(res.SecondarySourceIDs, src.ID)
		}
		res.log(DecisionStep{
			Stage:    StageOutcome,
			SourceID: res.PrimarySourceID,
			Detail: fmt.Sprintf("domains map to %d distinct sources; primary %s plus %d secondaries",
				len(distinct), res.PrimarySourceID, len(res.SecondarySourceIDs)),
			OK: true,
		})
	}
}

// allDemo reports whether every source holds pure demo fixtures.
func allDemo(sources []*registry.DataSource) bool {
	for _, src := range sources {
		if src.Status != registry.IntegrityDemo {
			return false
		}
	}
	return len(sources) > 0
}

// verifyEntities checks each supplied entity against the primary source.
// Failures never cause refusal; they are recorded for the caller and the
// audit trail.
func (rs *Resolver) verifyEntities(res *SourceResolution, entities map[string][]string) {
	if len(entities) == 0 {
		return
	}
	if rs.checker == nil {
		res.log(DecisionStep{
			Stage:    StageEntityCheck,
			SourceID: res.PrimarySourceID,
			Detail:   "entities supplied but no entity checker is configured; skipping verification",
			OK:       false,
		})
		return
	}

	// Stable iteration: entity kinds sorted, names in supplied order.
	kinds := make([]string, 0, len(entities))
	for kind := range entities {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	for _, kind := range kinds {
		for _, name := range entities[kind] {
			exists, foundIn := rs.checker.CheckEntity(res.PrimarySourceID, name)
			detail := fmt.Sprintf("%s %q not found in %s (informational)", kind, name, res.PrimarySourceID)
			if exists {
				detail = fmt.Sprintf("%s %q found in %s", kind, name, foundIn)
			}
			res.log(DecisionStep{
				Stage:    StageEntityCheck,
				SourceID: res.PrimarySourceID,
				Detail:   detail,
				OK:       exists,
			})
		}
	}
}
