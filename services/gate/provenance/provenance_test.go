// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package provenance

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianGate/pkg/extensions"
	"github.com/AleutianAI/AleutianGate/services/gate/registry"
	"github.com/AleutianAI/AleutianGate/services/gate/resolver"
	"github.com/AleutianAI/AleutianGate/services/gate/traversal"
)

// --- Test Fixtures ---

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()

	sources := []registry.DataSource{
		{
			ID: "equipment-telemetry-db", Name: "Equipment Telemetry",
			Kind: registry.KindRelationalStore, Status: registry.IntegrityHybrid,
			Domains:          []string{"equipment-telemetry"},
			AuthoritativeFor: []string{"metric queries"},
			Schemas: []registry.TableSchema{{
				Name:    "telemetry",
				Columns: []registry.ColumnSchema{{Name: "temperature", SemanticType: "temperature", Unit: "celsius"}},
			}},
			Priority: 10,
		},
		{
			ID: "alerts-db", Name: "Alerts",
			Kind: registry.KindRelationalStore, Status: registry.IntegrityReal,
			Domains: []string{"alerts"}, AuthoritativeFor: []string{"alert state"},
			Priority: 10,
		},
		{
			ID: "weather-stub", Name: "Weather Stub",
			Kind: registry.KindExternalAPI, Status: registry.IntegrityStub,
			Domains: []string{"weather"},
		},
	}
	for _, src := range sources {
		if err := reg.Register(src); err != nil {
			t.Fatalf("Register(%s) failed: %v", src.ID, err)
		}
	}
	domains := []registry.DomainOwnership{
		{Domain: "equipment-telemetry", PrimarySourceID: "equipment-telemetry-db"},
		{Domain: "alerts", PrimarySourceID: "alerts-db"},
		{Domain: "weather", PrimarySourceID: "weather-stub"},
	}
	for _, own := range domains {
		if err := reg.RegisterDomain(own); err != nil {
			t.Fatalf("RegisterDomain(%s) failed: %v", own.Domain, err)
		}
	}
	if err := reg.Seal(); err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	return reg
}

func touchedTrail(t *testing.T, reg *registry.Registry, sourceID string) *traversal.Context {
	t.Helper()
	stores := traversal.NewStores()
	stores.Metrics[sourceID] = &traversal.FakeMetricStore{
		Readings: map[string]map[string]float64{"pump-001": {"temperature": 70}},
	}
	eng, err := traversal.NewEngine(reg, stores, []string{sourceID}, nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	eng.ReadMetric(context.Background(), "pump-001", "temperature")
	return eng.Context()
}

// --- BuildResponseProvenance ---

func TestBuildResponseProvenance(t *testing.T) {
	reg := testRegistry(t)

	t.Run("union of resolved and touched, deduplicated", func(t *testing.T) {
		res := &resolver.SourceResolution{
			ID:                 "res-1",
			Outcome:            resolver.OutcomeMultiSource,
			PrimarySourceID:    "equipment-telemetry-db",
			SecondarySourceIDs: []string{"alerts-db"},
		}
		trail := touchedTrail(t, reg, "equipment-telemetry-db")

		prov := BuildResponseProvenance(reg, res, trail)
		want := []string{"equipment-telemetry-db", "alerts-db"}
		if len(prov.DerivedFrom) != len(want) {
			t.Fatalf("derived_from = %v, want %v", prov.DerivedFrom, want)
		}
		for i := range want {
			if prov.DerivedFrom[i] != want[i] {
				t.Errorf("derived_from[%d] = %q, want %q", i, prov.DerivedFrom[i], want[i])
			}
		}
		if !prov.SafeToAnswer {
			t.Error("real+hybrid derivation must be safe to answer")
		}
	})

	t.Run("empty derivation is unsafe", func(t *testing.T) {
		res := &resolver.SourceResolution{ID: "res-2", Outcome: resolver.OutcomeResolved}
		prov := BuildResponseProvenance(reg, res, nil)
		if prov.SafeToAnswer {
			t.Error("empty derived_from must never be safe")
		}
	})

	t.Run("stub contribution is unsafe", func(t *testing.T) {
		res := &resolver.SourceResolution{
			ID: "res-3", Outcome: resolver.OutcomeResolved,
			PrimarySourceID: "alerts-db",
		}
		prov := BuildResponseProvenance(reg, res, nil, "weather-stub")
		if prov.SafeToAnswer {
			t.Error("any stub contribution must make the answer unsafe")
		}
	})

	t.Run("demo warnings carried through", func(t *testing.T) {
		res := &resolver.SourceResolution{
			ID: "res-4", Outcome: resolver.OutcomeResolved,
			PrimarySourceID: "equipment-telemetry-db",
			DemoWarnings:    []string{"source contains seeded data"},
		}
		prov := BuildResponseProvenance(reg, res, nil)
		if len(prov.Warnings) != 1 {
			t.Errorf("expected warning carried through, got %v", prov.Warnings)
		}
	})
}

// --- Validate ---

func TestValidate(t *testing.T) {
	reg := testRegistry(t)

	t.Run("empty derived_from fails naming the field", func(t *testing.T) {
		err := Validate(reg, ResponseProvenance{ResolutionID: "res-1"})
		if err == nil {
			t.Fatal("expected error for empty derived_from")
		}
		if !errors.Is(err, ErrNoDerivation) {
			t.Errorf("expected ErrNoDerivation, got %v", err)
		}
		if !strings.Contains(err.Error(), "derived_from") {
			t.Errorf("error must mention derived_from, got %q", err)
		}
	})

	t.Run("unregistered source rejected", func(t *testing.T) {
		err := Validate(reg, ResponseProvenance{
			ResolutionID: "res-2",
			DerivedFrom:  []string{"ghost-source"},
			SafeToAnswer: true,
		})
		if !errors.Is(err, ErrUnregisteredSource) {
			t.Errorf("expected ErrUnregisteredSource, got %v", err)
		}
	})

	t.Run("stub derivation rejected even when marked safe", func(t *testing.T) {
		err := Validate(reg, ResponseProvenance{
			ResolutionID: "res-3",
			DerivedFrom:  []string{"alerts-db", "weather-stub"},
			SafeToAnswer: true,
		})
		if !errors.Is(err, ErrStubDerivation) {
			t.Errorf("expected ErrStubDerivation, got %v", err)
		}
	})

	t.Run("valid record passes", func(t *testing.T) {
		err := Validate(reg, ResponseProvenance{
			ResolutionID: "res-4",
			DerivedFrom:  []string{"alerts-db"},
			SafeToAnswer: true,
		})
		if err != nil {
			t.Errorf("expected valid, got %v", err)
		}
	})
}

// --- Data Markers ---

func TestDataMarkers(t *testing.T) {
	reg := testRegistry(t)

	t.Run("authoritative real source", func(t *testing.T) {
		m := MarkersFor(reg, "alerts-db")
		if !m.Authoritative || !m.SafeToAnswer {
			t.Errorf("unexpected markers %+v", m)
		}
		if err := ValidateDataMarkers(reg, m); err != nil {
			t.Errorf("expected valid markers, got %v", err)
		}
	})

	t.Run("stub source is never authoritative or safe", func(t *testing.T) {
		m := MarkersFor(reg, "weather-stub")
		if m.Authoritative {
			t.Error("stub source marked authoritative")
		}
		if m.SafeToAnswer {
			t.Error("stub source marked safe")
		}
	})

	t.Run("forged stub markers rejected", func(t *testing.T) {
		forged := DataMarkers{
			SourceID:        "weather-stub",
			IntegrityStatus: registry.IntegrityStub,
			Authoritative:   true,
		}
		if err := ValidateDataMarkers(reg, forged); err == nil {
			t.Error("stub marked authoritative must be rejected")
		}
	})

	t.Run("status mismatch rejected", func(t *testing.T) {
		forged := DataMarkers{
			SourceID:        "weather-stub",
			IntegrityStatus: registry.IntegrityReal,
			SafeToAnswer:    true,
		}
		if err := ValidateDataMarkers(reg, forged); err == nil {
			t.Error("status disagreeing with the registry must be rejected")
		}
	})

	t.Run("unregistered source rejected", func(t *testing.T) {
		if err := ValidateDataMarkers(reg, DataMarkers{SourceID: "ghost"}); err == nil {
			t.Error("unregistered source must be rejected")
		}
	})
}

// --- Grounding Auditor ---

func TestGroundingAuditor(t *testing.T) {
	reg := testRegistry(t)

	proceeding := func() *resolver.SourceResolution {
		return &resolver.SourceResolution{
			ID:              "res-1",
			Outcome:         resolver.OutcomeResolved,
			PrimarySourceID: "equipment-telemetry-db",
		}
	}

	t.Run("query with empty trail is flagged", func(t *testing.T) {
		audit := extensions.NewMemoryAuditLogger()
		auditor := NewGroundingAuditor(audit)

		if !auditor.NeedsFallbackTraversal(resolver.IntentQuery, proceeding(), nil) {
			t.Error("query intent with nil trail must be flagged")
		}
		events, _ := audit.Query(context.Background(), extensions.AuditFilter{
			EventTypes: []string{"provenance.rejected"},
		})
		if len(events) != 1 {
			t.Errorf("expected 1 audit event, got %d", len(events))
		}
	})

	t.Run("query with steps is not flagged", func(t *testing.T) {
		auditor := NewGroundingAuditor(nil)
		trail := touchedTrail(t, reg, "equipment-telemetry-db")
		if auditor.NeedsFallbackTraversal(resolver.IntentQuery, proceeding(), trail) {
			t.Error("non-empty trail must not be flagged")
		}
	})

	t.Run("conversational and action intents exempt", func(t *testing.T) {
		auditor := NewGroundingAuditor(nil)
		for _, intent := range []string{
			resolver.IntentGreeting,
			resolver.IntentConversational,
			resolver.IntentAction,
			resolver.IntentSchedule,
			resolver.IntentOutOfScope,
		} {
			if auditor.NeedsFallbackTraversal(intent, proceeding(), nil) {
				t.Errorf("%q intent must not require traversal", intent)
			}
		}
	})

	t.Run("unrecognized label is held to the rule", func(t *testing.T) {
		// Resolve routes unknown labels through the query machinery, so a
		// permitted resolution under such a label must not reach the
		// answer stage with an empty trail either.
		audit := extensions.NewMemoryAuditLogger()
		auditor := NewGroundingAuditor(audit)

		if !auditor.NeedsFallbackTraversal("data_query", proceeding(), nil) {
			t.Error("unknown query-style label with nil trail must be flagged")
		}
		if !auditor.NeedsFallbackTraversal("data_query", proceeding(), traversal.NewContext()) {
			t.Error("unknown query-style label with empty trail must be flagged")
		}
	})

	t.Run("non-proceeding resolutions exempt", func(t *testing.T) {
		auditor := NewGroundingAuditor(nil)
		refused := &resolver.SourceResolution{ID: "res-2", Outcome: resolver.OutcomeRefused}
		if auditor.NeedsFallbackTraversal(resolver.IntentQuery, refused, nil) {
			t.Error("refused resolution must not require traversal")
		}
	})

	t.Run("fallback leaves a non-empty trail", func(t *testing.T) {
		auditor := NewGroundingAuditor(nil)
		eng, err := traversal.NewEngine(reg, traversal.NewStores(), []string{"equipment-telemetry-db"}, nil)
		if err != nil {
			t.Fatalf("NewEngine failed: %v", err)
		}

		auditor.RunFallback(eng, proceeding())
		if eng.Context().StepCount() < 2 {
			t.Errorf("expected list_sources + describe_schema, got %d steps", eng.Context().StepCount())
		}
		if !eng.Context().WasTouched("equipment-telemetry-db") {
			t.Error("fallback describe_schema must touch the primary source")
		}
	})
}
