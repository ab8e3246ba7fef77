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
	"strings"
	"testing"
)

// --- Fixtures ---

func minimalSources() []DataSource {
	return []DataSource{
		{
			ID: "equipment-telemetry-db", Name: "Telemetry", Kind: KindRelationalStore,
			Status: IntegrityHybrid, Domains: []string{"equipment-telemetry"},
			AuthoritativeFor: []string{"metric_query"}, Priority: 100,
		},
		{
			ID: "alerts-db", Name: "Alerts", Kind: KindRelationalStore,
			Status: IntegrityReal, Domains: []string{"alerts"}, Priority: 100,
		},
	}
}

func minimalDomains() []DomainOwnership {
	return []DomainOwnership{
		{Domain: "equipment-telemetry", PrimarySourceID: "equipment-telemetry-db",
			RecognitionPatterns: []string{`\b(pump|temperature)\b`}},
		{Domain: "alerts", PrimarySourceID: "alerts-db",
			RecognitionPatterns: []string{`\balerts?\b`}},
	}
}

func sealedRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := New()
	for _, src := range minimalSources() {
		if err := reg.Register(src); err != nil {
			t.Fatalf("Register(%s) failed: %v", src.ID, err)
		}
	}
	for _, own := range minimalDomains() {
		if err := reg.RegisterDomain(own); err != nil {
			t.Fatalf("RegisterDomain(%s) failed: %v", own.Domain, err)
		}
	}
	if err := reg.Seal(); err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	return reg
}

// --- Registration ---

func TestRegister(t *testing.T) {
	t.Run("duplicate source id rejected", func(t *testing.T) {
		reg := New()
		src := minimalSources()[0]
		if err := reg.Register(src); err != nil {
			t.Fatalf("first Register failed: %v", err)
		}
		if err := reg.Register(src); !errors.Is(err, ErrDuplicateSource) {
			t.Errorf("expected ErrDuplicateSource, got %v", err)
		}
	})

	t.Run("duplicate domain rejected", func(t *testing.T) {
		reg := New()
		own := minimalDomains()[0]
		if err := reg.RegisterDomain(own); err != nil {
			t.Fatalf("first RegisterDomain failed: %v", err)
		}
		if err := reg.RegisterDomain(own); !errors.Is(err, ErrDuplicateDomain) {
			t.Errorf("expected ErrDuplicateDomain, got %v", err)
		}
	})

	t.Run("sealed registry rejects writes", func(t *testing.T) {
		reg := sealedRegistry(t)
		err := reg.Register(DataSource{ID: "late", Name: "Late", Kind: KindFileStore, Status: IntegrityReal})
		if !errors.Is(err, ErrSealed) {
			t.Errorf("expected ErrSealed on Register, got %v", err)
		}
		err = reg.RegisterDomain(DomainOwnership{Domain: "late", PrimarySourceID: "alerts-db"})
		if !errors.Is(err, ErrSealed) {
			t.Errorf("expected ErrSealed on RegisterDomain, got %v", err)
		}
	})

	t.Run("invalid recognition pattern rejected", func(t *testing.T) {
		reg := New()
		err := reg.RegisterDomain(DomainOwnership{
			Domain:              "broken",
			PrimarySourceID:     "alerts-db",
			RecognitionPatterns: []string{`([unclosed`},
		})
		if err == nil {
			t.Error("expected error for invalid regex")
		}
	})
}

// --- Lookups ---

func TestSourcesForDomain(t *testing.T) {
	reg := New()
	sources := []DataSource{
		{ID: "low", Name: "Low", Kind: KindRelationalStore, Status: IntegrityReal,
			Domains: []string{"shared"}, Priority: 10},
		{ID: "high", Name: "High", Kind: KindRelationalStore, Status: IntegrityReal,
			Domains: []string{"shared"}, Priority: 90},
		{ID: "also-high", Name: "Also High", Kind: KindRelationalStore, Status: IntegrityReal,
			Domains: []string{"shared"}, Priority: 90},
		NewInferenceService("model", "Model", IntegrityReal),
	}
	for _, src := range sources {
		if err := reg.Register(src); err != nil {
			t.Fatalf("Register(%s) failed: %v", src.ID, err)
		}
	}

	got := reg.SourcesForDomain("shared")
	want := []string{"also-high", "high", "low"} // priority desc, id tie-break
	if len(got) != len(want) {
		t.Fatalf("expected %d sources, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Errorf("candidates[%d] = %q, want %q", i, got[i].ID, want[i])
		}
	}
}

func TestAuthoritativeFor(t *testing.T) {
	reg := sealedRegistry(t)

	if src := reg.AuthoritativeFor("equipment-telemetry"); src == nil || src.ID != "equipment-telemetry-db" {
		t.Errorf("expected designated primary, got %v", src)
	}
	if src := reg.AuthoritativeFor("unknown-domain"); src != nil {
		t.Errorf("unknown domain must have no authoritative source, got %s", src.ID)
	}
}

func TestInferDomains(t *testing.T) {
	reg := sealedRegistry(t)

	cases := []struct {
		name    string
		rawText string
		want    []string
	}{
		{"single match", "what is the pump temperature", []string{"equipment-telemetry"}},
		{"case insensitive", "ANY OPEN ALERTS?", []string{"alerts"}},
		{"multi match", "alerts about pump-001", []string{"equipment-telemetry", "alerts"}},
		{"no match", "what is the capital of france", nil},
		{"empty text", "", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := reg.InferDomains(tc.rawText)
			if len(got) != len(tc.want) {
				t.Fatalf("InferDomains(%q) = %v, want %v", tc.rawText, got, tc.want)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Errorf("InferDomains(%q)[%d] = %q, want %q", tc.rawText, i, got[i], tc.want[i])
				}
			}
		})
	}
}

// --- Inference Service Invariant ---

func TestNewInferenceService(t *testing.T) {
	src := NewInferenceService("assistant-llm", "Assistant", IntegrityReal)

	if src.Kind != KindInferenceService {
		t.Errorf("kind = %q", src.Kind)
	}
	if len(src.Domains) != 0 || len(src.AuthoritativeFor) != 0 {
		t.Error("inference services must not carry domains or authoritative categories")
	}
	if src.Priority != 0 {
		t.Errorf("priority must be pinned to 0, got %d", src.Priority)
	}
}

// --- Completeness ---

func TestValidateCompleteness(t *testing.T) {
	t.Run("minimal valid registry passes", func(t *testing.T) {
		reg := sealedRegistry(t)
		ok, violations := reg.ValidateCompleteness()
		if !ok {
			t.Errorf("expected complete, got %v", violations)
		}
	})

	t.Run("empty registry fails", func(t *testing.T) {
		ok, _ := New().ValidateCompleteness()
		if ok {
			t.Error("empty registry must be incomplete")
		}
	})

	t.Run("inference service with domains flagged", func(t *testing.T) {
		reg := New()
		for _, src := range minimalSources() {
			reg.Register(src)
		}
		reg.Register(DataSource{
			ID: "sneaky-llm", Name: "Sneaky", Kind: KindInferenceService,
			Status: IntegrityReal, Domains: []string{"alerts"},
		})
		for _, own := range minimalDomains() {
			reg.RegisterDomain(own)
		}

		ok, violations := reg.ValidateCompleteness()
		if ok {
			t.Fatal("inference service with domains must fail completeness")
		}
		if !hasViolationFor(violations, "sneaky-llm") {
			t.Errorf("expected violation for sneaky-llm, got %v", violations)
		}
	})

	t.Run("stub with authoritative categories flagged", func(t *testing.T) {
		reg := New()
		for _, src := range minimalSources() {
			reg.Register(src)
		}
		reg.Register(DataSource{
			ID: "weather-stub", Name: "Weather", Kind: KindExternalAPI,
			Status: IntegrityStub, AuthoritativeFor: []string{"weather"},
		})
		for _, own := range minimalDomains() {
			reg.RegisterDomain(own)
		}

		ok, violations := reg.ValidateCompleteness()
		if ok {
			t.Fatal("authoritative stub must fail completeness")
		}
		if !hasViolationFor(violations, "weather-stub") {
			t.Errorf("expected violation for weather-stub, got %v", violations)
		}
	})

	t.Run("unregistered primary source flagged", func(t *testing.T) {
		reg := New()
		for _, src := range minimalSources() {
			reg.Register(src)
		}
		for _, own := range minimalDomains() {
			reg.RegisterDomain(own)
		}
		reg.RegisterDomain(DomainOwnership{Domain: "orphan", PrimarySourceID: "no-such-source"})

		ok, violations := reg.ValidateCompleteness()
		if ok {
			t.Fatal("dangling primary must fail completeness")
		}
		found := false
		for _, v := range violations {
			if v.Domain == "orphan" {
				found = true
			}
		}
		if !found {
			t.Errorf("expected violation for domain orphan, got %v", violations)
		}
	})

	t.Run("missing required domain flagged", func(t *testing.T) {
		reg := New()
		for _, src := range minimalSources() {
			reg.Register(src)
		}
		// Register only one of the two required domains.
		reg.RegisterDomain(minimalDomains()[0])

		ok, violations := reg.ValidateCompleteness()
		if ok {
			t.Fatal("missing required domain must fail completeness")
		}
		found := false
		for _, v := range violations {
			if v.Domain == "alerts" && strings.Contains(v.Message, "required") {
				found = true
			}
		}
		if !found {
			t.Errorf("expected required-domain violation for alerts, got %v", violations)
		}
	})
}

func TestSeal(t *testing.T) {
	t.Run("incomplete registry stays unsealed", func(t *testing.T) {
		reg := New()
		if err := reg.Seal(); !errors.Is(err, ErrIncomplete) {
			t.Errorf("expected ErrIncomplete, got %v", err)
		}
		if reg.Sealed() {
			t.Error("failed Seal must leave the registry unsealed")
		}
	})

	t.Run("sealed registry reports sealed", func(t *testing.T) {
		if !sealedRegistry(t).Sealed() {
			t.Error("expected sealed")
		}
	})
}

func hasViolationFor(violations []Violation, sourceID string) bool {
	for _, v := range violations {
		if v.SourceID == sourceID {
			return true
		}
	}
	return false
}
