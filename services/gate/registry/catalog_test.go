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
	"os"
	"path/filepath"
	"testing"
)

func TestParseCatalog(t *testing.T) {
	t.Run("malformed yaml rejected", func(t *testing.T) {
		if _, err := ParseCatalog([]byte("sources: [")); err == nil {
			t.Error("expected error for malformed yaml")
		}
	})

	t.Run("missing required fields rejected", func(t *testing.T) {
		yaml := `
sources:
  - id: nameless
    kind: relational-store
    status: real
domains:
  - domain: d
    primary_source_id: nameless
`
		if _, err := ParseCatalog([]byte(yaml)); err == nil {
			t.Error("expected field validation error for missing name")
		}
	})

	t.Run("empty catalog rejected", func(t *testing.T) {
		if _, err := ParseCatalog([]byte("sources: []\ndomains: []")); err == nil {
			t.Error("expected error for empty sources")
		}
	})
}

func TestNewFromEmbeddedCatalog(t *testing.T) {
	reg, err := NewFromEmbeddedCatalog()
	if err != nil {
		t.Fatalf("embedded catalog must always validate: %v", err)
	}
	if !reg.Sealed() {
		t.Error("catalog constructor must return a sealed registry")
	}
	if got := len(reg.SourceIDs()); got != 7 {
		t.Errorf("expected 7 sources, got %d", got)
	}
	if got := len(reg.Domains()); got != 4 {
		t.Errorf("expected 4 domains, got %d", got)
	}

	t.Run("required domains present", func(t *testing.T) {
		for _, required := range RequiredDomains {
			if reg.Ownership(required) == nil {
				t.Errorf("required domain %s missing from embedded catalog", required)
			}
		}
	})

	t.Run("inference service carries no ownership", func(t *testing.T) {
		llm := reg.Get("assistant-llm")
		if llm == nil {
			t.Fatal("assistant-llm missing")
		}
		if len(llm.Domains) != 0 || len(llm.AuthoritativeFor) != 0 || llm.Priority != 0 {
			t.Errorf("inference service has ownership: %+v", llm)
		}
	})

	t.Run("stub is registered but never authoritative", func(t *testing.T) {
		stub := reg.Get("weather-stub")
		if stub == nil {
			t.Fatal("weather-stub missing")
		}
		if len(stub.AuthoritativeFor) != 0 {
			t.Error("stub must not be authoritative for anything")
		}
	})
}

func TestNewFromCatalog_InferenceSmuggling(t *testing.T) {
	// A hand-edited catalog trying to give a model endpoint domain
	// ownership must fail sealing, not silently lose the domains.
	yaml := `
sources:
  - id: equipment-telemetry-db
    name: Telemetry
    kind: relational-store
    status: hybrid
    domains: [equipment-telemetry]
  - id: alerts-db
    name: Alerts
    kind: relational-store
    status: real
    domains: [alerts]
  - id: clever-llm
    name: Clever Model
    kind: inference-service
    status: real
    domains: [alerts]
domains:
  - domain: equipment-telemetry
    primary_source_id: equipment-telemetry-db
  - domain: alerts
    primary_source_id: alerts-db
`
	if _, err := NewFromCatalog([]byte(yaml)); err == nil {
		t.Error("catalog granting domains to an inference service must be rejected")
	}
}

func TestNewFromCatalogFile(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		if _, err := NewFromCatalogFile("/no/such/catalog.yaml"); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("round-trips the embedded catalog", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		data, err := os.ReadFile("enforcement/source_catalog.yaml")
		if err != nil {
			t.Fatalf("failed to read embedded catalog source: %v", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("failed to write temp catalog: %v", err)
		}

		reg, err := NewFromCatalogFile(path)
		if err != nil {
			t.Fatalf("NewFromCatalogFile failed: %v", err)
		}
		if !reg.Sealed() {
			t.Error("expected sealed registry")
		}
	})
}
