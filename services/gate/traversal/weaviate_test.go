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
	"testing"
)

// graphqlResponse mirrors the nested {"Get": {"<Class>": [...]}} shape the
// client hands back. Built as plain maps so the parser is exercised
// through the same marshal/unmarshal path production takes.
func graphqlResponse(className string, objects ...map[string]any) map[string]any {
	return map[string]any{
		"Get": map[string]any{className: objects},
	}
}

func TestParseSearchResult(t *testing.T) {
	t.Run("hits with string scores", func(t *testing.T) {
		data := graphqlResponse("Document",
			map[string]any{
				"title":       "Pump maintenance guide",
				"snippet":     "How to service pump-001",
				"_additional": map[string]any{"score": "1.25"},
			},
			map[string]any{
				"title":       "Alert runbook",
				"snippet":     "Responding to critical alerts",
				"_additional": map[string]any{"score": "0.5"},
			},
		)

		hits, err := parseSearchResult(data, "Document")
		if err != nil {
			t.Fatalf("parseSearchResult failed: %v", err)
		}
		if len(hits) != 2 {
			t.Fatalf("expected 2 hits, got %d", len(hits))
		}
		if hits[0].Title != "Pump maintenance guide" || hits[0].Score != 1.25 {
			t.Errorf("first hit = %+v", hits[0])
		}
		if hits[1].Score != 0.5 {
			t.Errorf("second hit score = %v", hits[1].Score)
		}
	})

	t.Run("missing score degrades to zero", func(t *testing.T) {
		data := graphqlResponse("Document", map[string]any{
			"title":   "Unscored",
			"snippet": "no _additional block",
		})

		hits, err := parseSearchResult(data, "Document")
		if err != nil {
			t.Fatalf("parseSearchResult failed: %v", err)
		}
		if len(hits) != 1 || hits[0].Score != 0 {
			t.Errorf("hits = %+v", hits)
		}
	})

	t.Run("class absent from response", func(t *testing.T) {
		data := graphqlResponse("Document")

		hits, err := parseSearchResult(data, "Runbook")
		if err != nil {
			t.Fatalf("parseSearchResult failed: %v", err)
		}
		if len(hits) != 0 {
			t.Errorf("expected no hits, got %d", len(hits))
		}
	})

	t.Run("malformed response shape", func(t *testing.T) {
		data := map[string]any{"Get": "not an object"}

		if _, err := parseSearchResult(data, "Document"); err == nil {
			t.Error("expected error for malformed response")
		}
	})
}
