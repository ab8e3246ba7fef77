// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/AleutianAI/AleutianGate/services/gate/registry"
	"github.com/AleutianAI/AleutianGate/services/gate/registry/enforcement"
	"github.com/AleutianAI/AleutianGate/services/gate/resolver"
)

// catalogBytes returns the catalog YAML from --catalog or the embedded
// default, plus a display name for messages.
func catalogBytes() ([]byte, string, error) {
	if catalogPath == "" {
		return enforcement.SourceCatalog, "embedded catalog", nil
	}
	data, err := os.ReadFile(catalogPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read catalog %s: %w", catalogPath, err)
	}
	return data, catalogPath, nil
}

// loadSealedRegistry builds the sealed registry from --catalog or the
// embedded default.
func loadSealedRegistry() (*registry.Registry, error) {
	if catalogPath == "" {
		return registry.NewFromEmbeddedCatalog()
	}
	return registry.NewFromCatalogFile(catalogPath)
}

// parseEntityFlags converts repeated kind=name flags into the resolver's
// entity map. Malformed pairs are reported, not silently dropped.
func parseEntityFlags(pairs []string) (map[string][]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string][]string)
	for _, pair := range pairs {
		kind, name, found := strings.Cut(pair, "=")
		if !found || kind == "" || name == "" {
			return nil, fmt.Errorf("entity %q is not kind=name", pair)
		}
		out[kind] = append(out[kind], name)
	}
	return out, nil
}

// validIntent reports whether the label is one the resolver recognizes.
// Unknown labels still resolve (they fail closed through the query path),
// but the CLI warns about likely typos.
func validIntent(label string) bool {
	switch label {
	case resolver.IntentQuery, resolver.IntentAction, resolver.IntentSchedule,
		resolver.IntentGreeting, resolver.IntentConversational, resolver.IntentOutOfScope:
		return true
	}
	return false
}
