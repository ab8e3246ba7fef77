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
	"fmt"
	"os"

	"github.com/AleutianAI/AleutianGate/services/gate/registry/enforcement"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// CatalogFile is the on-disk / embedded shape of the source catalog.
type CatalogFile struct {
	Sources []DataSource      `yaml:"sources" validate:"required,min=1,dive"`
	Domains []DomainOwnership `yaml:"domains" validate:"required,dive"`
}

// catalogValidator checks struct tags on catalog entries before any of them
// reach the registry. Built once; validator instances are safe for
// concurrent use.
var catalogValidator = validator.New()

// ParseCatalog unmarshals and field-validates catalog YAML.
//
// # Description
//
// Parsing and field validation are separate from registry construction so
// that gatectl can lint a catalog file without building a registry. Field
// validation covers per-entry shape (required ids, names, kinds); the
// cross-entry invariants live in Registry.ValidateCompleteness.
//
// # Inputs
//
//   - data: raw catalog YAML
//
// # Outputs
//
//   - *CatalogFile: the parsed catalog
//   - error: non-nil on malformed YAML or a failed field validation
func ParseCatalog(data []byte) (*CatalogFile, error) {
	var file CatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the source catalog: %w", err)
	}
	if err := catalogValidator.Struct(&file); err != nil {
		return nil, fmt.Errorf("source catalog failed field validation: %w", err)
	}
	return &file, nil
}

// NewFromCatalog builds and seals a Registry from catalog YAML.
//
// # Description
//
// The complete startup path: parse, field-validate, register every source
// and domain, then seal (which runs completeness validation). Any failure
// returns an error and no registry — the caller must treat that as fatal
// and refuse to serve queries.
//
// Inference-service entries are rebuilt through NewInferenceService so a
// catalog cannot smuggle domain ownership onto a model endpoint; if the
// YAML entry carried domains or authoritative categories anyway, sealing
// reports it as a completeness violation rather than silently dropping it.
//
// # Inputs
//
//   - data: raw catalog YAML
//
// # Outputs
//
//   - *Registry: sealed and ready for concurrent reads
//   - error: non-nil when the catalog is malformed or incomplete
func NewFromCatalog(data []byte) (*Registry, error) {
	reg, err := NewUnsealedFromCatalog(data)
	if err != nil {
		return nil, err
	}
	if err := reg.Seal(); err != nil {
		return nil, err
	}
	return reg, nil
}

// NewUnsealedFromCatalog builds a Registry from catalog YAML without
// sealing it.
//
// This is the lint path used by gatectl: the caller runs
// ValidateCompleteness itself to report every violation, where Seal stops
// at the first. Serving code must use NewFromCatalog instead — an unsealed
// registry is rejected by the resolver and the traversal engine.
func NewUnsealedFromCatalog(data []byte) (*Registry, error) {
	file, err := ParseCatalog(data)
	if err != nil {
		return nil, err
	}

	reg := New()
	for _, src := range file.Sources {
		if src.Kind == KindInferenceService && len(src.Domains) == 0 && len(src.AuthoritativeFor) == 0 {
			src = NewInferenceService(src.ID, src.Name, src.Status)
		}
		if err := reg.Register(src); err != nil {
			return nil, fmt.Errorf("failed to register source %q: %w", src.ID, err)
		}
	}
	for _, own := range file.Domains {
		if err := reg.RegisterDomain(own); err != nil {
			return nil, fmt.Errorf("failed to register domain %q: %w", own.Domain, err)
		}
	}
	return reg, nil
}

// NewFromEmbeddedCatalog builds the registry from the catalog baked into
// the binary. This is the default when GATE_CATALOG_PATH is unset.
func NewFromEmbeddedCatalog() (*Registry, error) {
	return NewFromCatalog(enforcement.SourceCatalog)
}

// NewFromCatalogFile builds the registry from a catalog file on disk.
func NewFromCatalogFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read the source catalog at %s: %w", path, err)
	}
	return NewFromCatalog(data)
}
