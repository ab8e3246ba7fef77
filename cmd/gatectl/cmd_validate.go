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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGate/pkg/ux"
	"github.com/AleutianAI/AleutianGate/services/gate/registry"
)

// runValidate lints a catalog: field validation, then every completeness
// violation (not just the first, which is all the server's fail-fast
// startup path reports).
func runValidate(cmd *cobra.Command, args []string) {
	data, name, err := catalogBytes()
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}

	ux.Title("Catalog Validation")
	ux.Info(fmt.Sprintf("catalog: %s", name))

	reg, err := registry.NewUnsealedFromCatalog(data)
	if err != nil {
		ux.Error(fmt.Sprintf("catalog rejected: %v", err))
		os.Exit(1)
	}

	ok, violations := reg.ValidateCompleteness()
	if !ok {
		for _, v := range violations {
			ux.Error(v.String())
		}
		ux.Error(fmt.Sprintf("%d completeness violation(s); the gate would refuse to start", len(violations)))
		os.Exit(1)
	}

	ux.Success(fmt.Sprintf("catalog is valid: %d sources, %d domains",
		len(reg.SourceIDs()), len(reg.Domains())))
	for _, required := range registry.RequiredDomains {
		ux.Info(fmt.Sprintf("required domain %q -> %s", required,
			reg.Ownership(required).PrimarySourceID))
	}
}
