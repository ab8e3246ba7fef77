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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGate/pkg/ux"
)

// runSources prints the registered sources with their integrity badges,
// then the domain ownership table.
func runSources(cmd *cobra.Command, args []string) {
	reg, err := loadSealedRegistry()
	if err != nil {
		ux.Error(fmt.Sprintf("catalog rejected: %v", err))
		os.Exit(1)
	}

	ux.Title("Registered Data Sources")
	for _, src := range reg.Sources() {
		line := fmt.Sprintf("%s %s  %s (%s)",
			ux.IntegrityBadge(string(src.Status)), src.ID, src.Name, src.Kind)
		fmt.Println(line)
		if len(src.AuthoritativeFor) > 0 {
			ux.Muted(fmt.Sprintf("    authoritative for: %s", strings.Join(src.AuthoritativeFor, ", ")))
		}
	}

	ux.Title("Domain Ownership")
	for _, domain := range reg.Domains() {
		own := reg.Ownership(domain)
		fmt.Printf("%s %s %s %s\n",
			string(ux.IconBullet), domain, string(ux.IconArrow), own.PrimarySourceID)
	}
}
