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
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGate/pkg/extensions"
	"github.com/AleutianAI/AleutianGate/pkg/ux"
	"github.com/AleutianAI/AleutianGate/services/gate/resolver"
)

// runResolve dry-runs resolution for one query and prints the full
// decision trail. No data stores are touched: this is the resolver and
// gate only, exactly what the server consults before traversal.
func runResolve(cmd *cobra.Command, args []string) {
	rawText := strings.Join(args, " ")
	if rawText == "" && len(domains) == 0 && intentType == "query" {
		ux.Error("resolve needs query text, --domain flags, or a non-query --intent")
		os.Exit(1)
	}
	if !validIntent(intentType) {
		ux.Warning(fmt.Sprintf("intent %q is not a known category; it will fail closed through the query path", intentType))
	}

	entityMap, err := parseEntityFlags(entities)
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}

	reg, err := loadSealedRegistry()
	if err != nil {
		ux.Error(fmt.Sprintf("catalog rejected: %v", err))
		os.Exit(1)
	}
	rs, err := resolver.NewResolver(reg, nil)
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}

	// Memory sink so the dry run can show what the server would audit.
	audit := extensions.NewMemoryAuditLogger()
	gate, err := resolver.NewGate(rs, audit)
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}

	proceed, res, message := gate.VerifyOrRefuse(context.Background(), resolver.Request{
		IntentType: intentType,
		Domains:    domains,
		Entities:   entityMap,
		RawText:    rawText,
	})

	ux.Title("Resolution")
	fmt.Printf("%s resolution %s\n", ux.OutcomeBadge(string(res.Outcome)), res.ID)
	for _, id := range res.ResolvedSourceIDs() {
		badge := "[unregistered]"
		if src := reg.Get(id); src != nil {
			badge = ux.IntegrityBadge(string(src.Status))
		}
		fmt.Printf("%s %s %s\n", string(ux.IconArrow), badge, id)
	}

	ux.Title("Decision Trail")
	for _, step := range res.Decisions {
		fmt.Println(ux.StepLine(step.OK, step.Stage, step.Detail))
	}

	for _, warning := range res.DemoWarnings {
		ux.Warning(warning)
	}

	if proceed {
		ux.Success("the gate would permit this query")
		return
	}
	ux.WarningBox("Refused", message)
	os.Exit(2)
}
