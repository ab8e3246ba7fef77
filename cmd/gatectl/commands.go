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
	"github.com/AleutianAI/AleutianGate/pkg/ux"
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	catalogPath string // --catalog: catalog YAML override (default: embedded)
	outputMode  string // --output: ux output mode (styled/minimal/machine)
	intentType  string // --intent: intent category for resolve
	domains     []string
	entities    []string // --entity kind=name pairs

	rootCmd = &cobra.Command{
		Use:   "gatectl",
		Short: "A cli to validate and dry-run the AleutianGate trust gate",
		Long: `gatectl validates source catalogs, inspects registered data
				sources, and dry-runs query resolution without starting the
				gate server.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if outputMode != "" {
				ux.SetMode(ux.ParseMode(outputMode))
			} else {
				ux.InitMode()
			}
		},
	}

	// --- Catalog ---
	validateCmd = &cobra.Command{
		Use:   "validate",
		Short: "Validate a source catalog against the completeness rules",
		Run:   runValidate, // Defined in cmd_validate.go
	}

	sourcesCmd = &cobra.Command{
		Use:   "sources",
		Short: "List the registered data sources and their integrity status",
		Run:   runSources, // Defined in cmd_sources.go
	}

	// --- Resolution ---
	resolveCmd = &cobra.Command{
		Use:   "resolve [query text]",
		Short: "Dry-run source resolution for a query and print the decision trail",
		Run:   runResolve, // Defined in cmd_resolve.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "",
		"path to a source catalog YAML (default: embedded catalog)")
	rootCmd.PersistentFlags().StringVarP(&outputMode, "output", "o", "",
		"output mode: styled, minimal, or machine (default: auto-detect)")

	resolveCmd.Flags().StringVar(&intentType, "intent", "query",
		"intent category: query, action, schedule, greeting, conversational, out_of_scope")
	resolveCmd.Flags().StringSliceVar(&domains, "domain", nil,
		"declared domain tag (repeatable); omit to infer from the query text")
	resolveCmd.Flags().StringSliceVar(&entities, "entity", nil,
		"extracted entity as kind=name (repeatable), e.g. devices=pump-001")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(resolveCmd)
}
