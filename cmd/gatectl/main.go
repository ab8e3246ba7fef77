// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command gatectl is the operator CLI for the AleutianGate trust gate.
//
// It validates source catalogs, inspects the registered sources, and
// dry-runs query resolution against a catalog without starting the gate
// server.
package main

import (
	"log"

	"github.com/AleutianAI/AleutianGate/pkg/logging"
)

// logger is shared by all commands; configured in PersistentPreRun.
var logger = logging.New(logging.Config{
	Level:   logging.LevelWarn,
	Service: "gatectl",
})

func main() {
	defer logger.Close()
	// Execute the root command. Cobra handles parsing the arguments.
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
