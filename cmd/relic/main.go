// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command relic analyzes legacy Java source trees: it extracts cross-file
// relationships (calls, fields, inheritance, DI, SQL, REST, security,
// AOP, manager/factory conventions) into a typed edge model, either as a
// one-shot CLI run or as an HTTP service.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// verbose holds the global --verbose flag value.
var verbose bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "relic",
		Short: "Legacy Java relationship extraction",
		Long: `Relic parses Java sources and extracts the cross-file relationship
graph a modernization effort needs: method calls, field references,
inheritance, dependency injection, embedded SQL, entity-table mappings,
REST endpoints, security roles, AOP pointcuts and pre-DI manager/factory
conventions.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			configureLogging()
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newAnalyzeCommand())
	rootCmd.AddCommand(newServeCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// configureLogging installs the process-wide slog handler. Logs go to
// stderr so CLI JSON output on stdout stays machine-readable.
func configureLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
