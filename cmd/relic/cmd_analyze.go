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
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/relic/services/analysis"
	"github.com/AleutianAI/relic/services/analysis/ast"
	"github.com/AleutianAI/relic/services/analysis/config"
	"github.com/AleutianAI/relic/services/analysis/mapping"
	"github.com/AleutianAI/relic/services/analysis/runner"
	badgerstore "github.com/AleutianAI/relic/services/analysis/storage/badger"
	"github.com/AleutianAI/relic/services/analysis/watch"
)

// Flag values for the analyze command.
var (
	analyzeIncludes []string
	analyzeExcludes []string
	analyzeCacheDir string
	analyzeWorkers  int
	analyzeWatch    bool
	analyzeEdges    bool
)

func newAnalyzeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <path>",
		Short: "Analyze a Java source tree and print the relationship graph",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyzeCommand,
	}
	cmd.Flags().StringSliceVar(&analyzeIncludes, "include", nil, "File glob(s) to include (default **.java)")
	cmd.Flags().StringSliceVar(&analyzeExcludes, "exclude", nil, "File glob(s) to exclude")
	cmd.Flags().StringVar(&analyzeCacheDir, "cache-dir", "", "Result cache directory (empty disables caching)")
	cmd.Flags().IntVar(&analyzeWorkers, "workers", 0, "Analysis worker bound (default: CPU count)")
	cmd.Flags().BoolVar(&analyzeWatch, "watch", false, "Stay running and re-analyze on file changes")
	cmd.Flags().BoolVar(&analyzeEdges, "edges-only", false, "Print only the flat edge list")
	return cmd
}

func runAnalyzeCommand(cmd *cobra.Command, args []string) error {
	root := args[0]
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return fmt.Errorf("not a directory: %s", root)
	}

	rules, err := config.LoadRules(root)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	var engineOpts []analysis.Option
	if analyzeWorkers > 0 {
		engineOpts = append(engineOpts, analysis.WithWorkers(analyzeWorkers))
	}
	engine, err := analysis.NewEngine(rules, engineOpts...)
	if err != nil {
		return err
	}

	parser := ast.NewJavaParser()

	var store *badgerstore.ResultStore
	if analyzeCacheDir != "" {
		cfg := badgerstore.DefaultConfig()
		cfg.Path = analyzeCacheDir
		db, err := badgerstore.OpenDB(cfg)
		if err != nil {
			slog.Warn("Result cache unavailable, analyzing without it",
				slog.String("path", analyzeCacheDir),
				slog.String("error", err.Error()),
			)
		} else {
			defer db.Close()
			store = badgerstore.NewResultStore(db, 0)
		}
	}

	runnerOpts := []runner.Option{
		runner.WithRuleFingerprint(engine.RuleFingerprint()),
	}
	if len(analyzeIncludes) > 0 {
		runnerOpts = append(runnerOpts, runner.WithIncludeGlobs(analyzeIncludes...))
	}
	if len(analyzeExcludes) > 0 {
		runnerOpts = append(runnerOpts, runner.WithExcludeGlobs(analyzeExcludes...))
	}
	run, err := runner.NewRunner(parser, engine, store, runnerOpts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if analyzeWatch {
		return runWatchMode(ctx, run, root)
	}

	report, err := run.Run(ctx, root)
	if err != nil {
		return err
	}
	return printReport(report)
}

// runWatchMode blocks re-analyzing on changes until interrupted.
func runWatchMode(ctx context.Context, run *runner.Runner, root string) error {
	w, err := watch.NewWatcher(run, 0)
	if err != nil {
		return err
	}
	w.OnReport = func(report *runner.Report) {
		if err := printReport(report); err != nil {
			slog.Error("Report output failed", slog.String("error", err.Error()))
		}
	}

	slog.Info("Watching for changes", slog.String("root", root))
	err = w.Watch(ctx, root)
	if err == context.Canceled {
		return nil
	}
	return err
}

// printReport writes the run output to stdout as JSON.
func printReport(report *runner.Report) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if !analyzeEdges {
		return enc.Encode(report)
	}

	var edges []mapping.CodeMapping
	for _, result := range report.AllResults() {
		edges = append(edges, result.Mappings...)
	}
	slog.Info("Analysis complete",
		slog.Int("files", report.FilesScanned),
		slog.Int("edges", len(edges)),
		slog.Duration("duration", report.Batch.Stats.Duration),
	)
	return enc.Encode(edges)
}
