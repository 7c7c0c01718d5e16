// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch re-runs tree analysis when watched source files change.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/relic/services/analysis/runner"
)

// defaultDebounce batches filesystem event bursts (editor save storms,
// branch switches) into a single re-run.
const defaultDebounce = 500 * time.Millisecond

// Watcher re-runs a Runner over a tree whenever Java sources change.
//
// Description:
//
//	All directories under the root are registered recursively, and new
//	directories are added as they appear. Events are debounced: the run
//	fires once the tree has been quiet for the debounce window. With the
//	runner's result cache configured, unchanged files inside the re-run
//	are cache hits, so a one-file edit costs one file of work.
//
// Thread Safety: Watch owns all internal state; one Watch call per
// Watcher.
type Watcher struct {
	runner   *runner.Runner
	debounce time.Duration

	// OnReport receives each completed run. Optional.
	OnReport func(*runner.Report)
}

// NewWatcher builds a watcher. A debounce of 0 uses the default window.
func NewWatcher(r *runner.Runner, debounce time.Duration) (*Watcher, error) {
	if r == nil {
		return nil, fmt.Errorf("watch: runner is required")
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{runner: r, debounce: debounce}, nil
}

// Watch blocks, re-running analysis on changes until ctx is cancelled.
// An initial full run always happens before the first event.
func (w *Watcher) Watch(ctx context.Context, root string) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer fsw.Close()

	if err := addRecursive(fsw, root); err != nil {
		return err
	}

	w.run(ctx, root)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			// New directories need explicit registration; fsnotify does
			// not watch recursively.
			if event.Op.Has(fsnotify.Create) {
				if err := addRecursive(fsw, event.Name); err != nil {
					slog.Debug("Watch registration skipped",
						slog.String("path", event.Name),
						slog.String("error", err.Error()),
					)
				}
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			w.run(ctx, root)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Filesystem watch error", slog.String("error", err.Error()))
		}
	}
}

// relevant filters events down to Java source mutations and new paths.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Create) &&
		!event.Op.Has(fsnotify.Write) &&
		!event.Op.Has(fsnotify.Remove) &&
		!event.Op.Has(fsnotify.Rename) {
		return false
	}
	// Directory events have no extension; let them through so new
	// directories get registered.
	return !strings.Contains(filepath.Base(event.Name), ".") ||
		strings.HasSuffix(event.Name, ".java")
}

func (w *Watcher) run(ctx context.Context, root string) {
	report, err := w.runner.Run(ctx, root)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("Watched analysis run failed",
				slog.String("root", root),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	slog.Info("Watched analysis run complete",
		slog.String("root", root),
		slog.Int("files", report.FilesScanned),
		slog.Int("cache_hits", report.CacheHits),
		slog.Int("mappings", report.Batch.Stats.MappingsEmitted),
	)
	if w.OnReport != nil {
		w.OnReport(report)
	}
}

// addRecursive registers path and every directory below it. Non-directory
// paths are ignored.
func addRecursive(fsw *fsnotify.Watcher, path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// The path may already be gone (rapid create/delete); skip.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		base := d.Name()
		if base == ".git" || base == "target" || base == "build" {
			return fs.SkipDir
		}
		if err := fsw.Add(p); err != nil {
			return fmt.Errorf("watch: add %q: %w", p, err)
		}
		return nil
	})
}
