// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AleutianAI/relic/services/analysis"
	"github.com/AleutianAI/relic/services/analysis/ast"
	"github.com/AleutianAI/relic/services/analysis/config"
	"github.com/AleutianAI/relic/services/analysis/runner"
)

const serviceSource = `package com.acme.service;

public class OrderService {
    public void load(int id) {
        helper.findById(id);
    }
}
`

func buildWatchRunner(t *testing.T) *runner.Runner {
	t.Helper()
	rules, err := config.DefaultRules()
	if err != nil {
		t.Fatalf("DefaultRules: %v", err)
	}
	engine, err := analysis.NewEngine(rules)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	r, err := runner.NewRunner(ast.NewJavaParser(), engine, nil)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return r
}

func awaitReport(t *testing.T, reports <-chan *runner.Report) *runner.Report {
	t.Helper()
	select {
	case report := <-reports:
		return report
	case <-time.After(10 * time.Second):
		t.Fatal("no analysis report within timeout")
		return nil
	}
}

func TestNewWatcherRequiresRunner(t *testing.T) {
	if _, err := NewWatcher(nil, 0); err == nil {
		t.Fatal("nil runner accepted")
	}
}

func TestWatcherRerunsOnWrite(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "OrderService.java")
	if err := os.WriteFile(path, []byte(serviceSource), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	w, err := NewWatcher(buildWatchRunner(t), 50*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	reports := make(chan *runner.Report, 8)
	w.OnReport = func(report *runner.Report) { reports <- report }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx, root) }()

	// The initial full run fires before the first event.
	initial := awaitReport(t, reports)
	if initial.FilesScanned != 1 {
		t.Errorf("initial run scanned %d files, want 1", initial.FilesScanned)
	}

	// A write re-runs the tree after the debounce window.
	updated := serviceSource + "\n// touched\n"
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	second := awaitReport(t, reports)
	if second.FilesScanned != 1 {
		t.Errorf("re-run scanned %d files, want 1", second.FilesScanned)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Watch returned %v, want context.Canceled", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Watch did not return after cancellation")
	}
}
