// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classify

import (
	"testing"

	"github.com/AleutianAI/relic/services/analysis/ast"
	"github.com/AleutianAI/relic/services/analysis/config"
)

// =============================================================================
// Test Helpers
// =============================================================================

func mustDefaultClassifier(t *testing.T) *Classifier {
	t.Helper()
	rules, err := config.DefaultRules()
	if err != nil {
		t.Fatalf("DefaultRules: %v", err)
	}
	return NewClassifier(rules)
}

func unitWith(pkg, className string) *ast.CompilationUnit {
	return &ast.CompilationUnit{
		Package: pkg,
		Classes: ast.ClassList{{Name: className}},
	}
}

// =============================================================================
// Layer Cascade
// =============================================================================

func TestClassifyUnitPackageGlob(t *testing.T) {
	c := mustDefaultClassifier(t)

	tests := []struct {
		name string
		pkg  string
		want Layer
	}{
		{"dao subpackage", "com.acme.dao.order", "data_access"},
		{"dao leaf", "com.acme.dao", "data_access"},
		{"service leaf", "com.acme.service", "service"},
		{"web subpackage", "com.acme.web.actions", "presentation"},
		{"model leaf", "com.acme.model", "domain"},
		{"util leaf", "com.acme.util", "util"},
		{"unmatched", "com.acme.banana", LayerOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.ClassifyUnit(unitWith(tt.pkg, "Plain"))
			if got != tt.want {
				t.Errorf("package %q classified as %q, want %q", tt.pkg, got, tt.want)
			}
		})
	}
}

func TestClassifyUnitIndicatorTier(t *testing.T) {
	c := mustDefaultClassifier(t)

	// Package matches nothing; the class name indicator decides.
	got := c.ClassifyUnit(unitWith("com.acme.stuff", "OrderServiceImpl"))
	if got != Layer("service") {
		t.Errorf("indicator tier classified as %q, want service", got)
	}

	// Supertype names participate too.
	unit := unitWith("com.acme.stuff", "Plain")
	unit.Classes[0].Extends = "BaseDAO"
	if got := c.ClassifyUnit(unit); got != Layer("data_access") {
		t.Errorf("supertype indicator classified as %q, want data_access", got)
	}
}

func TestClassifyUnitPackageGlobWinsOverIndicator(t *testing.T) {
	c := mustDefaultClassifier(t)

	// The package says data_access while the class name says service.
	// Tier order makes the package glob win.
	got := c.ClassifyUnit(unitWith("com.acme.dao", "OrderService"))
	if got != Layer("data_access") {
		t.Errorf("cascade precedence broken: got %q, want data_access", got)
	}
}

func TestClassifyUnitAnnotationTier(t *testing.T) {
	c := mustDefaultClassifier(t)

	unit := unitWith("com.acme.stuff", "Plain")
	unit.Classes[0].Annotations = ast.AnnotationList{{Name: "Repository"}}
	if got := c.ClassifyUnit(unit); got != Layer("data_access") {
		t.Errorf("annotation tier classified as %q, want data_access", got)
	}
}

func TestClassifyUnitDefaults(t *testing.T) {
	c := mustDefaultClassifier(t)

	if got := c.ClassifyUnit(nil); got != LayerOther {
		t.Errorf("nil unit classified as %q", got)
	}
	if got := c.ClassifyUnit(unitWith("", "Plain")); got != LayerOther {
		t.Errorf("empty unit classified as %q", got)
	}
}

// =============================================================================
// Architecture Cascade
// =============================================================================

func TestClassifyPath(t *testing.T) {
	c := mustDefaultClassifier(t)

	tests := []struct {
		name string
		path string
		want Architecture
	}{
		{"webapp", "app/src/main/webapp/OrderServlet.java", "web"},
		{"dao", "app/src/com/acme/dao/OrderDAO.java", "persistence"},
		{"batch", "app/src/com/acme/batch/NightlyJob.java", "batch"},
		{"ejb", "app/src/com/acme/ejb/OrderBean.java", "business"},
		{"backslashes normalized", `app\src\main\webapp\X.java`, "web"},
		{"unmatched", "app/src/com/acme/Thing.java", ArchitectureUnknown},
		{"empty", "", ArchitectureUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.ClassifyPath(tt.path); got != tt.want {
				t.Errorf("ClassifyPath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Degradation
// =============================================================================

func TestNilRulesClassifier(t *testing.T) {
	c := NewClassifier(nil)

	layer, arch := c.Classify(unitWith("com.acme.dao", "OrderDAO"))
	if layer != LayerOther || arch != ArchitectureUnknown {
		t.Errorf("nil-rules classifier returned (%q, %q)", layer, arch)
	}
}
