// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package classify assigns compilation units to architectural layers using
// a configurable three-tier cascade and, independently, classifies file
// paths into architecture tags.
package classify

import (
	"log/slog"
	"strings"

	"github.com/gobwas/glob"

	"github.com/AleutianAI/relic/services/analysis/ast"
	"github.com/AleutianAI/relic/services/analysis/config"
)

// Layer is a layer tag assigned by the classifier. The set is open and
// config-driven; LayerOther is the only value the classifier itself owns.
type Layer string

// LayerOther is assigned when no cascade tier matches.
const LayerOther Layer = "other"

// Architecture is an architecture tag assigned by the path cascade.
type Architecture string

// ArchitectureUnknown is assigned when no path rule matches.
const ArchitectureUnknown Architecture = "unknown"

// packageSeparator and pathSeparator bound what "*" may cross in the two
// glob dialects: "**" crosses separators, "*" does not, and matches are
// fully anchored.
const (
	packageSeparator = '.'
	pathSeparator    = '/'
)

// compiledLayerGlob is one (predicate, layer) pair in the tier-1 table.
type compiledLayerGlob struct {
	layer Layer
	g     glob.Glob
}

// compiledIndicator is one (predicate, layer) pair in the tier-2 table.
type compiledIndicator struct {
	layer    Layer
	literal  string // exact match when contains == ""
	contains string // substring match for *pattern* forms
}

func (ci compiledIndicator) matches(name string) bool {
	if ci.contains != "" {
		return strings.Contains(name, ci.contains)
	}
	return name == ci.literal
}

// compiledArchGlob is one (predicate, architecture) pair in the path table.
type compiledArchGlob struct {
	arch Architecture
	g    glob.Glob
}

// Classifier runs the layer and architecture classification cascades.
//
// Description:
//
//	Layer classification is a three-tier cascade, first match wins:
//	  1. package-name glob match against per-layer configured patterns
//	  2. content indicator match (literal or "*pattern*" substring)
//	     against class names, annotation names and supertype names
//	  3. framework annotation -> layer lookup
//	No match at any tier yields LayerOther.
//
//	Path classification is a parallel, independent cascade of path globs
//	over forward-slash-normalized paths; no match yields
//	ArchitectureUnknown.
//
//	All predicate tables are precomputed from configuration at
//	construction. A tier whose configuration section is empty is simply
//	skipped; invalid patterns are logged and dropped, never fatal.
//
// Thread Safety:
//
//	Classifier is immutable after construction and safe for concurrent
//	use.
type Classifier struct {
	packageGlobs     []compiledLayerGlob
	indicators       []compiledIndicator
	annotationLayers map[string]Layer
	archGlobs        []compiledArchGlob
}

// NewClassifier precomputes the cascade tables from a rule set.
//
// Inputs:
//
//	rules - The effective rule set. A nil rules value yields a classifier
//	        whose every answer is LayerOther / ArchitectureUnknown.
//
// Outputs:
//
//	*Classifier - Never nil.
func NewClassifier(rules *config.Rules) *Classifier {
	c := &Classifier{
		annotationLayers: make(map[string]Layer),
	}
	if rules == nil {
		return c
	}

	for _, lr := range rules.Layers {
		layer := Layer(lr.Layer)
		for _, pattern := range lr.Packages {
			g, err := glob.Compile(pattern, packageSeparator)
			if err != nil {
				slog.Warn("Dropping invalid package pattern",
					slog.String("layer", lr.Layer),
					slog.String("pattern", pattern),
					slog.String("error", err.Error()),
				)
				continue
			}
			c.packageGlobs = append(c.packageGlobs, compiledLayerGlob{layer: layer, g: g})
		}
		for _, ind := range lr.Indicators {
			c.indicators = append(c.indicators, compileIndicator(layer, ind))
		}
	}

	for _, fw := range rules.Frameworks {
		for annotation, layer := range fw.Annotations {
			// First framework to claim an annotation wins; rule files
			// should not map one annotation twice.
			if _, exists := c.annotationLayers[annotation]; !exists {
				c.annotationLayers[annotation] = Layer(layer)
			}
		}
	}

	for _, ar := range rules.Architectures {
		arch := Architecture(ar.Architecture)
		for _, pattern := range ar.Paths {
			g, err := glob.Compile(pattern, pathSeparator)
			if err != nil {
				slog.Warn("Dropping invalid path pattern",
					slog.String("architecture", ar.Architecture),
					slog.String("pattern", pattern),
					slog.String("error", err.Error()),
				)
				continue
			}
			c.archGlobs = append(c.archGlobs, compiledArchGlob{arch: arch, g: g})
		}
	}

	return c
}

// compileIndicator parses the literal and *pattern* indicator dialects.
func compileIndicator(layer Layer, indicator string) compiledIndicator {
	if len(indicator) >= 2 && strings.HasPrefix(indicator, "*") && strings.HasSuffix(indicator, "*") {
		return compiledIndicator{
			layer:    layer,
			contains: strings.Trim(indicator, "*"),
		}
	}
	return compiledIndicator{layer: layer, literal: indicator}
}

// Classify runs both cascades for one compilation unit.
//
// Inputs:
//
//	unit - The structural record. May be nil.
//
// Outputs:
//
//	Layer        - The layer tag, LayerOther when nothing matches.
//	Architecture - The architecture tag from the unit's file path,
//	               ArchitectureUnknown when nothing matches.
//
// Thread Safety: Safe for concurrent use.
func (c *Classifier) Classify(unit *ast.CompilationUnit) (Layer, Architecture) {
	if unit == nil {
		return LayerOther, ArchitectureUnknown
	}
	return c.ClassifyUnit(unit), c.ClassifyPath(unit.FilePath)
}

// ClassifyUnit runs the three-tier layer cascade.
func (c *Classifier) ClassifyUnit(unit *ast.CompilationUnit) Layer {
	if unit == nil {
		return LayerOther
	}

	// Tier 1: package glob.
	if unit.Package != "" {
		for _, pg := range c.packageGlobs {
			if pg.g.Match(unit.Package) {
				return pg.layer
			}
		}
	}

	// Tier 2: content indicators against class, annotation and supertype
	// names.
	for _, ci := range c.indicators {
		for _, name := range unitIndicatorNames(unit) {
			if ci.matches(name) {
				return ci.layer
			}
		}
	}

	// Tier 3: framework annotation lookup.
	if len(c.annotationLayers) > 0 {
		for _, rec := range unit.AllTypes() {
			for _, a := range rec.Annotations {
				if layer, ok := c.annotationLayers[a.Name]; ok {
					return layer
				}
			}
		}
	}

	return LayerOther
}

// ClassifyPath runs the architecture cascade over a normalized path.
func (c *Classifier) ClassifyPath(path string) Architecture {
	if path == "" {
		return ArchitectureUnknown
	}
	normalized := strings.ReplaceAll(path, "\\", "/")
	for _, ag := range c.archGlobs {
		if ag.g.Match(normalized) {
			return ag.arch
		}
	}
	return ArchitectureUnknown
}

// unitIndicatorNames collects the names tier 2 matches against.
func unitIndicatorNames(unit *ast.CompilationUnit) []string {
	var names []string
	for _, rec := range unit.AllTypes() {
		names = append(names, rec.Name)
		if rec.Extends != "" {
			names = append(names, rec.Extends)
		}
		names = append(names, rec.Implements...)
		for _, a := range rec.Annotations {
			names = append(names, a.Name)
		}
	}
	return names
}
