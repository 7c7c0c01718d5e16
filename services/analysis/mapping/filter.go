// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mapping

import "github.com/AleutianAI/relic/services/analysis/config"

// Filter is the optional package-scoped second pass over built edge
// lists. Extraction stays pure; scoping decisions live here.
//
// Semantics: with include prefixes configured, an edge survives only if
// either side falls under one of them. Exclude prefixes then drop edges
// unless an include prefix also claimed a side — include wins on
// collision.
type Filter struct {
	include []string
	exclude []string
}

// NewFilter builds a filter from the configured package rules.
func NewFilter(rules config.FilterRules) *Filter {
	return &Filter{
		include: rules.IncludePackages,
		exclude: rules.ExcludePackages,
	}
}

// Empty reports whether the filter passes everything through.
func (f *Filter) Empty() bool {
	return len(f.include) == 0 && len(f.exclude) == 0
}

// Apply returns the edges that survive the package rules. The input
// slice is never mutated; a pass-through filter returns it unchanged.
func (f *Filter) Apply(edges []CodeMapping) []CodeMapping {
	if f.Empty() {
		return edges
	}

	out := make([]CodeMapping, 0, len(edges))
	for _, edge := range edges {
		if f.keep(edge) {
			out = append(out, edge)
		}
	}
	return out
}

func (f *Filter) keep(edge CodeMapping) bool {
	included := false
	for _, prefix := range f.include {
		if edge.InPackage(prefix) {
			included = true
			break
		}
	}
	if len(f.include) > 0 && !included {
		return false
	}
	if included {
		return true
	}
	for _, prefix := range f.exclude {
		if edge.InPackage(prefix) {
			return false
		}
	}
	return true
}
