// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extract implements the relationship extractors: the five core
// extractors (method calls, field references, inheritance, annotation
// dependency injection, framework relationships), the legacy
// manager/factory pattern miner, the embedded SQL detector, and the
// annotation-driven single-purpose extractors (entity mapping, REST
// endpoints, security roles, AOP pointcuts).
//
// Every extractor exposes the same shape: given one compilation unit and
// its resolution context, return a fresh list of flat relationship
// records. Extractors are mutually independent and free of shared state,
// so the engine may run them in any order or concurrently.
package extract

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/AleutianAI/relic/services/analysis/ast"
	"github.com/AleutianAI/relic/services/analysis/resolve"
)

// Kind tags a relationship record with its extraction family.
type Kind string

// The closed set of relationship kinds.
const (
	KindMethodCall           Kind = "method_call"
	KindFieldReference       Kind = "field_reference"
	KindInheritance          Kind = "inheritance"
	KindAnnotationDependency Kind = "annotation_dependency"
	KindFrameworkRelation    Kind = "framework_relationship"
	KindEntityMapping        Kind = "entity_mapping"
	KindJpaRelationship      Kind = "jpa_relationship"
	KindSqlExecution         Kind = "sql_execution"
	KindRestEndpoint         Kind = "rest_endpoint"
	KindSecurityRole         Kind = "security_role"
	KindAopPointcut          Kind = "aop_pointcut"
	KindFactoryMethod        Kind = "factory_method"
	KindManagerInterface     Kind = "manager_interface"
	KindManagerUsage         Kind = "manager_usage"
	KindOrchestration        Kind = "orchestration"
)

// Provenance records which path produced a relationship.
type Provenance string

const (
	// ProvenanceStructural marks records read from parsed structure.
	ProvenanceStructural Provenance = "structural"

	// ProvenanceHeuristic marks records recovered by text patterns when
	// the structural path yielded nothing usable.
	ProvenanceHeuristic Provenance = "heuristic-fallback"
)

// Relationship is one flat extracted record.
//
// Invariant: Owner and Target are fully-qualified where resolution
// succeeded and the literal simple name otherwise — never empty when the
// record reaches the mapping emitter (the emitter substitutes the unit's
// primary class for empty owners).
//
// Thread Safety: Records are value-ish data; extractors return fresh
// slices and never retain them.
type Relationship struct {
	// Kind is the extraction family tag.
	Kind Kind `json:"kind"`

	// Provenance records the extraction path.
	Provenance Provenance `json:"provenance"`

	// Owner is the owning class reference (FQN where resolvable).
	Owner string `json:"owner,omitempty"`

	// Target is the referenced entity: a type FQN, a table name, a URL
	// path, a role name — whatever the kind references.
	Target string `json:"target"`

	// Line is the 1-based source line where known, 0 otherwise.
	Line int `json:"line,omitempty"`

	// Attributes carries kind-specific string attributes.
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Attr returns the named attribute, or "".
func (r Relationship) Attr(key string) string {
	if r.Attributes == nil {
		return ""
	}
	return r.Attributes[key]
}

// Extractor is the uniform extractor shape the engine sequences.
type Extractor interface {
	// Name identifies the extraction stage in logs, metrics and stage
	// errors.
	Name() string

	// Extract returns a fresh list of relationship records for one unit.
	// Implementations must not retain unit or rc past the call.
	Extract(unit *ast.CompilationUnit, rc *resolve.Context) []Relationship
}

// =============================================================================
// Indicator Matching
// =============================================================================

// indicatorDialect distinguishes the four configured indicator forms.
type indicatorDialect int

const (
	dialectExact indicatorDialect = iota
	dialectSuffix
	dialectPrefix
	dialectContains
	dialectRegex
)

// indicatorMatcher is one compiled legacy-pattern indicator.
//
// The four dialects: "*suffix" matches a trailing fragment, "prefix*" a
// leading fragment, "*contains*" any substring, and "re:<expr>" a full
// regular expression. Anything else matches exactly.
type indicatorMatcher struct {
	dialect indicatorDialect
	value   string
	re      *regexp.Regexp
}

func (m indicatorMatcher) matches(s string) bool {
	switch m.dialect {
	case dialectSuffix:
		return strings.HasSuffix(s, m.value)
	case dialectPrefix:
		return strings.HasPrefix(s, m.value)
	case dialectContains:
		return strings.Contains(s, m.value)
	case dialectRegex:
		return m.re.MatchString(s)
	default:
		return s == m.value
	}
}

// compileIndicators compiles a configured indicator list. Invalid regex
// dialect entries are logged and dropped, never fatal.
func compileIndicators(patterns []string) []indicatorMatcher {
	out := make([]indicatorMatcher, 0, len(patterns))
	for _, pattern := range patterns {
		switch {
		case strings.HasPrefix(pattern, "re:"):
			re, err := regexp.Compile(pattern[3:])
			if err != nil {
				slog.Warn("Dropping invalid indicator regex",
					slog.String("pattern", pattern),
					slog.String("error", err.Error()),
				)
				continue
			}
			out = append(out, indicatorMatcher{dialect: dialectRegex, re: re})
		case len(pattern) > 2 && strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*"):
			out = append(out, indicatorMatcher{dialect: dialectContains, value: pattern[1 : len(pattern)-1]})
		case strings.HasPrefix(pattern, "*"):
			out = append(out, indicatorMatcher{dialect: dialectSuffix, value: pattern[1:]})
		case strings.HasSuffix(pattern, "*"):
			out = append(out, indicatorMatcher{dialect: dialectPrefix, value: pattern[:len(pattern)-1]})
		default:
			out = append(out, indicatorMatcher{dialect: dialectExact, value: pattern})
		}
	}
	return out
}

// anyMatch reports whether any matcher accepts the string.
func anyMatch(matchers []indicatorMatcher, s string) bool {
	for _, m := range matchers {
		if m.matches(s) {
			return true
		}
	}
	return false
}

// =============================================================================
// Shared Helpers
// =============================================================================

// qualifiedOwner returns the package-qualified name of a class record.
func qualifiedOwner(unit *ast.CompilationUnit, rec *ast.ClassRecord) string {
	if unit.Package == "" {
		return rec.Name
	}
	return unit.Package + "." + rec.Name
}

// parseStringList splits an annotation attribute that may be a single
// literal or a brace-wrapped array ("{\"A\", \"B\"}") into clean values.
func parseStringList(raw string) []string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "{")
	raw = strings.TrimSuffix(raw, "}")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		v := strings.Trim(strings.TrimSpace(part), `"`)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
