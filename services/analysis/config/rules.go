// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the analysis rule set that drives classification,
// legacy pattern mining, entity detection and embedded SQL scanning.
//
// Rules ship as an embedded default document; a project may override any
// top-level section via <projectRoot>/relic.config.yaml. A missing override
// file is not an error, and a missing section disables only the tier that
// consumes it — never the whole analysis.
package config

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Default Rules
// =============================================================================

//go:embed analysis_rules.yaml
var defaultRulesYAML []byte

// ProjectConfigFile is the per-project override file name.
const ProjectConfigFile = "relic.config.yaml"

// =============================================================================
// Rule Types
// =============================================================================

// Rules is the full analysis rule set.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Rules struct {
	// Layers holds the ordered package-glob and content-indicator rules
	// for layer classification. Order is precedence order.
	Layers []LayerRule `yaml:"layers"`

	// Architectures holds the ordered path-glob rules for architecture
	// classification.
	Architectures []ArchitectureRule `yaml:"architectures"`

	// Frameworks maps framework annotations to layers and tags extracted
	// annotations with their owning framework.
	Frameworks []FrameworkRule `yaml:"frameworks"`

	// LegacyPatterns configures the legacy manager/factory miner.
	LegacyPatterns LegacyPatternRules `yaml:"legacy_patterns"`

	// Entity configures the legacy entity-mapping detector.
	Entity EntityRules `yaml:"entity"`

	// Sql configures the embedded SQL detector.
	Sql SqlRules `yaml:"sql"`

	// Filter configures the optional package include/exclude pass applied
	// over built CodeMapping lists.
	Filter FilterRules `yaml:"filter"`
}

// LayerRule classifies compilation units into one architectural layer.
type LayerRule struct {
	// Layer is the layer tag this rule assigns ("service", "domain", ...).
	Layer string `yaml:"layer"`

	// Packages holds package glob patterns: "**" crosses dots, "*" stays
	// within one segment, matches are fully anchored.
	Packages []string `yaml:"packages"`

	// Indicators holds content indicators matched against class names and
	// annotation names: a literal, or a wildcard-delimited "*pattern*"
	// substring form.
	Indicators []string `yaml:"indicators"`
}

// ArchitectureRule classifies file paths into one architecture tag.
type ArchitectureRule struct {
	// Architecture is the tag this rule assigns ("web", "batch", ...).
	Architecture string `yaml:"architecture"`

	// Paths holds forward-slash path glob patterns.
	Paths []string `yaml:"paths"`
}

// FrameworkRule maps one framework's annotations to layers.
type FrameworkRule struct {
	// Framework is the framework tag ("spring", "jaxrs", "jpa", "ejb").
	Framework string `yaml:"framework"`

	// Annotations maps annotation simple names (without "@") to layer tags.
	Annotations map[string]string `yaml:"annotations"`
}

// LegacyPatternRules configures the manager/factory pattern miner.
//
// Indicator lists accept four dialects: "*suffix", "prefix*", "*contains*"
// and "re:<regexp>". A bare string is an exact match.
type LegacyPatternRules struct {
	// FactoryIndicators match static factory method names.
	FactoryIndicators []string `yaml:"factory_indicators"`

	// ManagerIndicators match manager interface and manager type names.
	ManagerIndicators []string `yaml:"manager_indicators"`
}

// EntityRules configures the legacy entity-mapping detector.
type EntityRules struct {
	// BaseClass is the fixed legacy base type entity classes extend.
	BaseClass string `yaml:"base_class"`

	// TableAccessor is the conventional table-name accessor method name.
	TableAccessor string `yaml:"table_accessor"`

	// TableReturnPattern is the regexp extracting the table literal from
	// the accessor body. Capture group 1 is the table name.
	TableReturnPattern string `yaml:"table_return_pattern"`

	// TableSuffix is stripped from the class name as the fallback table
	// name derivation.
	TableSuffix string `yaml:"table_suffix"`
}

// SqlRules configures the embedded SQL detector.
type SqlRules struct {
	// Dialect is passed to the SQL statement analyzer.
	Dialect string `yaml:"dialect"`

	// ExecutionPatterns are regexps matching SQL-literal execution calls.
	// Capture group 1 is the SQL text.
	ExecutionPatterns []string `yaml:"execution_patterns"`

	// ProcedurePatterns are regexps matching dynamic stored-procedure-name
	// construction. Capture group 1 is the name-bearing expression.
	ProcedurePatterns []string `yaml:"procedure_patterns"`
}

// FilterRules configures the post-extraction package filter.
type FilterRules struct {
	// IncludePackages limits emitted mappings to these package prefixes
	// when non-empty.
	IncludePackages []string `yaml:"include_packages"`

	// ExcludePackages drops mappings whose references match these
	// package prefixes. Include wins on collision.
	ExcludePackages []string `yaml:"exclude_packages"`
}

// =============================================================================
// Loading
// =============================================================================

// DefaultRules parses the embedded default rule document.
//
// Outputs:
//
//	*Rules - The default rule set. Never nil on success.
//	error  - Non-nil only if the embedded document is invalid, which is a
//	         build defect rather than a runtime condition.
func DefaultRules() (*Rules, error) {
	var rules Rules
	if err := yaml.Unmarshal(defaultRulesYAML, &rules); err != nil {
		return nil, fmt.Errorf("parsing embedded analysis rules: %w", err)
	}
	return &rules, nil
}

// LoadRules returns the effective rule set for a project.
//
// Description:
//
//	Starts from the embedded defaults and overlays any top-level sections
//	present in <projectRoot>/relic.config.yaml. Sections present in the
//	override file replace the default section wholesale; absent sections
//	keep their defaults. An empty projectRoot or a missing file yields the
//	defaults with no error.
//
// Inputs:
//
//	projectRoot - Absolute or relative project root. May be empty.
//
// Outputs:
//
//	*Rules - The effective rule set. Never nil on success.
//	error  - Non-nil only if an existing override file cannot be read or
//	         parsed.
//
// Thread Safety: Safe for concurrent use (stateless function).
func LoadRules(projectRoot string) (*Rules, error) {
	rules, err := DefaultRules()
	if err != nil {
		return nil, err
	}
	if projectRoot == "" {
		return rules, nil
	}

	path := filepath.Join(projectRoot, ProjectConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return rules, nil
		}
		return nil, fmt.Errorf("reading %s: %w", ProjectConfigFile, err)
	}

	if err := overlay(rules, data); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ProjectConfigFile, err)
	}

	slog.Info("Loaded project analysis rule overrides",
		slog.String("path", path),
	)
	return rules, nil
}

// overlay replaces sections of rules with the sections present in data.
func overlay(rules *Rules, data []byte) error {
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}

	for key, node := range doc {
		node := node
		var err error
		switch key {
		case "layers":
			rules.Layers = nil
			err = node.Decode(&rules.Layers)
		case "architectures":
			rules.Architectures = nil
			err = node.Decode(&rules.Architectures)
		case "frameworks":
			rules.Frameworks = nil
			err = node.Decode(&rules.Frameworks)
		case "legacy_patterns":
			rules.LegacyPatterns = LegacyPatternRules{}
			err = node.Decode(&rules.LegacyPatterns)
		case "entity":
			rules.Entity = EntityRules{}
			err = node.Decode(&rules.Entity)
		case "sql":
			rules.Sql = SqlRules{}
			err = node.Decode(&rules.Sql)
		case "filter":
			rules.Filter = FilterRules{}
			err = node.Decode(&rules.Filter)
		default:
			slog.Warn("Ignoring unknown rule section",
				slog.String("section", key),
			)
		}
		if err != nil {
			return fmt.Errorf("section %q: %w", key, err)
		}
	}
	return nil
}

// Fingerprint returns a stable digest of the effective rule set.
//
// Description:
//
//	Cached analysis results are keyed by file content plus this digest,
//	so editing any rule — embedded default or project override —
//	invalidates every entry computed under the old rules. yaml.Marshal
//	emits map keys in sorted order, so equal rule sets always digest
//	equally.
func (r *Rules) Fingerprint() string {
	data, err := yaml.Marshal(r)
	if err != nil {
		// Rules are plain data; marshal failure would be a build defect.
		// An empty fingerprint degrades to content-only cache keys.
		slog.Warn("Rule fingerprint unavailable", slog.String("error", err.Error()))
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FrameworkFor returns the framework tag owning an annotation name, or "".
func (r *Rules) FrameworkFor(annotation string) string {
	for _, fw := range r.Frameworks {
		if _, ok := fw.Annotations[annotation]; ok {
			return fw.Framework
		}
	}
	return ""
}
