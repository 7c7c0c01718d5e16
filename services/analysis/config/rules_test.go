// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRules(t *testing.T) {
	rules, err := DefaultRules()

	require.NoError(t, err)
	require.NotNil(t, rules)

	assert.NotEmpty(t, rules.Layers, "embedded defaults carry layer rules")
	assert.NotEmpty(t, rules.Architectures)
	assert.NotEmpty(t, rules.Frameworks)
	assert.NotEmpty(t, rules.LegacyPatterns.FactoryIndicators)
	assert.NotEmpty(t, rules.LegacyPatterns.ManagerIndicators)
	assert.Equal(t, "BaseDataObject", rules.Entity.BaseClass)
	assert.Equal(t, "getTableName", rules.Entity.TableAccessor)
	assert.NotEmpty(t, rules.Sql.ExecutionPatterns)
	assert.Empty(t, rules.Filter.IncludePackages, "filter defaults to pass-through")
}

func TestLoadRulesEmptyRoot(t *testing.T) {
	rules, err := LoadRules("")

	require.NoError(t, err)
	require.NotNil(t, rules)
	assert.NotEmpty(t, rules.Layers)
}

func TestLoadRulesMissingOverrideFile(t *testing.T) {
	rules, err := LoadRules(t.TempDir())

	require.NoError(t, err)
	assert.NotEmpty(t, rules.Layers, "missing override keeps defaults")
}

func TestLoadRulesOverlay(t *testing.T) {
	root := t.TempDir()
	override := `
legacy_patterns:
  factory_indicators:
    - "*Builder"
  manager_indicators:
    - "*Coordinator"
filter:
  include_packages:
    - com.acme
`
	require.NoError(t, os.WriteFile(filepath.Join(root, ProjectConfigFile), []byte(override), 0o644))

	rules, err := LoadRules(root)
	require.NoError(t, err)

	// Overridden sections are replaced wholesale.
	assert.Equal(t, []string{"*Builder"}, rules.LegacyPatterns.FactoryIndicators)
	assert.Equal(t, []string{"*Coordinator"}, rules.LegacyPatterns.ManagerIndicators)
	assert.Equal(t, []string{"com.acme"}, rules.Filter.IncludePackages)

	// Untouched sections keep their defaults.
	assert.NotEmpty(t, rules.Layers)
	assert.Equal(t, "BaseDataObject", rules.Entity.BaseClass)
}

func TestLoadRulesUnknownSectionIgnored(t *testing.T) {
	root := t.TempDir()
	override := "not_a_section:\n  foo: bar\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, ProjectConfigFile), []byte(override), 0o644))

	rules, err := LoadRules(root)
	require.NoError(t, err)
	assert.NotEmpty(t, rules.Layers)
}

func TestLoadRulesInvalidYAML(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ProjectConfigFile), []byte("layers: [unclosed"), 0o644))

	_, err := LoadRules(root)
	assert.Error(t, err)
}

func TestRulesFingerprint(t *testing.T) {
	defaults, err := DefaultRules()
	require.NoError(t, err)
	reloaded, err := LoadRules(t.TempDir())
	require.NoError(t, err)

	fp := defaults.Fingerprint()
	assert.NotEmpty(t, fp)
	assert.Equal(t, fp, reloaded.Fingerprint(), "equal rule sets digest equally")

	root := t.TempDir()
	override := "legacy_patterns:\n  factory_indicators:\n    - \"*Builder\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, ProjectConfigFile), []byte(override), 0o644))
	overridden, err := LoadRules(root)
	require.NoError(t, err)

	assert.NotEqual(t, fp, overridden.Fingerprint(), "any rule change produces a new fingerprint")
}

func TestFrameworkFor(t *testing.T) {
	rules, err := DefaultRules()
	require.NoError(t, err)

	assert.Equal(t, "spring", rules.FrameworkFor("Service"))
	assert.Equal(t, "jaxrs", rules.FrameworkFor("Path"))
	assert.Equal(t, "jpa", rules.FrameworkFor("Entity"))
	assert.Equal(t, "", rules.FrameworkFor("NotAnAnnotation"))
}
