// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/AleutianAI/relic/services/analysis/ast"
	"github.com/AleutianAI/relic/services/analysis/config"
	"github.com/AleutianAI/relic/services/analysis/resolve"
)

// jpaRelationAnnotations are the field-level JPA association annotations.
var jpaRelationAnnotations = map[string]string{
	"OneToOne":   "one_to_one",
	"OneToMany":  "one_to_many",
	"ManyToOne":  "many_to_one",
	"ManyToMany": "many_to_many",
}

// EntityMappingDetector links entity classes to their database tables.
//
// Description:
//
//	Two conventions are recognized. The legacy convention matches classes
//	extending the configured base data-object class: the table name is
//	read from the return literal of the configured accessor method, with
//	a class-name fallback that strips the configured suffix. The JPA
//	convention matches @Entity classes, preferring the @Table name
//	attribute and falling back to the class name. Field-level JPA
//	association annotations additionally emit jpa_relationship records.
//
//	Detected mappings are attached to the class record, so the enriched
//	unit the engine returns carries them.
//
// Thread Safety: Immutable after construction, safe for concurrent use.
type EntityMappingDetector struct {
	baseClass     string
	tableAccessor string
	tableReturn   *regexp.Regexp
	tableSuffix   string
}

// NewEntityMappingDetector compiles the configured entity rules. An
// invalid table-return pattern is logged and disables accessor-based
// derivation; the class-name fallback still applies.
func NewEntityMappingDetector(rules config.EntityRules) *EntityMappingDetector {
	d := &EntityMappingDetector{
		baseClass:     rules.BaseClass,
		tableAccessor: rules.TableAccessor,
		tableSuffix:   rules.TableSuffix,
	}
	if rules.TableReturnPattern != "" {
		re, err := regexp.Compile(rules.TableReturnPattern)
		if err != nil {
			slog.Warn("Dropping invalid table return pattern",
				slog.String("pattern", rules.TableReturnPattern),
				slog.String("error", err.Error()),
			)
		} else {
			d.tableReturn = re
		}
	}
	return d
}

func (d *EntityMappingDetector) Name() string { return "entity_mapping" }

func (d *EntityMappingDetector) Extract(unit *ast.CompilationUnit, rc *resolve.Context) []Relationship {
	var out []Relationship
	for _, class := range unit.AllTypes() {
		owner := qualifiedOwner(unit, class)

		if mapping, ok := d.legacyMapping(owner, class); ok {
			class.EntityMapping = &mapping
			out = append(out, entityRelationship(owner, class.StartLine, mapping))
		} else if mapping, ok := d.jpaMapping(owner, class); ok {
			class.EntityMapping = &mapping
			out = append(out, entityRelationship(owner, class.StartLine, mapping))
		}

		out = append(out, d.jpaRelationships(owner, class, rc)...)
	}
	return out
}

// legacyMapping detects the base-data-object convention.
func (d *EntityMappingDetector) legacyMapping(owner string, class *ast.ClassRecord) (ast.EntityMapping, bool) {
	if d.baseClass == "" || simpleName(class.Extends) != d.baseClass {
		return ast.EntityMapping{}, false
	}

	if table, ok := d.accessorTable(class); ok {
		return ast.EntityMapping{ClassName: owner, TableName: table, Source: "accessor"}, true
	}

	table := strings.TrimSuffix(class.Name, d.tableSuffix)
	if table == "" {
		table = class.Name
	}
	return ast.EntityMapping{ClassName: owner, TableName: table, Source: "class_name"}, true
}

// accessorTable reads the table literal out of the accessor method body.
func (d *EntityMappingDetector) accessorTable(class *ast.ClassRecord) (string, bool) {
	if d.tableReturn == nil || d.tableAccessor == "" {
		return "", false
	}
	for _, method := range class.Methods {
		if method.Name != d.tableAccessor || method.Body == "" {
			continue
		}
		if m := d.tableReturn.FindStringSubmatch(method.Body); m != nil && m[1] != "" {
			return m[1], true
		}
	}
	return "", false
}

// jpaMapping detects the @Entity/@Table convention.
func (d *EntityMappingDetector) jpaMapping(owner string, class *ast.ClassRecord) (ast.EntityMapping, bool) {
	if _, ok := class.Annotations.ByName("Entity"); !ok {
		return ast.EntityMapping{}, false
	}

	table := class.Name
	source := "class_name"
	if tableAnn, ok := class.Annotations.ByName("Table"); ok {
		if name := firstNonEmpty(tableAnn.Attr("name"), tableAnn.Attr("value")); name != "" {
			table = name
			source = "annotation"
		}
	}
	return ast.EntityMapping{ClassName: owner, TableName: table, Source: source}, true
}

func (d *EntityMappingDetector) jpaRelationships(owner string, class *ast.ClassRecord, rc *resolve.Context) []Relationship {
	var out []Relationship
	for _, field := range class.Fields {
		for _, ann := range field.Annotations {
			relation, ok := jpaRelationAnnotations[ann.Name]
			if !ok {
				continue
			}
			target, ok := jpaTargetType(field, rc)
			if !ok {
				continue
			}
			out = append(out, Relationship{
				Kind:       KindJpaRelationship,
				Provenance: ProvenanceStructural,
				Owner:      owner,
				Target:     target,
				Attributes: map[string]string{
					"relation_type": relation,
					"field_name":    field.Name,
				},
			})
			break
		}
	}
	return out
}

// jpaTargetType resolves the associated entity type. Collection-typed
// associations (List<Order>) resolve the element type.
func jpaTargetType(field *ast.FieldRecord, rc *resolve.Context) (string, bool) {
	base, suffix := resolve.SplitGeneric(field.Type)
	if wellKnownTypes[base] && strings.HasPrefix(suffix, "<") && strings.HasSuffix(suffix, ">") {
		element := strings.TrimSpace(suffix[1 : len(suffix)-1])
		if element != "" && !strings.ContainsAny(element, ",<") {
			return rc.Resolve(element), true
		}
	}
	return resolveBase(field.Type, rc)
}

func entityRelationship(owner string, line int, mapping ast.EntityMapping) Relationship {
	return Relationship{
		Kind:       KindEntityMapping,
		Provenance: ProvenanceStructural,
		Owner:      owner,
		Target:     mapping.TableName,
		Line:       line,
		Attributes: map[string]string{
			"table_name": mapping.TableName,
			"source":     mapping.Source,
		},
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
