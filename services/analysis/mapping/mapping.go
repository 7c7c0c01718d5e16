// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package mapping defines the CodeMapping edge model and the emitter that
// folds extracted relationship records into it, plus the optional
// package-scoped filter pass.
package mapping

import "strings"

// Type is a CodeMapping edge type. The set is closed: the emitter only
// produces these values and downstream consumers may switch exhaustively.
type Type string

const (
	TypeMethodCall       Type = "method_call"
	TypeInheritance      Type = "inheritance"
	TypeInterfaceImpl    Type = "interface_implementation"
	TypeDependencyInject Type = "dependency_injection"
	TypeFieldReference   Type = "field_reference"
	TypeJpaRelationship  Type = "jpa_relationship"
	TypeManagerFactory   Type = "manager_factory"
	TypeEntityTable      Type = "entity_table_mapping"
	TypeSqlTableAccess   Type = "sql_table_access"
	TypeStoredProcedure  Type = "stored_procedure_call"
	TypeRestEndpoint     Type = "rest_endpoint"
	TypeAopAdvice        Type = "aop_advice"
	TypeFactoryMethod    Type = "factory_method"
	TypeServiceDep       Type = "service_dependency"
	TypeOrchestration    Type = "orchestration"
	TypeSecurity         Type = "security"
)

// Category is the coarse semantic classification of an edge.
type Category string

const (
	CategoryEntryPoint   Category = "ENTRY_POINT"
	CategoryDataAccess   Category = "DATA_ACCESS"
	CategoryComposition  Category = "COMPOSITION"
	CategoryInheritance  Category = "INHERITANCE"
	CategoryMethodCall   Category = "METHOD_CALL"
	CategoryCrossCutting Category = "CROSS_CUTTING"
	CategoryViewRender   Category = "VIEW_RENDER"
)

// CodeMapping is one typed edge in the cross-file relationship graph.
//
// Invariant: FromReference and ToReference are never empty. Unresolved
// references carry the literal simple name rather than an empty string,
// so a consumer can always render the edge.
type CodeMapping struct {
	// FromReference is the owning side, fully qualified where resolvable.
	FromReference string `json:"from_reference"`

	// ToReference is the referenced side: a type FQN, table name, URL
	// path, role name or pointcut expression depending on MappingType.
	ToReference string `json:"to_reference"`

	// MappingType is the closed edge type tag.
	MappingType Type `json:"mapping_type"`

	// SemanticCategory is the coarse edge classification.
	SemanticCategory Category `json:"semantic_category"`

	// Framework names the framework a service_dependency edge belongs to,
	// "" for all other types.
	Framework string `json:"framework,omitempty"`

	// SourceFile is the analyzed file path the edge came from.
	SourceFile string `json:"source_file,omitempty"`

	// LineNumber is the 1-based source line where known, 0 otherwise.
	LineNumber int `json:"line_number,omitempty"`

	// Attributes carries the per-type attribute schema. All values are
	// pre-stringified for uniform serialization.
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Attr returns the named attribute, or "".
func (m CodeMapping) Attr(key string) string {
	if m.Attributes == nil {
		return ""
	}
	return m.Attributes[key]
}

// InPackage reports whether either side of the edge falls under the given
// package prefix. Prefix matching is segment-aware: "com.acme" matches
// "com.acme.Order" but not "com.acmeco.Order".
func (m CodeMapping) InPackage(prefix string) bool {
	return underPackage(m.FromReference, prefix) || underPackage(m.ToReference, prefix)
}

func underPackage(ref, prefix string) bool {
	if prefix == "" {
		return false
	}
	return ref == prefix || strings.HasPrefix(ref, prefix+".")
}
