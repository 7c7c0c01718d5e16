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

import (
	"strconv"

	"github.com/AleutianAI/relic/services/analysis/ast"
	"github.com/AleutianAI/relic/services/analysis/extract"
)

// edgeShape is one row of the kind lookup table.
type edgeShape struct {
	mappingType Type
	category    Category
}

// kindTable is the fixed relationship-kind lookup. Kinds whose mapping
// type depends on a record attribute (inheritance, sql_execution) are
// special-cased in Emit.
var kindTable = map[extract.Kind]edgeShape{
	extract.KindMethodCall:           {TypeMethodCall, CategoryMethodCall},
	extract.KindFieldReference:       {TypeFieldReference, CategoryComposition},
	extract.KindAnnotationDependency: {TypeDependencyInject, CategoryComposition},
	extract.KindFrameworkRelation:    {TypeServiceDep, CategoryComposition},
	extract.KindEntityMapping:        {TypeEntityTable, CategoryDataAccess},
	extract.KindJpaRelationship:      {TypeJpaRelationship, CategoryDataAccess},
	extract.KindRestEndpoint:         {TypeRestEndpoint, CategoryEntryPoint},
	extract.KindSecurityRole:         {TypeSecurity, CategoryCrossCutting},
	extract.KindAopPointcut:          {TypeAopAdvice, CategoryCrossCutting},
	extract.KindFactoryMethod:        {TypeFactoryMethod, CategoryComposition},
	extract.KindManagerInterface:     {TypeInterfaceImpl, CategoryInheritance},
	extract.KindManagerUsage:         {TypeManagerFactory, CategoryComposition},
	extract.KindOrchestration:        {TypeOrchestration, CategoryComposition},
}

// Emitter folds relationship records into CodeMapping edges.
//
// Description:
//
//	Each record maps through the fixed kind table to its edge type and
//	semantic category. An empty owner falls back to the unit's primary
//	class reference so from_reference is never empty; an empty target
//	should not occur but degrades to "<unknown>" rather than emitting an
//	invalid edge. The record's provenance tag and kind-specific
//	attributes are carried onto the edge attribute map; all values are
//	strings already, so no serialization branching exists downstream.
//
// Thread Safety: Stateless, safe for concurrent use.
type Emitter struct{}

// NewEmitter returns an Emitter.
func NewEmitter() *Emitter { return &Emitter{} }

// Emit folds one unit's merged relationship records into edges. The
// returned slice preserves extraction insertion order.
func (e *Emitter) Emit(unit *ast.CompilationUnit, records []extract.Relationship) []CodeMapping {
	if len(records) == 0 {
		return nil
	}

	defaultFrom := unit.PrimaryClass()
	if defaultFrom != "" && unit.Package != "" {
		defaultFrom = unit.Package + "." + defaultFrom
	}

	out := make([]CodeMapping, 0, len(records))
	for _, rec := range records {
		shape, ok := e.shapeFor(rec)
		if !ok {
			continue
		}

		from := rec.Owner
		if from == "" {
			from = defaultFrom
		}
		if from == "" {
			from = unit.FilePath
		}
		to := rec.Target
		if to == "" {
			to = "<unknown>"
		}

		edge := CodeMapping{
			FromReference:    from,
			ToReference:      to,
			MappingType:      shape.mappingType,
			SemanticCategory: shape.category,
			SourceFile:       unit.FilePath,
			LineNumber:       rec.Line,
			Attributes:       edgeAttributes(rec),
		}
		if rec.Kind == extract.KindFrameworkRelation {
			edge.Framework = rec.Attr("framework")
		}
		out = append(out, edge)
	}
	return out
}

// shapeFor resolves the edge shape, handling the attribute-dependent
// kinds the static table cannot express.
func (e *Emitter) shapeFor(rec extract.Relationship) (edgeShape, bool) {
	switch rec.Kind {
	case extract.KindInheritance:
		if rec.Attr("relation") == "implements" {
			return edgeShape{TypeInterfaceImpl, CategoryInheritance}, true
		}
		return edgeShape{TypeInheritance, CategoryInheritance}, true

	case extract.KindSqlExecution:
		if rec.Attr("stored_procedure") == strconv.FormatBool(true) {
			return edgeShape{TypeStoredProcedure, CategoryDataAccess}, true
		}
		return edgeShape{TypeSqlTableAccess, CategoryDataAccess}, true

	default:
		shape, ok := kindTable[rec.Kind]
		return shape, ok
	}
}

// edgeAttributes copies the record attributes and adds the provenance tag.
func edgeAttributes(rec extract.Relationship) map[string]string {
	attrs := make(map[string]string, len(rec.Attributes)+1)
	for k, v := range rec.Attributes {
		attrs[k] = v
	}
	attrs["provenance"] = string(rec.Provenance)
	return attrs
}
