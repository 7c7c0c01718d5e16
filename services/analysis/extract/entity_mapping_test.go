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
	"testing"

	"github.com/AleutianAI/relic/services/analysis/ast"
	"github.com/AleutianAI/relic/services/analysis/config"
	"github.com/AleutianAI/relic/services/analysis/resolve"
)

func mustEntityDetector(t *testing.T) *EntityMappingDetector {
	t.Helper()
	rules, err := config.DefaultRules()
	if err != nil {
		t.Fatalf("DefaultRules: %v", err)
	}
	return NewEntityMappingDetector(rules.Entity)
}

func TestLegacyEntityAccessorTable(t *testing.T) {
	unit := &ast.CompilationUnit{
		Package: "com.acme.domain",
		Classes: ast.ClassList{
			{
				Name:    "OrderDO",
				Extends: "BaseDataObject",
				Methods: []*ast.MethodRecord{
					{Name: "getTableName", Body: `{ return "ORDERS_T"; }`},
				},
			},
		},
	}
	rc := resolve.NewContext(unit)

	records := findByKind(mustEntityDetector(t).Extract(unit, rc), KindEntityMapping)
	if len(records) != 1 {
		t.Fatalf("got %d entity mappings, want 1", len(records))
	}
	rec := records[0]
	if rec.Target != "ORDERS_T" {
		t.Errorf("table = %q, want ORDERS_T", rec.Target)
	}
	if rec.Attr("source") != "accessor" {
		t.Errorf("source = %q, want accessor", rec.Attr("source"))
	}

	mapping := unit.Classes[0].EntityMapping
	if mapping == nil || mapping.TableName != "ORDERS_T" {
		t.Errorf("class record not enriched: %+v", mapping)
	}
}

func TestLegacyEntityClassNameFallback(t *testing.T) {
	unit := &ast.CompilationUnit{
		Package: "com.acme.domain",
		Classes: ast.ClassList{
			{Name: "CustomerDO", Extends: "com.acme.core.BaseDataObject"},
		},
	}
	rc := resolve.NewContext(unit)

	records := findByKind(mustEntityDetector(t).Extract(unit, rc), KindEntityMapping)
	if len(records) != 1 {
		t.Fatalf("got %d entity mappings, want 1", len(records))
	}
	rec := records[0]
	if rec.Target != "Customer" {
		t.Errorf("table = %q, want Customer (DO suffix stripped)", rec.Target)
	}
	if rec.Attr("source") != "class_name" {
		t.Errorf("source = %q, want class_name", rec.Attr("source"))
	}
}

func TestJpaEntityTableAnnotation(t *testing.T) {
	unit := &ast.CompilationUnit{
		Package: "com.acme.domain",
		Classes: ast.ClassList{
			{
				Name: "Order",
				Annotations: ast.AnnotationList{
					{Name: "Entity"},
					{Name: "Table", Attributes: map[string]string{"name": "ORDERS"}},
				},
			},
		},
	}
	rc := resolve.NewContext(unit)

	records := findByKind(mustEntityDetector(t).Extract(unit, rc), KindEntityMapping)
	if len(records) != 1 {
		t.Fatalf("got %d entity mappings, want 1", len(records))
	}
	if records[0].Target != "ORDERS" || records[0].Attr("source") != "annotation" {
		t.Errorf("got %q/%q, want ORDERS/annotation",
			records[0].Target, records[0].Attr("source"))
	}
}

func TestJpaEntityWithoutTableAnnotation(t *testing.T) {
	unit := &ast.CompilationUnit{
		Package: "com.acme.domain",
		Classes: ast.ClassList{
			{Name: "Invoice", Annotations: ast.AnnotationList{{Name: "Entity"}}},
		},
	}
	rc := resolve.NewContext(unit)

	records := findByKind(mustEntityDetector(t).Extract(unit, rc), KindEntityMapping)
	if len(records) != 1 {
		t.Fatalf("got %d entity mappings, want 1", len(records))
	}
	if records[0].Target != "Invoice" || records[0].Attr("source") != "class_name" {
		t.Errorf("got %q/%q, want Invoice/class_name",
			records[0].Target, records[0].Attr("source"))
	}
}

func TestJpaRelationships(t *testing.T) {
	unit := &ast.CompilationUnit{
		Package: "com.acme.domain",
		Imports: []ast.Import{{Name: "java.util.List"}},
		Classes: ast.ClassList{
			{
				Name:        "Order",
				Annotations: ast.AnnotationList{{Name: "Entity"}},
				Fields: []*ast.FieldRecord{
					{
						Name:        "lines",
						Type:        "List<OrderLine>",
						Annotations: ast.AnnotationList{{Name: "OneToMany"}},
					},
					{
						Name:        "customer",
						Type:        "Customer",
						Annotations: ast.AnnotationList{{Name: "ManyToOne"}},
					},
					{
						// No association annotation: no record.
						Name: "total",
						Type: "BigDecimal",
					},
				},
			},
		},
	}
	rc := resolve.NewContext(unit)

	records := findByKind(mustEntityDetector(t).Extract(unit, rc), KindJpaRelationship)
	if len(records) != 2 {
		t.Fatalf("got %d jpa relationships, want 2: %+v", len(records), records)
	}

	// Collection association resolves the element type, not the container.
	if records[0].Target != "com.acme.domain.OrderLine" {
		t.Errorf("collection target = %q", records[0].Target)
	}
	if records[0].Attr("relation_type") != "one_to_many" {
		t.Errorf("relation_type = %q", records[0].Attr("relation_type"))
	}
	if records[1].Target != "com.acme.domain.Customer" {
		t.Errorf("scalar target = %q", records[1].Target)
	}
	if records[1].Attr("relation_type") != "many_to_one" {
		t.Errorf("relation_type = %q", records[1].Attr("relation_type"))
	}
}

func TestNonEntityClassIgnored(t *testing.T) {
	unit := &ast.CompilationUnit{
		Package: "com.acme.web",
		Classes: ast.ClassList{
			{Name: "OrderController", Extends: "HttpServlet"},
		},
	}
	rc := resolve.NewContext(unit)

	if records := mustEntityDetector(t).Extract(unit, rc); len(records) != 0 {
		t.Fatalf("got %d records for non-entity class, want 0", len(records))
	}
}
