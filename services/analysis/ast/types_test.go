// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"encoding/json"
	"testing"
)

func TestClassListDropsMalformedElements(t *testing.T) {
	payload := `{
		"file_path": "src/Order.java",
		"package": "com.acme",
		"classes": [
			{"name": "Order", "start_line": 3},
			"BareClassName",
			42,
			null,
			{"name": "OrderLine"}
		]
	}`

	var unit CompilationUnit
	if err := json.Unmarshal([]byte(payload), &unit); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(unit.Classes) != 2 {
		t.Fatalf("got %d classes, want 2 (malformed dropped): %+v", len(unit.Classes), unit.Classes)
	}
	if unit.Classes[0].Name != "Order" || unit.Classes[1].Name != "OrderLine" {
		t.Errorf("classes = %q, %q", unit.Classes[0].Name, unit.Classes[1].Name)
	}
}

func TestAnnotationForms(t *testing.T) {
	payload := `{
		"name": "Order",
		"annotations": [
			"@Entity",
			{"name": "Table", "attributes": {"name": "ORDERS"}},
			{"name": "@Deprecated"},
			7,
			["nested"]
		]
	}`

	var rec ClassRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(rec.Annotations) != 3 {
		t.Fatalf("got %d annotations, want 3: %+v", len(rec.Annotations), rec.Annotations)
	}
	if rec.Annotations[0].Name != "Entity" {
		t.Errorf("bare string name = %q, want leading @ stripped", rec.Annotations[0].Name)
	}
	if rec.Annotations[1].Attr("name") != "ORDERS" {
		t.Errorf("attribute = %q", rec.Annotations[1].Attr("name"))
	}
	if rec.Annotations[2].Name != "Deprecated" {
		t.Errorf("object name = %q, want leading @ stripped", rec.Annotations[2].Name)
	}
	if rec.Annotations[0].Attr("missing") != "" {
		t.Error("absent attribute should read as empty")
	}
}

func TestAnnotationListByName(t *testing.T) {
	list := AnnotationList{
		{Name: "Entity"},
		{Name: "Table", Attributes: map[string]string{"name": "ORDERS"}},
	}

	ann, ok := list.ByName("Table")
	if !ok || ann.Attr("name") != "ORDERS" {
		t.Errorf("ByName(Table) = %+v, %v", ann, ok)
	}
	if _, ok := list.ByName("Column"); ok {
		t.Error("ByName matched an absent annotation")
	}
}

func TestAllTypesAndPrimaryClass(t *testing.T) {
	unit := &CompilationUnit{
		Classes:    ClassList{{Name: "Order"}},
		Interfaces: ClassList{{Name: "Auditable", IsInterface: true}},
	}

	all := unit.AllTypes()
	if len(all) != 2 {
		t.Fatalf("got %d types, want 2", len(all))
	}
	if all[0].Name != "Order" || all[1].Name != "Auditable" {
		t.Errorf("order = %q, %q, want classes before interfaces", all[0].Name, all[1].Name)
	}
	if unit.PrimaryClass() != "Order" {
		t.Errorf("primary = %q", unit.PrimaryClass())
	}

	ifaceOnly := &CompilationUnit{Interfaces: ClassList{{Name: "Auditable"}}}
	if ifaceOnly.PrimaryClass() != "Auditable" {
		t.Errorf("interface-only primary = %q", ifaceOnly.PrimaryClass())
	}

	var nilUnit *CompilationUnit
	if nilUnit.AllTypes() != nil || nilUnit.PrimaryClass() != "" {
		t.Error("nil unit accessors should degrade to zero values")
	}
}

func TestImportSimpleName(t *testing.T) {
	tests := []struct {
		imp  Import
		want string
	}{
		{Import{Name: "com.acme.util.Helper"}, "Helper"},
		{Import{Name: "Helper"}, "Helper"},
		{Import{Name: "com.acme.dao.*", Wildcard: true}, ""},
	}
	for _, tt := range tests {
		if got := tt.imp.SimpleName(); got != tt.want {
			t.Errorf("SimpleName(%q) = %q, want %q", tt.imp.Name, got, tt.want)
		}
	}
}

func TestMethodIsStatic(t *testing.T) {
	static := &MethodRecord{Modifiers: []string{"final", "static"}}
	if !static.IsStatic() {
		t.Error("static modifier not detected")
	}
	instance := &MethodRecord{Modifiers: []string{"final"}}
	if instance.IsStatic() {
		t.Error("non-static method reported static")
	}
}
