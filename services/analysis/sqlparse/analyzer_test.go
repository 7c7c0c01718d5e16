// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sqlparse

import (
	"reflect"
	"testing"
)

func TestAnalyzeStatementTypes(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		wantType string
		wantObjs []string
		wantProc bool
	}{
		{
			name:     "select with join",
			sql:      "SELECT o.id FROM orders o JOIN customers c ON o.cust_id = c.id",
			wantType: StatementSelect,
			wantObjs: []string{"orders", "customers"},
		},
		{
			name:     "insert",
			sql:      "INSERT INTO order_items (id, qty) VALUES (?, ?)",
			wantType: StatementInsert,
			wantObjs: []string{"order_items"},
		},
		{
			name:     "update",
			sql:      "UPDATE orders SET status = ? WHERE id = ?",
			wantType: StatementUpdate,
			wantObjs: []string{"orders"},
		},
		{
			name:     "delete",
			sql:      "DELETE FROM order_items WHERE order_id = ?",
			wantType: StatementDelete,
			wantObjs: []string{"order_items"},
		},
		{
			name:     "exec procedure",
			sql:      "EXEC sp_recalc_totals @order_id = ?",
			wantType: StatementExec,
			wantObjs: []string{"sp_recalc_totals"},
			wantProc: true,
		},
		{
			name:     "call procedure",
			sql:      "CALL refresh_summary()",
			wantType: StatementExec,
			wantObjs: []string{"refresh_summary"},
			wantProc: true,
		},
		{
			name:     "ddl",
			sql:      "CREATE TABLE audit_log (id INT)",
			wantType: StatementDDL,
			wantObjs: []string{"audit_log"},
		},
		{
			name:     "bracket quoted tsql",
			sql:      "SELECT * FROM [dbo].[Orders]",
			wantType: StatementSelect,
			wantObjs: []string{"dbo.Orders"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, ok := Analyze(tt.sql, "tsql")
			if !ok {
				t.Fatalf("Analyze(%q) not recognized", tt.sql)
			}
			if info.Type != tt.wantType {
				t.Errorf("type = %q, want %q", info.Type, tt.wantType)
			}
			if !reflect.DeepEqual(info.Objects, tt.wantObjs) {
				t.Errorf("objects = %v, want %v", info.Objects, tt.wantObjs)
			}
			if info.Procedure != tt.wantProc {
				t.Errorf("procedure = %v, want %v", info.Procedure, tt.wantProc)
			}
			if info.Dialect != "tsql" {
				t.Errorf("dialect = %q, want tsql", info.Dialect)
			}
		})
	}
}

func TestAnalyzeUnrecognizable(t *testing.T) {
	for _, sql := range []string{"", "   ", "hello world", "// not sql"} {
		if info, ok := Analyze(sql, "tsql"); ok {
			t.Errorf("Analyze(%q) = %+v, want not recognized", sql, info)
		}
	}
}

func TestAnalyzeDeduplicatesObjects(t *testing.T) {
	info, ok := Analyze("SELECT * FROM orders o JOIN orders p ON o.id = p.parent_id", "tsql")
	if !ok {
		t.Fatal("not recognized")
	}
	if !reflect.DeepEqual(info.Objects, []string{"orders"}) {
		t.Errorf("objects = %v, want [orders]", info.Objects)
	}
}
