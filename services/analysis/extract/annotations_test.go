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
	"github.com/AleutianAI/relic/services/analysis/resolve"
)

func ann(name string, attrs map[string]string) ast.Annotation {
	return ast.Annotation{Name: name, Attributes: attrs}
}

// =============================================================================
// REST Endpoints
// =============================================================================

func TestJaxrsEndpoint(t *testing.T) {
	unit := &ast.CompilationUnit{
		Package: "com.acme.api",
		Classes: ast.ClassList{
			{
				Name: "OrderResource",
				Annotations: ast.AnnotationList{
					ann("Path", map[string]string{"value": "/orders"}),
				},
				Methods: []*ast.MethodRecord{
					{
						Name:      "getOrder",
						StartLine: 15,
						Annotations: ast.AnnotationList{
							{Name: "GET"},
							ann("Path", map[string]string{"value": "{id}"}),
							ann("Produces", map[string]string{"value": `{"application/json", "application/xml"}`}),
						},
					},
				},
			},
		},
	}
	rc := resolve.NewContext(unit)

	records := (&RestEndpointExtractor{}).Extract(unit, rc)
	if len(records) != 1 {
		t.Fatalf("got %d endpoints, want 1", len(records))
	}
	rec := records[0]
	if rec.Target != "/orders/{id}" {
		t.Errorf("path = %q, want /orders/{id}", rec.Target)
	}
	if rec.Attr("http_method") != "GET" {
		t.Errorf("http_method = %q", rec.Attr("http_method"))
	}
	if rec.Attr("handler") != "getOrder" {
		t.Errorf("handler = %q", rec.Attr("handler"))
	}
	if rec.Attr("produces") != "application/json,application/xml" {
		t.Errorf("produces = %q", rec.Attr("produces"))
	}
}

func TestSpringShortcutEndpoint(t *testing.T) {
	unit := &ast.CompilationUnit{
		Package: "com.acme.api",
		Classes: ast.ClassList{
			{
				Name: "OrderController",
				Annotations: ast.AnnotationList{
					{Name: "RestController"},
					ann("RequestMapping", map[string]string{"value": "/api/orders"}),
				},
				Methods: []*ast.MethodRecord{
					{
						Name: "create",
						Annotations: ast.AnnotationList{
							{Name: "PostMapping"},
						},
					},
					{
						Name: "list",
						Annotations: ast.AnnotationList{
							ann("GetMapping", map[string]string{"value": "/all"}),
						},
					},
					{
						// No mapping annotation: not an endpoint.
						Name: "toDto",
					},
				},
			},
		},
	}
	rc := resolve.NewContext(unit)

	records := (&RestEndpointExtractor{}).Extract(unit, rc)
	if len(records) != 2 {
		t.Fatalf("got %d endpoints, want 2", len(records))
	}
	if records[0].Attr("http_method") != "POST" || records[0].Target != "/api/orders" {
		t.Errorf("create endpoint = %q %q", records[0].Attr("http_method"), records[0].Target)
	}
	if records[1].Attr("http_method") != "GET" || records[1].Target != "/api/orders/all" {
		t.Errorf("list endpoint = %q %q", records[1].Attr("http_method"), records[1].Target)
	}
}

func TestRequestMappingMethodAttribute(t *testing.T) {
	method := &ast.MethodRecord{
		Name: "update",
		Annotations: ast.AnnotationList{
			ann("RequestMapping", map[string]string{
				"value":  "/orders/{id}",
				"method": "RequestMethod.PUT",
			}),
		},
	}
	unit := &ast.CompilationUnit{
		Package: "com.acme.api",
		Classes: ast.ClassList{{Name: "OrderController", Methods: []*ast.MethodRecord{method}}},
	}
	rc := resolve.NewContext(unit)

	records := (&RestEndpointExtractor{}).Extract(unit, rc)
	if len(records) != 1 {
		t.Fatalf("got %d endpoints, want 1", len(records))
	}
	if records[0].Attr("http_method") != "PUT" {
		t.Errorf("http_method = %q, want PUT", records[0].Attr("http_method"))
	}
	if records[0].Target != "/orders/{id}" {
		t.Errorf("path = %q", records[0].Target)
	}
}

func TestEndpointClassRolesFallback(t *testing.T) {
	unit := &ast.CompilationUnit{
		Package: "com.acme.api",
		Classes: ast.ClassList{
			{
				Name: "AdminResource",
				Annotations: ast.AnnotationList{
					ann("Path", map[string]string{"value": "/admin"}),
					ann("RolesAllowed", map[string]string{"value": `{"ADMIN", "OPERATOR"}`}),
				},
				Methods: []*ast.MethodRecord{
					{
						Name:        "purge",
						Annotations: ast.AnnotationList{{Name: "DELETE"}},
					},
					{
						Name: "report",
						Annotations: ast.AnnotationList{
							{Name: "GET"},
							ann("RolesAllowed", map[string]string{"value": `"AUDITOR"`}),
						},
					},
				},
			},
		},
	}
	rc := resolve.NewContext(unit)

	records := (&RestEndpointExtractor{}).Extract(unit, rc)
	if len(records) != 2 {
		t.Fatalf("got %d endpoints, want 2", len(records))
	}
	if records[0].Attr("security_roles") != "ADMIN,OPERATOR" {
		t.Errorf("class fallback roles = %q", records[0].Attr("security_roles"))
	}
	// Method-scope roles win over the class declaration.
	if records[1].Attr("security_roles") != "AUDITOR" {
		t.Errorf("method roles = %q", records[1].Attr("security_roles"))
	}
}

func TestJoinPaths(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{"/orders", "{id}", "/orders/{id}"},
		{"/orders/", "/{id}", "/orders/{id}"},
		{"", "/orders", "/orders"},
		{"/orders", "", "/orders"},
		{"", "", "/"},
	}
	for _, tt := range tests {
		if got := joinPaths(tt.base, tt.path); got != tt.want {
			t.Errorf("joinPaths(%q, %q) = %q, want %q", tt.base, tt.path, got, tt.want)
		}
	}
}

// =============================================================================
// Security Roles
// =============================================================================

func TestSecurityRoleDeclarations(t *testing.T) {
	unit := &ast.CompilationUnit{
		Package: "com.acme.api",
		Classes: ast.ClassList{
			{
				Name:      "PaymentService",
				StartLine: 5,
				Annotations: ast.AnnotationList{
					ann("RolesAllowed", map[string]string{"value": `"BILLING"`}),
				},
				Methods: []*ast.MethodRecord{
					{
						Name:      "refund",
						StartLine: 30,
						Annotations: ast.AnnotationList{
							ann("PreAuthorize", map[string]string{
								"value": "hasRole('ADMIN') or hasAnyRole('SUPERVISOR', 'AUDITOR')",
							}),
						},
					},
					{
						Name:      "charge",
						StartLine: 12,
						Annotations: ast.AnnotationList{
							ann("Secured", map[string]string{"value": `{"ROLE_BILLING"}`}),
						},
					},
				},
			},
		},
	}
	rc := resolve.NewContext(unit)

	records := (&SecurityRoleExtractor{}).Extract(unit, rc)
	if len(records) != 5 {
		t.Fatalf("got %d role records, want 5: %+v", len(records), records)
	}

	if records[0].Target != "BILLING" || records[0].Attr("scope") != "class" {
		t.Errorf("class role = %q scope %q", records[0].Target, records[0].Attr("scope"))
	}

	wantMethodRoles := []string{"ADMIN", "SUPERVISOR", "AUDITOR", "ROLE_BILLING"}
	for i, want := range wantMethodRoles {
		rec := records[i+1]
		if rec.Target != want {
			t.Errorf("role[%d] = %q, want %q", i+1, rec.Target, want)
		}
		if rec.Attr("scope") != "method" {
			t.Errorf("role[%d] scope = %q", i+1, rec.Attr("scope"))
		}
	}
	if records[1].Attr("method_name") != "refund" {
		t.Errorf("method_name = %q", records[1].Attr("method_name"))
	}
}

// =============================================================================
// AOP Pointcuts
// =============================================================================

func TestAopPointcutExtraction(t *testing.T) {
	unit := &ast.CompilationUnit{
		Package: "com.acme.aspect",
		Classes: ast.ClassList{
			{
				Name:        "AuditAspect",
				Annotations: ast.AnnotationList{{Name: "Aspect"}, {Name: "Component"}},
				Methods: []*ast.MethodRecord{
					{
						Name:      "logWrites",
						StartLine: 18,
						Annotations: ast.AnnotationList{
							ann("Around", map[string]string{
								"value": "execution(* com.acme.dao.*.save*(..))",
							}),
						},
					},
					{
						Name: "afterFailure",
						Annotations: ast.AnnotationList{
							ann("AfterThrowing", map[string]string{
								"pointcut": "execution(* com.acme.service.*.*(..))",
							}),
						},
					},
					{
						// Plain helper: no advice annotation.
						Name: "format",
					},
				},
			},
			{
				// Not an aspect: advice-shaped annotations ignored.
				Name: "NotAnAspect",
				Methods: []*ast.MethodRecord{
					{
						Name: "before",
						Annotations: ast.AnnotationList{
							ann("Before", map[string]string{"value": "execution(* *(..))"}),
						},
					},
				},
			},
		},
	}
	rc := resolve.NewContext(unit)

	records := (&AopPointcutExtractor{}).Extract(unit, rc)
	if len(records) != 2 {
		t.Fatalf("got %d pointcuts, want 2: %+v", len(records), records)
	}
	if records[0].Attr("advice_type") != "around" {
		t.Errorf("advice_type = %q", records[0].Attr("advice_type"))
	}
	if records[0].Target != "execution(* com.acme.dao.*.save*(..))" {
		t.Errorf("pointcut = %q", records[0].Target)
	}
	if records[1].Attr("advice_type") != "after_throwing" {
		t.Errorf("advice_type = %q", records[1].Attr("advice_type"))
	}
}
