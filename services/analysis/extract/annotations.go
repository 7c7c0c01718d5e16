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
	"regexp"
	"strings"

	"github.com/AleutianAI/relic/services/analysis/ast"
	"github.com/AleutianAI/relic/services/analysis/resolve"
)

// =============================================================================
// REST Endpoint Extractor
// =============================================================================

// jaxrsVerbs are JAX-RS method-level HTTP verb annotations.
var jaxrsVerbs = map[string]string{
	"GET": "GET", "POST": "POST", "PUT": "PUT", "DELETE": "DELETE",
	"HEAD": "HEAD", "OPTIONS": "OPTIONS", "PATCH": "PATCH",
}

// springMappings map Spring shortcut annotations to their HTTP verb.
// RequestMapping is handled separately since the verb rides in its
// method attribute.
var springMappings = map[string]string{
	"GetMapping": "GET", "PostMapping": "POST", "PutMapping": "PUT",
	"DeleteMapping": "DELETE", "PatchMapping": "PATCH",
}

// RestEndpointExtractor emits one rest_endpoint record per HTTP-exposed
// method.
//
// Description:
//
//	Both JAX-RS (@Path + verb annotations, @Produces/@Consumes) and
//	Spring MVC (@RequestMapping and its verb shortcuts) conventions are
//	recognized. The class-level path prefixes the method-level path; the
//	joined path is the record target. Roles declared on the method or the
//	class ride along comma-joined so endpoint security is visible on the
//	entry-point edge itself.
//
// Thread Safety: Stateless, safe for concurrent use.
type RestEndpointExtractor struct{}

func (e *RestEndpointExtractor) Name() string { return "rest_endpoint" }

func (e *RestEndpointExtractor) Extract(unit *ast.CompilationUnit, rc *resolve.Context) []Relationship {
	var out []Relationship
	for _, class := range unit.AllTypes() {
		basePath := classBasePath(class)
		classRoles := declaredRoles(class.Annotations)

		for _, method := range class.Methods {
			verb, path, ok := endpointSignature(method.Annotations)
			if !ok {
				continue
			}

			roles := declaredRoles(method.Annotations)
			if len(roles) == 0 {
				roles = classRoles
			}

			attrs := map[string]string{
				"http_method": verb,
				"path":        joinPaths(basePath, path),
				"handler":     method.Name,
			}
			if v := mediaTypes(method.Annotations, "Produces"); v != "" {
				attrs["produces"] = v
			}
			if v := mediaTypes(method.Annotations, "Consumes"); v != "" {
				attrs["consumes"] = v
			}
			if len(roles) > 0 {
				attrs["security_roles"] = strings.Join(roles, ",")
			}

			out = append(out, Relationship{
				Kind:       KindRestEndpoint,
				Provenance: ProvenanceStructural,
				Owner:      qualifiedOwner(unit, class),
				Target:     attrs["path"],
				Line:       method.StartLine,
				Attributes: attrs,
			})
		}
	}
	return out
}

// classBasePath reads the class-level path prefix from @Path or
// @RequestMapping.
func classBasePath(class *ast.ClassRecord) string {
	if ann, ok := class.Annotations.ByName("Path"); ok {
		return firstNonEmpty(ann.Attr("value"), ann.Attr("path"))
	}
	if ann, ok := class.Annotations.ByName("RequestMapping"); ok {
		return firstNonEmpty(ann.Attr("value"), ann.Attr("path"))
	}
	return ""
}

// endpointSignature determines the HTTP verb and method-level path from
// one method's annotations. Returns false for non-endpoint methods.
func endpointSignature(annotations ast.AnnotationList) (verb, path string, ok bool) {
	for _, ann := range annotations {
		if v, isVerb := jaxrsVerbs[ann.Name]; isVerb {
			verb = v
			ok = true
			continue
		}
		if v, isMapping := springMappings[ann.Name]; isMapping {
			verb = v
			path = firstNonEmpty(ann.Attr("value"), ann.Attr("path"))
			ok = true
			continue
		}
		switch ann.Name {
		case "Path":
			path = firstNonEmpty(ann.Attr("value"), ann.Attr("path"))
		case "RequestMapping":
			path = firstNonEmpty(ann.Attr("value"), ann.Attr("path"))
			if m := ann.Attr("method"); m != "" {
				verb = normalizeRequestMethod(m)
			} else if verb == "" {
				verb = "GET"
			}
			ok = true
		}
	}
	return verb, path, ok
}

// normalizeRequestMethod reduces "RequestMethod.POST" to "POST".
func normalizeRequestMethod(raw string) string {
	raw = strings.Trim(raw, "{}")
	if idx := strings.LastIndexByte(raw, '.'); idx >= 0 {
		raw = raw[idx+1:]
	}
	return strings.ToUpper(strings.TrimSpace(raw))
}

// mediaTypes joins a @Produces/@Consumes value list.
func mediaTypes(annotations ast.AnnotationList, name string) string {
	ann, ok := annotations.ByName(name)
	if !ok {
		return ""
	}
	return strings.Join(parseStringList(ann.Attr("value")), ",")
}

// joinPaths joins base and method paths with exactly one separator.
func joinPaths(base, path string) string {
	base = strings.TrimSuffix(base, "/")
	if path == "" {
		if base == "" {
			return "/"
		}
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// =============================================================================
// Security Role Extractor
// =============================================================================

// hasRolePattern pulls role names out of SpEL expressions like
// hasRole('ADMIN') or hasAnyRole('A', 'B').
var hasRolePattern = regexp.MustCompile(`has(?:Any)?Role\s*\(([^)]*)\)`)

// SecurityRoleExtractor emits one security_role record per declared role
// requirement, at class and method scope.
//
// Recognized declarations: @RolesAllowed (single literal or array),
// @Secured, and @PreAuthorize SpEL expressions using hasRole/hasAnyRole.
type SecurityRoleExtractor struct{}

func (e *SecurityRoleExtractor) Name() string { return "security_role" }

func (e *SecurityRoleExtractor) Extract(unit *ast.CompilationUnit, rc *resolve.Context) []Relationship {
	var out []Relationship
	for _, class := range unit.AllTypes() {
		owner := qualifiedOwner(unit, class)

		for _, role := range declaredRoles(class.Annotations) {
			out = append(out, roleRelationship(owner, role, "class", "", class.StartLine))
		}
		for _, method := range class.Methods {
			for _, role := range declaredRoles(method.Annotations) {
				out = append(out, roleRelationship(owner, role, "method", method.Name, method.StartLine))
			}
		}
	}
	return out
}

func roleRelationship(owner, role, scope, methodName string, line int) Relationship {
	attrs := map[string]string{"scope": scope}
	if methodName != "" {
		attrs["method_name"] = methodName
	}
	return Relationship{
		Kind:       KindSecurityRole,
		Provenance: ProvenanceStructural,
		Owner:      owner,
		Target:     role,
		Line:       line,
		Attributes: attrs,
	}
}

// declaredRoles collects role names from one annotation list.
func declaredRoles(annotations ast.AnnotationList) []string {
	var out []string
	seen := map[string]bool{}
	add := func(role string) {
		role = strings.TrimSpace(role)
		if role != "" && !seen[role] {
			seen[role] = true
			out = append(out, role)
		}
	}

	for _, ann := range annotations {
		switch ann.Name {
		case "RolesAllowed", "Secured":
			for _, role := range parseStringList(ann.Attr("value")) {
				add(role)
			}
		case "PreAuthorize":
			for _, m := range hasRolePattern.FindAllStringSubmatch(ann.Attr("value"), -1) {
				for _, role := range strings.Split(m[1], ",") {
					add(strings.Trim(strings.TrimSpace(role), `'"`))
				}
			}
		}
	}
	return out
}

// =============================================================================
// AOP Pointcut Extractor
// =============================================================================

// adviceAnnotations are the AspectJ advice and pointcut annotations.
var adviceAnnotations = map[string]string{
	"Before":         "before",
	"After":          "after",
	"Around":         "around",
	"AfterReturning": "after_returning",
	"AfterThrowing":  "after_throwing",
	"Pointcut":       "pointcut",
}

// AopPointcutExtractor emits one aop_pointcut record per advice method
// inside an @Aspect class. The target is the pointcut expression, which
// downstream consumers use to locate cross-cutting coupling that no
// direct call edge reveals.
type AopPointcutExtractor struct{}

func (e *AopPointcutExtractor) Name() string { return "aop_pointcut" }

func (e *AopPointcutExtractor) Extract(unit *ast.CompilationUnit, rc *resolve.Context) []Relationship {
	var out []Relationship
	for _, class := range unit.AllTypes() {
		if _, ok := class.Annotations.ByName("Aspect"); !ok {
			continue
		}
		owner := qualifiedOwner(unit, class)

		for _, method := range class.Methods {
			for _, ann := range method.Annotations {
				advice, ok := adviceAnnotations[ann.Name]
				if !ok {
					continue
				}
				expr := firstNonEmpty(ann.Attr("value"), ann.Attr("pointcut"))
				if expr == "" {
					continue
				}
				out = append(out, Relationship{
					Kind:       KindAopPointcut,
					Provenance: ProvenanceStructural,
					Owner:      owner,
					Target:     expr,
					Line:       method.StartLine,
					Attributes: map[string]string{
						"advice_type": advice,
						"method_name": method.Name,
					},
				})
				break
			}
		}
	}
	return out
}
