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
	"github.com/AleutianAI/relic/services/analysis/config"
	"github.com/AleutianAI/relic/services/analysis/resolve"
)

// =============================================================================
// Method Call Extractor
// =============================================================================

// Call-site patterns for the heuristic fallback. Method bodies where the
// parser exposed no structural call records are scanned with these.
var (
	// receiver.method( — the receiver may be a variable or a class name.
	callSitePattern = regexp.MustCompile(`\b([A-Za-z_][\w]*)\s*\.\s*([a-z_][\w]*)\s*\(`)

	// new Type( — constructor calls reference the constructed type.
	constructorPattern = regexp.MustCompile(`\bnew\s+([A-Z][\w.]*)\s*[(<]`)
)

// receiverKeywords never resolve to a cross-class reference.
var receiverKeywords = map[string]bool{
	"this": true, "super": true, "return": true, "throw": true,
	"if": true, "while": true, "for": true, "switch": true, "new": true,
}

// MethodCallExtractor emits one method_call record per cross-class call
// site.
//
// Description:
//
//	The structural path reads the parser's call records and resolves each
//	receiver: a receiver matching a declared field or parameter resolves
//	through that declaration's type, a class-shaped receiver resolves
//	directly, and anything else is dropped as an unknowable local. When a
//	method body carries no structural call data the extractor falls back
//	to call-site regexes over the raw body text, resolving captured
//	receivers the same way. Calls on java.lang built-ins are filtered on
//	both paths.
//
// Thread Safety: Stateless, safe for concurrent use.
type MethodCallExtractor struct{}

func (e *MethodCallExtractor) Name() string { return "method_call" }

func (e *MethodCallExtractor) Extract(unit *ast.CompilationUnit, rc *resolve.Context) []Relationship {
	var out []Relationship
	for _, class := range unit.AllTypes() {
		owner := qualifiedOwner(unit, class)
		types := typeBindings(class)
		for _, method := range class.Methods {
			if len(method.Calls) > 0 {
				out = append(out, e.structuralCalls(owner, class, method, types, rc)...)
				continue
			}
			out = append(out, e.heuristicCalls(owner, class, method, types, rc)...)
		}
	}
	return out
}

func (e *MethodCallExtractor) structuralCalls(owner string, class *ast.ClassRecord, method *ast.MethodRecord, types map[string]string, rc *resolve.Context) []Relationship {
	var out []Relationship
	for _, call := range method.Calls {
		target, ok := resolveReceiver(call.Receiver, method, types, rc)
		if !ok {
			continue
		}
		out = append(out, Relationship{
			Kind:       KindMethodCall,
			Provenance: ProvenanceStructural,
			Owner:      owner,
			Target:     target,
			Line:       call.Line,
			Attributes: map[string]string{
				"method_name": call.Method,
				"caller":      method.Name,
			},
		})
	}
	return out
}

func (e *MethodCallExtractor) heuristicCalls(owner string, class *ast.ClassRecord, method *ast.MethodRecord, types map[string]string, rc *resolve.Context) []Relationship {
	if method.Body == "" {
		return nil
	}

	var out []Relationship
	seen := map[string]bool{}

	for _, m := range callSitePattern.FindAllStringSubmatchIndex(method.Body, -1) {
		receiver := method.Body[m[2]:m[3]]
		name := method.Body[m[4]:m[5]]
		target, ok := resolveReceiver(receiver, method, types, rc)
		if !ok {
			continue
		}
		key := target + "#" + name
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Relationship{
			Kind:       KindMethodCall,
			Provenance: ProvenanceHeuristic,
			Owner:      owner,
			Target:     target,
			Line:       bodyLine(method, m[0]),
			Attributes: map[string]string{
				"method_name": name,
				"caller":      method.Name,
			},
		})
	}

	for _, m := range constructorPattern.FindAllStringSubmatchIndex(method.Body, -1) {
		typeName := method.Body[m[2]:m[3]]
		if resolve.IsBuiltin(typeName) {
			continue
		}
		target := rc.Resolve(typeName)
		key := target + "#<init>"
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Relationship{
			Kind:       KindMethodCall,
			Provenance: ProvenanceHeuristic,
			Owner:      owner,
			Target:     target,
			Line:       bodyLine(method, m[0]),
			Attributes: map[string]string{
				"method_name": "<init>",
				"caller":      method.Name,
			},
		})
	}

	return out
}

// typeBindings maps field names to their declared types for one class.
func typeBindings(class *ast.ClassRecord) map[string]string {
	out := make(map[string]string, len(class.Fields))
	for _, field := range class.Fields {
		if field.Name != "" && field.Type != "" {
			out[field.Name] = field.Type
		}
	}
	return out
}

// resolveReceiver maps a call receiver to a resolved type reference.
//
// Fields and parameters resolve through their declared type; class-shaped
// receivers resolve directly as static calls. Receivers that survive
// resolution but land on a java.lang built-in are rejected, as are plain
// local variables the per-file model cannot type.
func resolveReceiver(receiver string, method *ast.MethodRecord, fields map[string]string, rc *resolve.Context) (string, bool) {
	if receiver == "" || receiverKeywords[receiver] {
		return "", false
	}

	if t, ok := fields[receiver]; ok {
		return resolveBase(t, rc)
	}
	for _, p := range method.Parameters {
		if p.Name == receiver {
			return resolveBase(p.Type, rc)
		}
	}

	// Class-shaped receivers are static calls on the named type.
	if receiver[0] >= 'A' && receiver[0] <= 'Z' {
		if resolve.IsBuiltin(receiver) {
			return "", false
		}
		return rc.Resolve(receiver), true
	}

	return "", false
}

// resolveBase resolves a declared type's base name, dropping generic and
// array suffixes so the target is a plain type reference.
func resolveBase(declared string, rc *resolve.Context) (string, bool) {
	base, _ := resolve.SplitGeneric(declared)
	if base == "" || resolve.IsBuiltin(base) || primitiveTypes[base] {
		return "", false
	}
	resolved, _ := resolve.SplitGeneric(rc.Resolve(base))
	return resolved, true
}

// bodyLine converts a body-text offset into an absolute source line,
// clamped to the method's declared span.
func bodyLine(method *ast.MethodRecord, offset int) int {
	if method.StartLine == 0 {
		return 0
	}
	line := method.StartLine + strings.Count(method.Body[:offset], "\n")
	if method.LineCount > 0 {
		if max := method.StartLine + method.LineCount - 1; line > max {
			line = max
		}
	}
	return line
}

// =============================================================================
// Field Reference Extractor
// =============================================================================

// primitiveTypes never produce field references.
var primitiveTypes = map[string]bool{
	"boolean": true, "byte": true, "char": true, "short": true,
	"int": true, "long": true, "float": true, "double": true, "void": true,
}

// wellKnownTypes are JDK utility types whose bare use carries no
// modernization signal. Generic uses like List<Order> still emit, since
// the element type is the interesting reference.
var wellKnownTypes = map[string]bool{
	"List": true, "ArrayList": true, "LinkedList": true,
	"Map": true, "HashMap": true, "TreeMap": true, "LinkedHashMap": true,
	"Set": true, "HashSet": true, "TreeSet": true, "Collection": true,
	"Iterator": true, "Optional": true, "Date": true, "Calendar": true,
	"BigDecimal": true, "BigInteger": true, "UUID": true,
	"Properties": true, "Locale": true,
}

// FieldReferenceExtractor emits one field_reference record per member
// field of a non-trivial type.
//
// Description:
//
//	Fields of primitive, boxed, and well-known JDK types are excluded. For
//	generic declarations the bare base type is resolved and the generic
//	suffix reattached verbatim, so List<Order> keeps its element visible
//	in the reference. A bare well-known base with no generic suffix emits
//	nothing.
//
// Thread Safety: Stateless, safe for concurrent use.
type FieldReferenceExtractor struct{}

func (e *FieldReferenceExtractor) Name() string { return "field_reference" }

func (e *FieldReferenceExtractor) Extract(unit *ast.CompilationUnit, rc *resolve.Context) []Relationship {
	var out []Relationship
	for _, class := range unit.AllTypes() {
		owner := qualifiedOwner(unit, class)
		for _, field := range class.Fields {
			rel, ok := e.fieldReference(owner, field, rc)
			if !ok {
				continue
			}
			out = append(out, rel)
		}
	}
	return out
}

func (e *FieldReferenceExtractor) fieldReference(owner string, field *ast.FieldRecord, rc *resolve.Context) (Relationship, bool) {
	base, suffix := resolve.SplitGeneric(field.Type)
	provenance := ProvenanceStructural

	if base == "" {
		// Malformed record with no declared type: recover from a
		// "new Type(...)" initializer when one is present.
		m := constructorPattern.FindStringSubmatch(field.InitialValue)
		if m == nil {
			return Relationship{}, false
		}
		base, suffix = m[1], ""
		provenance = ProvenanceHeuristic
	}

	if primitiveTypes[base] {
		return Relationship{}, false
	}
	if (resolve.IsBuiltin(base) || wellKnownTypes[base]) && !strings.Contains(suffix, "<") {
		return Relationship{}, false
	}

	// Well-known bases without an explicit import stay as written; the
	// current-package assumption would misqualify java.util types pulled
	// in by wildcard imports.
	resolvedBase := base
	if !wellKnownTypes[base] || rc.IsImported(base) {
		resolvedBase = rc.Resolve(base)
	}

	referenced := resolvedBase + suffix
	return Relationship{
		Kind:       KindFieldReference,
		Provenance: provenance,
		Owner:      owner,
		Target:     referenced,
		Attributes: map[string]string{
			"field_name":    field.Name,
			"declared_type": field.Type,
		},
	}, true
}

// =============================================================================
// Inheritance Extractor
// =============================================================================

// InheritanceExtractor emits inheritance records for extends and
// implements clauses. Targets resolve through the unit's context; the
// relation attribute distinguishes the two clause kinds for the mapping
// emitter.
type InheritanceExtractor struct{}

func (e *InheritanceExtractor) Name() string { return "inheritance" }

func (e *InheritanceExtractor) Extract(unit *ast.CompilationUnit, rc *resolve.Context) []Relationship {
	var out []Relationship
	for _, class := range unit.AllTypes() {
		owner := qualifiedOwner(unit, class)
		if class.Extends != "" {
			out = append(out, Relationship{
				Kind:       KindInheritance,
				Provenance: ProvenanceStructural,
				Owner:      owner,
				Target:     rc.Resolve(class.Extends),
				Line:       class.StartLine,
				Attributes: map[string]string{"relation": "extends"},
			})
		}
		for _, iface := range class.Implements {
			if iface == "" {
				continue
			}
			out = append(out, Relationship{
				Kind:       KindInheritance,
				Provenance: ProvenanceStructural,
				Owner:      owner,
				Target:     rc.Resolve(iface),
				Line:       class.StartLine,
				Attributes: map[string]string{"relation": "implements"},
			})
		}
	}
	return out
}

// =============================================================================
// Annotation Dependency Extractor
// =============================================================================

// injectionAnnotations maps DI annotation names to their injection style.
var injectionAnnotations = map[string]string{
	"Autowired": "autowired",
	"Inject":    "inject",
	"Resource":  "resource",
	"EJB":       "ejb",
}

// AnnotationDependencyExtractor emits annotation_dependency records for
// injected fields (@Autowired, @Inject, @Resource, @EJB). The injected
// type resolves through the context; the field name and injection style
// ride along as attributes.
type AnnotationDependencyExtractor struct{}

func (e *AnnotationDependencyExtractor) Name() string { return "annotation_dependency" }

func (e *AnnotationDependencyExtractor) Extract(unit *ast.CompilationUnit, rc *resolve.Context) []Relationship {
	var out []Relationship
	for _, class := range unit.AllTypes() {
		owner := qualifiedOwner(unit, class)
		for _, field := range class.Fields {
			for _, ann := range field.Annotations {
				style, ok := injectionAnnotations[ann.Name]
				if !ok {
					continue
				}
				target, ok := resolveBase(field.Type, rc)
				if !ok {
					continue
				}
				out = append(out, Relationship{
					Kind:       KindAnnotationDependency,
					Provenance: ProvenanceStructural,
					Owner:      owner,
					Target:     target,
					Attributes: map[string]string{
						"field_name":     field.Name,
						"injection_type": style,
					},
				})
				break
			}
		}
	}
	return out
}

// =============================================================================
// Framework Relationship Extractor
// =============================================================================

// FrameworkRelationshipExtractor emits framework_relationship records for
// class-level stereotype annotations the rules attribute to a framework
// (@Service, @Repository, @Stateless, ...). The target is the synthetic
// "framework:Annotation" reference, so the graph shows which framework
// facilities a class depends on even when no concrete class is involved.
type FrameworkRelationshipExtractor struct {
	rules *config.Rules
}

// NewFrameworkRelationshipExtractor builds the extractor over the loaded
// rule set.
func NewFrameworkRelationshipExtractor(rules *config.Rules) *FrameworkRelationshipExtractor {
	return &FrameworkRelationshipExtractor{rules: rules}
}

func (e *FrameworkRelationshipExtractor) Name() string { return "framework_relationship" }

func (e *FrameworkRelationshipExtractor) Extract(unit *ast.CompilationUnit, rc *resolve.Context) []Relationship {
	var out []Relationship
	for _, class := range unit.AllTypes() {
		owner := qualifiedOwner(unit, class)
		for _, ann := range class.Annotations {
			framework := e.rules.FrameworkFor(ann.Name)
			if framework == "" {
				continue
			}
			attrs := map[string]string{
				"framework":  framework,
				"annotation": ann.Name,
			}
			if v := ann.Attr("value"); v != "" {
				attrs["component_name"] = v
			}
			out = append(out, Relationship{
				Kind:       KindFrameworkRelation,
				Provenance: ProvenanceStructural,
				Owner:      owner,
				Target:     framework + ":" + ann.Name,
				Line:       class.StartLine,
				Attributes: attrs,
			})
		}
	}
	return out
}
