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
	"sort"
	"strconv"
	"strings"

	"github.com/AleutianAI/relic/services/analysis/ast"
	"github.com/AleutianAI/relic/services/analysis/config"
	"github.com/AleutianAI/relic/services/analysis/resolve"
)

// LegacyPatternMiner recognizes pre-DI manager/factory conventions.
//
// Description:
//
//	The miner runs four detections per unit, all driven by the configured
//	indicator lists (suffix, prefix, contains and regex dialects):
//
//	  - factory methods: static methods whose name matches a factory
//	    indicator, or whose return type matches a manager indicator.
//	  - manager interfaces: implements-clause entries matching a manager
//	    indicator.
//	  - manager usage: call expressions matching a factory indicator,
//	    read from structural call records when present and recovered by
//	    the call-site pattern otherwise. Receivers resolve through the
//	    class's field and parameter bindings before the class-shaped
//	    static-call reading.
//	  - orchestration: a class is an orchestrator iff the union of its
//	    manager-typed field types and the owning classes of its manager
//	    usages has cardinality greater than one. One record is emitted
//	    per distinct manager, each carrying the union cardinality.
//
// Thread Safety: Immutable after construction, safe for concurrent use.
type LegacyPatternMiner struct {
	factoryIndicators []indicatorMatcher
	managerIndicators []indicatorMatcher
}

// NewLegacyPatternMiner compiles the configured indicator lists.
func NewLegacyPatternMiner(rules config.LegacyPatternRules) *LegacyPatternMiner {
	return &LegacyPatternMiner{
		factoryIndicators: compileIndicators(rules.FactoryIndicators),
		managerIndicators: compileIndicators(rules.ManagerIndicators),
	}
}

func (m *LegacyPatternMiner) Name() string { return "legacy_patterns" }

func (m *LegacyPatternMiner) Extract(unit *ast.CompilationUnit, rc *resolve.Context) []Relationship {
	var out []Relationship
	for _, class := range unit.AllTypes() {
		owner := qualifiedOwner(unit, class)

		out = append(out, m.factoryMethods(owner, class, rc)...)
		out = append(out, m.managerInterfaces(owner, class, rc)...)

		usages := m.managerUsages(owner, class, rc)
		out = append(out, usages...)
		out = append(out, m.orchestration(owner, class, usages, rc)...)
	}
	return out
}

func (m *LegacyPatternMiner) factoryMethods(owner string, class *ast.ClassRecord, rc *resolve.Context) []Relationship {
	var out []Relationship
	for _, method := range class.Methods {
		if !method.IsStatic() {
			continue
		}
		returnBase, _ := resolve.SplitGeneric(method.ReturnType)
		if !anyMatch(m.factoryIndicators, method.Name) && !anyMatch(m.managerIndicators, returnBase) {
			continue
		}

		// The produced type is the return type where one exists; a void
		// or missing return falls back to the declaring class itself.
		target := owner
		if returnBase != "" && !primitiveTypes[returnBase] {
			target = rc.Resolve(returnBase)
		}
		out = append(out, Relationship{
			Kind:       KindFactoryMethod,
			Provenance: ProvenanceStructural,
			Owner:      owner,
			Target:     target,
			Line:       method.StartLine,
			Attributes: map[string]string{
				"method_name": method.Name,
				"return_type": method.ReturnType,
			},
		})
	}
	return out
}

func (m *LegacyPatternMiner) managerInterfaces(owner string, class *ast.ClassRecord, rc *resolve.Context) []Relationship {
	var out []Relationship
	for _, iface := range class.Implements {
		base, _ := resolve.SplitGeneric(iface)
		if !anyMatch(m.managerIndicators, simpleName(base)) {
			continue
		}
		out = append(out, Relationship{
			Kind:       KindManagerInterface,
			Provenance: ProvenanceStructural,
			Owner:      owner,
			Target:     rc.Resolve(iface),
			Line:       class.StartLine,
			Attributes: map[string]string{"interface": iface},
		})
	}
	return out
}

func (m *LegacyPatternMiner) managerUsages(owner string, class *ast.ClassRecord, rc *resolve.Context) []Relationship {
	var out []Relationship
	seen := map[string]bool{}
	types := typeBindings(class)

	emit := func(method *ast.MethodRecord, expr string, line int, provenance Provenance) {
		factoryClass, factoryMethod, ok := splitFactoryExpr(expr)
		if !ok {
			return
		}
		if !anyMatch(m.factoryIndicators, expr) &&
			!anyMatch(m.factoryIndicators, factoryMethod) &&
			!anyMatch(m.factoryIndicators, factoryClass) {
			return
		}
		// A receiver that is really a field or parameter counts against
		// its declared type. Otherwise a field named orderManager and its
		// own type would look like two distinct managers.
		target, ok := resolveReceiver(factoryClass, method, types, rc)
		if !ok {
			return
		}
		key := target + "#" + factoryMethod
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, Relationship{
			Kind:       KindManagerUsage,
			Provenance: provenance,
			Owner:      owner,
			Target:     target,
			Line:       line,
			Attributes: map[string]string{"factory_method": factoryMethod},
		})
	}

	for _, method := range class.Methods {
		if len(method.Calls) > 0 {
			for _, call := range method.Calls {
				if call.Receiver == "" {
					continue
				}
				emit(method, call.Receiver+"."+call.Method, call.Line, ProvenanceStructural)
			}
			continue
		}
		if method.Body == "" {
			continue
		}
		for _, hit := range callSitePattern.FindAllStringSubmatchIndex(method.Body, -1) {
			expr := method.Body[hit[2]:hit[3]] + "." + method.Body[hit[4]:hit[5]]
			emit(method, expr, bodyLine(method, hit[0]), ProvenanceHeuristic)
		}
	}
	return out
}

func (m *LegacyPatternMiner) orchestration(owner string, class *ast.ClassRecord, usages []Relationship, rc *resolve.Context) []Relationship {
	managers := map[string]bool{}

	for _, field := range class.Fields {
		base, _ := resolve.SplitGeneric(field.Type)
		if base == "" || !anyMatch(m.managerIndicators, simpleName(base)) {
			continue
		}
		managers[rc.Resolve(base)] = true
	}
	for _, usage := range usages {
		managers[usage.Target] = true
	}

	if len(managers) <= 1 {
		return nil
	}

	names := make([]string, 0, len(managers))
	for name := range managers {
		names = append(names, name)
	}
	sort.Strings(names)

	count := strconv.Itoa(len(names))
	joined := strings.Join(names, ",")
	out := make([]Relationship, 0, len(names))
	for _, name := range names {
		out = append(out, Relationship{
			Kind:       KindOrchestration,
			Provenance: ProvenanceStructural,
			Owner:      owner,
			Target:     name,
			Line:       class.StartLine,
			Attributes: map[string]string{
				"unique_manager_count": count,
				"managers":             joined,
			},
		})
	}
	return out
}

// splitFactoryExpr splits "OrderManagerFactory.getOrderManager" at the
// first dot. Chained expressions keep only the leading segment as the
// owning class; the remainder is the method path.
func splitFactoryExpr(expr string) (class, method string, ok bool) {
	idx := strings.IndexByte(expr, '.')
	if idx <= 0 || idx == len(expr)-1 {
		return "", "", false
	}
	class, method = expr[:idx], expr[idx+1:]
	if receiverKeywords[class] {
		return "", "", false
	}
	return class, method, true
}

// simpleName returns the last dot-separated segment of a possibly
// qualified name.
func simpleName(name string) string {
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		return name[idx+1:]
	}
	return name
}
