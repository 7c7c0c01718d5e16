// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolve implements the per-compilation-unit symbol table that maps
// simple Java type names to fully-qualified names.
package resolve

import (
	"strings"

	"github.com/AleutianAI/relic/services/analysis/ast"
)

// javaLangTypes are types implicitly imported in every compilation unit.
// Resolution returns them unchanged: they are already canonical as written
// and qualifying them adds no linkage value for the relationship graph.
var javaLangTypes = map[string]bool{
	"Object": true, "String": true, "Integer": true, "Long": true,
	"Short": true, "Byte": true, "Double": true, "Float": true,
	"Boolean": true, "Character": true, "Number": true, "Void": true,
	"Math": true, "System": true, "Thread": true, "Runnable": true,
	"Exception": true, "RuntimeException": true, "Error": true,
	"Throwable": true, "Class": true, "StringBuilder": true,
	"StringBuffer": true, "Iterable": true, "Comparable": true,
	"Override": true, "Deprecated": true, "SuppressWarnings": true,
}

// Context is the ephemeral per-compilation-unit symbol table.
//
// Description:
//
//	One Context is built per CompilationUnit and discarded after edges are
//	emitted. It resolves simple type names to fully-qualified names using
//	three sources in order: the explicit import map, the unit's own local
//	classes (assumed to live in the current package), and the fixed
//	java.lang built-in set. Names that match none of these are returned
//	unchanged — resolution is total and never fails.
//
//	Only non-static, non-wildcard imports populate the import map. Wildcard
//	imports cannot be resolved without a global class index, so types they
//	cover fall through to the unresolved case. This is a documented
//	limitation of per-file resolution, not a defect.
//
// Thread Safety:
//
//	Context is immutable after construction and safe for concurrent use.
type Context struct {
	pkg     string
	imports map[string]string // simple name -> FQN
	locals  map[string]bool   // simple names declared in this unit
}

// NewContext builds the symbol table for one compilation unit.
//
// Inputs:
//
//	unit - The structural record. A nil unit yields an empty context whose
//	       Resolve is the identity function.
//
// Outputs:
//
//	*Context - Never nil.
func NewContext(unit *ast.CompilationUnit) *Context {
	c := &Context{
		imports: make(map[string]string),
		locals:  make(map[string]bool),
	}
	if unit == nil {
		return c
	}

	c.pkg = unit.Package

	for _, imp := range unit.Imports {
		if imp.Static || imp.Wildcard {
			continue
		}
		simple := imp.SimpleName()
		if simple == "" {
			continue
		}
		// First import wins; duplicate simple names from different
		// packages would not compile in Java anyway.
		if _, exists := c.imports[simple]; !exists {
			c.imports[simple] = imp.Name
		}
	}

	for _, rec := range unit.AllTypes() {
		if rec != nil && rec.Name != "" {
			c.locals[rec.Name] = true
		}
	}

	return c
}

// Package returns the compilation unit's declared package.
func (c *Context) Package() string {
	return c.pkg
}

// Resolve maps a simple type name to its fully-qualified name.
//
// Description:
//
//	Pure, total and deterministic: it always returns a non-empty string
//	for non-empty input and repeated calls return equal results. A generic
//	parameter list is stripped before lookup and reattached verbatim, so
//	"List<Order>" resolves the base "List" and keeps "<Order>" untouched.
//	Array suffixes are handled the same way.
//
//	Lookup order:
//	  1. explicit import map
//	  2. types declared in this unit -> qualified with the unit's package,
//	     shadowing any java.lang built-in of the same name
//	  3. java.lang built-ins -> returned unchanged
//	  4. current-package assumption: a class-shaped name (leading upper
//	     case) is assumed to live in the unit's own package, whether or
//	     not it is declared in this file
//	  5. unresolved -> returned unchanged
//
// Inputs:
//
//	name - The simple (or already qualified) type name. May carry a
//	       generic suffix or array brackets.
//
// Outputs:
//
//	string - The fully-qualified name, or the input unchanged when no
//	         source can resolve it. Never empty for non-empty input.
//
// Thread Safety: Safe for concurrent use.
func (c *Context) Resolve(name string) string {
	if name == "" {
		return name
	}

	base, suffix := SplitGeneric(name)
	if base == "" {
		return name
	}

	// Already qualified names pass through untouched.
	if strings.Contains(base, ".") {
		return name
	}

	if fqn, ok := c.imports[base]; ok {
		return fqn + suffix
	}

	// A type declared in this unit shadows any java.lang built-in of the
	// same name, so locals qualify before the built-in check.
	if c.locals[base] {
		if c.pkg != "" {
			return c.pkg + "." + base + suffix
		}
		return name
	}

	if javaLangTypes[base] {
		return name
	}

	// Current-package assumption. Restricted to class-shaped names so
	// primitives ("int") and lowercased receiver variables captured by the
	// heuristic extractors never get package-qualified by accident.
	if c.pkg != "" && isClassShaped(base) {
		return c.pkg + "." + base + suffix
	}

	return name
}

// isClassShaped reports whether a name follows the Java class naming
// convention of a leading upper-case letter.
func isClassShaped(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z'
}

// IsLocal reports whether the simple name is declared in this unit.
func (c *Context) IsLocal(name string) bool {
	base, _ := SplitGeneric(name)
	return c.locals[base]
}

// IsImported reports whether the simple name has an explicit import.
func (c *Context) IsImported(name string) bool {
	base, _ := SplitGeneric(name)
	_, ok := c.imports[base]
	return ok
}

// IsBuiltin reports whether the simple name is a java.lang built-in.
func IsBuiltin(name string) bool {
	base, _ := SplitGeneric(name)
	return javaLangTypes[base]
}

// SplitGeneric separates a type name into its base name and a verbatim
// suffix covering generic parameters and array brackets.
//
// "List<Order>"   -> ("List", "<Order>")
// "Order[]"       -> ("Order", "[]")
// "Map<K, V>[]"   -> ("Map", "<K, V>[]")
// "Order"         -> ("Order", "")
func SplitGeneric(name string) (base, suffix string) {
	cut := len(name)
	if idx := strings.IndexByte(name, '<'); idx >= 0 {
		cut = idx
	}
	if idx := strings.IndexByte(name, '['); idx >= 0 && idx < cut {
		cut = idx
	}
	return strings.TrimSpace(name[:cut]), name[cut:]
}
