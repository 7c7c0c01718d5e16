// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast defines the structural records produced by the Java parsing
// facility and consumed by the relationship-extraction engine.
//
// The records are plain data: no tree-sitter types leak past this package.
// Upstream producers (the bundled tree-sitter parser, or an external parsing
// service posting JSON) may deliver malformed shapes — bare strings where
// records are expected, annotations as either a name or a name+attributes
// object. All of that is normalized at this boundary so every downstream
// consumer sees exactly one shape.
package ast

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// Import represents a single import declaration in a compilation unit.
//
// Thread Safety: Immutable after construction.
type Import struct {
	// Name is the imported path, e.g. "com.acme.util.Helper" or
	// "com.acme.dao.*" for wildcard imports.
	Name string `json:"name"`

	// Static is true for "import static" declarations.
	Static bool `json:"static,omitempty"`

	// Wildcard is true for on-demand imports ("import com.acme.*").
	Wildcard bool `json:"wildcard,omitempty"`
}

// SimpleName returns the last dotted segment of the import path.
//
// For "com.acme.util.Helper" it returns "Helper". Wildcard imports have no
// usable simple name and return "".
func (i Import) SimpleName() string {
	if i.Wildcard {
		return ""
	}
	idx := strings.LastIndex(i.Name, ".")
	if idx < 0 {
		return i.Name
	}
	return i.Name[idx+1:]
}

// CompilationUnit is the per-file structural record.
//
// Description:
//
//	One CompilationUnit is created per Java source file by the parsing
//	facility. The relationship engine builds an ephemeral ResolutionContext
//	from it, runs all extractors, and discards both. All cross-file linkage
//	is by fully-qualified-name string, never by shared object reference.
//
// Thread Safety:
//
//	CompilationUnit is treated as immutable once handed to the engine.
//	The engine never mutates it except to attach derived classification
//	results on the enriched copy it returns.
type CompilationUnit struct {
	// FilePath is the project-relative path of the source file.
	FilePath string `json:"file_path"`

	// Package is the declared package name, e.g. "com.acme.orders".
	Package string `json:"package"`

	// Imports lists all import declarations in source order.
	Imports []Import `json:"imports,omitempty"`

	// Classes holds the top-level (and nested, flattened) class records.
	// Malformed elements from upstream are filtered during decoding.
	Classes ClassList `json:"classes,omitempty"`

	// Interfaces holds interface records. Same filtering as Classes.
	Interfaces ClassList `json:"interfaces,omitempty"`
}

// AllTypes returns classes followed by interfaces as a single slice.
func (u *CompilationUnit) AllTypes() []*ClassRecord {
	if u == nil {
		return nil
	}
	out := make([]*ClassRecord, 0, len(u.Classes)+len(u.Interfaces))
	out = append(out, u.Classes...)
	out = append(out, u.Interfaces...)
	return out
}

// PrimaryClass returns the first class (or interface) name, or "" when the
// unit declares no types. Used as the default mapping source reference.
func (u *CompilationUnit) PrimaryClass() string {
	if u == nil {
		return ""
	}
	if len(u.Classes) > 0 {
		return u.Classes[0].Name
	}
	if len(u.Interfaces) > 0 {
		return u.Interfaces[0].Name
	}
	return ""
}

// ClassList is a slice of class records that tolerates malformed upstream
// JSON: elements that are not objects (e.g. bare strings) are dropped with
// a warning instead of failing the whole unit.
type ClassList []*ClassRecord

// UnmarshalJSON filters non-object elements before decoding.
//
// Description:
//
//	The external parsing facility has been observed to emit bare class-name
//	strings inside the classes array for files it could only partially
//	parse. Those carry no structure worth extracting, so they are skipped.
//	A null or absent array decodes to an empty list.
func (cl *ClassList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make([]*ClassRecord, 0, len(raw))
	for i, elem := range raw {
		trimmed := strings.TrimSpace(string(elem))
		if len(trimmed) == 0 || trimmed[0] != '{' {
			slog.Warn("Skipping malformed class record",
				slog.Int("index", i),
				slog.String("shape", jsonShape(trimmed)),
			)
			continue
		}
		var rec ClassRecord
		if err := json.Unmarshal(elem, &rec); err != nil {
			slog.Warn("Skipping undecodable class record",
				slog.Int("index", i),
				slog.String("error", err.Error()),
			)
			continue
		}
		out = append(out, &rec)
	}
	*cl = out
	return nil
}

// jsonShape names the JSON shape of a raw element for log messages.
func jsonShape(trimmed string) string {
	switch {
	case len(trimmed) == 0:
		return "empty"
	case trimmed[0] == '"':
		return "string"
	case trimmed[0] == '[':
		return "array"
	case trimmed == "null":
		return "null"
	default:
		return "scalar"
	}
}

// ClassRecord describes one class or interface declaration.
type ClassRecord struct {
	// Name is the simple (unqualified) type name.
	Name string `json:"name"`

	// Modifiers holds declaration modifiers ("public", "abstract", ...).
	Modifiers []string `json:"modifiers,omitempty"`

	// Extends is the simple or qualified name of the superclass, or "".
	Extends string `json:"extends,omitempty"`

	// Implements lists implemented interface names as written in source.
	Implements []string `json:"implements,omitempty"`

	// Fields holds the member field records.
	Fields []*FieldRecord `json:"fields,omitempty"`

	// Methods holds the method records.
	Methods []*MethodRecord `json:"methods,omitempty"`

	// Annotations holds normalized class-level annotations.
	Annotations AnnotationList `json:"annotations,omitempty"`

	// EntityMapping is set when the entity detector has attached a mapping.
	EntityMapping *EntityMapping `json:"entity_mapping,omitempty"`

	// IsInterface is true for interface declarations.
	IsInterface bool `json:"is_interface,omitempty"`

	// StartLine is the 1-based line of the declaration.
	StartLine int `json:"start_line,omitempty"`
}

// MethodRecord describes one method declaration.
type MethodRecord struct {
	// Name is the method name.
	Name string `json:"name"`

	// Visibility is "public", "protected", "private" or "" (package).
	Visibility string `json:"visibility,omitempty"`

	// Modifiers holds non-visibility modifiers ("static", "final", ...).
	Modifiers []string `json:"modifiers,omitempty"`

	// ReturnType is the declared return type text, possibly generic.
	ReturnType string `json:"return_type,omitempty"`

	// Parameters lists the declared parameters in order.
	Parameters []Parameter `json:"parameters,omitempty"`

	// Exceptions lists declared thrown exception type names.
	Exceptions []string `json:"exceptions,omitempty"`

	// Annotations holds normalized method-level annotations.
	Annotations AnnotationList `json:"annotations,omitempty"`

	// Complexity is a coarse cyclomatic estimate from the parser.
	Complexity int `json:"complexity,omitempty"`

	// LineCount is the number of source lines the method spans.
	LineCount int `json:"line_count,omitempty"`

	// StartLine is the 1-based first line of the declaration.
	StartLine int `json:"start_line,omitempty"`

	// Body is the raw body text when the parser extracted it.
	// Empty bodies force extractors onto their heuristic fallback paths.
	Body string `json:"body,omitempty"`

	// Calls holds structural call-site records when the parser exposes
	// them. Absent call data forces the method-call extractor onto its
	// text-pattern fallback.
	Calls []CallRecord `json:"calls,omitempty"`

	// SqlExecutions holds embedded SQL detections attached by the engine.
	SqlExecutions []SqlExecution `json:"sql_executions,omitempty"`
}

// IsStatic reports whether the method carries the static modifier.
func (m *MethodRecord) IsStatic() bool {
	for _, mod := range m.Modifiers {
		if mod == "static" {
			return true
		}
	}
	return false
}

// Parameter is a single method parameter.
type Parameter struct {
	Name string `json:"name,omitempty"`
	Type string `json:"type"`
}

// CallRecord is one structural call site inside a method body.
type CallRecord struct {
	// Receiver is the call receiver text ("helper", "OrderMgr", "this").
	// Empty for unqualified calls.
	Receiver string `json:"receiver,omitempty"`

	// Method is the invoked method name.
	Method string `json:"method"`

	// Line is the 1-based source line of the call.
	Line int `json:"line,omitempty"`
}

// FieldRecord describes one member field declaration.
type FieldRecord struct {
	// Name is the field name.
	Name string `json:"name"`

	// Type is the declared type text, possibly generic ("List<Order>").
	Type string `json:"type"`

	// Visibility is "public", "protected", "private" or "".
	Visibility string `json:"visibility,omitempty"`

	// Modifiers holds non-visibility modifiers.
	Modifiers []string `json:"modifiers,omitempty"`

	// Annotations holds normalized field-level annotations.
	Annotations AnnotationList `json:"annotations,omitempty"`

	// InitialValue is the initializer expression text, or "".
	InitialValue string `json:"initial_value,omitempty"`
}

// Annotation is the single normalized annotation shape.
//
// Invariant: upstream may deliver an annotation as a bare name string or as
// a {name, attributes} object. Both normalize to this shape at decode time;
// no downstream consumer ever branches on representation.
type Annotation struct {
	// Name is the annotation name without the leading "@".
	Name string `json:"name"`

	// Attributes maps attribute names to their literal text values.
	// The default (single-value) attribute uses the key "value".
	Attributes map[string]string `json:"attributes,omitempty"`

	// Framework tags the owning framework when known ("spring", "jaxrs",
	// "jpa", "ejb"). Empty when untagged.
	Framework string `json:"framework,omitempty"`
}

// Attr returns the named attribute value, or "" when absent.
func (a Annotation) Attr(key string) string {
	if a.Attributes == nil {
		return ""
	}
	return a.Attributes[key]
}

// UnmarshalJSON accepts either a bare name string or a full object.
func (a *Annotation) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*a = Annotation{Name: strings.TrimPrefix(name, "@")}
		return nil
	}

	type plain Annotation
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	p.Name = strings.TrimPrefix(p.Name, "@")
	*a = Annotation(p)
	return nil
}

// AnnotationList is a slice of annotations that drops malformed elements
// (e.g. numbers, nested arrays) instead of failing the record.
type AnnotationList []Annotation

// UnmarshalJSON filters elements that are neither strings nor objects.
func (al *AnnotationList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make([]Annotation, 0, len(raw))
	for i, elem := range raw {
		trimmed := strings.TrimSpace(string(elem))
		if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '"') {
			slog.Warn("Skipping malformed annotation record",
				slog.Int("index", i),
				slog.String("shape", jsonShape(trimmed)),
			)
			continue
		}
		var a Annotation
		if err := json.Unmarshal(elem, &a); err != nil {
			slog.Warn("Skipping undecodable annotation record",
				slog.Int("index", i),
				slog.String("error", err.Error()),
			)
			continue
		}
		out = append(out, a)
	}
	*al = out
	return nil
}

// ByName returns the first annotation with the given name (case-sensitive,
// no leading "@") and true, or a zero Annotation and false.
func (al AnnotationList) ByName(name string) (Annotation, bool) {
	for _, a := range al {
		if a.Name == name {
			return a, true
		}
	}
	return Annotation{}, false
}

// EntityMapping links an entity class to its mapped database table.
type EntityMapping struct {
	// ClassName is the fully-qualified entity class name.
	ClassName string `json:"class_name"`

	// TableName is the mapped table name.
	TableName string `json:"table_name"`

	// Source records how the table name was derived: "accessor" when read
	// from the table-name accessor's return literal, "class_name" when
	// derived by stripping the configured suffix.
	Source string `json:"source,omitempty"`
}

// SqlExecution is one embedded SQL detection inside a method body.
type SqlExecution struct {
	// Statement is the matched SQL text or the dynamic expression text.
	Statement string `json:"statement"`

	// StatementType is the classified statement kind ("select", "insert",
	// "update", "delete", "exec", "ddl", "dynamic", "unknown").
	StatementType string `json:"statement_type"`

	// Objects lists referenced tables or procedure names when known.
	Objects []string `json:"objects,omitempty"`

	// Line is the 1-based source line of the match inside the file,
	// clamped to the method's line range.
	Line int `json:"line,omitempty"`

	// StoredProcedure is true for EXEC-shaped literals and dynamic
	// procedure-name construction.
	StoredProcedure bool `json:"stored_procedure,omitempty"`
}
