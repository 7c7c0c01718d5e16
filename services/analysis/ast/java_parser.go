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
	"context"
	"fmt"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
)

// Java grammar node type names used during extraction.
const (
	javaNodeProgram         = "program"
	javaNodePackageDecl     = "package_declaration"
	javaNodeImportDecl      = "import_declaration"
	javaNodeClassDecl       = "class_declaration"
	javaNodeInterfaceDecl   = "interface_declaration"
	javaNodeEnumDecl        = "enum_declaration"
	javaNodeFieldDecl       = "field_declaration"
	javaNodeMethodDecl      = "method_declaration"
	javaNodeConstructorDecl = "constructor_declaration"
	javaNodeModifiers       = "modifiers"
	javaNodeMarkerAnnot     = "marker_annotation"
	javaNodeAnnotation      = "annotation"
	javaNodeVarDeclarator   = "variable_declarator"
	javaNodeFormalParam     = "formal_parameter"
	javaNodeSpreadParam     = "spread_parameter"
	javaNodeThrows          = "throws"
	javaNodeMethodInvoke    = "method_invocation"
	javaNodeAsterisk        = "asterisk"
	javaNodeElementPair     = "element_value_pair"
	javaNodeSuperclass      = "superclass"
	javaNodeSuperInterfaces = "super_interfaces"
	javaNodeExtendsIfaces   = "extends_interfaces"
	javaNodeTypeList        = "type_list"
)

// javaVisibilityModifiers are the modifiers that map to a visibility level.
var javaVisibilityModifiers = map[string]bool{
	"public":    true,
	"protected": true,
	"private":   true,
}

// javaComplexityNodes are body node types that each add one to the coarse
// cyclomatic estimate.
var javaComplexityNodes = map[string]bool{
	"if_statement":       true,
	"for_statement":      true,
	"enhanced_for_statement": true,
	"while_statement":    true,
	"do_statement":       true,
	"catch_clause":       true,
	"switch_label":       true,
	"ternary_expression": true,
}

// JavaParserOptions configures JavaParser behavior.
type JavaParserOptions struct {
	// MaxFileSize is the maximum file size in bytes to parse.
	// Files larger than this return ErrFileTooLarge.
	// Default: 10MB
	MaxFileSize int

	// ExtractBodies determines whether method body text is retained on the
	// records. The relationship extractors need bodies for their heuristic
	// fallback paths, so this defaults to true.
	ExtractBodies bool

	// ExtractCalls determines whether structural call-site records are
	// collected from method bodies. When disabled, the method-call
	// extractor runs on its text-pattern fallback.
	// Default: true
	ExtractCalls bool
}

// DefaultJavaParserOptions returns the default options.
func DefaultJavaParserOptions() JavaParserOptions {
	return JavaParserOptions{
		MaxFileSize:   10 * 1024 * 1024, // 10MB
		ExtractBodies: true,
		ExtractCalls:  true,
	}
}

// JavaParserOption is a functional option for configuring JavaParser.
type JavaParserOption func(*JavaParserOptions)

// WithJavaMaxFileSize sets the maximum file size for parsing.
func WithJavaMaxFileSize(size int) JavaParserOption {
	return func(o *JavaParserOptions) {
		o.MaxFileSize = size
	}
}

// WithJavaExtractBodies sets whether method body text is retained.
func WithJavaExtractBodies(extract bool) JavaParserOption {
	return func(o *JavaParserOptions) {
		o.ExtractBodies = extract
	}
}

// WithJavaExtractCalls sets whether structural call sites are collected.
func WithJavaExtractCalls(extract bool) JavaParserOption {
	return func(o *JavaParserOptions) {
		o.ExtractCalls = extract
	}
}

// JavaParser extracts structural records from Java source code.
//
// Description:
//
//	JavaParser uses tree-sitter to parse Java source files into
//	CompilationUnit records: package, imports, classes, interfaces,
//	fields, methods, and annotations. It is the bundled implementation of
//	the parsing facility the relationship engine consumes; the engine
//	itself depends only on the plain records this parser returns.
//
// Thread Safety:
//
//	JavaParser is safe for concurrent use. Each ParseCompilationUnit call
//	creates its own tree-sitter parser instance.
//
// Example:
//
//	parser := NewJavaParser()
//	unit, err := parser.ParseCompilationUnit(ctx, content, "src/OrderMgr.java")
//	if err != nil {
//	    return fmt.Errorf("parse: %w", err)
//	}
type JavaParser struct {
	options JavaParserOptions
}

// NewJavaParser creates a new JavaParser with the given options.
func NewJavaParser(opts ...JavaParserOption) *JavaParser {
	options := DefaultJavaParserOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &JavaParser{options: options}
}

// Language returns the language name for this parser.
func (p *JavaParser) Language() string {
	return "java"
}

// Extensions returns the file extensions this parser handles.
func (p *JavaParser) Extensions() []string {
	return []string{".java"}
}

// ParseCompilationUnit extracts the structural record from Java source.
//
// Description:
//
//	Parses the provided Java content using tree-sitter and extracts the
//	compilation unit record: package declaration, imports (with static and
//	wildcard flags), classes and interfaces with their fields, methods and
//	normalized annotations. Parse errors inside the tree degrade to partial
//	records rather than failures — tree-sitter produces ERROR nodes that
//	are simply not matched by the extraction walk.
//
// Inputs:
//
//	ctx      - Context for cancellation. Checked before and after parsing.
//	content  - Raw Java source bytes. Must be valid UTF-8.
//	filePath - Project-relative path, stored on the returned unit.
//
// Outputs:
//
//	*CompilationUnit - The structural record. Never nil on success.
//	error            - Non-nil only for complete failures (invalid UTF-8,
//	                   file too large, cancellation).
//
// Thread Safety: Safe for concurrent use.
func (p *JavaParser) ParseCompilationUnit(ctx context.Context, content []byte, filePath string) (*CompilationUnit, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("java parse canceled before start: %w", err)
	}

	if len(content) > p.options.MaxFileSize {
		return nil, ErrFileTooLarge
	}
	if !utf8.Valid(content) {
		return nil, ErrInvalidContent
	}

	parser := sitter.NewParser()
	parser.SetLanguage(java.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("java parse canceled after tree-sitter: %w", err)
	}

	unit := &CompilationUnit{
		FilePath:   filePath,
		Imports:    make([]Import, 0),
		Classes:    make(ClassList, 0),
		Interfaces: make(ClassList, 0),
	}

	root := tree.RootNode()
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		switch child.Type() {
		case javaNodePackageDecl:
			unit.Package = p.extractPackage(child, content)
		case javaNodeImportDecl:
			if imp, ok := p.extractImport(child, content); ok {
				unit.Imports = append(unit.Imports, imp)
			}
		case javaNodeClassDecl, javaNodeEnumDecl:
			if rec := p.extractClass(child, content, false); rec != nil {
				unit.Classes = append(unit.Classes, rec)
			}
		case javaNodeInterfaceDecl:
			if rec := p.extractClass(child, content, true); rec != nil {
				unit.Interfaces = append(unit.Interfaces, rec)
			}
		}
	}

	return unit, nil
}

// extractPackage reads the dotted package name from its declaration node.
func (p *JavaParser) extractPackage(node *sitter.Node, content []byte) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "scoped_identifier", "identifier":
			return child.Content(content)
		}
	}
	return ""
}

// extractImport reads one import declaration, including static and wildcard
// forms. Returns false for declarations with no resolvable path.
func (p *JavaParser) extractImport(node *sitter.Node, content []byte) (Import, bool) {
	imp := Import{}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "static":
			imp.Static = true
		case "scoped_identifier", "identifier":
			imp.Name = child.Content(content)
		case javaNodeAsterisk:
			imp.Wildcard = true
		}
	}
	if imp.Name == "" {
		return Import{}, false
	}
	if imp.Wildcard {
		imp.Name += ".*"
	}
	return imp, true
}

// extractClass builds a ClassRecord from a class, enum or interface
// declaration node.
func (p *JavaParser) extractClass(node *sitter.Node, content []byte, isInterface bool) *ClassRecord {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	rec := &ClassRecord{
		Name:        nameNode.Content(content),
		IsInterface: isInterface,
		StartLine:   int(node.StartPoint().Row) + 1,
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case javaNodeModifiers:
			rec.Modifiers, rec.Annotations = p.extractModifiers(child, content)
		case javaNodeSuperclass:
			// "extends Foo" — the type is the last named child
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				if gc.IsNamed() {
					rec.Extends = gc.Content(content)
				}
			}
		case javaNodeSuperInterfaces, javaNodeExtendsIfaces:
			rec.Implements = append(rec.Implements, p.extractTypeList(child, content)...)
		}
	}

	// Interface "extends A, B" is inheritance, not implementation, but the
	// downstream extractors treat both through the implements list plus the
	// IsInterface flag, matching how the records arrive from upstream.
	body := node.ChildByFieldName("body")
	if body != nil {
		p.extractMembers(body, content, rec)
	}

	return rec
}

// extractTypeList flattens the type_list under a super_interfaces or
// extends_interfaces node.
func (p *JavaParser) extractTypeList(node *sitter.Node, content []byte) []string {
	var out []string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != javaNodeTypeList {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			gc := child.Child(j)
			if gc.IsNamed() {
				out = append(out, gc.Content(content))
			}
		}
	}
	return out
}

// extractMembers walks a class or interface body collecting fields, methods
// and nested types. Nested classes are flattened into the member lists of
// their own records; the unit keeps only top-level records.
func (p *JavaParser) extractMembers(body *sitter.Node, content []byte, rec *ClassRecord) {
	for i := 0; i < int(body.ChildCount()); i++ {
		child := body.Child(i)
		switch child.Type() {
		case javaNodeFieldDecl:
			rec.Fields = append(rec.Fields, p.extractFields(child, content)...)
		case javaNodeMethodDecl, javaNodeConstructorDecl:
			if m := p.extractMethod(child, content); m != nil {
				rec.Methods = append(rec.Methods, m)
			}
		}
	}
}

// extractFields builds FieldRecords from one field declaration. A single
// declaration can declare several fields ("private int a, b;").
func (p *JavaParser) extractFields(node *sitter.Node, content []byte) []*FieldRecord {
	typeNode := node.ChildByFieldName("type")
	if typeNode == nil {
		return nil
	}
	fieldType := typeNode.Content(content)

	var modifiers []string
	var annotations AnnotationList
	visibility := ""
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == javaNodeModifiers {
			modifiers, annotations = p.extractModifiers(child, content)
			visibility, modifiers = splitVisibility(modifiers)
		}
	}

	var out []*FieldRecord
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != javaNodeVarDeclarator {
			continue
		}
		nameNode := child.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		fr := &FieldRecord{
			Name:        nameNode.Content(content),
			Type:        fieldType,
			Visibility:  visibility,
			Modifiers:   modifiers,
			Annotations: annotations,
		}
		if valueNode := child.ChildByFieldName("value"); valueNode != nil {
			fr.InitialValue = valueNode.Content(content)
		}
		out = append(out, fr)
	}
	return out
}

// extractMethod builds a MethodRecord from a method or constructor node.
func (p *JavaParser) extractMethod(node *sitter.Node, content []byte) *MethodRecord {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	m := &MethodRecord{
		Name:      nameNode.Content(content),
		StartLine: int(node.StartPoint().Row) + 1,
		LineCount: int(node.EndPoint().Row-node.StartPoint().Row) + 1,
	}

	if typeNode := node.ChildByFieldName("type"); typeNode != nil {
		m.ReturnType = typeNode.Content(content)
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case javaNodeModifiers:
			var mods []string
			mods, m.Annotations = p.extractModifiers(child, content)
			m.Visibility, m.Modifiers = splitVisibility(mods)
		case javaNodeThrows:
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				if gc.IsNamed() {
					m.Exceptions = append(m.Exceptions, gc.Content(content))
				}
			}
		}
	}

	if params := node.ChildByFieldName("parameters"); params != nil {
		m.Parameters = p.extractParameters(params, content)
	}

	if body := node.ChildByFieldName("body"); body != nil {
		if p.options.ExtractBodies {
			m.Body = body.Content(content)
		}
		m.Complexity = 1 + countComplexityNodes(body)
		if p.options.ExtractCalls {
			m.Calls = p.extractCalls(body, content)
		}
	}

	return m
}

// extractParameters reads formal parameters, including varargs.
func (p *JavaParser) extractParameters(node *sitter.Node, content []byte) []Parameter {
	var out []Parameter
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != javaNodeFormalParam && child.Type() != javaNodeSpreadParam {
			continue
		}
		param := Parameter{}
		if t := child.ChildByFieldName("type"); t != nil {
			param.Type = t.Content(content)
		}
		if n := child.ChildByFieldName("name"); n != nil {
			param.Name = n.Content(content)
		}
		if param.Type != "" || param.Name != "" {
			out = append(out, param)
		}
	}
	return out
}

// extractModifiers splits a modifiers node into plain modifier keywords and
// normalized annotations.
func (p *JavaParser) extractModifiers(node *sitter.Node, content []byte) ([]string, AnnotationList) {
	var modifiers []string
	var annotations AnnotationList
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case javaNodeMarkerAnnot:
			if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				annotations = append(annotations, Annotation{
					Name: nameNode.Content(content),
				})
			}
		case javaNodeAnnotation:
			if a, ok := p.extractAnnotation(child, content); ok {
				annotations = append(annotations, a)
			}
		default:
			modifiers = append(modifiers, child.Content(content))
		}
	}
	return modifiers, annotations
}

// extractAnnotation reads an annotation with arguments into the normalized
// shape. Single-value arguments land under the "value" key.
func (p *JavaParser) extractAnnotation(node *sitter.Node, content []byte) (Annotation, bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return Annotation{}, false
	}
	a := Annotation{
		Name:       nameNode.Content(content),
		Attributes: make(map[string]string),
	}

	args := node.ChildByFieldName("arguments")
	if args != nil {
		for i := 0; i < int(args.ChildCount()); i++ {
			child := args.Child(i)
			if child.Type() == javaNodeElementPair {
				key := child.ChildByFieldName("key")
				value := child.ChildByFieldName("value")
				if key != nil && value != nil {
					a.Attributes[key.Content(content)] = stripQuotes(value.Content(content))
				}
			} else if child.IsNamed() {
				a.Attributes["value"] = stripQuotes(child.Content(content))
			}
		}
	}
	if len(a.Attributes) == 0 {
		a.Attributes = nil
	}
	return a, true
}

// extractCalls collects method_invocation sites from a body subtree.
func (p *JavaParser) extractCalls(body *sitter.Node, content []byte) []CallRecord {
	var calls []CallRecord
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == javaNodeMethodInvoke {
			call := CallRecord{Line: int(n.StartPoint().Row) + 1}
			if obj := n.ChildByFieldName("object"); obj != nil {
				call.Receiver = obj.Content(content)
			}
			if name := n.ChildByFieldName("name"); name != nil {
				call.Method = name.Content(content)
			}
			if call.Method != "" {
				calls = append(calls, call)
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(body)
	return calls
}

// countComplexityNodes counts decision points in a body subtree.
func countComplexityNodes(body *sitter.Node) int {
	count := 0
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if javaComplexityNodes[n.Type()] {
			count++
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(body)
	return count
}

// splitVisibility pulls the visibility keyword out of a modifier list,
// returning (visibility, remaining modifiers).
func splitVisibility(modifiers []string) (string, []string) {
	visibility := ""
	rest := make([]string, 0, len(modifiers))
	for _, mod := range modifiers {
		if javaVisibilityModifiers[mod] && visibility == "" {
			visibility = mod
			continue
		}
		rest = append(rest, mod)
	}
	if len(rest) == 0 {
		rest = nil
	}
	return visibility, rest
}

// stripQuotes removes surrounding double quotes from a literal, if present.
func stripQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
