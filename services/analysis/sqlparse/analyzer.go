// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sqlparse is the SQL statement analyzer consumed by the embedded
// SQL detector. It classifies statement kind and referenced database
// objects with a tolerant keyword scan — not a grammar — because legacy
// embedded SQL is frequently fragmentary, concatenated or dialect-mixed.
package sqlparse

import (
	"regexp"
	"strings"
)

// Statement kind tags returned in StatementInfo.Type.
const (
	StatementSelect  = "select"
	StatementInsert  = "insert"
	StatementUpdate  = "update"
	StatementDelete  = "delete"
	StatementMerge   = "merge"
	StatementExec    = "exec"
	StatementDDL     = "ddl"
	StatementUnknown = "unknown"
)

// StatementInfo describes one analyzed SQL statement.
//
// Thread Safety: Immutable after construction.
type StatementInfo struct {
	// Type is the statement kind tag.
	Type string `json:"type"`

	// Objects lists referenced table or procedure names in match order,
	// deduplicated, original casing preserved.
	Objects []string `json:"objects,omitempty"`

	// Procedure is true when the statement invokes a stored procedure.
	Procedure bool `json:"procedure,omitempty"`

	// Dialect echoes the dialect the caller analyzed under.
	Dialect string `json:"dialect,omitempty"`
}

// Object-reference extraction patterns. Object names may be bracket-quoted
// (T-SQL), schema-qualified, or temp-table prefixed.
var (
	objectName = `[\[\]\w.#$]+`

	fromPattern   = regexp.MustCompile(`(?i)\bfrom\s+(` + objectName + `)`)
	joinPattern   = regexp.MustCompile(`(?i)\bjoin\s+(` + objectName + `)`)
	intoPattern   = regexp.MustCompile(`(?i)\binto\s+(` + objectName + `)`)
	updatePattern = regexp.MustCompile(`(?i)\bupdate\s+(` + objectName + `)`)
	mergePattern  = regexp.MustCompile(`(?i)\bmerge\s+(?:into\s+)?(` + objectName + `)`)
	execPattern   = regexp.MustCompile(`(?i)^\s*(?:exec(?:ute)?|call)\s+(` + objectName + `)`)
	ddlPattern    = regexp.MustCompile(`(?i)^\s*(?:create|alter|drop|truncate)\s+(?:table|view|index|procedure|proc|trigger)\s+(` + objectName + `)`)
)

// Analyze classifies one SQL statement.
//
// Description:
//
//	Determines the statement kind from its leading keyword and extracts
//	referenced object names from FROM/JOIN/INTO/UPDATE/MERGE clauses (or
//	the procedure name for EXEC/CALL and DDL forms). Analysis never
//	errors: text that carries no recognizable SQL shape returns
//	(nil, false) and callers are expected to tolerate that.
//
// Inputs:
//
//	sqlText - The statement text. Leading/trailing whitespace ignored.
//	dialect - Dialect hint echoed back on the result ("tsql", "plsql").
//	          The scan itself is dialect-agnostic.
//
// Outputs:
//
//	*StatementInfo - The classification, or nil when not recognizable.
//	bool           - False when the text is not recognizable as SQL.
//
// Thread Safety: Safe for concurrent use (stateless).
func Analyze(sqlText, dialect string) (*StatementInfo, bool) {
	trimmed := strings.TrimSpace(sqlText)
	if trimmed == "" {
		return nil, false
	}

	info := &StatementInfo{Dialect: dialect}

	if m := execPattern.FindStringSubmatch(trimmed); m != nil {
		info.Type = StatementExec
		info.Procedure = true
		info.Objects = []string{cleanObjectName(m[1])}
		return info, true
	}
	if m := ddlPattern.FindStringSubmatch(trimmed); m != nil {
		info.Type = StatementDDL
		info.Objects = []string{cleanObjectName(m[1])}
		return info, true
	}

	keyword := leadingKeyword(trimmed)
	switch keyword {
	case "select":
		info.Type = StatementSelect
		info.Objects = collectObjects(trimmed, fromPattern, joinPattern)
	case "insert":
		info.Type = StatementInsert
		info.Objects = collectObjects(trimmed, intoPattern, fromPattern, joinPattern)
	case "update":
		info.Type = StatementUpdate
		info.Objects = collectObjects(trimmed, updatePattern, fromPattern, joinPattern)
	case "delete":
		info.Type = StatementDelete
		info.Objects = collectObjects(trimmed, fromPattern, joinPattern)
	case "merge":
		info.Type = StatementMerge
		info.Objects = collectObjects(trimmed, mergePattern, fromPattern, joinPattern)
	case "with":
		// CTE prelude: classify by the referenced objects alone.
		info.Type = StatementSelect
		info.Objects = collectObjects(trimmed, fromPattern, joinPattern)
	default:
		return nil, false
	}

	return info, true
}

// leadingKeyword returns the lowercased first word of the statement.
func leadingKeyword(trimmed string) string {
	end := len(trimmed)
	for i, r := range trimmed {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '(' {
			end = i
			break
		}
	}
	return strings.ToLower(trimmed[:end])
}

// collectObjects runs the given patterns in order, deduplicating results.
func collectObjects(sqlText string, patterns ...*regexp.Regexp) []string {
	var objects []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		for _, m := range pattern.FindAllStringSubmatch(sqlText, -1) {
			name := cleanObjectName(m[1])
			if name == "" || isSQLKeyword(name) {
				continue
			}
			key := strings.ToLower(name)
			if !seen[key] {
				seen[key] = true
				objects = append(objects, name)
			}
		}
	}
	return objects
}

// cleanObjectName strips T-SQL bracket quoting and trailing punctuation.
// Brackets may appear per segment ([dbo].[Orders]), so all of them go.
func cleanObjectName(name string) string {
	name = strings.ReplaceAll(name, "[", "")
	name = strings.ReplaceAll(name, "]", "")
	name = strings.TrimRight(name, ",;)")
	return name
}

// sqlKeywords are words the object patterns can over-capture (subquery
// parens already excluded by the name charset, but DUAL and values-style
// placeholders still slip through).
var sqlKeywords = map[string]bool{
	"select": true, "values": true, "dual": true, "set": true,
	"where": true, "on": true,
}

func isSQLKeyword(name string) bool {
	return sqlKeywords[strings.ToLower(name)]
}
