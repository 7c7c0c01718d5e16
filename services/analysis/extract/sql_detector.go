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
	"log/slog"
	"regexp"
	"strconv"

	"github.com/AleutianAI/relic/services/analysis/ast"
	"github.com/AleutianAI/relic/services/analysis/config"
	"github.com/AleutianAI/relic/services/analysis/resolve"
	"github.com/AleutianAI/relic/services/analysis/sqlparse"
)

// EmbeddedSqlDetector finds SQL statements buried in method bodies.
//
// Description:
//
//	Two configured pattern families drive detection. Execution patterns
//	match calls that carry a SQL literal (executeQuery("SELECT ..."));
//	the captured literal is classified by the statement analyzer and one
//	sql_execution record is emitted per referenced object. Procedure
//	patterns match dynamic stored-procedure-name construction where no
//	literal exists; those emit a single "dynamic" record carrying the
//	name-bearing expression.
//
//	Detections are additionally attached to the owning method record, so
//	the enriched unit the engine returns carries them.
//
// Thread Safety: Immutable after construction, safe for concurrent use.
type EmbeddedSqlDetector struct {
	dialect           string
	executionPatterns []*regexp.Regexp
	procedurePatterns []*regexp.Regexp
}

// NewEmbeddedSqlDetector compiles the configured SQL detection patterns.
// Invalid patterns are logged and dropped.
func NewEmbeddedSqlDetector(rules config.SqlRules) *EmbeddedSqlDetector {
	return &EmbeddedSqlDetector{
		dialect:           rules.Dialect,
		executionPatterns: compilePatterns(rules.ExecutionPatterns),
		procedurePatterns: compilePatterns(rules.ProcedurePatterns),
	}
}

func compilePatterns(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			slog.Warn("Dropping invalid SQL detection pattern",
				slog.String("pattern", pattern),
				slog.String("error", err.Error()),
			)
			continue
		}
		out = append(out, re)
	}
	return out
}

func (d *EmbeddedSqlDetector) Name() string { return "embedded_sql" }

func (d *EmbeddedSqlDetector) Extract(unit *ast.CompilationUnit, rc *resolve.Context) []Relationship {
	var out []Relationship
	for _, class := range unit.AllTypes() {
		owner := qualifiedOwner(unit, class)
		for _, method := range class.Methods {
			if method.Body == "" {
				continue
			}
			executions := d.scanMethod(method)
			if len(executions) == 0 {
				continue
			}
			// Assigned, not appended: re-analyzing the same unit must not
			// double the attached detections.
			method.SqlExecutions = executions
			out = append(out, d.relationships(owner, method.Name, executions)...)
		}
	}
	return out
}

func (d *EmbeddedSqlDetector) scanMethod(method *ast.MethodRecord) []ast.SqlExecution {
	var out []ast.SqlExecution

	for _, re := range d.executionPatterns {
		if re.NumSubexp() < 1 {
			continue
		}
		for _, m := range re.FindAllStringSubmatchIndex(method.Body, -1) {
			literal := method.Body[m[2]:m[3]]
			out = append(out, d.classify(literal, bodyLine(method, m[0])))
		}
	}

	for _, re := range d.procedurePatterns {
		if re.NumSubexp() < 1 {
			continue
		}
		for _, m := range re.FindAllStringSubmatchIndex(method.Body, -1) {
			expr := method.Body[m[2]:m[3]]
			out = append(out, ast.SqlExecution{
				Statement:       expr,
				StatementType:   "dynamic",
				Objects:         []string{expr},
				Line:            bodyLine(method, m[0]),
				StoredProcedure: true,
			})
		}
	}

	return out
}

func (d *EmbeddedSqlDetector) classify(literal string, line int) ast.SqlExecution {
	exec := ast.SqlExecution{Statement: literal, Line: line}

	info, ok := sqlparse.Analyze(literal, d.dialect)
	if !ok {
		exec.StatementType = sqlparse.StatementUnknown
		return exec
	}
	exec.StatementType = info.Type
	exec.Objects = info.Objects
	exec.StoredProcedure = info.Procedure
	return exec
}

func (d *EmbeddedSqlDetector) relationships(owner, methodName string, executions []ast.SqlExecution) []Relationship {
	var out []Relationship
	for _, exec := range executions {
		attrs := map[string]string{
			"statement_type": exec.StatementType,
			"method_name":    methodName,
			"stored_procedure": strconv.FormatBool(
				exec.StoredProcedure,
			),
		}

		// One record per referenced object keeps the graph edge-per-table.
		// A statement with no extractable objects still emits one record
		// so the data access is not silently lost.
		targets := exec.Objects
		if len(targets) == 0 {
			targets = []string{"<unresolved>"}
		}
		for _, target := range targets {
			out = append(out, Relationship{
				Kind:       KindSqlExecution,
				Provenance: ProvenanceStructural,
				Owner:      owner,
				Target:     target,
				Line:       exec.Line,
				Attributes: attrs,
			})
		}
	}
	return out
}
