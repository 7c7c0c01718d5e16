// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes the relationship engine over HTTP.
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/relic/services/analysis"
	"github.com/AleutianAI/relic/services/analysis/ast"
	"github.com/AleutianAI/relic/services/analysis/runner"
	badgerstore "github.com/AleutianAI/relic/services/analysis/storage/badger"
)

// requestIDHeader carries the caller-supplied correlation ID.
const requestIDHeader = "X-Request-ID"

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// AnalyzeFileRequest is the body of POST /v1/analysis/file.
type AnalyzeFileRequest struct {
	// FilePath labels the content; it is not read from disk.
	FilePath string `json:"file_path"`

	// Content is the Java source text.
	Content string `json:"content" binding:"required"`
}

// RunAnalysisRequest is the body of POST /v1/analysis/run.
type RunAnalysisRequest struct {
	// Root is the source tree to analyze. Must exist on the server.
	Root string `json:"root" binding:"required"`

	// IncludeGlobs and ExcludeGlobs override the default file selection.
	IncludeGlobs []string `json:"include_globs,omitempty"`
	ExcludeGlobs []string `json:"exclude_globs,omitempty"`
}

// Handlers exposes the engine over HTTP.
//
// Thread Safety: All handlers are safe for concurrent use. The shared
// engine is concurrent-safe; the tree-sitter parser is not, so every
// request builds its own.
type Handlers struct {
	engine *analysis.Engine
	store  *badgerstore.ResultStore
}

// NewHandlers builds the handler set. store may be nil to disable the
// result cache on tree runs.
func NewHandlers(engine *analysis.Engine, store *badgerstore.ResultStore) *Handlers {
	return &Handlers{engine: engine, store: store}
}

// getOrCreateRequestID returns the caller's correlation ID or mints one.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader(requestIDHeader); id != "" {
		return id
	}
	return uuid.NewString()
}

// HandleAnalyzeFile analyzes one in-memory Java source.
//
// POST /v1/analysis/file
//
// Returns:
//
//	200 OK: analysis.FileResult
//	400 Bad Request: Missing content or unparseable source
//	413 Request Entity Too Large: Source exceeds the parser size limit
//
// Thread Safety: Safe for concurrent use.
func (h *Handlers) HandleAnalyzeFile(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAnalyzeFile")

	var req AnalyzeFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "content is required",
			Code:  "MISSING_CONTENT",
		})
		return
	}

	parser := ast.NewJavaParser()
	unit, err := parser.ParseCompilationUnit(c.Request.Context(), []byte(req.Content), req.FilePath)
	if err != nil {
		if errors.Is(err, ast.ErrFileTooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
				Error: "source exceeds the size limit",
				Code:  "FILE_TOO_LARGE",
			})
			return
		}
		logger.Warn("Parse failed", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "source could not be parsed",
			Code:  "PARSE_FAILED",
		})
		return
	}

	result, err := h.engine.AnalyzeUnit(c.Request.Context(), unit)
	if err != nil {
		logger.Error("Analysis failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "analysis failed",
			Code:  "ANALYSIS_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// HandleRunAnalysis analyzes a source tree on the server filesystem.
//
// POST /v1/analysis/run
//
// Returns:
//
//	200 OK: runner.Report
//	400 Bad Request: Missing or non-existent root
//
// Thread Safety: Safe for concurrent use; each request owns its runner.
func (h *Handlers) HandleRunAnalysis(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleRunAnalysis")

	var req RunAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "root is required",
			Code:  "MISSING_ROOT",
		})
		return
	}
	if info, err := os.Stat(req.Root); err != nil || !info.IsDir() {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "root is not an existing directory",
			Code:  "INVALID_ROOT",
		})
		return
	}

	parser := ast.NewJavaParser()

	opts := []runner.Option{
		runner.WithRuleFingerprint(h.engine.RuleFingerprint()),
	}
	if len(req.IncludeGlobs) > 0 {
		opts = append(opts, runner.WithIncludeGlobs(req.IncludeGlobs...))
	}
	if len(req.ExcludeGlobs) > 0 {
		opts = append(opts, runner.WithExcludeGlobs(req.ExcludeGlobs...))
	}

	run, err := runner.NewRunner(parser, h.engine, h.store, opts...)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_GLOBS",
		})
		return
	}

	report, err := run.Run(c.Request.Context(), req.Root)
	if err != nil {
		logger.Error("Tree analysis failed",
			slog.String("root", req.Root),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "analysis run failed",
			Code:  "RUN_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, report)
}

// HandleHealth reports liveness.
//
// GET /v1/analysis/health
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleReady reports readiness: the engine must be constructed.
//
// GET /v1/analysis/ready
func (h *Handlers) HandleReady(c *gin.Context) {
	if h.engine == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "engine not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
