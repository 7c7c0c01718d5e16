// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package runner walks a source tree, parses matching Java files and runs
// them through the relationship engine, with an optional content-keyed
// result cache in front.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/AleutianAI/relic/services/analysis"
	"github.com/AleutianAI/relic/services/analysis/ast"
	"github.com/AleutianAI/relic/services/analysis/classify"
	"github.com/AleutianAI/relic/services/analysis/mapping"
	badgerstore "github.com/AleutianAI/relic/services/analysis/storage/badger"
)

// Options configures a runner.
type Options struct {
	// IncludeGlobs select files relative to the walk root. '/' separated,
	// ** crosses directories.
	IncludeGlobs []string

	// ExcludeGlobs drop files even when included. Build output and VCS
	// metadata are excluded by default.
	ExcludeGlobs []string

	// RuleFingerprint differentiates cache keys across rule-set changes.
	RuleFingerprint string
}

// DefaultOptions returns the standard runner configuration.
func DefaultOptions() Options {
	return Options{
		IncludeGlobs: []string{"**.java"},
		ExcludeGlobs: []string{
			"target/**", "**/target/**",
			"build/**", "**/build/**",
			".git/**", "**/.git/**",
		},
	}
}

// Option customizes runner construction.
type Option func(*Options)

// WithIncludeGlobs replaces the include patterns.
func WithIncludeGlobs(globs ...string) Option {
	return func(o *Options) {
		if len(globs) > 0 {
			o.IncludeGlobs = globs
		}
	}
}

// WithExcludeGlobs replaces the exclude patterns.
func WithExcludeGlobs(globs ...string) Option {
	return func(o *Options) { o.ExcludeGlobs = globs }
}

// WithRuleFingerprint sets the cache-key rule fingerprint.
func WithRuleFingerprint(fp string) Option {
	return func(o *Options) { o.RuleFingerprint = fp }
}

// Report is the output of one tree run.
type Report struct {
	// Batch holds the engine results for files that were re-analyzed.
	Batch *analysis.BatchResult `json:"batch"`

	// Cached holds results served from the store without re-analysis.
	Cached []*analysis.FileResult `json:"cached,omitempty"`

	// FilesScanned is the number of files matching the glob rules.
	FilesScanned int `json:"files_scanned"`

	// CacheHits is the number of files served from the store.
	CacheHits int `json:"cache_hits"`

	// ParseFailures lists files the parser rejected.
	ParseFailures []string `json:"parse_failures,omitempty"`
}

// AllResults returns cached and freshly analyzed results together.
func (r *Report) AllResults() []*analysis.FileResult {
	out := make([]*analysis.FileResult, 0, len(r.Cached)+len(r.Batch.Results))
	out = append(out, r.Cached...)
	for _, result := range r.Batch.Results {
		if result != nil {
			out = append(out, result)
		}
	}
	return out
}

// Runner drives tree-level analysis.
//
// Thread Safety: Safe for concurrent use; per-run state is local.
type Runner struct {
	parser   *ast.JavaParser
	engine   *analysis.Engine
	store    *badgerstore.ResultStore
	includes []glob.Glob
	excludes []glob.Glob
	opts     Options
}

// NewRunner builds a runner. store may be nil to disable caching.
func NewRunner(parser *ast.JavaParser, engine *analysis.Engine, store *badgerstore.ResultStore, opts ...Option) (*Runner, error) {
	if parser == nil || engine == nil {
		return nil, fmt.Errorf("runner: parser and engine are required")
	}

	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	r := &Runner{parser: parser, engine: engine, store: store, opts: o}
	var err error
	if r.includes, err = compileGlobs(o.IncludeGlobs); err != nil {
		return nil, err
	}
	if r.excludes, err = compileGlobs(o.ExcludeGlobs); err != nil {
		return nil, err
	}
	return r, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("runner: invalid glob %q: %w", pattern, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// Run walks root and analyzes every matching file.
//
// Description:
//
//	Files are parsed sequentially (the tree-sitter parser is not
//	concurrent-safe) and the parsed units go through the engine's
//	bounded-concurrency batch path. With a store configured, files whose
//	content digest hits the cache skip parse and analysis entirely.
//	Parse failures are collected on the report, never fatal.
func (r *Runner) Run(ctx context.Context, root string) (*Report, error) {
	paths, err := r.collectPaths(root)
	if err != nil {
		return nil, err
	}

	report := &Report{FilesScanned: len(paths)}
	var units []*ast.CompilationUnit
	var pendingHashes []string

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		content, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("Skipping unreadable file",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			report.ParseFailures = append(report.ParseFailures, path)
			continue
		}

		hash := badgerstore.ContentHash(content, r.opts.RuleFingerprint)
		if cached, err := r.store.Load(ctx, hash); err == nil && cached != nil {
			if result := decodeCached(cached); result != nil {
				report.Cached = append(report.Cached, result)
				report.CacheHits++
				continue
			}
		}

		unit, err := r.parser.ParseCompilationUnit(ctx, content, path)
		if err != nil {
			slog.Warn("Parse failed",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			report.ParseFailures = append(report.ParseFailures, path)
			continue
		}
		units = append(units, unit)
		pendingHashes = append(pendingHashes, hash)
	}

	report.Batch = r.engine.AnalyzeBatch(ctx, units)

	for i, result := range report.Batch.Results {
		if result == nil || result.Partial() {
			// Partial results are not cached: a later run with the stage
			// failure fixed should recompute them.
			continue
		}
		if err := r.saveResult(ctx, pendingHashes[i], result); err != nil {
			slog.Warn("Result cache write failed",
				slog.String("file", result.Unit.FilePath),
				slog.String("error", err.Error()),
			)
		}
	}

	return report, nil
}

// collectPaths walks root and returns matching file paths in walk order.
func (r *Runner) collectPaths(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		rel = strings.ReplaceAll(rel, "\\", "/")

		for _, g := range r.excludes {
			if g.Match(rel) {
				return nil
			}
		}
		for _, g := range r.includes {
			if g.Match(rel) {
				out = append(out, path)
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("runner: walk %q: %w", root, err)
	}
	return out, nil
}

func (r *Runner) saveResult(ctx context.Context, hash string, result *analysis.FileResult) error {
	if r.store == nil {
		return nil
	}
	payload, err := json.Marshal(result.Mappings)
	if err != nil {
		return err
	}
	return r.store.Save(ctx, hash, badgerstore.CachedResult{
		FilePath:     result.Unit.FilePath,
		Layer:        string(result.Layer),
		Architecture: string(result.Architecture),
		Mappings:     payload,
	})
}

// decodeCached rebuilds a FileResult from a cache entry. Returns nil when
// the entry cannot be decoded, which callers treat as a miss.
func decodeCached(cached *badgerstore.CachedResult) *analysis.FileResult {
	var mappings []mapping.CodeMapping
	if len(cached.Mappings) > 0 {
		if err := json.Unmarshal(cached.Mappings, &mappings); err != nil {
			return nil
		}
	}
	return &analysis.FileResult{
		// Only the source path survives a cache round trip; the full
		// structural unit is not persisted.
		Unit:              &ast.CompilationUnit{FilePath: cached.FilePath},
		Layer:             classify.Layer(cached.Layer),
		Architecture:      classify.Architecture(cached.Architecture),
		Mappings:          mappings,
		RelationshipCount: len(mappings),
	}
}
