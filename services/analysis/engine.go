// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analysis orchestrates per-file relationship extraction: it
// builds the resolution context for each compilation unit, runs the
// classifier and every extraction stage, folds the merged records into
// CodeMapping edges, and applies the optional package filter.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/relic/services/analysis/ast"
	"github.com/AleutianAI/relic/services/analysis/classify"
	"github.com/AleutianAI/relic/services/analysis/config"
	"github.com/AleutianAI/relic/services/analysis/extract"
	"github.com/AleutianAI/relic/services/analysis/mapping"
	"github.com/AleutianAI/relic/services/analysis/resolve"
)

// ErrNilUnit is returned when a caller hands the engine a nil unit.
var ErrNilUnit = errors.New("analysis: nil compilation unit")

// ErrNilRules is returned when the engine is constructed without rules.
var ErrNilRules = errors.New("analysis: nil rule set")

// StageError records one isolated extraction stage failure.
type StageError struct {
	// Stage is the failing extractor's name.
	Stage string `json:"stage"`

	// Message is the recovered failure description.
	Message string `json:"message"`
}

func (e StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %s", e.Stage, e.Message)
}

// =============================================================================
// Options
// =============================================================================

// Options configures the engine.
type Options struct {
	// Workers bounds batch concurrency. Defaults to the CPU count.
	Workers int

	// ApplyFilter runs the configured package filter as a second pass
	// over emitted edges. Extraction itself is never filtered.
	ApplyFilter bool
}

// DefaultOptions returns the standard engine configuration.
func DefaultOptions() Options {
	return Options{
		Workers:     runtime.NumCPU(),
		ApplyFilter: true,
	}
}

// Option customizes engine construction.
type Option func(*Options)

// WithWorkers bounds batch concurrency. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(o *Options) {
		if n >= 1 {
			o.Workers = n
		}
	}
}

// WithoutFilter disables the package filter pass.
func WithoutFilter() Option {
	return func(o *Options) { o.ApplyFilter = false }
}

// =============================================================================
// Results
// =============================================================================

// FileResult is the output of analyzing one compilation unit: the
// enriched unit itself plus everything derived from it.
type FileResult struct {
	// Unit is the analyzed unit, enriched in place with SQL detections
	// and entity mappings.
	Unit *ast.CompilationUnit `json:"unit,omitempty"`

	// Layer is the cascade classification result.
	Layer classify.Layer `json:"layer"`

	// Architecture is the path-based architecture classification.
	Architecture classify.Architecture `json:"architecture"`

	// Mappings holds the emitted edges in extraction insertion order.
	Mappings []mapping.CodeMapping `json:"mappings,omitempty"`

	// RelationshipCount is the raw record count before emission and
	// filtering.
	RelationshipCount int `json:"relationship_count"`

	// StageErrors lists extraction stages that failed and were isolated.
	// A failed stage contributes zero records; siblings still ran.
	StageErrors []StageError `json:"stage_errors,omitempty"`
}

// Partial reports whether any extraction stage failed.
func (r *FileResult) Partial() bool { return len(r.StageErrors) > 0 }

// Stats aggregates one batch run.
type Stats struct {
	FilesProcessed         int           `json:"files_processed"`
	FilesPartial           int           `json:"files_partial"`
	RelationshipsExtracted int           `json:"relationships_extracted"`
	MappingsEmitted        int           `json:"mappings_emitted"`
	StageFailures          int           `json:"stage_failures"`
	Duration               time.Duration `json:"duration"`
}

// BatchResult is the output of one batch run.
type BatchResult struct {
	// RunID uniquely identifies the run in logs and downstream storage.
	RunID string `json:"run_id"`

	// Results holds one entry per input unit, in input order.
	Results []*FileResult `json:"results"`

	// Stats aggregates the run.
	Stats Stats `json:"stats"`
}

// =============================================================================
// Engine
// =============================================================================

// Engine is the per-file relationship extraction orchestrator.
//
// Description:
//
//	One engine is built per loaded rule set and reused across files and
//	batches. Per-file state (the resolution context, record slices) is
//	created fresh inside each call, so a single engine is safe under the
//	batch worker pool. Stage failures are recovered at the stage
//	boundary: the failing stage contributes nothing, sibling stages run,
//	and the failure surfaces on the result and the stage-failure metric,
//	never as a panic or returned error.
//
// Thread Safety: Safe for concurrent use after construction.
type Engine struct {
	rules      *config.Rules
	classifier *classify.Classifier
	extractors []extract.Extractor
	emitter    *mapping.Emitter
	filter     *mapping.Filter
	opts       Options
}

// NewEngine builds an engine over a loaded rule set.
//
// Inputs:
//
//	rules - The loaded analysis rules. Must be non-nil.
//	opts  - Optional configuration.
//
// Outputs:
//
//	*Engine - The ready engine.
//	error   - ErrNilRules when rules is nil.
func NewEngine(rules *config.Rules, opts ...Option) (*Engine, error) {
	if rules == nil {
		return nil, ErrNilRules
	}

	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &Engine{
		rules:      rules,
		classifier: classify.NewClassifier(rules),
		extractors: []extract.Extractor{
			&extract.MethodCallExtractor{},
			&extract.FieldReferenceExtractor{},
			&extract.InheritanceExtractor{},
			&extract.AnnotationDependencyExtractor{},
			extract.NewFrameworkRelationshipExtractor(rules),
			extract.NewLegacyPatternMiner(rules.LegacyPatterns),
			extract.NewEmbeddedSqlDetector(rules.Sql),
			extract.NewEntityMappingDetector(rules.Entity),
			&extract.RestEndpointExtractor{},
			&extract.SecurityRoleExtractor{},
			&extract.AopPointcutExtractor{},
		},
		emitter: mapping.NewEmitter(),
		filter:  mapping.NewFilter(rules.Filter),
		opts:    o,
	}, nil
}

// RuleFingerprint returns the digest of the engine's rule set. Result
// caches key on it so rule changes never serve stale entries.
func (e *Engine) RuleFingerprint() string {
	return e.rules.Fingerprint()
}

// AnalyzeUnit runs the full pipeline on one compilation unit.
//
// Description:
//
//	Builds the unit's resolution context, classifies it, runs every
//	extraction stage in isolation, folds the merged records into edges
//	and applies the package filter. The unit is enriched in place with
//	SQL detections and entity mappings; callers that need the original
//	untouched should pass a copy.
//
// Outputs:
//
//	*FileResult - Always non-nil on success, even when every stage
//	              failed (an empty contribution, not an error).
//	error       - ErrNilUnit only. Stage failures never propagate.
func (e *Engine) AnalyzeUnit(ctx context.Context, unit *ast.CompilationUnit) (*FileResult, error) {
	if unit == nil {
		return nil, ErrNilUnit
	}

	tracer := otel.Tracer(engineTracerName)
	ctx, span := tracer.Start(ctx, "analysis.AnalyzeUnit",
		trace.WithAttributes(attribute.String("file.path", unit.FilePath)),
	)
	defer span.End()

	start := time.Now()
	rc := resolve.NewContext(unit)
	layer, arch := e.classifier.Classify(unit)

	result := &FileResult{
		Unit:         unit,
		Layer:        layer,
		Architecture: arch,
	}

	var records []extract.Relationship
	for _, extractor := range e.extractors {
		stageRecords, err := runStage(extractor, unit, rc)
		if err != nil {
			stageFailuresTotal.WithLabelValues(extractor.Name()).Inc()
			result.StageErrors = append(result.StageErrors, StageError{
				Stage:   extractor.Name(),
				Message: err.Error(),
			})
			slog.Warn("Extraction stage failed; continuing with siblings",
				slog.String("stage", extractor.Name()),
				slog.String("file", unit.FilePath),
				slog.String("error", err.Error()),
			)
			continue
		}
		records = append(records, stageRecords...)
	}

	result.RelationshipCount = len(records)

	edges := e.emitter.Emit(unit, records)
	if e.opts.ApplyFilter {
		edges = e.filter.Apply(edges)
	}
	result.Mappings = edges

	status := "success"
	if result.Partial() {
		status = "partial"
	}
	filesTotal.WithLabelValues(status).Inc()
	fileDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	for _, edge := range edges {
		mappingsTotal.WithLabelValues(string(edge.MappingType)).Inc()
	}
	span.SetAttributes(
		attribute.Int("mappings.count", len(edges)),
		attribute.Int("stage_errors.count", len(result.StageErrors)),
	)

	return result, nil
}

// runStage executes one extractor with panic isolation at the stage
// boundary.
func runStage(extractor extract.Extractor, unit *ast.CompilationUnit, rc *resolve.Context) (records []extract.Relationship, err error) {
	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = fmt.Errorf("recovered: %v", r)
		}
	}()
	return extractor.Extract(unit, rc), nil
}

// AnalyzeBatch runs the pipeline over many units on a bounded worker
// pool.
//
// Description:
//
//	Units are processed concurrently up to the configured worker bound.
//	Per-file failures never abort the batch: a nil unit produces a nil
//	result slot, everything else produces a FileResult. Cancellation of
//	ctx stops scheduling new files; in-flight files complete.
//
// Outputs:
//
//	*BatchResult - Results in input order plus aggregate stats. Never
//	               nil.
func (e *Engine) AnalyzeBatch(ctx context.Context, units []*ast.CompilationUnit) *BatchResult {
	tracer := otel.Tracer(engineTracerName)
	ctx, span := tracer.Start(ctx, "analysis.AnalyzeBatch",
		trace.WithAttributes(attribute.Int("batch.size", len(units))),
	)
	defer span.End()

	start := time.Now()
	batch := &BatchResult{
		RunID:   uuid.NewString(),
		Results: make([]*FileResult, len(units)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, unit := range units {
		if unit == nil {
			continue
		}
		i, unit := i, unit
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			result, err := e.AnalyzeUnit(gctx, unit)
			if err != nil {
				return nil
			}
			batch.Results[i] = result
			return nil
		})
	}
	// Workers only return nil; Wait just synchronizes.
	_ = g.Wait()

	for _, result := range batch.Results {
		if result == nil {
			continue
		}
		batch.Stats.FilesProcessed++
		if result.Partial() {
			batch.Stats.FilesPartial++
		}
		batch.Stats.MappingsEmitted += len(result.Mappings)
		batch.Stats.RelationshipsExtracted += result.RelationshipCount
		batch.Stats.StageFailures += len(result.StageErrors)
	}
	batch.Stats.Duration = time.Since(start)

	slog.Info("Batch analysis complete",
		slog.String("run_id", batch.RunID),
		slog.Int("files", batch.Stats.FilesProcessed),
		slog.Int("mappings", batch.Stats.MappingsEmitted),
		slog.Int("stage_failures", batch.Stats.StageFailures),
		slog.Duration("duration", batch.Stats.Duration),
	)
	return batch
}
