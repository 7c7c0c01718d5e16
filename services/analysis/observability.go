// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analysis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// engineTracerName is the shared OTel tracer name for the engine.
const engineTracerName = "relic.analysis"

// Package-level Prometheus metrics for relationship extraction.
// Auto-registered via promauto so no explicit registry wiring is needed.
var (
	// fileDuration measures per-file analysis duration.
	//
	// Labels:
	//   - status: "success" or "partial" (one or more stages failed)
	fileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "relic",
			Subsystem: "analysis",
			Name:      "file_duration_seconds",
			Help:      "Duration of per-file relationship extraction in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"status"},
	)

	// filesTotal counts analyzed files.
	//
	// Labels:
	//   - status: "success" or "partial"
	filesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relic",
			Subsystem: "analysis",
			Name:      "files_total",
			Help:      "Total number of files run through the engine.",
		},
		[]string{"status"},
	)

	// stageFailuresTotal counts isolated extraction stage failures.
	//
	// Labels:
	//   - stage: the extractor name ("method_call", "embedded_sql", ...)
	stageFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relic",
			Subsystem: "analysis",
			Name:      "stage_failures_total",
			Help:      "Total extraction stage failures isolated at the stage boundary.",
		},
		[]string{"stage"},
	)

	// mappingsTotal counts emitted edges by mapping type.
	//
	// Labels:
	//   - mapping_type: the CodeMapping edge type
	mappingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relic",
			Subsystem: "analysis",
			Name:      "mappings_total",
			Help:      "Total CodeMapping edges emitted by type.",
		},
		[]string{"mapping_type"},
	)
)
