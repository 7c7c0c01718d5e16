// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all analysis routes with the router.
//
// Description:
//
//	Registers all /v1/analysis/* endpoints with the given Gin router
//	group. The router group should already have any required middleware
//	applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/analysis/file - Analyze one in-memory Java source
//	POST /v1/analysis/run - Analyze a source tree on the server
//	GET  /v1/analysis/health - Health check
//	GET  /v1/analysis/ready - Readiness check
//
// Example:
//
//	engine, _ := analysis.NewEngine(rules)
//	handlers := server.NewHandlers(engine, store)
//
//	v1 := router.Group("/v1")
//	server.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	analysis := rg.Group("/analysis")
	{
		analysis.POST("/file", handlers.HandleAnalyzeFile)
		analysis.POST("/run", handlers.HandleRunAnalysis)

		analysis.GET("/health", handlers.HandleHealth)
		analysis.GET("/ready", handlers.HandleReady)
	}
}
