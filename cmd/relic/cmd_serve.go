// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/AleutianAI/relic/services/analysis"
	"github.com/AleutianAI/relic/services/analysis/config"
	"github.com/AleutianAI/relic/services/analysis/server"
	badgerstore "github.com/AleutianAI/relic/services/analysis/storage/badger"
)

// Flag values for the serve command.
var (
	servePort  int
	serveDebug bool
)

// serveShutdownTimeout bounds graceful drain on SIGTERM.
const serveShutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis HTTP service",
		RunE:  runServeCommand,
	}
	cmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")
	cmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable Gin debug mode and request logging")
	return cmd
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	if serveDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// W3C TraceContext propagation so trace context flows from incoming
	// headers through all handlers.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	rules, err := config.LoadRules("")
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	engine, err := analysis.NewEngine(rules)
	if err != nil {
		return err
	}

	// Result cache in the user cache directory. Graceful degradation: if
	// unavailable, tree runs just recompute everything.
	var store *badgerstore.ResultStore
	cacheDir := os.Getenv("RELIC_CACHE_DIR")
	if cacheDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cacheDir = filepath.Join(home, ".relic", "cache", "results")
		}
	}
	if cacheDir != "" {
		cfg := badgerstore.DefaultConfig()
		cfg.Path = cacheDir
		db, err := badgerstore.OpenDB(cfg)
		if err != nil {
			slog.Warn("Result cache BadgerDB unavailable, caching disabled",
				slog.String("path", cacheDir),
				slog.String("error", err.Error()),
			)
		} else {
			defer db.Close()
			store = badgerstore.NewResultStore(db, 0)
			slog.Info("Result cache BadgerDB opened", slog.String("path", cacheDir))
		}
	}

	handlers := server.NewHandlers(engine, store)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("relic-analysis"))
	if serveDebug {
		router.Use(gin.Logger())
	}

	v1 := router.Group("/v1")
	server.RegisterRoutes(v1, handlers)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", servePort),
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Analysis service listening", slog.Int("port", servePort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), serveShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
