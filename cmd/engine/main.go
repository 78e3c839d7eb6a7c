package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/coref-scorer/internal/api"
	"github.com/rawblock/coref-scorer/internal/batch"
	"github.com/rawblock/coref-scorer/internal/config"
	"github.com/rawblock/coref-scorer/internal/db"
	"github.com/rawblock/coref-scorer/internal/evaluation"
	"github.com/rawblock/coref-scorer/internal/logger"
)

func main() {
	// ─── Configuration ──────────────────────────────────────────────────
	// Settings come from an optional YAML file (ENGINE_CONFIG), a .env
	// file for local development, then the environment. API_AUTH_TOKEN is
	// read from the environment only.
	// ────────────────────────────────────────────────────────────────────
	cfg, err := config.Load(os.Getenv("ENGINE_CONFIG"))
	if err != nil {
		logger.Fatal("[Engine] Failed to load configuration", "err", err)
	}
	logger.SetDefault(logger.New(os.Stderr, cfg.LogLevel))

	logger.Info("[Engine] Starting Coreference Scoring Engine...",
		"metrics", cfg.Scoring.Metrics,
		"reconcile", cfg.Scoring.Reconcile,
		"parallel", cfg.Scoring.Parallel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persistence is optional: without DATABASE_URL reports are not stored
	var store *db.PostgresStore
	if cfg.DatabaseURL == "" {
		logger.Warn("[Engine] DATABASE_URL not set, continuing without persisting scoring runs")
	} else if store, err = db.Connect(ctx, cfg.DatabaseURL); err != nil {
		logger.Warn("[Engine] Failed to connect to PostgreSQL, continuing without persisting scoring runs", "err", err)
		store = nil
	} else {
		defer store.Close()
		if err := store.InitSchema(ctx); err != nil {
			logger.Warn("[Engine] DB schema init failed", "err", err)
		}
	}

	// nil-safe interface values for the consumers
	var apiStore api.ReportStore
	var batchStore evaluation.ReportStore
	if store != nil {
		apiStore, batchStore = store, store
	}

	// Setup WebSocket Hub
	wsHub := api.NewHub()
	go wsHub.Run()

	evaluator, err := evaluation.New(
		evaluation.WithReconcile(cfg.Scoring.Reconcile),
		evaluation.WithParallel(cfg.Scoring.Parallel),
		evaluation.WithMetrics(cfg.Scoring.Metrics...),
		evaluation.WithObserver(api.ObserveMetric),
	)
	if err != nil {
		logger.Fatal("[Engine] Invalid scoring configuration", "err", err)
	}

	// Batch scanner with real-time WebSocket alert broadcasting
	scanner := batch.NewScanner(evaluator, batchStore, api.BroadcastDocumentScored(wsHub))
	scanner.SetWorkers(cfg.Scoring.Workers)

	limiter := api.NewRateLimiter(cfg.RatePerMinute, cfg.RateBurst)
	defer limiter.Stop()

	r := api.SetupRouter(api.Deps{
		Store:          apiStore,
		Hub:            wsHub,
		Scanner:        scanner,
		Limiter:        limiter,
		Scoring:        cfg.Scoring,
		AuthToken:      cfg.AuthToken,
		AllowedOrigins: cfg.AllowedOrigins,
		BatchRoot:      cfg.BatchRoot,
		Logger:         logger.Default(),
	})
	if gin.Mode() == gin.ReleaseMode && cfg.BatchRoot == "" {
		logger.Warn("[Engine] BATCH_ROOT is not set; batch requests may read any directory on this host")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("[Engine] Engine running", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("[Engine] Failed to start server", "err", err)
		}
	}()

	<-ctx.Done()
	logger.Info("[Engine] Shutting down...")
	scanner.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("[Engine] Graceful shutdown failed", "err", err)
	}
}
