package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/marketdash/dash-assistant-go/internal/config"
	"github.com/marketdash/dash-assistant-go/internal/domain"
	"github.com/marketdash/dash-assistant-go/internal/handler"
	"github.com/marketdash/dash-assistant-go/internal/infra/cache"
	"github.com/marketdash/dash-assistant-go/internal/infra/observability"
	"github.com/marketdash/dash-assistant-go/internal/infra/resilience"
	"github.com/marketdash/dash-assistant-go/internal/infra/store"
	"github.com/marketdash/dash-assistant-go/internal/infra/vlm"
	"github.com/marketdash/dash-assistant-go/internal/marketdata"
	"github.com/marketdash/dash-assistant-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("ollama_host", cfg.OllamaHost),
		zap.String("ollama_model", cfg.OllamaModel),
		zap.Duration("vlm_timeout", cfg.VLMTimeout),
		zap.String("data_file", cfg.DataFile),
		zap.Bool("scheduler_enabled", cfg.SchedulerEnabled),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "dash-assistant")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Snapshot store ---
	snapshots, err := store.Open(cfg.DataDir)
	if err != nil {
		logger.Fatal("failed to open snapshot store", zap.Error(err))
	}
	defer snapshots.Close()

	// --- Market data ---
	market := marketdata.NewHandler(cfg.DataFile, cfg.CacheTTL, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := market.Watch(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("csv watcher stopped", zap.Error(err))
		}
	}()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("ollama")

	// --- VLM client ---
	vlmClient := vlm.NewClient(cfg.OllamaHost, cfg.OllamaModel, cfg.VLMTimeout, cb, resilienceCfg, logger)

	// --- Cache ---
	contextCache := cache.New[*domain.MarketContext](cfg.CacheTTL)

	// --- Services ---
	assistantSvc := service.NewAssistant(vlmClient, snapshots, market, contextCache, metrics, logger)
	snapshotSvc := service.NewSnapshots(snapshots, vlmClient, cfg.MediaDir, logger)

	if cfg.SchedulerEnabled {
		scheduler := service.NewScheduler(market, cfg.SchedulerInterval, logger)
		go func() {
			if err := scheduler.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("scheduler stopped", zap.Error(err))
			}
		}()
	}

	// --- Router ---
	router := handler.NewRouter(handler.Deps{
		Assistant: assistantSvc,
		Snapshots: snapshotSvc,
		Market:    market,
		VLM:       vlmClient,
		Metrics:   metrics,
		CSRF:      handler.NewCSRFIssuer(cfg.CSRFSecret, cfg.CSRFTTL),
		MediaDir:  cfg.MediaDir,
		Logger:    logger,
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 3 * time.Minute, // generate calls can take a while on CPU-only hosts
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
