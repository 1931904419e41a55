// Package main provides the entry point for the potero narrative service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/poteroapp/potero/internal/config"
	"github.com/poteroapp/potero/internal/database"
	"github.com/poteroapp/potero/internal/jobs"
	"github.com/poteroapp/potero/internal/llm"
	"github.com/poteroapp/potero/internal/narrative"
	"github.com/poteroapp/potero/internal/observability"
	"github.com/poteroapp/potero/internal/repository"
	httpserver "github.com/poteroapp/potero/internal/server/http"
	"github.com/poteroapp/potero/internal/usagelog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("potero narrative service starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open SQLite.
	db, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	logger.Info().Str("path", db.Path()).Msg("database ready")

	// Create repositories.
	paperRepo := repository.NewSQLitePaperRepository(db.Conn())
	narrativeRepo := repository.NewSQLiteNarrativeRepository(db.Conn())
	assetRepo := repository.NewSQLiteAssetRepository(db.Conn())

	// Observability and LLM plumbing.
	metrics := observability.NewMetrics("potero")
	usage := usagelog.New(cfg.LLM.UsageLogEntries)

	gateway := llm.NewGateway(llm.SettingsFunc(func() (llm.Settings, error) {
		return gatewaySettings(cfg.LLM)
	}), llm.GatewayOptions{
		RateLimitRPS:   cfg.LLM.RateLimitRPS,
		RateLimitBurst: cfg.LLM.RateLimitBurst,
	})

	// Narrative pipeline and orchestrator.
	pipeline := narrative.NewPipeline(gateway, usage, metrics, logger)
	service := narrative.NewService(narrative.ServiceParams{
		Papers:     paperRepo,
		Narratives: narrativeRepo,
		Figures:    assetRepo,
		Formulas:   assetRepo,
		FullText:   assetRepo,
		Pipeline:   pipeline,
		Cache:      narrative.NewStageCache(metrics),
		Metrics:    metrics,
		Logger:     logger,
	})

	// Background job queue.
	queue := jobs.New(jobs.Options{
		MaxConcurrent:   cfg.Jobs.MaxConcurrent,
		Retention:       cfg.Jobs.Retention,
		CleanupInterval: cfg.Jobs.CleanupInterval,
		Metrics:         metrics,
		Logger:          logger,
	})

	// HTTP REST API server.
	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	httpSrv := httpserver.NewServer(httpCfg, service, queue, usage, db, httpserver.GenerationDefaults{
		Styles:          cfg.Narrative.Styles,
		Languages:       cfg.Narrative.Languages,
		ExplainConcepts: cfg.Narrative.ExplainConcepts,
	}, logger)

	// Prometheus metrics server on its own port if configured.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: 10 * time.Second,
		}
	}

	// Channel to collect server errors.
	errCh := make(chan error, 2)

	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			logger.Info().
				Str("address", metricsServer.Addr).
				Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	readyLog := logger.Info().Str("http_address", httpCfg.Address)
	if metricsServer != nil {
		readyLog = readyLog.Str("metrics_address", metricsServer.Addr)
	}
	readyLog.Msg("potero narrative service is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	// Graceful shutdown.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}
	if err := queue.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("job queue shutdown error")
	}

	logger.Info().Msg("potero narrative service stopped")
	return nil
}

// gatewaySettings maps the active provider's configuration to LLM gateway
// settings.
func gatewaySettings(cfg config.LLMConfig) (llm.Settings, error) {
	settings := llm.Settings{
		Provider:    cfg.Provider,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout,
	}
	switch cfg.Provider {
	case "anthropic":
		settings.APIKey = cfg.Anthropic.APIKey
		settings.Model = cfg.Anthropic.Model
		settings.BaseURL = cfg.Anthropic.BaseURL
	case "openai":
		settings.APIKey = cfg.OpenAI.APIKey
		settings.Model = cfg.OpenAI.Model
		settings.BaseURL = cfg.OpenAI.BaseURL
	default:
		return llm.Settings{}, fmt.Errorf("%w: %s", llm.ErrUnsupportedProvider, cfg.Provider)
	}
	return settings, nil
}
