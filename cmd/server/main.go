// Package main provides the entry point for the paper search service HTTP server.
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

	"github.com/rs/zerolog"

	"github.com/helixir/paper-search-service/internal/config"
	"github.com/helixir/paper-search-service/internal/database"
	"github.com/helixir/paper-search-service/internal/dedup"
	"github.com/helixir/paper-search-service/internal/observability"
	"github.com/helixir/paper-search-service/internal/papersources"
	"github.com/helixir/paper-search-service/internal/papersources/arxiv"
	"github.com/helixir/paper-search-service/internal/papersources/crossref"
	"github.com/helixir/paper-search-service/internal/papersources/dblp"
	"github.com/helixir/paper-search-service/internal/papersources/europepmc"
	"github.com/helixir/paper-search-service/internal/papersources/hal"
	"github.com/helixir/paper-search-service/internal/papersources/openalex"
	"github.com/helixir/paper-search-service/internal/papersources/pubmed"
	"github.com/helixir/paper-search-service/internal/repository"
	httpserver "github.com/helixir/paper-search-service/internal/server/http"
)

// migrationLockKey is the advisory lock key serializing startup migrations
// across replicas sharing one database.
const migrationLockKey int64 = 0x70617065727362

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
	logger.Info().Msg("paper-search-service server starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL when persistence is enabled.
	var (
		db        *database.DB
		paperRepo repository.PaperRepository
	)
	if cfg.Database.Enabled {
		db, err = database.New(ctx, &cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		logger.Info().Msg("database connection established")

		// Run migrations if configured.
		if cfg.Database.MigrationAutoRun {
			if err := runMigrations(ctx, db, cfg.Database.MigrationPath, logger); err != nil {
				return err
			}
		}

		paperRepo = repository.NewPgPaperRepository(db)
	} else {
		logger.Info().Msg("persistence disabled, papers will not be stored")
	}

	// Build the source registry from configuration.
	registry := buildRegistry(cfg, logger)

	// Create the deduplicator.
	deduper := dedup.New(dedup.Config{
		TitleThreshold:   cfg.Dedup.TitleThreshold,
		ClusterThreshold: cfg.Dedup.ClusterThreshold,
	})

	// Set up Prometheus metrics when enabled.
	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	}

	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		SearchTimeout:   cfg.Server.SearchTimeout,
		MetricsEnabled:  cfg.Metrics.Enabled,
		MetricsPath:     cfg.Metrics.Path,
		DefaultKeep:     dedup.KeepPolicy(cfg.Dedup.DefaultKeep),
	}

	httpSrv := httpserver.NewServer(httpCfg, registry, deduper, paperRepo, db, metrics, logger)

	// Channel to collect server errors.
	errCh := make(chan error, 1)

	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	logger.Info().
		Str("http_address", httpCfg.Address).
		Int("sources", len(registry.EnabledSources())).
		Msg("paper-search-service is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	// Graceful shutdown.
	logger.Info().Msg("shutting down paper-search-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logger.Info().Msg("paper-search-service shutdown complete")
	return nil
}

// runMigrations applies pending migrations under an advisory lock so that
// concurrently starting replicas do not race each other. When another
// replica holds the lock, migrations are skipped and left to that replica.
func runMigrations(ctx context.Context, db *database.DB, migrationPath string, logger zerolog.Logger) error {
	acquired, err := db.AcquireAdvisoryLock(ctx, migrationLockKey)
	if err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	if !acquired {
		logger.Info().Msg("migration lock held by another instance, skipping auto-migration")
		return nil
	}
	defer func() {
		if releaseErr := db.ReleaseAdvisoryLock(ctx, migrationLockKey); releaseErr != nil {
			logger.Error().Err(releaseErr).Msg("failed to release migration lock")
		}
	}()

	migrator, err := database.NewMigrator(db, migrationPath, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	if err := migrator.Up(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// buildRegistry registers one client per configured source. Disabled sources
// are still registered so they can be reported, but never searched.
func buildRegistry(cfg *config.Config, logger zerolog.Logger) *papersources.Registry {
	registry := papersources.NewRegistry()

	src := cfg.PaperSources

	registry.Register(arxiv.New(arxiv.Config{
		BaseURL:    src.ArXiv.BaseURL,
		Timeout:    src.ArXiv.Timeout,
		RateLimit:  src.ArXiv.RateLimit,
		MaxResults: src.ArXiv.MaxResults,
		Enabled:    src.ArXiv.Enabled,
	}))

	registry.Register(pubmed.New(pubmed.Config{
		BaseURL:    src.PubMed.BaseURL,
		APIKey:     src.PubMed.APIKey,
		Timeout:    src.PubMed.Timeout,
		RateLimit:  src.PubMed.RateLimit,
		MaxResults: src.PubMed.MaxResults,
		Enabled:    src.PubMed.Enabled,
	}))

	registry.Register(openalex.New(openalex.Config{
		BaseURL:    src.OpenAlex.BaseURL,
		Email:      src.OpenAlex.Email,
		Timeout:    src.OpenAlex.Timeout,
		RateLimit:  src.OpenAlex.RateLimit,
		MaxResults: src.OpenAlex.MaxResults,
		Enabled:    src.OpenAlex.Enabled,
	}))

	registry.Register(crossref.New(crossref.Config{
		BaseURL:    src.CrossRef.BaseURL,
		Email:      src.CrossRef.Email,
		Timeout:    src.CrossRef.Timeout,
		RateLimit:  src.CrossRef.RateLimit,
		MaxResults: src.CrossRef.MaxResults,
		Enabled:    src.CrossRef.Enabled,
	}))

	registry.Register(dblp.New(dblp.Config{
		BaseURL:    src.DBLP.BaseURL,
		Timeout:    src.DBLP.Timeout,
		RateLimit:  src.DBLP.RateLimit,
		MaxResults: src.DBLP.MaxResults,
		Enabled:    src.DBLP.Enabled,
	}))

	registry.Register(europepmc.New(europepmc.Config{
		BaseURL:    src.EuropePMC.BaseURL,
		Timeout:    src.EuropePMC.Timeout,
		RateLimit:  src.EuropePMC.RateLimit,
		MaxResults: src.EuropePMC.MaxResults,
		Enabled:    src.EuropePMC.Enabled,
	}))

	registry.Register(hal.New(hal.Config{
		BaseURL:    src.HAL.BaseURL,
		Timeout:    src.HAL.Timeout,
		RateLimit:  src.HAL.RateLimit,
		MaxResults: src.HAL.MaxResults,
		Enabled:    src.HAL.Enabled,
	}))

	for _, source := range registry.AllSources() {
		logger.Info().
			Str("source", string(source.SourceType())).
			Bool("enabled", source.IsEnabled()).
			Msg("paper source registered")
	}

	return registry
}
