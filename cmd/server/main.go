// Package main runs the comparison HTTP API:
// - POST /api/compare/start queues a walk-forward comparison of every method
// - GET /api/jobs/:id and /api/jobs/:id/stream report progress and results
// - finished results are persisted by run id
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"portfolio-lab/internal/api"
	"portfolio-lab/internal/app"
	"portfolio-lab/internal/config"
	"portfolio-lab/internal/observability"
	"portfolio-lab/internal/orchestrator"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to YAML config (default ./configs/portfolio.yaml)")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	jobTimeout := flag.Duration("job-timeout", 30*time.Minute, "Maximum duration of one comparison job")
	flag.Parse()

	var paths []string
	if *configPath != "" {
		paths = append(paths, *configPath)
	}
	if *useMemory {
		_ = os.Setenv(config.EnvPrefix+"STORAGE_USE_MEMORY", "true")
	}
	cfg, err := config.Load(paths...)
	if err != nil {
		bootLog := observability.NewLogger("info", false)
		bootLog.Fatal().Err(err).Msg("load config")
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger := observability.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	log := observability.Component(logger, "server")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("create stores")
	}
	defer stores.Close()

	pipeline, err := app.NewPipeline(ctx, cfg, stores, app.PipelineOptions{Jobs: stores.Jobs}, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("create pipeline")
	}
	defer pipeline.Close()

	svc := orchestrator.NewService(orchestrator.ServiceOptions{
		Runner:  pipeline.Comparator,
		Jobs:    stores.Jobs,
		Results: stores.Results,
		Timeout: *jobTimeout,
		Logger:  logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewServer(api.Options{Jobs: svc, Version: version, Logger: logger}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("source", cfg.MarketData.Source).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown requested")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server failed")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}

	// Running jobs finish or hit their own timeout.
	done := make(chan struct{})
	go func() {
		svc.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn().Msg("jobs still running at shutdown")
	}

	log.Info().Msg("shutdown complete")
}
