package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"portfolio-lab/internal/app"
	"portfolio-lab/internal/config"
	"portfolio-lab/internal/domain"
	"portfolio-lab/internal/observability"
	"portfolio-lab/internal/reporting"
	pgstore "portfolio-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	outputDir := flag.String("output-dir", "docs", "Output directory for generated files")
	input := flag.String("input", "", "CompareResponse JSON file (as written by backtest -json)")
	runID := flag.String("run-id", "", "Load the stored result with this run id from PostgreSQL")
	configPath := flag.String("config", "", "Path to YAML config (for the PostgreSQL DSN)")
	flag.Parse()

	logger := observability.NewLogger("info", false)
	log := observability.Component(logger, "report")
	ctx := context.Background()

	var (
		report *reporting.Report
		resp   *domain.CompareResponse
		err    error
	)

	if *input != "" {
		resp, err = readResponse(*input)
		if err != nil {
			log.Fatal().Err(err).Msg("read input")
		}
		name := resp.RunID
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(*input), filepath.Ext(*input))
		}
		report = reporting.Build(resp, name, time.Now().UTC())
	} else {
		report, resp, err = fromDatabase(ctx, *configPath, *runID)
		if err != nil {
			log.Fatal().Err(err).Msg("load stored result")
		}
	}

	written, err := reporting.WriteAll(*outputDir, report, resp)
	if err != nil {
		log.Fatal().Err(err).Msg("write report")
	}

	fmt.Printf("Report %s generated:\n", report.RunID)
	for _, p := range written {
		fmt.Printf("  - %s\n", p)
	}
}

func readResponse(path string) (*domain.CompareResponse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var resp domain.CompareResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(resp.Methods) == 0 {
		return nil, fmt.Errorf("%s contains no method results", path)
	}
	return &resp, nil
}

// fromDatabase loads runID, or the most recent result when runID is empty.
func fromDatabase(ctx context.Context, configPath, runID string) (*reporting.Report, *domain.CompareResponse, error) {
	var paths []string
	if configPath != "" {
		paths = append(paths, configPath)
	}
	cfg, err := config.Load(paths...)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Storage.PostgresDSN == "" {
		return nil, nil, errors.New("either -input or storage.postgresDSN is required")
	}

	pool, err := app.OpenPostgres(ctx, cfg.Storage, observability.NewLogger(cfg.Logging.Level, cfg.Logging.JSON))
	if err != nil {
		return nil, nil, err
	}
	defer pool.Close()

	gen := reporting.NewGenerator(pgstore.NewResultStore(pool))
	if runID == "" {
		return gen.Latest(ctx)
	}
	return gen.Generate(ctx, runID)
}
