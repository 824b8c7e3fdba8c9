// Package main loads daily price bars and risk-free rates into the bar store.
// Sources: Tiingo HTTP API or CSV files. Target: ClickHouse, or memory for
// a dry run that only reports what would be written.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"portfolio-lab/internal/app"
	"portfolio-lab/internal/config"
	"portfolio-lab/internal/domain"
	"portfolio-lab/internal/marketdata"
	"portfolio-lab/internal/observability"
	"portfolio-lab/internal/storage"
	chstore "portfolio-lab/internal/storage/clickhouse"
	"portfolio-lab/internal/storage/memory"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config")
	source := flag.String("source", "", "Bar source: tiingo or csv (default from config)")
	csvFiles := flag.String("csv", "", "Comma-separated price CSV files (implies -source csv)")
	ratesCSV := flag.String("rates-csv", "", "CSV of annualized risk-free rates (date,rate)")
	tickers := flag.String("tickers", "", "Comma-separated tickers (default: every ticker in the CSV files)")
	start := flag.String("start", "2000-01-01", "Start date YYYY-MM-DD")
	end := flag.String("end", "", "End date YYYY-MM-DD (default today)")
	dryRun := flag.Bool("dry-run", false, "Write to memory instead of ClickHouse")
	flag.Parse()

	if *csvFiles != "" {
		_ = os.Setenv(config.EnvPrefix+"MARKETDATA_CSV_FILES", *csvFiles)
		if *source == "" {
			*source = config.SourceCSV
		}
	}
	if *source != "" {
		_ = os.Setenv(config.EnvPrefix+"MARKETDATA_SOURCE", *source)
	}
	// Ingest never touches PostgreSQL; only the ClickHouse DSN is required.
	_ = os.Setenv(config.EnvPrefix+"STORAGE_USE_MEMORY", "true")

	var paths []string
	if *configPath != "" {
		paths = append(paths, *configPath)
	}
	cfg, err := config.Load(paths...)
	if err != nil {
		bootLog := observability.NewLogger("info", false)
		bootLog.Fatal().Err(err).Msg("load config")
	}
	logger := observability.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	log := observability.Component(logger, "ingest")

	if cfg.MarketData.Source == config.SourceStore {
		log.Fatal().Msg("-source must be tiingo or csv; the store is the ingest target")
	}

	startDate, endDate, err := parseRange(*start, *end)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid date range")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bars, rates, cleanup, err := openTarget(ctx, cfg, *dryRun, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("open target store")
	}
	defer cleanup()

	src, label, err := app.BarSource(cfg.MarketData, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("create source")
	}

	list := splitList(*tickers)
	if len(list) == 0 {
		if csvSrc, ok := src.(*marketdata.CSVSource); ok {
			list = csvSrc.Tickers()
		}
	}
	if len(list) == 0 && *ratesCSV == "" {
		log.Fatal().Msg("no tickers to ingest; pass -tickers")
	}

	if len(list) > 0 {
		ingestor := marketdata.NewIngestor(src, bars, label, logger)
		res, err := ingestor.Run(ctx, list, startDate, endDate)
		if err != nil {
			log.Fatal().Err(err).Msg("ingest bars")
		}
		total := 0
		for _, n := range res.Bars {
			total += n
		}
		log.Info().Int("tickers", len(res.Bars)).Int("bars", total).Strs("missing", res.Missing).Msg("bars ingested")
	}

	if *ratesCSV != "" {
		n, err := ingestRates(ctx, *ratesCSV, rates)
		if err != nil {
			log.Fatal().Err(err).Msg("ingest rates")
		}
		log.Info().Int("points", n).Msg("rates ingested")
	}

	if *dryRun {
		stored, _ := bars.Tickers(ctx)
		fmt.Printf("dry run: %d tickers would be written: %s\n", len(stored), strings.Join(stored, ", "))
	}
}

// openTarget returns the bar and rate stores to write to.
func openTarget(ctx context.Context, cfg *config.Config, dryRun bool, log zerolog.Logger) (storage.PriceBarStore, storage.RateStore, func(), error) {
	if dryRun {
		return memory.NewPriceBarStore(), memory.NewRateStore(), func() {}, nil
	}
	if cfg.Storage.ClickhouseDSN == "" {
		return nil, nil, nil, errors.New("storage.clickhouseDSN is required (use -dry-run for memory)")
	}
	conn, err := app.OpenClickhouse(ctx, cfg.Storage.ClickhouseDSN, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return chstore.NewPriceBarStore(conn), chstore.NewRateStore(conn), func() { _ = conn.Close() }, nil
}

func ingestRates(ctx context.Context, path string, rates storage.RateStore) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	points, err := marketdata.ParseRatesCSV(f, path)
	if err != nil {
		return 0, err
	}
	if err := rates.Upsert(ctx, points); err != nil {
		return 0, err
	}
	return len(points), nil
}

func parseRange(start, end string) (time.Time, time.Time, error) {
	s, err := time.Parse(domain.DateLayout, start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start: %w", err)
	}
	e := time.Now().UTC()
	if end != "" {
		if e, err = time.Parse(domain.DateLayout, end); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("end: %w", err)
		}
	}
	if e.Before(s) {
		return time.Time{}, time.Time{}, fmt.Errorf("end %s before start %s", e.Format(domain.DateLayout), start)
	}
	return s, e, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}
