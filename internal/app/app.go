// Package app wires configuration into stores, market data and the
// comparison pipeline. Binaries under cmd/ share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"portfolio-lab/internal/backtest"
	"portfolio-lab/internal/config"
	"portfolio-lab/internal/domain"
	"portfolio-lab/internal/marketdata"
	"portfolio-lab/internal/optimizer"
	"portfolio-lab/internal/orchestrator"
	"portfolio-lab/internal/pricecache"
	"portfolio-lab/internal/storage"
	chstore "portfolio-lab/internal/storage/clickhouse"
	"portfolio-lab/internal/storage/memory"
	"portfolio-lab/internal/storage/migrations"
	pgstore "portfolio-lab/internal/storage/postgres"
)

// Stores holds every storage implementation.
type Stores struct {
	Jobs    storage.JobStore
	Results storage.ResultStore
	Bars    storage.PriceBarStore
	Rates   storage.RateStore

	closers []func()
}

// Close releases database connections in reverse open order.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// MemoryStores returns empty in-memory stores.
func MemoryStores(jobTTL time.Duration) *Stores {
	return &Stores{
		Jobs:    memory.NewJobStore(jobTTL),
		Results: memory.NewResultStore(),
		Bars:    memory.NewPriceBarStore(),
		Rates:   memory.NewRateStore(),
	}
}

// OpenStores creates in-memory stores, or connects to PostgreSQL (jobs,
// results) and ClickHouse (bars, rates) after applying migrations.
func OpenStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Stores, error) {
	if cfg.Storage.UseMemory {
		log.Info().Msg("using in-memory storage")
		return MemoryStores(cfg.Jobs.TTL), nil
	}

	pool, err := OpenPostgres(ctx, cfg.Storage, log)
	if err != nil {
		return nil, err
	}
	chConn, err := OpenClickhouse(ctx, cfg.Storage.ClickhouseDSN, log)
	if err != nil {
		pool.Close()
		return nil, err
	}

	s := &Stores{
		Jobs:    pgstore.NewJobStore(pool, cfg.Jobs.TTL),
		Results: pgstore.NewResultStore(pool),
		Bars:    chstore.NewPriceBarStore(chConn),
		Rates:   chstore.NewRateStore(chConn),
	}
	s.closers = append(s.closers, pool.Close, func() { _ = chConn.Close() })
	log.Info().Msg("connected to postgres and clickhouse")
	return s, nil
}

// OpenPostgres connects to the job/result database and applies pending migrations.
func OpenPostgres(ctx context.Context, cfg config.StorageConfig, log zerolog.Logger) (*pgstore.Pool, error) {
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN,
		pgstore.WithMaxConns(cfg.PostgresMaxConns),
		pgstore.WithHealthCheckPeriod(time.Minute),
	)
	if err != nil {
		return nil, err
	}
	if _, err := migrations.ApplyPostgres(ctx, pool, log); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrations: %w", err)
	}
	return pool, nil
}

// OpenClickhouse connects to the bar/rate database, creating it if needed,
// and applies pending migrations.
func OpenClickhouse(ctx context.Context, dsn string, log zerolog.Logger) (*chstore.Conn, error) {
	conn, err := chstore.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if _, err := migrations.ApplyClickhouse(ctx, conn, log); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("clickhouse migrations: %w", err)
	}
	return conn, nil
}

// BarSource builds the configured raw bar source. The store source reads
// from bars; the others ignore it.
func BarSource(cfg config.MarketDataConfig, bars storage.PriceBarStore) (marketdata.BarSource, string, error) {
	switch cfg.Source {
	case config.SourceTiingo:
		return marketdata.NewTiingoClient(cfg.TiingoAPIKey,
			marketdata.WithBaseURL(cfg.TiingoURL),
			marketdata.WithTimeout(cfg.Timeout),
			marketdata.WithMaxRetries(cfg.MaxRetries),
		), config.SourceTiingo, nil
	case config.SourceCSV:
		src, err := marketdata.LoadCSVFiles(cfg.CSVFiles...)
		if err != nil {
			return nil, "", err
		}
		return src, config.SourceCSV, nil
	case config.SourceStore, "":
		if bars == nil {
			return nil, "", errors.New("store source requires a price bar store")
		}
		return marketdata.NewStoreSource(bars), config.SourceStore, nil
	default:
		return nil, "", fmt.Errorf("unknown market data source %q", cfg.Source)
	}
}

// Pipeline is a ready-to-run comparison stack.
type Pipeline struct {
	Prices     *pricecache.Cache
	Rates      *marketdata.RateProvider
	Comparator *orchestrator.Comparator

	cacheStore *pricecache.SQLiteStore
}

// Close releases the price cache database, if any.
func (p *Pipeline) Close() {
	if p.cacheStore != nil {
		_ = p.cacheStore.Close()
	}
}

// PipelineOptions tune NewPipeline beyond the configuration.
type PipelineOptions struct {
	Methods []domain.Method // empty runs every method
	Jobs    orchestrator.ProgressSink
}

// NewPipeline assembles source → cache → comparator from cfg and stores.
func NewPipeline(ctx context.Context, cfg *config.Config, stores *Stores, opts PipelineOptions, log zerolog.Logger) (*Pipeline, error) {
	source, name, err := BarSource(cfg.MarketData, stores.Bars)
	if err != nil {
		return nil, err
	}
	provider := marketdata.NewProvider(source, name, log)

	p := &Pipeline{}
	cacheOpts := pricecache.Options{TTL: cfg.Storage.CacheTTL, Logger: log}
	if cfg.Storage.CachePath != "" {
		store, err := pricecache.OpenSQLite(ctx, cfg.Storage.CachePath)
		if err != nil {
			return nil, err
		}
		if n, err := store.Prune(ctx, time.Now().Add(-cfg.Storage.CacheTTL)); err == nil && n > 0 {
			log.Info().Int64("pruned", n).Msg("pruned expired price cache entries")
		}
		p.cacheStore = store
		cacheOpts.Store = store
	}
	p.Prices = pricecache.New(provider, cacheOpts)
	p.Rates = marketdata.NewRateProvider(stores.Rates, cfg.Backtest.RiskFreeRate, log)

	dispatcher := optimizer.NewDispatcher(optimizer.Options{Logger: log})
	engine := backtest.NewEngine(backtest.Options{Dispatcher: dispatcher, Logger: log})
	p.Comparator = orchestrator.New(orchestrator.Options{
		Prices:             p.Prices,
		Rates:              p.Rates,
		Engine:             engine,
		Benchmarks:         provider,
		Jobs:               opts.Jobs,
		Methods:            opts.Methods,
		MaxWorkers:         cfg.Backtest.MaxWorkers,
		SmoothingFactor:    cfg.Backtest.Smoothing,
		VolatilityLookback: cfg.Backtest.VolLookback,
		Logger:             log,
	})
	return p, nil
}
