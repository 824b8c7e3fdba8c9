package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"

	"portfolio-lab/internal/app"
	"portfolio-lab/internal/config"
	"portfolio-lab/internal/domain"
	"portfolio-lab/internal/observability"
	"portfolio-lab/internal/reporting"
	"portfolio-lab/internal/storage"
)

func main() {
	def := domain.DefaultCompareRequest()

	// Request
	tickers := flag.String("tickers", "", "Comma-separated tickers (required, at least 2)")
	start := flag.String("start", "", "Start date YYYY-MM-DD (default 10 years before end)")
	end := flag.String("end", "", "End date YYYY-MM-DD (default today)")
	methods := flag.String("methods", "all", "Comma-separated methods: hrp, gmv, mvo or all")
	trainingWindow := flag.Int("training-window", def.TrainingWindow, "Training window in trading days")
	rebalancingWindow := flag.Int("rebalancing-window", def.RebalancingWindow, "Rebalancing window in trading days")
	costBps := flag.Float64("cost-bps", def.TransactionCostBps, "Transaction cost in basis points")
	minWeight := flag.Float64("min-weight", def.MinWeight, "Minimum weight per asset")
	maxWeight := flag.Float64("max-weight", def.MaxWeight, "Maximum weight per asset")
	benchmark := flag.String("benchmark", "", "Custom benchmark ticker (default equal weight)")
	volScaling := flag.Bool("vol-scaling", false, "Enable volatility targeting")
	targetVol := flag.Float64("target-vol", def.TargetVolatility, "Target annualized volatility")

	// Data
	configPath := flag.String("config", "", "Path to YAML config")
	csvFiles := flag.String("csv", "", "Comma-separated price CSV files (overrides the configured source)")
	useMemory := flag.Bool("use-memory", true, "Use in-memory storage (no result persistence)")

	// Output
	outputJSON := flag.Bool("json", false, "Output as JSON")
	outputDir := flag.String("output-dir", "", "Write REPORT.md, CSVs and chart to this directory")

	flag.Parse()

	if *useMemory {
		_ = os.Setenv(config.EnvPrefix+"STORAGE_USE_MEMORY", "true")
	}
	if *csvFiles != "" {
		_ = os.Setenv(config.EnvPrefix+"MARKETDATA_SOURCE", config.SourceCSV)
		_ = os.Setenv(config.EnvPrefix+"MARKETDATA_CSV_FILES", *csvFiles)
	}
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
	log := observability.Component(logger, "backtest")

	req := domain.CompareRequest{
		Tickers:                 splitList(*tickers),
		StartDate:               *start,
		EndDate:                 *end,
		TrainingWindow:          *trainingWindow,
		RebalancingWindow:       *rebalancingWindow,
		TransactionCostBps:      *costBps,
		MinWeight:               *minWeight,
		MaxWeight:               *maxWeight,
		BenchmarkType:           domain.BenchmarkEqualWeight,
		EnableVolatilityScaling: *volScaling,
		TargetVolatility:        *targetVol,
	}
	if *benchmark != "" {
		req.BenchmarkType = domain.BenchmarkCustom
		req.BenchmarkTicker = *benchmark
	}
	if err := req.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid request")
	}

	selected, err := parseMethods(*methods)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid methods")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("create stores")
	}
	defer stores.Close()

	pipeline, err := app.NewPipeline(ctx, cfg, stores, app.PipelineOptions{Methods: selected}, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("create pipeline")
	}
	defer pipeline.Close()

	log.Info().Strs("tickers", req.NormalizedTickers()).Str("source", cfg.MarketData.Source).Msg("running comparison")
	started := time.Now()
	resp, err := pipeline.Comparator.Compare(ctx, req)
	if err != nil {
		log.Fatal().Err(err).Msg("comparison failed")
	}
	log.Info().Dur("elapsed", time.Since(started)).Int("methods", len(resp.Methods)).Msg("comparison complete")

	runID := resp.RunID
	if !cfg.Storage.UseMemory {
		stored := &storage.StoredResult{RunID: runID, Request: req, Response: resp, CreatedAt: time.Now().UTC()}
		if err := stores.Results.Insert(ctx, stored); err != nil {
			log.Warn().Err(err).Str("run_id", runID).Msg("result not stored")
		}
	}

	if *outputDir != "" {
		report := reporting.Build(resp, runID, time.Now().UTC())
		written, err := reporting.WriteAll(*outputDir, report, resp)
		if err != nil {
			log.Fatal().Err(err).Msg("write report")
		}
		for _, p := range written {
			log.Info().Str("path", p).Msg("wrote")
		}
	}

	if *outputJSON {
		output, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			log.Fatal().Err(err).Msg("encode result")
		}
		fmt.Println(string(output))
		return
	}
	printResponse(runID, resp)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseMethods returns nil for "all" so the comparator runs its default set.
func parseMethods(s string) ([]domain.Method, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "all" {
		return nil, nil
	}
	var out []domain.Method
	for _, p := range splitList(s) {
		m := domain.Method(p)
		if _, ok := domain.MethodNames[m]; !ok {
			return nil, fmt.Errorf("unknown method %q (allowed: hrp, gmv, mvo, all)", p)
		}
		out = append(out, m)
	}
	return out, nil
}

// printResponse outputs a human-readable summary.
func printResponse(runID string, r *domain.CompareResponse) {
	fmt.Println()
	fmt.Println("=== Portfolio Comparison ===")
	fmt.Printf("Run ID:             %s\n", runID)
	fmt.Printf("Tickers:            %s\n", strings.Join(r.Tickers, ", "))
	fmt.Printf("Period:             %s to %s\n", r.DataStartDate, r.DataEndDate)
	fmt.Printf("Risk-free Rate:     %.2f%%\n", r.RiskFreeRate*100)
	if r.LimitingTicker != "" {
		fmt.Printf("Limiting Ticker:    %s (from %s)\n", r.LimitingTicker, r.TickerStartDates[r.LimitingTicker])
	}
	fmt.Println()

	fmt.Printf("%-34s %9s %9s %8s %8s %8s %9s %9s\n",
		"Method", "Return", "CAGR", "Vol", "Sharpe", "Sortino", "MaxDD", "Turnover")
	row := func(name string, m domain.PerformanceMetrics) {
		fmt.Printf("%-34s %8.2f%% %8.2f%% %7.2f%% %8.2f %8.2f %8.2f%% %9.2f\n",
			name, m.TotalReturn*100, m.CAGR*100, m.Volatility*100,
			m.SharpeRatio, m.SortinoRatio, m.MaxDrawdown*100, m.AnnualizedTurnover)
	}
	for _, m := range r.Methods {
		row(m.MethodName, m.PerformanceMetrics)
	}
	row(r.BenchmarkName+" (benchmark)", r.BenchmarkMetrics)
	fmt.Println()

	for _, m := range r.Methods {
		fmt.Printf("%s allocation (%s):\n", m.MethodName, m.CurrentAllocation.Date)
		for _, t := range r.Tickers {
			if w := m.CurrentAllocation.Weights[t]; w > 0 {
				fmt.Printf("  %-8s %6.2f%%\n", t, w*100)
			}
		}
		if m.CurrentAllocation.Weights.IsCash() {
			fmt.Println("  (cash)")
		}
	}

	if len(r.Warnings) > 0 {
		fmt.Println()
		fmt.Println("Warnings:")
		for _, w := range r.Warnings {
			fmt.Printf("  - %s\n", w)
		}
	}
}
