// Package orchestrator runs a comparison job end to end.
// It coordinates: market data → parallel backtests → benchmark → metrics →
// correlation and frontier → response, reporting progress along the way.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"portfolio-lab/internal/benchmark"
	"portfolio-lab/internal/domain"
	"portfolio-lab/internal/idhash"
	"portfolio-lab/internal/metrics"
	"portfolio-lab/internal/normalization"
	"portfolio-lab/internal/observability"
	"portfolio-lab/internal/optimizer"
)

// ErrNoMethodSucceeded is returned when every method failed.
var ErrNoMethodSucceeded = errors.New("could not generate results for any method")

// defaultLookbackDays is the history requested when no start date is given.
const defaultLookbackDays = 3650

// PriceProvider returns conditioned close/open panels for a ticker set.
type PriceProvider interface {
	FetchPanels(ctx context.Context, tickers []string, start, end time.Time) (*domain.PriceData, error)
}

// RateProvider returns the risk-free rate.
type RateProvider interface {
	Current(ctx context.Context) (float64, error)
	History(ctx context.Context, start, end time.Time) (*domain.RateSeries, error)
}

// ProgressSink receives job progress.
type ProgressSink interface {
	Update(ctx context.Context, id string, u domain.JobUpdate) error
}

// Backtester runs one walk-forward simulation.
type Backtester interface {
	Run(ctx context.Context, p domain.BacktestParams) (*domain.BacktestResult, error)
}

// Options for creating a Comparator.
type Options struct {
	// Required collaborators
	Prices PriceProvider
	Rates  RateProvider
	Engine Backtester

	// Optional
	Benchmarks benchmark.BarFetcher // custom benchmark source, nil disables custom benchmarks
	Jobs       ProgressSink         // nil discards progress
	Methods    []domain.Method      // default domain.AllMethods
	MaxWorkers int                  // default domain.MaxComparisonWorkers

	SmoothingFactor    float64
	VolatilityLookback int

	Logger zerolog.Logger
	Now    func() time.Time
}

// Comparator backtests every method on one request and scores the results.
type Comparator struct {
	prices     PriceProvider
	rates      RateProvider
	engine     Backtester
	benchmarks benchmark.BarFetcher
	jobs       ProgressSink
	methods    []domain.Method
	maxWorkers int
	smoothing  float64
	lookback   int
	log        zerolog.Logger
	now        func() time.Time
}

// New creates a Comparator.
func New(opts Options) *Comparator {
	c := &Comparator{
		prices:     opts.Prices,
		rates:      opts.Rates,
		engine:     opts.Engine,
		benchmarks: opts.Benchmarks,
		jobs:       opts.Jobs,
		methods:    opts.Methods,
		maxWorkers: opts.MaxWorkers,
		smoothing:  opts.SmoothingFactor,
		lookback:   opts.VolatilityLookback,
		log:        observability.Component(opts.Logger, "orchestrator"),
		now:        opts.Now,
	}
	if len(c.methods) == 0 {
		c.methods = domain.AllMethods
	}
	if c.maxWorkers <= 0 {
		c.maxWorkers = domain.MaxComparisonWorkers
	}
	if c.lookback <= 0 {
		c.lookback = domain.DefaultVolatilityLookback
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Run executes the comparison for a job and records every step on the sink.
// A failure marks the job failed with progress 0 and the error message.
func (c *Comparator) Run(ctx context.Context, jobID string, req domain.CompareRequest) (*domain.CompareResponse, error) {
	observability.JobStarted()
	defer observability.JobFinished()

	log := c.log.With().Str("job_id", jobID).Logger()
	report := func(progress int, msg string, status domain.JobStatus) {
		c.update(ctx, jobID, domain.JobUpdate{Progress: progress, Message: msg, Status: status})
	}

	resp, err := c.compare(ctx, req, report)
	if err != nil {
		log.Error().Err(err).Msg("comparison failed")
		observability.RecordComparison("failed")
		c.update(ctx, jobID, domain.JobUpdate{Progress: 0, Message: "Failed", Status: domain.JobFailed, Error: err.Error()})
		return nil, err
	}

	observability.RecordComparison("completed")
	c.update(ctx, jobID, domain.JobUpdate{Progress: 100, Message: "Optimization Complete", Status: domain.JobCompleted, Result: resp})
	log.Info().Int("methods", len(resp.Methods)).Msg("comparison complete")
	return resp, nil
}

// Compare executes the comparison without a job.
func (c *Comparator) Compare(ctx context.Context, req domain.CompareRequest) (*domain.CompareResponse, error) {
	return c.compare(ctx, req, func(int, string, domain.JobStatus) {})
}

func (c *Comparator) update(ctx context.Context, jobID string, u domain.JobUpdate) {
	if c.jobs == nil || jobID == "" {
		return
	}
	if err := c.jobs.Update(ctx, jobID, u); err != nil {
		c.log.Warn().Err(err).Str("job_id", jobID).Msg("job update failed")
	}
}

type reporter func(progress int, msg string, status domain.JobStatus)

// compare implements the comparison flow:
//  1. Fetch rates and prices (5)
//  2. Prepare (15) and run every method in parallel (+70/n each)
//  3. Benchmark curve and metrics
//  4. Correlation matrix (85) and efficient frontier (90)
//  5. Finalize (98)
func (c *Comparator) compare(ctx context.Context, req domain.CompareRequest, report reporter) (*domain.CompareResponse, error) {
	report(5, "Fetching Historical Market Data...", domain.JobProcessing)

	if err := req.Validate(); err != nil {
		return nil, err
	}
	tickers := req.NormalizedTickers()
	start, end, err := dateRange(req, c.now())
	if err != nil {
		return nil, err
	}

	var warnings []string
	rfCurrent, err := c.rates.Current(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("current risk-free rate unavailable, using default")
		rfCurrent = domain.DefaultRiskFreeRate
	}
	rfInput := domain.ConstantRate(rfCurrent)
	if history, err := c.rates.History(ctx, start, end); err != nil {
		c.log.Warn().Err(err).Msg("risk-free history unavailable, using current rate")
	} else if history.Len() > 0 {
		rfInput = domain.RateInput{Constant: rfCurrent, Series: history}
	}

	data, err := c.prices.FetchPanels(ctx, tickers, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}
	if data.Close.Len() < req.TrainingWindow+1 {
		return nil, fmt.Errorf("%w: not enough data, need at least %d points, have %d (limiting ticker: %s)",
			domain.ErrInput, req.TrainingWindow+1, data.Close.Len(), data.LimitingTicker)
	}
	td := normalization.InferTradingDays(data.Close.Dates)

	report(15, "Preparing Backtest Engine...", "")
	results, failed := c.runMethods(ctx, req, data, rfInput, td, report)
	for _, m := range failed {
		warnings = append(warnings, fmt.Sprintf("%s failed and was omitted", m.DisplayName()))
	}
	if len(results) == 0 {
		return nil, ErrNoMethodSucceeded
	}

	benchCurve, benchTurnover, benchName, warn := c.benchmark(ctx, req, data.Close)
	if warn != "" {
		warnings = append(warnings, warn)
	}
	benchMetrics := metrics.Compute(benchCurve, metrics.Input{
		RiskFreeRate:       rfCurrent,
		AnnualizedTurnover: benchTurnover,
		TradingDays:        td,
	})

	report(85, "Calculating Correlation Matrix...", "")
	ranked, err := metrics.RankMethods(results)
	if err != nil {
		return nil, err
	}
	corr := metrics.CorrelationMatrix(data.Close)

	report(90, "Calculating Efficient Frontier...", "")
	frontier, err := optimizer.Frontier(ctx, optimizer.Input{
		Returns:     data.Close.Returns(),
		MinWeight:   0,
		MaxWeight:   1,
		TradingDays: td,
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("efficient frontier failed")
		warnings = append(warnings, "Efficient frontier unavailable: "+err.Error())
		frontier = nil
	}

	report(98, "Finalizing Results...", "")
	return &domain.CompareResponse{
		RunID:             idhash.ComputeRunID(req, start, end),
		Methods:           ranked,
		BenchmarkCurve:    benchCurve,
		BenchmarkMetrics:  benchMetrics,
		BenchmarkName:     benchName,
		Tickers:           tickers,
		RiskFreeRate:      metrics.Round(rfCurrent, 4),
		DataStartDate:     data.Close.Dates[0].Format(domain.DateLayout),
		DataEndDate:       data.Close.Dates[data.Close.Len()-1].Format(domain.DateLayout),
		TickerStartDates:  data.TickerStartDates,
		LimitingTicker:    data.LimitingTicker,
		CorrelationMatrix: &corr,
		EfficientFrontier: frontier,
		Warnings:          warnings,
	}, nil
}

// benchmark returns the reference curve, its annualized turnover and name.
// A custom ticker that cannot be fetched falls back to equal weight with a
// warning.
func (c *Comparator) benchmark(ctx context.Context, req domain.CompareRequest, closes domain.PricePanel) ([]domain.EquityPoint, float64, string, string) {
	var warning string
	if req.BenchmarkType == domain.BenchmarkCustom && strings.TrimSpace(req.BenchmarkTicker) != "" {
		ticker := strings.ToUpper(strings.TrimSpace(req.BenchmarkTicker))
		if c.benchmarks == nil {
			warning = fmt.Sprintf("Custom benchmark %s unavailable, using Equal Weight", ticker)
		} else {
			curve, err := benchmark.Custom(ctx, c.benchmarks, closes, req.TrainingWindow, ticker)
			if err == nil && len(curve) > 0 {
				return curve, 0, ticker, ""
			}
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("custom benchmark failed, using equal weight")
			warning = fmt.Sprintf("Custom benchmark %s unavailable, using Equal Weight", ticker)
		}
	}
	curve, turnover := benchmark.EqualWeight(closes, req.TrainingWindow, req.RebalancingWindow)
	return curve, turnover, "Equal Weight", warning
}

// dateRange resolves the request window; a missing end is today and a
// missing start is ten years before the end.
func dateRange(req domain.CompareRequest, now time.Time) (time.Time, time.Time, error) {
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if req.EndDate != "" {
		d, err := time.Parse(domain.DateLayout, req.EndDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid end_date %q", domain.ErrInput, req.EndDate)
		}
		end = d
	}
	start := end.AddDate(0, 0, -defaultLookbackDays)
	if req.StartDate != "" {
		d, err := time.Parse(domain.DateLayout, req.StartDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid start_date %q", domain.ErrInput, req.StartDate)
		}
		start = d
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start_date must be before end_date", domain.ErrInput)
	}
	return start, end, nil
}

// runMethods backtests each method in a bounded worker pool. Workers send
// outcomes over a channel; this goroutine is the only progress writer.
// Returns successful results in completion order and the failed methods.
func (c *Comparator) runMethods(ctx context.Context, req domain.CompareRequest, data *domain.PriceData, rf domain.RateInput, td int, report reporter) ([]domain.MethodResult, []domain.Method) {
	n := len(c.methods)
	names := make([]string, n)
	for i, m := range c.methods {
		names[i] = strings.ToUpper(string(m))
	}
	report(15, fmt.Sprintf("Running %s in parallel...", strings.Join(names, ", ")), "")

	outcomes := make(chan methodOutcome, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(n, c.maxWorkers))
	go func() {
		for _, m := range c.methods {
			g.Go(func() error {
				outcomes <- c.runMethod(gctx, m, req, data, rf, td)
				return nil
			})
		}
		_ = g.Wait()
		close(outcomes)
	}()

	step := 70 / n
	completed := 0
	var results []domain.MethodResult
	var failed []domain.Method
	for o := range outcomes {
		completed++
		if o.err != nil {
			c.log.Warn().Err(o.err).Str("method", string(o.method)).Msg("method failed, omitting")
			failed = append(failed, o.method)
		} else {
			results = append(results, *o.result)
		}
		report(15+completed*step, fmt.Sprintf("Completed %s...", o.method.DisplayName()), "")
	}
	return results, failed
}

type methodOutcome struct {
	method domain.Method
	result *domain.MethodResult
	err    error
}

// runMethod backtests and scores one method. Panics are converted to errors
// so one method cannot take down the comparison.
func (c *Comparator) runMethod(ctx context.Context, m domain.Method, req domain.CompareRequest, data *domain.PriceData, rf domain.RateInput, td int) (out methodOutcome) {
	out.method = m
	defer func() {
		if r := recover(); r != nil {
			out.result = nil
			out.err = fmt.Errorf("method %s panicked: %v", m, r)
		}
	}()

	params := domain.BacktestParams{
		Close:                   data.Close,
		Open:                    data.Open,
		Method:                  m,
		TrainingWindow:          req.TrainingWindow,
		RebalancingWindow:       req.RebalancingWindow,
		TransactionCostBps:      req.TransactionCostBps,
		MinWeight:               req.MinWeight,
		MaxWeight:               req.MaxWeight,
		RiskFree:                rf,
		SmoothingFactor:         c.smoothing,
		EnableVolatilityScaling: req.EnableVolatilityScaling,
		TargetVolatility:        req.TargetVolatility,
		VolatilityLookback:      c.lookback,
	}
	res, err := c.engine.Run(ctx, params)
	if err != nil {
		out.err = err
		return out
	}
	if len(res.EquityCurve) == 0 {
		out.err = fmt.Errorf("method %s produced an empty equity curve", m)
		return out
	}

	perf := metrics.Compute(res.EquityCurve, metrics.Input{
		RiskFreeRate:       rf.Scalar(),
		TotalCosts:         res.TotalCosts,
		NumRebalances:      len(res.RebalanceDates),
		AnnualizedTurnover: metrics.AnnualizedTurnover(res.TotalTurnover, len(res.EquityCurve), td),
		Benchmark:          res.BenchmarkCurve,
		TradingDays:        td,
	})

	out.result = &domain.MethodResult{
		Method:             m,
		MethodName:         m.DisplayName(),
		EquityCurve:        res.EquityCurve,
		DrawdownCurve:      metrics.DrawdownCurve(res.EquityCurve),
		PerformanceMetrics: perf,
		CurrentAllocation: domain.CurrentAllocation{
			Date:              c.now().Format(domain.DateLayout),
			Weights:           res.FinalWeights,
			RiskContributions: res.RiskContributions,
			Method:            m,
			FallbackUsed:      res.LastFallback,
			FallbackReason:    res.LastFallbackNote,
			Dendrogram:        res.Dendrogram,
		},
		AllocationHistory:  res.AllocationHistory,
		OverfittingMetrics: res.Overfitting,
		MethodParams:       domain.ParamsFor(m),
	}
	return out
}
