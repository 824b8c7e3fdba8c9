// Package backtest runs walk-forward portfolio simulations: re-optimize on
// a trailing training window, trade at the next open, hold until the next
// rebalance, repeat.
package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"portfolio-lab/internal/benchmark"
	"portfolio-lab/internal/domain"
	"portfolio-lab/internal/lookup"
	"portfolio-lab/internal/metrics"
	"portfolio-lab/internal/normalization"
	"portfolio-lab/internal/observability"
	"portfolio-lab/internal/optimizer"
)

// Dispatcher produces target weights for one rebalance. Implementations
// absorb optimizer failures and always return a result.
type Dispatcher interface {
	Dispatch(ctx context.Context, method domain.Method, in optimizer.Input) *domain.OptimizationResult
}

// Options configures an Engine.
type Options struct {
	Dispatcher Dispatcher
	Logger     zerolog.Logger
}

// Engine executes walk-forward backtests. Safe for concurrent Run calls
// when the dispatcher is.
type Engine struct {
	dispatcher Dispatcher
	log        zerolog.Logger
}

// NewEngine creates an engine.
func NewEngine(opts Options) *Engine {
	return &Engine{
		dispatcher: opts.Dispatcher,
		log:        observability.Component(opts.Logger, "backtest"),
	}
}

// state is the portfolio carried between rebalances.
type state struct {
	shares []float64
	cash   float64
	last   domain.Weights
}

// Run simulates params.Method over the aligned price panels.
// Training rows for a decision at day t end with the return into day t−1,
// trades fill at the open of t+1 and the portfolio is marked at closes.
// Returns an error wrapping domain.ErrInput when the data cannot support a
// single training window.
func (e *Engine) Run(ctx context.Context, p domain.BacktestParams) (*domain.BacktestResult, error) {
	started := time.Now()
	method := string(p.Method)

	closes, opens, err := e.prepare(p)
	if err != nil {
		observability.RecordBacktest(method, "error")
		return nil, err
	}

	tickers := closes.Tickers
	n := closes.Len()
	tw, rebal := p.TrainingWindow, p.RebalancingWindow
	td := normalization.InferTradingDays(closes.Dates)
	returns := closes.Returns()
	costRate := p.TransactionCostBps / 10000
	lookback := p.VolatilityLookback
	if lookback <= 0 {
		lookback = domain.DefaultVolatilityLookback
	}
	targetVol := p.TargetVolatility
	if targetVol <= 0 {
		targetVol = domain.DefaultTargetVolatility
	}

	log := e.log.With().Str("method", method).Logger()
	if td == domain.TradingDaysContinuous {
		log.Debug().Msg("continuous calendar detected, annualizing with 365 days")
	}

	res := &domain.BacktestResult{
		EquityCurve:       make([]domain.EquityPoint, 0, n-tw),
		AllocationHistory: make([]domain.AllocationRecord, 0, (n-tw)/rebal+1),
		RebalanceDates:    make([]string, 0, (n-tw)/rebal+1),
		Overfitting:       make([]domain.OverfittingMetric, 0, (n-tw)/rebal+1),
		RiskContributions: map[string]float64{},
		FinalWeights:      domain.Weights{},
		TradingDays:       td,
	}
	st := state{shares: make([]float64, len(tickers))}

	for t := tw; t < n; {
		decisionDate := closes.Dates[t]
		day := decisionDate.Format(domain.DateLayout)
		train := returns.Window(t-1-tw, t-1)
		rf := lookup.ResolveRate(decisionDate, p.RiskFree)

		opt := e.dispatcher.Dispatch(ctx, p.Method, optimizer.Input{
			Returns:      train,
			MinWeight:    p.MinWeight,
			MaxWeight:    p.MaxWeight,
			RiskFreeRate: rf,
			TradingDays:  td,
		})
		if opt.Dendrogram != nil {
			res.Dendrogram = opt.Dendrogram
		}
		if opt.FallbackUsed {
			log.Warn().Str("date", day).Str("reason", opt.FallbackReason).Msg("optimizer fallback")
		}

		target := SmoothWeights(opt.Weights, st.last, p.SmoothingFactor)
		volScaled := false
		if p.EnableVolatilityScaling && target.Sum() > domain.CashThreshold {
			var scale float64
			target, scale = ScaleToVolatility(target, train, targetVol, lookback, td)
			if scale < 1 {
				volScaled = true
				log.Debug().Str("date", day).Float64("scale", scale).Msg("volatility scaling applied")
			}
		}
		st.last = target
		observability.RecordRebalance(method, volScaled)

		// Trade at the next open, value at today's close.
		exec := min(t+1, n-1)
		w := target.Vector(tickers)
		value := st.cash
		for j := range tickers {
			value += st.shares[j] * closes.Values[t][j]
		}
		if t == tw {
			value = 1
			st.cash = 0
		}

		turnover := 0.0
		for j := range tickers {
			turnover += math.Abs(value*w[j] - st.shares[j]*opens.Values[exec][j])
		}
		cost := turnover * costRate
		res.TotalCosts += cost
		res.TotalTurnover += turnover

		net := value - cost
		invested := 0.0
		for j := range tickers {
			alloc := net * w[j]
			if px := opens.Values[exec][j]; px > 0 {
				st.shares[j] = alloc / px
			} else {
				st.shares[j] = 0
			}
			invested += alloc
		}
		st.cash = math.Max(0, net-invested)

		record := domain.AllocationRecord{
			Date:           day,
			Weights:        make(map[string]float64, len(tickers)),
			Fallback:       opt.FallbackUsed,
			FallbackReason: opt.FallbackReason,
		}
		for j, tk := range tickers {
			record.Weights[tk] = metrics.Round(w[j], 4)
		}
		res.AllocationHistory = append(res.AllocationHistory, record)
		res.RebalanceDates = append(res.RebalanceDates, day)
		res.LastFallback = opt.FallbackUsed
		res.LastFallbackNote = opt.FallbackReason

		next := min(t+rebal, n)
		period := make([]float64, 0, max(next-exec, 0))
		for d := exec; d < next; d++ {
			if d > t {
				st.cash *= 1 + lookup.ResolveRate(closes.Dates[d], p.RiskFree)/float64(td)
			}
			v := st.cash
			for j := range tickers {
				v += st.shares[j] * closes.Values[d][j]
			}
			res.EquityCurve = append(res.EquityCurve, domain.EquityPoint{
				Date:  closes.Dates[d].UnixMilli(),
				Value: metrics.Round(v, 6),
			})
			period = append(period, v)
		}

		predicted, realized := 0.0, 0.0
		if target.Sum() >= domain.CashThreshold {
			predicted = PredictedSharpe(train, target, td)
			realized = RealizedSharpe(period, td)
		}
		res.Overfitting = append(res.Overfitting, domain.OverfittingMetric{
			Date:            day,
			PredictedSharpe: metrics.Round(predicted, 4),
			RealizedSharpe:  metrics.Round(realized, 4),
		})

		log.Debug().
			Str("date", day).
			Float64("value", value).
			Float64("turnover", turnover).
			Float64("cost", cost).
			Float64("invested", target.Sum()).
			Msg("rebalanced")

		t = next
	}

	for k, v := range st.last {
		res.FinalWeights[k] = v
	}
	if len(st.last) > 0 {
		res.RiskContributions = metrics.RiskContributions(st.last, returns.Tail(tw))
	}
	res.BenchmarkCurve, res.BenchmarkTurnover = benchmark.EqualWeight(closes, tw, rebal)

	observability.RecordBacktest(method, "ok")
	observability.RecordMethodDuration(method, time.Since(started).Seconds())
	log.Info().
		Int("rebalances", len(res.RebalanceDates)).
		Float64("total_costs", res.TotalCosts).
		Float64("total_turnover", res.TotalTurnover).
		Dur("elapsed", time.Since(started)).
		Msg("backtest complete")
	return res, nil
}

// prepare aligns the panels and checks the run can start.
func (e *Engine) prepare(p domain.BacktestParams) (domain.PricePanel, domain.PricePanel, error) {
	if e.dispatcher == nil {
		return domain.PricePanel{}, domain.PricePanel{}, fmt.Errorf("backtest: no dispatcher configured")
	}
	if p.TrainingWindow < 1 || p.RebalancingWindow < 1 {
		return domain.PricePanel{}, domain.PricePanel{}, fmt.Errorf("%w: training window %d and rebalancing window %d must be positive",
			domain.ErrInput, p.TrainingWindow, p.RebalancingWindow)
	}

	open := p.Open
	if len(open.Tickers) == 0 {
		open = p.Close
	}
	closes, opens, err := normalization.Align(p.Close, open)
	if err != nil {
		return domain.PricePanel{}, domain.PricePanel{}, fmt.Errorf("%w: align prices: %v", domain.ErrInput, err)
	}
	if err := domain.ValidateBounds(len(closes.Tickers), p.MinWeight, p.MaxWeight); err != nil {
		return domain.PricePanel{}, domain.PricePanel{}, err
	}
	if closes.Len() < p.TrainingWindow+1 {
		return domain.PricePanel{}, domain.PricePanel{}, fmt.Errorf("%w: not enough data, need at least %d points, have %d",
			domain.ErrInput, p.TrainingWindow+1, closes.Len())
	}
	return closes, opens, nil
}
