package backtest

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-lab/internal/domain"
	"portfolio-lab/internal/optimizer"
)

var tickers3 = []string{"AAA", "BBB", "CCC"}

// weekdays returns n consecutive business days.
func weekdays(n int) []time.Time {
	out := make([]time.Time, 0, n)
	d := time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)
	for len(out) < n {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			out = append(out, d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return out
}

// syntheticPanels builds random-walk closes and opens a small gap away.
func syntheticPanels(seed int64, days int, tickers []string, vols []float64) (domain.PricePanel, domain.PricePanel) {
	rng := rand.New(rand.NewSource(seed))
	dates := weekdays(days)
	closes := domain.PricePanel{Dates: dates, Tickers: tickers, Values: make([][]float64, days)}
	opens := domain.PricePanel{Dates: dates, Tickers: tickers, Values: make([][]float64, days)}
	prev := make([]float64, len(tickers))
	for j := range prev {
		prev[j] = 100
	}
	for i := 0; i < days; i++ {
		c := make([]float64, len(tickers))
		o := make([]float64, len(tickers))
		for j := range tickers {
			daily := vols[j] / math.Sqrt(252)
			o[j] = prev[j] * (1 + 0.2*daily*rng.NormFloat64())
			c[j] = prev[j] * (1 + 0.0003 + daily*rng.NormFloat64())
			prev[j] = c[j]
		}
		closes.Values[i] = c
		opens.Values[i] = o
	}
	return closes, opens
}

func constantPanel(days int, tickers []string, price float64) domain.PricePanel {
	p := domain.PricePanel{Dates: weekdays(days), Tickers: tickers, Values: make([][]float64, days)}
	for i := range p.Values {
		row := make([]float64, len(tickers))
		for j := range row {
			row[j] = price
		}
		p.Values[i] = row
	}
	return p
}

func baseParams(closes, opens domain.PricePanel) domain.BacktestParams {
	p := domain.DefaultBacktestParams()
	p.Close = closes
	p.Open = opens
	p.Method = domain.MethodHRP
	return p
}

func newTestEngine(d Dispatcher) *Engine {
	return NewEngine(Options{Dispatcher: d, Logger: zerolog.Nop()})
}

func TestRun_EndToEndSchedule(t *testing.T) {
	closes, opens := syntheticPanels(1, 400, tickers3, []float64{0.15, 0.25, 0.35})
	stub := NewStubDispatcher(domain.EqualWeights(tickers3))

	res, err := newTestEngine(stub).Run(context.Background(), baseParams(closes, opens))
	require.NoError(t, err)

	// ceil((400-252)/21) rebalances, the first on day 252.
	require.Len(t, res.AllocationHistory, 8)
	assert.Equal(t, closes.Dates[252].Format(domain.DateLayout), res.RebalanceDates[0])
	assert.Equal(t, closes.Dates[399].Format(domain.DateLayout), res.RebalanceDates[7])
	assert.Len(t, res.Overfitting, 8)

	// Seven full holding periods of 20 days from t+1, then a single final day.
	assert.Len(t, res.EquityCurve, 7*20+1)
	assert.Equal(t, closes.Dates[253].UnixMilli(), res.EquityCurve[0].Date)
	assert.Equal(t, closes.Dates[399].UnixMilli(), res.EquityCurve[len(res.EquityCurve)-1].Date)

	assert.Len(t, res.BenchmarkCurve, 400-252)
	assert.Len(t, stub.Calls(), 8)

	for _, rec := range res.AllocationHistory {
		assert.InDelta(t, 1.0, rec.Weights["AAA"]+rec.Weights["BBB"]+rec.Weights["CCC"], 1e-3)
		assert.False(t, rec.Fallback)
	}
	assert.InDelta(t, 1.0, res.RiskContributions["AAA"]+res.RiskContributions["BBB"]+res.RiskContributions["CCC"], 1e-3)
	assert.Greater(t, res.RiskContributions["CCC"], res.RiskContributions["AAA"])
}

func TestRun_TrainingWindowHasNoLookahead(t *testing.T) {
	closes, opens := syntheticPanels(2, 330, tickers3, []float64{0.2, 0.2, 0.2})
	stub := NewStubDispatcher(domain.EqualWeights(tickers3))
	params := baseParams(closes, opens)
	params.TrainingWindow = 100
	params.RebalancingWindow = 50

	res, err := newTestEngine(stub).Run(context.Background(), params)
	require.NoError(t, err)

	calls := stub.Calls()
	require.Len(t, calls, len(res.RebalanceDates))
	for k, call := range calls {
		decision := 100 + 50*k
		assert.Equal(t, closes.Dates[decision-1], call.LastRowDate, "call %d", k)
		assert.True(t, call.LastRowDate.Before(closes.Dates[decision]))
		if k == 0 {
			assert.Equal(t, 99, call.TrainingRows)
		} else {
			assert.Equal(t, 100, call.TrainingRows)
		}
	}
}

func TestRun_FutureDataDoesNotChangePastDecisions(t *testing.T) {
	closes, opens := syntheticPanels(3, 200, tickers3, []float64{0.1, 0.2, 0.3})
	params := baseParams(closes, opens)
	params.TrainingWindow = 80
	params.RebalancingWindow = 40
	params.Method = domain.MethodGMV
	engine := newTestEngine(optimizer.NewDispatcher(optimizer.Options{Logger: zerolog.Nop()}))

	base, err := engine.Run(context.Background(), params)
	require.NoError(t, err)

	shocked, _ := syntheticPanels(3, 200, tickers3, []float64{0.1, 0.2, 0.3})
	for i := 121; i < 200; i++ {
		for j := range shocked.Values[i] {
			shocked.Values[i][j] *= 3
		}
	}
	params.Close = shocked
	moved, err := engine.Run(context.Background(), params)
	require.NoError(t, err)

	// Decisions at day 80 and 120 only see returns up to day 119.
	assert.Equal(t, base.AllocationHistory[:2], moved.AllocationHistory[:2])
	assert.NotEqual(t, base.EquityCurve, moved.EquityCurve)
}

func TestRun_ExecutesAtNextOpen(t *testing.T) {
	closes := constantPanel(30, []string{"AAA"}, 100)
	opens := constantPanel(30, []string{"AAA"}, 100)
	opens.Values[21][0] = 50
	params := baseParams(closes, opens)
	params.TrainingWindow = 20
	params.RebalancingWindow = 5
	params.TransactionCostBps = 0
	params.RiskFree = domain.ConstantRate(0)

	res, err := newTestEngine(NewStubDispatcher(domain.Weights{"AAA": 1})).Run(context.Background(), params)
	require.NoError(t, err)

	// Bought at 50, marked at a close of 100.
	assert.Equal(t, 2.0, res.EquityCurve[0].Value)
	assert.Equal(t, closes.Dates[21].UnixMilli(), res.EquityCurve[0].Date)
}

func TestRun_TransactionCosts(t *testing.T) {
	closes := constantPanel(120, tickers3, 10)
	params := baseParams(closes, closes)
	params.TrainingWindow = 60
	params.RebalancingWindow = 10
	params.TransactionCostBps = 10
	params.RiskFree = domain.ConstantRate(0)

	res, err := newTestEngine(NewStubDispatcher(domain.EqualWeights(tickers3))).Run(context.Background(), params)
	require.NoError(t, err)

	// Only the initial move out of cash trades.
	assert.InDelta(t, 1.0, res.TotalTurnover, 1e-9)
	assert.InDelta(t, 0.001, res.TotalCosts, 1e-12)
	for _, pt := range res.EquityCurve {
		assert.InDelta(t, 0.999, pt.Value, 1e-9)
	}
}

func TestRun_CashAccruesInterest(t *testing.T) {
	closes := constantPanel(100, tickers3, 10)
	params := baseParams(closes, closes)
	params.TrainingWindow = 60
	params.RebalancingWindow = 20
	params.RiskFree = domain.ConstantRate(0.0504)

	res, err := newTestEngine(NewStubDispatcher(domain.CashWeights(tickers3))).Run(context.Background(), params)
	require.NoError(t, err)

	daily := 0.0504 / float64(res.TradingDays)
	assert.InDelta(t, 1+daily, res.EquityCurve[0].Value, 1e-6)
	assert.Greater(t, res.EquityCurve[len(res.EquityCurve)-1].Value, res.EquityCurve[0].Value)
	assert.Zero(t, res.TotalCosts)

	for _, m := range res.Overfitting {
		assert.Zero(t, m.PredictedSharpe)
		assert.Zero(t, m.RealizedSharpe)
	}
	assert.Equal(t, map[string]float64{"AAA": 0, "BBB": 0, "CCC": 0}, res.RiskContributions)
}

func TestRun_RateSeriesResolvedAsOfDecision(t *testing.T) {
	closes := constantPanel(100, tickers3, 10)
	params := baseParams(closes, closes)
	params.TrainingWindow = 60
	params.RebalancingWindow = 20
	params.RiskFree = domain.RateInput{Series: &domain.RateSeries{
		Dates:  []time.Time{closes.Dates[70]},
		Values: []float64{0.03},
	}}
	stub := NewStubDispatcher(domain.EqualWeights(tickers3))

	_, err := newTestEngine(stub).Run(context.Background(), params)
	require.NoError(t, err)

	calls := stub.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, domain.DefaultRiskFreeRate, calls[0].RiskFreeRate)
	assert.Equal(t, 0.03, calls[1].RiskFreeRate)
}

func TestRun_SmoothingBlendsWithPreviousTarget(t *testing.T) {
	tickers := []string{"AAA", "BBB"}
	closes := constantPanel(100, tickers, 10)
	alternate := func(call int) *domain.OptimizationResult {
		if call%2 == 0 {
			return &domain.OptimizationResult{Weights: domain.Weights{"AAA": 1, "BBB": 0}}
		}
		return &domain.OptimizationResult{Weights: domain.Weights{"AAA": 0, "BBB": 1}}
	}

	for _, tc := range []struct {
		alpha float64
		want  map[string]float64
	}{
		{alpha: 0, want: map[string]float64{"AAA": 0, "BBB": 1}},
		{alpha: 0.25, want: map[string]float64{"AAA": 0.25, "BBB": 0.75}},
		{alpha: 1, want: map[string]float64{"AAA": 1, "BBB": 0}},
	} {
		params := baseParams(closes, closes)
		params.TrainingWindow = 60
		params.RebalancingWindow = 20
		params.SmoothingFactor = tc.alpha

		res, err := newTestEngine(NewStubDispatcherFunc(alternate)).Run(context.Background(), params)
		require.NoError(t, err)
		assert.Equal(t, tc.want, res.AllocationHistory[1].Weights, "alpha %v", tc.alpha)
	}
}

func TestRun_VolatilityScalingAddsCash(t *testing.T) {
	closes, opens := syntheticPanels(4, 200, tickers3, []float64{0.6, 0.6, 0.6})
	params := baseParams(closes, opens)
	params.TrainingWindow = 100
	params.RebalancingWindow = 20
	params.EnableVolatilityScaling = true
	params.TargetVolatility = 0.05

	res, err := newTestEngine(NewStubDispatcher(domain.EqualWeights(tickers3))).Run(context.Background(), params)
	require.NoError(t, err)

	for _, rec := range res.AllocationHistory {
		invested := rec.Weights["AAA"] + rec.Weights["BBB"] + rec.Weights["CCC"]
		assert.Less(t, invested, 0.5)
	}
	assert.Less(t, res.FinalWeights.Sum(), 0.5)
}

func TestRun_FallbackIsRecorded(t *testing.T) {
	closes := constantPanel(90, tickers3, 10)
	params := baseParams(closes, closes)
	params.TrainingWindow = 60
	params.RebalancingWindow = 20
	stub := NewStubDispatcherFunc(func(int) *domain.OptimizationResult {
		return &domain.OptimizationResult{
			Weights:        domain.EqualWeights(tickers3),
			FallbackUsed:   true,
			FallbackReason: "GMV Solver Failed: singular -> Equal Weight",
		}
	})

	res, err := newTestEngine(stub).Run(context.Background(), params)
	require.NoError(t, err)

	assert.True(t, res.AllocationHistory[0].Fallback)
	assert.Equal(t, "GMV Solver Failed: singular -> Equal Weight", res.AllocationHistory[0].FallbackReason)
	assert.True(t, res.LastFallback)
}

func TestRun_HRPKeepsLatestDendrogram(t *testing.T) {
	closes, opens := syntheticPanels(5, 160, tickers3, []float64{0.1, 0.2, 0.3})
	params := baseParams(closes, opens)
	params.TrainingWindow = 100
	params.RebalancingWindow = 30

	res, err := newTestEngine(optimizer.NewDispatcher(optimizer.Options{Logger: zerolog.Nop()})).Run(context.Background(), params)
	require.NoError(t, err)

	require.NotNil(t, res.Dendrogram)
	assert.ElementsMatch(t, tickers3, res.Dendrogram.IVL)
}

func TestRun_Deterministic(t *testing.T) {
	closes, opens := syntheticPanels(6, 320, tickers3, []float64{0.15, 0.2, 0.4})
	params := baseParams(closes, opens)
	params.Method = domain.MethodMVO
	engine := newTestEngine(optimizer.NewDispatcher(optimizer.Options{
		Logger: zerolog.Nop(),
		MVO:    []optimizer.MVOOption{optimizer.WithReturnShrinkage(domain.DefaultReturnShrinkage)},
	}))

	a, err := engine.Run(context.Background(), params)
	require.NoError(t, err)
	b, err := engine.Run(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, a.EquityCurve, b.EquityCurve)
	assert.Equal(t, a.AllocationHistory, b.AllocationHistory)
}

func TestRun_InputErrors(t *testing.T) {
	closes := constantPanel(50, tickers3, 10)
	engine := newTestEngine(NewStubDispatcher(domain.EqualWeights(tickers3)))

	params := baseParams(closes, closes)
	_, err := engine.Run(context.Background(), params)
	assert.ErrorIs(t, err, domain.ErrInput, "not enough data")

	params.TrainingWindow = 20
	params.MaxWeight = 0.2
	_, err = engine.Run(context.Background(), params)
	assert.ErrorIs(t, err, domain.ErrInput, "infeasible bounds")

	params.MaxWeight = 1
	params.RebalancingWindow = 0
	_, err = engine.Run(context.Background(), params)
	assert.ErrorIs(t, err, domain.ErrInput, "zero rebalancing window")
}
