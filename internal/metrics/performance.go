// Package metrics computes performance statistics from equity curves, plus
// drawdown, correlation and risk-contribution views for reporting.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"portfolio-lab/internal/domain"
)

const (
	// omegaNoLosses is reported when a curve has gains but no shortfall.
	omegaNoLosses = 999.0

	// minCommonReturns is the overlap required before alpha and beta are estimated.
	minCommonReturns = 10

	minYears = 0.01
)

// Input is the context a curve is evaluated in.
type Input struct {
	RiskFreeRate       float64 // annual, decimal
	TotalCosts         float64
	NumRebalances      int
	AnnualizedTurnover float64
	Benchmark          []domain.EquityPoint // optional, enables alpha and beta
	TradingDays        int                  // 252 when zero
}

// Compute derives performance metrics from an equity curve.
// Fewer than two returns yield zero ratios with costs, rebalance count and
// turnover preserved. All outputs are finite.
func Compute(curve []domain.EquityPoint, in Input) domain.PerformanceMetrics {
	td := in.TradingDays
	if td <= 0 {
		td = domain.TradingDaysPerYear
	}

	out := domain.PerformanceMetrics{
		TotalTransactionCosts: Round(in.TotalCosts, 4),
		NumRebalances:         in.NumRebalances,
		AnnualizedTurnover:    Round(in.AnnualizedTurnover, 4),
	}

	dates, returns := curveReturns(curve)
	if len(returns) < 2 {
		return out
	}

	values := curveValues(curve)
	first, last := values[0], values[len(values)-1]
	years := float64(len(curve)) / float64(td)

	totalReturn := last/first - 1
	cagr := math.Pow(last/first, 1/math.Max(years, minYears)) - 1
	volatility := computeStddev(returns) * math.Sqrt(float64(td))

	dailyRF := in.RiskFreeRate / float64(td)
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - dailyRF
	}
	excessMean := computeMean(excess)

	sharpe := 0.0
	if sd := computeStddev(excess); sd > 0 {
		sharpe = excessMean / sd * math.Sqrt(float64(td))
	}

	sortino := 0.0
	if dd := computeDownsideDeviation(excess, td); dd > 1e-9 {
		sortino = excessMean * float64(td) / dd
	}

	maxDD := computeMaxDrawdown(returns)
	calmar := 0.0
	if maxDD > 0 {
		calmar = cagr / maxDD
	}

	skew, kurt := 0.0, 0.0
	if len(returns) > 3 {
		skew, kurt = populationShape(returns)
	}

	winRate, avgWin, avgLoss, maxGain, maxLoss := computeWinLoss(returns)
	alpha, beta := capm(dates, returns, in.Benchmark, cagr, in.RiskFreeRate, td)

	out.SharpeRatio = Round(sharpe, 4)
	out.SortinoRatio = Round(sortino, 4)
	out.MaxDrawdown = Round(maxDD, 4)
	out.CAGR = Round(cagr, 4)
	out.TotalReturn = Round(totalReturn, 4)
	out.Volatility = Round(volatility, 4)
	out.CalmarRatio = Round(calmar, 4)
	out.Skewness = Round(skew, 4)
	out.Kurtosis = Round(kurt, 4)
	out.WinRate = Round(winRate, 4)
	out.AvgWin = Round(avgWin, 6)
	out.AvgLoss = Round(avgLoss, 6)
	out.MaxGain = Round(maxGain, 4)
	out.MaxLoss = Round(maxLoss, 4)
	out.OmegaRatio = Round(computeOmega(returns, dailyRF), 4)
	out.Alpha = Round(alpha, 4)
	out.Beta = Round(beta, 4)
	return out
}

// capm estimates Jensen's alpha and beta over the dates both curves share.
func capm(dates []int64, returns []float64, benchmark []domain.EquityPoint, cagr, rf float64, td int) (alpha, beta float64) {
	benchDates, benchReturns := curveReturns(benchmark)
	if len(benchReturns) <= minCommonReturns {
		return 0, 0
	}

	byDate := make(map[int64]float64, len(benchReturns))
	for i, d := range benchDates {
		byDate[d] = benchReturns[i]
	}
	var port, bench []float64
	for i, d := range dates {
		if b, ok := byDate[d]; ok {
			port = append(port, returns[i])
			bench = append(bench, b)
		}
	}
	if len(port) <= minCommonReturns {
		return 0, 0
	}

	if v := stat.Variance(bench, nil); v > 1e-10 {
		beta = stat.Covariance(port, bench, nil) / v
	}

	growth := 1.0
	for _, b := range bench {
		growth *= 1 + b
	}
	benchCAGR := math.Pow(growth, float64(td)/float64(len(bench))) - 1
	alpha = cagr - (rf + beta*(benchCAGR-rf))
	return alpha, beta
}

// populationShape returns skewness and excess kurtosis from population
// central moments, with no small-sample correction.
func populationShape(x []float64) (skew, exKurt float64) {
	m2 := stat.Moment(2, x, nil)
	if m2 <= 0 {
		return 0, 0
	}
	skew = stat.Moment(3, x, nil) / math.Pow(m2, 1.5)
	exKurt = stat.Moment(4, x, nil)/(m2*m2) - 3
	return skew, exKurt
}
