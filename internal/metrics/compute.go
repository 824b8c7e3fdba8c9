package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"portfolio-lab/internal/domain"
)

// curveValues extracts values from an equity curve.
func curveValues(curve []domain.EquityPoint) []float64 {
	out := make([]float64, len(curve))
	for i, p := range curve {
		out[i] = p.Value
	}
	return out
}

// curveReturns computes day-over-day returns keyed by the later date.
// Pairs with a non-positive or missing previous value are dropped.
func curveReturns(curve []domain.EquityPoint) ([]int64, []float64) {
	if len(curve) < 2 {
		return nil, nil
	}
	dates := make([]int64, 0, len(curve)-1)
	rets := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Value
		if prev <= 0 || math.IsNaN(prev) || math.IsNaN(curve[i].Value) {
			continue
		}
		dates = append(dates, curve[i].Date)
		rets = append(rets, curve[i].Value/prev-1)
	}
	return dates, rets
}

// computeWinRate calculates win rate as wins / total.
func computeWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

// computeMean calculates the arithmetic mean, 0 for an empty slice.
func computeMean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	return stat.StdDev(xs, nil)
}

// computeMaxDrawdown compounds returns and reports the worst fall from the
// running peak as a positive fraction.
func computeMaxDrawdown(returns []float64) float64 {
	cumulative := 1.0
	peak := math.Inf(-1)
	worst := 0.0
	for _, r := range returns {
		cumulative *= 1 + r
		if cumulative > peak {
			peak = cumulative
		}
		if dd := cumulative/peak - 1; dd < worst {
			worst = dd
		}
	}
	return math.Abs(worst)
}

// computeDownsideDeviation is the root mean square of the negative part of
// excess returns, annualized.
func computeDownsideDeviation(excess []float64, tradingDays int) float64 {
	if len(excess) == 0 {
		return 0
	}
	sumSq := 0.0
	for _, e := range excess {
		if e < 0 {
			sumSq += e * e
		}
	}
	return math.Sqrt(sumSq/float64(len(excess))) * math.Sqrt(float64(tradingDays))
}

// computeOmega is the ratio of gains above threshold to shortfalls at or
// below it. No shortfall gives omegaNoLosses when there are gains, else 1.
func computeOmega(returns []float64, threshold float64) float64 {
	gains, losses := 0.0, 0.0
	for _, r := range returns {
		if r > threshold {
			gains += r - threshold
		} else {
			losses += threshold - r
		}
	}
	if losses > 1e-10 {
		return gains / losses
	}
	if gains > 0 {
		return omegaNoLosses
	}
	return 1
}

// computeWinLoss returns win rate, mean win, absolute mean loss, best return
// and absolute worst return.
func computeWinLoss(returns []float64) (winRate, avgWin, avgLoss, maxGain, maxLoss float64) {
	if len(returns) == 0 {
		return 0, 0, 0, 0, 0
	}
	var wins, losses []float64
	best, worst := math.Inf(-1), math.Inf(1)
	for _, r := range returns {
		switch {
		case r > 0:
			wins = append(wins, r)
		case r < 0:
			losses = append(losses, r)
		}
		best = math.Max(best, r)
		worst = math.Min(worst, r)
	}
	return computeWinRate(len(wins), len(returns)),
		computeMean(wins),
		math.Abs(computeMean(losses)),
		best,
		math.Abs(worst)
}
