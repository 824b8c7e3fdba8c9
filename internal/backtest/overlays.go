package backtest

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"portfolio-lab/internal/domain"
)

// SmoothWeights blends new targets with the previous weights:
// (1−alpha)×new + alpha×old over the union of tickers. The result is not
// renormalized, so a move to cash is only partly taken. alpha <= 0 or no
// previous weights returns newW unchanged.
func SmoothWeights(newW, oldW domain.Weights, alpha float64) domain.Weights {
	if len(oldW) == 0 || alpha <= 0 {
		return newW
	}
	out := make(domain.Weights, len(newW))
	for t, w := range newW {
		out[t] = (1 - alpha) * w
	}
	for t, w := range oldW {
		out[t] += alpha * w
	}
	return out
}

// ScaleToVolatility scales weights down so the portfolio's trailing
// annualized volatility over the last lookback training rows does not exceed
// target. It never levers up; the unscaled remainder is cash. Returns the
// weights and the scale applied (1 when untouched).
func ScaleToVolatility(w domain.Weights, train domain.ReturnsMatrix, target float64, lookback, tradingDays int) (domain.Weights, float64) {
	if len(w) == 0 || w.Sum() < domain.CashThreshold {
		return w, 1
	}
	recent := train.Tail(lookback)
	if recent.Len() == 0 {
		return w, 1
	}

	port := recent.Portfolio(w.Vector(recent.Tickers))
	realized := stat.PopStdDev(port, nil) * math.Sqrt(float64(tradingDays))
	if realized < 1e-6 || math.IsNaN(realized) {
		return w, 1
	}

	scale := math.Min(1, target/realized)
	if scale == 1 {
		return w, 1
	}
	out := make(domain.Weights, len(w))
	for t, v := range w {
		out[t] = v * scale
	}
	return out, scale
}
