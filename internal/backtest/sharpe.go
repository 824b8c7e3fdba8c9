package backtest

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"portfolio-lab/internal/domain"
)

// minSharpeStd keeps near-flat cash periods from producing huge ratios.
const minSharpeStd = 1e-6

// PredictedSharpe is the in-sample Sharpe of holding w at constant weights
// over the training window. Uses population standard deviation, no
// risk-free adjustment, capped to ±20.
func PredictedSharpe(train domain.ReturnsMatrix, w domain.Weights, tradingDays int) float64 {
	if train.Len() == 0 {
		return 0
	}
	mean, std := stat.PopMeanStdDev(train.Portfolio(w.Vector(train.Tickers)), nil)
	if !(std > minSharpeStd) {
		return 0
	}
	return capSharpe(mean / std * math.Sqrt(float64(tradingDays)))
}

// RealizedSharpe is the Sharpe of the portfolio values actually observed in
// a holding period, from sample standard deviation, capped to ±20.
func RealizedSharpe(values []float64, tradingDays int) float64 {
	if len(values) < 2 {
		return 0
	}
	rets := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		rets = append(rets, values[i]/values[i-1]-1)
	}
	if len(rets) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(rets, nil)
	if !(std > minSharpeStd) {
		return 0
	}
	return capSharpe(mean / std * math.Sqrt(float64(tradingDays)))
}

func capSharpe(s float64) float64 {
	return math.Max(math.Min(s, domain.SharpeCap), -domain.SharpeCap)
}
