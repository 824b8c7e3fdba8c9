package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"portfolio-lab/internal/domain"
)

// RiskContributions returns each asset's share of portfolio variance,
// w_i(Σw)_i / w'Σw, using the sample covariance of returns. Shares sum to 1
// for an invested portfolio and are all zero when portfolio volatility
// vanishes (cash). Missing weights count as zero.
func RiskContributions(weights domain.Weights, returns domain.ReturnsMatrix) map[string]float64 {
	tickers := returns.Tickers
	out := make(map[string]float64, len(tickers))
	for _, t := range tickers {
		out[t] = 0
	}
	if returns.Len() < 2 || len(tickers) == 0 {
		return out
	}

	data := mat.NewDense(returns.Len(), len(tickers), nil)
	for i, row := range returns.Values {
		for j, v := range row {
			if math.IsNaN(v) {
				v = 0
			}
			data.Set(i, j, v)
		}
	}
	cov := mat.NewSymDense(len(tickers), nil)
	stat.CovarianceMatrix(cov, data, nil)

	w := mat.NewVecDense(len(tickers), weights.Vector(tickers))
	var sw mat.VecDense
	sw.MulVec(cov, w)
	variance := mat.Dot(w, &sw)
	if math.Sqrt(math.Max(variance, 0)) < 1e-9 {
		return out
	}
	for j, t := range tickers {
		out[t] = Round(w.AtVec(j)*sw.AtVec(j)/variance, 4)
	}
	return out
}
