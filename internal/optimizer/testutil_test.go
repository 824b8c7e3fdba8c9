package optimizer

import (
	"math"
	"math/rand"
	"time"

	"portfolio-lab/internal/domain"
)

// syntheticReturns generates independent normal daily returns.
// annualVols and annualDrifts are per asset.
func syntheticReturns(seed int64, days int, tickers []string, annualVols, annualDrifts []float64) domain.ReturnsMatrix {
	rng := rand.New(rand.NewSource(seed))
	r := domain.ReturnsMatrix{
		Dates:   make([]time.Time, days),
		Tickers: tickers,
		Values:  make([][]float64, days),
	}
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < days; i++ {
		r.Dates[i] = start.AddDate(0, 0, i)
		row := make([]float64, len(tickers))
		for j := range tickers {
			row[j] = annualDrifts[j]/252 + rng.NormFloat64()*annualVols[j]/math.Sqrt(252)
		}
		r.Values[i] = row
	}
	return r
}

func sumWeights(w domain.Weights) float64 {
	return w.Sum()
}
