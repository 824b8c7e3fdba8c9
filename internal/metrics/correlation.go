package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"portfolio-lab/internal/cluster"
	"portfolio-lab/internal/domain"
)

// CorrelationMatrix returns the Pearson correlation of daily returns with
// tickers reordered by average-linkage clustering on 1-corr distance, so
// correlated assets sit next to each other. Values are rounded to 3 decimals.
// Below 10 usable returns the matrix is empty; a single ticker gives [[1]].
func CorrelationMatrix(prices domain.PricePanel) domain.CorrelationMatrix {
	tickers := append([]string(nil), prices.Tickers...)
	returns := completeRows(prices.Returns())
	if len(returns) < domain.MinReturnsForCorrelationOrder {
		return domain.CorrelationMatrix{Tickers: tickers, Matrix: [][]float64{}}
	}
	n := len(tickers)
	if n < 2 {
		return domain.CorrelationMatrix{Tickers: tickers, Matrix: [][]float64{{1}}}
	}

	cols := make([][]float64, n)
	for j := range cols {
		cols[j] = make([]float64, len(returns))
		for i, row := range returns {
			cols[j][i] = row[j]
		}
	}

	corr := make([][]float64, n)
	dist := make([][]float64, n)
	for i := range corr {
		corr[i] = make([]float64, n)
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		corr[i][i] = 1
		for j := i + 1; j < n; j++ {
			c := stat.Correlation(cols[i], cols[j], nil)
			if math.IsNaN(c) {
				c = 0
			}
			corr[i][j], corr[j][i] = c, c
			d := math.Min(math.Max(1-c, 0), 2)
			dist[i][j], dist[j][i] = d, d
		}
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if merges, err := cluster.Linkage(dist, cluster.Average); err == nil {
		order = cluster.Leaves(merges, n)
	}

	out := domain.CorrelationMatrix{
		Tickers: make([]string, n),
		Matrix:  make([][]float64, n),
	}
	for a, i := range order {
		out.Tickers[a] = tickers[i]
		out.Matrix[a] = make([]float64, n)
		for b, j := range order {
			out.Matrix[a][b] = Round(corr[i][j], 3)
		}
	}
	return out
}

// completeRows drops return rows that contain a NaN.
func completeRows(r domain.ReturnsMatrix) [][]float64 {
	out := make([][]float64, 0, r.Len())
rows:
	for _, row := range r.Values {
		for _, v := range row {
			if math.IsNaN(v) {
				continue rows
			}
		}
		out = append(out, row)
	}
	return out
}
