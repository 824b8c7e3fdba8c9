package normalization

import (
	"math"
	"strings"
	"time"

	"portfolio-lab/internal/domain"
)

// BuildPanels pivots bars into close and open panels over the union of dates.
// Column order follows tickers. Cells with no bar are NaN.
//
// Aggregation for same (ticker, date):
//   - close = LAST(close) by arrival order
//   - open = LAST(open); a non-positive open falls back to the close
func BuildPanels(bars []domain.PriceBar, tickers []string) (domain.PricePanel, domain.PricePanel) {
	col := make(map[string]int, len(tickers))
	for j, t := range tickers {
		col[strings.ToUpper(t)] = j
	}

	sorted := make([]domain.PriceBar, 0, len(bars))
	for _, b := range bars {
		if _, ok := col[strings.ToUpper(b.Ticker)]; ok {
			sorted = append(sorted, b)
		}
	}
	SortBars(sorted)

	var dates []time.Time
	var closes, opens [][]float64
	for _, b := range sorted {
		d := truncateDay(b.Date)
		if len(dates) == 0 || !dates[len(dates)-1].Equal(d) {
			dates = append(dates, d)
			closes = append(closes, nanRow(len(tickers)))
			opens = append(opens, nanRow(len(tickers)))
		}
		i := len(dates) - 1
		j := col[strings.ToUpper(b.Ticker)]
		closes[i][j] = b.Close
		if b.Open > 0 {
			opens[i][j] = b.Open
		} else {
			opens[i][j] = b.Close
		}
	}

	names := append([]string(nil), tickers...)
	return domain.PricePanel{Dates: dates, Tickers: names, Values: closes},
		domain.PricePanel{Dates: append([]time.Time(nil), dates...), Tickers: names, Values: opens}
}

func nanRow(n int) []float64 {
	row := make([]float64, n)
	for j := range row {
		row[j] = math.NaN()
	}
	return row
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
