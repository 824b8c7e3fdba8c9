package domain

import (
	"math"
	"time"
)

// PricePanel is a date-indexed matrix of prices with one column per ticker.
// After alignment the close and open panels share the same Dates and Tickers,
// dates are strictly increasing and no value is missing.
type PricePanel struct {
	Dates   []time.Time
	Tickers []string
	Values  [][]float64 // Values[i][j] = price of Tickers[j] on Dates[i]
}

// Len returns the number of dates.
func (p PricePanel) Len() int {
	return len(p.Dates)
}

// Index returns the column of ticker, or -1.
func (p PricePanel) Index(ticker string) int {
	for j, t := range p.Tickers {
		if t == ticker {
			return j
		}
	}
	return -1
}

// Column returns a copy of column j.
func (p PricePanel) Column(j int) []float64 {
	col := make([]float64, len(p.Values))
	for i, row := range p.Values {
		col[i] = row[j]
	}
	return col
}

// Slice returns rows [from, to). Row slices are shared with p.
func (p PricePanel) Slice(from, to int) PricePanel {
	return PricePanel{
		Dates:   p.Dates[from:to],
		Tickers: p.Tickers,
		Values:  p.Values[from:to],
	}
}

// Returns computes day-over-day percentage change. The result is one row
// shorter than p; row k is the change from date k to date k+1.
// A non-positive previous price yields NaN for that cell.
func (p PricePanel) Returns() ReturnsMatrix {
	n := p.Len()
	if n < 2 {
		return ReturnsMatrix{Tickers: p.Tickers}
	}
	r := ReturnsMatrix{
		Dates:   make([]time.Time, n-1),
		Tickers: p.Tickers,
		Values:  make([][]float64, n-1),
	}
	for i := 1; i < n; i++ {
		row := make([]float64, len(p.Tickers))
		for j := range p.Tickers {
			prev := p.Values[i-1][j]
			if prev <= 0 || math.IsNaN(prev) {
				row[j] = math.NaN()
				continue
			}
			row[j] = p.Values[i][j]/prev - 1
		}
		r.Dates[i-1] = p.Dates[i]
		r.Values[i-1] = row
	}
	return r
}

// ReturnsMatrix holds periodic returns aligned to the later date of each pair.
type ReturnsMatrix struct {
	Dates   []time.Time
	Tickers []string
	Values  [][]float64
}

// Len returns the number of return rows.
func (r ReturnsMatrix) Len() int {
	return len(r.Values)
}

// NumAssets returns the number of columns.
func (r ReturnsMatrix) NumAssets() int {
	return len(r.Tickers)
}

// Window returns rows [from, to), clamped to the matrix bounds.
func (r ReturnsMatrix) Window(from, to int) ReturnsMatrix {
	if from < 0 {
		from = 0
	}
	if to > len(r.Values) {
		to = len(r.Values)
	}
	if from > to {
		from = to
	}
	w := ReturnsMatrix{Tickers: r.Tickers, Values: r.Values[from:to]}
	if len(r.Dates) == len(r.Values) {
		w.Dates = r.Dates[from:to]
	}
	return w
}

// Tail returns the last n rows (all rows when n exceeds the length).
func (r ReturnsMatrix) Tail(n int) ReturnsMatrix {
	return r.Window(len(r.Values)-n, len(r.Values))
}

// Column returns a copy of column j.
func (r ReturnsMatrix) Column(j int) []float64 {
	col := make([]float64, len(r.Values))
	for i, row := range r.Values {
		col[i] = row[j]
	}
	return col
}

// Portfolio returns the per-row weighted sum using w aligned to Tickers.
// NaN cells contribute nothing.
func (r ReturnsMatrix) Portfolio(w []float64) []float64 {
	out := make([]float64, len(r.Values))
	for i, row := range r.Values {
		s := 0.0
		for j, v := range row {
			if math.IsNaN(v) {
				continue
			}
			s += v * w[j]
		}
		out[i] = s
	}
	return out
}
