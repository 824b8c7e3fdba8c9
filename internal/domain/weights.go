package domain

import "sort"

// Weights maps ticker to portfolio weight. A vector sums to 1.0 when fully
// invested and to 0.0 when fully in cash; overlays never renormalize it.
type Weights map[string]float64

// EqualWeights returns 1/N for every ticker.
func EqualWeights(tickers []string) Weights {
	w := make(Weights, len(tickers))
	if len(tickers) == 0 {
		return w
	}
	for _, t := range tickers {
		w[t] = 1.0 / float64(len(tickers))
	}
	return w
}

// CashWeights returns zero for every ticker.
func CashWeights(tickers []string) Weights {
	w := make(Weights, len(tickers))
	for _, t := range tickers {
		w[t] = 0
	}
	return w
}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	s := 0.0
	for _, t := range w.Tickers() {
		s += w[t]
	}
	return s
}

// IsCash reports whether the vector is effectively all cash.
func (w Weights) IsCash() bool {
	return w.Sum() < CashThreshold
}

// Clone returns a copy.
func (w Weights) Clone() Weights {
	c := make(Weights, len(w))
	for k, v := range w {
		c[k] = v
	}
	return c
}

// Vector returns weights ordered by tickers; missing tickers are zero.
func (w Weights) Vector(tickers []string) []float64 {
	v := make([]float64, len(tickers))
	for i, t := range tickers {
		v[i] = w[t]
	}
	return v
}

// Tickers returns the keys in sorted order, so sums are reproducible.
func (w Weights) Tickers() []string {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
