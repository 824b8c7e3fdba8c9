package metrics

import (
	"math"

	"github.com/shopspring/decimal"
)

// Sanitize maps NaN and ±Inf to 0 so values survive JSON encoding.
func Sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Round sanitizes v and rounds it half away from zero to places decimals.
func Round(v float64, places int32) float64 {
	v = Sanitize(v)
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// RoundAll rounds every element in place and returns the slice.
func RoundAll(vs []float64, places int32) []float64 {
	for i, v := range vs {
		vs[i] = Round(v, places)
	}
	return vs
}
