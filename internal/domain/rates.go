package domain

import "time"

// RateSeries is an annualized risk-free rate history, ordered by date.
type RateSeries struct {
	Dates  []time.Time
	Values []float64 // decimal, e.g. 0.045
}

// Len returns the number of observations.
func (s *RateSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Dates)
}

// Mean returns the arithmetic mean of the series, or 0 when empty.
func (s *RateSeries) Mean() float64 {
	if s.Len() == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range s.Values {
		sum += v
	}
	return sum / float64(len(s.Values))
}

// RateInput is the risk-free rate fed to a backtest: a constant, or a
// date-indexed series resolved as-of each simulated day.
type RateInput struct {
	Constant float64
	Series   *RateSeries
}

// ConstantRate builds a RateInput from a scalar.
func ConstantRate(r float64) RateInput {
	return RateInput{Constant: r}
}

// IsSeries reports whether a non-empty series is attached.
func (r RateInput) IsSeries() bool {
	return r.Series.Len() > 0
}

// Scalar returns the constant, or the series mean when a series is set.
func (r RateInput) Scalar() float64 {
	if r.IsSeries() {
		return r.Series.Mean()
	}
	return r.Constant
}
