package lookup

import (
	"errors"
	"math"
	"time"

	"portfolio-lab/internal/domain"
)

// Errors returned by lookup functions.
var (
	ErrNoRateData = errors.New("no risk-free rate data available")
)

// RateAt returns the last rate observed at or before target.
// NaN observations are skipped.
// Returns ErrNoRateData if the series is empty or starts after target;
// unlike a price lookup there is no backfill from future observations.
func RateAt(target time.Time, series *domain.RateSeries) (float64, error) {
	if series.Len() == 0 {
		return 0, ErrNoRateData
	}

	for i := len(series.Dates) - 1; i >= 0; i-- {
		if series.Dates[i].After(target) {
			continue
		}
		if v := series.Values[i]; !math.IsNaN(v) {
			return v, nil
		}
	}

	return 0, ErrNoRateData
}

// ResolveRate returns the annual risk-free rate applicable on date.
// A constant input is returned as is. A series is resolved as-of date,
// falling back to domain.DefaultRiskFreeRate when nothing is known yet.
func ResolveRate(date time.Time, in domain.RateInput) float64 {
	if !in.IsSeries() {
		return in.Constant
	}
	v, err := RateAt(date, in.Series)
	if err != nil {
		return domain.DefaultRiskFreeRate
	}
	return v
}
