package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"portfolio-lab/internal/domain"
	"portfolio-lab/internal/observability"
	"portfolio-lab/internal/storage"
)

// defaultHistoryStart is the first date of the flat fallback history when
// no start is requested.
var defaultHistoryStart = time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)

// RateProvider serves the risk-free rate from a RateStore, falling back to
// a constant when the store is missing or empty.
type RateProvider struct {
	store    storage.RateStore // may be nil
	fallback float64
	log      zerolog.Logger
}

// NewRateProvider creates a provider. fallback <= 0 uses domain.DefaultRiskFreeRate.
func NewRateProvider(store storage.RateStore, fallback float64, log zerolog.Logger) *RateProvider {
	if fallback <= 0 {
		fallback = domain.DefaultRiskFreeRate
	}
	return &RateProvider{store: store, fallback: fallback, log: observability.Component(log, "rates")}
}

// Current returns the most recent stored rate, or the fallback.
func (p *RateProvider) Current(ctx context.Context) (float64, error) {
	if p.store == nil {
		return p.fallback, nil
	}
	pt, err := p.store.Latest(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return p.fallback, nil
		}
		return 0, fmt.Errorf("latest rate: %w", err)
	}
	return pt.Rate, nil
}

// History returns stored rates within [start, end]. Without stored data it
// returns the fallback on every business day of the range.
func (p *RateProvider) History(ctx context.Context, start, end time.Time) (*domain.RateSeries, error) {
	if start.IsZero() {
		start = defaultHistoryStart
	}
	if end.IsZero() {
		end = time.Now().UTC()
	}
	if p.store != nil {
		points, err := p.store.GetRange(ctx, start, end)
		if err != nil {
			return nil, fmt.Errorf("rate history: %w", err)
		}
		if len(points) > 0 {
			s := &domain.RateSeries{
				Dates:  make([]time.Time, len(points)),
				Values: make([]float64, len(points)),
			}
			for i, pt := range points {
				s.Dates[i], s.Values[i] = pt.Date, pt.Rate
			}
			return s, nil
		}
		p.log.Debug().Msg("no stored rate history, using flat fallback")
	}
	return FlatRateSeries(start, end, p.fallback), nil
}

// FlatRateSeries returns rate on every weekday in [start, end].
func FlatRateSeries(start, end time.Time, rate float64) *domain.RateSeries {
	s := &domain.RateSeries{}
	for d := storage.Day(start); !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		s.Dates = append(s.Dates, d)
		s.Values = append(s.Values, rate)
	}
	return s
}

func isNoData(err error) bool {
	return errors.Is(err, ErrNoData)
}
