// Package benchmark builds the reference curves a strategy is compared
// against: a periodically rebalanced equal-weight basket, or a single
// external ticker normalized to start at 1.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"portfolio-lab/internal/domain"
	"portfolio-lab/internal/metrics"
	"portfolio-lab/internal/normalization"
)

// ErrNoBenchmarkData is returned when a custom ticker has no usable prices.
var ErrNoBenchmarkData = errors.New("no benchmark data")

// BarFetcher returns the daily bars of one ticker between start and end.
type BarFetcher interface {
	FetchBars(ctx context.Context, ticker string, start, end time.Time) ([]domain.PriceBar, error)
}

// EqualWeight simulates a 1/N basket over close prices from startOffset on.
// Holdings drift with daily returns and are reset to equal amounts every
// rebalancingWindow days. The second result is one-sided turnover,
// Σ|target−current|/(2×total) per rebalance, divided by elapsed years.
func EqualWeight(closes domain.PricePanel, startOffset, rebalancingWindow int) ([]domain.EquityPoint, float64) {
	n := closes.Len()
	if startOffset < 0 {
		startOffset = 0
	}
	if startOffset >= n || len(closes.Tickers) == 0 {
		return []domain.EquityPoint{}, 0
	}

	assets := len(closes.Tickers)
	amounts := make([]float64, assets)
	for j := range amounts {
		amounts[j] = 1.0 / float64(assets)
	}

	curve := make([]domain.EquityPoint, 0, n-startOffset)
	turnover := 0.0
	dayCounter := 0
	for i := startOffset; i < n; i++ {
		if dayCounter >= rebalancingWindow {
			total := sum(amounts)
			target := total / float64(assets)
			if total > 0 {
				diff := 0.0
				for _, a := range amounts {
					diff += math.Abs(target - a)
				}
				turnover += diff / total / 2
			}
			for j := range amounts {
				amounts[j] = target
			}
			dayCounter = 0
		}

		for j := range amounts {
			amounts[j] *= 1 + dailyReturn(closes, i, j)
		}
		curve = append(curve, domain.EquityPoint{
			Date:  closes.Dates[i].UnixMilli(),
			Value: metrics.Round(sum(amounts), 6),
		})
		dayCounter++
	}

	td := normalization.InferTradingDays(closes.Dates)
	years := math.Max(float64(n-startOffset)/float64(td), 0.01)
	return curve, turnover / years
}

// Custom fetches ticker over the portfolio dates from startOffset on,
// forward fills it onto those dates (back filling any leading gap) and
// normalizes it to start at 1. Turnover of a buy-and-hold reference is zero.
func Custom(ctx context.Context, fetcher BarFetcher, closes domain.PricePanel, startOffset int, ticker string) ([]domain.EquityPoint, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if startOffset < 0 {
		startOffset = 0
	}
	if startOffset >= closes.Len() {
		return nil, fmt.Errorf("benchmark %s: %w", ticker, ErrNoBenchmarkData)
	}
	dates := closes.Dates[startOffset:]

	bars, err := fetcher.FetchBars(ctx, ticker, dates[0], dates[len(dates)-1])
	if err != nil {
		return nil, fmt.Errorf("fetch benchmark %s: %w", ticker, err)
	}
	prices := reindex(bars, dates)
	if prices == nil || prices[0] <= 0 {
		return nil, fmt.Errorf("benchmark %s: %w", ticker, ErrNoBenchmarkData)
	}

	curve := make([]domain.EquityPoint, len(dates))
	for i, d := range dates {
		curve[i] = domain.EquityPoint{
			Date:  d.UnixMilli(),
			Value: metrics.Round(prices[i]/prices[0], 6),
		}
	}
	return curve, nil
}

// reindex maps bar closes onto dates as-of each date, then back fills the
// dates before the first bar. Returns nil when no bar has a valid close.
func reindex(bars []domain.PriceBar, dates []time.Time) []float64 {
	valid := make([]domain.PriceBar, 0, len(bars))
	for _, b := range bars {
		if b.Close > 0 && !math.IsNaN(b.Close) {
			valid = append(valid, b)
		}
	}
	if len(valid) == 0 {
		return nil
	}
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].Date.Before(valid[j].Date) })

	out := make([]float64, len(dates))
	k := -1
	for i, d := range dates {
		for k+1 < len(valid) && !valid[k+1].Date.After(d) {
			k++
		}
		if k < 0 {
			out[i] = valid[0].Close
			continue
		}
		out[i] = valid[k].Close
	}
	return out
}

// dailyReturn is the close-to-close return into row i; the first row and
// unusable prices count as zero.
func dailyReturn(p domain.PricePanel, i, j int) float64 {
	if i == 0 {
		return 0
	}
	prev, cur := p.Values[i-1][j], p.Values[i][j]
	if prev <= 0 || math.IsNaN(prev) || math.IsNaN(cur) {
		return 0
	}
	return cur/prev - 1
}

func sum(xs []float64) float64 {
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s
}
