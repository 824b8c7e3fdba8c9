// Package marketdata loads daily price bars and risk-free rates from Tiingo,
// CSV files or the bar store, and conditions them into engine panels.
package marketdata

import (
	"context"
	"errors"
	"time"

	"portfolio-lab/internal/domain"
)

// ErrNoData is returned when a source has no usable bars for a ticker.
var ErrNoData = errors.New("no data")

// BarSource provides raw daily bars for one ticker.
type BarSource interface {
	// FetchBars returns bars for ticker within [start, end] (inclusive).
	// Bars may be unordered; Provider enforces deterministic ordering.
	FetchBars(ctx context.Context, ticker string, start, end time.Time) ([]domain.PriceBar, error)
}

// BarSourceFunc adapts a function to BarSource.
type BarSourceFunc func(ctx context.Context, ticker string, start, end time.Time) ([]domain.PriceBar, error)

// FetchBars calls f.
func (f BarSourceFunc) FetchBars(ctx context.Context, ticker string, start, end time.Time) ([]domain.PriceBar, error) {
	return f(ctx, ticker, start, end)
}
