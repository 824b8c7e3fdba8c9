// Package optimizer computes target portfolio weights from a window of
// daily returns: Hierarchical Risk Parity, Global Minimum Variance and
// Mean-Variance (max Sharpe), behind a dispatcher that never fails.
package optimizer

import (
	"context"

	"portfolio-lab/internal/domain"
)

// Input is one optimization problem.
type Input struct {
	Returns      domain.ReturnsMatrix // training window, columns in ticker order
	MinWeight    float64
	MaxWeight    float64
	RiskFreeRate float64 // annual, decimal
	TradingDays  int     // annualization factor, 252 when zero
}

// Allocator computes target weights for one method.
type Allocator interface {
	Optimize(ctx context.Context, in Input) (*domain.OptimizationResult, error)
}

// AllocatorFunc adapts a function to Allocator.
type AllocatorFunc func(ctx context.Context, in Input) (*domain.OptimizationResult, error)

// Optimize calls f.
func (f AllocatorFunc) Optimize(ctx context.Context, in Input) (*domain.OptimizationResult, error) {
	return f(ctx, in)
}

func weightsFromVector(tickers []string, v []float64) domain.Weights {
	w := make(domain.Weights, len(tickers))
	for i, t := range tickers {
		w[t] = v[i]
	}
	return w
}
