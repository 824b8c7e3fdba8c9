package optimizer

import (
	"context"

	"github.com/rs/zerolog"

	"portfolio-lab/internal/domain"
)

// GMV finds the Global Minimum Variance portfolio under box constraints.
type GMV struct {
	log zerolog.Logger
}

// NewGMV creates a GMV allocator.
func NewGMV(log zerolog.Logger) *GMV {
	return &GMV{log: log.With().Str("component", "gmv").Logger()}
}

// Optimize minimizes w'Σw with Σ the Ledoit-Wolf shrunk annual covariance.
func (g *GMV) Optimize(ctx context.Context, in Input) (*domain.OptimizationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tickers := in.Returns.Tickers
	if err := checkBounds(len(tickers), in.MinWeight, in.MaxWeight); err != nil {
		return nil, err
	}

	cov, shrinkage, err := LedoitWolf(in.Returns, in.TradingDays)
	if err != nil {
		return nil, err
	}
	if err := checkQuality(cov); err != nil {
		return nil, err
	}

	w, err := minimizeOnBox(func(w []float64) float64 {
		return portfolioVariance(w, cov)
	}, len(tickers), in.MinWeight, in.MaxWeight)
	if err != nil {
		return nil, err
	}

	g.log.Debug().
		Float64("shrinkage", shrinkage).
		Float64("variance", portfolioVariance(w, cov)).
		Msg("GMV solved")

	return &domain.OptimizationResult{Weights: weightsFromVector(tickers, w)}, nil
}
