package optimizer

import (
	"context"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"portfolio-lab/internal/domain"
)

// MVO maximizes the Sharpe ratio of shrunk expected returns.
type MVO struct {
	log       zerolog.Logger
	shrinkage float64 // weight of the grand mean in expected returns
	gamma     float64 // L2 penalty on weights
}

// MVOOption overrides an MVO parameter.
type MVOOption func(*MVO)

// WithReturnShrinkage sets λ in shrunk = λ×grand_mean + (1−λ)×sample_mean.
// λ = 0 keeps the raw EMA means; values outside [0, 1] are clamped.
func WithReturnShrinkage(lambda float64) MVOOption {
	return func(m *MVO) { m.shrinkage = math.Max(0, math.Min(1, lambda)) }
}

// WithL2Gamma sets the weight penalty; 0 disables it, negatives are ignored.
func WithL2Gamma(gamma float64) MVOOption {
	return func(m *MVO) {
		if gamma >= 0 {
			m.gamma = gamma
		}
	}
}

// NewMVO creates an MVO allocator with λ = 0.5 and gamma = 0.1 unless overridden.
func NewMVO(log zerolog.Logger, opts ...MVOOption) *MVO {
	m := &MVO{
		log:       log.With().Str("component", "mvo").Logger(),
		shrinkage: domain.DefaultReturnShrinkage,
		gamma:     domain.DefaultL2Gamma,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Optimize returns all-zero (cash) weights without solving when the best
// expected return is below the risk-free rate. Otherwise it maximizes
// μ'w / sqrt(w'Σw) - gamma*||w||², with the Sharpe ratio measured
// against a zero rate.
func (m *MVO) Optimize(ctx context.Context, in Input) (*domain.OptimizationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tickers := in.Returns.Tickers
	if err := checkBounds(len(tickers), in.MinWeight, in.MaxWeight); err != nil {
		return nil, err
	}
	if err := requireObservations(in.Returns); err != nil {
		return nil, err
	}

	mu := ShrinkToGrandMean(EMAReturns(in.Returns, in.TradingDays), m.shrinkage)
	if best := floats.Max(mu); best < in.RiskFreeRate {
		m.log.Info().
			Float64("best_expected_return", best).
			Float64("risk_free_rate", in.RiskFreeRate).
			Msg("MVO expected returns below risk-free rate, going to cash")
		return &domain.OptimizationResult{Weights: domain.CashWeights(tickers)}, nil
	}

	cov, _, err := LedoitWolf(in.Returns, in.TradingDays)
	if err != nil {
		return nil, err
	}
	if err := checkQuality(cov); err != nil {
		return nil, err
	}

	w, err := minimizeOnBox(func(w []float64) float64 {
		vol := math.Sqrt(portfolioVariance(w, cov))
		if vol < 1e-12 {
			return 1e6
		}
		return -floats.Dot(mu, w)/vol + m.gamma*floats.Dot(w, w)
	}, len(tickers), in.MinWeight, in.MaxWeight)
	if err != nil {
		return nil, err
	}

	return &domain.OptimizationResult{Weights: weightsFromVector(tickers, w)}, nil
}
