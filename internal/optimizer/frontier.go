package optimizer

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"portfolio-lab/internal/domain"
	"portfolio-lab/internal/metrics"
)

// targetPenalty weighs the squared miss of a frontier point's target return.
const targetPenalty = 1e4

// Frontier computes risk/return points for visualization: each asset,
// domain.MonteCarloSimulations random long-only portfolios (fixed seed)
// and the efficient curve of domain.FrontierPoints minimum-variance
// portfolios between the GMV return and the highest reachable return.
// Returns use compounded historical means; covariance is Ledoit-Wolf shrunk.
// All values are rounded to 4 decimals.
func Frontier(ctx context.Context, in Input) (*domain.EfficientFrontier, error) {
	tickers := in.Returns.Tickers
	mu := MeanHistoricalReturns(in.Returns, in.TradingDays)
	cov, _, err := LedoitWolf(in.Returns, in.TradingDays)
	if err != nil {
		return nil, err
	}
	n := len(tickers)

	out := &domain.EfficientFrontier{
		Assets:      make([]domain.AssetPoint, n),
		Simulations: make([]domain.RiskReturnPoint, 0, domain.MonteCarloSimulations),
		Curve:       []domain.RiskReturnPoint{},
	}
	for i, t := range tickers {
		out.Assets[i] = domain.AssetPoint{
			Ticker:     t,
			Return:     metrics.Round(mu[i], 4),
			Volatility: metrics.Round(math.Sqrt(cov.At(i, i)), 4),
		}
	}

	rng := rand.New(rand.NewSource(domain.MonteCarloSeed))
	w := make([]float64, n)
	for k := 0; k < domain.MonteCarloSimulations; k++ {
		for i := range w {
			w[i] = rng.Float64()
		}
		floats.Scale(1/floats.Sum(w), w)
		out.Simulations = append(out.Simulations, point(w, mu, cov))
	}

	curve, err := efficientCurve(ctx, mu, cov, in.MinWeight, in.MaxWeight)
	if err != nil {
		return nil, err
	}
	out.Curve = curve
	return out, nil
}

func efficientCurve(ctx context.Context, mu []float64, cov *mat.SymDense, lo, hi float64) ([]domain.RiskReturnPoint, error) {
	n := len(mu)
	if checkBounds(n, lo, hi) != nil {
		return []domain.RiskReturnPoint{}, nil
	}

	gmv, err := minimizeOnBox(func(w []float64) float64 {
		return portfolioVariance(w, cov)
	}, n, lo, hi)
	if err != nil {
		return []domain.RiskReturnPoint{}, nil
	}
	from := floats.Dot(mu, gmv)
	to := maxReachableReturn(mu, lo, hi)

	curve := make([]domain.RiskReturnPoint, 0, domain.FrontierPoints)
	for k := 0; k < domain.FrontierPoints; k++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		target := from
		if domain.FrontierPoints > 1 {
			target = from + (to-from)*float64(k)/float64(domain.FrontierPoints-1)
		}
		w, err := minimizeOnBox(func(w []float64) float64 {
			miss := floats.Dot(mu, w) - target
			return portfolioVariance(w, cov) + targetPenalty*miss*miss
		}, n, lo, hi)
		if err != nil {
			continue
		}
		p := point(w, mu, cov)
		if p.Volatility > 0 {
			curve = append(curve, p)
		}
	}

	sort.SliceStable(curve, func(i, j int) bool {
		return curve[i].Volatility < curve[j].Volatility
	})
	return curve, nil
}

// maxReachableReturn fills the highest-return assets up to hi, starting
// from every asset at lo.
func maxReachableReturn(mu []float64, lo, hi float64) float64 {
	idx := make([]int, len(mu))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return mu[idx[a]] > mu[idx[b]] })

	remaining := 1 - lo*float64(len(mu))
	ret := 0.0
	for _, i := range idx {
		add := math.Min(hi-lo, math.Max(0, remaining))
		remaining -= add
		ret += mu[i] * (lo + add)
	}
	return ret
}

func point(w, mu []float64, cov mat.Symmetric) domain.RiskReturnPoint {
	return domain.RiskReturnPoint{
		Return:     metrics.Round(floats.Dot(mu, w), 4),
		Volatility: metrics.Round(math.Sqrt(math.Max(0, portfolioVariance(w, cov))), 4),
	}
}
