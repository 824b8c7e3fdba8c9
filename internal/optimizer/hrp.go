package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/gammazero/deque"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"portfolio-lab/internal/cluster"
	"portfolio-lab/internal/domain"
)

// HRP allocates by Hierarchical Risk Parity. Weight bounds are ignored.
type HRP struct {
	log zerolog.Logger
}

// NewHRP creates an HRP allocator.
func NewHRP(log zerolog.Logger) *HRP {
	return &HRP{log: log.With().Str("component", "hrp").Logger()}
}

// Optimize clusters assets by correlation distance (Ward linkage), orders
// them by the tree's leaves and splits weight by recursive bisection.
// Numerical failures are logged and answered with flagged equal weights
// and no dendrogram.
func (h *HRP) Optimize(_ context.Context, in Input) (*domain.OptimizationResult, error) {
	tickers := in.Returns.Tickers
	if len(tickers) == 0 {
		return nil, fmt.Errorf("%w: no assets", domain.ErrInput)
	}

	w, tree, err := hrpWeights(in.Returns)
	if err != nil {
		h.log.Warn().Err(err).Int("assets", len(tickers)).Msg("HRP numerical failure, using equal weights")
		return &domain.OptimizationResult{
			Weights:        domain.EqualWeights(tickers),
			FallbackUsed:   true,
			FallbackReason: fmt.Sprintf("HRP numerical failure: %v -> Equal Weight", err),
		}, nil
	}

	return &domain.OptimizationResult{
		Weights:    weightsFromVector(tickers, w),
		Dendrogram: tree,
	}, nil
}

var errDegenerateWeights = errors.New("bisection produced no usable weights")

func hrpWeights(r domain.ReturnsMatrix) ([]float64, *domain.Dendrogram, error) {
	n := r.NumAssets()
	if n == 1 {
		return []float64{1}, &domain.Dendrogram{IVL: []string{r.Tickers[0]}, Leaves: []int{0}}, nil
	}

	cov, err := SampleCovariance(r)
	if err != nil {
		return nil, nil, err
	}
	corr := correlationFromCovariance(cov)

	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		for j := range dist[i] {
			if i != j {
				dist[i][j] = math.Sqrt(0.5 * (1 - corr[i][j]))
			}
		}
	}

	merges, err := cluster.Linkage(dist, cluster.Ward)
	if err != nil {
		return nil, nil, fmt.Errorf("linkage: %w", err)
	}
	order := cluster.Leaves(merges, n)

	w := bisect(cov, order)
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil, nil, errDegenerateWeights
	}
	for i := range w {
		w[i] /= sum
	}

	tree := cluster.Dendrogram(merges, r.Tickers)
	return w, &domain.Dendrogram{
		ICoord: tree.ICoord,
		DCoord: tree.DCoord,
		IVL:    tree.IVL,
		Leaves: tree.Leaves,
	}, nil
}

// bisect runs recursive bisection over the quasi-diagonal order.
// Spans are processed breadth first from a queue.
func bisect(cov *mat.SymDense, order []int) []float64 {
	w := make([]float64, len(order))
	for i := range w {
		w[i] = 1
	}

	var spans deque.Deque[[]int]
	spans.PushBack(order)
	for spans.Len() > 0 {
		items := spans.PopFront()
		if len(items) < 2 {
			continue
		}
		mid := len(items) / 2
		left, right := items[:mid], items[mid:]

		v0 := clusterVariance(cov, left)
		v1 := clusterVariance(cov, right)
		alpha := 0.5
		if den := v0 + v1; den > 1e-300 && !math.IsInf(den, 0) {
			alpha = 1 - v0/den
		}
		alpha = math.Max(0, math.Min(1, alpha))

		for _, i := range left {
			w[i] *= alpha
		}
		for _, i := range right {
			w[i] *= 1 - alpha
		}
		spans.PushBack(left)
		spans.PushBack(right)
	}
	return w
}

// clusterVariance is the variance of the inverse-variance portfolio over
// items. Zero or invalid variances yield largeVariance.
func clusterVariance(cov *mat.SymDense, items []int) float64 {
	ivp := make([]float64, len(items))
	sum := 0.0
	for k, i := range items {
		v := cov.At(i, i)
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return largeVariance
		}
		ivp[k] = 1 / v
		sum += ivp[k]
	}
	for k := range ivp {
		ivp[k] /= sum
	}

	variance := 0.0
	for a, i := range items {
		for b, j := range items {
			variance += ivp[a] * ivp[b] * cov.At(i, j)
		}
	}
	if variance <= 0 || math.IsNaN(variance) {
		return largeVariance
	}
	return variance
}
