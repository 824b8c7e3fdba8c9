package optimizer

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-lab/internal/domain"
)

func TestHRP_BasicOptimization(t *testing.T) {
	tickers := []string{"A", "B", "C", "D"}
	r := syntheticReturns(7, 252, tickers, []float64{0.10, 0.15, 0.20, 0.30}, []float64{0.05, 0.05, 0.05, 0.05})

	res, err := NewHRP(zerolog.Nop()).Optimize(context.Background(), Input{Returns: r, MaxWeight: 1})
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.False(t, res.FallbackUsed)
	assert.InDelta(t, 1.0, sumWeights(res.Weights), 1e-9, "weights should sum to 1")
	for _, tk := range tickers {
		assert.GreaterOrEqual(t, res.Weights[tk], 0.0)
	}
	assert.Greater(t, res.Weights["A"], res.Weights["D"], "lower variance should get more weight")

	require.NotNil(t, res.Dendrogram)
	assert.Len(t, res.Dendrogram.IVL, 4)
	assert.Len(t, res.Dendrogram.Leaves, 4)
	assert.Len(t, res.Dendrogram.ICoord, 3)
	assert.Len(t, res.Dendrogram.DCoord, 3)
}

func TestHRP_TwoAssetsIsInverseVariance(t *testing.T) {
	r := syntheticReturns(11, 300, []string{"A", "B"}, []float64{0.1, 0.2}, []float64{0, 0})

	res, err := NewHRP(zerolog.Nop()).Optimize(context.Background(), Input{Returns: r})
	require.NoError(t, err)

	cov, err := SampleCovariance(r)
	require.NoError(t, err)
	va, vb := cov.At(0, 0), cov.At(1, 1)
	assert.InDelta(t, vb/(va+vb), res.Weights["A"], 1e-9)
	assert.InDelta(t, va/(va+vb), res.Weights["B"], 1e-9)
}

func TestHRP_ZeroVarianceAssetGetsNoWeight(t *testing.T) {
	r := syntheticReturns(5, 252, []string{"A", "B", "FLAT"}, []float64{0.1, 0.2, 0}, []float64{0, 0, 0})

	res, err := NewHRP(zerolog.Nop()).Optimize(context.Background(), Input{Returns: r})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sumWeights(res.Weights), 1e-9)
	assert.Less(t, res.Weights["FLAT"], 1e-6)
}

func TestHRP_Deterministic(t *testing.T) {
	r := syntheticReturns(9, 200, []string{"A", "B", "C"}, []float64{0.1, 0.2, 0.3}, []float64{0, 0, 0})
	h := NewHRP(zerolog.Nop())

	first, err := h.Optimize(context.Background(), Input{Returns: r})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := h.Optimize(context.Background(), Input{Returns: r})
		require.NoError(t, err)
		assert.Equal(t, first.Weights, again.Weights)
		assert.Equal(t, first.Dendrogram, again.Dendrogram)
	}
}

func TestHRP_TooFewRowsFallsBackToEqualWeight(t *testing.T) {
	r := syntheticReturns(1, 1, []string{"A", "B"}, []float64{0.1, 0.2}, []float64{0, 0})

	res, err := NewHRP(zerolog.Nop()).Optimize(context.Background(), Input{Returns: r})
	require.NoError(t, err)
	assert.Equal(t, domain.EqualWeights([]string{"A", "B"}), res.Weights)
	assert.Nil(t, res.Dendrogram)
	assert.True(t, res.FallbackUsed)
	assert.True(t, strings.HasPrefix(res.FallbackReason, "HRP numerical failure: "), res.FallbackReason)
	assert.True(t, strings.HasSuffix(res.FallbackReason, " -> Equal Weight"), res.FallbackReason)
}
