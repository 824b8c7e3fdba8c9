package optimizer

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"portfolio-lab/internal/domain"
)

func TestLedoitWolf_ShrinkageAndAnnualization(t *testing.T) {
	r := syntheticReturns(1, 252, []string{"A", "B", "C"}, []float64{0.1, 0.2, 0.3}, []float64{0, 0, 0})

	cov, shrinkage, err := LedoitWolf(r, 252)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, shrinkage, 0.0)
	assert.LessOrEqual(t, shrinkage, 1.0)
	assert.InDelta(t, 0.01, cov.At(0, 0), 0.005, "annual variance of a 10%% vol asset")
	assert.Greater(t, cov.At(2, 2), cov.At(0, 0))
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.InDelta(t, cov.At(i, j), cov.At(j, i), 1e-15)
		}
	}
}

func TestLedoitWolf_SingleAsset(t *testing.T) {
	r := syntheticReturns(2, 100, []string{"A"}, []float64{0.2}, []float64{0})
	cov, shrinkage, err := LedoitWolf(r, 252)
	require.NoError(t, err)
	assert.Equal(t, 0.0, shrinkage)
	assert.Greater(t, cov.At(0, 0), 0.0)
}

func TestLedoitWolf_TooFewObservations(t *testing.T) {
	r := syntheticReturns(3, 1, []string{"A", "B"}, []float64{0.1, 0.1}, []float64{0, 0})
	_, _, err := LedoitWolf(r, 252)
	assert.True(t, errors.Is(err, domain.ErrInput))
}

func TestCheckQuality(t *testing.T) {
	good := mat.NewSymDense(2, []float64{0.04, 0.01, 0.01, 0.09})
	assert.NoError(t, checkQuality(good))

	singular := mat.NewSymDense(2, []float64{1, 1, 1, 1})
	assert.True(t, errors.Is(checkQuality(singular), ErrIllConditioned))

	illConditioned := mat.NewSymDense(2, []float64{1, 0, 0, 1e-4})
	assert.True(t, errors.Is(checkQuality(illConditioned), ErrIllConditioned))
}

func TestEMAReturns_ConstantSeries(t *testing.T) {
	r := domain.ReturnsMatrix{Tickers: []string{"A", "B"}}
	for i := 0; i < 50; i++ {
		r.Values = append(r.Values, []float64{0.001, -0.001})
	}

	mu := EMAReturns(r, 252)
	assert.InDelta(t, math.Pow(1.001, 252)-1, mu[0], 1e-12)
	assert.InDelta(t, math.Pow(0.999, 252)-1, mu[1], 1e-12)
}

func TestEMAReturns_WeightsRecentObservations(t *testing.T) {
	r := domain.ReturnsMatrix{Tickers: []string{"A"}}
	for i := 0; i < 20; i++ {
		v := 0.0
		if i >= 10 {
			v = 0.01
		}
		r.Values = append(r.Values, []float64{v})
	}
	mu := EMAReturns(r, 1)
	assert.Greater(t, mu[0], 0.005, "recent half should dominate the mean")
}

func TestShrinkToGrandMean(t *testing.T) {
	got := ShrinkToGrandMean([]float64{0.1, 0.3}, 0.5)
	assert.InDelta(t, 0.15, got[0], 1e-12)
	assert.InDelta(t, 0.25, got[1], 1e-12)
}

func TestMeanHistoricalReturns(t *testing.T) {
	r := domain.ReturnsMatrix{Tickers: []string{"A"}}
	for i := 0; i < 252; i++ {
		r.Values = append(r.Values, []float64{0.0004})
	}
	mu := MeanHistoricalReturns(r, 252)
	assert.InDelta(t, math.Pow(1.0004, 252)-1, mu[0], 1e-12)
}
