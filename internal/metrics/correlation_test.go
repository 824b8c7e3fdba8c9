package metrics

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-lab/internal/domain"
)

// panelFromReturns builds a price panel starting at 100 for every ticker.
func panelFromReturns(tickers []string, rets [][]float64) domain.PricePanel {
	p := domain.PricePanel{Tickers: tickers}
	row := make([]float64, len(tickers))
	for j := range row {
		row[j] = 100
	}
	p.Dates = append(p.Dates, day0)
	p.Values = append(p.Values, append([]float64(nil), row...))
	for i, r := range rets {
		next := make([]float64, len(tickers))
		for j := range next {
			next[j] = row[j] * (1 + r[j])
		}
		row = next
		p.Dates = append(p.Dates, day0.AddDate(0, 0, i+1))
		p.Values = append(p.Values, next)
	}
	return p
}

func TestCorrelationMatrix_ClustersCorrelatedTickers(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	rets := make([][]float64, 120)
	for i := range rets {
		a := 0.01 * rng.NormFloat64()
		b := 0.01 * rng.NormFloat64()
		// AAA and CCC move together, BBB is independent.
		rets[i] = []float64{a, b, a + 0.001*rng.NormFloat64()}
	}

	cm := CorrelationMatrix(panelFromReturns([]string{"AAA", "BBB", "CCC"}, rets))

	require.Len(t, cm.Tickers, 3)
	require.Len(t, cm.Matrix, 3)
	pos := map[string]int{}
	for i, tk := range cm.Tickers {
		pos[tk] = i
	}
	gap := pos["AAA"] - pos["CCC"]
	assert.True(t, gap == 1 || gap == -1, "correlated tickers should be adjacent: %v", cm.Tickers)

	for i := range cm.Matrix {
		assert.Equal(t, 1.0, cm.Matrix[i][i])
		for j := range cm.Matrix {
			assert.Equal(t, cm.Matrix[i][j], cm.Matrix[j][i])
		}
	}
	assert.Greater(t, cm.Matrix[pos["AAA"]][pos["CCC"]], 0.9)
}

func TestCorrelationMatrix_TooFewReturns(t *testing.T) {
	rets := make([][]float64, 5)
	for i := range rets {
		rets[i] = []float64{0.01, -0.01}
	}

	cm := CorrelationMatrix(panelFromReturns([]string{"AAA", "BBB"}, rets))

	assert.Equal(t, []string{"AAA", "BBB"}, cm.Tickers)
	assert.Empty(t, cm.Matrix)
}

func TestCorrelationMatrix_SingleTicker(t *testing.T) {
	rets := make([][]float64, 20)
	for i := range rets {
		rets[i] = []float64{0.001 * float64(i%3)}
	}

	cm := CorrelationMatrix(panelFromReturns([]string{"AAA"}, rets))

	assert.Equal(t, [][]float64{{1}}, cm.Matrix)
}

func TestCorrelationMatrix_ZeroVarianceIsUncorrelated(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	rets := make([][]float64, 30)
	for i := range rets {
		rets[i] = []float64{0.01 * rng.NormFloat64(), 0}
	}

	cm := CorrelationMatrix(panelFromReturns([]string{"AAA", "CASH"}, rets))

	require.Len(t, cm.Matrix, 2)
	assert.Equal(t, 0.0, cm.Matrix[0][1])
	assert.Equal(t, 1.0, cm.Matrix[1][1])
}

func TestRiskContributions(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	r := domain.ReturnsMatrix{Tickers: []string{"LOW", "HIGH"}}
	for i := 0; i < 250; i++ {
		r.Values = append(r.Values, []float64{0.005 * rng.NormFloat64(), 0.02 * rng.NormFloat64()})
	}

	rc := RiskContributions(domain.Weights{"LOW": 0.5, "HIGH": 0.5}, r)

	assert.InDelta(t, 1.0, rc["LOW"]+rc["HIGH"], 1e-3)
	assert.Greater(t, rc["HIGH"], rc["LOW"])
}

func TestRiskContributions_CashIsZero(t *testing.T) {
	r := domain.ReturnsMatrix{
		Tickers: []string{"AAA", "BBB"},
		Values:  [][]float64{{0.01, 0.02}, {-0.01, 0.0}, {0.02, -0.01}},
	}

	rc := RiskContributions(domain.CashWeights(r.Tickers), r)

	assert.Equal(t, map[string]float64{"AAA": 0, "BBB": 0}, rc)
}
