package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() CompareRequest {
	r := DefaultCompareRequest()
	r.Tickers = []string{"spy", " tlt ", "gld"}
	return r
}

func TestCompareRequest_DefaultsAreValid(t *testing.T) {
	require.NoError(t, validRequest().Validate())
}

func TestCompareRequest_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *CompareRequest)
	}{
		{"one ticker", func(r *CompareRequest) { r.Tickers = []string{"SPY", "  "} }},
		{"training too short", func(r *CompareRequest) { r.TrainingWindow = 59 }},
		{"training too long", func(r *CompareRequest) { r.TrainingWindow = 1261 }},
		{"rebalance too short", func(r *CompareRequest) { r.RebalancingWindow = 4 }},
		{"rebalance too long", func(r *CompareRequest) { r.RebalancingWindow = 127 }},
		{"negative cost", func(r *CompareRequest) { r.TransactionCostBps = -1 }},
		{"cost too high", func(r *CompareRequest) { r.TransactionCostBps = 101 }},
		{"min above half", func(r *CompareRequest) { r.MinWeight = 0.51 }},
		{"max too small", func(r *CompareRequest) { r.MaxWeight = 0.05 }},
		{"min above max", func(r *CompareRequest) { r.MinWeight = 0.4; r.MaxWeight = 0.3 }},
		{"target vol too low", func(r *CompareRequest) { r.TargetVolatility = 0.01 }},
		{"custom without ticker", func(r *CompareRequest) { r.BenchmarkType = BenchmarkCustom }},
		{"unknown benchmark", func(r *CompareRequest) { r.BenchmarkType = "spx" }},
		{"infeasible min for 3 assets", func(r *CompareRequest) { r.MinWeight = 0.4 }},
		{"infeasible max for 3 assets", func(r *CompareRequest) { r.MaxWeight = 0.3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRequest()
			tt.mutate(&r)
			err := r.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInput), "expected ErrInput, got %v", err)
		})
	}
}

func TestCompareRequest_NormalizedTickers(t *testing.T) {
	assert.Equal(t, []string{"SPY", "TLT", "GLD"}, validRequest().NormalizedTickers())
}

func TestWeights_SumAndCash(t *testing.T) {
	w := EqualWeights([]string{"A", "B", "C", "D"})
	assert.InDelta(t, 1.0, w.Sum(), 1e-12)
	assert.False(t, w.IsCash())
	assert.True(t, CashWeights([]string{"A", "B"}).IsCash())
	assert.Equal(t, []float64{0.25, 0, 0.25}, w.Vector([]string{"A", "Z", "B"}))
}

func TestJobUpdate_ApplyKeepsUnsetFields(t *testing.T) {
	j := &Job{Status: JobProcessing, Error: "old"}
	JobUpdate{Progress: 40, Message: "half"}.Apply(j, j.CreatedAt)
	assert.Equal(t, JobProcessing, j.Status)
	assert.Equal(t, "old", j.Error)
	assert.Equal(t, 40, j.Progress)
	assert.True(t, JobCompleted.Terminal())
	assert.False(t, JobQueued.Terminal())
}
