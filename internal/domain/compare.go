package domain

import (
	"fmt"
	"strings"
)

// Benchmark types.
const (
	BenchmarkEqualWeight = "equal_weight"
	BenchmarkCustom      = "custom"
)

// CompareRequest asks for all methods to be backtested on one ticker set.
type CompareRequest struct {
	Tickers                 []string `json:"tickers"`
	StartDate               string   `json:"start_date,omitempty"` // YYYY-MM-DD, empty = provider default
	EndDate                 string   `json:"end_date,omitempty"`
	TrainingWindow          int      `json:"training_window"`
	RebalancingWindow       int      `json:"rebalancing_window"`
	TransactionCostBps      float64  `json:"transaction_cost_bps"`
	MinWeight               float64  `json:"min_weight"`
	MaxWeight               float64  `json:"max_weight"`
	BenchmarkType           string   `json:"benchmark_type"`
	BenchmarkTicker         string   `json:"benchmark_ticker,omitempty"`
	EnableVolatilityScaling bool     `json:"enable_volatility_scaling"`
	TargetVolatility        float64  `json:"target_volatility"`
}

// DefaultCompareRequest returns a request with every optional field at its
// default. Decoding JSON onto it keeps defaults for omitted fields.
func DefaultCompareRequest() CompareRequest {
	return CompareRequest{
		TrainingWindow:     DefaultTrainingWindow,
		RebalancingWindow:  DefaultRebalancingWindow,
		TransactionCostBps: DefaultTransactionCostBps,
		MinWeight:          0,
		MaxWeight:          1,
		BenchmarkType:      BenchmarkEqualWeight,
		TargetVolatility:   DefaultTargetVolatility,
	}
}

// NormalizedTickers returns trimmed, upper-cased tickers with blanks removed.
func (r CompareRequest) NormalizedTickers() []string {
	out := make([]string, 0, len(r.Tickers))
	for _, t := range r.Tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Validate checks request ranges. Errors wrap ErrInput.
func (r CompareRequest) Validate() error {
	if len(r.NormalizedTickers()) < MinAssetsForDiversification {
		return fmt.Errorf("%w: at least %d tickers required", ErrInput, MinAssetsForDiversification)
	}
	if r.TrainingWindow < MinTrainingWindow || r.TrainingWindow > MaxTrainingWindow {
		return fmt.Errorf("%w: training_window must be in [%d, %d], got %d",
			ErrInput, MinTrainingWindow, MaxTrainingWindow, r.TrainingWindow)
	}
	if r.RebalancingWindow < MinRebalancingWindow || r.RebalancingWindow > MaxRebalancingWindow {
		return fmt.Errorf("%w: rebalancing_window must be in [%d, %d], got %d",
			ErrInput, MinRebalancingWindow, MaxRebalancingWindow, r.RebalancingWindow)
	}
	if r.TransactionCostBps < 0 || r.TransactionCostBps > MaxTransactionCost {
		return fmt.Errorf("%w: transaction_cost_bps must be in [0, %.0f], got %g",
			ErrInput, MaxTransactionCost, r.TransactionCostBps)
	}
	if r.MinWeight < 0 || r.MinWeight > MaxMinWeight {
		return fmt.Errorf("%w: min_weight > 50%% is infeasible for 2+ assets", ErrInput)
	}
	if r.MaxWeight < MinMaxWeight || r.MaxWeight > 1 {
		return fmt.Errorf("%w: max_weight must be in [%.1f, 1], got %g", ErrInput, MinMaxWeight, r.MaxWeight)
	}
	if r.MinWeight > r.MaxWeight {
		return fmt.Errorf("%w: min_weight cannot exceed max_weight", ErrInput)
	}
	if r.TargetVolatility < MinTargetVolatility || r.TargetVolatility > MaxTargetVolatility {
		return fmt.Errorf("%w: target_volatility must be in [%.2f, %.2f], got %g",
			ErrInput, MinTargetVolatility, MaxTargetVolatility, r.TargetVolatility)
	}
	switch r.BenchmarkType {
	case BenchmarkEqualWeight, "":
	case BenchmarkCustom:
		if strings.TrimSpace(r.BenchmarkTicker) == "" {
			return fmt.Errorf("%w: custom benchmark requires benchmark_ticker", ErrInput)
		}
	default:
		return fmt.Errorf("%w: unknown benchmark_type %q", ErrInput, r.BenchmarkType)
	}
	return ValidateBounds(len(r.NormalizedTickers()), r.MinWeight, r.MaxWeight)
}

// ValidateBounds rejects box constraints that no fully invested portfolio of
// n assets can satisfy.
func ValidateBounds(n int, minWeight, maxWeight float64) error {
	if n <= 0 {
		return fmt.Errorf("%w: no assets", ErrInput)
	}
	if float64(n)*minWeight > 1+1e-9 {
		return fmt.Errorf("%w: %d assets x min_weight %.2f exceeds 100%%", ErrInput, n, minWeight)
	}
	if float64(n)*maxWeight < 1-1e-9 {
		return fmt.Errorf("%w: %d assets x max_weight %.2f cannot reach 100%%", ErrInput, n, maxWeight)
	}
	return nil
}

// CurrentAllocation is the latest target allocation of a method.
type CurrentAllocation struct {
	Date              string             `json:"date"`
	Weights           Weights            `json:"weights"`
	RiskContributions map[string]float64 `json:"risk_contributions"`
	Method            Method             `json:"method"`
	FallbackUsed      bool               `json:"fallback_used"`
	FallbackReason    string             `json:"fallback_reason,omitempty"`
	Dendrogram        *Dendrogram        `json:"dendrogram_data,omitempty"`
}

// MethodResult is one method's scored backtest.
type MethodResult struct {
	Method             Method              `json:"method"`
	MethodName         string              `json:"method_name"`
	EquityCurve        []EquityPoint       `json:"equity_curve"`
	DrawdownCurve      []DrawdownPoint     `json:"drawdown_curve"`
	PerformanceMetrics PerformanceMetrics  `json:"performance_metrics"`
	CurrentAllocation  CurrentAllocation   `json:"current_allocation"`
	AllocationHistory  []AllocationRecord  `json:"allocation_history"`
	OverfittingMetrics []OverfittingMetric `json:"overfitting_metrics"`
	MethodParams       MethodParams        `json:"method_params"`
}

// CompareResponse is the final report of a comparison job.
type CompareResponse struct {
	RunID             string             `json:"run_id"`
	Methods           []MethodResult     `json:"methods"`
	BenchmarkCurve    []EquityPoint      `json:"benchmark_curve"`
	BenchmarkMetrics  PerformanceMetrics `json:"benchmark_metrics"`
	BenchmarkName     string             `json:"benchmark_name"`
	Tickers           []string           `json:"tickers"`
	RiskFreeRate      float64            `json:"risk_free_rate"`
	DataStartDate     string             `json:"data_start_date"`
	DataEndDate       string             `json:"data_end_date"`
	TickerStartDates  map[string]string  `json:"ticker_start_dates"`
	LimitingTicker    string             `json:"limiting_ticker,omitempty"`
	CorrelationMatrix *CorrelationMatrix `json:"correlation_matrix,omitempty"`
	EfficientFrontier *EfficientFrontier `json:"efficient_frontier_data,omitempty"`
	Warnings          []string           `json:"warnings"`
}
