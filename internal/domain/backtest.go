package domain

// BacktestParams configures one walk-forward run.
type BacktestParams struct {
	Close PricePanel
	Open  PricePanel

	Method             Method
	TrainingWindow     int
	RebalancingWindow  int
	TransactionCostBps float64
	MinWeight          float64
	MaxWeight          float64
	RiskFree           RateInput

	// Overlays
	SmoothingFactor         float64 // 0 disables smoothing
	EnableVolatilityScaling bool
	TargetVolatility        float64
	VolatilityLookback      int
}

// DefaultBacktestParams returns params with the default windows and overlays.
// Close, Open and Method must still be set.
func DefaultBacktestParams() BacktestParams {
	return BacktestParams{
		TrainingWindow:     DefaultTrainingWindow,
		RebalancingWindow:  DefaultRebalancingWindow,
		TransactionCostBps: DefaultTransactionCostBps,
		MinWeight:          0,
		MaxWeight:          1,
		RiskFree:           ConstantRate(DefaultRiskFreeRate),
		SmoothingFactor:    DefaultTurnoverSmoothing,
		TargetVolatility:   DefaultTargetVolatility,
		VolatilityLookback: DefaultVolatilityLookback,
	}
}

// EquityPoint is one simulated day of portfolio value.
type EquityPoint struct {
	Date  int64   `json:"date"` // Unix milliseconds
	Value float64 `json:"value"`
}

// AllocationRecord is the decision taken at one rebalance date.
// Records are append-only history.
type AllocationRecord struct {
	Date           string             `json:"date"` // YYYY-MM-DD decision date
	Weights        map[string]float64 `json:"weights"`
	Fallback       bool               `json:"fallback,omitempty"`
	FallbackReason string             `json:"fallback_reason,omitempty"`
}

// OverfittingMetric compares the in-sample Sharpe expected at a rebalance
// with the Sharpe realized over the following holding period.
type OverfittingMetric struct {
	Date            string  `json:"date"`
	PredictedSharpe float64 `json:"predicted_sharpe"`
	RealizedSharpe  float64 `json:"realized_sharpe"`
}

// BacktestResult is the terminal output of the walk-forward engine.
type BacktestResult struct {
	EquityCurve       []EquityPoint       `json:"equity_curve"`
	BenchmarkCurve    []EquityPoint       `json:"benchmark_curve"`
	AllocationHistory []AllocationRecord  `json:"allocation_history"`
	RebalanceDates    []string            `json:"rebalance_dates"`
	FinalWeights      Weights             `json:"final_weights"`
	TotalCosts        float64             `json:"total_costs"`
	TotalTurnover     float64             `json:"total_turnover"`
	Overfitting       []OverfittingMetric `json:"overfitting_metrics"`
	RiskContributions map[string]float64  `json:"risk_contributions"`
	BenchmarkTurnover float64             `json:"benchmark_turnover"`
	Dendrogram        *Dendrogram         `json:"dendrogram,omitempty"`
	LastFallback      bool                `json:"last_fallback"`
	LastFallbackNote  string              `json:"last_fallback_reason,omitempty"`
	TradingDays       int                 `json:"trading_days"`
}
