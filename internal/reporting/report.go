package reporting

import "time"

// Report is the printable summary of one comparison.
type Report struct {
	// Metadata
	GeneratedAt  time.Time
	RunID        string
	Tickers      []string
	DataStart    string
	DataEnd      string
	RiskFreeRate float64

	// Methods in ranked order, benchmark last
	Metrics []MetricRow

	// Latest target weights per method
	Allocations []AllocationRow

	// Rebalances where an optimizer fell back, per method
	Fallbacks []FallbackRow

	// In-sample vs realized Sharpe, averaged per method
	Overfitting []OverfittingRow

	TickerStartDates map[string]string
	LimitingTicker   string
	Warnings         []string
}

// MetricRow is one line of the performance table.
type MetricRow struct {
	Name          string
	Benchmark     bool
	TotalReturn   float64
	CAGR          float64
	Volatility    float64
	Sharpe        float64
	Sortino       float64
	Calmar        float64
	MaxDrawdown   float64
	Turnover      float64
	Costs         float64
	NumRebalances int
	Alpha         float64
	Beta          float64
}

// AllocationRow is one method's weight for one ticker.
type AllocationRow struct {
	Method           string
	Ticker           string
	Weight           float64
	RiskContribution float64
}

// FallbackRow counts fallback rebalances of one method.
type FallbackRow struct {
	Method     string
	Rebalances int
	Fallbacks  int
	LastReason string
}

// OverfittingRow summarizes the in-sample/out-of-sample Sharpe gap.
type OverfittingRow struct {
	Method          string
	Periods         int
	MeanInSample    float64
	MeanOutOfSample float64
}
