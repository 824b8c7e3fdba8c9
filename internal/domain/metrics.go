package domain

// PerformanceMetrics is the immutable report computed once per completed curve.
// Every value is finite; NaN and Inf are replaced with 0 before construction.
type PerformanceMetrics struct {
	SharpeRatio           float64 `json:"sharpe_ratio"`
	SortinoRatio          float64 `json:"sortino_ratio"`
	MaxDrawdown           float64 `json:"max_drawdown"`
	CAGR                  float64 `json:"cagr"`
	TotalReturn           float64 `json:"total_return"`
	Volatility            float64 `json:"volatility"`
	CalmarRatio           float64 `json:"calmar_ratio"`
	TotalTransactionCosts float64 `json:"total_transaction_costs"`
	NumRebalances         int     `json:"num_rebalances"`
	Skewness              float64 `json:"skewness"`
	Kurtosis              float64 `json:"kurtosis"`
	WinRate               float64 `json:"win_rate"`
	AvgWin                float64 `json:"avg_win"`
	AvgLoss               float64 `json:"avg_loss"`
	MaxGain               float64 `json:"max_gain"`
	MaxLoss               float64 `json:"max_loss"`
	OmegaRatio            float64 `json:"omega_ratio"`
	AnnualizedTurnover    float64 `json:"annualized_turnover"`
	Alpha                 float64 `json:"alpha"`
	Beta                  float64 `json:"beta"`
}

// DrawdownPoint is the percentage distance from the running peak.
type DrawdownPoint struct {
	Date  int64   `json:"date"`
	Value float64 `json:"value"` // percent, <= 0
}

// CorrelationMatrix is a ticker correlation matrix ordered by clustering.
type CorrelationMatrix struct {
	Tickers []string    `json:"tickers"`
	Matrix  [][]float64 `json:"matrix"`
}
