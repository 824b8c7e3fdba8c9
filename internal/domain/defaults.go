package domain

import "time"

// Trading calendar.
const (
	TradingDaysPerYear    = 252
	TradingDaysContinuous = 365
	TradingDaysPerQuarter = 63
	TradingDaysPerMonth   = 21
)

// Default parameters for a walk-forward run.
const (
	DefaultRiskFreeRate       = 0.045
	DefaultTrainingWindow     = 252
	DefaultRebalancingWindow  = 21
	DefaultTransactionCostBps = 10.0
	DefaultTargetVolatility   = 0.12
	DefaultVolatilityLookback = TradingDaysPerQuarter

	// DefaultTurnoverSmoothing blends new targets with previous weights:
	// 0 = full rebalance, 1 = never move.
	DefaultTurnoverSmoothing = 0.25

	// DefaultReturnShrinkage pulls MVO expected returns toward the cross-sectional
	// grand mean: 0 = raw sample, 1 = grand mean only.
	DefaultReturnShrinkage = 0.5

	// DefaultL2Gamma penalizes concentrated MVO weights.
	DefaultL2Gamma = 0.1
)

// Data and optimizer limits.
const (
	MinDataPoints                 = 60
	CovarianceConditionThreshold  = 1000.0
	MinAssetsForDiversification   = 2
	MonteCarloSimulations         = 2000
	MonteCarloSeed                = 42
	FrontierPoints                = 50
	MaxComparisonWorkers          = 4
	CashThreshold                 = 0.001
	SharpeCap                     = 20.0
	DefaultJobTTL                 = time.Hour
	DefaultPriceCacheTTL          = 12 * time.Hour
	MinReturnsForCorrelationOrder = 10
)

// Request bounds.
const (
	MinTrainingWindow    = 60
	MaxTrainingWindow    = 1260
	MinRebalancingWindow = 5
	MaxRebalancingWindow = 126
	MaxTransactionCost   = 100.0
	MaxMinWeight         = 0.5
	MinMaxWeight         = 0.1
	MinTargetVolatility  = 0.05
	MaxTargetVolatility  = 0.30
)
