package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"portfolio-lab/internal/domain"
	"portfolio-lab/internal/storage"
)

// Generator produces reports from stored comparisons.
type Generator struct {
	results storage.ResultStore
	now     func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(results storage.ResultStore) *Generator {
	return &Generator{
		results: results,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate loads the stored comparison for runID and builds its report.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, *domain.CompareResponse, error) {
	stored, err := g.results.GetByRunID(ctx, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("load result %s: %w", runID, err)
	}
	if stored.Response == nil {
		return nil, nil, fmt.Errorf("result %s has no response", runID)
	}
	return Build(stored.Response, runID, g.now()), stored.Response, nil
}

// Latest builds a report for the most recent stored comparison.
func (g *Generator) Latest(ctx context.Context) (*Report, *domain.CompareResponse, error) {
	recent, err := g.results.ListRecent(ctx, 1)
	if err != nil {
		return nil, nil, fmt.Errorf("list results: %w", err)
	}
	if len(recent) == 0 {
		return nil, nil, storage.ErrNotFound
	}
	return g.Generate(ctx, recent[0].RunID)
}

// Build produces a report from a response. Method order is preserved.
func Build(resp *domain.CompareResponse, runID string, at time.Time) *Report {
	r := &Report{
		GeneratedAt:      at,
		RunID:            runID,
		Tickers:          resp.Tickers,
		DataStart:        resp.DataStartDate,
		DataEnd:          resp.DataEndDate,
		RiskFreeRate:     resp.RiskFreeRate,
		TickerStartDates: resp.TickerStartDates,
		LimitingTicker:   resp.LimitingTicker,
		Warnings:         resp.Warnings,
	}

	for _, m := range resp.Methods {
		r.Metrics = append(r.Metrics, metricRow(m.MethodName, m.PerformanceMetrics, false))
		r.Allocations = append(r.Allocations, allocationRows(m)...)
		r.Fallbacks = append(r.Fallbacks, fallbackRow(m))
		if row, ok := overfittingRow(m); ok {
			r.Overfitting = append(r.Overfitting, row)
		}
	}
	if resp.BenchmarkName != "" {
		r.Metrics = append(r.Metrics, metricRow(resp.BenchmarkName, resp.BenchmarkMetrics, true))
	}
	return r
}

func metricRow(name string, pm domain.PerformanceMetrics, benchmark bool) MetricRow {
	return MetricRow{
		Name:          name,
		Benchmark:     benchmark,
		TotalReturn:   pm.TotalReturn,
		CAGR:          pm.CAGR,
		Volatility:    pm.Volatility,
		Sharpe:        pm.SharpeRatio,
		Sortino:       pm.SortinoRatio,
		Calmar:        pm.CalmarRatio,
		MaxDrawdown:   pm.MaxDrawdown,
		Turnover:      pm.AnnualizedTurnover,
		Costs:         pm.TotalTransactionCosts,
		NumRebalances: pm.NumRebalances,
		Alpha:         pm.Alpha,
		Beta:          pm.Beta,
	}
}

// allocationRows lists current weights sorted by descending weight, ties by ticker.
func allocationRows(m domain.MethodResult) []AllocationRow {
	rows := make([]AllocationRow, 0, len(m.CurrentAllocation.Weights))
	for t, w := range m.CurrentAllocation.Weights {
		rows = append(rows, AllocationRow{
			Method:           m.MethodName,
			Ticker:           t,
			Weight:           w,
			RiskContribution: m.CurrentAllocation.RiskContributions[t],
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Weight != rows[j].Weight {
			return rows[i].Weight > rows[j].Weight
		}
		return rows[i].Ticker < rows[j].Ticker
	})
	return rows
}

func fallbackRow(m domain.MethodResult) FallbackRow {
	row := FallbackRow{Method: m.MethodName, Rebalances: len(m.AllocationHistory)}
	for _, a := range m.AllocationHistory {
		if a.Fallback {
			row.Fallbacks++
			row.LastReason = a.FallbackReason
		}
	}
	return row
}

func overfittingRow(m domain.MethodResult) (OverfittingRow, bool) {
	n := len(m.OverfittingMetrics)
	if n == 0 {
		return OverfittingRow{}, false
	}
	var is, oos float64
	for _, o := range m.OverfittingMetrics {
		is += o.PredictedSharpe
		oos += o.RealizedSharpe
	}
	return OverfittingRow{
		Method:          m.MethodName,
		Periods:         n,
		MeanInSample:    is / float64(n),
		MeanOutOfSample: oos / float64(n),
	}, true
}
