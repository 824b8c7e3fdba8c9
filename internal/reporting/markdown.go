package reporting

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Portfolio Comparison Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if r.RunID != "" {
		sb.WriteString(fmt.Sprintf("Run: `%s`\n\n", r.RunID))
	}

	// Data Summary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Item | Value |\n")
	sb.WriteString("|------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Tickers | %s |\n", strings.Join(r.Tickers, ", ")))
	sb.WriteString(fmt.Sprintf("| Out-of-sample Start | %s |\n", r.DataStart))
	sb.WriteString(fmt.Sprintf("| Out-of-sample End | %s |\n", r.DataEnd))
	sb.WriteString(fmt.Sprintf("| Risk-free Rate | %.2f%% |\n", r.RiskFreeRate*100))
	if r.LimitingTicker != "" {
		sb.WriteString(fmt.Sprintf("| Limiting Ticker | %s (from %s) |\n", r.LimitingTicker, r.TickerStartDates[r.LimitingTicker]))
	}
	sb.WriteString("\n")

	// Performance
	sb.WriteString("## Performance\n\n")
	if len(r.Metrics) > 0 {
		sb.WriteString("| Method | Total Return | CAGR | Volatility | Sharpe | Sortino | Calmar | Max DD | Turnover | Costs | Rebalances |\n")
		sb.WriteString("|--------|--------------|------|------------|--------|---------|--------|--------|----------|-------|------------|\n")
		for _, m := range r.Metrics {
			name := m.Name
			if m.Benchmark {
				name = "*" + name + " (benchmark)*"
			}
			sb.WriteString(fmt.Sprintf("| %s | %.2f%% | %.2f%% | %.2f%% | %.2f | %.2f | %.2f | %.2f%% | %.2f | %.4f | %d |\n",
				name, m.TotalReturn*100, m.CAGR*100, m.Volatility*100,
				m.Sharpe, m.Sortino, m.Calmar, m.MaxDrawdown*100,
				m.Turnover, m.Costs, m.NumRebalances))
		}
	} else {
		sb.WriteString("No method produced results.\n")
	}
	sb.WriteString("\n")

	// Current Allocation
	sb.WriteString("## Current Allocation\n\n")
	if len(r.Allocations) > 0 {
		sb.WriteString("| Method | Ticker | Weight | Risk Contribution |\n")
		sb.WriteString("|--------|--------|--------|-------------------|\n")
		for _, a := range r.Allocations {
			sb.WriteString(fmt.Sprintf("| %s | %s | %.2f%% | %.2f%% |\n",
				a.Method, a.Ticker, a.Weight*100, a.RiskContribution*100))
		}
	} else {
		sb.WriteString("No allocations available.\n")
	}
	sb.WriteString("\n")

	// Fallbacks
	sb.WriteString("## Optimizer Fallbacks\n\n")
	sb.WriteString("| Method | Rebalances | Fallbacks | Last Reason |\n")
	sb.WriteString("|--------|------------|-----------|-------------|\n")
	for _, f := range r.Fallbacks {
		reason := f.LastReason
		if reason == "" {
			reason = "-"
		}
		sb.WriteString(fmt.Sprintf("| %s | %d | %d | %s |\n", f.Method, f.Rebalances, f.Fallbacks, reason))
	}
	sb.WriteString("\n")

	// Overfitting
	if len(r.Overfitting) > 0 {
		sb.WriteString("## In-sample vs Realized Sharpe\n\n")
		sb.WriteString("| Method | Periods | Mean In-sample | Mean Realized | Gap |\n")
		sb.WriteString("|--------|---------|----------------|---------------|-----|\n")
		for _, o := range r.Overfitting {
			sb.WriteString(fmt.Sprintf("| %s | %d | %.2f | %.2f | %.2f |\n",
				o.Method, o.Periods, o.MeanInSample, o.MeanOutOfSample, o.MeanInSample-o.MeanOutOfSample))
		}
		sb.WriteString("\n")
	}

	// Ticker history
	if len(r.TickerStartDates) > 0 {
		sb.WriteString("## Ticker History\n\n")
		sb.WriteString("| Ticker | First Price |\n")
		sb.WriteString("|--------|-------------|\n")
		tickers := make([]string, 0, len(r.TickerStartDates))
		for t := range r.TickerStartDates {
			tickers = append(tickers, t)
		}
		sort.Strings(tickers)
		for _, t := range tickers {
			sb.WriteString(fmt.Sprintf("| %s | %s |\n", t, r.TickerStartDates[t]))
		}
		sb.WriteString("\n")
	}

	// Warnings (always shown if present)
	if len(r.Warnings) > 0 {
		sb.WriteString("## Warnings\n\n")
		for _, w := range r.Warnings {
			sb.WriteString(fmt.Sprintf("- %s\n", w))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
