package reporting

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"portfolio-lab/internal/domain"
)

// RenderCSV renders the performance table as CSV string.
func RenderCSV(metrics []MetricRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("method,benchmark,total_return,cagr,volatility,sharpe,sortino,calmar,")
	sb.WriteString("max_drawdown,annualized_turnover,total_costs,num_rebalances,alpha,beta\n")

	// Rows
	for _, m := range metrics {
		sb.WriteString(fmt.Sprintf("%s,%t,%.6f,%.6f,%.6f,%.4f,%.4f,%.4f,%.6f,%.4f,%.6f,%d,%.4f,%.4f\n",
			csvField(m.Name),
			m.Benchmark,
			m.TotalReturn,
			m.CAGR,
			m.Volatility,
			m.Sharpe,
			m.Sortino,
			m.Calmar,
			m.MaxDrawdown,
			m.Turnover,
			m.Costs,
			m.NumRebalances,
			m.Alpha,
			m.Beta,
		))
	}

	return sb.String()
}

// RenderEquityCSV renders every equity curve in wide format: one date column,
// one column per method, then the benchmark. Dates missing from a curve are
// left empty.
func RenderEquityCSV(resp *domain.CompareResponse) string {
	var sb strings.Builder

	names, curves := equitySeries(resp)
	sb.WriteString("date")
	for _, n := range names {
		sb.WriteString(",")
		sb.WriteString(csvField(n))
	}
	sb.WriteString("\n")

	dates, byDate := alignCurves(curves)
	for _, d := range dates {
		sb.WriteString(time.UnixMilli(d).UTC().Format(domain.DateLayout))
		for j := range curves {
			sb.WriteString(",")
			if v, ok := byDate[j][d]; ok {
				sb.WriteString(fmt.Sprintf("%.6f", v))
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// equitySeries returns display names and curves for methods then benchmark.
func equitySeries(resp *domain.CompareResponse) ([]string, [][]domain.EquityPoint) {
	var names []string
	var curves [][]domain.EquityPoint
	for _, m := range resp.Methods {
		names = append(names, m.MethodName)
		curves = append(curves, m.EquityCurve)
	}
	if len(resp.BenchmarkCurve) > 0 {
		name := resp.BenchmarkName
		if name == "" {
			name = "Benchmark"
		}
		names = append(names, name)
		curves = append(curves, resp.BenchmarkCurve)
	}
	return names, curves
}

// alignCurves returns the sorted union of dates and a per-curve date index.
func alignCurves(curves [][]domain.EquityPoint) ([]int64, []map[int64]float64) {
	seen := make(map[int64]struct{})
	byDate := make([]map[int64]float64, len(curves))
	for j, c := range curves {
		byDate[j] = make(map[int64]float64, len(c))
		for _, p := range c {
			byDate[j][p.Date] = p.Value
			seen[p.Date] = struct{}{}
		}
	}
	dates := make([]int64, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	slices.Sort(dates)
	return dates, byDate
}

func csvField(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
