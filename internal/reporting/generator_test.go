package reporting

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"portfolio-lab/internal/domain"
	"portfolio-lab/internal/storage"
	"portfolio-lab/internal/storage/memory"
)

var fixedTime = time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

func curve(start time.Time, values ...float64) []domain.EquityPoint {
	out := make([]domain.EquityPoint, len(values))
	for i, v := range values {
		out[i] = domain.EquityPoint{Date: start.AddDate(0, 0, i).UnixMilli(), Value: v}
	}
	return out
}

func testResponse() *domain.CompareResponse {
	d0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	return &domain.CompareResponse{
		Methods: []domain.MethodResult{
			{
				Method:      domain.MethodHRP,
				MethodName:  "Hierarchical Risk Parity",
				EquityCurve: curve(d0, 100, 101, 102.5),
				PerformanceMetrics: domain.PerformanceMetrics{
					SharpeRatio: 1.25, TotalReturn: 0.025, CAGR: 0.1, Volatility: 0.12, MaxDrawdown: 0.05, NumRebalances: 2,
				},
				CurrentAllocation: domain.CurrentAllocation{
					Weights:           domain.Weights{"SPY": 0.4, "AGG": 0.6},
					RiskContributions: map[string]float64{"SPY": 0.7, "AGG": 0.3},
				},
				AllocationHistory: []domain.AllocationRecord{
					{Date: "2024-01-02"},
					{Date: "2024-01-03", Fallback: true, FallbackReason: "covariance ill-conditioned"},
				},
				OverfittingMetrics: []domain.OverfittingMetric{
					{Date: "2024-01-02", PredictedSharpe: 2, RealizedSharpe: 1},
					{Date: "2024-01-03", PredictedSharpe: 1, RealizedSharpe: 0},
				},
			},
			{
				Method:      domain.MethodGMV,
				MethodName:  "Global Minimum Variance",
				EquityCurve: curve(d0, 100, 100.5, 101),
				PerformanceMetrics: domain.PerformanceMetrics{
					SharpeRatio: 0.8, TotalReturn: 0.01,
				},
				CurrentAllocation: domain.CurrentAllocation{
					Weights: domain.Weights{"SPY": 0.5, "AGG": 0.5},
				},
			},
		},
		BenchmarkCurve:   curve(d0, 100, 99, 100.2),
		BenchmarkMetrics: domain.PerformanceMetrics{SharpeRatio: 0.1, TotalReturn: 0.002},
		BenchmarkName:    "Equal Weight",
		Tickers:          []string{"SPY", "AGG"},
		RiskFreeRate:     0.045,
		DataStartDate:    "2024-01-02",
		DataEndDate:      "2024-01-04",
		TickerStartDates: map[string]string{"SPY": "2003-01-02", "AGG": "2003-09-29"},
		LimitingTicker:   "AGG",
		Warnings:         []string{"Minimum Variance Optimization failed and was omitted"},
	}
}

func TestBuild(t *testing.T) {
	r := Build(testResponse(), "run1", fixedTime)

	if len(r.Metrics) != 3 {
		t.Fatalf("expected 3 metric rows (2 methods + benchmark), got %d", len(r.Metrics))
	}
	if !r.Metrics[2].Benchmark || r.Metrics[2].Name != "Equal Weight" {
		t.Errorf("expected benchmark last, got %+v", r.Metrics[2])
	}
	if r.Metrics[0].Sharpe != 1.25 {
		t.Errorf("expected method order preserved, got %s first", r.Metrics[0].Name)
	}

	// Allocations sorted by weight descending within a method
	if len(r.Allocations) != 4 {
		t.Fatalf("expected 4 allocation rows, got %d", len(r.Allocations))
	}
	if r.Allocations[0].Ticker != "AGG" || r.Allocations[0].RiskContribution != 0.3 {
		t.Errorf("unexpected first allocation %+v", r.Allocations[0])
	}
	// Equal weights tie-break by ticker
	if r.Allocations[2].Ticker != "AGG" || r.Allocations[3].Ticker != "SPY" {
		t.Errorf("expected ticker tie-break, got %s, %s", r.Allocations[2].Ticker, r.Allocations[3].Ticker)
	}

	if r.Fallbacks[0].Fallbacks != 1 || r.Fallbacks[0].Rebalances != 2 {
		t.Errorf("unexpected fallback row %+v", r.Fallbacks[0])
	}
	if r.Fallbacks[0].LastReason != "covariance ill-conditioned" {
		t.Errorf("unexpected last reason %q", r.Fallbacks[0].LastReason)
	}

	if len(r.Overfitting) != 1 {
		t.Fatalf("expected overfitting only for methods with metrics, got %d", len(r.Overfitting))
	}
	if r.Overfitting[0].MeanInSample != 1.5 || r.Overfitting[0].MeanOutOfSample != 0.5 {
		t.Errorf("unexpected overfitting means %+v", r.Overfitting[0])
	}
}

func TestGenerator_Generate(t *testing.T) {
	ctx := context.Background()
	store := memory.NewResultStore()
	resp := testResponse()
	if err := store.Insert(ctx, &storage.StoredResult{RunID: "abc", Response: resp, CreatedAt: fixedTime}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	gen := NewGenerator(store).WithClock(func() time.Time { return fixedTime })

	r, got, err := gen.Generate(ctx, "abc")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != resp {
		t.Error("expected stored response to be returned")
	}
	if r.RunID != "abc" || !r.GeneratedAt.Equal(fixedTime) {
		t.Errorf("unexpected metadata %s %v", r.RunID, r.GeneratedAt)
	}

	latest, _, err := gen.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.RunID != "abc" {
		t.Errorf("expected latest abc, got %s", latest.RunID)
	}

	if _, _, err := gen.Generate(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := NewGenerator(memory.NewResultStore()).Latest(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound on empty store, got %v", err)
	}
}

func TestRenderMarkdown(t *testing.T) {
	md := RenderMarkdown(Build(testResponse(), "run1", fixedTime))

	for _, want := range []string{
		"# Portfolio Comparison Report",
		"Generated: 2024-06-03T12:00:00Z",
		"Run: `run1`",
		"| Tickers | SPY, AGG |",
		"| Risk-free Rate | 4.50% |",
		"| Limiting Ticker | AGG (from 2003-09-29) |",
		"| Hierarchical Risk Parity | 2.50% | 10.00% | 12.00% | 1.25 |",
		"*Equal Weight (benchmark)*",
		"| Hierarchical Risk Parity | AGG | 60.00% | 30.00% |",
		"| Hierarchical Risk Parity | 2 | 1 | covariance ill-conditioned |",
		"| Global Minimum Variance | 0 | 0 | - |",
		"| Hierarchical Risk Parity | 2 | 1.50 | 0.50 | 1.00 |",
		"- Minimum Variance Optimization failed and was omitted",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestRenderMarkdown_Empty(t *testing.T) {
	md := RenderMarkdown(&Report{GeneratedAt: fixedTime})
	if !strings.Contains(md, "No method produced results.") {
		t.Error("expected empty performance placeholder")
	}
	if strings.Contains(md, "## Warnings") {
		t.Error("warnings section must be omitted when empty")
	}
}

func TestRenderCSV(t *testing.T) {
	out := RenderCSV(Build(testResponse(), "", fixedTime).Metrics)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "method,benchmark,total_return") {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "Hierarchical Risk Parity,false,0.025000,") {
		t.Errorf("unexpected first row %q", lines[1])
	}
	if !strings.HasPrefix(lines[3], "Equal Weight,true,") {
		t.Errorf("unexpected benchmark row %q", lines[3])
	}
}

func TestRenderEquityCSV(t *testing.T) {
	resp := testResponse()
	// drop the last GMV point to check gaps
	resp.Methods[1].EquityCurve = resp.Methods[1].EquityCurve[:2]

	out := RenderEquityCSV(resp)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if lines[0] != "date,Hierarchical Risk Parity,Global Minimum Variance,Equal Weight" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if len(lines) != 4 {
		t.Fatalf("expected 3 dates, got %d lines", len(lines))
	}
	if lines[1] != "2024-01-02,100.000000,100.000000,100.000000" {
		t.Errorf("unexpected first row %q", lines[1])
	}
	if lines[3] != "2024-01-04,102.500000,,100.200000" {
		t.Errorf("expected empty cell for missing point, got %q", lines[3])
	}
}

func TestCSVField(t *testing.T) {
	if got := csvField(`a,"b"`); got != `"a,""b"""` {
		t.Errorf("unexpected quoting %s", got)
	}
	if got := csvField("plain"); got != "plain" {
		t.Errorf("unexpected quoting %s", got)
	}
}

func TestRenderEquityChart(t *testing.T) {
	png, err := RenderEquityChart(testResponse())
	if err != nil {
		t.Fatalf("RenderEquityChart: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Error("expected PNG signature")
	}

	if _, err := RenderEquityChart(&domain.CompareResponse{}); err == nil {
		t.Error("expected error for empty response")
	}
}

func TestSampleIndexes(t *testing.T) {
	idx := sampleIndexes(1000, 5)
	want := []int{0, 250, 500, 749, 999}
	if len(idx) != len(want) {
		t.Fatalf("expected %d indexes, got %d", len(want), len(idx))
	}
	if idx[0] != 0 || idx[len(idx)-1] != 999 {
		t.Errorf("expected endpoints kept, got %v", idx)
	}
	if got := sampleIndexes(3, 5); len(got) != 3 {
		t.Errorf("expected all indexes for short input, got %v", got)
	}
}

func TestFilledSeries(t *testing.T) {
	dates := []int64{1, 2, 3, 4}
	got := filledSeries(dates, map[int64]float64{2: 10, 4: 12})
	want := []float64{10, 10, 10, 12}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %f, got %f", i, want[i], got[i])
		}
	}
}

func TestWriteAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	resp := testResponse()

	paths, err := WriteAll(dir, Build(resp, "run1", fixedTime), resp)
	if err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if len(paths) != 4 {
		t.Fatalf("expected 4 files, got %v", paths)
	}
	for _, name := range []string{FileMarkdown, FileMetrics, FileEquity, FileChart} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}
