package normalization

import (
	"errors"
	"math"
	"testing"
	"time"

	"portfolio-lab/internal/domain"
)

func d(offset int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func TestBuildPanels_UnionAndLastWins(t *testing.T) {
	bars := []domain.PriceBar{
		{Ticker: "B", Date: d(1), Close: 20, Open: 19},
		{Ticker: "A", Date: d(0), Close: 10, Open: 9},
		{Ticker: "A", Date: d(1), Close: 11, Open: 0},
		{Ticker: "A", Date: d(1), Close: 12, Open: 11.5},
		{Ticker: "C", Date: d(1), Close: 99},
	}

	closePanel, openPanel := BuildPanels(bars, []string{"A", "B"})

	if closePanel.Len() != 2 {
		t.Fatalf("Expected 2 dates, got %d", closePanel.Len())
	}
	if closePanel.Values[1][0] != 12 {
		t.Errorf("Expected LAST close 12, got %v", closePanel.Values[1][0])
	}
	if openPanel.Values[1][0] != 11.5 {
		t.Errorf("Expected LAST open 11.5, got %v", openPanel.Values[1][0])
	}
	if !math.IsNaN(closePanel.Values[0][1]) {
		t.Errorf("Expected NaN for B on first date, got %v", closePanel.Values[0][1])
	}
}

func TestBuildPanels_OpenFallsBackToClose(t *testing.T) {
	bars := []domain.PriceBar{{Ticker: "A", Date: d(0), Close: 10}}
	_, openPanel := BuildPanels(bars, []string{"A"})
	if openPanel.Values[0][0] != 10 {
		t.Errorf("Expected open fallback 10, got %v", openPanel.Values[0][0])
	}
}

func TestForwardFill(t *testing.T) {
	nan := math.NaN()
	p := domain.PricePanel{
		Dates:   []time.Time{d(0), d(1), d(2)},
		Tickers: []string{"A", "B"},
		Values:  [][]float64{{nan, 5}, {10, nan}, {0, 6}},
	}

	out := ForwardFill(p)

	if !math.IsNaN(out.Values[0][0]) {
		t.Errorf("Expected leading NaN to stay, got %v", out.Values[0][0])
	}
	if out.Values[1][1] != 5 {
		t.Errorf("Expected 5 carried forward, got %v", out.Values[1][1])
	}
	if out.Values[2][0] != 10 {
		t.Errorf("Expected zero price replaced by 10, got %v", out.Values[2][0])
	}
	if !math.IsNaN(p.Values[1][1]) {
		t.Error("ForwardFill mutated its input")
	}
}

func TestAlign_IntersectsDates(t *testing.T) {
	closePanel := domain.PricePanel{
		Dates:   []time.Time{d(0), d(1), d(2), d(3)},
		Tickers: []string{"A"},
		Values:  [][]float64{{1}, {2}, {3}, {4}},
	}
	openPanel := domain.PricePanel{
		Dates:   []time.Time{d(1), d(2), d(3)},
		Tickers: []string{"A"},
		Values:  [][]float64{{1.5}, {2.5}, {3.5}},
	}

	c, o, err := Align(closePanel, openPanel)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if c.Len() != 3 || o.Len() != 3 {
		t.Fatalf("Expected 3 aligned rows, got %d/%d", c.Len(), o.Len())
	}
	for i := range c.Dates {
		if !c.Dates[i].Equal(o.Dates[i]) {
			t.Errorf("Row %d: dates differ %v vs %v", i, c.Dates[i], o.Dates[i])
		}
	}
}

func TestAlign_MatchesSameInstantAcrossLocations(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	closePanel := domain.PricePanel{
		Dates:   []time.Time{d(0), d(1), d(2)},
		Tickers: []string{"A"},
		Values:  [][]float64{{1}, {2}, {3}},
	}
	openPanel := domain.PricePanel{
		Dates:   []time.Time{d(0).In(est), d(1).In(est), d(2).In(est)},
		Tickers: []string{"A"},
		Values:  [][]float64{{0.5}, {1.5}, {2.5}},
	}

	c, o, err := Align(closePanel, openPanel)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if c.Len() != 3 || o.Len() != 3 {
		t.Fatalf("Expected 3 aligned rows, got %d/%d", c.Len(), o.Len())
	}
	if o.Values[2][0] != 2.5 {
		t.Errorf("Expected open 2.5 on the last row, got %v", o.Values[2][0])
	}
}

func TestAlign_TickerMismatch(t *testing.T) {
	_, _, err := Align(domain.PricePanel{Tickers: []string{"A"}}, domain.PricePanel{Tickers: []string{"B"}})
	if !errors.Is(err, ErrPanelMismatch) {
		t.Errorf("Expected ErrPanelMismatch, got %v", err)
	}
}

func TestInferTradingDays(t *testing.T) {
	daily := []time.Time{d(0), d(1), d(2), d(3), d(4), d(5), d(6)}
	if got := InferTradingDays(daily); got != 365 {
		t.Errorf("Expected 365 for calendar-daily dates, got %d", got)
	}

	var weekdays []time.Time
	for i := 0; i < 28; i++ {
		if wd := d(i).Weekday(); wd != time.Saturday && wd != time.Sunday {
			weekdays = append(weekdays, d(i))
		}
	}
	if got := InferTradingDays(weekdays); got != 252 {
		t.Errorf("Expected 252 for weekday dates, got %d", got)
	}

	if got := InferTradingDays([]time.Time{d(0), d(1)}); got != 252 {
		t.Errorf("Expected 252 default for short index, got %d", got)
	}
}

func TestPrepare_TrimsToLimitingTicker(t *testing.T) {
	var bars []domain.PriceBar
	for i := 0; i < 100; i++ {
		bars = append(bars, domain.PriceBar{Ticker: "OLD", Date: d(i), Close: 100 + float64(i)})
		if i >= 20 {
			bars = append(bars, domain.PriceBar{Ticker: "NEW", Date: d(i), Close: 50 + float64(i)})
		}
	}

	data, err := Prepare(bars, []string{"OLD", "NEW"}, time.Time{})
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	if data.LimitingTicker != "NEW" {
		t.Errorf("Expected limiting ticker NEW, got %s", data.LimitingTicker)
	}
	if data.Close.Len() != 80 {
		t.Errorf("Expected 80 rows, got %d", data.Close.Len())
	}
	if data.TickerStartDates["OLD"] != "2024-01-01" {
		t.Errorf("Expected OLD start 2024-01-01, got %s", data.TickerStartDates["OLD"])
	}
	if data.TickerStartDates["NEW"] != d(20).Format(domain.DateLayout) {
		t.Errorf("Expected NEW start %s, got %s", d(20).Format(domain.DateLayout), data.TickerStartDates["NEW"])
	}
}

func TestPrepare_Errors(t *testing.T) {
	var bars []domain.PriceBar
	for i := 0; i < 30; i++ {
		bars = append(bars, domain.PriceBar{Ticker: "A", Date: d(i), Close: 10})
		bars = append(bars, domain.PriceBar{Ticker: "B", Date: d(i), Close: 20})
	}

	if _, err := Prepare(bars, []string{"A", "B"}, time.Time{}); !errors.Is(err, domain.ErrInput) {
		t.Errorf("Expected ErrInput for short history, got %v", err)
	}
	if _, err := Prepare(bars, []string{"A", "Z"}, time.Time{}); !errors.Is(err, domain.ErrInput) {
		t.Errorf("Expected ErrInput for missing ticker, got %v", err)
	}
}
