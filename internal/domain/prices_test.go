package domain

import (
	"math"
	"testing"
	"time"
)

func TestPricePanel_Returns(t *testing.T) {
	d0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := PricePanel{
		Dates:   []time.Time{d0, d0.AddDate(0, 0, 1), d0.AddDate(0, 0, 2)},
		Tickers: []string{"A", "B"},
		Values:  [][]float64{{100, 0}, {110, 10}, {99, 12}},
	}

	r := p.Returns()
	if r.Len() != 2 {
		t.Fatalf("expected 2 return rows, got %d", r.Len())
	}
	if !r.Dates[0].Equal(p.Dates[1]) {
		t.Errorf("expected first return dated %v, got %v", p.Dates[1], r.Dates[0])
	}
	if math.Abs(r.Values[0][0]-0.10) > 1e-12 {
		t.Errorf("expected 0.10, got %f", r.Values[0][0])
	}
	if math.Abs(r.Values[1][0]+0.10) > 1e-12 {
		t.Errorf("expected -0.10, got %f", r.Values[1][0])
	}
	if !math.IsNaN(r.Values[0][1]) {
		t.Errorf("expected NaN after zero price, got %f", r.Values[0][1])
	}
}

func TestReturnsMatrix_WindowClamps(t *testing.T) {
	r := ReturnsMatrix{Tickers: []string{"A"}, Values: [][]float64{{1}, {2}, {3}, {4}}}

	if got := r.Window(-3, 2).Len(); got != 2 {
		t.Errorf("expected 2 rows, got %d", got)
	}
	if got := r.Tail(10).Len(); got != 4 {
		t.Errorf("expected 4 rows, got %d", got)
	}
	if got := r.Tail(1).Values[0][0]; got != 4 {
		t.Errorf("expected last row 4, got %f", got)
	}
	if got := r.Window(3, 1).Len(); got != 0 {
		t.Errorf("expected empty window, got %d", got)
	}
}
