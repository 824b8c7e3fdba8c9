package lookup

import (
	"math"
	"testing"
	"time"

	"portfolio-lab/internal/domain"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func testSeries() *domain.RateSeries {
	return &domain.RateSeries{
		Dates:  []time.Time{day(2), day(4), day(6)},
		Values: []float64{0.01, 0.02, 0.03},
	}
}

func TestRateAt_EmptySeries(t *testing.T) {
	_, err := RateAt(day(3), nil)
	if err != ErrNoRateData {
		t.Errorf("expected ErrNoRateData, got %v", err)
	}

	_, err = RateAt(day(3), &domain.RateSeries{})
	if err != ErrNoRateData {
		t.Errorf("expected ErrNoRateData, got %v", err)
	}
}

func TestRateAt_ExactMatch(t *testing.T) {
	rate, err := RateAt(day(4), testSeries())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rate != 0.02 {
		t.Errorf("expected 0.02, got %f", rate)
	}
}

func TestRateAt_BetweenObservations(t *testing.T) {
	rate, err := RateAt(day(5), testSeries())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rate != 0.02 {
		t.Errorf("expected 0.02, got %f", rate)
	}
}

func TestRateAt_BeforeFirst(t *testing.T) {
	_, err := RateAt(day(1), testSeries())
	if err != ErrNoRateData {
		t.Errorf("expected ErrNoRateData, got %v", err)
	}
}

func TestRateAt_SkipsNaN(t *testing.T) {
	s := testSeries()
	s.Values[1] = math.NaN()

	rate, err := RateAt(day(5), s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rate != 0.01 {
		t.Errorf("expected 0.01, got %f", rate)
	}
}

func TestResolveRate(t *testing.T) {
	if got := ResolveRate(day(1), domain.ConstantRate(0.07)); got != 0.07 {
		t.Errorf("constant: expected 0.07, got %f", got)
	}

	in := domain.RateInput{Series: testSeries()}
	if got := ResolveRate(day(30), in); got != 0.03 {
		t.Errorf("after last: expected 0.03, got %f", got)
	}
	if got := ResolveRate(day(1), in); got != domain.DefaultRiskFreeRate {
		t.Errorf("before first: expected default %f, got %f", domain.DefaultRiskFreeRate, got)
	}
}
