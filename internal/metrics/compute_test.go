package metrics

import (
	"math"
	"testing"

	"portfolio-lab/internal/domain"
)

func TestCurveReturns_SkipsNonPositiveBase(t *testing.T) {
	curve := []domain.EquityPoint{
		{Date: 1, Value: 100},
		{Date: 2, Value: 0},
		{Date: 3, Value: 50},
		{Date: 4, Value: 55},
	}

	dates, rets := curveReturns(curve)

	if len(rets) != 2 {
		t.Fatalf("expected 2 returns, got %d", len(rets))
	}
	if dates[0] != 2 || dates[1] != 4 {
		t.Errorf("expected dates [2 4], got %v", dates)
	}
	if math.Abs(rets[1]-0.1) > 1e-12 {
		t.Errorf("expected 0.1, got %f", rets[1])
	}
}

func TestComputeStddev_Sample(t *testing.T) {
	// Values 2,4,4,4,5,5,7,9: mean 5, sum of squares 32, sample var 32/7
	got := computeStddev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	want := math.Sqrt(32.0 / 7.0)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("expected %f, got %f", want, got)
	}

	if computeStddev([]float64{1}) != 0 {
		t.Error("single sample should have zero stddev")
	}
}

func TestComputeMaxDrawdown_Compounded(t *testing.T) {
	// 100 -> 110 -> 90
	got := computeMaxDrawdown([]float64{0.10, 90.0/110.0 - 1})
	want := 1 - 90.0/110.0
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("expected %f, got %f", want, got)
	}

	if computeMaxDrawdown([]float64{0.01, 0.02, 0.03}) != 0 {
		t.Error("monotonic gains should have zero drawdown")
	}
}

func TestComputeOmega(t *testing.T) {
	if got := computeOmega([]float64{0, 0, 0}, 0); got != 1 {
		t.Errorf("flat returns: expected 1, got %f", got)
	}
	if got := computeOmega([]float64{0.01, 0.02}, 0); got != omegaNoLosses {
		t.Errorf("gains only: expected %f, got %f", omegaNoLosses, got)
	}
	// gains 0.03, losses 0.01
	if got := computeOmega([]float64{0.03, -0.01}, 0); math.Abs(got-3) > 1e-12 {
		t.Errorf("expected 3, got %f", got)
	}
}

func TestComputeWinLoss(t *testing.T) {
	winRate, avgWin, avgLoss, maxGain, maxLoss := computeWinLoss([]float64{0.02, -0.01, 0.04, 0, -0.03})

	if winRate != 0.4 {
		t.Errorf("expected win rate 0.4, got %f", winRate)
	}
	if math.Abs(avgWin-0.03) > 1e-12 {
		t.Errorf("expected avg win 0.03, got %f", avgWin)
	}
	if math.Abs(avgLoss-0.02) > 1e-12 {
		t.Errorf("expected avg loss 0.02, got %f", avgLoss)
	}
	if maxGain != 0.04 || maxLoss != 0.03 {
		t.Errorf("expected extremes 0.04/0.03, got %f/%f", maxGain, maxLoss)
	}
}

func TestComputeDownsideDeviation(t *testing.T) {
	// Only -0.02 counts: sqrt(0.0004/4) * sqrt(4)
	got := computeDownsideDeviation([]float64{0.01, -0.02, 0.03, 0}, 4)
	want := math.Sqrt(0.0004/4) * 2
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("expected %f, got %f", want, got)
	}
}
