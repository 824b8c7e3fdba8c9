package optimizer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"portfolio-lab/internal/domain"
)

func dispatchInput() Input {
	return Input{
		Returns:      syntheticReturns(41, 120, []string{"A", "B", "C"}, []float64{0.1, 0.2, 0.3}, []float64{0.1, 0.1, 0.1}),
		MaxWeight:    1,
		RiskFreeRate: 0.02,
		TradingDays:  252,
	}
}

func TestDispatch_UnknownMethod(t *testing.T) {
	d := NewDispatcher(Options{Logger: zerolog.Nop()})
	res := d.Dispatch(context.Background(), domain.Method("nco"), dispatchInput())

	assert.True(t, res.FallbackUsed)
	assert.Equal(t, "Unknown method: nco", res.FallbackReason)
	assert.InDelta(t, 1.0/3, res.Weights["A"], 1e-12)
}

func TestDispatch_PanicBecomesEqualWeight(t *testing.T) {
	d := NewDispatcher(Options{Logger: zerolog.Nop()})
	d.Register(domain.MethodHRP, AllocatorFunc(func(context.Context, Input) (*domain.OptimizationResult, error) {
		panic("boom")
	}))

	res := d.Dispatch(context.Background(), domain.MethodHRP, dispatchInput())

	assert.True(t, res.FallbackUsed)
	assert.Equal(t, "panic: boom", res.FallbackReason)
	assert.InDelta(t, 1.0, res.Weights.Sum(), 1e-12)
}

func TestDispatch_GMVFailureIsEqualWeight(t *testing.T) {
	d := NewDispatcher(Options{Logger: zerolog.Nop()})
	d.Register(domain.MethodGMV, AllocatorFunc(func(context.Context, Input) (*domain.OptimizationResult, error) {
		return nil, ErrIllConditioned
	}))

	res := d.Dispatch(context.Background(), domain.MethodGMV, dispatchInput())

	assert.True(t, res.FallbackUsed)
	assert.True(t, strings.HasPrefix(res.FallbackReason, "GMV Solver Failed: "))
	assert.True(t, strings.HasSuffix(res.FallbackReason, "-> Equal Weight"))
	assert.InDelta(t, 1.0, res.Weights.Sum(), 1e-12)
}

func TestDispatch_MVOFailureIsCash(t *testing.T) {
	d := NewDispatcher(Options{Logger: zerolog.Nop()})
	d.Register(domain.MethodMVO, AllocatorFunc(func(context.Context, Input) (*domain.OptimizationResult, error) {
		return nil, errors.New("solver exploded")
	}))

	res := d.Dispatch(context.Background(), domain.MethodMVO, dispatchInput())

	assert.True(t, res.FallbackUsed)
	assert.Equal(t, "MVO Solver Failed: solver exploded -> Cash", res.FallbackReason)
	assert.True(t, res.Weights.IsCash())
}

func TestDispatch_RealMethods(t *testing.T) {
	d := NewDispatcher(Options{Logger: zerolog.Nop()})
	for _, m := range domain.AllMethods {
		t.Run(string(m), func(t *testing.T) {
			res := d.Dispatch(context.Background(), m, dispatchInput())
			assert.NotNil(t, res)
			assert.Len(t, res.Weights, 3)
			sum := res.Weights.Sum()
			assert.True(t, sum < 1e-9 || (sum > 1-1e-6 && sum < 1+1e-6), "sum %f is neither cash nor fully invested", sum)
		})
	}
}
