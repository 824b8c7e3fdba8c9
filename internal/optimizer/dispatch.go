package optimizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"portfolio-lab/internal/domain"
	"portfolio-lab/internal/observability"
)

// Options configures a Dispatcher.
type Options struct {
	Logger zerolog.Logger
	MVO    []MVOOption // λ and gamma overrides; defaults 0.5 and 0.1
}

// Dispatcher routes a method to its allocator and absorbs every failure.
type Dispatcher struct {
	allocators map[domain.Method]Allocator
	log        zerolog.Logger
}

// NewDispatcher creates a dispatcher with HRP, GMV and MVO registered.
func NewDispatcher(opts Options) *Dispatcher {
	return &Dispatcher{
		allocators: map[domain.Method]Allocator{
			domain.MethodHRP: NewHRP(opts.Logger),
			domain.MethodGMV: NewGMV(opts.Logger),
			domain.MethodMVO: NewMVO(opts.Logger, opts.MVO...),
		},
		log: opts.Logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Register replaces the allocator for a method.
func (d *Dispatcher) Register(method domain.Method, a Allocator) {
	d.allocators[method] = a
}

// Dispatch runs the allocator for method and never fails:
//   - unknown method: equal weight, reason "Unknown method: X"
//   - MVO error: cash, reason "MVO Solver Failed: <err> -> Cash"
//   - any other error: equal weight, reason "<METHOD> Solver Failed: <err> -> Equal Weight"
//   - panic: equal weight, reason "panic: <value>"
func (d *Dispatcher) Dispatch(ctx context.Context, method domain.Method, in Input) (res *domain.OptimizationResult) {
	start := time.Now()
	tickers := in.Returns.Tickers

	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Str("method", string(method)).Interface("panic", r).Msg("optimizer panicked")
			res = &domain.OptimizationResult{
				Weights:        domain.EqualWeights(tickers),
				FallbackUsed:   true,
				FallbackReason: fmt.Sprintf("panic: %v", r),
			}
		}
		outcome := "ok"
		switch {
		case res.FallbackUsed:
			outcome = "fallback"
		case res.Weights.IsCash():
			outcome = "cash"
		}
		observability.RecordOptimizerCall(string(method), outcome, time.Since(start).Seconds())
	}()

	a, ok := d.allocators[method]
	if !ok {
		d.log.Warn().Str("method", string(method)).Msg("unknown method, using equal weights")
		return &domain.OptimizationResult{
			Weights:        domain.EqualWeights(tickers),
			FallbackUsed:   true,
			FallbackReason: fmt.Sprintf("Unknown method: %s", method),
		}
	}

	out, err := a.Optimize(ctx, in)
	if err == nil && out == nil {
		err = fmt.Errorf("%w: empty result", ErrNotConverged)
	}
	if err != nil {
		d.log.Warn().Err(err).Str("method", string(method)).Msg("optimizer failed, using fallback")
		if method == domain.MethodMVO {
			return &domain.OptimizationResult{
				Weights:        domain.CashWeights(tickers),
				FallbackUsed:   true,
				FallbackReason: fmt.Sprintf("MVO Solver Failed: %v -> Cash", err),
			}
		}
		return &domain.OptimizationResult{
			Weights:        domain.EqualWeights(tickers),
			FallbackUsed:   true,
			FallbackReason: fmt.Sprintf("%s Solver Failed: %v -> Equal Weight", strings.ToUpper(string(method)), err),
		}
	}
	return out
}
