package backtest

import (
	"context"
	"sync"
	"time"

	"portfolio-lab/internal/domain"
	"portfolio-lab/internal/optimizer"
)

// DispatchCall is one recorded call to StubDispatcher.
type DispatchCall struct {
	Method       domain.Method
	TrainingRows int
	LastRowDate  time.Time // zero when the window is empty
	RiskFreeRate float64
}

// StubDispatcher returns fixed weights and records every call.
// Used to test the engine without running an optimizer.
type StubDispatcher struct {
	mu     sync.Mutex
	result func(call int) *domain.OptimizationResult
	calls  []DispatchCall
}

// NewStubDispatcher creates a stub that always returns weights.
func NewStubDispatcher(weights domain.Weights) *StubDispatcher {
	return NewStubDispatcherFunc(func(int) *domain.OptimizationResult {
		return &domain.OptimizationResult{Weights: weights.Clone()}
	})
}

// NewStubDispatcherFunc creates a stub whose result depends on the call index.
func NewStubDispatcherFunc(result func(call int) *domain.OptimizationResult) *StubDispatcher {
	return &StubDispatcher{result: result}
}

// Dispatch records the call and returns the configured result.
func (s *StubDispatcher) Dispatch(_ context.Context, method domain.Method, in optimizer.Input) *domain.OptimizationResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	call := DispatchCall{
		Method:       method,
		TrainingRows: in.Returns.Len(),
		RiskFreeRate: in.RiskFreeRate,
	}
	if len(in.Returns.Dates) > 0 {
		call.LastRowDate = in.Returns.Dates[len(in.Returns.Dates)-1]
	}
	idx := len(s.calls)
	s.calls = append(s.calls, call)
	return s.result(idx)
}

// Calls returns the recorded calls for test verification.
func (s *StubDispatcher) Calls() []DispatchCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DispatchCall, len(s.calls))
	copy(out, s.calls)
	return out
}

// Ensure StubDispatcher implements Dispatcher
var _ Dispatcher = (*StubDispatcher)(nil)

// Ensure the real dispatcher implements Dispatcher
var _ Dispatcher = (*optimizer.Dispatcher)(nil)
