package testutil

import (
	"context"
	"sync"

	"seabridge/ms_odex_gateway/internal/core/carrier"
)

// MockForwarder is a mock implementation of carrier.Forwarder for testing.
// It records every request it receives.
type MockForwarder struct {
	ForwardFunc func(ctx context.Context, req carrier.Request) carrier.Result

	mu    sync.Mutex
	calls []carrier.Request
}

// Forward records the call and delegates to ForwardFunc if set, otherwise
// returns a generic 200 success.
func (m *MockForwarder) Forward(ctx context.Context, req carrier.Request) carrier.Result {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.ForwardFunc != nil {
		return m.ForwardFunc(ctx, req)
	}
	return carrier.Result{
		StatusCode:  200,
		Data:        map[string]any{},
		Headers:     map[string]string{"Content-Type": "application/json"},
		TimeTakenMs: 1,
	}
}

// CallCount returns how many times Forward was invoked.
func (m *MockForwarder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns a copy of the recorded requests.
func (m *MockForwarder) Calls() []carrier.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]carrier.Request, len(m.calls))
	copy(out, m.calls)
	return out
}
