package process

import (
	"context"
	"sync"
)

// FakeRunner records invocations and answers them from a callback.
// It is exported so that stage packages can share one test double.
type FakeRunner struct {
	mu    sync.Mutex
	calls []Command

	// Handler produces the result for each call. When nil, every call
	// succeeds with exit code 0 and empty output.
	Handler func(cmd Command) (*Result, error)
}

// Run records cmd and delegates to Handler.
func (f *FakeRunner) Run(_ context.Context, cmd Command) (*Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.mu.Unlock()

	if f.Handler == nil {
		return &Result{}, nil
	}
	return f.Handler(cmd)
}

// Calls returns a copy of the recorded invocations in call order.
func (f *FakeRunner) Calls() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Command, len(f.calls))
	copy(out, f.calls)
	return out
}

var _ Runner = (*FakeRunner)(nil)
