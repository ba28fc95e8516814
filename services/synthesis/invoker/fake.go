package invoker

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// FakeResponse scripts one stage's behavior in a Fake invoker.
type FakeResponse struct {
	// Payload is returned on success. Marshaled lazily on each call.
	Payload any

	// Err is returned instead of the payload when non-nil.
	Err error

	// FailFirst makes the first attempt fail with Err, then succeed.
	FailFirst bool

	// Delay simulates invocation latency.
	Delay time.Duration
}

// Fake is a scripted Invoker for tests. It records the order of calls and
// how many invocations overlapped, which lets tests assert that independent
// stages really ran concurrently.
//
// Thread Safety: safe for concurrent use.
type Fake struct {
	mu        sync.Mutex
	responses map[string]*FakeResponse
	calls     []string
	attempts  map[string]int
	active    int
	maxActive int
}

// NewFake creates a Fake with the given per-stage scripts.
func NewFake(responses map[string]*FakeResponse) *Fake {
	if responses == nil {
		responses = make(map[string]*FakeResponse)
	}
	return &Fake{
		responses: responses,
		attempts:  make(map[string]int),
	}
}

// Script sets or replaces the scripted behavior for a stage.
func (f *Fake) Script(stage string, resp *FakeResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[stage] = resp
}

// Invoke implements the Invoker interface.
func (f *Fake) Invoke(ctx context.Context, req Request) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.Stage)
	f.attempts[req.Stage]++
	attempt := f.attempts[req.Stage]
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	resp := f.responses[req.Stage]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if resp == nil {
		return nil, NewInvocationError(req.Stage, false, ErrEmptyResponse)
	}

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-ctx.Done():
			return nil, NewInvocationError(req.Stage, false, ctx.Err())
		}
	}

	if resp.Err != nil {
		if !resp.FailFirst || attempt == 1 {
			return nil, resp.Err
		}
	}

	raw, err := json.Marshal(resp.Payload)
	if err != nil {
		return nil, NewInvocationError(req.Stage, false, err)
	}
	return raw, nil
}

// Calls returns the stage names in invocation order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// Attempts returns how many times a stage was invoked.
func (f *Fake) Attempts(stage string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[stage]
}

// MaxConcurrent returns the highest number of overlapping invocations seen.
func (f *Fake) MaxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}
