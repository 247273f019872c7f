package testutil

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/agentrt/core"
)

// StubAgent is a configurable core.Agent whose runs are driven by RunFunc.
// The zero value completes every run with the echoed input.
type StubAgent struct {
	InitErr error
	StopErr error
	RunFunc func(ctx context.Context, req core.RunRequest, cb core.Callbacks) error

	mu          sync.Mutex
	env         *core.Environment
	runs        []core.RunRequest
	initialized atomic.Int32
	stopped     atomic.Int32
}

var _ core.Agent = (*StubAgent)(nil)

// Initialize implements core.Agent.
func (a *StubAgent) Initialize(_ context.Context, env *core.Environment) error {
	a.initialized.Add(1)
	a.mu.Lock()
	a.env = env
	a.mu.Unlock()
	return a.InitErr
}

// Run implements core.Agent.
func (a *StubAgent) Run(ctx context.Context, req core.RunRequest, cb core.Callbacks) error {
	a.mu.Lock()
	a.runs = append(a.runs, req)
	a.mu.Unlock()
	if a.RunFunc != nil {
		return a.RunFunc(ctx, req, cb)
	}
	cb.OnComplete(req.Input)
	return nil
}

// Stop implements core.Agent.
func (a *StubAgent) Stop(context.Context) error {
	a.stopped.Add(1)
	return a.StopErr
}

// Env returns the environment passed to Initialize.
func (a *StubAgent) Env() *core.Environment {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.env
}

// Runs returns the requests received so far.
func (a *StubAgent) Runs() []core.RunRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]core.RunRequest(nil), a.runs...)
}

// Initialized returns the number of Initialize calls.
func (a *StubAgent) Initialized() int { return int(a.initialized.Load()) }

// Stopped returns the number of Stop calls.
func (a *StubAgent) Stopped() int { return int(a.stopped.Load()) }

// BlockUntilCancelled returns a RunFunc that signals started, then waits for
// ctx cancellation and returns ctx.Err().
func BlockUntilCancelled(started chan<- struct{}) func(ctx context.Context, req core.RunRequest, cb core.Callbacks) error {
	return func(ctx context.Context, _ core.RunRequest, cb core.Callbacks) error {
		cb.OnThought("waiting")
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}
}

// BlockUntilReleased returns a RunFunc that signals started and completes
// once release is closed, ignoring cancellation.
func BlockUntilReleased(started chan<- struct{}, release <-chan struct{}) func(ctx context.Context, req core.RunRequest, cb core.Callbacks) error {
	return func(_ context.Context, req core.RunRequest, cb core.Callbacks) error {
		close(started)
		<-release
		cb.OnToken("late")
		cb.OnComplete(req.Input)
		return nil
	}
}

// StubCapability is a core.Capability returning Result or Err.
type StubCapability struct {
	CapName string
	CapKind string
	Result  string
	Err     error
	calls   atomic.Int32
}

var _ core.Capability = (*StubCapability)(nil)

// Name implements core.Capability.
func (c *StubCapability) Name() string { return c.CapName }

// Description implements core.Capability.
func (c *StubCapability) Description() string { return "stub capability " + c.CapName }

// Kind implements core.Kinded.
func (c *StubCapability) Kind() string { return c.CapKind }

// Invoke implements core.Capability.
func (c *StubCapability) Invoke(_ context.Context, query string) (string, error) {
	c.calls.Add(1)
	if c.Err != nil {
		return "", core.NewCapabilityError(c.CapName, "", c.Err)
	}
	if c.Result != "" {
		return c.Result, nil
	}
	return "result for " + query, nil
}

// Calls returns the number of Invoke calls.
func (c *StubCapability) Calls() int { return int(c.calls.Load()) }

// ErrBoom is a generic failure for tests.
var ErrBoom = errors.New("boom")

// StubSandbox is an in-memory core.Sandbox.
type StubSandbox struct {
	StartErr    error
	TeardownErr error
	// FailRestart makes every Start after the first fail.
	FailRestart bool

	starts    atomic.Int32
	teardowns atomic.Int32
	running   atomic.Bool
}

var _ core.Sandbox = (*StubSandbox)(nil)

// Start implements core.Sandbox.
func (s *StubSandbox) Start(context.Context) error {
	n := s.starts.Add(1)
	if s.StartErr != nil {
		return s.StartErr
	}
	if s.FailRestart && n > 1 {
		return ErrBoom
	}
	s.running.Store(true)
	return nil
}

// Teardown implements core.Sandbox.
func (s *StubSandbox) Teardown(context.Context) error {
	s.teardowns.Add(1)
	s.running.Store(false)
	return s.TeardownErr
}

// Dir implements core.Sandbox.
func (s *StubSandbox) Dir() string {
	if s.running.Load() {
		return "/sandbox"
	}
	return ""
}

// Starts returns the number of Start calls.
func (s *StubSandbox) Starts() int { return int(s.starts.Load()) }

// Teardowns returns the number of Teardown calls.
func (s *StubSandbox) Teardowns() int { return int(s.teardowns.Load()) }

// Running reports whether the sandbox is started.
func (s *StubSandbox) Running() bool { return s.running.Load() }
