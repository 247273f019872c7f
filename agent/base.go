package agent

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/logging"
	"github.com/hupe1980/agentrt/memory"
)

var (
	// ErrNotInitialized is returned by Run before Initialize succeeded.
	ErrNotInitialized = errors.New("agent is not initialized")
	// ErrStopped is returned by Run and Initialize after Stop.
	ErrStopped = errors.New("agent is stopped")
)

// Options configures a BaseAgent.
type Options struct {
	// DisplayName overrides the descriptor's display name.
	DisplayName string
	// Memory is pruned with Forget when a capability is attached.
	Memory *memory.WindowMemory
	// OnInitialize runs after the environment is stored, e.g. to build an
	// executor that depends on the sandbox directory.
	OnInitialize func(ctx context.Context, env *core.Environment) error
	// OnStop runs once when the agent is stopped.
	OnStop func(ctx context.Context) error
}

// BaseAgent implements core.Agent by delegating runs to an executor. All
// exported methods are goroutine-safe.
type BaseAgent struct {
	desc     *core.Descriptor
	executor core.Executor
	opts     Options

	mu          sync.RWMutex
	env         *core.Environment
	logger      logging.Logger
	initialized bool
	stopped     bool
}

var (
	_ core.Agent              = (*BaseAgent)(nil)
	_ core.Named              = (*BaseAgent)(nil)
	_ core.CapabilityListener = (*BaseAgent)(nil)
)

// New constructs a BaseAgent for desc. The executor may be nil when
// OnInitialize installs one with SetExecutor.
func New(desc *core.Descriptor, executor core.Executor, optFns ...func(o *Options)) *BaseAgent {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &BaseAgent{desc: desc, executor: executor, opts: opts, logger: logging.NoOpLogger{}}
}

// Name returns the manifest name.
func (b *BaseAgent) Name() string { return b.desc.Name() }

// Description returns the manifest description.
func (b *BaseAgent) Description() string { return b.desc.Description() }

// DisplayName implements core.Named.
func (b *BaseAgent) DisplayName() string {
	if b.opts.DisplayName != "" {
		return b.opts.DisplayName
	}
	return b.desc.DisplayName()
}

// Memory returns the agent's conversation memory, or nil.
func (b *BaseAgent) Memory() *memory.WindowMemory { return b.opts.Memory }

// Environment returns the environment received by Initialize.
func (b *BaseAgent) Environment() *core.Environment {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.env
}

// SetExecutor replaces the executor. It is meant for OnInitialize hooks.
func (b *BaseAgent) SetExecutor(e core.Executor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.executor = e
}

// Initialize implements core.Agent.
func (b *BaseAgent) Initialize(ctx context.Context, env *core.Environment) error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return ErrStopped
	}
	b.env = env
	b.logger = core.EnsureLogger(env.Logger)
	b.mu.Unlock()

	if b.opts.OnInitialize != nil {
		if err := b.opts.OnInitialize(ctx, env); err != nil {
			return err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.executor == nil {
		return errors.New("agent has no executor")
	}
	b.initialized = true
	b.logger.Debug("agent.initialized", "display_name", b.DisplayName())
	return nil
}

// Run implements core.Agent by delegating to the executor.
func (b *BaseAgent) Run(ctx context.Context, req core.RunRequest, cb core.Callbacks) error {
	b.mu.RLock()
	initialized, stopped, executor, logger := b.initialized, b.stopped, b.executor, b.logger
	b.mu.RUnlock()

	switch {
	case stopped:
		return ErrStopped
	case !initialized:
		return ErrNotInitialized
	}

	logger.Debug("agent.run.start", "seq", req.Seq, "capabilities", len(req.Capabilities))
	err := executor.Execute(ctx, req, cb)
	if err != nil {
		logger.Debug("agent.run.error", "seq", req.Seq, "error", err.Error())
	}
	return err
}

// Stop implements core.Agent. Subsequent calls are no-ops.
func (b *BaseAgent) Stop(ctx context.Context) error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil
	}
	b.stopped = true
	b.mu.Unlock()

	if b.opts.OnStop != nil {
		return b.opts.OnStop(ctx)
	}
	return nil
}

// CapabilityAttached removes every memory message mentioning the capability.
func (b *BaseAgent) CapabilityAttached(c core.Capability) {
	b.mu.RLock()
	logger := b.logger
	b.mu.RUnlock()

	if b.opts.Memory == nil {
		return
	}
	if n := b.opts.Memory.Forget(c.Name()); n > 0 {
		logger.Warn("agent.memory.forget", "capability", c.Name(), "removed", n)
	}
}

// CapabilityDetached implements core.CapabilityListener.
func (b *BaseAgent) CapabilityDetached(name string) {
	b.mu.RLock()
	logger := b.logger
	b.mu.RUnlock()
	logger.Debug("agent.capability.detached", "capability", name)
}
