package core

import (
	"context"

	"github.com/hupe1980/agentrt/logging"
)

// Agent defines the surface every loadable agent implementation must satisfy.
//
// The runtime drives an Agent through three calls:
//   - Initialize once, while the instance is LOADING, with the environment the
//     manager prepared (logger, optional sandbox).
//   - Run for every accepted input while the instance is BUSY. Run blocks until
//     the run finishes or ctx is cancelled and reports progress exclusively
//     through the supplied Callbacks.
//   - Stop once, when the instance is unloaded.
//
// Implementations must:
//   - Respect context cancellation promptly (cooperative cancellation)
//   - Never call into the manager from inside Run
//   - Treat the Capabilities in RunRequest as borrowed, not owned
type Agent interface {
	Initialize(ctx context.Context, env *Environment) error
	Run(ctx context.Context, req RunRequest, cb Callbacks) error
	Stop(ctx context.Context) error
}

// Named is implemented by agents that expose a human readable display name.
type Named interface {
	DisplayName() string
}

// Environment carries the resources an agent receives at initialization.
type Environment struct {
	// Name is the validated manifest name of the module.
	Name string
	// Descriptor is the immutable identity of the loaded module.
	Descriptor *Descriptor
	// Logger is scoped to the agent; never nil.
	Logger logging.Logger
	// Sandbox is set only for agents whose manifest requires one.
	Sandbox Sandbox
}

// RunRequest is the input of a single run.
type RunRequest struct {
	// Input is the user provided text.
	Input string
	// Seq is the transition sequence number at which the run started.
	Seq uint64
	// Capabilities is a snapshot of the capabilities attached when the run
	// was accepted. Attachment changes do not affect a run in flight.
	Capabilities []Capability
}

// Capability returns the capability with the given name from the snapshot.
func (r RunRequest) Capability(name string) (Capability, bool) {
	for _, c := range r.Capabilities {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// Executor is the task-execution backend an agent delegates a run to. It may
// stream tokens, perform intermediate steps and invoke capabilities, reporting
// everything through cb.
type Executor interface {
	Execute(ctx context.Context, req RunRequest, cb Callbacks) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, req RunRequest, cb Callbacks) error

// Execute calls f(ctx, req, cb).
func (f ExecutorFunc) Execute(ctx context.Context, req RunRequest, cb Callbacks) error {
	return f(ctx, req, cb)
}

// CapabilityListener is implemented by agents that react to capabilities
// being attached or detached (for example by pruning conversation memory
// that mentions a newly attached tool). The manager calls it while the
// instance is IDLE.
type CapabilityListener interface {
	CapabilityAttached(c Capability)
	CapabilityDetached(name string)
}
