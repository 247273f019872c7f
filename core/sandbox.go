package core

import "context"

// Sandbox is an isolated execution environment attached to agents that
// declare a sandbox requirement in their manifest. It is prepared while the
// instance is ATTACHING and torn down on cancellation and unload.
type Sandbox interface {
	Start(ctx context.Context) error
	Teardown(ctx context.Context) error
	// Dir is the working directory inside the sandbox; empty when stopped.
	Dir() string
}

// SandboxFactory creates a fresh sandbox for the named agent.
type SandboxFactory func(agent string) (Sandbox, error)
