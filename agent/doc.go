// Package agent contains BaseAgent, the building block of the built-in agent
// modules. BaseAgent implements the core.Agent surface (Initialize, Run,
// Stop) over a core.Executor and adds the plumbing every module needs:
//
//   - identity (name, display name, description) taken from the descriptor
//   - lifecycle guards (Run before Initialize or after Stop is an error)
//   - conversation memory pruning when a capability is attached
//
// Concrete modules construct a BaseAgent with an executor and register a
// factory with the loader registry.
package agent
