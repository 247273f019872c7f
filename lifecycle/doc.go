// Package lifecycle implements the per-agent state machine.
//
// A Machine holds the current core.State, a monotonically increasing
// transition sequence number and a single write lock. Every successful Fire
// locks, validates the (state, trigger) pair against the transition table,
// increments the sequence, mutates the state, unlocks and only then emits a
// StateChanged event, so a slow event consumer never blocks the machine.
//
// Illegal pairs return a *core.TransitionError (errors.Is ErrInvalidTransition)
// and leave state and sequence untouched.
package lifecycle
