// Package executor contains task-execution backends for agents. An executor
// receives one run request plus a callback sink and reports every step of the
// run (model calls, thoughts, capability invocations, streamed tokens) through
// core.Callbacks.
//
// Two backends are provided:
//   - Model drives a language model in a tool-calling loop over the
//     capabilities attached to the run.
//   - Scripted replays a fixed script, which keeps demos and tests free of
//     network access.
//
// Both check the run context between steps; a cancelled run returns
// ctx.Err() without reporting a terminal callback.
package executor
