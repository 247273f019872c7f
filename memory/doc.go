// Package memory provides conversation memory for agents. WindowMemory keeps
// the most recent exchanges of a conversation and can forget every message
// that mentions a term, which agents use when a new capability is attached so
// stale answers about it do not leak into later prompts.
package memory
