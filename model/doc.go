// Package model defines the provider-neutral model interface used by the
// model-driven executor, together with a MockModel for tests and examples.
//
// Provider adapters live in sub-packages (openai, anthropic) and translate
// Request/Response to and from the vendor SDKs, including streaming deltas,
// tool calls and token usage.
package model
