package testutil

import (
	"time"

	"github.com/hupe1980/agentrt/core"
)

// EventBuilder provides a fluent helper for constructing events in tests.
// Example:
//
//	ev := NewEventBuilder().Agent("demo").Seq(3).Token("hel").Build()
//
// Chain only the parts you need; sensible defaults are applied.
type EventBuilder struct {
	ev core.Event
}

// NewEventBuilder creates a builder for a ThoughtStep of agent "agent" at seq 1.
func NewEventBuilder() *EventBuilder {
	return &EventBuilder{ev: core.NewEvent(core.EventThoughtStep, "agent", 1)}
}

// Agent sets the originating agent (chainable).
func (b *EventBuilder) Agent(name string) *EventBuilder { b.ev.Agent = name; return b }

// Seq sets the sequence number (chainable).
func (b *EventBuilder) Seq(seq uint64) *EventBuilder { b.ev.Seq = seq; return b }

// ID overrides the generated event ID (chainable).
func (b *EventBuilder) ID(id string) *EventBuilder { b.ev.ID = id; return b }

// At overrides the timestamp (chainable).
func (b *EventBuilder) At(ts time.Time) *EventBuilder { b.ev.Timestamp = ts; return b }

// Transition makes the event a StateChanged from -> to (chainable).
func (b *EventBuilder) Transition(from, to core.State) *EventBuilder {
	b.ev.Kind, b.ev.From, b.ev.To = core.EventStateChanged, from, to
	return b
}

// Thought makes the event a ThoughtStep carrying text (chainable).
func (b *EventBuilder) Thought(text string) *EventBuilder {
	b.ev.Kind, b.ev.Text, b.ev.Activity = core.EventThoughtStep, text, core.ActivityThinking
	return b
}

// Token makes the event a TokenChunk carrying chunk (chainable).
func (b *EventBuilder) Token(chunk string) *EventBuilder {
	b.ev.Kind, b.ev.Text = core.EventTokenChunk, chunk
	return b
}

// Tool makes the event a ToolInvoked in the given phase (chainable).
func (b *EventBuilder) Tool(name string, phase core.ToolPhase) *EventBuilder {
	b.ev.Kind, b.ev.Tool, b.ev.Phase = core.EventToolInvoked, name, phase
	return b
}

// Error makes the event an Error carrying msg (chainable).
func (b *EventBuilder) Error(msg string) *EventBuilder {
	b.ev.Kind, b.ev.Err = core.EventError, msg
	return b
}

// Completed makes the event a Completed carrying output (chainable).
func (b *EventBuilder) Completed(output string) *EventBuilder {
	b.ev.Kind, b.ev.Output = core.EventCompleted, output
	return b
}

// Usage attaches token usage (chainable).
func (b *EventBuilder) Usage(u core.Usage) *EventBuilder { b.ev.Usage = &u; return b }

// Build returns the event value.
func (b *EventBuilder) Build() core.Event { return b.ev }
