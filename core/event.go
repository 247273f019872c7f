package core

import (
	"time"

	"github.com/google/uuid"
)

// EventKind tags the variant carried by an Event.
type EventKind string

const (
	// EventStateChanged reports a lifecycle transition (From -> To).
	EventStateChanged EventKind = "state_changed"
	// EventThoughtStep reports an intermediate reasoning step of the executor.
	EventThoughtStep EventKind = "thought_step"
	// EventToolInvoked reports a capability invocation (started, finished or failed).
	EventToolInvoked EventKind = "tool_invoked"
	// EventTokenChunk carries a streamed output fragment. It is the only
	// low-priority kind and may be dropped under backpressure.
	EventTokenChunk EventKind = "token_chunk"
	// EventError reports a run or lifecycle failure.
	EventError EventKind = "error"
	// EventCompleted reports the successful end of a run.
	EventCompleted EventKind = "completed"
)

// ToolPhase distinguishes the stages of a capability invocation.
type ToolPhase string

const (
	ToolStarted  ToolPhase = "started"
	ToolFinished ToolPhase = "finished"
	ToolFailed   ToolPhase = "failed"
)

// Usage aggregates model token accounting for one run.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add returns the element-wise sum of two usage records.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
	}
}

// Event is an immutable notification about a single agent instance. Every
// event carries the originating agent name and the transition sequence number
// current at emission time; consumers that only care about the latest run use
// Seq to discard stale notifications (see IsStale).
//
// Fields beyond Kind/Agent/Seq are populated depending on the kind:
//
//	StateChanged: From, To, Reason
//	ThoughtStep:  Text, Activity
//	ToolInvoked:  Tool, Phase, Input, Output, Err
//	TokenChunk:   Text
//	Error:        Err
//	Completed:    Output, Usage
type Event struct {
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	Agent     string    `json:"agent"`
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`

	From     State    `json:"from,omitempty"`
	To       State    `json:"to,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	Activity Activity `json:"activity,omitempty"`

	Text   string    `json:"text,omitempty"`
	Tool   string    `json:"tool,omitempty"`
	Phase  ToolPhase `json:"phase,omitempty"`
	Input  string    `json:"input,omitempty"`
	Output string    `json:"output,omitempty"`
	Err    string    `json:"error,omitempty"`
	Usage  *Usage    `json:"usage,omitempty"`
}

// NewID generates a new unique identifier for events.
func NewID() string { return uuid.NewString() }

// NewEvent creates a bare event of the given kind stamped with a fresh id and
// a UTC timestamp. Prefer the kind specific constructors below.
func NewEvent(kind EventKind, agent string, seq uint64) Event {
	return Event{
		ID:        NewID(),
		Kind:      kind,
		Agent:     agent,
		Seq:       seq,
		Timestamp: time.Now().UTC(),
	}
}

// NewStateChangedEvent reports a transition from -> to.
func NewStateChangedEvent(agent string, seq uint64, from, to State, reason string) Event {
	e := NewEvent(EventStateChanged, agent, seq)
	e.From, e.To, e.Reason = from, to, reason
	return e
}

// NewThoughtStepEvent reports an intermediate reasoning step.
func NewThoughtStepEvent(agent string, seq uint64, activity Activity, text string) Event {
	e := NewEvent(EventThoughtStep, agent, seq)
	e.Activity, e.Text = activity, text
	return e
}

// NewToolInvokedEvent reports one phase of a capability invocation.
func NewToolInvokedEvent(agent string, seq uint64, tool string, phase ToolPhase) Event {
	e := NewEvent(EventToolInvoked, agent, seq)
	e.Tool, e.Phase = tool, phase
	e.Activity = ActivityToolUsing
	return e
}

// NewTokenChunkEvent carries one streamed output fragment.
func NewTokenChunkEvent(agent string, seq uint64, chunk string) Event {
	e := NewEvent(EventTokenChunk, agent, seq)
	e.Text = chunk
	e.Activity = ActivityLLMProcessing
	return e
}

// NewErrorEvent reports a failure. A nil err yields an empty message.
func NewErrorEvent(agent string, seq uint64, err error) Event {
	e := NewEvent(EventError, agent, seq)
	if err != nil {
		e.Err = err.Error()
	}
	return e
}

// NewCompletedEvent reports the end of a run with its final output.
func NewCompletedEvent(agent string, seq uint64, output string, usage *Usage) Event {
	e := NewEvent(EventCompleted, agent, seq)
	e.Output, e.Usage = output, usage
	return e
}

// IsHighPriority reports whether the event must never be dropped by the
// bridge. Only token chunks are low priority.
func (e Event) IsHighPriority() bool { return e.Kind != EventTokenChunk }

// IsTerminal reports whether the event ends a run (Completed or Error).
func (e Event) IsTerminal() bool { return e.Kind == EventCompleted || e.Kind == EventError }

// IsStale reports whether the event belongs to a run older than the one
// started at sequence number current.
func (e Event) IsStale(current uint64) bool { return e.Seq < current }
