package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_Constructors(t *testing.T) {
	sc := NewStateChangedEvent("demo", 2, StateIdle, StateBusy, "run")
	assert.Equal(t, EventStateChanged, sc.Kind)
	assert.Equal(t, "demo", sc.Agent)
	assert.Equal(t, uint64(2), sc.Seq)
	assert.Equal(t, StateIdle, sc.From)
	assert.Equal(t, StateBusy, sc.To)
	assert.NotEmpty(t, sc.ID)
	assert.False(t, sc.Timestamp.IsZero())

	tool := NewToolInvokedEvent("demo", 2, "search", ToolStarted)
	assert.Equal(t, ActivityToolUsing, tool.Activity)
	assert.Equal(t, ToolStarted, tool.Phase)

	tok := NewTokenChunkEvent("demo", 2, "hel")
	assert.Equal(t, "hel", tok.Text)

	errEv := NewErrorEvent("demo", 2, errors.New("boom"))
	assert.Equal(t, "boom", errEv.Err)
	assert.Empty(t, NewErrorEvent("demo", 2, nil).Err)

	done := NewCompletedEvent("demo", 2, "out", &Usage{TotalTokens: 3})
	require.NotNil(t, done.Usage)
	assert.Equal(t, 3, done.Usage.TotalTokens)

	assert.NotEqual(t, sc.ID, tool.ID)
}

func TestEvent_Priority(t *testing.T) {
	for _, k := range []EventKind{EventStateChanged, EventThoughtStep, EventToolInvoked, EventError, EventCompleted} {
		assert.True(t, NewEvent(k, "a", 1).IsHighPriority(), k)
	}
	assert.False(t, NewEvent(EventTokenChunk, "a", 1).IsHighPriority())
}

func TestEvent_TerminalAndStale(t *testing.T) {
	assert.True(t, NewEvent(EventCompleted, "a", 1).IsTerminal())
	assert.True(t, NewEvent(EventError, "a", 1).IsTerminal())
	assert.False(t, NewEvent(EventTokenChunk, "a", 1).IsTerminal())

	e := NewTokenChunkEvent("a", 3, "x")
	assert.True(t, e.IsStale(4))
	assert.False(t, e.IsStale(3))
	assert.False(t, e.IsStale(2))
}

func TestUsage_Add(t *testing.T) {
	u := Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3}.Add(Usage{PromptTokens: 4, CompletionTokens: 5, TotalTokens: 9})
	assert.Equal(t, Usage{PromptTokens: 5, CompletionTokens: 7, TotalTokens: 12}, u)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "IDLE", StateIdle.String())
	assert.Equal(t, "UNKNOWN", State(99).String())
	assert.True(t, StateStopped.IsTerminal())
	assert.False(t, StateError.IsTerminal())
	assert.Len(t, States(), 7)
}
