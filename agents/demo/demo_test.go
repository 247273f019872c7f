package demo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/internal/testutil"
	"github.com/hupe1980/agentrt/loader"
	"github.com/hupe1980/agentrt/model"
)

func descriptor() *core.Descriptor {
	return core.NewDescriptor(core.Manifest{Name: "demo", Description: "Demo conversational agent.", Version: "0.1.0"}, "")
}

func TestDemo_ScriptWithoutSearch(t *testing.T) {
	a := New(descriptor())
	require.NoError(t, a.Initialize(context.Background(), &core.Environment{Name: "demo"}))
	assert.Equal(t, DisplayName, a.DisplayName())

	rec := &testutil.CallbackRecorder{}
	require.NoError(t, a.Run(context.Background(), core.RunRequest{Input: "gophers", Seq: 1}, rec))

	assert.True(t, rec.Has(`thought:The user asked "gophers".`))
	assert.True(t, rec.Has("tool_end:Search:no search capability is attached"))
	assert.Equal(t, "Here is what I found about gophers: no search capability is attached.", rec.Tokens())
	assert.Equal(t, 2, a.Memory().Len())
}

func TestDemo_ScriptUsesAttachedSearch(t *testing.T) {
	a := New(descriptor())
	require.NoError(t, a.Initialize(context.Background(), &core.Environment{Name: "demo"}))

	search := &testutil.StubCapability{CapName: SearchTool, CapKind: "tool", Result: "gophers are rodents"}
	rec := &testutil.CallbackRecorder{}
	err := a.Run(context.Background(), core.RunRequest{Input: "gophers", Capabilities: []core.Capability{search}}, rec)
	require.NoError(t, err)
	assert.Equal(t, 1, search.Calls())
	assert.Contains(t, rec.Tokens(), "gophers are rodents")
}

func TestDemo_ModelMode(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	llm.AddResponse("hi", "hello there")
	a := New(descriptor(), func(o *Options) { o.Model = llm })
	require.NoError(t, a.Initialize(context.Background(), &core.Environment{Name: "demo"}))

	rec := &testutil.CallbackRecorder{}
	require.NoError(t, a.Run(context.Background(), core.RunRequest{Input: "hi"}, rec))
	assert.Equal(t, "hello there", rec.Tokens())
	assert.True(t, rec.Has("complete:hello there"))
}

func TestRegister(t *testing.T) {
	reg := loader.NewRegistry()
	require.NoError(t, Register(reg))
	f, ok := reg.Lookup(Entry)
	require.True(t, ok)
	impl, err := f(descriptor())
	require.NoError(t, err)
	assert.Implements(t, (*core.Agent)(nil), impl)
	assert.Error(t, Register(reg))
}
