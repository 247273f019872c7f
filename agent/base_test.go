package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/internal/testutil"
	"github.com/hupe1980/agentrt/logging"
	"github.com/hupe1980/agentrt/memory"
)

func testDescriptor() *core.Descriptor {
	return core.NewDescriptor(core.Manifest{Name: "demo", Description: "Demo agent", Version: "0.1.0"}, "/modules/demo")
}

func echoExecutor() core.Executor {
	return core.ExecutorFunc(func(_ context.Context, req core.RunRequest, cb core.Callbacks) error {
		cb.OnComplete("echo: " + req.Input)
		return nil
	})
}

func TestBaseAgent_Lifecycle(t *testing.T) {
	a := New(testDescriptor(), echoExecutor())
	cb := &testutil.CallbackRecorder{}

	err := a.Run(context.Background(), core.RunRequest{Input: "hi"}, cb)
	require.ErrorIs(t, err, ErrNotInitialized)

	env := &core.Environment{Name: "demo", Logger: logging.NoOpLogger{}}
	require.NoError(t, a.Initialize(context.Background(), env))
	assert.Same(t, env, a.Environment())

	require.NoError(t, a.Run(context.Background(), core.RunRequest{Input: "hi"}, cb))
	assert.Equal(t, []string{"complete:echo: hi"}, cb.Calls())

	require.NoError(t, a.Stop(context.Background()))
	require.NoError(t, a.Stop(context.Background()))
	assert.ErrorIs(t, a.Run(context.Background(), core.RunRequest{}, cb), ErrStopped)
	assert.ErrorIs(t, a.Initialize(context.Background(), env), ErrStopped)
}

func TestBaseAgent_Identity(t *testing.T) {
	a := New(testDescriptor(), echoExecutor())
	assert.Equal(t, "demo", a.Name())
	assert.Equal(t, "Demo agent", a.Description())
	assert.Equal(t, "Demo", a.DisplayName())

	b := New(testDescriptor(), echoExecutor(), func(o *Options) { o.DisplayName = "Demo QA" })
	assert.Equal(t, "Demo QA", b.DisplayName())
}

func TestBaseAgent_Hooks(t *testing.T) {
	var stopped bool
	a := New(testDescriptor(), nil, func(o *Options) {
		o.OnInitialize = func(_ context.Context, env *core.Environment) error {
			if env.Sandbox == nil {
				return errors.New("sandbox required")
			}
			return nil
		}
		o.OnStop = func(context.Context) error {
			stopped = true
			return nil
		}
	})

	err := a.Initialize(context.Background(), &core.Environment{})
	require.EqualError(t, err, "sandbox required")

	a.opts.OnInitialize = func(context.Context, *core.Environment) error { return nil }
	err = a.Initialize(context.Background(), &core.Environment{})
	require.EqualError(t, err, "agent has no executor")

	a.opts.OnInitialize = func(context.Context, *core.Environment) error {
		a.SetExecutor(echoExecutor())
		return nil
	}
	require.NoError(t, a.Initialize(context.Background(), &core.Environment{}))
	require.NoError(t, a.Stop(context.Background()))
	assert.True(t, stopped)
}

func TestBaseAgent_RunPropagatesExecutorError(t *testing.T) {
	a := New(testDescriptor(), core.ExecutorFunc(func(context.Context, core.RunRequest, core.Callbacks) error {
		return testutil.ErrBoom
	}))
	require.NoError(t, a.Initialize(context.Background(), &core.Environment{}))
	assert.ErrorIs(t, a.Run(context.Background(), core.RunRequest{}, core.NoOpCallbacks{}), testutil.ErrBoom)
}

func TestBaseAgent_CapabilityAttachedForgetsMemory(t *testing.T) {
	mem := memory.NewWindowMemory(4)
	mem.SaveExchange("search wikipedia", "I have no Wikipedia tool")
	mem.SaveExchange("hello", "hi")

	a := New(testDescriptor(), echoExecutor(), func(o *Options) { o.Memory = mem })
	require.NoError(t, a.Initialize(context.Background(), &core.Environment{}))

	a.CapabilityAttached(&testutil.StubCapability{CapName: "wikipedia"})
	assert.Equal(t, 2, mem.Len())
	assert.Same(t, mem, a.Memory())

	a.CapabilityDetached("wikipedia")
	assert.Equal(t, 2, mem.Len())
}
