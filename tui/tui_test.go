package tui

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/internal/testutil"
	"github.com/hupe1980/agentrt/loader"
	"github.com/hupe1980/agentrt/manager"
)

func newManager(t *testing.T) *manager.Manager {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "echo")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.yaml"),
		[]byte("name: echo\ndisplay_name: Echo Bot\ndescription: Echoes input.\nversion: 1.0.0\n"), 0o600))

	reg := loader.NewRegistry()
	reg.MustRegister("echo", func(*core.Descriptor) (any, error) { return &testutil.StubAgent{}, nil })
	mgr := manager.New(func(o *manager.Options) {
		o.Loader = loader.New(func(lo *loader.Options) {
			lo.Paths = []string{root}
			lo.Registry = reg
		})
	})
	t.Cleanup(func() { _ = mgr.Shutdown(context.Background()) })
	return mgr
}

// exec runs cmd synchronously and feeds its message back into m.
func exec(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	if msg := cmd(); msg != nil {
		m.Update(msg)
	}
}

func typeLine(m *Model, line string) tea.Cmd {
	m.input.SetValue(line)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

func TestModel_LoadAndStream(t *testing.T) {
	m := New(newManager(t))

	exec(t, m, typeLine(m, "/load echo"))
	require.NotNil(t, m.active)
	assert.Equal(t, "Echo Bot", m.activeTitle)
	assert.Contains(t, m.Transcript(), "loaded Echo Bot")

	m.Update(EventMsg{Event: core.NewStateChangedEvent("echo", 2, core.StateIdle, core.StateBusy, "run")})
	assert.Contains(t, m.header(), "BUSY")

	m.Update(EventMsg{Event: core.NewThoughtStepEvent("echo", 2, core.ActivityThinking, "pondering")})
	m.Update(EventMsg{Event: core.NewTokenChunkEvent("echo", 2, "hello ")})
	m.Update(EventMsg{Event: core.NewTokenChunkEvent("echo", 2, "world")})
	assert.Contains(t, m.Transcript(), "hello world")
	assert.Contains(t, m.header(), "llm processing")

	m.Update(EventMsg{Event: core.NewCompletedEvent("echo", 2, "hello world", &core.Usage{TotalTokens: 7})})
	m.Update(EventMsg{Event: core.NewStateChangedEvent("echo", 3, core.StateBusy, core.StateIdle, "completed")})

	out := m.Transcript()
	assert.Contains(t, out, "pondering")
	assert.Contains(t, out, "hello world")
	assert.Equal(t, 0, m.streaming.Len())
	assert.Equal(t, 7, m.usage.TotalTokens)
	assert.Contains(t, m.footer(), "tokens: 7")
}

func TestModel_ActivationUsesTitleFromCommand(t *testing.T) {
	mgr := newManager(t)
	m := New(mgr)
	inst, err := mgr.LoadByName(context.Background(), "echo")
	require.NoError(t, err)

	cmd := m.use("echo")
	require.NotNil(t, cmd)
	msg, ok := cmd().(opResultMsg)
	require.True(t, ok)
	assert.Equal(t, "Echo Bot", msg.title)
	assert.Same(t, inst, msg.activate)

	msg.title = "Renamed"
	m.Update(msg)
	assert.Equal(t, "Renamed", m.activeTitle, "the update loop never queries the instance for its name")
	assert.Equal(t, core.StateIdle, m.state)
}

func TestModel_RunsActiveAgent(t *testing.T) {
	mgr := newManager(t)
	m := New(mgr)
	exec(t, m, typeLine(m, "/load echo"))

	exec(t, m, typeLine(m, "ping"))
	assert.Contains(t, m.Transcript(), "ping")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, mgr.Wait(ctx, m.active))
	assert.Equal(t, core.StateIdle, m.active.State())
}

func TestModel_Errors(t *testing.T) {
	m := New(newManager(t))

	exec(t, m, typeLine(m, "hello"))
	assert.Contains(t, m.Transcript(), "no active agent")

	exec(t, m, typeLine(m, "/bogus"))
	assert.Contains(t, m.Transcript(), "unknown command /bogus")

	exec(t, m, typeLine(m, "/load missing"))
	assert.Nil(t, m.active)

	exec(t, m, typeLine(m, "/load echo"))
	exec(t, m, typeLine(m, "/attach docs"))
	assert.Contains(t, m.Transcript(), "no capabilities are configured")
}

func TestModel_AttachAndForget(t *testing.T) {
	docs := &testutil.StubCapability{CapName: "docs", CapKind: "retriever"}
	m := New(newManager(t), func(o *Options) {
		o.Capabilities = func(string) (core.Capability, error) { return docs, nil }
	})
	exec(t, m, typeLine(m, "/load echo"))
	exec(t, m, typeLine(m, "/attach docs"))
	assert.Contains(t, m.footer(), "capabilities: docs")

	exec(t, m, typeLine(m, "/detach docs"))
	assert.Contains(t, m.footer(), "capabilities: none")

	exec(t, m, typeLine(m, "/forget"))
	assert.Empty(t, m.entries)
}

func TestModel_IgnoresOtherAgents(t *testing.T) {
	m := New(newManager(t))
	exec(t, m, typeLine(m, "/load echo"))
	m.Update(EventMsg{Event: core.NewTokenChunkEvent("other", 5, "noise")})
	assert.NotContains(t, m.Transcript(), "noise")
}

func TestNewObserver_DropsStaleRuns(t *testing.T) {
	var got []tea.Msg
	obs := NewObserver(func(msg tea.Msg) { got = append(got, msg) })
	obs.OnEvent(core.NewStateChangedEvent("echo", 4, core.StateIdle, core.StateBusy, "run"))
	obs.OnEvent(core.NewTokenChunkEvent("echo", 2, "stale"))
	obs.OnEvent(core.NewTokenChunkEvent("echo", 4, "fresh"))
	require.Len(t, got, 2)
	assert.Equal(t, "fresh", got[1].(EventMsg).Event.Text)
}
