package lifecycle

import (
	"sync"

	"github.com/hupe1980/agentrt/core"
)

// Trigger is a lifecycle input.
type Trigger string

const (
	Load               Trigger = "load"
	Loaded             Trigger = "loaded"
	LoadedNeedsSandbox Trigger = "loaded_needs_sandbox"
	LoadFailed         Trigger = "load_failed"
	SandboxReady       Trigger = "sandbox_ready"
	SandboxFailed      Trigger = "sandbox_failed"
	Run                Trigger = "run"
	RunCompleted       Trigger = "run_completed"
	RunFailed          Trigger = "run_failed"
	Cancel             Trigger = "cancel"
	Unload             Trigger = "unload"
	// Fault moves an IDLE agent to ERROR when a resource it depends on is
	// lost outside of a run (a sandbox that cannot be restored).
	Fault Trigger = "fault"
)

type edge struct {
	from    core.State
	trigger Trigger
}

var table = map[edge]core.State{
	{core.StateUnloaded, Load}:              core.StateLoading,
	{core.StateLoading, LoadedNeedsSandbox}: core.StateAttaching,
	{core.StateLoading, Loaded}:             core.StateIdle,
	{core.StateLoading, LoadFailed}:         core.StateError,
	{core.StateAttaching, SandboxReady}:     core.StateIdle,
	{core.StateAttaching, SandboxFailed}:    core.StateError,
	{core.StateIdle, Run}:                   core.StateBusy,
	{core.StateBusy, RunCompleted}:          core.StateIdle,
	{core.StateBusy, RunFailed}:             core.StateError,
	{core.StateBusy, Cancel}:                core.StateIdle,
	{core.StateIdle, Fault}:                 core.StateError,
	{core.StateIdle, Unload}:                core.StateStopped,
	{core.StateError, Unload}:               core.StateStopped,
}

// Triggers returns every trigger in table order.
func Triggers() []Trigger {
	return []Trigger{Load, Loaded, LoadedNeedsSandbox, LoadFailed, SandboxReady, SandboxFailed, Run, RunCompleted, RunFailed, Cancel, Unload, Fault}
}

// Target returns the state reached by firing t in from, if the pair is legal.
func Target(from core.State, t Trigger) (core.State, bool) {
	to, ok := table[edge{from, t}]
	return to, ok
}

// Machine is the lifecycle state machine of one agent instance.
type Machine struct {
	agent string
	emit  func(core.Event)

	mu    sync.Mutex
	state core.State
	seq   uint64
}

// New creates a machine in UNLOADED with sequence 0. emit receives the
// StateChanged event of every transition; nil discards them.
func New(agent string, emit func(core.Event)) *Machine {
	if emit == nil {
		emit = func(core.Event) {}
	}
	return &Machine{agent: agent, emit: emit, state: core.StateUnloaded}
}

// Fire applies trigger t. On success it returns the emitted StateChanged
// event, whose Seq is the new sequence number.
func (m *Machine) Fire(t Trigger, reason string) (core.Event, error) {
	m.mu.Lock()
	from := m.state
	to, ok := table[edge{from, t}]
	if !ok {
		m.mu.Unlock()
		return core.Event{}, &core.TransitionError{Agent: m.agent, From: from, Trigger: string(t)}
	}
	m.seq++
	m.state = to
	ev := core.NewStateChangedEvent(m.agent, m.seq, from, to, reason)
	m.mu.Unlock()

	m.emit(ev)
	return ev, nil
}

// State returns the current state.
func (m *Machine) State() core.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Seq returns the current transition sequence number.
func (m *Machine) Seq() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seq
}

// Snapshot returns state and sequence number read atomically together.
func (m *Machine) Snapshot() (core.State, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.seq
}

// Agent returns the name of the agent the machine belongs to.
func (m *Machine) Agent() string { return m.agent }
