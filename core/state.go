package core

// State is the lifecycle state of an agent instance.
//
//	UNLOADED → LOADING → (ATTACHING →) IDLE ⇄ BUSY
//	BUSY → ERROR, IDLE → ERROR
//	IDLE | ERROR → STOPPED (terminal)
type State int

const (
	// StateUnloaded is the initial state of a freshly created instance.
	StateUnloaded State = iota
	// StateLoading is entered while the implementation is resolved and initialized.
	StateLoading
	// StateAttaching is entered only by agents that declare a sandbox requirement.
	StateAttaching
	// StateIdle means the agent is ready to accept a run.
	StateIdle
	// StateBusy means exactly one run is in flight.
	StateBusy
	// StateError means the agent failed and can only be unloaded.
	StateError
	// StateStopped is terminal; every operation is rejected.
	StateStopped
)

var stateNames = map[State]string{
	StateUnloaded:  "UNLOADED",
	StateLoading:   "LOADING",
	StateAttaching: "ATTACHING",
	StateIdle:      "IDLE",
	StateBusy:      "BUSY",
	StateError:     "ERROR",
	StateStopped:   "STOPPED",
}

// String returns the upper-case state name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// IsTerminal reports whether no further transition can leave the state.
func (s State) IsTerminal() bool { return s == StateStopped }

// States returns every defined state in declaration order.
func States() []State {
	return []State{StateUnloaded, StateLoading, StateAttaching, StateIdle, StateBusy, StateError, StateStopped}
}

// Activity is an informational sub-state describing what a BUSY agent is doing.
// It never participates in transition validation.
type Activity string

const (
	ActivityNone          Activity = ""
	ActivityThinking      Activity = "thinking"
	ActivityLLMProcessing Activity = "llm_processing"
	ActivityToolUsing     Activity = "tool_using"
)
