package core

// Callbacks is the hook surface an executor reports progress through. The
// runtime's callback adapter translates each hook into bridge events for the
// run's agent and sequence number.
//
// Hooks must be safe to call from the executor's goroutine. After the run has
// terminated (OnComplete, OnError or cancellation) further calls are ignored.
type Callbacks interface {
	// OnStart marks the beginning of a processing step (model call, chain).
	OnStart(activity Activity, detail string)
	// OnThought reports an intermediate reasoning step or action decision.
	OnThought(text string)
	// OnToolStart reports that a capability is about to be invoked.
	OnToolStart(tool, input string)
	// OnToolEnd reports a capability result.
	OnToolEnd(tool, output string)
	// OnToolError reports a capability failure.
	OnToolError(tool string, err error)
	// OnToken streams one output fragment.
	OnToken(chunk string)
	// OnUsage accumulates model token accounting for the run.
	OnUsage(u Usage)
	// OnComplete reports the final output. It is terminal.
	OnComplete(output string)
	// OnError reports a failure. It is terminal.
	OnError(err error)
}

// NoOpCallbacks ignores every hook.
type NoOpCallbacks struct{}

func (NoOpCallbacks) OnStart(Activity, string)   {}
func (NoOpCallbacks) OnThought(string)           {}
func (NoOpCallbacks) OnToolStart(string, string) {}
func (NoOpCallbacks) OnToolEnd(string, string)   {}
func (NoOpCallbacks) OnToolError(string, error)  {}
func (NoOpCallbacks) OnToken(string)             {}
func (NoOpCallbacks) OnUsage(Usage)              {}
func (NoOpCallbacks) OnComplete(string)          {}
func (NoOpCallbacks) OnError(error)              {}
