// Package callback translates executor callback hooks into bridge events.
//
// An Adapter is bound to exactly one run of one agent and stamps every event
// it publishes with that run's sequence number. It guarantees at most one
// terminal event (Completed or Error) per run and ignores every hook once it
// has been sealed, so a run that outlives its drain cannot leak events into a
// later run.
package callback

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/agentrt/bridge"
	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/logging"
)

// Adapter implements core.Callbacks for a single run.
type Adapter struct {
	agent  string
	seq    uint64
	pub    bridge.Publisher
	logger logging.Logger

	terminated atomic.Bool
	sealed     atomic.Bool
	cancelled  atomic.Bool

	mu        sync.Mutex
	usage     core.Usage
	hasUsage  bool
	err       error
	output    string
	completed bool
	toolStart map[string]time.Time
}

var _ core.Callbacks = (*Adapter)(nil)

// New binds an adapter to agent run seq publishing into pub.
func New(agent string, seq uint64, pub bridge.Publisher, logger logging.Logger) *Adapter {
	return &Adapter{
		agent:     agent,
		seq:       seq,
		pub:       pub,
		logger:    logging.With(logger, "agent", agent, "seq", seq),
		toolStart: make(map[string]time.Time),
	}
}

// Seq returns the sequence number the adapter is bound to.
func (a *Adapter) Seq() uint64 { return a.seq }

func (a *Adapter) active() bool {
	return !a.sealed.Load() && !a.terminated.Load() && !a.cancelled.Load()
}

func (a *Adapter) publish(e core.Event) {
	if err := a.pub.Publish(e); err != nil {
		a.logger.Debug("callback.publish.failed", "kind", string(e.Kind), "error", err.Error())
	}
}

// OnStart implements core.Callbacks.
func (a *Adapter) OnStart(activity core.Activity, detail string) {
	if !a.active() {
		return
	}
	a.publish(core.NewThoughtStepEvent(a.agent, a.seq, activity, detail))
}

// OnThought implements core.Callbacks.
func (a *Adapter) OnThought(text string) {
	if !a.active() {
		return
	}
	a.publish(core.NewThoughtStepEvent(a.agent, a.seq, core.ActivityThinking, text))
}

// OnToolStart implements core.Callbacks.
func (a *Adapter) OnToolStart(tool, input string) {
	if !a.active() {
		return
	}
	a.mu.Lock()
	a.toolStart[tool] = time.Now()
	a.mu.Unlock()

	e := core.NewToolInvokedEvent(a.agent, a.seq, tool, core.ToolStarted)
	e.Input = input
	a.publish(e)
}

// OnToolEnd implements core.Callbacks.
func (a *Adapter) OnToolEnd(tool, output string) {
	if !a.active() {
		return
	}
	a.logger.Debug("callback.tool.end", "tool", tool, "duration", a.toolDuration(tool))
	e := core.NewToolInvokedEvent(a.agent, a.seq, tool, core.ToolFinished)
	e.Output = output
	a.publish(e)
}

// OnToolError implements core.Callbacks. Tool failures are not terminal; the
// executor decides whether the run goes on.
func (a *Adapter) OnToolError(tool string, err error) {
	if !a.active() {
		return
	}
	a.logger.Debug("callback.tool.error", "tool", tool, "duration", a.toolDuration(tool), "error", errString(err))
	e := core.NewToolInvokedEvent(a.agent, a.seq, tool, core.ToolFailed)
	e.Err = errString(err)
	a.publish(e)
}

func (a *Adapter) toolDuration(tool string) time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	start, ok := a.toolStart[tool]
	if !ok {
		return 0
	}
	delete(a.toolStart, tool)
	return time.Since(start)
}

// OnToken implements core.Callbacks. It never blocks the caller.
func (a *Adapter) OnToken(chunk string) {
	if !a.active() || chunk == "" {
		return
	}
	a.publish(core.NewTokenChunkEvent(a.agent, a.seq, chunk))
}

// OnUsage implements core.Callbacks.
func (a *Adapter) OnUsage(u core.Usage) {
	if a.sealed.Load() {
		return
	}
	a.mu.Lock()
	a.usage = a.usage.Add(u)
	a.hasUsage = true
	a.mu.Unlock()
}

// OnComplete implements core.Callbacks.
func (a *Adapter) OnComplete(output string) {
	if e, ok := a.complete(output); ok {
		a.publish(e)
	}
}

func (a *Adapter) complete(output string) (core.Event, bool) {
	if a.sealed.Load() || a.cancelled.Load() || !a.terminated.CompareAndSwap(false, true) {
		return core.Event{}, false
	}
	a.mu.Lock()
	a.output = output
	a.completed = true
	a.mu.Unlock()
	return core.NewCompletedEvent(a.agent, a.seq, output, a.Usage()), true
}

// OnError implements core.Callbacks. After MarkCancelled errors end the run
// silently: the cancellation itself is reported by the state transition.
// Errors other than context.Canceled are still logged.
func (a *Adapter) OnError(err error) {
	if e, ok := a.fail(err); ok {
		a.publish(e)
	}
}

func (a *Adapter) fail(err error) (core.Event, bool) {
	if err == nil || a.sealed.Load() {
		return core.Event{}, false
	}
	if a.cancelled.Load() {
		if !errors.Is(err, context.Canceled) {
			a.logger.Debug("callback.error.after_cancel", "error", err.Error())
		}
		a.terminated.Store(true)
		return core.Event{}, false
	}
	if !a.terminated.CompareAndSwap(false, true) {
		return core.Event{}, false
	}
	a.mu.Lock()
	a.err = err
	a.mu.Unlock()
	return core.NewErrorEvent(a.agent, a.seq, err), true
}

// MarkCancelled records that a cancel was requested for this run. Every
// later hook except OnUsage is ignored.
func (a *Adapter) MarkCancelled() { a.cancelled.Store(true) }

// Cancelled reports whether MarkCancelled was called.
func (a *Adapter) Cancelled() bool { return a.cancelled.Load() }

// Complete seals the adapter and returns the Completed event of a run that
// ended without a terminal hook. ok is false when the run already terminated.
// The event is not published; the caller owns its delivery.
func (a *Adapter) Complete(output string) (e core.Event, ok bool) {
	e, ok = a.complete(output)
	a.Seal()
	return e, ok
}

// Fail is like Complete for a failed run and returns its Error event.
func (a *Adapter) Fail(err error) (e core.Event, ok bool) {
	e, ok = a.fail(err)
	a.Seal()
	return e, ok
}

// Seal makes every later hook a no-op.
func (a *Adapter) Seal() { a.sealed.Store(true) }

// Sealed reports whether the adapter has been sealed.
func (a *Adapter) Sealed() bool { return a.sealed.Load() }

// Terminated reports whether a terminal hook has been observed.
func (a *Adapter) Terminated() bool { return a.terminated.Load() }

// Completed reports whether the run ended with OnComplete.
func (a *Adapter) Completed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.completed
}

// Err returns the error reported through OnError, if any.
func (a *Adapter) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Output returns the output reported through OnComplete.
func (a *Adapter) Output() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.output
}

// Usage returns the accumulated token usage, or nil if none was reported.
func (a *Adapter) Usage() *core.Usage {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.hasUsage {
		return nil
	}
	u := a.usage
	return &u
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
