package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/agentrt/core"
)

// Recorder is a thread-safe core.Observer that stores every event.
type Recorder struct {
	mu     sync.Mutex
	events []core.Event
	notify chan struct{}
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{}, 1)}
}

// OnEvent implements core.Observer.
func (r *Recorder) OnEvent(e core.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Event(nil), r.events...)
}

// Filter returns the recorded events for which keep returns true.
func (r *Recorder) Filter(keep func(core.Event) bool) []core.Event {
	var out []core.Event
	for _, e := range r.Events() {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// OfKind returns the recorded events of the given kind.
func (r *Recorder) OfKind(kind core.EventKind) []core.Event {
	return r.Filter(func(e core.Event) bool { return e.Kind == kind })
}

// States returns the target states of all recorded StateChanged events.
func (r *Recorder) States() []core.State {
	var out []core.State
	for _, e := range r.OfKind(core.EventStateChanged) {
		out = append(out, e.To)
	}
	return out
}

// WaitFor blocks until an event satisfying match is recorded or timeout
// elapses, failing the test in the latter case.
func (r *Recorder) WaitFor(t testing.TB, timeout time.Duration, match func(core.Event) bool) core.Event {
	t.Helper()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		for _, e := range r.Events() {
			if match(e) {
				return e
			}
		}
		select {
		case <-r.notify:
		case <-deadline.C:
			t.Fatalf("timed out after %s waiting for event", timeout)
			return core.Event{}
		}
	}
}

// IsKind returns a matcher for events of the given kind.
func IsKind(kind core.EventKind) func(core.Event) bool {
	return func(e core.Event) bool { return e.Kind == kind }
}

// IsTransitionTo returns a matcher for StateChanged events entering s.
func IsTransitionTo(s core.State) func(core.Event) bool {
	return func(e core.Event) bool { return e.Kind == core.EventStateChanged && e.To == s }
}
