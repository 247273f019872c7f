package testutil

import (
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/agentrt/core"
)

// CallbackRecorder is a core.Callbacks that records every hook as a compact
// "hook:args" string.
type CallbackRecorder struct {
	mu     sync.Mutex
	calls  []string
	tokens strings.Builder
	usage  core.Usage
}

var _ core.Callbacks = (*CallbackRecorder)(nil)

func (r *CallbackRecorder) record(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

// OnStart implements core.Callbacks.
func (r *CallbackRecorder) OnStart(activity core.Activity, detail string) {
	r.record("start:%s:%s", activity, detail)
}

// OnThought implements core.Callbacks.
func (r *CallbackRecorder) OnThought(text string) { r.record("thought:%s", text) }

// OnToolStart implements core.Callbacks.
func (r *CallbackRecorder) OnToolStart(tool, input string) { r.record("tool_start:%s:%s", tool, input) }

// OnToolEnd implements core.Callbacks.
func (r *CallbackRecorder) OnToolEnd(tool, output string) { r.record("tool_end:%s:%s", tool, output) }

// OnToolError implements core.Callbacks.
func (r *CallbackRecorder) OnToolError(tool string, err error) {
	r.record("tool_error:%s:%v", tool, err)
}

// OnToken implements core.Callbacks. Tokens are accumulated, not recorded.
func (r *CallbackRecorder) OnToken(chunk string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens.WriteString(chunk)
}

// OnUsage implements core.Callbacks.
func (r *CallbackRecorder) OnUsage(u core.Usage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usage = r.usage.Add(u)
}

// OnComplete implements core.Callbacks.
func (r *CallbackRecorder) OnComplete(output string) { r.record("complete:%s", output) }

// OnError implements core.Callbacks.
func (r *CallbackRecorder) OnError(err error) { r.record("error:%v", err) }

// Calls returns the recorded hooks.
func (r *CallbackRecorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Has reports whether a recorded hook starts with prefix.
func (r *CallbackRecorder) Has(prefix string) bool {
	for _, c := range r.Calls() {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

// Tokens returns the concatenated streamed tokens.
func (r *CallbackRecorder) Tokens() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tokens.String()
}

// Usage returns the accumulated usage.
func (r *CallbackRecorder) Usage() core.Usage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usage
}
