package manager

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/agentrt/callback"
	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/lifecycle"
)

// Instance is a descriptor bound to its state machine, its attached
// capabilities and an optional sandbox. All mutable fields are guarded by
// opMu, which serializes lifecycle operations on this instance. Events
// produced under opMu go through the outbox and are never published while
// opMu is held.
type Instance struct {
	desc    *core.Descriptor
	machine *lifecycle.Machine
	events  *outbox

	opMu     sync.Mutex
	agent    core.Agent
	caps     map[string]core.Capability
	capOrder []string
	sandbox  core.Sandbox
	run      *activeRun
	lastErr  error
}

type activeRun struct {
	seq      uint64
	cancel   context.CancelFunc
	done     chan struct{}
	adapter  *callback.Adapter
	started  time.Time
	tornDown bool // sandbox torn down to force the run to stop; guarded by opMu
}

func newInstance(desc *core.Descriptor, publish func(core.Event)) *Instance {
	events := newOutbox(publish)
	return &Instance{
		desc:    desc,
		machine: lifecycle.New(desc.Name(), func(e core.Event) { events.push(e) }),
		events:  events,
		caps:    make(map[string]core.Capability),
	}
}

// Name returns the agent name.
func (i *Instance) Name() string { return i.desc.Name() }

// DisplayName returns the human readable name, preferring the one reported by
// the implementation.
func (i *Instance) DisplayName() string {
	i.opMu.Lock()
	agent := i.agent
	i.opMu.Unlock()
	if n, ok := agent.(core.Named); ok && n.DisplayName() != "" {
		return n.DisplayName()
	}
	return i.desc.DisplayName()
}

// Descriptor returns the immutable module identity.
func (i *Instance) Descriptor() *core.Descriptor { return i.desc }

// State returns the current lifecycle state.
func (i *Instance) State() core.State { return i.machine.State() }

// Seq returns the current transition sequence number.
func (i *Instance) Seq() uint64 { return i.machine.Seq() }

// Capabilities returns the names of the attached capabilities in attach order.
func (i *Instance) Capabilities() []string {
	i.opMu.Lock()
	defer i.opMu.Unlock()
	return append([]string(nil), i.capOrder...)
}

// Err returns the last load or execution error, if any.
func (i *Instance) Err() error {
	i.opMu.Lock()
	defer i.opMu.Unlock()
	return i.lastErr
}

// HasSandbox reports whether a sandbox is bound to the instance.
func (i *Instance) HasSandbox() bool {
	i.opMu.Lock()
	defer i.opMu.Unlock()
	return i.sandbox != nil
}

// capSnapshot must be called with opMu held.
func (i *Instance) capSnapshot() []core.Capability {
	out := make([]core.Capability, 0, len(i.capOrder))
	for _, name := range i.capOrder {
		out = append(out, i.caps[name])
	}
	return out
}

// removeCap must be called with opMu held.
func (i *Instance) removeCap(name string) {
	delete(i.caps, name)
	for idx, n := range i.capOrder {
		if n == name {
			i.capOrder = append(i.capOrder[:idx], i.capOrder[idx+1:]...)
			break
		}
	}
}

// capRefs counts how many instances hold each capability.
type capRefs struct {
	mu   sync.Mutex
	refs map[string]int
}

func (c *capRefs) inc(name string) {
	c.mu.Lock()
	c.refs[name]++
	c.mu.Unlock()
}

func (c *capRefs) dec(name string) {
	c.mu.Lock()
	if c.refs[name] <= 1 {
		delete(c.refs, name)
	} else {
		c.refs[name]--
	}
	c.mu.Unlock()
}

func (c *capRefs) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refs[name]
}
