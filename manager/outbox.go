package manager

import (
	"context"
	"sync"

	"github.com/hupe1980/agentrt/core"
)

// outbox publishes the lifecycle events of one instance in the order they
// were queued. Queuing never blocks, so events produced while opMu is held are
// delivered on a pump goroutine that alone waits on slow subscribers.
type outbox struct {
	publish func(core.Event)

	mu        sync.Mutex
	pending   []core.Event
	pumping   bool
	queued    uint64
	published uint64
	progress  chan struct{} // closed and replaced whenever published advances
}

func newOutbox(publish func(core.Event)) *outbox {
	return &outbox{publish: publish, progress: make(chan struct{})}
}

// push queues e and returns the number of events queued so far.
func (o *outbox) push(e core.Event) uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = append(o.pending, e)
	o.queued++
	if !o.pumping {
		o.pumping = true
		go o.pump()
	}
	return o.queued
}

// mark returns the number of events queued so far.
func (o *outbox) mark() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.queued
}

func (o *outbox) pump() {
	for {
		o.mu.Lock()
		if len(o.pending) == 0 {
			o.pumping = false
			o.mu.Unlock()
			return
		}
		e := o.pending[0]
		o.pending[0] = core.Event{}
		o.pending = o.pending[1:]
		o.mu.Unlock()

		o.publish(e)

		o.mu.Lock()
		o.published++
		close(o.progress)
		o.progress = make(chan struct{})
		o.mu.Unlock()
	}
}

// wait blocks until the first n queued events have been published or ctx is
// done.
func (o *outbox) wait(ctx context.Context, n uint64) error {
	for {
		o.mu.Lock()
		if o.published >= n {
			o.mu.Unlock()
			return nil
		}
		progress := o.progress
		o.mu.Unlock()
		select {
		case <-progress:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// flush waits until everything queued so far has been published.
func (o *outbox) flush(ctx context.Context) error { return o.wait(ctx, o.mark()) }
