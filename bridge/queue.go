package bridge

import (
	"context"
	"sync"

	"github.com/hupe1980/agentrt/core"
)

// queue is a bounded FIFO guarded by a mutex and a condition variable that is
// broadcast on every push, pop and close.
type queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []core.Event
	cap    int
	closed bool
}

func newQueue(capacity int) *queue {
	q := &queue{cap: capacity, buf: make([]core.Event, 0, capacity)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push enqueues e and reports how many events were dropped (0 or 1) and
// whether the queue accepted anything at all. A high priority event waits for
// room until the queue is closed or ctx is done, in which case it is dropped.
func (q *queue) push(ctx context.Context, e core.Event) (dropped int, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0, false
	}
	if len(q.buf) < q.cap {
		q.append(e)
		return 0, true
	}
	if !e.IsHighPriority() {
		for i, old := range q.buf {
			if old.Kind == core.EventTokenChunk && old.Agent == e.Agent && old.Seq == e.Seq {
				q.buf = append(q.buf[:i], q.buf[i+1:]...)
				q.append(e)
				return 1, true
			}
		}
		return 1, true
	}
	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			q.mu.Lock()
			q.cond.Broadcast()
			q.mu.Unlock()
		})
		defer stop()
	}
	for len(q.buf) >= q.cap && !q.closed && ctx.Err() == nil {
		q.cond.Wait()
	}
	if q.closed {
		return 0, false
	}
	if len(q.buf) >= q.cap {
		return 1, false
	}
	q.append(e)
	return 0, true
}

func (q *queue) append(e core.Event) {
	q.buf = append(q.buf, e)
	q.cond.Broadcast()
}

// pop blocks until an event is available, the queue is closed and drained, or
// ctx is done.
func (q *queue) pop(ctx context.Context) (core.Event, bool) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.buf) == 0 && !q.closed && ctx.Err() == nil {
		q.cond.Wait()
	}
	if len(q.buf) == 0 {
		return core.Event{}, false
	}
	e := q.buf[0]
	q.buf[0] = core.Event{}
	q.buf = q.buf[1:]
	if len(q.buf) == 0 {
		q.buf = q.buf[:0:0]
	}
	q.cond.Broadcast()
	return e, true
}

// close stops accepting events. With discard the pending events are dropped,
// otherwise they stay available to pop.
func (q *queue) close(discard bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	n := 0
	if discard {
		n = len(q.buf)
		q.buf = nil
	}
	q.cond.Broadcast()
	return n
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}
