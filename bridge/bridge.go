package bridge

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/logging"
)

// ErrClosed is returned by Publish and Subscribe after Close.
var ErrClosed = errors.New("bridge closed")

// DefaultCapacity is the per-subscriber queue size.
const DefaultCapacity = 256

// Publisher accepts events. It is the only bridge surface producers need.
type Publisher interface {
	Publish(e core.Event) error
}

// Options configures a Bridge.
type Options struct {
	// Capacity bounds every subscriber queue.
	Capacity int
	// Logger receives drop and observer panic diagnostics.
	Logger logging.Logger
}

// Bridge is a thread-safe, ordered fan-out channel of core.Events.
type Bridge struct {
	capacity int
	logger   logging.Logger

	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool

	pumps   sync.WaitGroup
	dropped atomic.Uint64
}

// New creates an open bridge.
func New(optFns ...func(o *Options)) *Bridge {
	opts := Options{Capacity: DefaultCapacity, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	return &Bridge{
		capacity: opts.Capacity,
		logger:   core.EnsureLogger(opts.Logger),
		subs:     make(map[uint64]*Subscription),
	}
}

// Publish delivers e to every current subscriber. High priority events block
// while a subscriber queue is full; token chunks never block.
func (b *Bridge) Publish(e core.Event) error {
	return b.PublishContext(context.Background(), e)
}

// PublishContext is like Publish but stops waiting for room once ctx is done.
// A high priority event that could not be queued by then is dropped for that
// subscriber and counted like a dropped token.
func (b *Bridge) PublishContext(ctx context.Context, e core.Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	subs := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		if n, _ := s.q.push(ctx, e); n > 0 {
			b.dropped.Add(uint64(n))
			s.dropped.Add(uint64(n))
			b.logger.Debug("bridge.event.dropped", "agent", e.Agent, "seq", e.Seq, "kind", string(e.Kind), "subscriber", s.id)
		}
	}
	return nil
}

// Subscribe registers a new subscriber. Events published before the call
// are not delivered to it.
func (b *Bridge) Subscribe() (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	b.nextID++
	s := &Subscription{id: b.nextID, b: b, q: newQueue(b.capacity)}
	b.subs[s.id] = s
	return s, nil
}

// Observe pumps a dedicated subscription into obs on its own goroutine until
// the subscription or the bridge is closed. A panicking observer is logged and
// keeps receiving subsequent events.
func (b *Bridge) Observe(obs core.Observer) (*Subscription, error) {
	s, err := b.Subscribe()
	if err != nil {
		return nil, err
	}
	b.pumps.Add(1)
	go func() {
		defer b.pumps.Done()
		for e := range s.Events() {
			b.deliver(obs, e)
		}
	}()
	return s, nil
}

func (b *Bridge) deliver(obs core.Observer, e core.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("bridge.observer.panic", "agent", e.Agent, "kind", string(e.Kind), "panic", fmt.Sprint(r))
		}
	}()
	obs.OnEvent(e)
}

// Close stops accepting events, lets every subscriber drain what is already
// queued and waits for observer pumps to return. It must not be called from
// inside an observer.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[uint64]*Subscription)
	b.mu.Unlock()

	for _, s := range subs {
		s.q.close(false)
	}
	b.pumps.Wait()
	return nil
}

// Dropped returns the number of token chunks dropped across all subscribers.
func (b *Bridge) Dropped() uint64 { return b.dropped.Load() }

// Subscribers returns the number of active subscriptions.
func (b *Bridge) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bridge) remove(id uint64) {
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
}

// Subscription is one subscriber's view of the bridge.
type Subscription struct {
	id      uint64
	b       *Bridge
	q       *queue
	dropped atomic.Uint64
	once    sync.Once
}

// Events returns a lazy sequence of events that ends once the subscription
// or the bridge is closed and the queue is drained. Breaking out of a range
// loop leaves unconsumed events queued, so ranging again resumes where the
// previous loop stopped.
func (s *Subscription) Events() iter.Seq[core.Event] {
	return func(yield func(core.Event) bool) {
		for {
			e, ok := s.q.pop(context.Background())
			if !ok || !yield(e) {
				return
			}
		}
	}
}

// Next blocks for the next event. It returns false when ctx is done or the
// subscription is closed and drained.
func (s *Subscription) Next(ctx context.Context) (core.Event, bool) {
	return s.q.pop(ctx)
}

// Pending returns the number of queued, unconsumed events.
func (s *Subscription) Pending() int { return s.q.len() }

// Dropped returns the number of events dropped for this subscriber.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Close unsubscribes and discards pending events. Producers blocked on this
// subscriber's full queue are released.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.q.close(true)
		s.b.remove(s.id)
	})
}
