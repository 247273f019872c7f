package bridge

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrt/core"
)

func collect(t *testing.T, s *Subscription, n int) []core.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out := make([]core.Event, 0, n)
	for len(out) < n {
		e, ok := s.Next(ctx)
		require.True(t, ok, "expected %d events, got %d", n, len(out))
		out = append(out, e)
	}
	return out
}

func TestBridge_FanOutPreservesOrder(t *testing.T) {
	b := New()
	s1, err := b.Subscribe()
	require.NoError(t, err)
	s2, err := b.Subscribe()
	require.NoError(t, err)

	for i := 1; i <= 10; i++ {
		require.NoError(t, b.Publish(core.NewThoughtStepEvent("a", uint64(i), core.ActivityThinking, fmt.Sprint(i))))
	}

	for _, s := range []*Subscription{s1, s2} {
		got := collect(t, s, 10)
		for i, e := range got {
			assert.Equal(t, uint64(i+1), e.Seq)
		}
	}
}

func TestBridge_ConcurrentProducersPerAgentOrder(t *testing.T) {
	b := New(func(o *Options) { o.Capacity = 8 })
	s, err := b.Subscribe()
	require.NoError(t, err)

	const agents, perAgent = 4, 200
	var wg sync.WaitGroup
	for a := 0; a < agents; a++ {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			for i := 1; i <= perAgent; i++ {
				_ = b.Publish(core.NewThoughtStepEvent(name, uint64(i), core.ActivityThinking, ""))
			}
		}(fmt.Sprintf("agent-%d", a))
	}

	last := map[string]uint64{}
	got := collect(t, s, agents*perAgent)
	wg.Wait()
	for _, e := range got {
		assert.Greater(t, e.Seq, last[e.Agent], "per-agent order for %s", e.Agent)
		last[e.Agent] = e.Seq
	}
	assert.Zero(t, b.Dropped())
}

func TestBridge_TokenDropPolicy(t *testing.T) {
	b := New(func(o *Options) { o.Capacity = 3 })
	s, err := b.Subscribe()
	require.NoError(t, err)

	require.NoError(t, b.Publish(core.NewStateChangedEvent("a", 1, core.StateIdle, core.StateBusy, "")))
	require.NoError(t, b.Publish(core.NewTokenChunkEvent("a", 1, "t1")))
	require.NoError(t, b.Publish(core.NewTokenChunkEvent("a", 1, "t2")))
	// Full: t1 is the oldest same-run token and gets replaced.
	require.NoError(t, b.Publish(core.NewTokenChunkEvent("a", 1, "t3")))
	// Full and no token of agent b run 1 queued: the incoming token is dropped.
	require.NoError(t, b.Publish(core.NewTokenChunkEvent("b", 1, "x")))

	got := collect(t, s, 3)
	assert.Equal(t, core.EventStateChanged, got[0].Kind)
	assert.Equal(t, "t2", got[1].Text)
	assert.Equal(t, "t3", got[2].Text)
	assert.Equal(t, uint64(2), b.Dropped())
	assert.Equal(t, uint64(2), s.Dropped())
}

func TestBridge_HighPriorityBlocksInsteadOfDropping(t *testing.T) {
	b := New(func(o *Options) { o.Capacity = 1 })
	s, err := b.Subscribe()
	require.NoError(t, err)

	require.NoError(t, b.Publish(core.NewThoughtStepEvent("a", 1, core.ActivityThinking, "first")))

	published := make(chan struct{})
	go func() {
		_ = b.Publish(core.NewCompletedEvent("a", 1, "done", nil))
		close(published)
	}()

	select {
	case <-published:
		t.Fatal("high priority publish must wait for space")
	case <-time.After(50 * time.Millisecond):
	}

	got := collect(t, s, 2)
	<-published
	assert.Equal(t, "first", got[0].Text)
	assert.Equal(t, core.EventCompleted, got[1].Kind)
	assert.Zero(t, b.Dropped())
}

func TestBridge_PublishContextGivesUpOnFullQueue(t *testing.T) {
	b := New(func(o *Options) { o.Capacity = 1 })
	stalled, err := b.Subscribe()
	require.NoError(t, err)
	live, err := b.Subscribe()
	require.NoError(t, err)

	require.NoError(t, b.Publish(core.NewThoughtStepEvent("a", 1, core.ActivityThinking, "first")))
	_ = collect(t, live, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.NoError(t, b.PublishContext(ctx, core.NewCompletedEvent("a", 1, "done", nil)))

	got := collect(t, live, 1)
	assert.Equal(t, core.EventCompleted, got[0].Kind)
	assert.Equal(t, 1, stalled.Pending())
	assert.Equal(t, uint64(1), stalled.Dropped())
	assert.Zero(t, live.Dropped())
}

func TestBridge_CloseDrains(t *testing.T) {
	b := New()
	s, err := b.Subscribe()
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		require.NoError(t, b.Publish(core.NewThoughtStepEvent("a", uint64(i), "", "")))
	}
	require.NoError(t, b.Close())

	var got []core.Event
	for e := range s.Events() {
		got = append(got, e)
	}
	assert.Len(t, got, 3)
	assert.ErrorIs(t, b.Publish(core.NewErrorEvent("a", 4, nil)), ErrClosed)
	_, err = b.Subscribe()
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, b.Close())
}

func TestBridge_EventsIsRestartable(t *testing.T) {
	b := New()
	s, err := b.Subscribe()
	require.NoError(t, err)
	for i := 1; i <= 4; i++ {
		require.NoError(t, b.Publish(core.NewThoughtStepEvent("a", uint64(i), "", "")))
	}

	var first []uint64
	for e := range s.Events() {
		first = append(first, e.Seq)
		if len(first) == 2 {
			break
		}
	}
	require.NoError(t, b.Close())
	var second []uint64
	for e := range s.Events() {
		second = append(second, e.Seq)
	}
	assert.Equal(t, []uint64{1, 2}, first)
	assert.Equal(t, []uint64{3, 4}, second)
}

func TestSubscription_CloseReleasesBlockedProducer(t *testing.T) {
	b := New(func(o *Options) { o.Capacity = 1 })
	s, err := b.Subscribe()
	require.NoError(t, err)
	require.NoError(t, b.Publish(core.NewThoughtStepEvent("a", 1, "", "")))

	done := make(chan struct{})
	go func() {
		_ = b.Publish(core.NewCompletedEvent("a", 1, "", nil))
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	s.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("producer still blocked after unsubscribe")
	}
	assert.Equal(t, 0, b.Subscribers())
}

func TestBridge_ObserveAndClose(t *testing.T) {
	b := New()
	var (
		mu  sync.Mutex
		got []core.Event
	)
	_, err := b.Observe(core.ObserverFunc(func(e core.Event) {
		if e.Text == "panic" {
			panic("observer failure")
		}
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	}))
	require.NoError(t, err)

	require.NoError(t, b.Publish(core.NewThoughtStepEvent("a", 1, "", "one")))
	require.NoError(t, b.Publish(core.NewThoughtStepEvent("a", 1, "", "panic")))
	require.NoError(t, b.Publish(core.NewCompletedEvent("a", 1, "two", nil)))
	require.NoError(t, b.Close())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, "one", got[0].Text)
	assert.Equal(t, "two", got[1].Output)
}

func TestLatestRunOnly(t *testing.T) {
	var got []core.Event
	obs := LatestRunOnly(core.ObserverFunc(func(e core.Event) { got = append(got, e) }))

	obs.OnEvent(core.NewStateChangedEvent("a", 3, core.StateIdle, core.StateBusy, "run"))
	obs.OnEvent(core.NewTokenChunkEvent("a", 3, "old"))
	obs.OnEvent(core.NewStateChangedEvent("a", 4, core.StateBusy, core.StateIdle, "cancel"))
	obs.OnEvent(core.NewStateChangedEvent("a", 5, core.StateIdle, core.StateBusy, "run"))
	obs.OnEvent(core.NewTokenChunkEvent("a", 3, "late"))
	obs.OnEvent(core.NewTokenChunkEvent("a", 5, "new"))
	obs.OnEvent(core.NewTokenChunkEvent("b", 1, "other agent"))

	var texts []string
	for _, e := range got {
		if e.Kind == core.EventTokenChunk {
			texts = append(texts, e.Text)
		}
	}
	assert.Equal(t, []string{"old", "new", "other agent"}, texts)
	assert.Len(t, got, 6)
}
