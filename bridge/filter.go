package bridge

import (
	"sync"

	"github.com/hupe1980/agentrt/core"
)

// LatestRunOnly wraps obs so that run events (everything except
// StateChanged) older than the most recent run of their agent are discarded.
// The current run of an agent is learned from StateChanged events entering
// BUSY.
func LatestRunOnly(obs core.Observer) core.Observer {
	f := &latestRun{next: obs, latest: make(map[string]uint64)}
	return core.ObserverFunc(f.OnEvent)
}

type latestRun struct {
	next core.Observer

	mu     sync.Mutex
	latest map[string]uint64
}

func (f *latestRun) OnEvent(e core.Event) {
	f.mu.Lock()
	if e.Kind == core.EventStateChanged {
		if e.To == core.StateBusy && e.Seq > f.latest[e.Agent] {
			f.latest[e.Agent] = e.Seq
		}
		f.mu.Unlock()
		f.next.OnEvent(e)
		return
	}
	stale := e.IsStale(f.latest[e.Agent])
	f.mu.Unlock()
	if !stale {
		f.next.OnEvent(e)
	}
}
