package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hupe1980/agentrt/bridge"
	"github.com/hupe1980/agentrt/core"
)

// EventMsg delivers a bridge event to the Bubble Tea update loop.
type EventMsg struct{ Event core.Event }

// NewObserver returns an observer forwarding events to send, typically
// (*tea.Program).Send. Events of runs superseded by a newer run of the same
// agent are dropped.
func NewObserver(send func(tea.Msg)) core.Observer {
	return bridge.LatestRunOnly(core.ObserverFunc(func(e core.Event) {
		send(EventMsg{Event: e})
	}))
}
