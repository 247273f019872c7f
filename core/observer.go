package core

// Observer consumes bridge events. OnEvent runs on the bridge's delivery
// goroutine for this observer and must not block for long.
type Observer interface {
	OnEvent(e Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(e Event)

// OnEvent calls f(e).
func (f ObserverFunc) OnEvent(e Event) { f(e) }
