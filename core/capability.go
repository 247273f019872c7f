package core

import "context"

// Capability is an externally owned tool or knowledge index an agent may
// invoke during a run. The manager only borrows capabilities: detaching one
// from an agent never closes it, and the same capability may be attached to
// several agents at once.
type Capability interface {
	// Name is the unique identifier used for attach/detach and tool selection.
	Name() string
	// Description tells a model when to use the capability.
	Description() string
	// Invoke runs the capability with a free-text query.
	Invoke(ctx context.Context, query string) (string, error)
}

// Parameterized is implemented by capabilities that accept structured
// arguments described by a JSON schema.
type Parameterized interface {
	Capability
	Parameters() map[string]any
}

// Kinded is implemented by capabilities that declare a kind ("retriever",
// "tool") so a manifest can restrict what may be attached.
type Kinded interface {
	Kind() string
}

// KindOf returns the declared kind of c, or "" when it declares none.
func KindOf(c Capability) string {
	if k, ok := c.(Kinded); ok {
		return k.Kind()
	}
	return ""
}
