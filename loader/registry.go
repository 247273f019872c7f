package loader

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/agentrt/core"
)

// Factory creates a fresh implementation for a descriptor. The result is
// checked against core.Agent by the loader, so factories may return any value.
type Factory func(desc *core.Descriptor) (any, error)

// Registry maps entry point names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under entry. Registering the same entry twice is an
// error.
func (r *Registry) Register(entry string, f Factory) error {
	if entry == "" || f == nil {
		return fmt.Errorf("register entry %q: name and factory are required", entry)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[entry]; exists {
		return fmt.Errorf("register entry %q: already registered", entry)
	}
	r.factories[entry] = f
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(entry string, f Factory) {
	if err := r.Register(entry, f); err != nil {
		panic(err)
	}
}

// Lookup returns the factory registered under entry.
func (r *Registry) Lookup(entry string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[entry]
	return f, ok
}

// Entries returns the registered entry names in sorted order.
func (r *Registry) Entries() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
