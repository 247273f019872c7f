package loader

import (
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/logging"
)

// Options configures a Loader.
type Options struct {
	// Paths are scanned in order; the first module with a given name wins.
	Paths []string
	// Registry resolves entry points. Required for Load.
	Registry *Registry
	Logger   logging.Logger
}

// Loader discovers module descriptors and instantiates their implementations.
type Loader struct {
	paths    []string
	registry *Registry
	logger   logging.Logger
}

// New creates a Loader.
func New(optFns ...func(o *Options)) *Loader {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	return &Loader{
		paths:    append([]string(nil), opts.Paths...),
		registry: opts.Registry,
		logger:   core.EnsureLogger(opts.Logger),
	}
}

// Registry returns the registry used to resolve entry points.
func (l *Loader) Registry() *Registry { return l.registry }

// Paths returns the configured module paths.
func (l *Loader) Paths() []string { return append([]string(nil), l.paths...) }

// Discover lazily walks the module paths and yields one descriptor per valid
// module, or an error for every module (or path) that could not be read.
// Each call re-reads the filesystem, so the sequence can be iterated again
// to pick up changes.
func (l *Loader) Discover() iter.Seq2[*core.Descriptor, error] {
	return func(yield func(*core.Descriptor, error) bool) {
		seen := make(map[string]string)
		for _, root := range l.paths {
			entries, err := os.ReadDir(root)
			if err != nil {
				if !yield(nil, fmt.Errorf("read module path %s: %w", root, err)) {
					return
				}
				continue
			}
			for _, entry := range entries {
				name := entry.Name()
				if !entry.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
					continue
				}
				dir := filepath.Join(root, name)
				m, _, err := ReadManifest(dir)
				if err != nil {
					l.logger.Warn("loader.manifest.invalid", "module", name, "error", err.Error())
					if !yield(nil, err) {
						return
					}
					continue
				}
				if prev, dup := seen[m.Name]; dup {
					err := &core.ManifestError{Module: name, Field: "name", Reason: "duplicate of module at " + prev}
					l.logger.Warn("loader.manifest.duplicate", "module", name, "first", prev)
					if !yield(nil, err) {
						return
					}
					continue
				}
				seen[m.Name] = dir
				l.logger.Debug("loader.module.discovered", "module", name, "version", m.Version)
				if !yield(core.NewDescriptor(*m, dir), nil) {
					return
				}
			}
		}
	}
}

// ScanResult is the outcome of a full discovery pass.
type ScanResult struct {
	Descriptors []*core.Descriptor
	Errors      []error
}

// Lookup returns the descriptor with the given name.
func (r ScanResult) Lookup(name string) (*core.Descriptor, bool) {
	for _, d := range r.Descriptors {
		if d.Name() == name {
			return d, true
		}
	}
	return nil, false
}

// Scan runs Discover to completion.
func (l *Loader) Scan() ScanResult {
	var res ScanResult
	for d, err := range l.Discover() {
		if err != nil {
			res.Errors = append(res.Errors, err)
			continue
		}
		res.Descriptors = append(res.Descriptors, d)
	}
	return res
}

// Find returns the descriptor of the named module.
func (l *Loader) Find(name string) (*core.Descriptor, error) {
	for d, err := range l.Discover() {
		if err == nil && d.Name() == name {
			return d, nil
		}
	}
	return nil, &core.LoadError{Agent: name, Reason: "module not found"}
}

// Load resolves the descriptor's entry point and instantiates it. The result
// is not initialized. Failures are *core.LoadError.
func (l *Loader) Load(ctx context.Context, desc *core.Descriptor) (core.Agent, error) {
	if desc == nil {
		return nil, &core.LoadError{Reason: "nil descriptor"}
	}
	if err := ctx.Err(); err != nil {
		return nil, &core.LoadError{Agent: desc.Name(), Reason: "cancelled", Err: err}
	}
	factory, ok := l.registry.Lookup(desc.Entry())
	if !ok {
		return nil, &core.LoadError{Agent: desc.Name(), Reason: fmt.Sprintf("entry point %q not registered", desc.Entry())}
	}
	impl, err := callFactory(factory, desc)
	if err != nil {
		return nil, &core.LoadError{Agent: desc.Name(), Reason: "factory failed", Err: err}
	}
	agent, ok := impl.(core.Agent)
	if !ok {
		return nil, &core.LoadError{Agent: desc.Name(), Reason: fmt.Sprintf("entry point %q returned %T which does not implement the agent surface", desc.Entry(), impl)}
	}
	l.logger.Debug("loader.module.loaded", "module", desc.Name(), "entry", desc.Entry())
	return agent, nil
}

func callFactory(f Factory, desc *core.Descriptor) (impl any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("factory panic: %v", r)
		}
	}()
	return f(desc)
}
