// Package agentrt is the façade of the agent runtime. A Runtime wires the
// module loader, the event bridge and the agent manager together so that
// applications can:
//  1. Register agent implementations (entry points) with the registry
//  2. Discover modules on the configured paths and load them by name
//  3. Run agents and observe their lifecycle through the bridge
//
// All defaults are safe for local development; the CLI builds a Runtime from
// the viper configuration in package config.
package agentrt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/agentrt/bridge"
	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/loader"
	"github.com/hupe1980/agentrt/logging"
	"github.com/hupe1980/agentrt/manager"
	"github.com/hupe1980/agentrt/metrics"
	"github.com/hupe1980/agentrt/sandbox"
)

var (
	// ErrRunFailed wraps the message of an Error event ending a synchronous run.
	ErrRunFailed = errors.New("run failed")
	// ErrRunCancelled is returned by RunSync when the run was cancelled
	// through the manager.
	ErrRunCancelled = errors.New("run cancelled")
)

// Options configures a Runtime.
type Options struct {
	// Paths are the module directories scanned by the loader.
	Paths []string
	// Registry resolves entry points; a fresh one is created when nil.
	Registry *loader.Registry
	// BridgeCapacity bounds every subscriber queue.
	BridgeCapacity int
	// SandboxRoot is the parent directory of agent sandboxes. Ignored when
	// SandboxFactory is set.
	SandboxRoot    string
	SandboxFactory core.SandboxFactory
	// CancelGrace bounds the cooperative phase of cancelling a sandboxed run.
	CancelGrace time.Duration
	// Registerer enables Prometheus metrics when set.
	Registerer prometheus.Registerer
	Logger     logging.Logger
}

// Runtime is the high-level façade aggregating loader, bridge and manager.
type Runtime struct {
	opts    Options
	loader  *loader.Loader
	bridge  *bridge.Bridge
	manager *manager.Manager
	metrics *bridge.Subscription
}

// New creates a Runtime.
func New(optFns ...func(o *Options)) (*Runtime, error) {
	opts := Options{
		Paths:          []string{"modules"},
		BridgeCapacity: bridge.DefaultCapacity,
		CancelGrace:    manager.DefaultCancelGrace,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	logger := core.EnsureLogger(opts.Logger)
	if opts.Registry == nil {
		opts.Registry = loader.NewRegistry()
	}
	if opts.SandboxFactory == nil {
		opts.SandboxFactory = sandbox.NewFactory(func(o *sandbox.Options) {
			o.Root = opts.SandboxRoot
			o.Logger = logging.With(logger, "component", "sandbox")
		})
	}

	ld := loader.New(func(o *loader.Options) {
		o.Paths = opts.Paths
		o.Registry = opts.Registry
		o.Logger = logging.With(logger, "component", "loader")
	})
	br := bridge.New(func(o *bridge.Options) {
		o.Capacity = opts.BridgeCapacity
		o.Logger = logging.With(logger, "component", "bridge")
	})
	mgr := manager.New(func(o *manager.Options) {
		o.Loader = ld
		o.Bridge = br
		o.SandboxFactory = opts.SandboxFactory
		o.CancelGrace = opts.CancelGrace
		o.Logger = logging.With(logger, "component", "manager")
	})

	rt := &Runtime{opts: opts, loader: ld, bridge: br, manager: mgr}
	if opts.Registerer != nil {
		if err := rt.enableMetrics(opts.Registerer); err != nil {
			_ = br.Close()
			return nil, err
		}
	}
	return rt, nil
}

func (r *Runtime) enableMetrics(reg prometheus.Registerer) error {
	m, err := metrics.NewMetrics(reg)
	if err != nil {
		return err
	}
	if err := metrics.RegisterDropped(reg, r.bridge.Dropped); err != nil {
		return err
	}
	sub, err := r.bridge.Observe(m)
	if err != nil {
		return err
	}
	r.metrics = sub
	return nil
}

// Registry returns the entry point registry.
func (r *Runtime) Registry() *loader.Registry { return r.opts.Registry }

// Loader returns the module loader.
func (r *Runtime) Loader() *loader.Loader { return r.loader }

// Bridge returns the event bridge.
func (r *Runtime) Bridge() *bridge.Bridge { return r.bridge }

// Manager returns the agent manager.
func (r *Runtime) Manager() *manager.Manager { return r.manager }

// Load loads the named module, or returns the live instance.
func (r *Runtime) Load(ctx context.Context, name string) (*manager.Instance, error) {
	return r.manager.LoadByName(ctx, name)
}

// Result is the outcome of RunSync.
type Result struct {
	Seq    uint64
	Output string
	Usage  *core.Usage
	// Events holds every event of the agent observed during the run.
	Events []core.Event
}

// RunSync starts a run of inst and blocks until its terminal event arrives
// and the instance has left BUSY. If ctx ends first the run is cancelled.
// onEvent, when non-nil, sees every event of the agent as it arrives.
func (r *Runtime) RunSync(ctx context.Context, inst *manager.Instance, input string, onEvent func(core.Event)) (*Result, error) {
	sub, err := r.bridge.Subscribe()
	if err != nil {
		return nil, err
	}
	defer sub.Close()

	seq, err := r.manager.Run(inst, input)
	if err != nil {
		return nil, err
	}
	res := &Result{Seq: seq}
	for {
		ev, ok := sub.Next(ctx)
		if !ok {
			if ctx.Err() != nil {
				sub.Close()
				cctx, cancel := context.WithTimeout(context.Background(), r.opts.CancelGrace+time.Second)
				defer cancel()
				_ = r.manager.Cancel(cctx, inst)
				return res, ctx.Err()
			}
			return res, bridge.ErrClosed
		}
		if ev.Agent != inst.Name() {
			continue
		}
		res.Events = append(res.Events, ev)
		if onEvent != nil {
			onEvent(ev)
		}
		if ev.Kind == core.EventStateChanged && ev.From == core.StateBusy && ev.Seq > seq {
			// left BUSY without a terminal event
			return res, ErrRunCancelled
		}
		if !ev.IsTerminal() || ev.Seq != seq {
			continue
		}
		// Stop consuming before waiting, so publishers blocked on this
		// subscription cannot hold up the run's settlement.
		sub.Close()
		if err := r.manager.Wait(ctx, inst); err != nil {
			return res, err
		}
		if ev.Kind == core.EventError {
			return res, fmt.Errorf("%w: %s", ErrRunFailed, ev.Err)
		}
		res.Output, res.Usage = ev.Output, ev.Usage
		return res, nil
	}
}

// Close unloads every agent and closes the bridge.
func (r *Runtime) Close(ctx context.Context) error {
	err := r.manager.Shutdown(ctx)
	if r.metrics != nil {
		r.metrics.Close()
	}
	return errors.Join(err, r.bridge.Close())
}
