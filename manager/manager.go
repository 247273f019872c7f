package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentrt/bridge"
	"github.com/hupe1980/agentrt/callback"
	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/lifecycle"
	"github.com/hupe1980/agentrt/loader"
	"github.com/hupe1980/agentrt/logging"
)

// ErrClosed is returned by operations issued after Shutdown.
var ErrClosed = errors.New("manager closed")

// DefaultCancelGrace is how long Cancel waits for a sandboxed run to exit
// before tearing its sandbox down.
const DefaultCancelGrace = 2 * time.Second

// Options configures a Manager.
type Options struct {
	// Loader resolves descriptors to implementations.
	Loader *loader.Loader
	// Bridge receives every event. A private bridge is created when nil.
	Bridge *bridge.Bridge
	// SandboxFactory creates sandboxes for agents whose manifest requires one.
	SandboxFactory core.SandboxFactory
	// CancelGrace bounds the cooperative phase of cancelling a sandboxed run.
	CancelGrace time.Duration
	Logger      logging.Logger
}

// Manager owns the live agent instances.
type Manager struct {
	loader      *loader.Loader
	bridge      *bridge.Bridge
	sandboxes   core.SandboxFactory
	cancelGrace time.Duration
	logger      logging.Logger
	refs        *capRefs

	mu        sync.Mutex
	instances map[string]*Instance
	closed    bool
}

// New creates a Manager.
func New(optFns ...func(o *Options)) *Manager {
	opts := Options{CancelGrace: DefaultCancelGrace, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	logger := core.EnsureLogger(opts.Logger)
	if opts.Loader == nil {
		opts.Loader = loader.New(func(o *loader.Options) { o.Logger = logger })
	}
	if opts.Bridge == nil {
		opts.Bridge = bridge.New(func(o *bridge.Options) { o.Logger = logger })
	}
	if opts.CancelGrace <= 0 {
		opts.CancelGrace = DefaultCancelGrace
	}
	return &Manager{
		loader:      opts.Loader,
		bridge:      opts.Bridge,
		sandboxes:   opts.SandboxFactory,
		cancelGrace: opts.CancelGrace,
		logger:      logger,
		refs:        &capRefs{refs: make(map[string]int)},
		instances:   make(map[string]*Instance),
	}
}

// Bridge returns the event bridge all instances publish into.
func (m *Manager) Bridge() *bridge.Bridge { return m.bridge }

// Loader returns the module loader.
func (m *Manager) Loader() *loader.Loader { return m.loader }

// Subscribe registers a new bridge subscriber.
func (m *Manager) Subscribe() (*bridge.Subscription, error) { return m.bridge.Subscribe() }

// Observe pumps bridge events into obs.
func (m *Manager) Observe(obs core.Observer) (*bridge.Subscription, error) {
	return m.bridge.Observe(obs)
}

// Available scans the module paths for loadable modules.
func (m *Manager) Available() loader.ScanResult { return m.loader.Scan() }

// Instance returns the live instance with the given name.
func (m *Manager) Instance(name string) (*Instance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[name]
	return inst, ok
}

// Instances returns the live instances sorted by name.
func (m *Manager) Instances() []*Instance {
	m.mu.Lock()
	out := make([]*Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		out = append(out, inst)
	}
	m.mu.Unlock()
	sort.Slice(out, func(a, b int) bool { return out[a].Name() < out[b].Name() })
	return out
}

// AttachCount returns how many live instances hold the named capability.
func (m *Manager) AttachCount(name string) int { return m.refs.count(name) }

// LoadByName discovers the named module and loads it.
func (m *Manager) LoadByName(ctx context.Context, name string) (*Instance, error) {
	if inst, ok := m.Instance(name); ok {
		return inst, nil
	}
	desc, err := m.loader.Find(name)
	if err != nil {
		return nil, err
	}
	return m.LoadAgent(ctx, desc)
}

// LoadAgent creates an instance for desc and drives it from UNLOADED to IDLE.
// If an instance with the same name is already live it is returned as is.
// On failure the instance is kept in ERROR (so it can be inspected and
// unloaded) and returned together with a *core.LoadError.
func (m *Manager) LoadAgent(ctx context.Context, desc *core.Descriptor) (*Instance, error) {
	if desc == nil {
		return nil, &core.LoadError{Reason: "nil descriptor"}
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if inst, ok := m.instances[desc.Name()]; ok {
		m.mu.Unlock()
		return inst, nil
	}
	inst := newInstance(desc, m.publish)
	m.instances[desc.Name()] = inst
	inst.opMu.Lock()
	m.mu.Unlock()
	defer inst.opMu.Unlock()

	log := logging.With(m.logger, "agent", desc.Name())
	log.Info("manager.load.start", "version", desc.Version())

	if err := m.fire(inst, lifecycle.Load, "load"); err != nil {
		return inst, err
	}

	agent, err := m.loader.Load(ctx, desc)
	if err != nil {
		return inst, m.failLoad(inst, lifecycle.LoadFailed, err)
	}

	var sb core.Sandbox
	if desc.NeedsSandbox() {
		if m.sandboxes == nil {
			return inst, m.failLoad(inst, lifecycle.LoadFailed, &core.LoadError{Agent: desc.Name(), Reason: "sandbox required but no sandbox provider configured"})
		}
		if sb, err = m.sandboxes(desc.Name()); err != nil {
			return inst, m.failLoad(inst, lifecycle.LoadFailed, &core.LoadError{Agent: desc.Name(), Reason: "create sandbox", Err: err})
		}
	}

	env := &core.Environment{Name: desc.Name(), Descriptor: desc, Logger: log, Sandbox: sb}
	if err := agent.Initialize(ctx, env); err != nil {
		m.stopAgent(ctx, desc.Name(), agent)
		return inst, m.failLoad(inst, lifecycle.LoadFailed, &core.LoadError{Agent: desc.Name(), Reason: "initialize", Err: err})
	}
	inst.agent = agent

	if sb == nil {
		if err := m.fire(inst, lifecycle.Loaded, "loaded"); err != nil {
			return inst, err
		}
		log.Info("manager.load.done")
		return inst, nil
	}

	inst.sandbox = sb
	if err := m.fire(inst, lifecycle.LoadedNeedsSandbox, "attaching sandbox"); err != nil {
		return inst, err
	}
	if err := sb.Start(ctx); err != nil {
		m.releaseSandbox(ctx, inst)
		return inst, m.failLoad(inst, lifecycle.SandboxFailed, &core.LoadError{Agent: desc.Name(), Reason: "start sandbox", Err: err})
	}
	if err := m.fire(inst, lifecycle.SandboxReady, "sandbox ready"); err != nil {
		return inst, err
	}
	log.Info("manager.load.done", "sandbox", sb.Dir())
	return inst, nil
}

// failLoad must be called with opMu held.
func (m *Manager) failLoad(inst *Instance, trigger lifecycle.Trigger, err error) error {
	var le *core.LoadError
	if !errors.As(err, &le) {
		err = &core.LoadError{Agent: inst.Name(), Reason: "load", Err: err}
	}
	inst.lastErr = err
	m.logger.Error("manager.load.failed", "agent", inst.Name(), "error", err.Error())
	inst.events.push(core.NewErrorEvent(inst.Name(), inst.machine.Seq(), err))
	if ferr := m.fire(inst, trigger, err.Error()); ferr != nil {
		return errors.Join(err, ferr)
	}
	return err
}

// AttachCapability attaches c to an IDLE instance. Attaching a capability
// that is already attached under the same name is a no-op when it is the
// same value and a CapabilityError otherwise.
func (m *Manager) AttachCapability(inst *Instance, c core.Capability) error {
	if c == nil {
		return &core.CapabilityError{Capability: "<nil>", Code: "invalid", Err: errors.New("nil capability")}
	}
	inst.opMu.Lock()
	defer inst.opMu.Unlock()

	if st := inst.machine.State(); st != core.StateIdle {
		return &core.InvalidStateError{Agent: inst.Name(), Op: "attach capability", State: st}
	}
	name := c.Name()
	if kind := core.KindOf(c); !inst.desc.Accepts(kind) {
		return core.NewCapabilityError(name, "unsupported", fmt.Errorf("agent %q does not accept %q capabilities", inst.Name(), kind))
	}
	if existing, ok := inst.caps[name]; ok {
		if existing == c {
			return nil
		}
		return core.NewCapabilityError(name, "duplicate", fmt.Errorf("a different capability named %q is already attached to %q", name, inst.Name()))
	}
	inst.caps[name] = c
	inst.capOrder = append(inst.capOrder, name)
	m.refs.inc(name)
	if l, ok := inst.agent.(core.CapabilityListener); ok {
		l.CapabilityAttached(c)
	}
	m.logger.Info("manager.capability.attached", "agent", inst.Name(), "capability", name, "holders", m.refs.count(name))
	return nil
}

// DetachCapability detaches the named capability from an IDLE instance. The
// capability itself is not closed.
func (m *Manager) DetachCapability(inst *Instance, name string) error {
	inst.opMu.Lock()
	defer inst.opMu.Unlock()

	if st := inst.machine.State(); st != core.StateIdle {
		return &core.InvalidStateError{Agent: inst.Name(), Op: "detach capability", State: st}
	}
	if _, ok := inst.caps[name]; !ok {
		return core.NewCapabilityError(name, "not_attached", fmt.Errorf("capability %q is not attached to %q", name, inst.Name()))
	}
	m.detach(inst, name)
	return nil
}

// detach must be called with opMu held.
func (m *Manager) detach(inst *Instance, name string) {
	inst.removeCap(name)
	m.refs.dec(name)
	if l, ok := inst.agent.(core.CapabilityListener); ok {
		l.CapabilityDetached(name)
	}
	m.logger.Info("manager.capability.detached", "agent", inst.Name(), "capability", name)
}

// Run starts a run of inst with input on a new goroutine and returns the
// sequence number of the run as soon as the instance is BUSY. A run on an
// instance that is not IDLE is rejected with a *core.InvalidStateError.
func (m *Manager) Run(inst *Instance, input string) (uint64, error) {
	if m.isClosed() {
		return 0, ErrClosed
	}
	inst.opMu.Lock()
	defer inst.opMu.Unlock()

	if st := inst.machine.State(); st != core.StateIdle {
		return 0, &core.InvalidStateError{Agent: inst.Name(), Op: "run", State: st}
	}
	if err := m.fire(inst, lifecycle.Run, "run"); err != nil {
		return 0, err
	}
	seq := inst.machine.Seq()
	busy := inst.events.mark()

	ctx, cancel := context.WithCancel(context.Background())
	run := &activeRun{
		seq:     seq,
		cancel:  cancel,
		done:    make(chan struct{}),
		adapter: callback.New(inst.Name(), seq, runPublisher{ctx: ctx, bridge: m.bridge}, m.logger),
		started: time.Now(),
	}
	inst.run = run
	req := core.RunRequest{Input: input, Seq: seq, Capabilities: inst.capSnapshot()}
	agent := inst.agent

	m.logger.Info("manager.run.start", "agent", inst.Name(), "seq", seq, "capabilities", len(req.Capabilities))
	go m.execute(ctx, inst, agent, run, req, busy)
	return seq, nil
}

// runPublisher stops waiting on full subscriber queues once its run is
// cancelled, so a cancelled executor never hangs in a publish.
type runPublisher struct {
	ctx    context.Context
	bridge *bridge.Bridge
}

func (p runPublisher) Publish(e core.Event) error { return p.bridge.PublishContext(p.ctx, e) }

// execute waits for the BUSY transition to be delivered before the agent runs;
// observers never see an event of a run ahead of the state change that started it.
func (m *Manager) execute(ctx context.Context, inst *Instance, agent core.Agent, run *activeRun, req core.RunRequest, busy uint64) {
	_ = inst.events.wait(ctx, busy)
	err := safeRun(ctx, inst.Name(), agent, req, run.adapter)
	run.cancel()
	m.finish(inst, run, err)
}

func safeRun(ctx context.Context, name string, agent core.Agent, req core.RunRequest, cb core.Callbacks) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &core.ExecutionError{Agent: name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return agent.Run(ctx, req, cb)
}

// finish settles the outcome of a run once its goroutine has returned. The
// terminal event is queued ahead of the transition it causes.
func (m *Manager) finish(inst *Instance, run *activeRun, runErr error) {
	inst.opMu.Lock()
	defer inst.opMu.Unlock()
	defer close(run.done)

	ad := run.adapter
	name := inst.Name()
	inst.run = nil
	dur := time.Since(run.started)

	if ad.Cancelled() {
		ad.Seal()
		m.logger.Info("manager.run.cancelled", "agent", name, "seq", run.seq, "duration", dur)
		_ = m.fire(inst, lifecycle.Cancel, "cancelled")
		if run.tornDown {
			m.restoreSandbox(inst)
		}
		return
	}

	if runErr == nil {
		runErr = ad.Err()
	}
	if runErr != nil && ad.Completed() {
		m.logger.Warn("manager.run.error_after_completion", "agent", name, "seq", run.seq, "error", runErr.Error())
		runErr = nil
	}

	switch {
	case runErr == nil:
		if e, ok := ad.Complete(""); ok {
			inst.events.push(e)
		}
		m.logger.Info("manager.run.completed", "agent", name, "seq", run.seq, "duration", dur)
		_ = m.fire(inst, lifecycle.RunCompleted, "completed")
	case errors.Is(runErr, core.ErrCapability):
		if e, ok := ad.Fail(runErr); ok {
			inst.events.push(e)
		}
		m.logger.Warn("manager.run.capability_failed", "agent", name, "seq", run.seq, "error", runErr.Error())
		_ = m.fire(inst, lifecycle.RunCompleted, "capability error")
	default:
		var execErr *core.ExecutionError
		if !errors.As(runErr, &execErr) {
			execErr = &core.ExecutionError{Agent: name, Err: runErr}
		}
		inst.lastErr = execErr
		if e, ok := ad.Fail(execErr); ok {
			inst.events.push(e)
		}
		m.logger.Error("manager.run.failed", "agent", name, "seq", run.seq, "duration", dur, "error", execErr.Error())
		_ = m.fire(inst, lifecycle.RunFailed, execErr.Error())
	}
}

// Cancel requests cooperative cancellation of the current run and waits until
// the executor goroutine has exited and the instance is IDLE again, or ctx is
// done. Cancelling an instance that is not BUSY is a *core.InvalidStateError.
func (m *Manager) Cancel(ctx context.Context, inst *Instance) error {
	inst.opMu.Lock()
	st := inst.machine.State()
	run := inst.run
	if st != core.StateBusy || run == nil {
		inst.opMu.Unlock()
		return &core.InvalidStateError{Agent: inst.Name(), Op: "cancel", State: st}
	}
	run.adapter.MarkCancelled()
	run.cancel()
	sandboxed := inst.sandbox != nil
	inst.opMu.Unlock()

	m.logger.Info("manager.run.cancel", "agent", inst.Name(), "seq", run.seq)

	if sandboxed {
		grace := time.NewTimer(m.cancelGrace)
		defer grace.Stop()
		select {
		case <-run.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-grace.C:
			m.forceStop(ctx, inst, run)
		}
	}

	select {
	case <-run.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// forceStop tears down the sandbox of a run that ignored cancellation.
func (m *Manager) forceStop(ctx context.Context, inst *Instance, run *activeRun) {
	inst.opMu.Lock()
	defer inst.opMu.Unlock()
	if inst.run != run || inst.sandbox == nil {
		return
	}
	m.logger.Warn("manager.run.force_stop", "agent", inst.Name(), "seq", run.seq)
	if err := inst.sandbox.Teardown(ctx); err != nil {
		m.logger.Error("manager.sandbox.teardown_failed", "agent", inst.Name(), "error", err.Error())
	}
	run.tornDown = true
}

// restoreSandbox must be called with opMu held, in IDLE.
func (m *Manager) restoreSandbox(inst *Instance) {
	if err := inst.sandbox.Start(context.Background()); err != nil {
		err = &core.LoadError{Agent: inst.Name(), Reason: "restart sandbox", Err: err}
		inst.lastErr = err
		m.logger.Error("manager.sandbox.restore_failed", "agent", inst.Name(), "error", err.Error())
		inst.events.push(core.NewErrorEvent(inst.Name(), inst.machine.Seq(), err))
		_ = m.fire(inst, lifecycle.Fault, "sandbox lost")
	}
}

// Wait blocks until the current run of inst (if any) has finished.
func (m *Manager) Wait(ctx context.Context, inst *Instance) error {
	inst.opMu.Lock()
	run := inst.run
	inst.opMu.Unlock()
	if run == nil {
		return nil
	}
	select {
	case <-run.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UnloadAgent detaches every capability, moves the instance to STOPPED and
// releases its implementation and sandbox. BUSY instances are rejected; the
// caller must Cancel or wait for IDLE first.
func (m *Manager) UnloadAgent(ctx context.Context, inst *Instance) error {
	inst.opMu.Lock()
	defer inst.opMu.Unlock()

	st := inst.machine.State()
	if st != core.StateIdle && st != core.StateError {
		return &core.InvalidStateError{Agent: inst.Name(), Op: "unload", State: st}
	}
	for _, name := range append([]string(nil), inst.capOrder...) {
		m.detach(inst, name)
	}
	if err := m.fire(inst, lifecycle.Unload, "unload"); err != nil {
		return err
	}
	if inst.agent != nil {
		m.stopAgent(ctx, inst.Name(), inst.agent)
		inst.agent = nil
	}
	m.releaseSandbox(ctx, inst)

	m.mu.Lock()
	if m.instances[inst.Name()] == inst {
		delete(m.instances, inst.Name())
	}
	m.mu.Unlock()
	m.logger.Info("manager.unload.done", "agent", inst.Name())
	return nil
}

func (m *Manager) stopAgent(ctx context.Context, name string, agent core.Agent) {
	if err := agent.Stop(ctx); err != nil {
		m.logger.Warn("manager.agent.stop_failed", "agent", name, "error", err.Error())
	}
}

// releaseSandbox must be called with opMu held.
func (m *Manager) releaseSandbox(ctx context.Context, inst *Instance) {
	if inst.sandbox == nil {
		return
	}
	if err := inst.sandbox.Teardown(ctx); err != nil {
		m.logger.Warn("manager.sandbox.teardown_failed", "agent", inst.Name(), "error", err.Error())
	}
	inst.sandbox = nil
}

// Shutdown cancels running agents, unloads every instance concurrently and
// closes the bridge after the last event has been published.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	insts := make([]*Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		insts = append(insts, inst)
	}
	m.mu.Unlock()

	var g errgroup.Group
	for _, inst := range insts {
		g.Go(func() error {
			if inst.State() == core.StateBusy {
				if err := m.Cancel(ctx, inst); err != nil && !errors.Is(err, core.ErrInvalidState) {
					return fmt.Errorf("cancel %s: %w", inst.Name(), err)
				}
			}
			if err := m.UnloadAgent(ctx, inst); err != nil && !errors.Is(err, core.ErrInvalidState) {
				return fmt.Errorf("unload %s: %w", inst.Name(), err)
			}
			return nil
		})
	}
	err := g.Wait()

	// Give queued lifecycle events a grace period to reach subscribers
	// before the bridge closes and releases anything still blocked.
	fctx, cancel := context.WithTimeout(ctx, m.cancelGrace)
	defer cancel()
	for _, inst := range insts {
		if ferr := inst.events.flush(fctx); ferr != nil {
			m.logger.Warn("manager.shutdown.flush_incomplete", "agent", inst.Name(), "error", ferr.Error())
			break
		}
	}
	m.logger.Info("manager.shutdown.done", "instances", len(insts))
	return errors.Join(err, m.bridge.Close())
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// fire applies a lifecycle trigger; transition errors are logged and returned.
func (m *Manager) fire(inst *Instance, t lifecycle.Trigger, reason string) error {
	ev, err := inst.machine.Fire(t, reason)
	if err != nil {
		m.logger.Error("manager.transition.invalid", "agent", inst.Name(), "trigger", string(t), "error", err.Error())
		return err
	}
	m.logger.Debug("agent.transition", "agent", inst.Name(), "seq", ev.Seq, "from", ev.From.String(), "to", ev.To.String(), "trigger", string(t))
	return nil
}

func (m *Manager) publish(e core.Event) {
	if err := m.bridge.Publish(e); err != nil {
		m.logger.Debug("manager.publish.failed", "agent", e.Agent, "kind", string(e.Kind), "error", err.Error())
	}
}
