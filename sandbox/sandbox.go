// Package sandbox provides a working-directory sandbox for agents whose
// manifest requires one. Each sandbox owns a private temporary directory
// below a root; Start creates it and Teardown removes it with everything the
// agent wrote.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/logging"
)

// ErrEscape is returned by Resolve for paths leaving the sandbox.
var ErrEscape = errors.New("path escapes the sandbox")

// ErrNotRunning is returned by Resolve while the sandbox is stopped.
var ErrNotRunning = errors.New("sandbox is not running")

// Options configures the sandbox provider.
type Options struct {
	// Root is the parent directory of sandboxes; defaults to os.TempDir().
	Root   string
	Logger logging.Logger
}

// Workdir is a core.Sandbox backed by a temporary directory.
type Workdir struct {
	agent  string
	root   string
	logger logging.Logger

	mu  sync.RWMutex
	dir string
}

var _ core.Sandbox = (*Workdir)(nil)

// NewFactory returns a core.SandboxFactory creating Workdir sandboxes.
func NewFactory(optFns ...func(o *Options)) core.SandboxFactory {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Root == "" {
		opts.Root = os.TempDir()
	}
	logger := core.EnsureLogger(opts.Logger)
	return func(agent string) (core.Sandbox, error) {
		if agent == "" {
			return nil, errors.New("sandbox requires an agent name")
		}
		return &Workdir{agent: agent, root: opts.Root, logger: logger}, nil
	}
}

// Start creates a fresh working directory. Starting a running sandbox is a
// no-op.
func (w *Workdir) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dir != "" {
		return nil
	}
	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return fmt.Errorf("create sandbox root: %w", err)
	}
	dir, err := os.MkdirTemp(w.root, "agentrt-"+w.agent+"-")
	if err != nil {
		return fmt.Errorf("create sandbox: %w", err)
	}
	w.dir = dir
	w.logger.Info("sandbox.started", "agent", w.agent, "dir", dir)
	return nil
}

// Teardown removes the working directory. Tearing down a stopped sandbox is
// a no-op.
func (w *Workdir) Teardown(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dir == "" {
		return nil
	}
	dir := w.dir
	w.dir = ""
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove sandbox: %w", err)
	}
	w.logger.Info("sandbox.torn_down", "agent", w.agent, "dir", dir)
	return nil
}

// Dir implements core.Sandbox.
func (w *Workdir) Dir() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.dir
}

// Resolve maps a relative path into the sandbox directory of sb.
func Resolve(sb core.Sandbox, rel string) (string, error) {
	dir := sb.Dir()
	if dir == "" {
		return "", ErrNotRunning
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %s", ErrEscape, rel)
	}
	p := filepath.Join(dir, rel)
	if p != dir && !strings.HasPrefix(p, dir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrEscape, rel)
	}
	return p, nil
}
