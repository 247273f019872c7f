// Package coder implements the "coder" agent: a programming assistant that
// works inside its sandbox directory through a small set of workspace
// capabilities (list, read and write files).
package coder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hupe1980/agentrt/agent"
	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/executor"
	"github.com/hupe1980/agentrt/loader"
	"github.com/hupe1980/agentrt/logging"
	"github.com/hupe1980/agentrt/memory"
	"github.com/hupe1980/agentrt/model"
	"github.com/hupe1980/agentrt/sandbox"
	"github.com/hupe1980/agentrt/tool"
)

// Entry is the registry key of the coder agent.
const Entry = "coder"

// Instructions describe the assistant persona.
const Instructions = `You are Bob, a knowledgeable programmer acting as a coding assistant.
Explain concepts clearly, reason step by step about problems and provide code snippets when useful.
If you do not know an answer, say so and do not make one up.
Files you create live in a private workspace; use the workspace tools ({{join .Tools ", "}}) to inspect and change them.`

// MaxReadBytes caps the size of files returned by read_file.
const MaxReadBytes = 64 << 10

var (
	// ErrNoModel is returned by the factory when no model is configured.
	ErrNoModel = errors.New("coder requires a model")
	// ErrNoSandbox is returned by Initialize when the environment lacks a sandbox.
	ErrNoSandbox = errors.New("coder requires a sandbox")
)

// Options configures the coder agent.
type Options struct {
	Model  model.Model
	Window int
}

// New builds a coder agent for desc. The executor is installed during
// Initialize, once the sandbox is known.
func New(desc *core.Descriptor, optFns ...func(o *Options)) (*agent.BaseAgent, error) {
	opts := Options{Window: memory.DefaultWindow}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Model == nil {
		return nil, ErrNoModel
	}
	mem := memory.NewWindowMemory(opts.Window)

	var base *agent.BaseAgent
	base = agent.New(desc, nil, func(o *agent.Options) {
		o.DisplayName = "Coding AI"
		o.Memory = mem
		o.OnInitialize = func(_ context.Context, env *core.Environment) error {
			if env.Sandbox == nil {
				return ErrNoSandbox
			}
			workspace := Workspace(env.Sandbox, env.Logger)
			inner := executor.NewModel(opts.Model, func(o *executor.ModelOptions) {
				o.Memory = mem
				o.Instruction = executor.NewInstructionFromText(Instructions)
				o.Logger = env.Logger
			})
			base.SetExecutor(WithCapabilities(inner, workspace...))
			return nil
		}
	})
	return base, nil
}

// Register adds the coder entry point to reg.
func Register(reg *loader.Registry, optFns ...func(o *Options)) error {
	return reg.Register(Entry, func(desc *core.Descriptor) (any, error) {
		return New(desc, optFns...)
	})
}

// WithCapabilities returns an executor that offers extra capabilities next
// to the ones attached to each run.
func WithCapabilities(inner core.Executor, extra ...core.Capability) core.Executor {
	return core.ExecutorFunc(func(ctx context.Context, req core.RunRequest, cb core.Callbacks) error {
		caps := make([]core.Capability, 0, len(req.Capabilities)+len(extra))
		caps = append(caps, extra...)
		for _, c := range req.Capabilities {
			if !hasName(extra, c.Name()) {
				caps = append(caps, c)
			}
		}
		req.Capabilities = caps
		return inner.Execute(ctx, req, cb)
	})
}

func hasName(caps []core.Capability, name string) bool {
	for _, c := range caps {
		if c.Name() == name {
			return true
		}
	}
	return false
}

// Workspace returns the list_files, read_file and write_file capabilities
// scoped to the sandbox directory.
func Workspace(sb core.Sandbox, logger logging.Logger) []core.Capability {
	withLogger := func(o *tool.FunctionOptions) { o.Logger = logger }
	pathSchema := func(extra map[string]any, required ...string) map[string]any {
		props := map[string]any{
			"path": map[string]any{"type": "string", "description": "Path relative to the workspace root"},
		}
		for k, v := range extra {
			props[k] = v
		}
		return map[string]any{"type": "object", "properties": props, "required": append([]string{"path"}, required...)}
	}

	list := tool.NewFunction("list_files", "List all files of the workspace.", nil,
		func(ctx context.Context, _ map[string]any) (any, error) {
			root := sb.Dir()
			if root == "" {
				return nil, sandbox.ErrNotRunning
			}
			var files []string
			err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if err := ctx.Err(); err != nil {
					return err
				}
				if !d.IsDir() {
					rel, _ := filepath.Rel(root, p)
					files = append(files, filepath.ToSlash(rel))
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
			if len(files) == 0 {
				return "The workspace is empty.", nil
			}
			sort.Strings(files)
			return strings.Join(files, "\n"), nil
		}, withLogger)

	read := tool.NewFunction("read_file", "Read a file of the workspace.", pathSchema(nil),
		func(_ context.Context, args map[string]any) (any, error) {
			p, err := sandbox.Resolve(sb, args["path"].(string))
			if err != nil {
				return nil, err
			}
			data, err := os.ReadFile(p)
			if err != nil {
				return nil, err
			}
			if len(data) > MaxReadBytes {
				return string(data[:MaxReadBytes]) + "\n[truncated]", nil
			}
			return string(data), nil
		}, withLogger)

	write := tool.NewFunction("write_file", "Create or overwrite a file of the workspace.",
		pathSchema(map[string]any{"content": map[string]any{"type": "string", "description": "Full file content"}}, "content"),
		func(_ context.Context, args map[string]any) (any, error) {
			p, err := sandbox.Resolve(sb, args["path"].(string))
			if err != nil {
				return nil, err
			}
			content, _ := args["content"].(string)
			if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
				return nil, err
			}
			if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
				return nil, err
			}
			return fmt.Sprintf("wrote %d bytes to %s", len(content), args["path"]), nil
		}, withLogger)

	return []core.Capability{list, read, write}
}
