package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/logging"
	"github.com/hupe1980/agentrt/memory"
	"github.com/hupe1980/agentrt/model"
)

// DefaultMaxIterations bounds the number of model turns of one run.
const DefaultMaxIterations = 7

// ErrMaxIterations is returned when the model keeps requesting tools past
// the iteration limit.
var ErrMaxIterations = errors.New("agent stopped after reaching the iteration limit")

// ModelOptions configures a Model executor.
type ModelOptions struct {
	Instruction   Instruction
	Memory        *memory.WindowMemory
	Stream        bool
	MaxIterations int
	// ToolTimeout bounds a single capability invocation; zero disables it.
	ToolTimeout time.Duration
	Logger      logging.Logger
}

// Model executes runs with a language model in a request -> model ->
// (optional tool loop) cycle. Capabilities attached to the run are offered
// to the model as tools.
type Model struct {
	llm  model.Model
	opts ModelOptions
}

var _ core.Executor = (*Model)(nil)

// NewModel creates a Model executor with streaming enabled and the default
// iteration limit.
func NewModel(llm model.Model, optFns ...func(o *ModelOptions)) *Model {
	opts := ModelOptions{
		Instruction:   NewInstructionFromText("You are a helpful AI assistant."),
		Stream:        true,
		MaxIterations: DefaultMaxIterations,
		ToolTimeout:   30 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	opts.Logger = core.EnsureLogger(opts.Logger)
	return &Model{llm: llm, opts: opts}
}

// Memory returns the conversation memory, or nil.
func (e *Model) Memory() *memory.WindowMemory { return e.opts.Memory }

// Execute implements core.Executor.
func (e *Model) Execute(ctx context.Context, req core.RunRequest, cb core.Callbacks) error {
	instructions, err := e.opts.Instruction.Resolve(InstructionContext{Input: req.Input, Capabilities: req.Capabilities})
	if err != nil {
		return fmt.Errorf("resolve instructions: %w", err)
	}

	var messages []model.Message
	if e.opts.Memory != nil {
		messages = e.opts.Memory.Messages()
	}
	messages = append(messages, model.Message{Role: model.RoleUser, Content: req.Input})

	mreq := model.Request{
		Instructions: instructions,
		Tools:        ToolDefinitions(req.Capabilities),
		Stream:       e.opts.Stream,
	}

	var onDelta func(string)
	if e.opts.Stream {
		onDelta = cb.OnToken
	}

	for i := 0; i < e.opts.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		mreq.Messages = messages

		cb.OnStart(core.ActivityLLMProcessing, e.llm.Info().Name)
		resp, err := model.Collect(ctx, e.llm, mreq, onDelta)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("model generate: %w", err)
		}
		if resp.Usage != nil {
			cb.OnUsage(*resp.Usage)
		}

		if len(resp.ToolCalls) == 0 {
			if e.opts.Memory != nil {
				e.opts.Memory.SaveExchange(req.Input, resp.Text)
			}
			cb.OnComplete(resp.Text)
			return nil
		}

		if resp.Text != "" {
			cb.OnThought(resp.Text)
		}
		messages = append(messages, model.Message{Role: model.RoleAssistant, Content: resp.Text, ToolCalls: resp.ToolCalls})

		for _, call := range resp.ToolCalls {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := e.invoke(ctx, req, call, cb)
			if err != nil {
				return err
			}
			messages = append(messages, model.Message{Role: model.RoleTool, Content: out, ToolCallID: call.ID})
		}
	}

	return fmt.Errorf("%w (%d)", ErrMaxIterations, e.opts.MaxIterations)
}

// invoke runs one tool call. Unknown tools are reported back to the model
// instead of failing the run; capability failures end the run.
func (e *Model) invoke(ctx context.Context, req core.RunRequest, call model.ToolCall, cb core.Callbacks) (string, error) {
	capability, ok := req.Capability(call.Name)
	if !ok {
		e.opts.Logger.Warn("executor.tool.unknown", "tool", call.Name)
		return fmt.Sprintf("%s is not a valid tool, try one of %v.", call.Name, InstructionContext{Capabilities: req.Capabilities}.Tools()), nil
	}

	query := QueryFor(capability, call.Arguments)
	cb.OnStart(core.ActivityToolUsing, call.Name)
	cb.OnToolStart(call.Name, query)

	invokeCtx := ctx
	if e.opts.ToolTimeout > 0 {
		var cancel context.CancelFunc
		invokeCtx, cancel = context.WithTimeout(ctx, e.opts.ToolTimeout)
		defer cancel()
	}

	start := time.Now()
	out, err := capability.Invoke(invokeCtx, query)
	e.opts.Logger.Debug("executor.tool.executed", "tool", call.Name, "duration_ms", time.Since(start).Milliseconds(), "error", err != nil)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		cb.OnToolError(call.Name, err)
		var capErr *core.CapabilityError
		if !errors.As(err, &capErr) {
			err = core.NewCapabilityError(call.Name, "", err)
		}
		return "", err
	}
	cb.OnToolEnd(call.Name, out)
	return out, nil
}

// ToolDefinitions describes capabilities as model tools. Capabilities
// without a schema take a single free-text "input" argument.
func ToolDefinitions(caps []core.Capability) []model.ToolDefinition {
	if len(caps) == 0 {
		return nil
	}
	defs := make([]model.ToolDefinition, 0, len(caps))
	for _, c := range caps {
		defs = append(defs, model.ToolDefinition{
			Name:        c.Name(),
			Description: c.Description(),
			Parameters:  schemaOf(c),
		})
	}
	return defs
}

func schemaOf(c core.Capability) map[string]any {
	if p, ok := c.(core.Parameterized); ok {
		if params := p.Parameters(); params != nil {
			return params
		}
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"input": map[string]any{"type": "string", "description": "the query for " + c.Name()},
		},
		"required": []string{"input"},
	}
}

// QueryFor converts model tool arguments to a capability query. Capabilities
// with a schema receive the JSON arguments; others receive the "input"
// argument as plain text.
func QueryFor(c core.Capability, arguments string) string {
	if p, ok := c.(core.Parameterized); ok && p.Parameters() != nil {
		return arguments
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return arguments
	}
	if s, ok := args["input"].(string); ok {
		return s
	}
	return arguments
}
