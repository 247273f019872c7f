package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/internal/util"
	"github.com/hupe1980/agentrt/memory"
)

// StepKind selects what a scripted step reports.
type StepKind string

const (
	StepThought StepKind = "thought"
	StepTool    StepKind = "tool"
	StepSay     StepKind = "say"
	StepFail    StepKind = "fail"
)

// Step is one entry of a script. Text fields are templates rendered with
// the run input available as {{.Input}}.
type Step struct {
	Kind StepKind `yaml:"kind" json:"kind"`
	Text string   `yaml:"text,omitempty" json:"text,omitempty"`
	// Tool and Output are used by tool steps. When a capability named Tool
	// is attached to the run it is invoked with Text as the query; otherwise
	// Output is reported as the result.
	Tool   string `yaml:"tool,omitempty" json:"tool,omitempty"`
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// Thought returns a step reporting an intermediate reasoning step.
func Thought(text string) Step { return Step{Kind: StepThought, Text: text} }

// UseTool returns a step invoking a capability with query.
func UseTool(tool, query, fallback string) Step {
	return Step{Kind: StepTool, Tool: tool, Text: query, Output: fallback}
}

// Say returns a step streaming text as output tokens.
func Say(text string) Step { return Step{Kind: StepSay, Text: text} }

// Fail returns a step failing the run with an execution error.
func Fail(text string) Step { return Step{Kind: StepFail, Text: text} }

// ScriptedOptions configures a Scripted executor.
type ScriptedOptions struct {
	// Delay is waited before every step and between streamed tokens.
	Delay  time.Duration
	Memory *memory.WindowMemory
}

// Scripted replays a fixed sequence of steps for every run. The run output
// is the concatenation of all Say steps.
type Scripted struct {
	steps []Step
	opts  ScriptedOptions
}

var _ core.Executor = (*Scripted)(nil)

// NewScripted creates a Scripted executor.
func NewScripted(steps []Step, optFns ...func(o *ScriptedOptions)) *Scripted {
	opts := ScriptedOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Scripted{steps: append([]Step(nil), steps...), opts: opts}
}

// Steps returns a copy of the script.
func (s *Scripted) Steps() []Step { return append([]Step(nil), s.steps...) }

// Execute implements core.Executor.
func (s *Scripted) Execute(ctx context.Context, req core.RunRequest, cb core.Callbacks) error {
	data := map[string]any{"Input": req.Input}
	var output strings.Builder

	for i, step := range s.steps {
		if err := s.wait(ctx); err != nil {
			return err
		}
		text, err := util.RenderTemplate(step.Text, data)
		if err != nil {
			return fmt.Errorf("script step %d: %w", i, err)
		}

		switch step.Kind {
		case StepThought:
			cb.OnStart(core.ActivityThinking, "")
			cb.OnThought(text)
		case StepTool:
			out, err := s.tool(ctx, req, step, text, cb)
			if err != nil {
				return err
			}
			data["Output"] = out
		case StepSay:
			cb.OnStart(core.ActivityLLMProcessing, "script")
			for _, chunk := range strings.SplitAfter(text, " ") {
				if err := s.wait(ctx); err != nil {
					return err
				}
				cb.OnToken(chunk)
			}
			output.WriteString(text)
		case StepFail:
			return fmt.Errorf("script step %d: %s", i, text)
		default:
			return fmt.Errorf("script step %d: unknown kind %q", i, step.Kind)
		}
	}

	words := len(strings.Fields(output.String()))
	cb.OnUsage(core.Usage{PromptTokens: len(strings.Fields(req.Input)), CompletionTokens: words, TotalTokens: len(strings.Fields(req.Input)) + words})
	if s.opts.Memory != nil {
		s.opts.Memory.SaveExchange(req.Input, output.String())
	}
	cb.OnComplete(output.String())
	return nil
}

func (s *Scripted) tool(ctx context.Context, req core.RunRequest, step Step, query string, cb core.Callbacks) (string, error) {
	cb.OnStart(core.ActivityToolUsing, step.Tool)
	cb.OnToolStart(step.Tool, query)
	capability, ok := req.Capability(step.Tool)
	if !ok {
		cb.OnToolEnd(step.Tool, step.Output)
		return step.Output, nil
	}
	out, err := capability.Invoke(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		cb.OnToolError(step.Tool, err)
		var capErr *core.CapabilityError
		if !errors.As(err, &capErr) {
			err = core.NewCapabilityError(step.Tool, "", err)
		}
		return "", err
	}
	cb.OnToolEnd(step.Tool, out)
	return out, nil
}

func (s *Scripted) wait(ctx context.Context) error {
	if s.opts.Delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.opts.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
