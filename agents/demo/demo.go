// Package demo implements the "demo" agent: a conversational agent that,
// without a model, replays a short scripted exchange so the runtime can be
// tried without an API key.
package demo

import (
	"time"

	"github.com/hupe1980/agentrt/agent"
	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/executor"
	"github.com/hupe1980/agentrt/loader"
	"github.com/hupe1980/agentrt/memory"
	"github.com/hupe1980/agentrt/model"
)

// Entry is the registry key of the demo agent.
const Entry = "demo"

// DisplayName is shown in listings and the TUI.
const DisplayName = "Demo QA"

// SearchTool is the capability the script consults when attached.
const SearchTool = "Search"

// Script is the conversation replayed when no model is configured.
var Script = []executor.Step{
	executor.Thought(`The user asked "{{.Input}}". I should look it up first.`),
	executor.UseTool(SearchTool, "{{.Input}}", "no search capability is attached"),
	executor.Thought("Search returned: {{.Output}}"),
	executor.Say("Here is what I found about {{.Input}}: {{.Output}}."),
}

// Options configures the demo agent.
type Options struct {
	// Model switches the agent from the script to a model-driven loop.
	Model model.Model
	// Delay paces scripted steps and tokens.
	Delay time.Duration
	// Window is the number of remembered exchanges.
	Window int
}

// New builds a demo agent for desc.
func New(desc *core.Descriptor, optFns ...func(o *Options)) *agent.BaseAgent {
	opts := Options{Window: memory.DefaultWindow}
	for _, fn := range optFns {
		fn(&opts)
	}
	mem := memory.NewWindowMemory(opts.Window)

	var exec core.Executor
	if opts.Model != nil {
		exec = executor.NewModel(opts.Model, func(o *executor.ModelOptions) {
			o.Memory = mem
			o.Instruction = executor.NewInstructionFromText(
				"You are a friendly demo assistant. Answer briefly.{{if .Tools}} You can use: {{join .Tools \", \"}}.{{end}}")
		})
	} else {
		exec = executor.NewScripted(Script, func(o *executor.ScriptedOptions) {
			o.Delay = opts.Delay
			o.Memory = mem
		})
	}
	return agent.New(desc, exec, func(o *agent.Options) {
		o.DisplayName = DisplayName
		o.Memory = mem
	})
}

// Register adds the demo entry point to reg.
func Register(reg *loader.Registry, optFns ...func(o *Options)) error {
	return reg.Register(Entry, func(desc *core.Descriptor) (any, error) {
		return New(desc, optFns...), nil
	})
}
