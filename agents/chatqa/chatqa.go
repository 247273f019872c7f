// Package chatqa implements the "chat_qa" agent: a conversational agent
// answering questions over the retriever indexes attached to it.
package chatqa

import (
	"errors"

	"github.com/hupe1980/agentrt/agent"
	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/executor"
	"github.com/hupe1980/agentrt/loader"
	"github.com/hupe1980/agentrt/memory"
	"github.com/hupe1980/agentrt/model"
)

// Entry is the registry key of the chat_qa agent.
const Entry = "chat_qa"

// Instructions prime the model to ground answers in the attached indexes.
const Instructions = `You are a question answering assistant.
{{if .Tools}}Before answering, look up the question with the most relevant of these indexes: {{join .Tools ", "}}.
Base your answer on what they return and say so when they have nothing relevant.{{else}}No index is attached; answer from general knowledge and say so.{{end}}`

// ErrNoModel is returned by the factory when no model is configured.
var ErrNoModel = errors.New("chat_qa requires a model")

// Options configures the chat_qa agent.
type Options struct {
	Model  model.Model
	Window int
}

// New builds a chat_qa agent for desc.
func New(desc *core.Descriptor, optFns ...func(o *Options)) (*agent.BaseAgent, error) {
	opts := Options{Window: memory.DefaultWindow}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Model == nil {
		return nil, ErrNoModel
	}
	mem := memory.NewWindowMemory(opts.Window)
	exec := executor.NewModel(opts.Model, func(o *executor.ModelOptions) {
		o.Memory = mem
		o.Instruction = executor.NewInstructionFromText(Instructions)
	})
	return agent.New(desc, exec, func(o *agent.Options) {
		o.DisplayName = "Chat QA"
		o.Memory = mem
	}), nil
}

// Register adds the chat_qa entry point to reg.
func Register(reg *loader.Registry, optFns ...func(o *Options)) error {
	return reg.Register(Entry, func(desc *core.Descriptor) (any, error) {
		return New(desc, optFns...)
	})
}
