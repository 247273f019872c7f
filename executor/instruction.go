package executor

import (
	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/internal/util"
)

// InstructionContext is the data available to instruction templates and
// providers.
type InstructionContext struct {
	Input        string
	Capabilities []core.Capability
}

// Tools returns the names of the attached capabilities.
func (c InstructionContext) Tools() []string {
	names := make([]string, len(c.Capabilities))
	for i, capability := range c.Capabilities {
		names[i] = capability.Name()
	}
	return names
}

// Provider supplies dynamic instruction text at runtime.
type Provider interface {
	Instruction(InstructionContext) (string, error)
}

// ProviderFunc is a functional adapter to allow ordinary functions to be used as Providers.
type ProviderFunc func(InstructionContext) (string, error)

// Instruction implements Provider.
func (f ProviderFunc) Instruction(ic InstructionContext) (string, error) { return f(ic) }

// Instruction represents either a static template or a dynamic provider.
// Static text may reference InstructionContext via text/template markers,
// e.g. "You can use: {{.Tools}}".
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static template.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(InstructionContext) (string, error)) Instruction {
	return Instruction{provider: ProviderFunc(f)}
}

// IsStatic returns true if the instruction is backed by a static template.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text, invoking the provider or rendering
// the template as needed.
func (i Instruction) Resolve(ic InstructionContext) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(ic)
	}
	return util.RenderTemplate(i.text, ic)
}
