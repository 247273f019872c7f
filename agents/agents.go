// Package agents bundles the built-in agent modules. RegisterAll adds their
// entry points to a loader registry; the matching manifests live in the
// modules directory of the repository.
package agents

import (
	"errors"
	"time"

	"github.com/hupe1980/agentrt/agents/chatqa"
	"github.com/hupe1980/agentrt/agents/coder"
	"github.com/hupe1980/agentrt/agents/demo"
	"github.com/hupe1980/agentrt/loader"
	"github.com/hupe1980/agentrt/model"
)

// Options configures the built-in agents.
type Options struct {
	// Model backs chat_qa and coder. The demo agent also uses it when
	// DemoUseModel is set; otherwise it replays its script.
	Model        model.Model
	DemoUseModel bool
	// Delay paces the scripted demo.
	Delay time.Duration
}

// RegisterAll registers the demo, chat_qa and coder entry points.
func RegisterAll(reg *loader.Registry, optFns ...func(o *Options)) error {
	opts := Options{Delay: 40 * time.Millisecond}
	for _, fn := range optFns {
		fn(&opts)
	}
	return errors.Join(
		demo.Register(reg, func(o *demo.Options) {
			o.Delay = opts.Delay
			if opts.DemoUseModel {
				o.Model = opts.Model
			}
		}),
		chatqa.Register(reg, func(o *chatqa.Options) { o.Model = opts.Model }),
		coder.Register(reg, func(o *coder.Options) { o.Model = opts.Model }),
	)
}
