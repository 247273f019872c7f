package tool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/internal/util"
	"github.com/hupe1980/agentrt/logging"
)

// Func is the implementation behind a FunctionCapability. It receives
// arguments that already passed schema validation.
type Func func(ctx context.Context, args map[string]any) (any, error)

// FunctionOptions configure a FunctionCapability.
type FunctionOptions struct {
	// Kind overrides the declared capability kind (default "tool").
	Kind   string
	Logger logging.Logger
}

// FunctionCapability is a generic adapter that exposes a plain Go function as
// a capability.
//
// Responsibilities:
//   - Holds a lightweight JSON-Schema-like parameter description
//   - Turns the free-text query into arguments (see ParseArgs) and validates
//     them against that schema before execution
//   - Normalizes failures into *core.CapabilityError with consistent codes:
//     VALIDATION_ERROR  -> schema / argument mismatch
//     EXECUTION_ERROR   -> underlying function returned an error
//     (a *core.CapabilityError returned by the function is forwarded unchanged)
//
// A FunctionCapability has no mutable state after construction and is safe
// for concurrent use.
type FunctionCapability struct {
	name        string
	description string
	parameters  map[string]any
	fn          Func
	kind        string
	logger      logging.Logger
}

var _ core.Parameterized = (*FunctionCapability)(nil)

// NewFunction constructs a FunctionCapability from an explicit schema and function.
//
// Example:
//
//	sum := NewFunction(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "a": map[string]any{"type": "number"},
//	      "b": map[string]any{"type": "number"},
//	    },
//	    "required": []string{"a", "b"},
//	  },
//	  func(ctx context.Context, args map[string]any) (any, error) {
//	    return args["a"].(float64) + args["b"].(float64), nil
//	  },
//	)
func NewFunction(name, description string, parameters map[string]any, fn Func, optFns ...func(o *FunctionOptions)) *FunctionCapability {
	opts := FunctionOptions{Kind: Kind}
	for _, f := range optFns {
		f(&opts)
	}
	if parameters == nil {
		parameters = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return &FunctionCapability{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
		kind:        opts.Kind,
		logger:      core.EnsureLogger(opts.Logger),
	}
}

// NewFunctionFromStruct derives the parameter schema from a struct using reflection.
//
// Example:
//
//	type SumArgs struct {
//	  A float64 `json:"a" description:"First addend"`
//	  B float64 `json:"b" description:"Second addend"`
//	}
//
//	sum := NewFunctionFromStruct("calculate_sum", "Calculate the sum of two numbers", SumArgs{}, fn)
func NewFunctionFromStruct(name, description string, structType any, fn Func, optFns ...func(o *FunctionOptions)) *FunctionCapability {
	return NewFunction(name, description, util.CreateSchema(structType), fn, optFns...)
}

// Name returns the unique capability name.
func (t *FunctionCapability) Name() string { return t.name }

// Description returns the natural language description exposed to models.
func (t *FunctionCapability) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *FunctionCapability) Parameters() map[string]any { return t.parameters }

// Kind returns the declared capability kind.
func (t *FunctionCapability) Kind() string { return t.kind }

// Invoke parses and validates the query, then calls the wrapped function.
func (t *FunctionCapability) Invoke(ctx context.Context, query string) (string, error) {
	args, err := ParseArgs(query, t.parameters)
	if err != nil {
		return "", core.NewCapabilityError(t.name, CodeValidation, err)
	}
	return t.Call(ctx, args)
}

// Call validates args against the schema and invokes the function.
func (t *FunctionCapability) Call(ctx context.Context, args map[string]any) (string, error) {
	start := time.Now()
	t.logger.Debug("tool.call.start", "tool", t.name)

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		t.logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())
		return "", core.NewCapabilityError(t.name, CodeValidation, fmt.Errorf("parameter validation failed: %w", err))
	}

	result, err := t.fn(ctx, args)
	if err != nil {
		t.logger.Error("tool.call.error", "tool", t.name, "error", err.Error())
		var capErr *core.CapabilityError
		if errors.As(err, &capErr) {
			return "", capErr
		}
		return "", core.NewCapabilityError(t.name, CodeExecution, err)
	}

	out, err := FormatResult(result)
	if err != nil {
		return "", core.NewCapabilityError(t.name, CodeExecution, err)
	}
	t.logger.Info("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())
	return out, nil
}
