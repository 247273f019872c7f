package core

import (
	"errors"
	"fmt"
)

// Sentinel errors of the runtime taxonomy. Typed errors below match them via
// errors.Is so callers can branch on the category without knowing the type.
var (
	ErrManifest          = errors.New("manifest error")
	ErrLoad              = errors.New("load error")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidState      = errors.New("invalid state")
	ErrCapability        = errors.New("capability error")
	ErrExecution         = errors.New("execution error")
)

// ManifestError reports a malformed or missing manifest field. The module is
// skipped; other modules keep loading.
type ManifestError struct {
	Module string // module directory name
	Path   string // manifest file path, if one was found
	Field  string // offending field, empty for file level problems
	Reason string
	Err    error // underlying decode error, if any
}

func (e *ManifestError) Error() string {
	msg := fmt.Sprintf("manifest error in module %q", e.Module)
	if e.Field != "" {
		msg += fmt.Sprintf(" field %q", e.Field)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ManifestError) Unwrap() error        { return e.Err }
func (e *ManifestError) Is(target error) bool { return target == ErrManifest }

// LoadError reports an entry point that could not be resolved, did not
// satisfy the Agent surface, or failed to initialize.
type LoadError struct {
	Agent  string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("load error for agent %q: %s", e.Agent, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error        { return e.Err }
func (e *LoadError) Is(target error) bool { return target == ErrLoad }

// TransitionError reports a (state, trigger) pair that is not in the
// transition table. The state is left unchanged.
type TransitionError struct {
	Agent   string
	From    State
	Trigger string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition for agent %q: %s on %s", e.Agent, e.Trigger, e.From)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// InvalidStateError reports an operation attempted in the wrong lifecycle state.
type InvalidStateError struct {
	Agent string
	Op    string
	State State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state for agent %q: cannot %s while %s", e.Agent, e.Op, e.State)
}

func (e *InvalidStateError) Is(target error) bool { return target == ErrInvalidState }

// CapabilityError reports a failure inside an attached tool or index. During
// a run it is surfaced as an Error event and the agent returns to IDLE.
type CapabilityError struct {
	Capability string
	Code       string
	Err        error
}

func (e *CapabilityError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("capability error [%s] in %s: %v", e.Code, e.Capability, e.Err)
	}
	return fmt.Sprintf("capability error in %s: %v", e.Capability, e.Err)
}

func (e *CapabilityError) Unwrap() error        { return e.Err }
func (e *CapabilityError) Is(target error) bool { return target == ErrCapability }

// NewCapabilityError wraps err as a CapabilityError for the named capability.
func NewCapabilityError(capability, code string, err error) *CapabilityError {
	return &CapabilityError{Capability: capability, Code: code, Err: err}
}

// ExecutionError reports a failure of the executor itself. The agent
// transitions to ERROR.
type ExecutionError struct {
	Agent string
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution error in agent %q: %v", e.Agent, e.Err)
}

func (e *ExecutionError) Unwrap() error        { return e.Err }
func (e *ExecutionError) Is(target error) bool { return target == ErrExecution }
