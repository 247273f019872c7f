// Package tool implements capability helpers that let agents invoke plain Go
// functions with schema validated arguments, consistent error handling and
// metadata for model guidance. FunctionCapability adapts a function to
// core.Capability; Cached wraps any capability with an LRU result cache.
package tool

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/agentrt/internal/util"
)

// Kind is the capability kind declared by function capabilities.
const Kind = "tool"

// Error codes used in *core.CapabilityError values produced by this package.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
)

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ParseArgs turns a free-text query into structured arguments for a schema.
// A query holding a JSON object is decoded as is. Otherwise the query is
// assigned to the single string property of the schema, or to "input" when
// the schema does not have exactly one.
func ParseArgs(query string, schema map[string]any) (map[string]any, error) {
	trimmed := strings.TrimSpace(query)
	if strings.HasPrefix(trimmed, "{") {
		var args map[string]any
		if err := json.Unmarshal([]byte(trimmed), &args); err != nil {
			return nil, &ValidationError{Field: "query", Value: query, Message: fmt.Sprintf("invalid JSON arguments: %v", err)}
		}
		return args, nil
	}
	if props := util.StringProperties(schema); len(props) == 1 {
		return map[string]any{props[0]: query}, nil
	}
	return map[string]any{"input": query}, nil
}

// FormatResult renders a function result as capability output. Strings are
// returned as is; everything else is encoded as JSON.
func FormatResult(v any) (string, error) {
	switch r := v.(type) {
	case nil:
		return "", nil
	case string:
		return r, nil
	case fmt.Stringer:
		return r.String(), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(b), nil
}
