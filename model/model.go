package model

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/agentrt/core"
)

// Role is the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall represents a function call request surfaced by a model provider.
// Unified across vendors so downstream logic does not need per-provider branching.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON string of arguments
}

// ToolDefinition declaratively exposes a callable function to the model.
// Parameters is a JSON Schema object (minimal subset expected).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Message is one entry of the conversation sent to a model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// ToolCalls is set on assistant messages that requested tools.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID links a tool message to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// Request captures the normalized model input produced by executors.
type Request struct {
	Instructions string           `json:"instructions"`
	Messages     []Message        `json:"messages"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// Response is a (partial or final) chunk emitted by a model. Partial
// responses carry a text delta; the final response carries the complete
// text, any tool calls, the finish reason and token usage.
type Response struct {
	Partial      bool        `json:"partial"`
	Text         string      `json:"text"`
	ToolCalls    []ToolCall  `json:"tool_calls,omitempty"`
	FinishReason string      `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *core.Usage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock"
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by executors to drive generation.
// Both channels are closed when generation ends; at most one error is sent.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
// Queued responses are returned first, in order; afterwards canned responses
// keyed by the last user message are used, falling back to an echo.
type MockModel struct {
	info Info

	mu        sync.Mutex
	responses map[string]string
	queue     []Response
	requests  []Request
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Enqueue appends final responses returned by subsequent Generate calls.
func (m *MockModel) Enqueue(resps ...Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, resps...)
}

// Requests returns the requests received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

func (m *MockModel) next(req Request) (Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if len(m.queue) > 0 {
		r := m.queue[0]
		m.queue = m.queue[1:]
		return r, nil
	}
	input := LastUserMessage(req.Messages)
	if input == "" {
		return Response{}, fmt.Errorf("no user message provided")
	}
	full := m.responses[input]
	if full == "" {
		full = fmt.Sprintf("Mock response to: %s", input)
	}
	return Response{Text: full, FinishReason: "stop"}, nil
}

// Generate implements Model; emits optional streaming word chunks then the final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)
		final, err := m.next(req)
		if err != nil {
			errCh <- err
			return
		}
		if req.Stream && final.Text != "" {
			for _, chunk := range strings.SplitAfter(final.Text, " ") {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Text: chunk}:
				}
			}
		}
		final.Partial = false
		if final.Usage == nil {
			n := len(strings.Fields(final.Text))
			final.Usage = &core.Usage{PromptTokens: len(req.Messages), CompletionTokens: n, TotalTokens: len(req.Messages) + n}
		}
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- final:
		}
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }

// LastUserMessage returns the content of the last user message.
func LastUserMessage(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}

// Collect drains a Generate call, forwarding partial text to onDelta (may be
// nil) and returning the final response.
func Collect(ctx context.Context, m Model, req Request, onDelta func(string)) (Response, error) {
	respCh, errCh := m.Generate(ctx, req)
	var final *Response
	for r := range respCh {
		if r.Partial {
			if onDelta != nil && r.Text != "" {
				onDelta(r.Text)
			}
			continue
		}
		r := r
		final = &r
	}
	if err := <-errCh; err != nil {
		return Response{}, err
	}
	if final == nil {
		return Response{}, fmt.Errorf("model %s returned no final response", m.Info().Name)
	}
	return *final, nil
}
