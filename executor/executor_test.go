package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/internal/testutil"
	"github.com/hupe1980/agentrt/memory"
	"github.com/hupe1980/agentrt/model"
	"github.com/hupe1980/agentrt/tool"
)

func TestInstruction_Resolve(t *testing.T) {
	ic := InstructionContext{
		Input:        "hi",
		Capabilities: []core.Capability{&testutil.StubCapability{CapName: "wiki"}},
	}

	text, err := NewInstructionFromText("Tools: {{.Tools}} Input: {{.Input}}").Resolve(ic)
	require.NoError(t, err)
	assert.Equal(t, "Tools: [wiki] Input: hi", text)

	dyn := NewInstructionFromFunc(func(ic InstructionContext) (string, error) {
		return "dynamic " + ic.Input, nil
	})
	assert.False(t, dyn.IsStatic())
	text, err = dyn.Resolve(ic)
	require.NoError(t, err)
	assert.Equal(t, "dynamic hi", text)
}

func TestModel_CompletesWithoutTools(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	llm.AddResponse("hello", "hi there friend")
	mem := memory.NewWindowMemory(4)
	exec := NewModel(llm, func(o *ModelOptions) { o.Memory = mem })

	cb := &testutil.CallbackRecorder{}
	err := exec.Execute(context.Background(), core.RunRequest{Input: "hello", Seq: 2}, cb)
	require.NoError(t, err)

	assert.Equal(t, "hi there friend", cb.Tokens())
	assert.Contains(t, cb.Calls(), "complete:hi there friend")
	assert.Equal(t, "start:llm_processing:mock", cb.Calls()[0])
	assert.Positive(t, cb.Usage().TotalTokens)
	assert.Equal(t, 2, mem.Len())
}

func TestModel_ToolLoop(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	llm.Enqueue(
		model.Response{Text: "Let me look that up.", ToolCalls: []model.ToolCall{{ID: "c1", Name: "wiki", Arguments: `{"input":"golang"}`}}},
		model.Response{Text: "Go is a language.", FinishReason: "stop"},
	)
	wiki := &testutil.StubCapability{CapName: "wiki", Result: "Go is a programming language"}
	exec := NewModel(llm, func(o *ModelOptions) { o.Stream = false })

	cb := &testutil.CallbackRecorder{}
	err := exec.Execute(context.Background(), core.RunRequest{Input: "what is go", Capabilities: []core.Capability{wiki}}, cb)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"start:llm_processing:mock",
		"thought:Let me look that up.",
		"start:tool_using:wiki",
		"tool_start:wiki:golang",
		"tool_end:wiki:Go is a programming language",
		"start:llm_processing:mock",
		"complete:Go is a language.",
	}, cb.Calls())
	assert.Equal(t, 1, wiki.Calls())
	assert.Empty(t, cb.Tokens())

	reqs := llm.Requests()
	require.Len(t, reqs, 2)
	require.Len(t, reqs[0].Tools, 1)
	assert.Equal(t, "wiki", reqs[0].Tools[0].Name)
	last := reqs[1].Messages[len(reqs[1].Messages)-1]
	assert.Equal(t, model.Message{Role: model.RoleTool, Content: "Go is a programming language", ToolCallID: "c1"}, last)
}

func TestModel_StructuredCapabilityReceivesJSON(t *testing.T) {
	var got map[string]any
	sum := tool.NewFunction("sum", "Add", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
	}, func(_ context.Context, args map[string]any) (any, error) {
		got = args
		return args["a"].(float64) + args["b"].(float64), nil
	})

	llm := model.NewMockModel("mock", "mock")
	llm.Enqueue(
		model.Response{ToolCalls: []model.ToolCall{{ID: "1", Name: "sum", Arguments: `{"a":1,"b":2}`}}},
		model.Response{Text: "3"},
	)
	cb := &testutil.CallbackRecorder{}
	err := NewModel(llm).Execute(context.Background(), core.RunRequest{Input: "1+2", Capabilities: []core.Capability{sum}}, cb)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1.0, "b": 2.0}, got)
	assert.True(t, cb.Has("tool_end:sum:3"))
}

func TestModel_UnknownToolIsReportedToModel(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	llm.Enqueue(
		model.Response{ToolCalls: []model.ToolCall{{ID: "1", Name: "search", Arguments: `{}`}}},
		model.Response{Text: "sorry"},
	)
	cb := &testutil.CallbackRecorder{}
	err := NewModel(llm).Execute(context.Background(), core.RunRequest{Input: "x"}, cb)
	require.NoError(t, err)
	assert.Contains(t, llm.Requests()[1].Messages[2].Content, "search is not a valid tool")
	assert.False(t, cb.Has("tool_start"))
}

func TestModel_CapabilityFailure(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	llm.Enqueue(model.Response{ToolCalls: []model.ToolCall{{ID: "1", Name: "wiki", Arguments: `{"input":"q"}`}}})
	wiki := &testutil.StubCapability{CapName: "wiki", Err: testutil.ErrBoom}

	cb := &testutil.CallbackRecorder{}
	err := NewModel(llm).Execute(context.Background(), core.RunRequest{Input: "x", Capabilities: []core.Capability{wiki}}, cb)
	require.ErrorIs(t, err, core.ErrCapability)
	assert.True(t, cb.Has("tool_error:wiki"))
	assert.False(t, cb.Has("complete"))
}

func TestModel_PlainToolErrorIsWrapped(t *testing.T) {
	failing := tool.NewFunction("f", "fails", nil, func(context.Context, map[string]any) (any, error) {
		return nil, errors.New("nope")
	})
	llm := model.NewMockModel("mock", "mock")
	llm.Enqueue(model.Response{ToolCalls: []model.ToolCall{{ID: "1", Name: "f", Arguments: `{}`}}})

	err := NewModel(llm).Execute(context.Background(), core.RunRequest{Input: "x", Capabilities: []core.Capability{failing}}, &testutil.CallbackRecorder{})
	var capErr *core.CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "f", capErr.Capability)
}

func TestModel_IterationLimit(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	for i := 0; i < 3; i++ {
		llm.Enqueue(model.Response{ToolCalls: []model.ToolCall{{ID: "1", Name: "wiki", Arguments: `{"input":"again"}`}}})
	}
	wiki := &testutil.StubCapability{CapName: "wiki"}
	exec := NewModel(llm, func(o *ModelOptions) { o.MaxIterations = 3 })

	err := exec.Execute(context.Background(), core.RunRequest{Input: "x", Capabilities: []core.Capability{wiki}}, &testutil.CallbackRecorder{})
	require.ErrorIs(t, err, ErrMaxIterations)
	assert.NotErrorIs(t, err, core.ErrCapability)
	assert.Equal(t, 3, wiki.Calls())
}

func TestModel_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cb := &testutil.CallbackRecorder{}
	err := NewModel(model.NewMockModel("mock", "mock")).Execute(ctx, core.RunRequest{Input: "x"}, cb)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, cb.Calls())
}

func TestToolDefinitionsAndQuery(t *testing.T) {
	plain := &testutil.StubCapability{CapName: "wiki"}
	defs := ToolDefinitions([]core.Capability{plain})
	require.Len(t, defs, 1)
	assert.Equal(t, []string{"input"}, defs[0].Parameters["required"])
	assert.Nil(t, ToolDefinitions(nil))

	assert.Equal(t, "golang", QueryFor(plain, `{"input":"golang"}`))
	assert.Equal(t, "not json", QueryFor(plain, "not json"))
	assert.Equal(t, `{"other":1}`, QueryFor(plain, `{"other":1}`))
}

func TestScripted_Replay(t *testing.T) {
	mem := memory.NewWindowMemory(4)
	exec := NewScripted([]Step{
		Thought("The user asked about {{.Input}}."),
		UseTool("wiki", "{{.Input}}", "canned result"),
		Say("Here is what I found: {{.Output}}"),
	}, func(o *ScriptedOptions) { o.Memory = mem })

	cb := &testutil.CallbackRecorder{}
	err := exec.Execute(context.Background(), core.RunRequest{Input: "go"}, cb)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"start:thinking:",
		"thought:The user asked about go.",
		"start:tool_using:wiki",
		"tool_start:wiki:go",
		"tool_end:wiki:canned result",
		"start:llm_processing:script",
		"complete:Here is what I found: canned result",
	}, cb.Calls())
	assert.Equal(t, "Here is what I found: canned result", cb.Tokens())
	assert.Equal(t, 2, mem.Len())
	assert.Positive(t, cb.Usage().TotalTokens)
}

func TestScripted_UsesAttachedCapability(t *testing.T) {
	wiki := &testutil.StubCapability{CapName: "wiki", Result: "live result"}
	exec := NewScripted([]Step{UseTool("wiki", "q", "canned"), Say("{{.Output}}")})

	cb := &testutil.CallbackRecorder{}
	require.NoError(t, exec.Execute(context.Background(), core.RunRequest{Input: "x", Capabilities: []core.Capability{wiki}}, cb))
	assert.True(t, cb.Has("complete:live result"))
	assert.Equal(t, 1, wiki.Calls())
}

func TestScripted_Failures(t *testing.T) {
	err := NewScripted([]Step{Fail("broken script")}).Execute(context.Background(), core.RunRequest{}, &testutil.CallbackRecorder{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrCapability)

	err = NewScripted([]Step{{Kind: "dance"}}).Execute(context.Background(), core.RunRequest{}, &testutil.CallbackRecorder{})
	assert.ErrorContains(t, err, "unknown kind")

	wiki := &testutil.StubCapability{CapName: "wiki", Err: testutil.ErrBoom}
	err = NewScripted([]Step{UseTool("wiki", "q", "")}).Execute(context.Background(), core.RunRequest{Capabilities: []core.Capability{wiki}}, &testutil.CallbackRecorder{})
	assert.ErrorIs(t, err, core.ErrCapability)
}

func TestScripted_CancelStopsBetweenSteps(t *testing.T) {
	exec := NewScripted([]Step{Say("one two three four five six")}, func(o *ScriptedOptions) { o.Delay = 20 * time.Millisecond })
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	cb := &testutil.CallbackRecorder{}
	err := exec.Execute(ctx, core.RunRequest{Input: "x"}, cb)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, cb.Has("complete"))
	assert.NotEqual(t, "one two three four five six", cb.Tokens())
}
