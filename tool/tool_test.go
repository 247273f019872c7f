package tool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrt/core"
)

type sumArgs struct {
	A float64 `json:"a" description:"First addend"`
	B float64 `json:"b" description:"Second addend"`
}

func sumFunc(_ context.Context, args map[string]any) (any, error) {
	return args["a"].(float64) + args["b"].(float64), nil
}

// -------------------- Argument parsing --------------------

func TestParseArgs(t *testing.T) {
	single := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string"},
		},
	}

	tests := []struct {
		name   string
		query  string
		schema map[string]any
		want   map[string]any
		errMsg string
	}{
		{name: "json object", query: ` {"a": 1, "b": 2}`, schema: single, want: map[string]any{"a": 1.0, "b": 2.0}},
		{name: "single string property", query: "main.go", schema: single, want: map[string]any{"path": "main.go"}},
		{name: "fallback input", query: "hello", schema: nil, want: map[string]any{"input": "hello"}},
		{name: "invalid json", query: "{nope", schema: single, errMsg: "invalid JSON arguments"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseArgs(tt.query, tt.schema)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatResult(t *testing.T) {
	out, err := FormatResult("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", out)

	out, err = FormatResult(map[string]any{"ok": true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, out)

	out, err = FormatResult(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

// -------------------- FunctionCapability --------------------

func TestFunctionCapability_Success(t *testing.T) {
	sum := NewFunctionFromStruct("sum", "Add numbers", sumArgs{}, sumFunc)

	assert.Equal(t, "sum", sum.Name())
	assert.Equal(t, Kind, sum.Kind())
	assert.Equal(t, Kind, core.KindOf(sum))

	out, err := sum.Invoke(context.Background(), `{"a": 2, "b": 3}`)
	require.NoError(t, err)
	assert.Equal(t, "5", out)
}

func TestFunctionCapability_ValidationError(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
		},
		"required": []any{"a"},
	}
	called := false
	fn := NewFunction("test", "Test", params, func(context.Context, map[string]any) (any, error) {
		called = true
		return 0, nil
	})

	_, err := fn.Invoke(context.Background(), `{}`)
	require.Error(t, err)
	assert.False(t, called)

	var capErr *core.CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, CodeValidation, capErr.Code)
	assert.ErrorIs(t, err, core.ErrCapability)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "a", vErr.Field)
}

func TestFunctionCapability_ExecutionError(t *testing.T) {
	fn := NewFunction("fail", "Fails", nil, func(context.Context, map[string]any) (any, error) {
		return nil, errors.New("boom")
	})

	_, err := fn.Invoke(context.Background(), "anything")
	var capErr *core.CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, CodeExecution, capErr.Code)
	assert.Equal(t, "fail", capErr.Capability)
}

func TestFunctionCapability_ForwardsCapabilityError(t *testing.T) {
	custom := core.NewCapabilityError("fail", "NOT_FOUND", errors.New("missing"))
	fn := NewFunction("fail", "Fails", nil, func(context.Context, map[string]any) (any, error) {
		return nil, custom
	})

	_, err := fn.Invoke(context.Background(), "x")
	assert.Same(t, custom, err)
}

func TestFunctionCapability_KindOption(t *testing.T) {
	fn := NewFunction("lookup", "Lookup", nil, func(context.Context, map[string]any) (any, error) {
		return "ok", nil
	}, func(o *FunctionOptions) { o.Kind = "retriever" })
	assert.Equal(t, "retriever", fn.Kind())
}

// -------------------- Cached --------------------

type mockCapability struct {
	mock.Mock
}

func (m *mockCapability) Name() string        { return "search" }
func (m *mockCapability) Description() string { return "search the web" }
func (m *mockCapability) Kind() string        { return Kind }

func (m *mockCapability) Invoke(ctx context.Context, query string) (string, error) {
	args := m.Called(ctx, query)
	return args.String(0), args.Error(1)
}

func TestCached_HitsAndExpiry(t *testing.T) {
	inner := &mockCapability{}
	inner.On("Invoke", mock.Anything, "golang").Return("result", nil).Twice()

	now := time.Unix(0, 0)
	c := NewCached(inner, func(o *CacheOptions) {
		o.TTL = time.Minute
		o.Now = func() time.Time { return now }
	})

	for i := 0; i < 3; i++ {
		out, err := c.Invoke(context.Background(), "golang")
		require.NoError(t, err)
		assert.Equal(t, "result", out)
	}
	assert.Equal(t, 1, c.Len())

	now = now.Add(2 * time.Minute)
	out, err := c.Invoke(context.Background(), "golang")
	require.NoError(t, err)
	assert.Equal(t, "result", out)

	inner.AssertExpectations(t)
}

func TestCached_ErrorsAreNotCached(t *testing.T) {
	inner := &mockCapability{}
	inner.On("Invoke", mock.Anything, "q").Return("", core.NewCapabilityError("search", "", errors.New("down"))).Once()
	inner.On("Invoke", mock.Anything, "q").Return("up", nil).Once()

	c := NewCached(inner)
	_, err := c.Invoke(context.Background(), "q")
	require.ErrorIs(t, err, core.ErrCapability)

	out, err := c.Invoke(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "up", out)
	inner.AssertExpectations(t)
}

func TestCached_Delegates(t *testing.T) {
	inner := &mockCapability{}
	c := NewCached(inner, func(o *CacheOptions) { o.Size = 0 })

	assert.Equal(t, "search", c.Name())
	assert.Equal(t, "search the web", c.Description())
	assert.Equal(t, Kind, c.Kind())
	assert.Nil(t, c.Parameters())
	assert.Same(t, inner, c.Unwrap())

	sum := NewFunctionFromStruct("sum", "Add numbers", sumArgs{}, sumFunc)
	assert.Equal(t, sum.Parameters(), NewCached(sum).Parameters())
}

func TestCached_Purge(t *testing.T) {
	inner := &mockCapability{}
	inner.On("Invoke", mock.Anything, mock.Anything).Return("r", nil)

	c := NewCached(inner)
	_, _ = c.Invoke(context.Background(), "a")
	_, _ = c.Invoke(context.Background(), "b")
	assert.Equal(t, 2, c.Len())
	c.Purge()
	assert.Zero(t, c.Len())
}
