package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJSONLogger(buf *bytes.Buffer, level LogLevel) *RuntimeLogger {
	return NewLogger(&LoggerConfig{Level: level, Format: "json", Output: buf})
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal(line, &m))
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{
		"debug": LogLevelDebug, "INFO": LogLevelInfo, "": LogLevelInfo,
		"warning": LogLevelWarn, "Error": LogLevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestRuntimeLogger_ScopedAttributes(t *testing.T) {
	var buf bytes.Buffer
	base := newJSONLogger(&buf, LogLevelDebug)
	l := base.WithComponent("manager").WithRun("demo", 3).WithContext("k", "v")

	l.Info("run.start", "input_len", 5)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "run.start", lines[0]["msg"])
	assert.Equal(t, "manager", lines[0]["component"])
	assert.Equal(t, "demo", lines[0]["agent"])
	assert.EqualValues(t, 3, lines[0]["seq"])
	assert.Equal(t, "v", lines[0]["k"])
	assert.EqualValues(t, 5, lines[0]["input_len"])
}

func TestRuntimeLogger_CloneDoesNotLeak(t *testing.T) {
	var buf bytes.Buffer
	base := newJSONLogger(&buf, LogLevelInfo)
	_ = base.WithContext("only", "child")
	base.Info("x")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	_, ok := lines[0]["only"]
	assert.False(t, ok)
}

func TestRuntimeLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, LogLevelWarn)
	l.Debug("d")
	l.Info("i")
	l.Warn("w")
	l.Error("e")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "w", lines[0]["msg"])
	assert.Equal(t, "e", lines[1]["msg"])
}

func TestRuntimeLogger_DomainHelpers(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, LogLevelInfo)
	l.LogCapabilityCall("search", time.Millisecond, nil)
	l.LogCapabilityCall("search", time.Millisecond, errors.New("boom"))
	l.LogRun("demo", 2, time.Second, "cancelled", nil)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "capability.call.completed", lines[0]["msg"])
	assert.Equal(t, "ERROR", lines[1]["level"])
	assert.Equal(t, "boom", lines[1]["error"])
	assert.Equal(t, "cancelled", lines[2]["outcome"])
}

type recordingLogger struct {
	NoOpLogger
	args []any
}

func (r *recordingLogger) Info(_ string, args ...any) { r.args = args }

func TestWith_PrefixesArgs(t *testing.T) {
	rec := &recordingLogger{}
	l := With(rec, "agent", "demo")
	l.Info("x", "seq", 1)
	assert.Equal(t, []any{"agent", "demo", "seq", 1}, rec.args)

	assert.Equal(t, NoOpLogger{}, With(nil))
}
