package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validManifest() Manifest {
	return Manifest{Name: "demo", Description: "Demo agent", Version: "1.0.0"}
}

func TestManifest_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *Manifest)
		module string
		field  string
	}{
		{name: "valid", mutate: func(*Manifest) {}, module: "demo"},
		{name: "valid without module", mutate: func(*Manifest) {}},
		{name: "leading v accepted", mutate: func(m *Manifest) { m.Version = "v2.1.0-rc.1" }, module: "demo"},
		{name: "missing name", mutate: func(m *Manifest) { m.Name = "" }, module: "demo", field: "name"},
		{name: "name with space", mutate: func(m *Manifest) { m.Name = "Demo Agent" }, module: "demo", field: "name"},
		{name: "name not identifier", mutate: func(m *Manifest) { m.Name = "demo-agent" }, module: "demo-agent", field: "name"},
		{name: "name mismatch", mutate: func(m *Manifest) { m.Name = "other" }, module: "demo", field: "name"},
		{name: "missing description", mutate: func(m *Manifest) { m.Description = " " }, module: "demo", field: "description"},
		{name: "missing version", mutate: func(m *Manifest) { m.Version = "" }, module: "demo", field: "version"},
		{name: "short version", mutate: func(m *Manifest) { m.Version = "1.0" }, module: "demo", field: "version"},
		{name: "garbage version", mutate: func(m *Manifest) { m.Version = "latest" }, module: "demo", field: "version"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validManifest()
			tt.mutate(&m)
			err := m.Validate(tt.module)
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrManifest))
			var me *ManifestError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, tt.field, me.Field)
		})
	}
}

func TestManifest_Defaults(t *testing.T) {
	m := Manifest{Name: "chat_qa"}
	assert.Equal(t, "chat_qa", m.EntryPoint())
	assert.Equal(t, "Chat_qa", m.Title())

	m.Entry, m.DisplayName = "chatqa", "Chat Q&A"
	assert.Equal(t, "chatqa", m.EntryPoint())
	assert.Equal(t, "Chat Q&A", m.Title())
}

func TestManifest_Accepts(t *testing.T) {
	m := validManifest()
	assert.True(t, m.Accepts("retriever"))
	m.Capabilities = []string{"retriever"}
	assert.True(t, m.Accepts("retriever"))
	assert.False(t, m.Accepts("tool"))
	assert.True(t, m.Accepts(""))
}

func TestDescriptor_IsImmutable(t *testing.T) {
	m := validManifest()
	m.Capabilities = []string{"tool"}
	d := NewDescriptor(m, "/mods/demo")

	m.Capabilities[0] = "retriever"
	caps := d.Capabilities()
	caps[0] = "mutated"

	assert.Equal(t, []string{"tool"}, d.Capabilities())
	assert.Equal(t, "demo", d.Name())
	assert.Equal(t, "/mods/demo", d.Path())
	assert.Equal(t, "Demo", d.DisplayName())
	assert.False(t, d.NeedsSandbox())
}

func TestErrors_Taxonomy(t *testing.T) {
	cause := errors.New("cause")
	cases := map[error]error{
		&ManifestError{Module: "m", Reason: "r"}:             ErrManifest,
		&LoadError{Agent: "a", Reason: "r", Err: cause}:      ErrLoad,
		&TransitionError{Agent: "a", From: StateIdle}:        ErrInvalidTransition,
		&InvalidStateError{Agent: "a", Op: "run", State: StateBusy}: ErrInvalidState,
		NewCapabilityError("search", "timeout", cause):       ErrCapability,
		&ExecutionError{Agent: "a", Err: cause}:              ErrExecution,
	}
	for err, sentinel := range cases {
		assert.ErrorIs(t, err, sentinel, err.Error())
		assert.NotEmpty(t, err.Error())
	}
	assert.ErrorIs(t, &LoadError{Agent: "a", Err: cause}, cause)
	assert.NotErrorIs(t, &LoadError{Agent: "a"}, ErrManifest)
}
