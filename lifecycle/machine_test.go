package lifecycle

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrt/core"
)

// drive moves a fresh machine into state s through legal transitions.
func drive(t *testing.T, m *Machine, s core.State) {
	t.Helper()
	paths := map[core.State][]Trigger{
		core.StateUnloaded:  {},
		core.StateLoading:   {Load},
		core.StateAttaching: {Load, LoadedNeedsSandbox},
		core.StateIdle:      {Load, Loaded},
		core.StateBusy:      {Load, Loaded, Run},
		core.StateError:     {Load, LoadFailed},
		core.StateStopped:   {Load, Loaded, Unload},
	}
	for _, tr := range paths[s] {
		_, err := m.Fire(tr, "")
		require.NoError(t, err)
	}
	require.Equal(t, s, m.State())
}

func TestMachine_TransitionTableIsExhaustive(t *testing.T) {
	for _, from := range core.States() {
		for _, tr := range Triggers() {
			t.Run(from.String()+"/"+string(tr), func(t *testing.T) {
				m := New("demo", nil)
				drive(t, m, from)
				seqBefore := m.Seq()

				want, legal := Target(from, tr)
				ev, err := m.Fire(tr, "test")
				if legal {
					require.NoError(t, err)
					assert.Equal(t, want, m.State())
					assert.Equal(t, seqBefore+1, m.Seq())
					assert.Equal(t, from, ev.From)
					assert.Equal(t, want, ev.To)
					assert.Equal(t, m.Seq(), ev.Seq)
					return
				}
				require.ErrorIs(t, err, core.ErrInvalidTransition)
				var te *core.TransitionError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, from, te.From)
				assert.Equal(t, from, m.State(), "state unchanged")
				assert.Equal(t, seqBefore, m.Seq(), "sequence unchanged")
			})
		}
	}
}

func TestMachine_StoppedIsTerminal(t *testing.T) {
	m := New("demo", nil)
	drive(t, m, core.StateStopped)
	for _, tr := range Triggers() {
		_, err := m.Fire(tr, "")
		assert.ErrorIs(t, err, core.ErrInvalidTransition, tr)
	}
}

func TestMachine_EmitsStateChanged(t *testing.T) {
	var got []core.Event
	m := New("demo", func(e core.Event) { got = append(got, e) })

	for _, tr := range []Trigger{Load, Loaded, Run, RunCompleted} {
		_, err := m.Fire(tr, string(tr))
		require.NoError(t, err)
	}
	_, err := m.Fire(RunCompleted, "")
	require.Error(t, err)

	require.Len(t, got, 4)
	for i, e := range got {
		assert.Equal(t, core.EventStateChanged, e.Kind)
		assert.Equal(t, "demo", e.Agent)
		assert.Equal(t, uint64(i+1), e.Seq)
	}
	assert.Equal(t, core.StateIdle, got[3].To)
	assert.Equal(t, "run_completed", got[3].Reason)
}

func TestMachine_EmitOutsideLock(t *testing.T) {
	var m *Machine
	m = New("demo", func(e core.Event) {
		// Reading the machine from the emitter would deadlock if the lock were held.
		assert.Equal(t, e.To, m.State())
	})
	_, err := m.Fire(Load, "")
	require.NoError(t, err)
}

func TestMachine_ConcurrentFireSingleWinner(t *testing.T) {
	m := New("demo", nil)
	drive(t, m, core.StateIdle)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Fire(Run, ""); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.Equal(t, core.StateBusy, m.State())
}
