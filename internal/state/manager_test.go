package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateString(t *testing.T) {
	assert.Equal(t, "Idle", StateIdle.String())
	assert.Equal(t, "Listening", StateListening.String())
	assert.Equal(t, "Processing", StateProcessing.String())
	assert.Equal(t, "Speaking", StateSpeaking.String())
	assert.Equal(t, "Unknown", State(42).String())
}

func TestHappyPathTransitions(t *testing.T) {
	m := NewManager()
	assert.Equal(t, StateIdle, m.GetState())

	require.NoError(t, m.Start())
	assert.Equal(t, StateListening, m.GetState())

	require.NoError(t, m.BeginProcessing())
	assert.Equal(t, StateProcessing, m.GetState())

	require.NoError(t, m.BeginSpeaking())
	assert.Equal(t, StateSpeaking, m.GetState())

	require.NoError(t, m.Resume())
	assert.Equal(t, StateListening, m.GetState())

	s := m.Stats()
	assert.EqualValues(t, 1, s.Utterances)
	assert.EqualValues(t, 1, s.Replies)
	assert.EqualValues(t, 4, s.Transitions)
}

func TestIllegalTransitions(t *testing.T) {
	m := NewManager()
	assert.ErrorIs(t, m.BeginProcessing(), ErrInvalidTransition)
	assert.ErrorIs(t, m.BeginSpeaking(), ErrInvalidTransition)

	require.NoError(t, m.Start())
	assert.ErrorIs(t, m.Start(), ErrInvalidTransition)
	assert.ErrorIs(t, m.BeginSpeaking(), ErrInvalidTransition, "speaking requires processing first")
}

func TestStopIsTerminalForLateFinishers(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Start())
	require.NoError(t, m.BeginProcessing())
	require.NoError(t, m.BeginSpeaking())

	m.Stop()
	assert.Equal(t, StateIdle, m.GetState())

	// the in-flight speak finishing must not bring the loop back
	require.NoError(t, m.Resume())
	assert.Equal(t, StateIdle, m.GetState())
	assert.False(t, m.WhileListening(func() {}))
}

func TestStoppedManagerStaysIdle(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Start())
	m.Stop()

	assert.ErrorIs(t, m.Start(), ErrInvalidTransition)
	assert.ErrorIs(t, m.transition(StateListening), ErrInvalidTransition)
	assert.ErrorIs(t, m.BeginProcessing(), ErrInvalidTransition)
	assert.Equal(t, StateIdle, m.GetState())
}

func TestResumeRacingStopEndsIdle(t *testing.T) {
	for i := 0; i < 2000; i++ {
		m := NewManager()
		require.NoError(t, m.Start())
		require.NoError(t, m.BeginProcessing())

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = m.Resume()
		}()
		go func() {
			defer wg.Done()
			m.Stop()
		}()
		wg.Wait()

		require.Equal(t, StateIdle, m.GetState(), "iteration %d", i)
	}
}

func TestOnChangeObservesEveryTransition(t *testing.T) {
	m := NewManager()
	var seen []string
	m.OnChange(func(from, to State) { seen = append(seen, from.String()+">"+to.String()) })

	require.NoError(t, m.Start())
	require.NoError(t, m.BeginProcessing())
	require.NoError(t, m.Resume())
	m.Stop()

	assert.Equal(t, []string{
		"Idle>Listening",
		"Listening>Processing",
		"Processing>Listening",
		"Listening>Idle",
	}, seen)
}

func TestConcurrentReadersSeeConsistentState(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Start())

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				s := m.GetState()
				assert.Contains(t, []State{StateListening, StateProcessing, StateSpeaking}, s)
			}
		}()
	}

	for i := 0; i < 1000; i++ {
		require.NoError(t, m.BeginProcessing())
		if i%2 == 0 {
			require.NoError(t, m.BeginSpeaking())
		}
		require.NoError(t, m.Resume())
	}
	close(stop)
	wg.Wait()
}

func TestWhileListening(t *testing.T) {
	m := NewManager()
	ran := 0
	assert.False(t, m.WhileListening(func() { ran++ }))

	require.NoError(t, m.Start())
	assert.True(t, m.WhileListening(func() { ran++ }))

	require.NoError(t, m.BeginProcessing())
	assert.False(t, m.WhileListening(func() { ran++ }))
	assert.Equal(t, 1, ran)
}
