// Package state holds the conversation loop's session state machine.
package state

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

type State int

const (
	StateIdle State = iota
	StateListening
	StateProcessing
	StateSpeaking
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateListening:
		return "Listening"
	case StateProcessing:
		return "Processing"
	case StateSpeaking:
		return "Speaking"
	default:
		return "Unknown"
	}
}

// ErrInvalidTransition is returned when a transition is not allowed from the current state.
var ErrInvalidTransition = errors.New("invalid state transition")

// allowed lists the legal targets for each state. Idle is reachable from
// everywhere; leaving Idle only happens through Start.
var allowed = map[State][]State{
	StateListening:  {StateProcessing, StateIdle},
	StateProcessing: {StateListening, StateSpeaking, StateIdle},
	StateSpeaking:   {StateListening, StateIdle},
}

// Stats counts transitions since the manager was created.
type Stats struct {
	Transitions    int64
	Utterances     int64 // Listening -> Processing
	Replies        int64 // Processing -> Speaking
	LastChange     time.Time
	TimeInSpeaking time.Duration
}

// Manager owns the current State behind a single mutex so readers on the
// capture goroutine never observe a torn combination of flags. Stop is
// terminal: once stopped the manager never leaves Idle again.
type Manager struct {
	mu           sync.Mutex
	currentState State
	stopped      bool
	stats        Stats
	speakingAt   time.Time
	onChange     []func(from, to State)
}

func NewManager() *Manager {
	return &Manager{
		currentState: StateIdle,
		stats:        Stats{LastChange: time.Now()},
	}
}

// OnChange registers a callback invoked after every successful transition.
// Callbacks run while the lock is held and must not call back into the Manager.
func (m *Manager) OnChange(fn func(from, to State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// GetState returns the current state.
func (m *Manager) GetState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentState
}

func (m *Manager) transition(s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionLocked(s)
}

// transitionLocked moves to s if that is legal from the current state.
// m.mu must be held.
func (m *Manager) transitionLocked(s State) error {
	from := m.currentState
	if from == s {
		return nil
	}
	if !canMove(from, s) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, s)
	}
	m.apply(from, s)
	return nil
}

func (m *Manager) apply(from, to State) {
	now := time.Now()
	m.currentState = to
	m.stats.Transitions++
	m.stats.LastChange = now
	switch {
	case from == StateListening && to == StateProcessing:
		m.stats.Utterances++
	case from == StateProcessing && to == StateSpeaking:
		m.stats.Replies++
		m.speakingAt = now
	case from == StateSpeaking:
		m.stats.TimeInSpeaking += now.Sub(m.speakingAt)
	}

	for _, fn := range m.onChange {
		fn(from, to)
	}
}

func canMove(from, to State) bool {
	for _, t := range allowed[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Start enters Listening from Idle. It fails once the manager has been stopped.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.stopped:
		return fmt.Errorf("%w: stopped", ErrInvalidTransition)
	case m.currentState != StateIdle:
		return fmt.Errorf("%w: already running", ErrInvalidTransition)
	}
	m.apply(StateIdle, StateListening)
	return nil
}

// BeginProcessing claims a dequeued frame. It must succeed before any decoding starts.
func (m *Manager) BeginProcessing() error { return m.transition(StateProcessing) }

// BeginSpeaking marks the start of synthesis and playback.
func (m *Manager) BeginSpeaking() error { return m.transition(StateSpeaking) }

// Resume returns to Listening after processing or speaking. In Idle it is a
// no-op so a late finisher cannot revive a stopped loop.
func (m *Manager) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.currentState == StateIdle {
		return nil
	}
	return m.transitionLocked(StateListening)
}

// Stop forces the terminal Idle state from anywhere.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = true
	_ = m.transitionLocked(StateIdle)
}

// WhileListening runs fn with the lock held if the state is Listening, so no
// transition can interleave with it. fn must not block or call the Manager.
func (m *Manager) WhileListening(fn func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.currentState != StateListening {
		return false
	}
	fn()
	return true
}

// Stats returns a copy of the transition counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}
