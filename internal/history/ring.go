// Package history keeps the most recent conversation turns in a fixed-size ring.
package history

import "sync"

// DefaultCapacity is the number of turns retained when no capacity is given.
const DefaultCapacity = 10

// Role tags who produced a turn.
type Role string

const (
	RoleUser      Role = "User"
	RoleAssistant Role = "Assistant"
)

// Turn is one recorded unit of conversation.
type Turn struct {
	Role Role
	Text string
}

// String renders the turn as "User:<text>" or "Assistant:<text>".
func (t Turn) String() string {
	return string(t.Role) + ":" + t.Text
}

// Ring is a capped FIFO of turns. Appending past capacity evicts the oldest turn.
type Ring struct {
	mu    sync.Mutex
	buf   []Turn
	start int
	size  int
}

// NewRing returns a ring holding at most capacity turns.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{buf: make([]Turn, capacity)}
}

// Append records a turn, overwriting the oldest one when full.
func (r *Ring) Append(t Turn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = t
		r.size++
		return
	}
	r.buf[r.start] = t
	r.start = (r.start + 1) % len(r.buf)
}

// AddUser records a User turn.
func (r *Ring) AddUser(text string) { r.Append(Turn{Role: RoleUser, Text: text}) }

// AddAssistant records an Assistant turn.
func (r *Ring) AddAssistant(text string) { r.Append(Turn{Role: RoleAssistant, Text: text}) }

// Snapshot returns the retained turns, oldest first. The slice is a copy.
func (r *Ring) Snapshot() []Turn {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Turn, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Len reports the number of retained turns.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Cap reports the ring capacity.
func (r *Ring) Cap() int { return len(r.buf) }
