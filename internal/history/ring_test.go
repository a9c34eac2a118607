package history

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTurnString(t *testing.T) {
	assert.Equal(t, "User:hello", Turn{Role: RoleUser, Text: "hello"}.String())
	assert.Equal(t, "Assistant:hi there", Turn{Role: RoleAssistant, Text: "hi there"}.String())
}

func TestRingNeverExceedsCapacity(t *testing.T) {
	for _, n := range []int{0, 1, 9, 10, 11, 25, 103} {
		t.Run(fmt.Sprintf("appends=%d", n), func(t *testing.T) {
			r := NewRing(DefaultCapacity)
			for i := 0; i < n; i++ {
				r.AddUser(fmt.Sprintf("turn %d", i))
				require.LessOrEqual(t, r.Len(), DefaultCapacity)
			}

			got := r.Snapshot()
			want := n
			if want > DefaultCapacity {
				want = DefaultCapacity
			}
			require.Len(t, got, want)

			// the most recent turns survive, oldest first
			for i, turn := range got {
				assert.Equal(t, fmt.Sprintf("turn %d", n-want+i), turn.Text)
			}
		})
	}
}

func TestRingEvictsOldestFirst(t *testing.T) {
	r := NewRing(3)
	r.AddUser("a")
	r.AddAssistant("b")
	r.AddUser("c")
	r.AddAssistant("d")

	assert.Equal(t, []Turn{
		{Role: RoleAssistant, Text: "b"},
		{Role: RoleUser, Text: "c"},
		{Role: RoleAssistant, Text: "d"},
	}, r.Snapshot())
	assert.Equal(t, 3, r.Len())
}

func TestSnapshotIsACopy(t *testing.T) {
	r := NewRing(2)
	r.AddUser("x")
	snap := r.Snapshot()
	snap[0].Text = "mutated"
	assert.Equal(t, "x", r.Snapshot()[0].Text)
}

func TestDefaultCapacity(t *testing.T) {
	r := NewRing(-1)
	assert.Equal(t, DefaultCapacity, r.Cap())
	assert.Zero(t, r.Len())
	assert.Empty(t, r.Snapshot())
}
