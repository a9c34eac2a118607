package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWakeAndQuestion(t *testing.T) {
	c := NewDefault()

	tests := []struct {
		text      string
		addressed bool
		question  bool
	}{
		{"Hey Assistant, what is artificial intelligence?", true, true},
		{"the sky is blue today", false, false},
		{"Okay Google", true, false},
		{"robot turn left", true, false},
		{"Computer, status report", true, false},
		{"listen to me", true, false},
		{"Attention everyone", true, false},
		{"wake up now", true, false},
		{"are you there", true, false},
		{"what time is it?", false, true},
		{"How does this work?", false, true},
		{"Can you open the door?", false, true},
		{"Should I bring an umbrella?", false, true},
		{"tell me about mars", false, true},
		{"I need help with my homework", false, true},
		{"what time is it", false, false},
		{"my friend said hey there", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.addressed, c.AddressedToAssistant(tt.text), "addressed")
			assert.Equal(t, tt.question, c.RequiresResponse(tt.text), "question")
			assert.Equal(t, tt.addressed || tt.question, c.ShouldRespond(tt.text))
		})
	}
}

func TestClassificationIsIdempotent(t *testing.T) {
	c := NewDefault()
	inputs := []string{
		"Hey Assistant, what is artificial intelligence?",
		"the sky is blue today",
		"WHAT IS THIS?",
		"",
	}

	for _, in := range inputs {
		first := c.Classify(in)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, c.Classify(in))
		}
		// case only matters before lower-casing
		assert.Equal(t, first.Respond(), c.Classify(in).Respond())
	}

	// reversing the call order does not change results
	a1 := c.Classify(inputs[0])
	b1 := c.Classify(inputs[1])
	b2 := c.Classify(inputs[1])
	a2 := c.Classify(inputs[0])
	assert.Equal(t, a1, a2)
	assert.Equal(t, b1, b2)
}

func TestClassifyReportsMatchedPattern(t *testing.T) {
	c := NewDefault()
	d := c.Classify("hey robot")
	assert.True(t, d.Addressed)
	assert.Contains(t, d.Matched, "hey")

	d = c.Classify("nothing here")
	assert.Empty(t, d.Matched)
	assert.False(t, d.Respond())
}

func TestCustomPatternsExtendWithoutCodeChanges(t *testing.T) {
	p := DefaultPatterns().Extend([]string{`^jarvis`, " "}, []string{`remind me`})
	c, err := New(p)
	require.NoError(t, err)

	assert.True(t, c.AddressedToAssistant("Jarvis, lights on"))
	assert.True(t, c.RequiresResponse("remind me at noon"))
	assert.True(t, c.AddressedToAssistant("hey robot"))
}

func TestInvalidPattern(t *testing.T) {
	_, err := New(Patterns{Wake: []string{"("}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wake patterns")
}

func TestParsePatterns(t *testing.T) {
	p, err := ParsePatterns([]byte("wake:\n  - '^jarvis'\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"^jarvis"}, p.Wake)
	assert.Equal(t, DefaultPatterns().Question, p.Question)

	_, err = ParsePatterns([]byte("wake: [unterminated"))
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b c"}, SplitList(" a, ,b c,"))
	assert.Nil(t, SplitList(""))
}
