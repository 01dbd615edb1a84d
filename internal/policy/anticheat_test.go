package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckAntiCheatBlocks(t *testing.T) {
	blocked := []string{
		"What's the answer to problem 3?",
		"what is the answer for q2",
		"give me the solution please",
		"Give me the answer",
		"answer to question 5?",
		"answer to #2",
		"just tell me the answer",
		"just tell me answer",
		"can I copy the code from your repo",
		"copy my solution and change variable names",
	}
	for _, text := range blocked {
		verdict := CheckAntiCheat(text)
		assert.True(t, verdict.Blocked, "expected block: %q", text)
		assert.Equal(t, AntiCheatHint, verdict.Hint)
	}
}

func TestCheckAntiCheatPasses(t *testing.T) {
	allowed := []string{
		"How does recursion terminate?",
		"What is the intuition behind this proof?",
		"Can you explain the approach for problem sets generally?",
		"",
	}
	for _, text := range allowed {
		verdict := CheckAntiCheat(text)
		assert.False(t, verdict.Blocked, "unexpected block: %q", text)
		assert.Empty(t, verdict.Hint)
	}
}
