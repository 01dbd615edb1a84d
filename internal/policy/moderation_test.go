package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckContentModerationBlankInput(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t  "} {
		verdict := CheckContentModeration(text)
		assert.False(t, verdict.Blocked)
		assert.Empty(t, verdict.Reason)
	}
}

func TestCheckContentModerationWordBlocklist(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		blocked bool
	}{
		{"plain profanity", "this assignment is bullshit", true},
		{"capitalized", "FUCK this exam", true},
		{"punctuation stripped", "shit!!! I missed the deadline", true},
		{"slur", "stop being a retard", true},
		{"no stemming", "the class is classic", false},
		{"clean message", "could someone clarify the pivot selection?", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := CheckContentModeration(tt.text)
			assert.Equal(t, tt.blocked, verdict.Blocked)
		})
	}
}

func TestCheckContentModerationPhrases(t *testing.T) {
	blocked := []string{
		"you are so stupid",
		"you're an idiot",
		"let's get drunk after the exam",
		"who wants to smoke weed later",
		"i hate everyone in this class",
		"kill yourself",
		"stfu nobody asked",
		"i'll punch you after class",
		"fight me",
		"send nudes",
		"you are so hot",
		"go back to your country",
		"shiiit that midterm was hard",
	}
	for _, text := range blocked {
		verdict := CheckContentModeration(text)
		assert.True(t, verdict.Blocked, "expected block: %q", text)
		assert.Equal(t, ModerationReason, verdict.Reason)
	}
}

// The bare "i hate" phrase rule is known to flag legitimate academic
// complaints; this pins the carried-over behavior so a future narrowing
// shows up as an explicit test change.
func TestCheckContentModerationKnownFalsePositive(t *testing.T) {
	verdict := CheckContentModeration("I hate when recursion doesn't terminate")
	assert.True(t, verdict.Blocked)
}

func TestCheckContentModerationSingleReason(t *testing.T) {
	// word hit and phrase hit report the identical canonical reason
	word := CheckContentModeration("what the fuck")
	phrase := CheckContentModeration("you are so stupid")
	assert.Equal(t, word.Reason, phrase.Reason)
}

func TestModeratorCustomMatcher(t *testing.T) {
	m := NewModerator(NewBlocklistMatcher("banned"))
	assert.True(t, m.Check("this word is Banned.").Blocked)
	assert.False(t, m.Check("this word is fine").Blocked)
}
