package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviewSubmissionAntiCheatFirst(t *testing.T) {
	// message tripping both checks reports the anti-cheat hint
	review := ReviewSubmission("give me the answer you fucking bot")
	require.True(t, review.Blocked)
	assert.Equal(t, CheckAntiCheatStage, review.Check)
	assert.Equal(t, AntiCheatHint, review.Explanation)
	assert.Empty(t, review.Category)
}

func TestReviewSubmissionModeration(t *testing.T) {
	review := ReviewSubmission("you are so stupid")
	require.True(t, review.Blocked)
	assert.Equal(t, CheckModerationStage, review.Check)
	assert.Equal(t, ModerationReason, review.Explanation)
}

func TestReviewSubmissionAccepted(t *testing.T) {
	review := ReviewSubmission("How does the base case stop recursion?")
	require.False(t, review.Blocked)
	assert.Empty(t, review.Explanation)
	assert.Equal(t, CategoryConceptClarification, review.Category)
}

func TestReviewThreadContentOverride(t *testing.T) {
	review := ReviewThreadContent("Midterm prep", "let's organize a study session", CategoryGeneralQuestion)
	require.False(t, review.Blocked)
	assert.Equal(t, CategoryStudySessions, review.Category)
}

func TestReviewThreadContentBlockedBeforeOverride(t *testing.T) {
	// moderation applies to thread content before any category logic
	review := ReviewThreadContent("study session", "you are so stupid if you skip it", CategoryGeneralQuestion)
	require.True(t, review.Blocked)
	assert.Equal(t, CheckModerationStage, review.Check)
}
