package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategorizeRuleOrder(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Category
	}{
		{"concept cue", "Can someone explain the difference between stack and heap?", CategoryConceptClarification},
		{"example cue", "Show me a walk through of quicksort", CategoryExampleRequest},
		{"assignment cue", "Is the homework due Friday or Monday?", CategoryAssignmentHelp},
		{"logistics cue", "Office hours this week?", CategoryLectureLogistics},
		{"fallback", "Big-O notation outside of coursework?", CategoryGeneralQuestion},
		{"concept beats example", "Can you explain with an example?", CategoryConceptClarification},
		{"logistics loses to assignment", "When do I submit?", CategoryAssignmentHelp},
		{"case insensitive", "EXPLAIN POLYMORPHISM", CategoryConceptClarification},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Categorize(tt.text))
		})
	}
}

func TestCategorizeIsDeterministic(t *testing.T) {
	text := "Could you demonstrate how garbage collection works?"
	first := Categorize(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Categorize(text))
	}
}

func TestCategoryValid(t *testing.T) {
	assert.True(t, CategoryStudySessions.Valid())
	assert.False(t, Category("Random").Valid())
	assert.False(t, Category("").Valid())
}

func TestIsStudySessionContent(t *testing.T) {
	assert.True(t, IsStudySessionContent("Midterm prep", "let's organize a study session this Thursday"))
	assert.True(t, IsStudySessionContent("Study group for finals?", ""))
	assert.True(t, IsStudySessionContent("", "Meet at the LIBRARY TO STUDY tonight"))
	assert.False(t, IsStudySessionContent("Recursion question", "Why does my base case never hit?"))
}

func TestResolveThreadCategoryOverride(t *testing.T) {
	// study-session keyword wins regardless of the requested category
	got := ResolveThreadCategory("Midterm", "let's organize a study session", CategoryAssignmentHelp)
	assert.Equal(t, CategoryStudySessions, got)

	// valid requested category is honored when no keyword matches
	got = ResolveThreadCategory("Quicksort", "Why is my pivot wrong?", CategoryExampleRequest)
	assert.Equal(t, CategoryExampleRequest, got)

	// invalid requested category falls back to auto-categorization
	got = ResolveThreadCategory("Homework 3", "Is it finished on time?", Category("bogus"))
	assert.Equal(t, CategoryAssignmentHelp, got)
}
