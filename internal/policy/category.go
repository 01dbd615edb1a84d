// Package policy implements the pure decision functions applied to every
// student submission: auto-categorization, anti-cheat detection, content
// moderation and class-availability evaluation. All functions in this
// package are deterministic, side-effect free and safe for concurrent use.
package policy

import (
	"regexp"
	"strings"
)

// Category labels a chat message or forum thread.
type Category string

const (
	CategoryConceptClarification Category = "Concept Clarification"
	CategoryExampleRequest       Category = "Example Request"
	CategoryGeneralQuestion      Category = "General Question"
	CategoryAssignmentHelp       Category = "Assignment Help"
	CategoryLectureLogistics     Category = "Lecture Logistics"
	CategoryStudySessions        Category = "Study Sessions"
)

// Categories lists every assignable label.
var Categories = []Category{
	CategoryConceptClarification,
	CategoryExampleRequest,
	CategoryGeneralQuestion,
	CategoryAssignmentHelp,
	CategoryLectureLogistics,
	CategoryStudySessions,
}

// Valid reports whether c is a known category label.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type categoryRule struct {
	pattern  *regexp.Regexp
	category Category
}

// Rules are evaluated in order and are not mutually exclusive, so the order
// below is load-bearing: a message matching several rules gets the first one.
var categoryRules = []categoryRule{
	{regexp.MustCompile(`explain|difference|how does|what is|concept|understand`), CategoryConceptClarification},
	{regexp.MustCompile(`example|show me|demonstrate|walk through`), CategoryExampleRequest},
	{regexp.MustCompile(`homework|assignment|due|submit|grade`), CategoryAssignmentHelp},
	{regexp.MustCompile(`when|where|schedule|lecture|class time|office hours`), CategoryLectureLogistics},
}

// Categorize assigns exactly one category to the given text. The text is
// lower-cased and matched against the ordered rule list; when nothing
// matches the result is CategoryGeneralQuestion.
func Categorize(text string) Category {
	lower := strings.ToLower(text)
	for _, rule := range categoryRules {
		if rule.pattern.MatchString(lower) {
			return rule.category
		}
	}
	return CategoryGeneralQuestion
}

var studySessionKeywords = []string{
	"study session",
	"study group",
	"study together",
	"meet up to study",
	"study meetup",
	"come study",
	"study at",
	"library to study",
}

// IsStudySessionContent reports whether the combined title and body of a
// thread announce a study meetup. Threads that do are always filed under
// CategoryStudySessions regardless of the category the author selected.
func IsStudySessionContent(title, body string) bool {
	combined := strings.ToLower(title + " " + body)
	for _, keyword := range studySessionKeywords {
		if strings.Contains(combined, keyword) {
			return true
		}
	}
	return false
}

// ResolveThreadCategory applies the study-session override on top of the
// author-selected category. An invalid or empty requested category falls
// back to automatic categorization of the combined text.
func ResolveThreadCategory(title, body string, requested Category) Category {
	if IsStudySessionContent(title, body) {
		return CategoryStudySessions
	}
	if requested.Valid() {
		return requested
	}
	return Categorize(title + " " + body)
}
