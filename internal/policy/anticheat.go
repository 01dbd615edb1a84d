package policy

import "regexp"

// AntiCheatVerdict is the result of screening a message for direct
// assignment-answer requests. Hint is non-empty iff Blocked is true.
type AntiCheatVerdict struct {
	Blocked bool   `json:"blocked"`
	Hint    string `json:"hint,omitempty"`
}

// AntiCheatHint is the single pedagogical redirect shown for every blocked
// answer request; the triggering pattern is never surfaced.
const AntiCheatHint = "It looks like you're asking for a direct answer. Try rephrasing your question to focus on the concept, e.g. 'How does this algorithm handle edge cases?' EVA is here to help you learn, not give answers!"

var cheatPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)what(?:'s| is) the answer`),
	regexp.MustCompile(`(?i)give me the (?:answer|solution)`),
	regexp.MustCompile(`(?i)answer to (?:question|problem|#)\s*\d`),
	regexp.MustCompile(`(?i)just tell me (?:the )?answer`),
	regexp.MustCompile(`(?i)copy (?:my|the) (?:code|solution)`),
}

// CheckAntiCheat screens the raw message text against the fixed pattern
// list. Matching is case-insensitive; the function is total and never fails.
func CheckAntiCheat(text string) AntiCheatVerdict {
	for _, pattern := range cheatPatterns {
		if pattern.MatchString(text) {
			return AntiCheatVerdict{Blocked: true, Hint: AntiCheatHint}
		}
	}
	return AntiCheatVerdict{}
}
