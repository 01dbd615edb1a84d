package policy

import (
	"regexp"
	"strings"
)

// ModerationVerdict is the result of the content-moderation check.
// Reason is non-empty iff Blocked is true.
type ModerationVerdict struct {
	Blocked bool   `json:"blocked"`
	Reason  string `json:"reason,omitempty"`
}

// ModerationReason is the one canonical explanation returned for every
// blocked message, regardless of which word or phrase rule fired.
const ModerationReason = "This message contains inappropriate content and cannot be posted. Please keep discussions respectful and academic."

// WordMatcher decides whether a single normalized token is disallowed.
// The default is a flat blocklist; callers that want smarter matching can
// construct a Moderator with their own implementation.
type WordMatcher interface {
	Match(token string) bool
}

// BlocklistMatcher is a WordMatcher backed by an exact-membership set.
type BlocklistMatcher map[string]struct{}

// Match reports exact membership of the token in the blocklist.
func (m BlocklistMatcher) Match(token string) bool {
	_, ok := m[token]
	return ok
}

// NewBlocklistMatcher builds a matcher from the given lower-case words.
func NewBlocklistMatcher(words ...string) BlocklistMatcher {
	m := make(BlocklistMatcher, len(words))
	for _, w := range words {
		m[strings.ToLower(w)] = struct{}{}
	}
	return m
}

var defaultBlocklist = NewBlocklistMatcher(
	"fuck", "fucking", "motherfucker", "shit", "bullshit", "bitch",
	"asshole", "bastard", "dick", "cunt", "whore", "slut", "prick",
	"twat", "wanker", "douchebag", "dumbass", "jackass", "retard",
	"faggot", "nigger", "nigga",
)

// Phrase rules cover whole-sentence patterns the word blocklist cannot.
// Several of these are deliberately broad (bare "i hate", appearance
// comments) and are known to catch legitimate academic phrasing such as
// "I hate when recursion doesn't terminate". That precision/recall
// tradeoff is carried over from the production rule set on purpose and is
// flagged for product review rather than silently narrowed here.
var inappropriatePhrases = []*regexp.Regexp{
	// alcohol / drugs
	regexp.MustCompile(`(?i)\b(let'?s?\s+(get\s+)?drunk|let'?s?\s+go\s+drink(ing)?|get\s+wasted|get\s+hammered|let'?s?\s+party\s+hard|chug\s+beer|shotgun\s+beers?|beer\s+pong|keg\s+stand)\b`),
	regexp.MustCompile(`(?i)\b(do\s+drugs|smoke\s+weed|get\s+high|let'?s?\s+trip|pop\s+pills)\b`),

	// hate speech / bullying
	regexp.MustCompile(`(?i)\bi\s+hate\b`),
	regexp.MustCompile(`(?i)\b(kill\s+(yourself|your\s*self|myself|my\s*self)|go\s+die)\b`),
	regexp.MustCompile(`(?i)\byou('re|\s+are)\s+(so\s+|such\s+a\s+|really\s+)?(stupid|dumb|an?\s+idiot|idiot|worthless|ugly|trash|garbage|pathetic|a\s+loser|loser)\b`),
	regexp.MustCompile(`(?i)\b(shut\s+(the\s+f+|up)\s*(b+|c+)?|stfu|gtfo|kys)\b`),

	// leetspeak / elongated profanity the token blocklist misses
	regexp.MustCompile(`(?i)\b(f+u+c+k+|sh[i1]+t+|b[i1]+tch|a+ss+h+o+le|d[i1]+ck|damn\s+you|wtf|lmfao)\b`),

	// violence / threats
	regexp.MustCompile(`(?i)\b(i('ll|'m\s+gonna)\s+(kill|hurt|beat|punch|stab|shoot)\s+(you|him|her|them))\b`),
	regexp.MustCompile(`(?i)\b(fight\s+me|pull\s+up|catch\s+(these\s+)?hands)\b`),

	// sexual content / appearance comments about a person
	regexp.MustCompile(`(?i)\b(send\s+nudes|hook\s*up|netflix\s+and\s+chill|booty\s+call)\b`),
	regexp.MustCompile(`(?i)\byou('re|\s+are)\s+(so\s+|really\s+)?(hot|sexy|fine|gorgeous)\b`),

	// discrimination
	regexp.MustCompile(`(?i)\b(go\s+back\s+to\s+your\s+country|you\s+don'?t\s+belong\s+here)\b`),
}

var tokenSplitter = regexp.MustCompile(`[\s\p{P}]+`)

// Moderator runs the two-stage moderation check: exact word membership
// first, then the ordered phrase patterns over the full text.
type Moderator struct {
	words   WordMatcher
	phrases []*regexp.Regexp
}

// NewModerator builds a Moderator; a nil matcher uses the default blocklist.
func NewModerator(words WordMatcher) *Moderator {
	if words == nil {
		words = defaultBlocklist
	}
	return &Moderator{words: words, phrases: inappropriatePhrases}
}

// Check evaluates the text. Blank or whitespace-only input is never
// flagged. Any word or phrase hit yields the single canonical reason.
func (m *Moderator) Check(text string) ModerationVerdict {
	normalized := strings.TrimSpace(strings.ToLower(text))
	if normalized == "" {
		return ModerationVerdict{}
	}

	for _, token := range tokenSplitter.Split(normalized, -1) {
		if token == "" {
			continue
		}
		if m.words.Match(token) {
			return ModerationVerdict{Blocked: true, Reason: ModerationReason}
		}
	}

	for _, phrase := range m.phrases {
		if phrase.MatchString(normalized) {
			return ModerationVerdict{Blocked: true, Reason: ModerationReason}
		}
	}

	return ModerationVerdict{}
}

var defaultModerator = NewModerator(nil)

// CheckContentModeration runs the default Moderator over the text.
func CheckContentModeration(text string) ModerationVerdict {
	return defaultModerator.Check(text)
}
