package policy

// Check identifies which stage of the submission pipeline blocked a message.
type Check string

const (
	CheckAntiCheatStage  Check = "anti_cheat"
	CheckModerationStage Check = "moderation"
)

// Review is the combined outcome of running a submission through the text
// checks. Explanation carries the verdict's user-facing message when
// Blocked; Category is only meaningful for accepted submissions.
type Review struct {
	Blocked     bool     `json:"blocked"`
	Check       Check    `json:"check,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
	Category    Category `json:"category,omitempty"`
}

// ReviewSubmission runs the full text pipeline over a message: anti-cheat
// first, then content moderation, then categorization. The first blocking
// verdict wins and categorization is skipped; anti-cheat deliberately takes
// priority when both could match.
func ReviewSubmission(text string) Review {
	if verdict := CheckAntiCheat(text); verdict.Blocked {
		return Review{Blocked: true, Check: CheckAntiCheatStage, Explanation: verdict.Hint}
	}
	if verdict := CheckContentModeration(text); verdict.Blocked {
		return Review{Blocked: true, Check: CheckModerationStage, Explanation: verdict.Reason}
	}
	return Review{Category: Categorize(text)}
}

// ReviewThreadContent screens a thread's title and body together. The
// category is resolved after the checks so a blocked thread is never
// categorized, and study-session content overrides the requested label.
func ReviewThreadContent(title, body string, requested Category) Review {
	combined := title + "\n" + body
	if verdict := CheckAntiCheat(combined); verdict.Blocked {
		return Review{Blocked: true, Check: CheckAntiCheatStage, Explanation: verdict.Hint}
	}
	if verdict := CheckContentModeration(combined); verdict.Blocked {
		return Review{Blocked: true, Check: CheckModerationStage, Explanation: verdict.Reason}
	}
	return Review{Category: ResolveThreadCategory(title, body, requested)}
}
