package model

// SelectRequest is the payload for recording a selection on the current
// question.
type SelectRequest struct {
	Label string `json:"label" binding:"required,oneof=A B C D"`
}

// NavigateRequest is the payload for moving the cursor one step.
type NavigateRequest struct {
	Direction int `json:"direction" binding:"required,oneof=-1 1"`
}

// SummaryEntry describes one question in the post-submission summary.
type SummaryEntry struct {
	Position   int    `json:"position"` // 1-based ordinal
	QuestionID string `json:"question_id"`
	Answered   bool   `json:"answered"`
	Label      string `json:"label,omitempty"`
}

// Summary is the terminal tally of a submitted session.
type Summary struct {
	Total      int            `json:"total"`
	Attempted  int            `json:"attempted"`
	Unanswered int            `json:"unanswered"`
	Entries    []SummaryEntry `json:"entries"`
}
