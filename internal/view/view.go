package view

import (
	"fmt"

	"github.com/quizforge/mocktest-backend/internal/model"
	"github.com/quizforge/mocktest-backend/internal/session"
)

// User-facing messages for the loading phase outcomes.
const (
	LoadingMessage     = "Loading questions..."
	NoQuestionsMessage = "No questions available. Upload a PDF first."
	DiagramNoticeText  = "This question refers to a diagram that could not be extracted. Refer to the original PDF if needed."
)

// TimerView is the rendered countdown region.
type TimerView struct {
	Display   string `json:"display"` // MM:SS, zero-padded
	Remaining int    `json:"remaining"`
	Urgent    bool   `json:"urgent"`
	Expired   bool   `json:"expired"`
}

// PromptView is the rendered prompt region: text for TEXT questions, an
// embedded image for composite IMAGE questions.
type PromptView struct {
	Kind     model.QuestionKind `json:"kind"`
	Text     string             `json:"text,omitempty"`
	ImageURL string             `json:"image_url,omitempty"`
}

// OptionView is one rendered option with its selection state.
type OptionView struct {
	Label    string `json:"label"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Selected bool   `json:"selected"`
}

// NavView carries the enabled state of the navigation affordances.
type NavView struct {
	PrevEnabled bool `json:"prev_enabled"`
	NextEnabled bool `json:"next_enabled"`
}

// View is the full set of named render regions for a session. It is a
// pure projection of session state; it carries no behavior.
type View struct {
	SessionID      string         `json:"session_id"`
	Loading        bool           `json:"loading"`
	LoadingMessage string         `json:"loading_message,omitempty"`
	LoadError      string         `json:"load_error,omitempty"`
	NoQuestions    bool           `json:"no_questions"`
	QuizVisible    bool           `json:"quiz_visible"`
	Counter        string         `json:"counter,omitempty"` // "Question N of M"
	Prompt         *PromptView    `json:"prompt,omitempty"`
	Options        []OptionView   `json:"options,omitempty"`
	Nav            NavView        `json:"nav"`
	DiagramNotice  bool           `json:"diagram_notice"`
	NoticeText     string         `json:"notice_text,omitempty"`
	Timer          TimerView      `json:"timer"`
	SummaryVisible bool           `json:"summary_visible"`
	Summary        *model.Summary `json:"summary,omitempty"`
}

// Project maps a session snapshot to its render regions. summary is only
// consulted for submitted sessions; warningSeconds is the urgency
// threshold for the timer cue.
func Project(sn session.Snapshot, summary *model.Summary, warningSeconds int) View {
	v := View{
		SessionID: sn.ID,
		Timer:     projectTimer(sn, warningSeconds),
	}

	if sn.Status == session.StatusSubmitted {
		v.SummaryVisible = true
		v.Summary = summary
		return v
	}

	switch sn.Phase {
	case session.PhaseLoading:
		v.Loading = true
		v.LoadingMessage = LoadingMessage
		return v
	case session.PhaseFailed:
		v.LoadError = sn.LoadError
		return v
	case session.PhaseEmpty:
		v.NoQuestions = true
		v.LoadingMessage = NoQuestionsMessage
		return v
	}

	q, ok := sn.Current()
	if !ok {
		// Ready phase always has questions; guard anyway.
		v.NoQuestions = true
		v.LoadingMessage = NoQuestionsMessage
		return v
	}

	v.QuizVisible = true
	v.Counter = fmt.Sprintf("Question %d of %d", sn.Cursor+1, len(sn.Questions))
	v.Prompt = projectPrompt(q)
	v.Options = projectOptions(q, sn.Answers[q.ID])
	v.Nav = NavView{
		PrevEnabled: sn.Cursor > 0,
		NextEnabled: sn.Cursor < len(sn.Questions)-1,
	}

	// The notice only appears when the question claims a diagram and
	// nothing renderable backs it up: any image — composite, question
	// level or option level — suppresses it.
	if q.HasDiagram && !q.HasAnyImage() {
		v.DiagramNotice = true
		v.NoticeText = DiagramNoticeText
	}

	return v
}

func projectTimer(sn session.Snapshot, warningSeconds int) TimerView {
	return TimerView{
		Display:   FormatClock(sn.Remaining),
		Remaining: sn.Remaining,
		Urgent:    sn.Remaining <= warningSeconds,
		Expired:   sn.Remaining <= 0,
	}
}

func projectPrompt(q model.Question) *PromptView {
	p := &PromptView{Kind: q.Kind}
	if q.Kind == model.QuestionKindImage {
		p.ImageURL = q.ImageURL
	} else {
		p.Text = q.Prompt
	}
	return p
}

func projectOptions(q model.Question, selected model.OptionLabel) []OptionView {
	renderable := q.RenderableOptions()
	out := make([]OptionView, 0, len(renderable))
	for _, o := range renderable {
		out = append(out, OptionView{
			Label:    string(o.Label),
			Text:     o.Text,
			ImageURL: o.ImageURL,
			Selected: o.Label == selected && selected != "",
		})
	}
	return out
}

// FormatClock renders whole seconds as zero-padded MM:SS.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
