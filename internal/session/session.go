package session

import (
	"errors"
	"sync"
	"time"

	"github.com/quizforge/mocktest-backend/internal/model"
)

// LoadPhase tracks the outcome of the question fetch. The fetch runs
// asynchronously, so a session can be interacted with while still loading.
type LoadPhase string

const (
	PhaseLoading LoadPhase = "LOADING"
	PhaseReady   LoadPhase = "READY"
	PhaseEmpty   LoadPhase = "EMPTY"
	PhaseFailed  LoadPhase = "FAILED"
)

// Status is the session lifecycle state. Submission is terminal.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusSubmitted Status = "SUBMITTED"
)

var (
	// ErrSubmitted is returned by mutations on a submitted session.
	ErrSubmitted = errors.New("session already submitted")
	// ErrNoQuestions is returned by Select when there is no current
	// question to attach the answer to.
	ErrNoQuestions = errors.New("session has no questions")
	// ErrInvalidLabel is returned by Select for labels outside A–D.
	ErrInvalidLabel = errors.New("invalid option label")
)

// Session owns the state of one quiz attempt: the immutable question list,
// the cursor, the answer map and the countdown. All transitions are atomic
// under the session mutex; ordering between ticks and user actions comes
// from that mutex, nothing else is shared.
type Session struct {
	mu sync.Mutex

	id        string
	phase     LoadPhase
	loadErr   string
	status    Status
	questions []model.Question
	cursor    int
	answers   map[string]model.OptionLabel
	// selection mirrors the active choice of the currently displayed
	// question. It is flushed into the answer map before the cursor
	// moves and before submission.
	selection model.OptionLabel
	remaining int

	createdAt   time.Time
	submittedAt time.Time
	summary     *model.Summary
}

// New creates an active session in the loading phase with a full
// countdown budget.
func New(id string, budgetSeconds int) *Session {
	return &Session{
		id:        id,
		phase:     PhaseLoading,
		status:    StatusActive,
		answers:   make(map[string]model.OptionLabel),
		remaining: budgetSeconds,
		createdAt: time.Now(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CompleteLoad records the outcome of the question fetch. The countdown
// keeps running whatever the outcome; a failed or empty load only changes
// what gets rendered.
func (s *Session) CompleteLoad(questions []model.Question, loadErr error, empty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case empty:
		s.phase = PhaseEmpty
	case loadErr != nil:
		s.phase = PhaseFailed
		s.loadErr = loadErr.Error()
	default:
		s.phase = PhaseReady
		s.questions = questions
		// A restored cursor may point past a shorter freshly-fetched
		// list; clamp before deriving the active selection.
		if s.cursor >= len(s.questions) {
			s.cursor = len(s.questions) - 1
		}
		if s.cursor < 0 {
			s.cursor = 0
		}
		s.selection = s.answers[s.currentIDLocked()]
	}
}

// Select records the given label for the currently displayed question.
// The answer map update is immediate, not deferred to navigation.
func (s *Session) Select(label model.OptionLabel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusSubmitted {
		return ErrSubmitted
	}
	if !label.Valid() {
		return ErrInvalidLabel
	}
	id := s.currentIDLocked()
	if id == "" {
		return ErrNoQuestions
	}

	s.selection = label
	s.answers[id] = label
	return nil
}

// Navigate moves the cursor by direction (-1 or +1). The current selection
// is flushed first; an out-of-bounds move leaves cursor and state
// unchanged. Navigating a submitted session is a no-op.
func (s *Session) Navigate(direction int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusSubmitted {
		return
	}

	s.flushLocked()

	next := s.cursor + direction
	if next < 0 || next >= len(s.questions) {
		return
	}
	s.cursor = next
	s.selection = s.answers[s.currentIDLocked()]
}

// Tick decrements the countdown by one second. It returns the remaining
// seconds and whether this tick crossed into expiry; the caller owns
// stopping the tick source and firing the automatic submission. Ticks on
// a submitted session are no-ops.
func (s *Session) Tick() (remaining int, expired bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusSubmitted || s.remaining <= 0 {
		return s.remaining, false
	}

	s.remaining--
	if s.remaining <= 0 {
		s.remaining = 0
		return 0, true
	}
	return s.remaining, false
}

// Submit flushes the current selection and transitions the session to the
// terminal submitted state, computing the summary once. Repeated calls
// return the same summary and change nothing.
func (s *Session) Submit() *model.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusSubmitted {
		return s.summary
	}

	s.flushLocked()
	s.status = StatusSubmitted
	s.submittedAt = time.Now()
	s.summary = s.summaryLocked()
	return s.summary
}

// Summary returns the submitted summary, or a live tally for a session
// that has not been submitted yet.
func (s *Session) Summary() *model.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.summary != nil {
		return s.summary
	}
	return s.summaryLocked()
}

// Snapshot returns a consistent copy of the session state for rendering
// or persistence. The question slice is shared; it is immutable after
// load.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	answers := make(map[string]model.OptionLabel, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}

	return Snapshot{
		ID:          s.id,
		Phase:       s.phase,
		LoadError:   s.loadErr,
		Status:      s.status,
		Questions:   s.questions,
		Cursor:      s.cursor,
		Answers:     answers,
		Selection:   s.selection,
		Remaining:   s.remaining,
		CreatedAt:   s.createdAt,
		SubmittedAt: s.submittedAt,
	}
}

// Restore overwrites cursor, answers and remaining time from a persisted
// snapshot. Used when rebuilding the registry after a restart; the
// question list itself is re-fetched, not persisted.
func (s *Session) Restore(cursor int, answers map[string]model.OptionLabel, remaining int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusSubmitted {
		return
	}
	for k, v := range answers {
		if v.Valid() {
			s.answers[k] = v
		}
	}
	if remaining >= 0 && remaining < s.remaining {
		s.remaining = remaining
	}
	if cursor >= 0 {
		// The question list may not be loaded yet; the cursor is
		// clamped again on load completion via navigation bounds.
		s.cursor = cursor
	}
	s.selection = s.answers[s.currentIDLocked()]
}

// SubmittedAt returns when the session was submitted (zero if active).
func (s *Session) SubmittedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submittedAt
}

// Status returns the lifecycle status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// ─── internal ───────────────────────────────────────────────────────

// currentIDLocked returns the ID of the question under the cursor, or ""
// when no questions are loaded. Caller must hold s.mu.
func (s *Session) currentIDLocked() string {
	if s.cursor < 0 || s.cursor >= len(s.questions) {
		return ""
	}
	return s.questions[s.cursor].ID
}

// flushLocked writes the active selection into the answer map. It never
// deletes: with nothing selected, a previously stored answer stays put.
// Caller must hold s.mu.
func (s *Session) flushLocked() {
	id := s.currentIDLocked()
	if id == "" || s.selection == "" {
		return
	}
	s.answers[id] = s.selection
}

// summaryLocked tallies attempted vs. unanswered. Caller must hold s.mu.
func (s *Session) summaryLocked() *model.Summary {
	total := len(s.questions)
	entries := make([]model.SummaryEntry, 0, total)
	attempted := 0

	for i, q := range s.questions {
		entry := model.SummaryEntry{
			Position:   i + 1,
			QuestionID: q.ID,
		}
		if label, ok := s.answers[q.ID]; ok {
			entry.Answered = true
			entry.Label = string(label)
			attempted++
		}
		entries = append(entries, entry)
	}

	return &model.Summary{
		Total:      total,
		Attempted:  attempted,
		Unanswered: total - attempted,
		Entries:    entries,
	}
}

// Snapshot is a consistent read-only copy of session state.
type Snapshot struct {
	ID          string
	Phase       LoadPhase
	LoadError   string
	Status      Status
	Questions   []model.Question
	Cursor      int
	Answers     map[string]model.OptionLabel
	Selection   model.OptionLabel
	Remaining   int
	CreatedAt   time.Time
	SubmittedAt time.Time
}

// Current returns the question under the cursor and whether one exists.
func (sn Snapshot) Current() (model.Question, bool) {
	if sn.Cursor < 0 || sn.Cursor >= len(sn.Questions) {
		return model.Question{}, false
	}
	return sn.Questions[sn.Cursor], true
}
