package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quizforge/mocktest-backend/internal/loader"
	"github.com/quizforge/mocktest-backend/internal/model"
	"github.com/quizforge/mocktest-backend/internal/store"
)

// ErrSessionNotFound is returned for unknown session IDs.
var ErrSessionNotFound = errors.New("session not found")

// QuestionSource supplies the question set for a starting session.
// *loader.Loader is the production implementation.
type QuestionSource interface {
	Fetch(ctx context.Context) ([]model.Question, error)
}

// SnapshotStore persists session snapshots. *store.SessionStore is the
// production implementation; a nil store disables persistence.
type SnapshotStore interface {
	Save(ctx context.Context, rec store.SnapshotRecord) error
	Load(ctx context.Context, sessionID string) (*store.SnapshotRecord, error)
	Delete(ctx context.Context, sessionID string) error
	ListIDs(ctx context.Context) ([]string, error)
}

// TickEvent is broadcast to stream subscribers on every countdown tick.
type TickEvent struct {
	Remaining int
	Expired   bool
}

// ManagerConfig tunes the session registry.
type ManagerConfig struct {
	// BudgetSeconds is the countdown budget for new sessions.
	BudgetSeconds int
	// TickInterval is the wall-clock length of one countdown tick.
	// Production uses one second; tests shrink it.
	TickInterval time.Duration
	// Retention is how long submitted sessions stay in the registry.
	Retention time.Duration
}

type entry struct {
	sess     *Session
	ticker   *time.Ticker
	done     chan struct{}
	stopOnce sync.Once

	subMu sync.Mutex
	subs  map[chan TickEvent]struct{}
}

// stop halts the tick source. Safe to call from any path that ends the
// session; leaving a ticker running past submission is a leak.
func (e *entry) stop() {
	e.stopOnce.Do(func() {
		e.ticker.Stop()
		close(e.done)
	})
}

// Manager owns the session registry: it creates sessions, runs their
// countdown goroutines, fans tick events out to stream subscribers and
// persists snapshots.
type Manager struct {
	mu      sync.RWMutex
	entries map[string]*entry

	source QuestionSource
	store  SnapshotStore
	cfg    ManagerConfig
	log    zerolog.Logger
}

// NewManager creates a Manager. store may be nil to disable persistence.
func NewManager(source QuestionSource, snapshots SnapshotStore, cfg ManagerConfig, log zerolog.Logger) *Manager {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	return &Manager{
		entries: make(map[string]*entry),
		source:  source,
		store:   snapshots,
		cfg:     cfg,
		log:     log.With().Str("component", "session_manager").Logger(),
	}
}

// Create starts a new session: the countdown begins immediately and the
// question fetch runs in the background so a slow or hung load never
// blocks ticks or user interaction.
func (m *Manager) Create() *Session {
	sess := New(uuid.New().String(), m.cfg.BudgetSeconds)
	e := m.register(sess)

	go m.load(sess)
	go m.run(e)

	m.log.Info().Str("session_id", sess.ID()).Msg("Session created")
	return sess
}

// Get returns a live session by ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e.sess, nil
}

// Select records an answer for the session's current question and
// persists the snapshot.
func (m *Manager) Select(ctx context.Context, id string, label model.OptionLabel) error {
	e, err := m.entry(id)
	if err != nil {
		return err
	}
	if err := e.sess.Select(label); err != nil {
		return err
	}
	m.persist(ctx, e.sess)
	return nil
}

// Navigate moves the session cursor and persists the snapshot.
func (m *Manager) Navigate(ctx context.Context, id string, direction int) error {
	e, err := m.entry(id)
	if err != nil {
		return err
	}
	e.sess.Navigate(direction)
	m.persist(ctx, e.sess)
	return nil
}

// Submit performs the terminal transition: flush, stop the tick source,
// compute the summary. Idempotent on an already-submitted session.
func (m *Manager) Submit(ctx context.Context, id string) (*model.Summary, error) {
	e, err := m.entry(id)
	if err != nil {
		return nil, err
	}
	summary := e.sess.Submit()
	e.stop()
	m.persist(ctx, e.sess)
	return summary, nil
}

// Subscribe registers a tick-event channel for the session's stream.
// The returned cancel func must be called when the subscriber goes away.
func (m *Manager) Subscribe(id string) (<-chan TickEvent, func(), error) {
	e, err := m.entry(id)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan TickEvent, 8)
	e.subMu.Lock()
	e.subs[ch] = struct{}{}
	e.subMu.Unlock()

	cancel := func() {
		e.subMu.Lock()
		delete(e.subs, ch)
		e.subMu.Unlock()
	}
	return ch, cancel, nil
}

// EvictSubmitted removes submitted sessions older than the retention
// window from the registry and deletes their snapshots. Returns the
// number evicted.
func (m *Manager) EvictSubmitted(ctx context.Context) int {
	cutoff := time.Now().Add(-m.cfg.Retention)

	m.mu.Lock()
	var victims []*entry
	for id, e := range m.entries {
		if e.sess.Status() == StatusSubmitted && e.sess.SubmittedAt().Before(cutoff) {
			victims = append(victims, e)
			delete(m.entries, id)
		}
	}
	m.mu.Unlock()

	for _, e := range victims {
		e.stop()
		if m.store != nil {
			if err := m.store.Delete(ctx, e.sess.ID()); err != nil {
				m.log.Error().Err(err).Str("session_id", e.sess.ID()).Msg("Snapshot delete failed")
			}
		}
	}
	return len(victims)
}

// RestoreAll rebuilds live sessions from persisted snapshots after a
// restart. Submitted or expired snapshots are discarded; restored
// sessions re-fetch their question set.
func (m *Manager) RestoreAll(ctx context.Context) error {
	if m.store == nil {
		return nil
	}

	ids, err := m.store.ListIDs(ctx)
	if err != nil {
		return err
	}

	restored := 0
	for _, id := range ids {
		rec, err := m.store.Load(ctx, id)
		if err != nil {
			m.log.Error().Err(err).Str("session_id", id).Msg("Snapshot load failed")
			continue
		}
		if rec == nil {
			continue
		}
		if rec.Status == string(StatusSubmitted) || rec.Remaining <= 0 {
			_ = m.store.Delete(ctx, id)
			continue
		}

		sess := New(rec.ID, m.cfg.BudgetSeconds)
		answers := make(map[string]model.OptionLabel, len(rec.Answers))
		for qid, label := range rec.Answers {
			answers[qid] = model.OptionLabel(label)
		}
		sess.Restore(rec.Cursor, answers, rec.Remaining)

		e := m.register(sess)
		go m.load(sess)
		go m.run(e)
		restored++
	}

	if restored > 0 {
		m.log.Info().Int("count", restored).Msg("Sessions restored from snapshots")
	}
	return nil
}

// StopAll halts every tick source. Called on shutdown.
func (m *Manager) StopAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		e.stop()
	}
}

// Count returns the number of registered sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// ─── internal ───────────────────────────────────────────────────────

func (m *Manager) register(sess *Session) *entry {
	e := &entry{
		sess:   sess,
		ticker: time.NewTicker(m.cfg.TickInterval),
		done:   make(chan struct{}),
		subs:   make(map[chan TickEvent]struct{}),
	}
	m.mu.Lock()
	m.entries[sess.ID()] = e
	m.mu.Unlock()
	return e
}

func (m *Manager) entry(id string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

// load performs the one question fetch for a session. Failures degrade to
// a rendered message; they never end the session and never pause the
// countdown.
func (m *Manager) load(sess *Session) {
	questions, err := m.source.Fetch(context.Background())

	switch {
	case errors.Is(err, loader.ErrNoQuestions):
		sess.CompleteLoad(nil, nil, true)
		m.log.Warn().Str("session_id", sess.ID()).Msg("Question set is empty, countdown continues")
	case err != nil:
		sess.CompleteLoad(nil, err, false)
		m.log.Warn().Err(err).Str("session_id", sess.ID()).Msg("Question load failed, countdown continues")
	default:
		sess.CompleteLoad(questions, nil, false)
	}

	m.persist(context.Background(), sess)
}

// run is the per-session countdown goroutine.
func (m *Manager) run(e *entry) {
	for {
		select {
		case <-e.done:
			return
		case <-e.ticker.C:
			remaining, expired := e.sess.Tick()
			if !expired {
				m.broadcast(e, TickEvent{Remaining: remaining})
				m.persist(context.Background(), e.sess)
				continue
			}

			// Expiry is one-way: stop the tick source, then fire the
			// automatic submission exactly once.
			e.stop()
			summary := e.sess.Submit()
			m.persist(context.Background(), e.sess)

			evt := m.log.Info()
			if summary.Total == 0 {
				// The countdown ran against a failed or empty load.
				evt = m.log.Warn()
			}
			evt.Str("session_id", e.sess.ID()).
				Int("attempted", summary.Attempted).
				Int("unanswered", summary.Unanswered).
				Msg("Time expired, session auto-submitted")

			m.broadcast(e, TickEvent{Remaining: 0, Expired: true})
			return
		}
	}
}

// broadcast fans a tick event out to subscribers without blocking the
// countdown; a slow subscriber just misses ticks.
func (m *Manager) broadcast(e *entry, evt TickEvent) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for ch := range e.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (m *Manager) persist(ctx context.Context, sess *Session) {
	if m.store == nil {
		return
	}

	sn := sess.Snapshot()
	answers := make(map[string]string, len(sn.Answers))
	for qid, label := range sn.Answers {
		answers[qid] = string(label)
	}

	rec := store.SnapshotRecord{
		ID:        sn.ID,
		Cursor:    sn.Cursor,
		Answers:   answers,
		Remaining: sn.Remaining,
		Status:    string(sn.Status),
	}
	if err := m.store.Save(ctx, rec); err != nil {
		m.log.Error().Err(err).Str("session_id", sn.ID).Msg("Snapshot save failed")
	}
}
