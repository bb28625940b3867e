package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/quizforge/mocktest-backend/internal/model"
	"github.com/quizforge/mocktest-backend/internal/store"
)

// fakeSource is a QuestionSource with a fixed outcome.
type fakeSource struct {
	questions []model.Question
	err       error
	delay     time.Duration
}

func (f *fakeSource) Fetch(ctx context.Context) ([]model.Question, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.questions, f.err
}

// memStore is an in-memory SnapshotStore for tests.
type memStore struct {
	mu   sync.Mutex
	recs map[string]store.SnapshotRecord
}

func newMemStore() *memStore {
	return &memStore{recs: make(map[string]store.SnapshotRecord)}
}

func (m *memStore) Save(ctx context.Context, rec store.SnapshotRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.ID] = rec
	return nil
}

func (m *memStore) Load(ctx context.Context, id string) (*store.SnapshotRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *memStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, id)
	return nil
}

func (m *memStore) ListIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.recs))
	for id := range m.recs {
		ids = append(ids, id)
	}
	return ids, nil
}

func testManager(t *testing.T, source QuestionSource, snapshots SnapshotStore, budget int, tick time.Duration) *Manager {
	t.Helper()
	m := NewManager(source, snapshots, ManagerConfig{
		BudgetSeconds: budget,
		TickInterval:  tick,
		Retention:     time.Hour,
	}, zerolog.Nop())
	t.Cleanup(m.StopAll)
	return m
}

// waitFor polls until cond returns true or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestManagerCreateLoadsQuestions(t *testing.T) {
	m := testManager(t, &fakeSource{questions: makeQuestions(3)}, nil, 1800, time.Hour)

	sess := m.Create()
	waitFor(t, time.Second, func() bool {
		return sess.Snapshot().Phase == PhaseReady
	}, "session never became ready")

	if got := len(sess.Snapshot().Questions); got != 3 {
		t.Fatalf("questions loaded = %d, want 3", got)
	}

	got, err := m.Get(sess.ID())
	if err != nil || got != sess {
		t.Fatalf("Get(%s) = %v, %v", sess.ID(), got, err)
	}
}

func TestManagerGetUnknownSession(t *testing.T) {
	m := testManager(t, &fakeSource{}, nil, 1800, time.Hour)
	if _, err := m.Get("nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestManagerAutoSubmitsOnExpiry(t *testing.T) {
	m := testManager(t, &fakeSource{questions: makeQuestions(2)}, nil, 3, 5*time.Millisecond)

	sess := m.Create()
	ticks, cancel, err := m.Subscribe(sess.ID())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	expiredEvents := 0
	deadline := time.After(2 * time.Second)
loop:
	for {
		select {
		case evt := <-ticks:
			if evt.Expired {
				expiredEvents++
				break loop
			}
		case <-deadline:
			t.Fatal("no expiry event within deadline")
		}
	}

	if expiredEvents != 1 {
		t.Fatalf("expired events = %d, want 1", expiredEvents)
	}

	waitFor(t, time.Second, func() bool {
		return sess.Status() == StatusSubmitted
	}, "session not auto-submitted after expiry")

	if rem := sess.Snapshot().Remaining; rem != 0 {
		t.Fatalf("remaining = %d, want 0", rem)
	}

	// The tick source must be stopped: remaining stays clamped and no
	// further expiry events arrive.
	time.Sleep(50 * time.Millisecond)
	select {
	case evt := <-ticks:
		if evt.Expired {
			t.Fatal("second expiry event after auto-submit")
		}
	default:
	}
}

func TestManagerManualSubmitStopsCountdown(t *testing.T) {
	m := testManager(t, &fakeSource{questions: makeQuestions(2)}, nil, 1800, 5*time.Millisecond)

	sess := m.Create()
	waitFor(t, time.Second, func() bool {
		return sess.Snapshot().Phase == PhaseReady
	}, "session never became ready")

	if _, err := m.Submit(context.Background(), sess.ID()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	frozen := sess.Snapshot().Remaining
	time.Sleep(50 * time.Millisecond)
	if got := sess.Snapshot().Remaining; got != frozen {
		t.Fatalf("remaining changed after submit: %d -> %d (ticker leaked)", frozen, got)
	}

	// Second submit is a no-op returning the same counts.
	again, err := m.Submit(context.Background(), sess.ID())
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if again.Attempted != 0 || again.Total != 2 {
		t.Fatalf("second submit summary = %+v", again)
	}
}

func TestManagerLoadFailureDoesNotStopCountdown(t *testing.T) {
	m := testManager(t, &fakeSource{err: errors.New("connection refused")}, nil, 1800, 5*time.Millisecond)

	sess := m.Create()
	waitFor(t, time.Second, func() bool {
		return sess.Snapshot().Phase == PhaseFailed
	}, "session never reached failed phase")

	start := sess.Snapshot().Remaining
	waitFor(t, time.Second, func() bool {
		return sess.Snapshot().Remaining < start
	}, "countdown did not keep running after load failure")

	if got := sess.Snapshot().LoadError; got != "connection refused" {
		t.Fatalf("load error = %q, want verbatim reason", got)
	}
}

func TestManagerPersistsSnapshots(t *testing.T) {
	st := newMemStore()
	m := testManager(t, &fakeSource{questions: makeQuestions(3)}, st, 1800, time.Hour)

	sess := m.Create()
	waitFor(t, time.Second, func() bool {
		return sess.Snapshot().Phase == PhaseReady
	}, "session never became ready")

	ctx := context.Background()
	if err := m.Select(ctx, sess.ID(), model.OptionLabelB); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := m.Navigate(ctx, sess.ID(), +1); err != nil {
		t.Fatalf("navigate: %v", err)
	}

	rec, err := st.Load(ctx, sess.ID())
	if err != nil || rec == nil {
		t.Fatalf("snapshot missing: %v", err)
	}
	if rec.Cursor != 1 || rec.Answers["q1"] != "B" {
		t.Fatalf("snapshot = %+v, want cursor 1 and q1=B", rec)
	}
}

func TestManagerRestoreAll(t *testing.T) {
	st := newMemStore()
	ctx := context.Background()

	st.Save(ctx, store.SnapshotRecord{
		ID:        "11111111-1111-1111-1111-111111111111",
		Cursor:    1,
		Answers:   map[string]string{"q2": "C"},
		Remaining: 700,
		Status:    string(StatusActive),
	})
	st.Save(ctx, store.SnapshotRecord{
		ID:        "22222222-2222-2222-2222-222222222222",
		Remaining: 0,
		Status:    string(StatusSubmitted),
	})

	m := testManager(t, &fakeSource{questions: makeQuestions(3)}, st, 1800, time.Hour)
	if err := m.RestoreAll(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}

	if m.Count() != 1 {
		t.Fatalf("restored sessions = %d, want 1 (submitted snapshot discarded)", m.Count())
	}

	sess, err := m.Get("11111111-1111-1111-1111-111111111111")
	if err != nil {
		t.Fatalf("restored session missing: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		return sess.Snapshot().Phase == PhaseReady
	}, "restored session never became ready")

	sn := sess.Snapshot()
	if sn.Remaining != 700 || sn.Cursor != 1 || sn.Answers["q2"] != model.OptionLabelC {
		t.Fatalf("restored state = remaining %d cursor %d answers %v", sn.Remaining, sn.Cursor, sn.Answers)
	}

	// The submitted session's snapshot is gone from the store.
	if rec, _ := st.Load(ctx, "22222222-2222-2222-2222-222222222222"); rec != nil {
		t.Fatal("submitted snapshot not deleted during restore")
	}
}

func TestManagerEvictSubmitted(t *testing.T) {
	st := newMemStore()
	m := NewManager(&fakeSource{questions: makeQuestions(1)}, st, ManagerConfig{
		BudgetSeconds: 1800,
		TickInterval:  time.Hour,
		Retention:     0, // evict immediately
	}, zerolog.Nop())
	t.Cleanup(m.StopAll)

	ctx := context.Background()
	sess := m.Create()
	if _, err := m.Submit(ctx, sess.ID()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if evicted := m.EvictSubmitted(ctx); evicted != 1 {
		t.Fatalf("evicted = %d, want 1", evicted)
	}
	if m.Count() != 0 {
		t.Fatalf("registry count = %d, want 0", m.Count())
	}
	if rec, _ := st.Load(ctx, sess.ID()); rec != nil {
		t.Fatal("snapshot survived eviction")
	}
}
