package worker

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/quizforge/mocktest-backend/internal/model"
	"github.com/quizforge/mocktest-backend/internal/session"
)

type staticSource struct{}

func (staticSource) Fetch(ctx context.Context) ([]model.Question, error) {
	return []model.Question{{
		ID:      "q1",
		Kind:    model.QuestionKindText,
		Prompt:  "prompt",
		Options: []model.Option{{Label: model.OptionLabelA, Text: "a"}},
	}}, nil
}

func TestJanitorEvictsSubmittedSessions(t *testing.T) {
	manager := session.NewManager(staticSource{}, nil, session.ManagerConfig{
		BudgetSeconds: 1800,
		TickInterval:  time.Hour,
		Retention:     0, // evict as soon as submitted
	}, zerolog.Nop())
	t.Cleanup(manager.StopAll)

	sess := manager.Create()
	if _, err := manager.Submit(context.Background(), sess.ID()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	j := NewJanitor(manager, 5*time.Millisecond, zerolog.Nop())
	go j.Start(ctx)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if manager.Count() == 0 {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("janitor never evicted the session, count = %d", manager.Count())
}
