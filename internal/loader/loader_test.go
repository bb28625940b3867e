package loader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/quizforge/mocktest-backend/internal/model"
)

func newLoader(url string) *Loader {
	return New(url, 2*time.Second, zerolog.Nop())
}

func TestFetchMapsRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": 1, "question": "What is inertia?", "option_a": "resistance to change", "option_b": "a force", "option_c": "", "option_d": null, "has_diagram": 0},
			{"id": 2, "question": "", "question_image": "/img/q2.png", "option_a": "A", "option_b": "B", "option_c": "C", "option_d": "D", "has_diagram": 1}
		]`))
	}))
	defer srv.Close()

	questions, err := newLoader(srv.URL).Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(questions))
	}

	q1 := questions[0]
	if q1.ID != "1" {
		t.Errorf("numeric id mapped to %q, want \"1\"", q1.ID)
	}
	if q1.Kind != model.QuestionKindText {
		t.Errorf("q1 kind = %s, want TEXT", q1.Kind)
	}
	if q1.HasDiagram {
		t.Error("q1 has_diagram should be false for 0")
	}
	if got := len(q1.RenderableOptions()); got != 2 {
		t.Errorf("q1 renderable options = %d, want 2", got)
	}

	q2 := questions[1]
	if q2.Kind != model.QuestionKindImage || q2.ImageURL != "/img/q2.png" {
		t.Errorf("q2 = %+v, want composite-image variant", q2)
	}
	if !q2.HasDiagram {
		t.Error("q2 has_diagram should be true for 1")
	}
}

func TestFetchEmptySet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := newLoader(srv.URL).Fetch(context.Background())
	if !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("err = %v, want ErrNoQuestions", err)
	}
}

func TestFetchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newLoader(srv.URL).Fetch(context.Background())
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("err = %v, want status in reason", err)
	}
}

func TestFetchNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // Connection refused from here on.

	_, err := newLoader(srv.URL).Fetch(context.Background())
	if err == nil {
		t.Fatal("expected a network error")
	}
	if errors.Is(err, ErrNoQuestions) {
		t.Fatal("network error conflated with empty result")
	}
}

func TestFetchMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not": "a list"}`))
	}))
	defer srv.Close()

	_, err := newLoader(srv.URL).Fetch(context.Background())
	if err == nil || !strings.Contains(err.Error(), "decode") {
		t.Fatalf("err = %v, want decode failure", err)
	}
}
