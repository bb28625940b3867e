package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/quizforge/mocktest-backend/internal/model"
)

// ErrNoQuestions is returned when the question endpoint responds
// successfully but with zero records.
var ErrNoQuestions = errors.New("no questions available")

// Loader fetches the question set from the external question endpoint.
// One fetch happens per session start; the result is final for that
// session (no pagination, no incremental update, no retry).
type Loader struct {
	client    *http.Client
	sourceURL string
	log       zerolog.Logger
}

// New creates a Loader for the given source URL.
func New(sourceURL string, timeout time.Duration, log zerolog.Logger) *Loader {
	return &Loader{
		client:    &http.Client{Timeout: timeout},
		sourceURL: sourceURL,
		log:       log.With().Str("component", "loader").Logger(),
	}
}

// Fetch issues one GET against the question endpoint and maps the records
// to their tagged variants. Failure errors keep the underlying reason so
// it can be surfaced to the user verbatim.
func (l *Loader) Fetch(ctx context.Context) ([]model.Question, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build question request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		l.log.Error().Err(err).Str("url", l.sourceURL).Msg("Question fetch failed")
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		l.log.Error().Int("status", resp.StatusCode).Str("url", l.sourceURL).Msg("Question source returned error status")
		return nil, fmt.Errorf("question source returned %s", resp.Status)
	}

	var records []model.QuestionRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode question list: %w", err)
	}

	if len(records) == 0 {
		return nil, ErrNoQuestions
	}

	questions := make([]model.Question, 0, len(records))
	for _, rec := range records {
		questions = append(questions, model.QuestionFromRecord(rec))
	}

	l.log.Info().Int("count", len(questions)).Msg("Question set loaded")
	return questions, nil
}
