package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/quizforge/mocktest-backend/internal/session"
)

// Janitor periodically evicts submitted sessions that have passed the
// retention window, dropping their snapshots with them. Without it the
// registry grows without bound.
type Janitor struct {
	manager  *session.Manager
	interval time.Duration
	log      zerolog.Logger
}

// NewJanitor creates a Janitor sweeping at the given interval.
func NewJanitor(manager *session.Manager, interval time.Duration, log zerolog.Logger) *Janitor {
	return &Janitor{
		manager:  manager,
		interval: interval,
		log:      log.With().Str("component", "janitor").Logger(),
	}
}

// Start begins the sweep loop. Call in a goroutine; returns when ctx is
// cancelled, after one final sweep.
func (j *Janitor) Start(ctx context.Context) {
	j.log.Info().Dur("interval", j.interval).Msg("Worker started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.sweep(context.Background())
			j.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	if evicted := j.manager.EvictSubmitted(ctx); evicted > 0 {
		j.log.Info().Int("count", evicted).Int("remaining", j.manager.Count()).Msg("Evicted submitted sessions")
	}
}
