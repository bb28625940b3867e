package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/quizforge/mocktest-backend/internal/config"
)

// SnapshotRecord is the persisted slice of session state. Enough to
// survive a page reload or a service restart; the question list itself is
// re-fetched on restore, never stored.
type SnapshotRecord struct {
	ID        string            `json:"id"`
	Cursor    int               `json:"cursor"`
	Answers   map[string]string `json:"answers"`
	Remaining int               `json:"remaining"`
	Status    string            `json:"status"`
	SavedAt   time.Time         `json:"saved_at"`
}

// SessionStore persists session snapshots in Redis.
type SessionStore struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewSessionStore creates a SessionStore.
func NewSessionStore(rdb *redis.Client, log zerolog.Logger) *SessionStore {
	return &SessionStore{
		rdb: rdb,
		log: log.With().Str("component", "session_store").Logger(),
	}
}

// Save writes the snapshot and indexes the session ID.
func (s *SessionStore) Save(ctx context.Context, rec SnapshotRecord) error {
	rec.SavedAt = time.Now()

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.SessionSnapshotKey(rec.ID), payload, 0)
	pipe.SAdd(ctx, config.CacheKey.SessionIndexKey(), rec.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load returns the snapshot for a session, or nil when none exists.
func (s *SessionStore) Load(ctx context.Context, sessionID string) (*SnapshotRecord, error) {
	payload, err := s.rdb.Get(ctx, config.CacheKey.SessionSnapshotKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var rec SnapshotRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &rec, nil
}

// Delete removes the snapshot and drops the session from the index.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, config.CacheKey.SessionSnapshotKey(sessionID))
	pipe.SRem(ctx, config.CacheKey.SessionIndexKey(), sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// ListIDs returns every indexed session ID.
func (s *SessionStore) ListIDs(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, config.CacheKey.SessionIndexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return ids, nil
}
