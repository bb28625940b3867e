package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionSnapshotKey returns the cache key for a session's state snapshot.
func (r *CacheKeyStruct) SessionSnapshotKey(sessionID string) string {
	return fmt.Sprintf("session:%s:snapshot", sessionID)
}

// SessionAnswersKey returns the cache key for a session's answer map.
func (r *CacheKeyStruct) SessionAnswersKey(sessionID string) string {
	return fmt.Sprintf("session:%s:answers", sessionID)
}

// SessionIndexKey returns the cache key of the set holding all live session IDs.
func (r *CacheKeyStruct) SessionIndexKey() string {
	return "sessions:index"
}

var CacheKey = NewCacheKeyStruct()
