package cache

import (
	"sync"
	"time"
)

const shardCount = 16

type entry struct {
	value     any
	expiresAt time.Time
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]entry
	cap     int
}

func (s *shard) init(capacity int) {
	s.entries = make(map[string]entry, capacity)
	s.cap = capacity
}

func (s *shard) get(key string, now time.Time) (any, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if now.After(e.expiresAt) {
		s.mu.Lock()
		// Re-check under the write lock; another writer may have replaced it.
		if cur, still := s.entries[key]; still && now.After(cur.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

func (s *shard) put(key string, value any, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.cap {
		s.evictLocked(time.Now())
	}
	s.entries[key] = entry{value: value, expiresAt: expiresAt}
}

func (s *shard) delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

func (s *shard) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// evictLocked frees room for one insert: expired entries first, otherwise the
// entry closest to expiry.
func (s *shard) evictLocked(now time.Time) {
	var (
		victim   string
		earliest time.Time
		found    bool
	)
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, k)
			found = true
			continue
		}
		if victim == "" || e.expiresAt.Before(earliest) {
			victim = k
			earliest = e.expiresAt
		}
	}
	if !found && victim != "" {
		delete(s.entries, victim)
	}
}
