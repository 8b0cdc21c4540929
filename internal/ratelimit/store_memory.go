package ratelimit

import (
	"context"
	"sync"
	"time"
)

// memoryStore keeps counters in a mutex-guarded map. Soft state: limits
// apply per process, and counters are lost on restart. Good enough for a
// single API instance; multi-instance deployments use the Redis store.
type memoryStore struct {
	mu    sync.Mutex
	slots map[string]*memorySlot
}

type memorySlot struct {
	count int
	start time.Time
}

// NewMemoryStore creates a process-local counter store.
func NewMemoryStore() Store {
	return &memoryStore{slots: make(map[string]*memorySlot)}
}

func (s *memoryStore) Incr(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Slot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.slots[key]
	if !ok || now.Sub(sl.start) >= window {
		sl = &memorySlot{count: 1, start: now}
		s.slots[key] = sl
		return Slot{Count: 1, WindowStart: now}, true, nil
	}

	if sl.count >= limit {
		return Slot{Count: sl.count, WindowStart: sl.start}, false, nil
	}

	sl.count++
	return Slot{Count: sl.count, WindowStart: sl.start}, true, nil
}
