package repository

import (
	"context"
	"sync"

	domain "ZonePulse/internal/domain/repository"
)

// MemoryDedup is the process-lifetime dedup store: a plain set guarded
// by a RWMutex. Used directly in ephemeral mode and as the degraded
// fallback for the file-backed store.
type MemoryDedup struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

var _ domain.DedupStore = (*MemoryDedup)(nil)

func NewMemoryDedup() *MemoryDedup {
	return &MemoryDedup{seen: make(map[string]struct{})}
}

func (s *MemoryDedup) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[key]
	return ok
}

func (s *MemoryDedup) Record(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[key] = struct{}{}
	return nil
}

func (s *MemoryDedup) Flush(context.Context) error { return nil }

func (s *MemoryDedup) Close() error { return nil }

// Len reports the number of recorded keys.
func (s *MemoryDedup) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
