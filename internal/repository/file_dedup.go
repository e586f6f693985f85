package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	domain "ZonePulse/internal/domain/repository"
	"ZonePulse/pkg/logger"
)

// FileDedup persists the seen-zone set as a flat JSON array of keys.
// The file is loaded wholesale at startup and rewritten atomically
// (tmp + rename) on every record, serialized by a single writer lock
// so concurrent sessions never interleave into a corrupt file. A write
// failure degrades the store to in-memory-only for the rest of the
// run; it never crashes a session.
type FileDedup struct {
	mu       sync.RWMutex
	path     string
	seen     map[string]struct{}
	degraded bool
	log      *logger.Logger
}

var _ domain.DedupStore = (*FileDedup)(nil)

// NewFileDedup loads the persisted set from path. A missing file is a
// first run and yields an empty set; a corrupt file is reported and
// replaced on the next record.
func NewFileDedup(path string, log *logger.Logger) (*FileDedup, error) {
	s := &FileDedup{
		path: path,
		seen: make(map[string]struct{}),
		log:  log,
	}

	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read dedup state: %v", domain.ErrPersistence, err)
	}

	var keys []string
	if err := json.Unmarshal(b, &keys); err != nil {
		log.Warn("dedup state file corrupt, starting empty",
			logger.String("path", path), logger.Error(err))
		return s, nil
	}
	for _, k := range keys {
		s.seen[k] = struct{}{}
	}
	return s, nil
}

func (s *FileDedup) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[key]
	return ok
}

// Record adds a key and rewrites the backing file. The key stays
// recorded in memory even when persistence fails.
func (s *FileDedup) Record(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seen[key] = struct{}{}
	if s.degraded {
		return nil
	}
	if err := s.persistLocked(); err != nil {
		s.degraded = true
		s.log.Warn("dedup persistence failed, degrading to in-memory only",
			logger.String("path", s.path), logger.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return nil
}

// Flush rewrites the file unconditionally, used on shutdown.
func (s *FileDedup) Flush(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.degraded {
		return nil
	}
	if err := s.persistLocked(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return nil
}

func (s *FileDedup) Close() error { return nil }

// Degraded reports whether the store has fallen back to memory-only.
func (s *FileDedup) Degraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degraded
}

// persistLocked writes the full key set to a temp file and renames it
// into place. Callers hold the write lock.
func (s *FileDedup) persistLocked() error {
	keys := make([]string, 0, len(s.seen))
	for k := range s.seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b, err := json.Marshal(keys)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".dedup-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
