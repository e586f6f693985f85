package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	domain "ZonePulse/internal/domain/repository"
	"ZonePulse/pkg/logger"
)

const redisDedupSet = "zonepulse:notified"

// RedisDedup backs the seen-zone set with a Redis set, letting several
// instances share one dedup record. Keys are mirrored in a local map so
// Contains stays a fast in-process read; the map is seeded from Redis
// at startup. Redis failures degrade to the local map only.
type RedisDedup struct {
	mu       sync.RWMutex
	client   *redis.Client
	seen     map[string]struct{}
	degraded bool
	log      *logger.Logger
}

var _ domain.DedupStore = (*RedisDedup)(nil)

func NewRedisDedup(addr, password string, db int, log *logger.Logger) (*RedisDedup, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: redis ping: %v", domain.ErrPersistence, err)
	}

	keys, err := client.SMembers(ctx, redisDedupSet).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: load dedup set: %v", domain.ErrPersistence, err)
	}

	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		seen[k] = struct{}{}
	}
	return &RedisDedup{client: client, seen: seen, log: log}, nil
}

func (s *RedisDedup) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[key]
	return ok
}

func (s *RedisDedup) Record(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seen[key] = struct{}{}
	if s.degraded {
		return nil
	}
	if err := s.client.SAdd(ctx, redisDedupSet, key).Err(); err != nil {
		s.degraded = true
		s.log.Warn("redis dedup write failed, degrading to in-memory only",
			logger.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return nil
}

// Flush is a no-op: every Record is written through immediately.
func (s *RedisDedup) Flush(context.Context) error { return nil }

func (s *RedisDedup) Close() error {
	return s.client.Close()
}
