package ratelimit

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps windows in process memory. Suited for a single
// instance; use the Redis store when running more than one replica.
type MemoryStore struct {
	mu    sync.Mutex
	cache *gocache.Cache
}

var _ WindowStore = &MemoryStore{}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cache: gocache.New(gocache.NoExpiration, time.Minute),
	}
}

func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if value, expiresAt, found := s.cache.GetWithExpiration(key); found {
		count := value.(int) + 1
		s.cache.Set(key, count, time.Until(expiresAt))
		return count, expiresAt, nil
	}

	expiresAt := time.Now().Add(window)
	s.cache.Set(key, 1, window)
	return 1, expiresAt, nil
}
