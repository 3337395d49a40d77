// Package idempotency replays stored responses for requests presenting the
// same Idempotency-Key. A Redis backend is used when configured; otherwise an
// in-process map with no eviction. Backend errors never surface: a failed
// lookup falls through to fresh execution, a failed store is logged.
package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Store caches response bodies keyed by client idempotency token.
type Store struct {
	redis *redis.Client
	ttl   time.Duration

	mu     sync.Mutex
	memory map[string][]byte
}

// NewStore connects to redisURL when non-empty; an unparsable URL downgrades
// to the in-memory map.
func NewStore(redisURL string, ttl time.Duration) *Store {
	var store = &Store{ttl: ttl, memory: make(map[string][]byte)}
	if redisURL == "" {
		return store
	}
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		log.WithField("err", err).Warn("invalid REDIS_URL, using in-memory idempotency store")
		return store
	}
	store.redis = redis.NewClient(options)
	return store
}

// Lookup returns the stored response body for key, or false when absent or
// when the backend fails.
func (s *Store) Lookup(ctx context.Context, key string) ([]byte, bool) {
	if key == "" {
		return nil, false
	}
	if s.redis != nil {
		body, err := s.redis.Get(ctx, s.redisKey(key)).Bytes()
		if err == nil {
			return body, true
		}
		if err != redis.Nil {
			log.WithField("err", err).Warn("idempotency lookup failed")
		}
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.memory[key]
	return body, ok
}

// Save records the response body under key with the configured TTL. The
// in-memory path keeps entries for the process lifetime.
func (s *Store) Save(ctx context.Context, key string, body []byte) {
	if key == "" {
		return
	}
	if s.redis != nil {
		if err := s.redis.Set(ctx, s.redisKey(key), body, s.ttl).Err(); err != nil {
			log.WithField("err", err).Warn("idempotency save failed")
		}
		return
	}
	s.mu.Lock()
	s.memory[key] = body
	s.mu.Unlock()
}

func (s *Store) redisKey(key string) string {
	return "hermes:idempotency:" + key
}
