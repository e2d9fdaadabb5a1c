// Package idempotency remembers client supplied keys so that a retried
// registration is not applied twice.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const DefaultTTL = 24 * time.Hour

var ErrDuplicateKey = errors.New("idempotent key already exists")

type Store interface {
	// Reserve claims key. It reports false when the key was already claimed
	// and has not expired.
	Reserve(ctx context.Context, key string) (bool, error)
	// Release forgets key so that it can be claimed again.
	Release(ctx context.Context, key string) error
}

// Check reserves key in store and returns ErrDuplicateKey when it is taken.
// An empty key is accepted without touching the store.
func Check(ctx context.Context, store Store, key string) error {
	if key == "" || store == nil {
		return nil
	}
	ok, err := store.Reserve(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, key)
	}
	return nil
}

// Release gives back a key reserved by Check. It is meant for writes that
// failed after the key was claimed, so that a retry is not mistaken for a
// duplicate.
func Release(ctx context.Context, store Store, key string) error {
	if key == "" || store == nil {
		return nil
	}
	return store.Release(ctx, key)
}

func redisKey(key string) string {
	return fmt.Sprintf("idempotent-key:%s", key)
}

type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Reserve(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, redisKey(key), "exists", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve idempotent key: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to release idempotent key: %w", err)
	}
	return nil
}

const sweepEvery = time.Minute

type MemoryStore struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	keys      map[string]time.Time
	lastSweep time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{ttl: ttl, now: time.Now, keys: make(map[string]time.Time)}
}

func (s *MemoryStore) Reserve(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) > sweepEvery {
		for k, exp := range s.keys {
			if !now.Before(exp) {
				delete(s.keys, k)
			}
		}
		s.lastSweep = now
	}
	if exp, ok := s.keys[key]; ok && now.Before(exp) {
		return false, nil
	}
	s.keys[key] = now.Add(s.ttl)
	return true, nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}
