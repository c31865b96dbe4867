package session

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProcessedSet is the dedup record preventing duplicate pipeline execution
// per session key. Claim is a single atomic check-and-set: the first caller
// for a key wins, every later caller for the same key loses. There is no
// release operation — processed calls stay claimed for the record's lifetime.
type ProcessedSet interface {
	// Claim attempts to take the key. Returns true exactly once per key.
	Claim(ctx context.Context, key string) (bool, error)
	// Claimed reports whether the key has been taken, without taking it.
	Claimed(ctx context.Context, key string) (bool, error)
}

// MemoryProcessedSet is the single-instance implementation backed by a
// sync.Map; LoadOrStore gives the atomic first-writer-wins semantics.
type MemoryProcessedSet struct {
	keys sync.Map
}

// NewMemoryProcessedSet constructs an empty set.
func NewMemoryProcessedSet() *MemoryProcessedSet {
	return &MemoryProcessedSet{}
}

func (s *MemoryProcessedSet) Claim(_ context.Context, key string) (bool, error) {
	_, loaded := s.keys.LoadOrStore(key, struct{}{})
	return !loaded, nil
}

func (s *MemoryProcessedSet) Claimed(_ context.Context, key string) (bool, error) {
	_, ok := s.keys.Load(key)
	return ok, nil
}

// RedisProcessedSet shares the claim across gateway instances via SETNX.
type RedisProcessedSet struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisProcessedSet constructs a Redis-backed set. A zero ttl keeps
// claims forever.
func NewRedisProcessedSet(client *redis.Client, ttl time.Duration) *RedisProcessedSet {
	return &RedisProcessedSet{client: client, ttl: ttl}
}

func (s *RedisProcessedSet) Claim(ctx context.Context, key string) (bool, error) {
	return s.client.SetNX(ctx, "processed:"+key, 1, s.ttl).Result()
}

func (s *RedisProcessedSet) Claimed(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, "processed:"+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
