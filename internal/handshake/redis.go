package handshake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "auth:google:tx:"

// RedisStore is a Store backed by Redis, for deployments with more than one
// server instance. Expiry rides on the native key TTL: Put sets it, Update
// keeps it (SET XX KEEPTTL), so the deadline stays fixed at creation.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Store on top of an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, key string, rec Record, ttl time.Duration) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("handshake: marshal record: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("handshake: redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, key string, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("handshake: marshal record: %w", err)
	}
	// XX: only overwrite an existing key; an expired handshake stays gone.
	// KeepTTL preserves the deadline the creating Put set.
	if err := s.client.SetXX(ctx, redisKeyPrefix+key, raw, redis.KeepTTL).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("handshake: redis update: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Record, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("handshake: redis get: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("handshake: unmarshal record: %w", err)
	}
	return &rec, nil
}
