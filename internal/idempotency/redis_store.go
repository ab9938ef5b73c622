package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "storefront:idempotency:"
	pendingMarker  = "__pending__"
)

// redisCommands is the subset of redis.UniversalClient the store uses.
type redisCommands interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore keeps reservations and responses in Redis so replays work across
// instances.
type RedisStore struct {
	client redisCommands
}

// NewRedisStore returns a store backed by client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Begin implements Store.
func (s *RedisStore) Begin(ctx context.Context, key string, ttl time.Duration) (*Response, error) {
	k := redisKeyPrefix + key
	for attempt := 0; attempt < 2; attempt++ {
		reserved, err := s.client.SetNX(ctx, k, pendingMarker, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("idempotency: reserve: %w", err)
		}
		if reserved {
			return nil, nil
		}
		raw, err := s.client.Get(ctx, k).Result()
		if errors.Is(err, redis.Nil) {
			// Expired between SETNX and GET.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("idempotency: load: %w", err)
		}
		if raw == pendingMarker {
			return nil, ErrInFlight
		}
		var resp Response
		if err := json.Unmarshal([]byte(raw), &resp); err != nil {
			return nil, fmt.Errorf("idempotency: decode: %w", err)
		}
		return &resp, nil
	}
	return nil, ErrInFlight
}

// Complete implements Store.
func (s *RedisStore) Complete(ctx context.Context, key string, resp Response, ttl time.Duration) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("idempotency: encode: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("idempotency: save: %w", err)
	}
	return nil
}

// Release implements Store.
func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("idempotency: release: %w", err)
	}
	return nil
}
