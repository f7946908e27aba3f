package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

// RedisStore is a fixed-window counter shared by every replica. The first hit
// in a window creates the key with the window as its TTL.
type RedisStore struct {
	client redis.UniversalClient
	cfg    Config
}

// NewRedisStore creates a Redis backed store.
func NewRedisStore(client redis.UniversalClient, cfg Config) (*RedisStore, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &RedisStore{client: client, cfg: cfg}, nil
}

// Allow increments the window counter for key.
func (s *RedisStore) Allow(ctx context.Context, key string) (Result, error) {
	k := keyPrefix + key

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		ttl = pipe.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("rate limit %s: %w", key, err)
	}

	// A fresh counter (or one that lost its TTL) starts a new window.
	if ttl.Val() < 0 {
		if err := s.client.PExpire(ctx, k, s.cfg.Window).Err(); err != nil {
			return Result{}, fmt.Errorf("rate limit %s: %w", key, err)
		}
	}

	count := int(incr.Val())
	if count <= s.cfg.Times {
		return Result{Allowed: true, Remaining: s.cfg.Times - count}, nil
	}

	retry := ttl.Val()
	if retry <= 0 {
		retry = s.cfg.Window
	}
	return Result{Allowed: false, RetryAfter: retry.Round(time.Millisecond)}, nil
}
