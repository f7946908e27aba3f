// Package ratelimit implements per-key request limits backed by Redis or an
// in-process token bucket.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Backend names accepted by New.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Result describes the outcome of a single Allow call.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Store decides whether the request identified by key may proceed.
type Store interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// Config configures a limiter of Times requests per Window.
type Config struct {
	Times  int
	Window time.Duration
}

func (c Config) validate() error {
	if c.Times <= 0 {
		return fmt.Errorf("ratelimit: times must be positive, got %d", c.Times)
	}
	if c.Window <= 0 {
		return fmt.Errorf("ratelimit: window must be positive, got %s", c.Window)
	}
	return nil
}

// New builds the store for backend. The returned close function releases any
// background resources the store holds; it is never nil on success.
func New(backend string, client redis.UniversalClient, cfg Config) (Store, func(), error) {
	switch backend {
	case BackendRedis:
		if client == nil {
			return nil, nil, fmt.Errorf("ratelimit: redis backend requires a client")
		}
		s, err := NewRedisStore(client, cfg)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	case BackendMemory:
		s, err := NewMemoryStore(cfg)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("ratelimit: unknown backend %q", backend)
	}
}
