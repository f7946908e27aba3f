package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryStore keeps a token bucket per key. Limits are per process, so it
// suits single-replica deployments and tests.
type MemoryStore struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	ttl      time.Duration
	nowFunc  func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore creates a store refilling Times tokens per Window and starts
// a janitor evicting idle keys. Call Close to stop it.
func NewMemoryStore(cfg Config) (*MemoryStore, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	s := newMemoryStore(cfg, time.Now)
	go s.cleanupLoop()
	return s, nil
}

func newMemoryStore(cfg Config, now func() time.Time) *MemoryStore {
	ttl := cfg.Window * 3
	if ttl < time.Minute {
		ttl = time.Minute
	}
	return &MemoryStore{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(cfg.Window / time.Duration(cfg.Times)),
		burst:    cfg.Times,
		ttl:      ttl,
		nowFunc:  now,
		stop:     make(chan struct{}),
	}
}

// Allow consumes a token for key.
func (s *MemoryStore) Allow(_ context.Context, key string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	v, ok := s.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.visitors[key] = v
	}
	v.lastSeen = now

	if v.limiter.AllowN(now, 1) {
		return Result{Allowed: true, Remaining: int(v.limiter.TokensAt(now))}, nil
	}

	r := v.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	return Result{Allowed: false, RetryAfter: delay}, nil
}

// Close stops the janitor goroutine.
func (s *MemoryStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stop:
			return
		}
	}
}

func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	for key, v := range s.visitors {
		if now.Sub(v.lastSeen) > s.ttl {
			delete(s.visitors, key)
		}
	}
}

func (s *MemoryStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visitors)
}
