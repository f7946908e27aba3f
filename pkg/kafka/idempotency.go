package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultClaimTTL bounds how long a claimed event stays reserved when the
// replica processing it dies before completing or releasing it.
const DefaultClaimTTL = 5 * time.Minute

// IdempotencyStore coordinates event processing across handlers and replicas.
// Implementations must be safe for concurrent use.
type IdempotencyStore interface {
	// Claim reserves eventID for processing. It returns false when the event
	// was already processed or is being processed elsewhere.
	Claim(ctx context.Context, eventID string) (bool, error)
	// Complete marks a claimed event as processed.
	Complete(ctx context.Context, eventID string) error
	// Release drops a claim so the event can be retried.
	Release(ctx context.Context, eventID string) error
}

type memoryEntry struct {
	expires time.Time
	done    bool
}

// MemoryIdempotencyStore is a per-process IdempotencyStore. Entries expire
// lazily.
type MemoryIdempotencyStore struct {
	mu       sync.Mutex
	entries  map[string]memoryEntry
	ttl      time.Duration
	claimTTL time.Duration
	nowFunc  func() time.Time
}

// NewMemoryIdempotencyStore remembers processed events for ttl.
func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		entries:  make(map[string]memoryEntry),
		ttl:      ttl,
		claimTTL: min(ttl, DefaultClaimTTL),
		nowFunc:  time.Now,
	}
}

func (s *MemoryIdempotencyStore) Claim(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	if e, ok := s.entries[eventID]; ok && now.Before(e.expires) {
		return false, nil
	}
	s.entries[eventID] = memoryEntry{expires: now.Add(s.claimTTL)}
	return true, nil
}

func (s *MemoryIdempotencyStore) Complete(_ context.Context, eventID string) error {
	s.mu.Lock()
	s.entries[eventID] = memoryEntry{expires: s.nowFunc().Add(s.ttl), done: true}
	s.mu.Unlock()
	return nil
}

func (s *MemoryIdempotencyStore) Release(_ context.Context, eventID string) error {
	s.mu.Lock()
	if e, ok := s.entries[eventID]; ok && !e.done {
		delete(s.entries, eventID)
	}
	s.mu.Unlock()
	return nil
}

// Processed reports whether eventID completed and has not expired.
func (s *MemoryIdempotencyStore) Processed(eventID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[eventID]
	return ok && e.done && s.nowFunc().Before(e.expires)
}

// RedisIdempotencyStore shares claims across consumer replicas. A claim is a
// SET NX with a short TTL; completion overwrites it with the long TTL.
type RedisIdempotencyStore struct {
	client   redis.UniversalClient
	prefix   string
	ttl      time.Duration
	claimTTL time.Duration
}

// NewRedisIdempotencyStore keeps processed IDs under prefix for ttl.
func NewRedisIdempotencyStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, prefix: prefix, ttl: ttl, claimTTL: min(ttl, DefaultClaimTTL)}
}

const (
	claimPending = "pending"
	claimDone    = "done"
)

// releaseScript deletes the key only while it is still a pending claim.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

func (s *RedisIdempotencyStore) Claim(ctx context.Context, eventID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+eventID, claimPending, s.claimTTL).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency claim %s: %w", eventID, err)
	}
	return ok, nil
}

func (s *RedisIdempotencyStore) Complete(ctx context.Context, eventID string) error {
	if err := s.client.Set(ctx, s.prefix+eventID, claimDone, s.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency complete %s: %w", eventID, err)
	}
	return nil
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, eventID string) error {
	if err := releaseScript.Run(ctx, s.client, []string{s.prefix + eventID}, claimPending).Err(); err != nil {
		return fmt.Errorf("idempotency release %s: %w", eventID, err)
	}
	return nil
}

// IdempotentHandler runs inner at most once per event ID. Failed events are
// released for redelivery. When the store is unreachable the event is
// processed anyway so none is lost.
func IdempotentHandler(store IdempotencyStore, inner Handler, logger *slog.Logger) Handler {
	return func(ctx context.Context, event *Event) error {
		if event.EventID == "" {
			return inner(ctx, event)
		}

		claimed, err := store.Claim(ctx, event.EventID)
		if err != nil {
			logger.WarnContext(ctx, "idempotency store unavailable, processing anyway",
				slog.String("event_id", event.EventID),
				slog.String("error", err.Error()),
			)
			return inner(ctx, event)
		}
		if !claimed {
			duplicateEvents.WithLabelValues(event.EventType).Inc()
			logger.DebugContext(ctx, "skipping duplicate event",
				slog.String("event_id", event.EventID),
				slog.String("event_type", event.EventType),
			)
			return nil
		}

		if err := inner(ctx, event); err != nil {
			if relErr := store.Release(context.WithoutCancel(ctx), event.EventID); relErr != nil {
				logger.WarnContext(ctx, "failed to release idempotency claim",
					slog.String("event_id", event.EventID),
					slog.String("error", relErr.Error()),
				)
			}
			return err
		}

		if err := store.Complete(ctx, event.EventID); err != nil {
			logger.WarnContext(ctx, "failed to record processed event",
				slog.String("event_id", event.EventID),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}
}
