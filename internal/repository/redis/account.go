package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/contactbook/internal/domain"
)

const keyPrefix = "account:"

// DefaultAccountTTL is how long a resolved account stays cached.
const DefaultAccountTTL = 5 * time.Minute

// cachedAccount is the stored form of an account. Credentials are never
// written to Redis, so a cache hit is only good for identifying the caller.
type cachedAccount struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Confirmed bool      `json:"confirmed"`
	Avatar    *string   `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AccountCache implements repository.AccountCache using Redis.
type AccountCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewAccountCache creates a new Redis-backed account cache. A non-positive ttl
// falls back to DefaultAccountTTL.
func NewAccountCache(client redis.UniversalClient, ttl time.Duration) *AccountCache {
	if ttl <= 0 {
		ttl = DefaultAccountTTL
	}
	return &AccountCache{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves a cached account by email. A miss returns nil, nil.
func (c *AccountCache) Get(ctx context.Context, email string) (*domain.Account, error) {
	data, err := c.client.Get(ctx, keyPrefix+email).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get account: %w", err)
	}

	var ca cachedAccount
	if err := json.Unmarshal(data, &ca); err != nil {
		return nil, fmt.Errorf("unmarshal account: %w", err)
	}

	return &domain.Account{
		ID:        ca.ID,
		Username:  ca.Username,
		Email:     ca.Email,
		Role:      ca.Role,
		Confirmed: ca.Confirmed,
		Avatar:    ca.Avatar,
		CreatedAt: ca.CreatedAt,
		UpdatedAt: ca.UpdatedAt,
	}, nil
}

// Set stores the account under its email with the configured TTL.
func (c *AccountCache) Set(ctx context.Context, a *domain.Account) error {
	data, err := json.Marshal(cachedAccount{
		ID:        a.ID,
		Username:  a.Username,
		Email:     a.Email,
		Role:      a.Role,
		Confirmed: a.Confirmed,
		Avatar:    a.Avatar,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}

	if err := c.client.Set(ctx, keyPrefix+a.Email, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set account: %w", err)
	}

	return nil
}

// Delete evicts a cached account by email.
func (c *AccountCache) Delete(ctx context.Context, email string) error {
	if err := c.client.Del(ctx, keyPrefix+email).Err(); err != nil {
		return fmt.Errorf("redis del account: %w", err)
	}

	return nil
}
