// Package rediscache mirrors conversation states in Redis. Entries carry a
// native TTL and are never the source of truth.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/swingbot/core/state"
)

const defaultPrefix = "swingbot:"

// Cache is a Redis-backed state.Cache.
type Cache struct {
	client redis.UniversalClient
	prefix string
}

// Option configures a Cache.
type Option func(*Cache)

// WithPrefix sets the key prefix. Keys are "{prefix}context:{user_id}".
func WithPrefix(prefix string) Option {
	return func(c *Cache) {
		c.prefix = prefix
	}
}

// New wraps client.
func New(client redis.UniversalClient, opts ...Option) *Cache {
	c := &Cache{client: client, prefix: defaultPrefix}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the Redis key of userID.
func (c *Cache) Key(userID int64) string {
	return c.prefix + "context:" + strconv.FormatInt(userID, 10)
}

// Get loads the cached state. A missing key yields state.ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, userID int64) (*state.ConversationState, error) {
	raw, err := c.client.Get(ctx, c.Key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, state.ErrCacheMiss
		}
		return nil, fmt.Errorf("rediscache: get: %w", err)
	}
	var st state.ConversationState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("rediscache: decode user %d: %w", userID, err)
	}
	return &st, nil
}

// Set stores st with the given TTL. A non-positive TTL deletes the entry.
func (c *Cache) Set(ctx context.Context, st *state.ConversationState, ttl time.Duration) error {
	if ttl <= 0 {
		return c.Delete(ctx, st.UserID)
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("rediscache: encode user %d: %w", st.UserID, err)
	}
	if err := c.client.Set(ctx, c.Key(st.UserID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("rediscache: set: %w", err)
	}
	return nil
}

// Delete removes the entry of userID.
func (c *Cache) Delete(ctx context.Context, userID int64) error {
	if err := c.client.Del(ctx, c.Key(userID)).Err(); err != nil {
		return fmt.Errorf("rediscache: delete: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("rediscache: ping: %w", err)
	}
	return nil
}

var _ state.Cache = (*Cache)(nil)
