package users

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache key formats. These are part of the wire contract shared with the
// notification queues and must not change.
const (
	lookupByIDKey       = "lookup-by-id-%d"
	lookupByUsernameKey = "lookup-by-username-%s"
)

// LookupByIDKey returns the cache key and queue name for an id lookup.
func LookupByIDKey(id int64) string {
	return fmt.Sprintf(lookupByIDKey, id)
}

// LookupByUsernameKey returns the cache key and queue name for a username lookup.
func LookupByUsernameKey(username string) string {
	return fmt.Sprintf(lookupByUsernameKey, username)
}

// Cache is the Redis backed read-through cache for profile projections.
// A miss or an expired key is normal flow, never an error.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// TTL returns the configured entry lifetime.
func (c *Cache) TTL() time.Duration {
	if c == nil {
		return 0
	}
	return c.ttl
}

// Get returns the serialized projection stored under key, or nil on a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// Set stores a serialized projection under key for the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, payload []byte) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Set(ctx, key, payload, c.ttl).Err()
}
