// Package notify implements durable named queues on Redis lists. Each queue is
// a one-shot handoff channel keyed by a user identifier; a produced message is
// consumed at most once.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meridian-social/meridian-users/internal/shared"
)

// Channel publishes and drains named queues.
type Channel struct {
	client *redis.Client
}

// NewChannel constructs a Channel over the given Redis client.
func NewChannel(client *redis.Client) *Channel {
	return &Channel{client: client}
}

// Publish appends a payload to the named queue.
func (c *Channel) Publish(ctx context.Context, queue string, payload []byte) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.RPush(ctx, queue, payload).Err(); err != nil {
		return fmt.Errorf("notify: publish %s: %w", queue, shared.ErrUnavailable)
	}
	return nil
}

// ConsumeOne blocks until one message arrives on the named queue, then removes
// it. The wait is bounded: when it elapses without a message the result is
// ErrNotFound, never an indefinite block.
func (c *Channel) ConsumeOne(ctx context.Context, queue string, wait time.Duration) ([]byte, error) {
	if c == nil || c.client == nil {
		return nil, shared.ErrUnavailable
	}
	if wait <= 0 {
		wait = time.Second
	}
	res, err := c.client.BLPop(ctx, wait, queue).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("notify: queue %s yielded nothing: %w", queue, shared.ErrNotFound)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("notify: consume %s: %w", queue, shared.ErrUnavailable)
	}
	// BLPop returns the key followed by the value.
	if len(res) < 2 {
		return nil, fmt.Errorf("notify: queue %s yielded nothing: %w", queue, shared.ErrNotFound)
	}
	return []byte(res[1]), nil
}
