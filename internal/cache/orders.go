package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// OrderCache keeps rendered order responses in Redis so repeated
// lookups of the same order skip the database. Entries are written
// after a successful read and dropped when the order changes.
type OrderCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewOrderCache(client *redis.Client, ttl time.Duration) *OrderCache {
	return &OrderCache{Client: client, TTL: ttl}
}

func key(orderID int64) string {
	return fmt.Sprintf("order:%d", orderID)
}

// Get returns the cached payload, or false on a miss or any Redis
// error — the cache is advisory, callers fall through to the store.
func (c *OrderCache) Get(ctx context.Context, orderID int64) ([]byte, bool) {
	if c == nil || c.Client == nil {
		return nil, false
	}
	payload, err := c.Client.Get(ctx, key(orderID)).Bytes()
	if err != nil {
		return nil, false
	}
	return payload, true
}

func (c *OrderCache) Set(ctx context.Context, orderID int64, payload []byte) {
	if c == nil || c.Client == nil {
		return
	}
	_ = c.Client.Set(ctx, key(orderID), payload, c.TTL).Err()
}

func (c *OrderCache) Invalidate(ctx context.Context, orderID int64) {
	if c == nil || c.Client == nil {
		return
	}
	_ = c.Client.Del(ctx, key(orderID)).Err()
}
