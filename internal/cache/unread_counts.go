package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const unreadKeyPrefix = "announce:unread:"

// UnreadCounts caches per-user unread announcement counts in Redis. The
// cache is advisory: misses and Redis failures fall through to Postgres, and
// every write path that changes unread state invalidates the affected users.
// The user directory itself is never cached here.
type UnreadCounts struct {
	client *redis.Client
	ttl    time.Duration
}

// NewUnreadCounts builds the cache wrapper. A nil client disables caching.
func NewUnreadCounts(client *redis.Client, ttl time.Duration) *UnreadCounts {
	return &UnreadCounts{client: client, ttl: ttl}
}

// Get returns the cached count and whether it was present.
func (c *UnreadCounts) Get(ctx context.Context, uid string) (int, bool) {
	if c == nil || c.client == nil {
		return 0, false
	}
	val, err := c.client.Get(ctx, unreadKeyPrefix+uid).Result()
	if err != nil {
		return 0, false
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return count, true
}

// Set stores the count with the configured TTL.
func (c *UnreadCounts) Set(ctx context.Context, uid string, count int) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Set(ctx, unreadKeyPrefix+uid, strconv.Itoa(count), c.ttl).Err()
}

// Invalidate drops cached counts for the given users.
func (c *UnreadCounts) Invalidate(ctx context.Context, uids ...string) {
	if c == nil || c.client == nil || len(uids) == 0 {
		return
	}
	keys := make([]string, len(uids))
	for i, uid := range uids {
		keys[i] = unreadKeyPrefix + uid
	}
	_ = c.client.Del(ctx, keys...).Err()
}
