package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const unreadCountTTL = 5 * time.Minute

// RedisStore handles Redis operations: rate-limit state for the HTTP
// middleware and a best-effort cache of per-user unread notification counts.
// The durable store remains authoritative; every entry here may vanish.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client exposes the underlying client for the rate-limit middleware.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// unreadKey returns the cache key for a user's unread counter.
func unreadKey(userID uuid.UUID) string {
	return fmt.Sprintf("unread:%s", userID)
}

// GetUnreadCount returns the cached unread count for a user. The second
// return value reports a cache hit.
func (s *RedisStore) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int64, bool) {
	val, err := s.client.Get(ctx, unreadKey(userID)).Result()
	if err != nil {
		return 0, false
	}
	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return count, true
}

// SetUnreadCount caches a user's unread count.
func (s *RedisStore) SetUnreadCount(ctx context.Context, userID uuid.UUID, count int64) {
	s.client.Set(ctx, unreadKey(userID), count, unreadCountTTL)
}

// InvalidateUnreadCount drops a user's cached unread count after any
// notification write for that user.
func (s *RedisStore) InvalidateUnreadCount(ctx context.Context, userID uuid.UUID) {
	s.client.Del(ctx, unreadKey(userID))
}
