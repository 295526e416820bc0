package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore owns the Redis connection. Sessions and the event bus take the
// underlying client from Client(); rate limiting lives here.
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

// Client exposes the underlying client for sessions and the event bus.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func rateLimitKey(subject string) string {
	return fmt.Sprintf("ratelimit:%s", subject)
}

// CheckRateLimit reports whether the subject is under the limit.
func (s *RedisStore) CheckRateLimit(ctx context.Context, subject string, limit int) (bool, error) {
	count, err := s.client.Get(ctx, rateLimitKey(subject)).Int()
	if err != nil && err != redis.Nil {
		return false, err
	}
	return count < limit, nil
}

// IncrementRateLimit increments the subject's counter, starting the window on
// first use.
func (s *RedisStore) IncrementRateLimit(ctx context.Context, subject string, window time.Duration) error {
	key := rateLimitKey(subject)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	_, err := pipe.Exec(ctx)
	return err
}
