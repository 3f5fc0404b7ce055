package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache backs the loader with Redis so several API instances share one
// staleness window.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisCache{client: client, prefix: "meeting:"}, nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, prefix: "meeting:"}
}

func (c *RedisCache) key(meetingID string) string {
	return c.prefix + meetingID
}

func (c *RedisCache) Get(ctx context.Context, meetingID string) ([]byte, error) {
	payload, err := c.client.Get(ctx, c.key(meetingID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	return payload, nil
}

func (c *RedisCache) Set(ctx context.Context, meetingID string, payload []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(meetingID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, meetingID string) error {
	if err := c.client.Del(ctx, c.key(meetingID)).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Ping checks if Redis is reachable.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
