// Package cache holds the short-lived counters used for velocity checks.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter tracks per-key event counts and distinct members inside a sliding TTL.
type Counter interface {
	// Incr bumps key and returns the new count. The window starts on first use.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	// AddMember adds member to the set at key and returns the set size.
	AddMember(ctx context.Context, key, member string, window time.Duration) (int64, error)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

type RedisCounter struct {
	client *redis.Client
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("velocity incr %s: %w", key, err)
	}
	return incr.Val(), nil
}

func (c *RedisCounter) AddMember(ctx context.Context, key, member string, window time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	pipe.SAdd(ctx, key, member)
	pipe.ExpireNX(ctx, key, window)
	card := pipe.SCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("velocity sadd %s: %w", key, err)
	}
	return card.Val(), nil
}

// HealthCheck pings the server.
func (c *RedisCounter) HealthCheck(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}
