package idempotency

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "idempotency:"

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// ConnectRedis accepts either a redis:// URL or a bare host:port.
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("ConnectRedis: parse url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ConnectRedis: ping: %w", err)
	}
	return client, nil
}

func (c *RedisCache) Add(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	set, err := c.client.SetNX(ctx, redisKeyPrefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("Add: %w", err)
	}
	return !set, nil
}

func (c *RedisCache) Remove(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("Remove: %w", err)
	}
	return nil
}
