package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisClient struct {
	client     *redis.ClusterClient
	defaultTTL time.Duration
}

func NewRedisClient(addrs string, poolSize int, defaultTTL time.Duration) *RedisClient {
	client := redis.NewClusterClient(&redis.ClusterOptions{
		Addrs: strings.Split(addrs, ","),

		// Pool settings for high read concurrency
		PoolSize:     poolSize,
		MinIdleConns: 10,

		MaxRedirects: 3,

		// Cache reads should fail fast
		DialTimeout:  5 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,

		MaxRetries:      3,
		MinRetryBackoff: 50 * time.Millisecond,
		MaxRetryBackoff: 500 * time.Millisecond,
	})

	return &RedisClient{
		client:     client,
		defaultTTL: defaultTTL,
	}
}

func (rc *RedisClient) SetKey(ctx context.Context, key string, value string) error {
	return rc.client.Set(ctx, key, value, rc.defaultTTL).Err()
}

func (rc *RedisClient) GetKey(ctx context.Context, key string) (string, bool, error) {
	result := rc.client.Get(ctx, key)

	// Cache miss
	if result.Err() == redis.Nil {
		return "", false, nil
	}
	if result.Err() != nil {
		return "", false, result.Err()
	}

	return result.Val(), true, nil
}

func (rc *RedisClient) DeleteKeys(ctx context.Context, keys []string) error {
	var errs []string

	for _, key := range keys {
		if err := rc.client.Del(ctx, key).Err(); err != nil {
			errs = append(errs, fmt.Sprintf("key %s: %v", key, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalidation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (rc *RedisClient) HealthCheck(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}
