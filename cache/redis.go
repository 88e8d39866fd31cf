package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const complexityKeyPrefix = "ragchat:complexity:"

// RedisCache backs ComplexityCache with Redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ComplexityCache = (*RedisCache)(nil)

// NewRedisCache connects to Redis at addr. A zero ttl means records never
// expire.
func NewRedisCache(addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error { return c.client.Close() }

func (c *RedisCache) Get(ctx context.Context, queryHash string) (*Record, error) {
	data, err := c.client.Get(ctx, complexityKeyPrefix+queryHash).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode cached record: %w", err)
	}
	return &rec, nil
}

func (c *RedisCache) Put(ctx context.Context, rec *Record) error {
	if rec == nil || rec.QueryHash == "" {
		return fmt.Errorf("cache put: missing query hash")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode cache record: %w", err)
	}
	if err := c.client.Set(ctx, complexityKeyPrefix+rec.QueryHash, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}
