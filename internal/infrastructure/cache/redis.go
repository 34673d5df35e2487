package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jmanzanog/quote-ingestor/internal/domain"
)

const defaultPrefix = "quote-ingestor:history:"

// RedisCache stores historical series as JSON strings with a TTL.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: defaultPrefix,
		ttl:    ttl,
	}
}

// NewRedisClient connects to addr and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}
	return client, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]domain.HistoricalBar, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get history from redis: %w", err)
	}

	var bars []domain.HistoricalBar
	if err := json.Unmarshal(data, &bars); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal history: %w", err)
	}
	return bars, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, bars []domain.HistoricalBar) error {
	data, err := json.Marshal(bars)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set history in redis: %w", err)
	}
	return nil
}
