package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

const limiterPrefix = "taskpulse_ratelimit"

// LimiterStore holds rate limit counters. With a Redis URL the counters are
// shared by every server replica; without one they live in process memory.
type LimiterStore struct {
	limiter.Store
	client *redis.Client
}

// NewLimiterStore connects to redisURL, or returns an in-memory store when it is empty
func NewLimiterStore(redisURL string) (*LimiterStore, error) {
	if redisURL == "" {
		return &LimiterStore{Store: memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          limiterPrefix,
			CleanUpInterval: limiter.DefaultCleanUpInterval,
		})}, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: limiterPrefix})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to create Redis limiter store: %w", err)
	}
	return &LimiterStore{Store: store, client: client}, nil
}

// Shared reports whether counters are kept in Redis
func (s *LimiterStore) Shared() bool {
	return s.client != nil
}

// Ping checks the Redis connection; the in-memory store is always healthy
func (s *LimiterStore) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Ping(ctx).Err()
}

// Close releases the Redis connection
func (s *LimiterStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
