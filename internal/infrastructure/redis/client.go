package redisinfra

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/go-api-verification/internal/config"
)

// NewClient creates a UniversalClient and pings it. A single address gives a
// plain client, MasterName selects sentinel, several addresses select cluster.
func NewClient(ctx context.Context, cfg config.RedisConfig) (redis.UniversalClient, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("redis configuration error: REDIS_ADDRS must be provided")
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:      cfg.Addrs,
		Password:   cfg.Password,
		DB:         cfg.DB,
		MasterName: cfg.MasterName,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis (addrs: %v): %w", cfg.Addrs, err)
	}
	return client, nil
}
