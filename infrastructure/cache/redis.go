package cache

import (
	"context"

	"wellness-sync/infrastructure/logger"

	"github.com/redis/go-redis/v9"
)

// NewCache connects to Redis. An empty address disables Redis and returns a nil client.
func NewCache(ctx context.Context, addr, username, password string) (*redis.Client, error) {
	if addr == "" {
		logger.GetLogger().Info("Redis address not configured; distributed lock and rate limiter disabled")
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
