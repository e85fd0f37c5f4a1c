package bootstrap

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pratamalabs/domaindesk/internal/config"
	"github.com/pratamalabs/domaindesk/internal/logger"
)

// connectRedis returns nil when events are disabled or Redis is unreachable;
// the publisher tolerates a nil client and the service runs without events.
func connectRedis(cfg *config.Config, log logger.Logger) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("Redis unreachable, events disabled",
			logger.String("address", cfg.Redis.Address),
			logger.Error(err),
		)
		_ = client.Close()
		return nil
	}

	log.Info("Redis connection established",
		logger.String("address", cfg.Redis.Address),
	)
	return client
}
