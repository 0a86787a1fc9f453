package store

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/membership/pkg/config"
)

// NewRedisClient builds the optional usage cache client. An empty address
// disables caching (the usage store tolerates a nil client).
func NewRedisClient(cfg *config.Config, log *zap.SugaredLogger) *redis.Client {
	if cfg.Redis.Addr == "" {
		log.Infow("redis not configured, usage cache disabled")
		return nil
	}
	log.Infow("usage cache enabled", "addr", cfg.Redis.Addr)
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

var Module = fx.Options(
	fx.Provide(NewRedisClient),
	fx.Provide(NewSubscriptionStore),
	fx.Provide(NewHistoryStore),
	fx.Provide(NewUsageStore),
	fx.Provide(NewSnapshotStore),
)
