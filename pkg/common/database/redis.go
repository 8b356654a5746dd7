package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/meerkat-code/meerkat-abacus/pkg/common/config"
	"github.com/meerkat-code/meerkat-abacus/pkg/common/logger"
	"github.com/redis/go-redis/v9"
)

var (
	redisClient *redis.Client
	redisOnce   sync.Once
)

func GetRedis() *redis.Client {
	redisOnce.Do(func() {
		cfg := config.Load()
		addr := fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort)
		// The cache only backs alert dedupe; a slow redis must not stall
		// a coding pass.
		redisClient = redis.NewClient(&redis.Options{
			Addr:         addr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  2 * time.Second,
			WriteTimeout: 2 * time.Second,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			// The notifier treats a missing cache as "not yet sent", so a
			// dead redis degrades to duplicate notifications, not failures.
			logger.Log.WithError(err).WithField("addr", addr).Error("Failed to connect to Redis")
		} else {
			logger.Log.WithField("addr", addr).Info("Connected to Redis")
		}
	})

	return redisClient
}

func CloseRedis() error {
	if redisClient != nil {
		return redisClient.Close()
	}
	return nil
}
