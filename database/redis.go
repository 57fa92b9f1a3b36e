package database

import (
	"CareDesk/config"
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

type RedisConfig struct {
	URL          string
	PoolSize     int
	DialTimeout  time.Duration
	MinIdleConns int
	ReadTimeout  time.Duration
	MaxRetries   int
}

// LoadRedisConfig reads pool settings from the environment with defaults.
func LoadRedisConfig(url string) RedisConfig {
	return RedisConfig{
		URL:          url,
		PoolSize:     config.GetEnvAsInt("REDIS_POOL_SIZE", 10),
		DialTimeout:  config.GetEnvAsDuration("REDIS_DIAL_TIMEOUT", 30*time.Second),
		MinIdleConns: config.GetEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
		ReadTimeout:  config.GetEnvAsDuration("REDIS_READ_TIMEOUT", 10*time.Second),
		MaxRetries:   config.GetEnvAsInt("REDIS_MAX_RETRIES", 3),
	}
}

// NewRedisClient creates a Redis client with the provided configuration
func NewRedisClient(ctx context.Context, cfg RedisConfig, log *zap.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.PoolSize = cfg.PoolSize
	opt.MinIdleConns = cfg.MinIdleConns
	opt.DialTimeout = cfg.DialTimeout
	opt.ReadTimeout = cfg.ReadTimeout
	opt.MaxRetries = cfg.MaxRetries

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis server: %w", err)
	}

	log.Info("Redis client initialized",
		zap.Int("pool_size", cfg.PoolSize),
		zap.Int("min_idle_conns", cfg.MinIdleConns),
		zap.Duration("dial_timeout", cfg.DialTimeout),
		zap.Duration("read_timeout", cfg.ReadTimeout),
		zap.Int("max_retries", cfg.MaxRetries),
	)
	return client, nil
}
