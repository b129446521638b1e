package cache

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Daniel-Humberto/Micron-Linealytics/internal/config"
)

const (
	defaultPlanTTL = time.Hour
	pingTimeout    = 5 * time.Second
	purgeBatchSize = 100
)

// dialRedis connects and pings the configured server.
func dialRedis(ctx context.Context, cfg config.CacheConfig) (*redis.Client, error) {
	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s failed: %w", opts.Addr, err)
	}
	return client, nil
}

// redisOptions prefers REDIS_URL and falls back to host, port and db.
func redisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opt, nil
	}

	host, port := cfg.RedisHost, cfg.RedisPort
	if host == "" {
		host = "127.0.0.1"
	}
	if port == "" {
		port = "6379"
	}

	return &redis.Options{
		Addr:        net.JoinHostPort(host, port),
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: pingTimeout,
	}, nil
}

// planTTL is how long a cached plan run stays valid.
func planTTL(cfg config.CacheConfig) time.Duration {
	if cfg.TTLSeconds <= 0 {
		return defaultPlanTTL
	}
	return time.Duration(cfg.TTLSeconds) * time.Second
}

// purgePrefix unlinks every key below prefix in batches and returns how many
// keys were removed.
func purgePrefix(ctx context.Context, client *redis.Client, prefix string) (int, error) {
	iter := client.Scan(ctx, 0, prefix+"*", purgeBatchSize).Iterator()

	removed := 0
	batch := make([]string, 0, purgeBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := client.Unlink(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("redis unlink failed: %w", err)
		}
		removed += int(n)
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == purgeBatchSize {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan failed: %w", err)
	}
	if err := flush(); err != nil {
		return removed, err
	}
	return removed, nil
}
