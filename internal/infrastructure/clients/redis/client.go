package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/karasuemlak/backend/pkg/config"
	"github.com/karasuemlak/backend/pkg/retry"
)

// Client wraps go-redis with the key namespace shared by every adapter
type Client struct {
	client    *redis.Client
	keyPrefix string
}

// Options builds go-redis options from configuration. A REDIS_URL wins over
// host and port so managed instances with TLS (rediss://) work unchanged.
func Options(cfg *config.RedisConfig) (*redis.Options, error) {
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}

	opts.DialTimeout = 3 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second
	// Pub/Sub connections live outside the pool; commands stay few per job
	opts.PoolSize = 10
	return opts, nil
}

// NewClient connects to Redis, retrying briefly while the instance starts
func NewClient(cfg *config.RedisConfig) (*Client, error) {
	opts, err := Options(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	retryConfig := retry.Config{
		MaxAttempts:   3,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
	}
	err = retry.DoWithLog(context.Background(), retryConfig, "Redis",
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return client.Ping(ctx).Err()
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("next_delay", nextDelay).Msg("redis connection attempt failed")
		},
	)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info().Str("addr", opts.Addr).Int("db", opts.DB).Msg("connected to redis")
	return &Client{client: client, keyPrefix: cfg.KeyPrefix}, nil
}

// NewClientFromRedis wraps an existing go-redis client
func NewClientFromRedis(client *redis.Client, keyPrefix string) *Client {
	return &Client{client: client, keyPrefix: keyPrefix}
}

// Client returns the underlying Redis client
func (c *Client) Client() *redis.Client {
	return c.client
}

// Key namespaces a cache key
func (c *Client) Key(key string) string {
	return c.keyPrefix + key
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}

// Ping verifies the connection to Redis
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
