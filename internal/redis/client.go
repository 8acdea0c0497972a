// Package redis wraps the go-redis client with the small surface the
// gatekeeper needs: connection management plus the shared replay and
// rate-limit primitives used when several ingress instances run at once.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb    *redis.Client
	config *Config
}

type Config struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("redis config is required")
	}

	if config.Address == "" {
		config.Address = "localhost:6379"
	}
	if config.PoolSize == 0 {
		config.PoolSize = 10
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{
		rdb:    rdb,
		config: config,
	}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

// RegisterFingerprint atomically records a replay fingerprint with a TTL.
// It returns true when the fingerprint was newly inserted and false when an
// unexpired entry already existed.
func (c *Client) RegisterFingerprint(ctx context.Context, fingerprint string, ttl time.Duration) (bool, error) {
	inserted, err := c.rdb.SetNX(ctx, fingerprint, time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to register fingerprint: %w", err)
	}
	return inserted, nil
}

// IncrementWindow increments the fixed-window counter for key. The window
// TTL is attached when the counter is first created, so the window starts
// at the first request and resets when the TTL elapses.
func (c *Client) IncrementWindow(ctx context.Context, key string, window time.Duration) (int, error) {
	count, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment rate window: %w", err)
	}

	if count == 1 {
		if err := c.rdb.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("failed to set rate window expiry: %w", err)
		}
	}

	return int(count), nil
}
