package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Client wraps Redis operations for cross-worker coordination.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

const (
	resetLockKey  = "flakewatch:reset-lock"
	resetLockTTL  = 60 * time.Second
	resetLockPoll = 250 * time.Millisecond
)

// ResetLock serializes destructive schema resets across worker processes
// sharing one physical store.
type ResetLock struct {
	client *Client
}

// NewResetLock creates a lock over the given client.
func NewResetLock(client *Client) *ResetLock {
	return &ResetLock{client: client}
}

// Acquire blocks until the lock is held or ctx is done. The returned
// release function deletes the lock; the TTL bounds the hold time of a
// crashed owner.
func (l *ResetLock) Acquire(ctx context.Context) (func(), error) {
	token := uuid.New().String()

	for {
		ok, err := l.client.rdb.SetNX(ctx, resetLockKey, token, resetLockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("setnx failed: %w", err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(resetLockPoll):
		}
	}

	release := func() {
		// Only delete the lock if we still own it.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		current, err := l.client.rdb.Get(ctx, resetLockKey).Result()
		if err == nil && current == token {
			_ = l.client.rdb.Del(ctx, resetLockKey).Err()
		}
	}
	return release, nil
}
