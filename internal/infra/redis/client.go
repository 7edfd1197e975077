// Package redis provides the seen-URL cache the collect stage uses to drop
// items it has already pulled from a feed, without a database round trip.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	seenKey = "collect:seen_urls"
	// seenTTL bounds the cache; the database unique constraint on url is the
	// durable dedup layer, so losing cache entries only costs extra inserts.
	seenTTL = 14 * 24 * time.Hour
)

// Client wraps Redis operations for the collect pipeline.
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

// FilterUnseen returns the subset of urls not present in the seen cache,
// preserving input order.
func (c *Client) FilterUnseen(ctx context.Context, urls []string) ([]string, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	members := make([]interface{}, len(urls))
	for i, u := range urls {
		members[i] = u
	}
	seen, err := c.rdb.SMIsMember(ctx, seenKey, members...).Result()
	if err != nil {
		return nil, fmt.Errorf("smismember failed: %w", err)
	}

	unseen := make([]string, 0, len(urls))
	for i, u := range urls {
		if !seen[i] {
			unseen = append(unseen, u)
		}
	}
	return unseen, nil
}

// MarkSeen adds urls to the seen cache and refreshes its expiry.
func (c *Client) MarkSeen(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return nil
	}

	members := make([]interface{}, len(urls))
	for i, u := range urls {
		members[i] = u
	}
	pipe := c.rdb.TxPipeline()
	pipe.SAdd(ctx, seenKey, members...)
	pipe.Expire(ctx, seenKey, seenTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("sadd failed: %w", err)
	}
	return nil
}

// Health checks Redis connectivity.
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
