// Package redis implements the sitemapgen result cache on Redis using
// redis/go-redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fwojciec/sitemapgen"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a cached result stays valid.
const DefaultTTL = time.Hour

const defaultDialTimeout = 2 * time.Second

// Ensure ResultCache implements sitemapgen.ResultCache at compile time.
var _ sitemapgen.ResultCache = (*ResultCache)(nil)

// Config configures a Redis connection.
type Config struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// NewClient connects to a single Redis node and verifies the connection.
func NewClient(ctx context.Context, cfg Config) (*goredis.Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	timeout := cfg.DialTimeout
	if timeout == 0 {
		timeout = defaultDialTimeout
	}

	opts := &goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	if err := ping(ctx, opts); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return goredis.NewClient(opts), nil
}

// ping checks the server once, without retries, so an unreachable address
// fails within a single dial timeout.
func ping(ctx context.Context, opts *goredis.Options) error {
	probe := *opts
	probe.MaxRetries = -1
	probe.PoolSize = 1
	client := goredis.NewClient(&probe)
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	return client.Ping(ctx).Err()
}

// ResultCache stores completed crawl results as JSON values that expire
// after a TTL.
type ResultCache struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

// NewResultCache creates a ResultCache. A non-positive ttl uses DefaultTTL.
func NewResultCache(client goredis.UniversalClient, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ResultCache{client: client, ttl: ttl}
}

// Get returns the cached result under key, or ENOTFOUND on a miss.
func (c *ResultCache) Get(ctx context.Context, key string) (*sitemapgen.CachedResult, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, sitemapgen.Errorf(sitemapgen.ENOTFOUND, "cache miss")
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	var result sitemapgen.CachedResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode cached result: %w", err)
	}
	return &result, nil
}

// Set stores result under key with the cache TTL.
func (c *ResultCache) Set(ctx context.Context, key string, result *sitemapgen.CachedResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode cached result: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (c *ResultCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
