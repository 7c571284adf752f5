package mock

import (
	"context"

	"github.com/fwojciec/sitemapgen"
)

var _ sitemapgen.ResultCache = (*ResultCache)(nil)

// ResultCache is a mock implementation of sitemapgen.ResultCache.
type ResultCache struct {
	GetFn func(ctx context.Context, key string) (*sitemapgen.CachedResult, error)
	SetFn func(ctx context.Context, key string, result *sitemapgen.CachedResult) error
}

func (c *ResultCache) Get(ctx context.Context, key string) (*sitemapgen.CachedResult, error) {
	return c.GetFn(ctx, key)
}

func (c *ResultCache) Set(ctx context.Context, key string, result *sitemapgen.CachedResult) error {
	return c.SetFn(ctx, key, result)
}
