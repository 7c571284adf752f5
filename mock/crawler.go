package mock

import (
	"context"

	"github.com/fwojciec/sitemapgen"
)

var (
	_ sitemapgen.Crawler     = (*Crawler)(nil)
	_ sitemapgen.RateLimiter = (*RateLimiter)(nil)
)

// Crawler is a mock implementation of sitemapgen.Crawler.
type Crawler struct {
	CrawlFn func(ctx context.Context, startURL string, opts sitemapgen.CrawlOptions, progress sitemapgen.ProgressFunc) ([]*sitemapgen.URLRecord, error)
}

func (c *Crawler) Crawl(ctx context.Context, startURL string, opts sitemapgen.CrawlOptions, progress sitemapgen.ProgressFunc) ([]*sitemapgen.URLRecord, error) {
	return c.CrawlFn(ctx, startURL, opts, progress)
}

// RateLimiter is a mock implementation of sitemapgen.RateLimiter.
type RateLimiter struct {
	WaitFn func(ctx context.Context, origin string) error
}

func (l *RateLimiter) Wait(ctx context.Context, origin string) error {
	return l.WaitFn(ctx, origin)
}
