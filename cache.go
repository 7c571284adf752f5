package sitemapgen

import (
	"context"
	"time"
)

// CachedResult is a completed crawl stored for reuse by identical requests.
type CachedResult struct {
	JobID       string      `json:"jobId"`
	Result      *SitemapSet `json:"result"`
	URLCount    int         `json:"urlCount"`
	CompletedAt time.Time   `json:"completedAt"`
}

// ResultCache stores completed crawl results under CacheKey.
type ResultCache interface {
	// Get returns ENOTFOUND on a cache miss.
	Get(ctx context.Context, key string) (*CachedResult, error)
	Set(ctx context.Context, key string, result *CachedResult) error
}
