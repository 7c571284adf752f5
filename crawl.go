package sitemapgen

import (
	"context"
	"fmt"
	"time"
)

// Default crawl limits applied when a request leaves an option unset.
const (
	DefaultMaxURLs     = 10000
	DefaultCrawlDepth  = 3
	DefaultConcurrency = 5
)

// CrawlOptions bounds a single crawl. Options are immutable for the
// lifetime of a crawl.
type CrawlOptions struct {
	// MaxURLs is the upper bound on the number of records produced.
	MaxURLs int `json:"maxUrls"`

	// CrawlDepth is the inclusive maximum depth, measured in path segments
	// relative to the start URL.
	CrawlDepth int `json:"crawlDepth"`

	// Concurrency is the maximum number of fetches in flight per batch.
	Concurrency int `json:"concurrency"`
}

// DefaultCrawlOptions returns the options used when a request sets none.
func DefaultCrawlOptions() CrawlOptions {
	return CrawlOptions{
		MaxURLs:     DefaultMaxURLs,
		CrawlDepth:  DefaultCrawlDepth,
		Concurrency: DefaultConcurrency,
	}
}

// Validate returns an error if the options cannot drive a crawl.
func (o CrawlOptions) Validate() error {
	if o.MaxURLs <= 0 {
		return Errorf(EINVALID, "maxUrls must be positive")
	}
	if o.CrawlDepth < 0 {
		return Errorf(EINVALID, "crawlDepth must not be negative")
	}
	if o.Concurrency <= 0 {
		return Errorf(EINVALID, "concurrency must be positive")
	}
	return nil
}

// CacheKey derives the key under which the result of crawling url with
// opts is cached. Identical inputs always yield identical keys.
func CacheKey(url string, opts CrawlOptions) string {
	return fmt.Sprintf("sitemap:%s:%d:%d:%d", url, opts.MaxURLs, opts.CrawlDepth, opts.Concurrency)
}

// FrontierItem is a URL waiting to be dispatched, with its crawl depth.
type FrontierItem struct {
	URL   string
	Depth int
}

// ChangeFreq is the sitemap protocol hint about how often a page changes.
type ChangeFreq string

// Change frequencies assigned by depth.
const (
	ChangeFreqDaily   ChangeFreq = "daily"
	ChangeFreqWeekly  ChangeFreq = "weekly"
	ChangeFreqMonthly ChangeFreq = "monthly"
)

// URLRecord describes one successfully crawled HTML page.
type URLRecord struct {
	URL        string     `json:"url"`
	LastMod    time.Time  `json:"lastmod"`
	ChangeFreq ChangeFreq `json:"changefreq"`
	Priority   string     `json:"priority"`
	Depth      int        `json:"depth"`
}

// ProgressType identifies the outcome reported by a ProgressEvent.
type ProgressType string

const (
	ProgressCrawled ProgressType = "crawled"
	ProgressSkipped ProgressType = "skipped"
	ProgressError   ProgressType = "error"
)

// Reasons attached to skipped events.
const (
	ReasonRobotsDenied = "Blocked by robots.txt"
	ReasonLimitReached = "URL limit reached"
)

// ProgressEvent reports the outcome of one processed frontier item.
// Discovered and Visited are running counts at emission time.
type ProgressEvent struct {
	Type       ProgressType `json:"type"`
	URL        string       `json:"url"`
	Discovered int          `json:"discovered"`
	Visited    int          `json:"visited"`

	// Set for crawled events.
	Depth int `json:"depth,omitempty"`
	Total int `json:"total,omitempty"`

	// Set for skipped events.
	Reason string `json:"reason,omitempty"`

	// Set for error events.
	Error string `json:"error,omitempty"`
}

// ProgressFunc receives events as a crawl proceeds. Calls are serialized.
type ProgressFunc func(event ProgressEvent)

// Crawler crawls a single origin and returns the records of the HTML pages
// it fetched, in completion order.
type Crawler interface {
	// Crawl fails only if startURL is malformed, opts are invalid, or ctx
	// is canceled. Per-URL failures are reported through progress.
	Crawl(ctx context.Context, startURL string, opts CrawlOptions, progress ProgressFunc) ([]*URLRecord, error)
}

// RateLimiter throttles requests per origin.
type RateLimiter interface {
	// Wait blocks until a request to origin is allowed or ctx is done.
	Wait(ctx context.Context, origin string) error
}
