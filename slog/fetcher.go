// Package slog provides logging decorators for sitemapgen services.
package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/sitemapgen"
)

// Ensure LoggingFetcher implements sitemapgen.Fetcher.
var _ sitemapgen.Fetcher = (*LoggingFetcher)(nil)

// LoggingFetcher wraps a Fetcher with logging.
type LoggingFetcher struct {
	next   sitemapgen.Fetcher
	logger *slog.Logger
}

// NewLoggingFetcher creates a new LoggingFetcher.
func NewLoggingFetcher(next sitemapgen.Fetcher, logger *slog.Logger) *LoggingFetcher {
	return &LoggingFetcher{next: next, logger: logger}
}

// Fetch delegates to the wrapped fetcher and logs the operation.
func (f *LoggingFetcher) Fetch(ctx context.Context, url string) (resp *sitemapgen.Response, err error) {
	defer func(begin time.Time) {
		var status, size int
		var contentType string
		if resp != nil {
			status, size, contentType = resp.StatusCode, len(resp.Body), resp.ContentType
		}
		f.logger.Info("fetch",
			"url", url,
			"status", status,
			"contentType", contentType,
			"bytes", size,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return f.next.Fetch(ctx, url)
}
