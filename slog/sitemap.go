package slog

import (
	"log/slog"
	"time"

	"github.com/fwojciec/sitemapgen"
)

// Ensure LoggingSitemapBuilder implements sitemapgen.SitemapBuilder.
var _ sitemapgen.SitemapBuilder = (*LoggingSitemapBuilder)(nil)

// LoggingSitemapBuilder wraps a SitemapBuilder with logging.
type LoggingSitemapBuilder struct {
	next   sitemapgen.SitemapBuilder
	logger *slog.Logger
}

// NewLoggingSitemapBuilder creates a new LoggingSitemapBuilder.
func NewLoggingSitemapBuilder(next sitemapgen.SitemapBuilder, logger *slog.Logger) *LoggingSitemapBuilder {
	return &LoggingSitemapBuilder{next: next, logger: logger}
}

// Build delegates to the wrapped builder and logs the operation.
func (b *LoggingSitemapBuilder) Build(records []*sitemapgen.URLRecord) (set *sitemapgen.SitemapSet, err error) {
	defer func(begin time.Time) {
		b.logger.Info("sitemap build",
			"records", len(records),
			"documents", set.Len(),
			"index", set.HasIndex(),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return b.next.Build(records)
}
