package mock

import (
	"context"

	"github.com/fwojciec/sitemapgen"
)

var (
	_ sitemapgen.SitemapBuilder = (*SitemapBuilder)(nil)
	_ sitemapgen.SitemapWriter  = (*SitemapWriter)(nil)
)

// SitemapBuilder is a mock implementation of sitemapgen.SitemapBuilder.
type SitemapBuilder struct {
	BuildFn func(records []*sitemapgen.URLRecord) (*sitemapgen.SitemapSet, error)
}

func (b *SitemapBuilder) Build(records []*sitemapgen.URLRecord) (*sitemapgen.SitemapSet, error) {
	return b.BuildFn(records)
}

// SitemapWriter is a mock implementation of sitemapgen.SitemapWriter.
type SitemapWriter struct {
	WriteSitemapsFn func(ctx context.Context, set *sitemapgen.SitemapSet) error
}

func (w *SitemapWriter) WriteSitemaps(ctx context.Context, set *sitemapgen.SitemapSet) error {
	return w.WriteSitemapsFn(ctx, set)
}
