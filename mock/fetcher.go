package mock

import (
	"context"

	"github.com/fwojciec/sitemapgen"
)

var _ sitemapgen.Fetcher = (*Fetcher)(nil)

// Fetcher is a mock implementation of sitemapgen.Fetcher.
type Fetcher struct {
	FetchFn func(ctx context.Context, url string) (*sitemapgen.Response, error)
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (*sitemapgen.Response, error) {
	return f.FetchFn(ctx, url)
}
