package mock

import (
	"context"

	"github.com/fwojciec/sitemapgen"
)

var (
	_ sitemapgen.RobotsService = (*RobotsService)(nil)
	_ sitemapgen.RobotsPolicy  = (*RobotsPolicy)(nil)
)

// RobotsService is a mock implementation of sitemapgen.RobotsService.
type RobotsService struct {
	PolicyFn func(ctx context.Context, origin string) (sitemapgen.RobotsPolicy, error)
}

func (s *RobotsService) Policy(ctx context.Context, origin string) (sitemapgen.RobotsPolicy, error) {
	return s.PolicyFn(ctx, origin)
}

// RobotsPolicy is a mock implementation of sitemapgen.RobotsPolicy.
type RobotsPolicy struct {
	AllowedFn func(rawURL, userAgent string) bool
}

func (p *RobotsPolicy) Allowed(rawURL, userAgent string) bool {
	return p.AllowedFn(rawURL, userAgent)
}
