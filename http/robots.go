package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/fwojciec/sitemapgen"
	"github.com/temoto/robotstxt"
)

// maxRobotsSize caps the bytes read from a robots.txt response.
const maxRobotsSize = 512 << 10

// Ensure RobotsService implements sitemapgen.RobotsService at compile time.
var _ sitemapgen.RobotsService = (*RobotsService)(nil)

// RobotsService fetches and parses robots.txt files.
type RobotsService struct {
	client    *http.Client
	userAgent string
}

// NewRobotsService creates a RobotsService sharing the Fetcher options for
// timeout and user agent.
func NewRobotsService(opts ...Option) *RobotsService {
	f := NewFetcher(opts...)
	return &RobotsService{client: f.client, userAgent: f.userAgent}
}

// Policy fetches {origin}/robots.txt once. Only a 200 response is parsed;
// any other outcome yields sitemapgen.AllowAll with a *RobotsFetchError.
func (s *RobotsService) Policy(ctx context.Context, origin string) (sitemapgen.RobotsPolicy, error) {
	robotsURL := strings.TrimSuffix(origin, "/") + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return sitemapgen.AllowAll, &sitemapgen.RobotsFetchError{Origin: origin, Err: err}
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return sitemapgen.AllowAll, &sitemapgen.RobotsFetchError{Origin: origin, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return sitemapgen.AllowAll, &sitemapgen.RobotsFetchError{
			Origin: origin,
			Err:    fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsSize))
	if err != nil {
		return sitemapgen.AllowAll, &sitemapgen.RobotsFetchError{Origin: origin, Err: err}
	}
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return sitemapgen.AllowAll, &sitemapgen.RobotsFetchError{Origin: origin, Err: err}
	}
	return &robotsPolicy{data: data}, nil
}

// robotsPolicy evaluates parsed robots.txt groups. It is read-only.
type robotsPolicy struct {
	data *robotstxt.RobotsData
}

// Allowed reports whether userAgent may fetch rawURL. The most specific
// matching group wins, falling back to "*". Unparsable URLs are denied.
func (p *robotsPolicy) Allowed(rawURL, userAgent string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	group := p.data.FindGroup(userAgent)
	if group == nil {
		return true
	}
	return group.Test(u.RequestURI())
}
