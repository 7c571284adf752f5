// Package http provides the HTTP side of sitemapgen: the page fetcher and
// robots.txt service used by the crawler, and the API server with its
// WebSocket hub.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fwojciec/sitemapgen"
	"golang.org/x/net/html/charset"
)

// DefaultFetchTimeout is the default timeout for HTTP requests.
const DefaultFetchTimeout = 10 * time.Second

// DefaultUserAgent is sent with every request unless overridden.
const DefaultUserAgent = "SitemapGenerator/1.0"

// MaxRedirects is the number of redirects followed before a fetch fails.
const MaxRedirects = 5

// MaxBodySize caps the number of bytes read from an HTML response.
const MaxBodySize = 10 << 20

var errTooManyRedirects = errors.New("stopped after 5 redirects")

// Ensure Fetcher implements sitemapgen.Fetcher at compile time.
var _ sitemapgen.Fetcher = (*Fetcher)(nil)

// Fetcher retrieves pages with plain HTTP GET requests. It does not
// execute JavaScript.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the timeout for HTTP requests.
// Defaults to DefaultFetchTimeout (10s) if not specified.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// NewFetcher creates a new HTTP-based Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		timeout:   DefaultFetchTimeout,
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(f)
	}

	f.client = &http.Client{
		Timeout: f.timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) > MaxRedirects {
				return errTooManyRedirects
			}
			return nil
		},
	}

	return f
}

// Fetch issues a GET for url. Statuses of 400 and above fail. HTML bodies
// are decoded to UTF-8; other content types are returned without a body.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*sitemapgen.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &sitemapgen.FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &sitemapgen.FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &sitemapgen.FetchError{URL: url, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	r := &sitemapgen.Response{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}
	if !r.IsHTML() {
		return r, nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		return nil, &sitemapgen.FetchError{URL: url, Err: err}
	}
	if r.Body, err = decodeHTML(raw, r.ContentType); err != nil {
		return nil, &sitemapgen.FetchError{URL: url, Err: err}
	}
	return r, nil
}

// decodeHTML transcodes raw to UTF-8 using the Content-Type header and any
// meta charset in the document. An empty body decodes to an empty body.
func decodeHTML(raw []byte, contentType string) ([]byte, error) {
	if len(raw) == 0 {
		return []byte{}, nil
	}
	enc, name, _ := charset.DetermineEncoding(raw, contentType)
	if name == "utf-8" {
		return raw, nil
	}
	return enc.NewDecoder().Bytes(raw)
}
