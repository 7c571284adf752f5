package sitemapgen

import (
	"context"
	"strings"
)

// Response holds the result of fetching a single page.
type Response struct {
	// URL is the final URL after redirects.
	URL         string
	StatusCode  int
	ContentType string

	// Body is empty for non-HTML responses.
	Body []byte
}

// IsHTML reports whether the response carries an HTML document.
func (r *Response) IsHTML() bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(r.ContentType)), "text/html")
}

// Fetcher retrieves pages over HTTP.
type Fetcher interface {
	// Fetch issues a single GET for url. Responses with status >= 400 and
	// transport failures are returned as *FetchError.
	// The context controls timeout and cancellation.
	Fetch(ctx context.Context, url string) (*Response, error)
}
