package mock

import "github.com/fwojciec/sitemapgen"

var _ sitemapgen.LinkExtractor = (*LinkExtractor)(nil)

// LinkExtractor is a mock implementation of sitemapgen.LinkExtractor.
type LinkExtractor struct {
	ExtractLinksFn func(html, pageURL, origin string) ([]string, error)
}

func (e *LinkExtractor) ExtractLinks(html, pageURL, origin string) ([]string, error) {
	return e.ExtractLinksFn(html, pageURL, origin)
}
