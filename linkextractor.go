package sitemapgen

// LinkExtractor finds crawlable links in HTML pages.
type LinkExtractor interface {
	// ExtractLinks parses html fetched from pageURL and returns the
	// deduplicated, fragment-free, absolute URLs of same-origin pages it
	// links to. Links to non-page resources (images, archives, scripts...)
	// are dropped. Malformed hrefs are skipped silently.
	ExtractLinks(html string, pageURL string, origin string) ([]string, error)
}
