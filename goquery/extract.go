// Package goquery implements link extraction using PuerkitoBio/goquery.
package goquery

import (
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/sitemapgen"
)

var _ sitemapgen.LinkExtractor = (*LinkExtractor)(nil)

// excludedExtensions lists file extensions of resources that are not pages.
var excludedExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".svg": {}, ".webp": {},
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {},
	".zip": {}, ".rar": {}, ".tar": {}, ".gz": {},
	".mp4": {}, ".avi": {}, ".mov": {}, ".mp3": {}, ".wav": {},
	".css": {}, ".js": {}, ".json": {}, ".xml": {},
}

// LinkExtractor extracts same-origin page links from anchor elements.
type LinkExtractor struct{}

// NewLinkExtractor creates a new LinkExtractor.
func NewLinkExtractor() *LinkExtractor {
	return &LinkExtractor{}
}

// ExtractLinks returns the absolute, fragment-free URLs of every a[href] in
// html that resolves to a page on origin, deduplicated in document order.
// Links back to pageURL itself are excluded.
func (e *LinkExtractor) ExtractLinks(html, pageURL, origin string) ([]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, sitemapgen.Errorf(sitemapgen.EINVALID, "invalid page URL: %v", err)
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return nil, sitemapgen.Errorf(sitemapgen.EINVALID, "invalid origin: %v", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, sitemapgen.Errorf(sitemapgen.EINVALID, "failed to parse HTML: %v", err)
	}

	self := stripFragment(base).String()
	seen := make(map[string]struct{})
	var links []string

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || isNonHTTPLink(href) {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := stripFragment(base.ResolveReference(ref))

		if !sameOrigin(resolved, originURL) {
			return
		}
		if hasExcludedExtension(resolved.Path) {
			return
		}

		link := resolved.String()
		if link == self {
			return
		}
		if _, ok := seen[link]; ok {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})

	return links, nil
}

// stripFragment returns a copy of u without its fragment and with an empty
// path normalized to "/".
func stripFragment(u *url.URL) *url.URL {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	if c.Path == "" && c.Opaque == "" {
		c.Path = "/"
	}
	return &c
}

// sameOrigin compares scheme and host (including port) case-insensitively.
func sameOrigin(u, origin *url.URL) bool {
	return strings.EqualFold(u.Scheme, origin.Scheme) && strings.EqualFold(u.Host, origin.Host)
}

func hasExcludedExtension(p string) bool {
	_, ok := excludedExtensions[path.Ext(strings.ToLower(p))]
	return ok
}

// isNonHTTPLink checks if a href is a non-HTTP link that should be skipped.
func isNonHTTPLink(href string) bool {
	href = strings.ToLower(href)
	return strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "data:")
}
