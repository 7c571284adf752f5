package sitemapgen

import (
	"context"
	"fmt"
)

// Sitemap protocol limits and file names.
const (
	// MaxURLsPerSitemap is the protocol limit on entries per document.
	MaxURLsPerSitemap = 50000

	// SitemapNamespace is the XML namespace of urlset and sitemapindex.
	SitemapNamespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

	SitemapFilename      = "sitemap.xml"
	SitemapIndexFilename = "sitemap-index.xml"
	sitemapChunkFormat   = "sitemap-%d.xml"
)

// SitemapChunkFilename returns the name of the n-th (1-based) document of
// a multi-document sitemap.
func SitemapChunkFilename(n int) string {
	return fmt.Sprintf(sitemapChunkFormat, n)
}

// SitemapDocument is a single generated XML document.
type SitemapDocument struct {
	Name    string `json:"name"`
	Content string `json:"content"`
	IsIndex bool   `json:"isIndex,omitempty"`
}

// SitemapSet is the output of a build: the urlset documents in order plus
// an optional index referencing them.
type SitemapSet struct {
	Sitemaps []*SitemapDocument `json:"sitemaps"`
	Index    *SitemapDocument   `json:"index,omitempty"`
}

// Len returns the number of urlset documents.
func (s *SitemapSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Sitemaps)
}

// HasIndex reports whether the set carries an index document.
func (s *SitemapSet) HasIndex() bool {
	return s != nil && s.Index != nil
}

// Find returns the document with the given name. An empty name selects the
// default document: the index if present, otherwise the first sitemap.
// Returns ENOTFOUND if no document matches.
func (s *SitemapSet) Find(name string) (*SitemapDocument, error) {
	if s == nil {
		return nil, Errorf(ENOTFOUND, "sitemap file not found")
	}
	if name == "" {
		if s.Index != nil {
			return s.Index, nil
		}
		if len(s.Sitemaps) > 0 {
			return s.Sitemaps[0], nil
		}
		return nil, Errorf(ENOTFOUND, "sitemap file not found")
	}
	if s.Index != nil && s.Index.Name == name {
		return s.Index, nil
	}
	for _, doc := range s.Sitemaps {
		if doc.Name == name {
			return doc, nil
		}
	}
	return nil, Errorf(ENOTFOUND, "sitemap file %q not found", name)
}

// Files returns all documents, index first.
func (s *SitemapSet) Files() []*SitemapDocument {
	if s == nil {
		return nil
	}
	files := make([]*SitemapDocument, 0, len(s.Sitemaps)+1)
	if s.Index != nil {
		files = append(files, s.Index)
	}
	return append(files, s.Sitemaps...)
}

// SitemapBuilder converts crawl records into sitemap documents.
type SitemapBuilder interface {
	// Build returns an empty set for no records, a single document for up
	// to MaxURLsPerSitemap records, and numbered chunks plus an index above
	// that.
	Build(records []*URLRecord) (*SitemapSet, error)
}

// SitemapWriter persists a sitemap set, e.g. to a directory.
type SitemapWriter interface {
	WriteSitemaps(ctx context.Context, set *SitemapSet) error
}
