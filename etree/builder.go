// Package etree renders sitemap XML documents using beevik/etree.
package etree

import (
	"net/url"
	"time"

	"github.com/beevik/etree"
	"github.com/fwojciec/sitemapgen"
)

// lastModLayout is ISO 8601 with milliseconds, always rendered in UTC.
const lastModLayout = "2006-01-02T15:04:05.000Z07:00"

var _ sitemapgen.SitemapBuilder = (*Builder)(nil)

// Builder splits URL records into sitemap documents.
type Builder struct {
	// ChunkSize is the maximum number of entries per document.
	// Defaults to sitemapgen.MaxURLsPerSitemap.
	ChunkSize int

	// Now returns the index lastmod. Defaults to time.Now.
	Now func() time.Time
}

// NewBuilder creates a Builder with protocol defaults.
func NewBuilder() *Builder {
	return &Builder{ChunkSize: sitemapgen.MaxURLsPerSitemap}
}

// Build renders records in order. No records yield an empty set; records
// that fit one document yield sitemap.xml; more yield numbered chunks and
// an index whose locations are rooted at the first record's origin.
func (b *Builder) Build(records []*sitemapgen.URLRecord) (*sitemapgen.SitemapSet, error) {
	set := &sitemapgen.SitemapSet{}
	if len(records) == 0 {
		return set, nil
	}

	size := b.chunkSize()
	if len(records) <= size {
		content, err := renderURLSet(records)
		if err != nil {
			return nil, err
		}
		set.Sitemaps = append(set.Sitemaps, &sitemapgen.SitemapDocument{
			Name:    sitemapgen.SitemapFilename,
			Content: content,
		})
		return set, nil
	}

	origin, err := originOf(records[0].URL)
	if err != nil {
		return nil, err
	}

	var names []string
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		content, err := renderURLSet(records[start:end])
		if err != nil {
			return nil, err
		}
		name := sitemapgen.SitemapChunkFilename(len(set.Sitemaps) + 1)
		names = append(names, name)
		set.Sitemaps = append(set.Sitemaps, &sitemapgen.SitemapDocument{
			Name:    name,
			Content: content,
		})
	}

	index, err := renderIndex(origin, names, b.now())
	if err != nil {
		return nil, err
	}
	set.Index = &sitemapgen.SitemapDocument{
		Name:    sitemapgen.SitemapIndexFilename,
		Content: index,
		IsIndex: true,
	}
	return set, nil
}

func (b *Builder) chunkSize() int {
	if b.ChunkSize <= 0 {
		return sitemapgen.MaxURLsPerSitemap
	}
	return b.ChunkSize
}

func (b *Builder) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}

func newDocument(root string) (*etree.Document, *etree.Element) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	el := doc.CreateElement(root)
	el.CreateAttr("xmlns", sitemapgen.SitemapNamespace)
	return doc, el
}

func renderURLSet(records []*sitemapgen.URLRecord) (string, error) {
	doc, urlset := newDocument("urlset")
	for _, r := range records {
		u := urlset.CreateElement("url")
		u.CreateElement("loc").SetText(r.URL)
		u.CreateElement("lastmod").SetText(formatLastMod(r.LastMod))
		u.CreateElement("changefreq").SetText(string(r.ChangeFreq))
		u.CreateElement("priority").SetText(r.Priority)
	}
	doc.Indent(2)
	return doc.WriteToString()
}

func renderIndex(origin string, names []string, now time.Time) (string, error) {
	doc, index := newDocument("sitemapindex")
	lastmod := formatLastMod(now)
	for _, name := range names {
		s := index.CreateElement("sitemap")
		s.CreateElement("loc").SetText(origin + "/" + name)
		s.CreateElement("lastmod").SetText(lastmod)
	}
	doc.Indent(2)
	return doc.WriteToString()
}

func formatLastMod(t time.Time) string {
	return t.UTC().Format(lastModLayout)
}

// originOf returns scheme://host of rawURL.
func originOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", sitemapgen.Errorf(sitemapgen.EINVALID, "cannot derive origin from %q", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}
