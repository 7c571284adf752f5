package etree_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/fwojciec/sitemapgen"
	sitemapetree "github.com/fwojciec/sitemapgen/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lastMod = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func makeRecords(n int) []*sitemapgen.URLRecord {
	records := make([]*sitemapgen.URLRecord, n)
	for i := range records {
		records[i] = &sitemapgen.URLRecord{
			URL:        fmt.Sprintf("https://example.com/page/%d", i),
			LastMod:    lastMod,
			ChangeFreq: sitemapgen.ChangeFreqWeekly,
			Priority:   "0.7",
			Depth:      1,
		}
	}
	return records
}

func parse(t *testing.T, content string) *etree.Document {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(content))
	return doc
}

func newBuilder() *sitemapetree.Builder {
	b := sitemapetree.NewBuilder()
	b.Now = func() time.Time { return time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC) }
	return b
}

func TestBuilder_Build(t *testing.T) {
	t.Parallel()

	t.Run("returns an empty set without an index for no records", func(t *testing.T) {
		t.Parallel()

		set, err := newBuilder().Build(nil)

		require.NoError(t, err)
		assert.Equal(t, 0, set.Len())
		assert.False(t, set.HasIndex())
	})

	t.Run("renders a single sitemap with fields in protocol order", func(t *testing.T) {
		t.Parallel()

		records := []*sitemapgen.URLRecord{{
			URL:        "https://example.com/",
			LastMod:    lastMod,
			ChangeFreq: sitemapgen.ChangeFreqDaily,
			Priority:   "1.0",
		}}

		set, err := newBuilder().Build(records)

		require.NoError(t, err)
		require.Equal(t, 1, set.Len())
		assert.False(t, set.HasIndex())
		sm := set.Sitemaps[0]
		assert.Equal(t, sitemapgen.SitemapFilename, sm.Name)
		assert.False(t, sm.IsIndex)
		assert.True(t, strings.HasPrefix(sm.Content, `<?xml version="1.0" encoding="UTF-8"?>`))

		doc := parse(t, sm.Content)
		root := doc.Root()
		require.NotNil(t, root)
		assert.Equal(t, "urlset", root.Tag)
		assert.Equal(t, sitemapgen.SitemapNamespace, root.SelectAttrValue("xmlns", ""))

		urls := root.SelectElements("url")
		require.Len(t, urls, 1)
		var tags []string
		for _, child := range urls[0].ChildElements() {
			tags = append(tags, child.Tag)
		}
		assert.Equal(t, []string{"loc", "lastmod", "changefreq", "priority"}, tags)
		assert.Equal(t, "https://example.com/", urls[0].SelectElement("loc").Text())
		assert.Equal(t, "2024-01-15T10:30:00.000Z", urls[0].SelectElement("lastmod").Text())
		assert.Equal(t, "daily", urls[0].SelectElement("changefreq").Text())
		assert.Equal(t, "1.0", urls[0].SelectElement("priority").Text())
	})

	t.Run("renders lastmod in UTC", func(t *testing.T) {
		t.Parallel()

		records := makeRecords(1)
		records[0].LastMod = time.Date(2024, 1, 15, 12, 30, 0, 0, time.FixedZone("CEST", 2*60*60))

		set, err := newBuilder().Build(records)

		require.NoError(t, err)
		assert.Contains(t, set.Sitemaps[0].Content, "<lastmod>2024-01-15T10:30:00.000Z</lastmod>")
	})

	t.Run("escapes reserved XML characters", func(t *testing.T) {
		t.Parallel()

		records := makeRecords(1)
		records[0].URL = `https://example.com/search?a=1&b=<2>&c="3"&d='4'`

		set, err := newBuilder().Build(records)

		require.NoError(t, err)
		content := set.Sitemaps[0].Content
		assert.Contains(t, content, "a=1&amp;b=&lt;2&gt;&amp;c=&quot;3&quot;&amp;d=&apos;4&apos;")
		assert.NotContains(t, content, "a=1&b")
		assert.Equal(t, records[0].URL, parse(t, content).FindElement("//loc").Text())
	})

	t.Run("keeps exactly 50000 records in one sitemap", func(t *testing.T) {
		t.Parallel()

		set, err := newBuilder().Build(makeRecords(sitemapgen.MaxURLsPerSitemap))

		require.NoError(t, err)
		require.Equal(t, 1, set.Len())
		assert.False(t, set.HasIndex())
		assert.Equal(t, sitemapgen.SitemapFilename, set.Sitemaps[0].Name)
		assert.Equal(t, sitemapgen.MaxURLsPerSitemap, strings.Count(set.Sitemaps[0].Content, "<url>"))
	})

	t.Run("splits 60000 records into two chunks with an index", func(t *testing.T) {
		t.Parallel()

		set, err := newBuilder().Build(makeRecords(60000))

		require.NoError(t, err)
		require.Equal(t, 2, set.Len())
		assert.Equal(t, "sitemap-1.xml", set.Sitemaps[0].Name)
		assert.Equal(t, "sitemap-2.xml", set.Sitemaps[1].Name)
		assert.Equal(t, 50000, strings.Count(set.Sitemaps[0].Content, "<url>"))
		assert.Equal(t, 10000, strings.Count(set.Sitemaps[1].Content, "<url>"))

		require.True(t, set.HasIndex())
		assert.Equal(t, sitemapgen.SitemapIndexFilename, set.Index.Name)
		assert.True(t, set.Index.IsIndex)
	})

	t.Run("preserves record order across chunks", func(t *testing.T) {
		t.Parallel()

		b := newBuilder()
		b.ChunkSize = 2

		set, err := b.Build(makeRecords(5))

		require.NoError(t, err)
		require.Equal(t, 3, set.Len())
		var locs []string
		for _, sm := range set.Sitemaps {
			for _, loc := range parse(t, sm.Content).FindElements("//loc") {
				locs = append(locs, loc.Text())
			}
		}
		want := make([]string, 5)
		for i := range want {
			want[i] = fmt.Sprintf("https://example.com/page/%d", i)
		}
		assert.Equal(t, want, locs)
	})

	t.Run("roots index locations at the first record's origin", func(t *testing.T) {
		t.Parallel()

		b := newBuilder()
		b.ChunkSize = 2
		records := makeRecords(3)
		records[0].URL = "https://example.com:8080/deep/page"

		set, err := b.Build(records)

		require.NoError(t, err)
		doc := parse(t, set.Index.Content)
		assert.Equal(t, "sitemapindex", doc.Root().Tag)
		assert.Equal(t, sitemapgen.SitemapNamespace, doc.Root().SelectAttrValue("xmlns", ""))
		sitemaps := doc.Root().SelectElements("sitemap")
		require.Len(t, sitemaps, 2)
		assert.Equal(t, "https://example.com:8080/sitemap-1.xml", sitemaps[0].SelectElement("loc").Text())
		assert.Equal(t, "https://example.com:8080/sitemap-2.xml", sitemaps[1].SelectElement("loc").Text())
		assert.Equal(t, "2024-02-01T00:00:00.000Z", sitemaps[0].SelectElement("lastmod").Text())
	})

	t.Run("fails when the first record has no origin", func(t *testing.T) {
		t.Parallel()

		b := newBuilder()
		b.ChunkSize = 1
		records := makeRecords(2)
		records[0].URL = "not-a-url"

		_, err := b.Build(records)

		assert.Equal(t, sitemapgen.EINVALID, sitemapgen.ErrorCode(err))
	})
}
