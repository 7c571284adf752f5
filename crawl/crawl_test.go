package crawl_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fwojciec/sitemapgen"
	"github.com/fwojciec/sitemapgen/crawl"
	"github.com/fwojciec/sitemapgen/goquery"
	sitemaphttp "github.com/fwojciec/sitemapgen/http"
	"github.com/fwojciec/sitemapgen/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// page is a fake resource served by a fakeSite.
type page struct {
	contentType string
	links       []string
	err         error
}

// fakeSite wires mock fetcher and extractor over an in-memory set of pages.
type fakeSite map[string]page

func (s fakeSite) fetcher() *mock.Fetcher {
	return &mock.Fetcher{
		FetchFn: func(_ context.Context, url string) (*sitemapgen.Response, error) {
			p, ok := s[url]
			if !ok {
				return nil, &sitemapgen.FetchError{URL: url, Err: errors.New("HTTP 404")}
			}
			if p.err != nil {
				return nil, p.err
			}
			ct := p.contentType
			if ct == "" {
				ct = "text/html; charset=utf-8"
			}
			return &sitemapgen.Response{URL: url, StatusCode: 200, ContentType: ct, Body: []byte(url)}, nil
		},
	}
}

func (s fakeSite) extractor() *mock.LinkExtractor {
	return &mock.LinkExtractor{
		ExtractLinksFn: func(html, _, _ string) ([]string, error) {
			return s[html].links, nil
		},
	}
}

func (s fakeSite) engine() *crawl.Engine {
	return &crawl.Engine{
		Fetcher:   s.fetcher(),
		Extractor: s.extractor(),
		Now:       func() time.Time { return time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC) },
	}
}

// recorder collects progress events.
type recorder struct {
	mu     sync.Mutex
	events []sitemapgen.ProgressEvent
}

func (r *recorder) record(e sitemapgen.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ofType(typ sitemapgen.ProgressType) []sitemapgen.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sitemapgen.ProgressEvent
	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func recordURLs(records []*sitemapgen.URLRecord) []string {
	urls := make([]string, len(records))
	for i, r := range records {
		urls[i] = r.URL
	}
	return urls
}

func TestEngine_Crawl(t *testing.T) {
	t.Parallel()

	t.Run("crawls linked pages breadth first with depth metadata", func(t *testing.T) {
		t.Parallel()

		site := fakeSite{
			"https://example.com/":          {links: []string{"https://example.com/about", "https://example.com/blog"}},
			"https://example.com/about":     {},
			"https://example.com/blog":      {links: []string{"https://example.com/blog/post"}},
			"https://example.com/blog/post": {},
		}
		rec := &recorder{}

		records, err := site.engine().Crawl(context.Background(), "https://example.com", sitemapgen.DefaultCrawlOptions(), rec.record)

		require.NoError(t, err)
		require.Len(t, records, 4)
		assert.Equal(t, "https://example.com/", records[0].URL)
		assert.Equal(t, "1.0", records[0].Priority)
		assert.Equal(t, sitemapgen.ChangeFreqDaily, records[0].ChangeFreq)
		assert.ElementsMatch(t, []string{"https://example.com/about", "https://example.com/blog"}, recordURLs(records[1:3]))
		assert.Equal(t, "https://example.com/blog/post", records[3].URL)
		assert.Equal(t, 2, records[3].Depth)
		assert.Equal(t, sitemapgen.ChangeFreqMonthly, records[3].ChangeFreq)
		assert.Equal(t, "0.5", records[3].Priority)
		assert.Equal(t, time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC), records[3].LastMod)

		crawled := rec.ofType(sitemapgen.ProgressCrawled)
		require.Len(t, crawled, 4)
		assert.Equal(t, 4, crawled[3].Total)
	})

	t.Run("skips URLs denied by robots without recording them", func(t *testing.T) {
		t.Parallel()

		site := fakeSite{
			"https://example.com/":        {links: []string{"https://example.com/public", "https://example.com/private"}},
			"https://example.com/public":  {},
			"https://example.com/private": {},
		}
		engine := site.engine()
		engine.Robots = &mock.RobotsService{
			PolicyFn: func(_ context.Context, origin string) (sitemapgen.RobotsPolicy, error) {
				assert.Equal(t, "https://example.com", origin)
				return &mock.RobotsPolicy{
					AllowedFn: func(rawURL, _ string) bool {
						return rawURL != "https://example.com/private"
					},
				}, nil
			},
		}
		rec := &recorder{}

		records, err := engine.Crawl(context.Background(), "https://example.com/", sitemapgen.DefaultCrawlOptions(), rec.record)

		require.NoError(t, err)
		assert.NotContains(t, recordURLs(records), "https://example.com/private")
		skipped := rec.ofType(sitemapgen.ProgressSkipped)
		require.Len(t, skipped, 1)
		assert.Equal(t, "https://example.com/private", skipped[0].URL)
		assert.Equal(t, sitemapgen.ReasonRobotsDenied, skipped[0].Reason)
	})

	t.Run("passes the configured user agent to robots checks", func(t *testing.T) {
		t.Parallel()

		site := fakeSite{"https://example.com/": {}}
		engine := site.engine()
		engine.UserAgent = "TestBot/2.0"
		var gotAgent string
		engine.Robots = &mock.RobotsService{
			PolicyFn: func(context.Context, string) (sitemapgen.RobotsPolicy, error) {
				return &mock.RobotsPolicy{AllowedFn: func(_, ua string) bool {
					gotAgent = ua
					return true
				}}, nil
			},
		}

		_, err := engine.Crawl(context.Background(), "https://example.com/", sitemapgen.DefaultCrawlOptions(), nil)

		require.NoError(t, err)
		assert.Equal(t, "TestBot/2.0", gotAgent)
	})

	t.Run("allows everything when robots cannot be fetched", func(t *testing.T) {
		t.Parallel()

		site := fakeSite{"https://example.com/": {}}
		engine := site.engine()
		engine.Robots = &mock.RobotsService{
			PolicyFn: func(_ context.Context, origin string) (sitemapgen.RobotsPolicy, error) {
				return sitemapgen.AllowAll, &sitemapgen.RobotsFetchError{Origin: origin, Err: errors.New("timeout")}
			},
		}

		records, err := engine.Crawl(context.Background(), "https://example.com/", sitemapgen.DefaultCrawlOptions(), nil)

		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("never exceeds the URL budget", func(t *testing.T) {
		t.Parallel()

		site := fakeSite{}
		var links []string
		for i := range 30 {
			u := fmt.Sprintf("https://example.com/p%d", i)
			links = append(links, u)
			site[u] = page{}
		}
		site["https://example.com/"] = page{links: links}
		opts := sitemapgen.CrawlOptions{MaxURLs: 7, CrawlDepth: 3, Concurrency: 5}
		rec := &recorder{}

		records, err := site.engine().Crawl(context.Background(), "https://example.com/", opts, rec.record)

		require.NoError(t, err)
		assert.Len(t, records, 7)
		for _, e := range rec.ofType(sitemapgen.ProgressSkipped) {
			assert.Equal(t, sitemapgen.ReasonLimitReached, e.Reason)
		}
	})

	t.Run("never records pages deeper than the crawl depth", func(t *testing.T) {
		t.Parallel()

		site := fakeSite{
			"https://example.com/":      {links: []string{"https://example.com/a"}},
			"https://example.com/a":     {links: []string{"https://example.com/a/b"}},
			"https://example.com/a/b":   {links: []string{"https://example.com/a/b/c"}},
			"https://example.com/a/b/c": {},
		}
		opts := sitemapgen.CrawlOptions{MaxURLs: 100, CrawlDepth: 1, Concurrency: 2}

		records, err := site.engine().Crawl(context.Background(), "https://example.com/", opts, nil)

		require.NoError(t, err)
		assert.Equal(t, []string{"https://example.com/", "https://example.com/a"}, recordURLs(records))
		for _, r := range records {
			assert.LessOrEqual(t, r.Depth, opts.CrawlDepth)
		}
	})

	t.Run("crawls only the start URL at depth zero", func(t *testing.T) {
		t.Parallel()

		site := fakeSite{
			"https://example.com/":  {links: []string{"https://example.com/a"}},
			"https://example.com/a": {},
		}
		opts := sitemapgen.CrawlOptions{MaxURLs: 100, CrawlDepth: 0, Concurrency: 2}

		records, err := site.engine().Crawl(context.Background(), "https://example.com/", opts, nil)

		require.NoError(t, err)
		assert.Equal(t, []string{"https://example.com/"}, recordURLs(records))
	})

	t.Run("excludes non-HTML responses silently", func(t *testing.T) {
		t.Parallel()

		site := fakeSite{
			"https://example.com/":     {links: []string{"https://example.com/feed"}},
			"https://example.com/feed": {contentType: "application/rss+xml"},
		}
		rec := &recorder{}

		records, err := site.engine().Crawl(context.Background(), "https://example.com/", sitemapgen.DefaultCrawlOptions(), rec.record)

		require.NoError(t, err)
		assert.Equal(t, []string{"https://example.com/"}, recordURLs(records))
		for _, e := range rec.events {
			assert.NotEqual(t, "https://example.com/feed", e.URL)
		}
	})

	t.Run("records an empty HTML page", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
		}))
		defer server.Close()

		engine := &crawl.Engine{
			Fetcher:   sitemaphttp.NewFetcher(),
			Extractor: goquery.NewLinkExtractor(),
		}
		rec := &recorder{}

		records, err := engine.Crawl(context.Background(), server.URL+"/", sitemapgen.DefaultCrawlOptions(), rec.record)

		require.NoError(t, err)
		assert.Equal(t, []string{server.URL + "/"}, recordURLs(records))
		assert.Len(t, rec.ofType(sitemapgen.ProgressCrawled), 1)
		assert.Empty(t, rec.ofType(sitemapgen.ProgressError))
	})

	t.Run("returns an error when a worker panics", func(t *testing.T) {
		t.Parallel()

		engine := &crawl.Engine{
			Fetcher: &mock.Fetcher{
				FetchFn: func(context.Context, string) (*sitemapgen.Response, error) {
					panic("fetcher exploded")
				},
			},
			Extractor: &mock.LinkExtractor{},
		}

		_, err := engine.Crawl(context.Background(), "https://example.com/", sitemapgen.DefaultCrawlOptions(), nil)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "fetcher exploded")
	})

	t.Run("reports fetch failures and keeps crawling", func(t *testing.T) {
		t.Parallel()

		site := fakeSite{
			"https://example.com/":   {links: []string{"https://example.com/missing", "https://example.com/ok"}},
			"https://example.com/ok": {},
		}
		rec := &recorder{}

		records, err := site.engine().Crawl(context.Background(), "https://example.com/", sitemapgen.DefaultCrawlOptions(), rec.record)

		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"https://example.com/", "https://example.com/ok"}, recordURLs(records))
		errs := rec.ofType(sitemapgen.ProgressError)
		require.Len(t, errs, 1)
		assert.Equal(t, "https://example.com/missing", errs[0].URL)
		assert.Contains(t, errs[0].Error, "HTTP 404")
	})

	t.Run("reports extraction failures", func(t *testing.T) {
		t.Parallel()

		site := fakeSite{"https://example.com/": {}}
		engine := site.engine()
		engine.Extractor = &mock.LinkExtractor{
			ExtractLinksFn: func(string, string, string) ([]string, error) {
				return nil, errors.New("parse failure")
			},
		}
		rec := &recorder{}

		records, err := engine.Crawl(context.Background(), "https://example.com/", sitemapgen.DefaultCrawlOptions(), rec.record)

		require.NoError(t, err)
		assert.Empty(t, records)
		require.Len(t, rec.events, 1)
		assert.Equal(t, sitemapgen.ProgressError, rec.events[0].Type)
	})

	t.Run("rejects an invalid start URL before fetching", func(t *testing.T) {
		t.Parallel()

		engine := &crawl.Engine{
			Fetcher: &mock.Fetcher{FetchFn: func(context.Context, string) (*sitemapgen.Response, error) {
				t.Fatal("fetch must not be called")
				return nil, nil
			}},
		}

		_, err := engine.Crawl(context.Background(), "not a url", sitemapgen.DefaultCrawlOptions(), nil)

		assert.Equal(t, sitemapgen.EINVALID, sitemapgen.ErrorCode(err))
	})

	t.Run("waits on the rate limiter for the origin", func(t *testing.T) {
		t.Parallel()

		site := fakeSite{"https://example.com/": {}}
		engine := site.engine()
		var origins []string
		engine.Limiter = &mock.RateLimiter{WaitFn: func(_ context.Context, origin string) error {
			origins = append(origins, origin)
			return nil
		}}

		_, err := engine.Crawl(context.Background(), "https://example.com/", sitemapgen.DefaultCrawlOptions(), nil)

		require.NoError(t, err)
		assert.Equal(t, []string{"https://example.com"}, origins)
	})

	t.Run("returns partial results when canceled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		site := fakeSite{
			"https://example.com/":  {links: []string{"https://example.com/a"}},
			"https://example.com/a": {},
		}
		engine := site.engine()
		progress := func(e sitemapgen.ProgressEvent) {
			if e.URL == "https://example.com/" {
				cancel()
			}
		}

		records, err := engine.Crawl(ctx, "https://example.com/", sitemapgen.DefaultCrawlOptions(), progress)

		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, []string{"https://example.com/"}, recordURLs(records))
	})

	t.Run("serializes progress callbacks and keeps visited within discovered", func(t *testing.T) {
		t.Parallel()

		site := fakeSite{}
		var links []string
		for i := range 20 {
			u := fmt.Sprintf("https://example.com/p%d", i)
			links = append(links, u)
			site[u] = page{}
		}
		site["https://example.com/"] = page{links: links}
		engine := site.engine()
		engine.Fetcher = &mock.Fetcher{FetchFn: func(ctx context.Context, url string) (*sitemapgen.Response, error) {
			time.Sleep(time.Millisecond)
			return site.fetcher().Fetch(ctx, url)
		}}

		var inFlight atomic.Int32
		var overlapped atomic.Bool
		progress := func(e sitemapgen.ProgressEvent) {
			if inFlight.Add(1) > 1 {
				overlapped.Store(true)
			}
			assert.LessOrEqual(t, e.Visited, e.Discovered)
			time.Sleep(100 * time.Microsecond)
			inFlight.Add(-1)
		}
		opts := sitemapgen.CrawlOptions{MaxURLs: 100, CrawlDepth: 3, Concurrency: 8}

		records, err := engine.Crawl(context.Background(), "https://example.com/", opts, progress)

		require.NoError(t, err)
		assert.Len(t, records, 21)
		assert.False(t, overlapped.Load(), "progress callbacks must not overlap")
	})
}
