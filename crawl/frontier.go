package crawl

import (
	"net/url"
	"sync"

	"github.com/fwojciec/sitemapgen"
)

// NormalizeStartURL parses a crawl start URL. Only absolute http(s) URLs
// are accepted. The fragment is dropped and an empty path becomes "/".
func NormalizeStartURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, sitemapgen.Errorf(sitemapgen.EINVALID, "invalid URL: %s", rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, sitemapgen.Errorf(sitemapgen.EINVALID, "invalid URL: %s", rawURL)
	}
	if u.Host == "" {
		return nil, sitemapgen.Errorf(sitemapgen.EINVALID, "invalid URL: %s", rawURL)
	}
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u, nil
}

// Origin returns the scheme and host of u.
func Origin(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}

// Counts is a snapshot of frontier bookkeeping.
type Counts struct {
	Discovered int
	Visited    int
	Results    int
}

// Frontier tracks the BFS state of a single crawl: the FIFO queue, the
// discovered and visited sets, and the result accumulator. Every visited
// URL is also discovered. It is safe for concurrent use by multiple
// goroutines.
type Frontier struct {
	start *url.URL
	opts  sitemapgen.CrawlOptions

	mu         sync.Mutex
	queue      []sitemapgen.FrontierItem
	discovered map[string]struct{}
	visited    map[string]struct{}
	records    []*sitemapgen.URLRecord
}

// NewFrontier creates a frontier seeded with startURL at depth 0.
func NewFrontier(startURL string, opts sitemapgen.CrawlOptions) (*Frontier, error) {
	start, err := NormalizeStartURL(startURL)
	if err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	seed := start.String()
	return &Frontier{
		start:      start,
		opts:       opts,
		queue:      []sitemapgen.FrontierItem{{URL: seed, Depth: 0}},
		discovered: map[string]struct{}{seed: {}},
		visited:    make(map[string]struct{}),
	}, nil
}

// Start returns the normalized start URL.
func (f *Frontier) Start() *url.URL {
	u := *f.start
	return &u
}

// NextBatch pops up to n items in FIFO order. Items already visited or
// deeper than the crawl depth are dropped. Returned items are marked
// visited.
func (f *Frontier) NextBatch(n int) []sitemapgen.FrontierItem {
	f.mu.Lock()
	defer f.mu.Unlock()

	var batch []sitemapgen.FrontierItem
	for len(batch) < n && len(f.queue) > 0 {
		item := f.queue[0]
		f.queue = f.queue[1:]

		if _, ok := f.visited[item.URL]; ok {
			continue
		}
		if item.Depth > f.opts.CrawlDepth {
			continue
		}
		f.visited[item.URL] = struct{}{}
		batch = append(batch, item)
	}
	return batch
}

// RecordDiscovered adds URLs not seen before to the discovered set and
// queues those within the crawl depth while the result budget remains.
// Unparsable URLs are ignored. Returns the number of newly queued items.
func (f *Frontier) RecordDiscovered(urls []string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	var queued int
	for _, raw := range urls {
		if _, ok := f.discovered[raw]; ok {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		f.discovered[raw] = struct{}{}

		depth := PathDepth(u, f.start)
		if depth > f.opts.CrawlDepth || len(f.records) >= f.opts.MaxURLs {
			continue
		}
		f.queue = append(f.queue, sitemapgen.FrontierItem{URL: raw, Depth: depth})
		queued++
	}
	return queued
}

// AddRecord appends rec to the results unless the budget is exhausted.
// Returns the running total and whether rec was accepted.
func (f *Frontier) AddRecord(rec *sitemapgen.URLRecord) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.records) >= f.opts.MaxURLs {
		return len(f.records), false
	}
	f.records = append(f.records, rec)
	return len(f.records), true
}

// BudgetReached reports whether the result accumulator is full.
func (f *Frontier) BudgetReached() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records) >= f.opts.MaxURLs
}

// Done reports whether the crawl should stop: nothing left to dispatch or
// the result budget is exhausted.
func (f *Frontier) Done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue) == 0 || len(f.records) >= f.opts.MaxURLs
}

// Counts returns a consistent snapshot of the frontier sizes.
func (f *Frontier) Counts() Counts {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Counts{
		Discovered: len(f.discovered),
		Visited:    len(f.visited),
		Results:    len(f.records),
	}
}

// Discovered reports whether rawURL has been discovered.
func (f *Frontier) Discovered(rawURL string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.discovered[rawURL]
	return ok
}

// VisitedURLs returns the URLs dispatched so far, in no particular order.
func (f *Frontier) VisitedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	urls := make([]string, 0, len(f.visited))
	for u := range f.visited {
		urls = append(urls, u)
	}
	return urls
}

// Records returns the accumulated records in completion order.
func (f *Frontier) Records() []*sitemapgen.URLRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*sitemapgen.URLRecord(nil), f.records...)
}
