// Package crawl provides breadth-first crawling of a single origin and the
// orchestration of crawl jobs. It coordinates robots checks, fetching, link
// extraction, and frontier bookkeeping.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/fwojciec/sitemapgen"
	"golang.org/x/sync/errgroup"
)

// DefaultUserAgent identifies the crawler to robots.txt rules and servers.
const DefaultUserAgent = "SitemapGenerator/1.0"

var _ sitemapgen.Crawler = (*Engine)(nil)

// Engine crawls an origin in BFS batches. Items of a batch run
// concurrently; batches run strictly one after another.
type Engine struct {
	Fetcher   sitemapgen.Fetcher
	Robots    sitemapgen.RobotsService
	Extractor sitemapgen.LinkExtractor

	// Limiter, if set, throttles fetches per origin.
	Limiter sitemapgen.RateLimiter

	// UserAgent is matched against robots.txt groups.
	UserAgent string

	// Now returns the time recorded as lastmod. Defaults to time.Now.
	Now func() time.Time
}

// crawlState is the per-crawl state shared by the workers of a batch.
type crawlState struct {
	frontier *Frontier
	policy   sitemapgen.RobotsPolicy
	origin   string

	mu       sync.Mutex
	progress sitemapgen.ProgressFunc
}

// emit fills in the running counts and delivers event. Deliveries never
// overlap.
func (s *crawlState) emit(event sitemapgen.ProgressEvent) {
	if s.progress == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := s.frontier.Counts()
	event.Discovered = counts.Discovered
	event.Visited = counts.Visited
	s.progress(event)
}

// Crawl crawls startURL and returns the records of fetched HTML pages in
// completion order. Per-URL failures are reported through progress and
// never abort the crawl. If ctx is canceled, or a worker panics, the records
// gathered so far are returned together with the error.
func (e *Engine) Crawl(ctx context.Context, startURL string, opts sitemapgen.CrawlOptions, progress sitemapgen.ProgressFunc) ([]*sitemapgen.URLRecord, error) {
	frontier, err := NewFrontier(startURL, opts)
	if err != nil {
		return nil, err
	}
	origin := Origin(frontier.Start())

	state := &crawlState{
		frontier: frontier,
		policy:   e.robotsPolicy(ctx, origin),
		origin:   origin,
		progress: progress,
	}

	for !frontier.Done() {
		if err := ctx.Err(); err != nil {
			return frontier.Records(), err
		}

		batch := frontier.NextBatch(opts.Concurrency)
		if len(batch) == 0 {
			break
		}

		var g errgroup.Group
		g.SetLimit(opts.Concurrency)
		for _, item := range batch {
			g.Go(func() (err error) {
				defer func() {
					if p := recover(); p != nil {
						err = fmt.Errorf("crawl %s: panic: %v", item.URL, p)
					}
				}()
				e.processItem(ctx, state, item)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return frontier.Records(), err
		}
	}

	if err := ctx.Err(); err != nil {
		return frontier.Records(), err
	}
	return frontier.Records(), nil
}

// robotsPolicy resolves the origin's policy, allowing everything when
// robots.txt is unavailable.
func (e *Engine) robotsPolicy(ctx context.Context, origin string) sitemapgen.RobotsPolicy {
	if e.Robots == nil {
		return sitemapgen.AllowAll
	}
	policy, err := e.Robots.Policy(ctx, origin)
	if err != nil || policy == nil {
		return sitemapgen.AllowAll
	}
	return policy
}

// processItem handles a single frontier item and emits exactly one event,
// except for non-HTML responses which are dropped silently.
func (e *Engine) processItem(ctx context.Context, s *crawlState, item sitemapgen.FrontierItem) {
	if !s.policy.Allowed(item.URL, e.userAgent()) {
		s.emit(sitemapgen.ProgressEvent{
			Type:   sitemapgen.ProgressSkipped,
			URL:    item.URL,
			Reason: sitemapgen.ReasonRobotsDenied,
		})
		return
	}

	if s.frontier.BudgetReached() {
		s.emitLimitReached(item.URL)
		return
	}

	if e.Limiter != nil {
		if err := e.Limiter.Wait(ctx, s.origin); err != nil {
			s.emitError(item.URL, &sitemapgen.FetchError{URL: item.URL, Err: err})
			return
		}
	}

	resp, err := e.Fetcher.Fetch(ctx, item.URL)
	if err != nil {
		var fetchErr *sitemapgen.FetchError
		if !errors.As(err, &fetchErr) {
			err = &sitemapgen.FetchError{URL: item.URL, Err: err}
		}
		s.emitError(item.URL, err)
		return
	}
	if !resp.IsHTML() {
		return
	}

	links, err := e.Extractor.ExtractLinks(string(resp.Body), item.URL, s.origin)
	if err != nil {
		s.emitError(item.URL, err)
		return
	}

	u, err := url.Parse(item.URL)
	if err != nil {
		s.emitError(item.URL, err)
		return
	}
	rec := &sitemapgen.URLRecord{
		URL:        item.URL,
		LastMod:    e.now().UTC(),
		ChangeFreq: ChangeFreqFor(item.Depth),
		Priority:   PriorityFor(u, item.Depth),
		Depth:      item.Depth,
	}
	total, ok := s.frontier.AddRecord(rec)
	if !ok {
		s.emitLimitReached(item.URL)
		return
	}
	s.emit(sitemapgen.ProgressEvent{
		Type:  sitemapgen.ProgressCrawled,
		URL:   item.URL,
		Depth: item.Depth,
		Total: total,
	})

	s.frontier.RecordDiscovered(links)
}

func (s *crawlState) emitLimitReached(rawURL string) {
	s.emit(sitemapgen.ProgressEvent{
		Type:   sitemapgen.ProgressSkipped,
		URL:    rawURL,
		Reason: sitemapgen.ReasonLimitReached,
	})
}

func (s *crawlState) emitError(rawURL string, err error) {
	s.emit(sitemapgen.ProgressEvent{
		Type:  sitemapgen.ProgressError,
		URL:   rawURL,
		Error: err.Error(),
	})
}

func (e *Engine) userAgent() string {
	if e.UserAgent == "" {
		return DefaultUserAgent
	}
	return e.UserAgent
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}
