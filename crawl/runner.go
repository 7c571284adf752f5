package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fwojciec/sitemapgen"
)

var _ sitemapgen.JobRunner = (*Runner)(nil)

// Runner runs crawl jobs in background goroutines, persists their
// progress, and notifies observers as they advance.
type Runner struct {
	Crawler sitemapgen.Crawler
	Builder sitemapgen.SitemapBuilder
	Jobs    sitemapgen.JobService

	// Cache, if set, short-circuits identical requests.
	Cache sitemapgen.ResultCache

	// Notifier, if set, receives progress, completed and error messages.
	Notifier sitemapgen.JobNotifier

	Logger *slog.Logger
	Now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunner returns a Runner whose jobs live until Close is called.
func NewRunner(crawler sitemapgen.Crawler, builder sitemapgen.SitemapBuilder, jobs sitemapgen.JobService) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		Crawler: crawler,
		Builder: builder,
		Jobs:    jobs,
		Logger:  slog.Default(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// StartJob validates the request and either returns a completed job built
// from the cache or starts a crawl in the background. The caller's ctx only
// bounds the synchronous part; the crawl itself runs until it finishes or
// the Runner is closed.
func (r *Runner) StartJob(ctx context.Context, rawURL string, opts sitemapgen.CrawlOptions) (*sitemapgen.Job, error) {
	if _, err := NormalizeStartURL(rawURL); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	key := sitemapgen.CacheKey(rawURL, opts)
	if job, err := r.cachedJob(ctx, key, rawURL, opts); err != nil {
		return nil, err
	} else if job != nil {
		return job, nil
	}

	job := &sitemapgen.Job{
		URL:       rawURL,
		Options:   opts,
		Status:    sitemapgen.JobRunning,
		StartedAt: r.now(),
	}
	if err := r.Jobs.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	r.Logger.Info("job started", "job", job.ID, "url", rawURL)

	r.wg.Add(1)
	go r.run(job.ID, key, rawURL, opts)

	return job, nil
}

// cachedJob stores and returns a completed job when key is cached. Cache
// failures other than a miss are logged and treated as a miss.
func (r *Runner) cachedJob(ctx context.Context, key, rawURL string, opts sitemapgen.CrawlOptions) (*sitemapgen.Job, error) {
	if r.Cache == nil {
		return nil, nil
	}
	cached, err := r.Cache.Get(ctx, key)
	if err != nil {
		if sitemapgen.ErrorCode(err) != sitemapgen.ENOTFOUND {
			r.Logger.Warn("cache read failed", "key", key, "err", err)
		}
		return nil, nil
	}

	completedAt := cached.CompletedAt
	job := &sitemapgen.Job{
		URL:         rawURL,
		Options:     opts,
		Status:      sitemapgen.JobCompleted,
		Cached:      true,
		StartedAt:   r.now(),
		CompletedAt: &completedAt,
		URLCount:    cached.URLCount,
		Result:      cached.Result,
	}
	if err := r.Jobs.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	r.Logger.Info("job served from cache", "job", job.ID, "url", rawURL, "cachedJob", cached.JobID)
	return job, nil
}

// run executes a job. A panic anywhere in the crawl marks the job failed
// instead of taking the process down.
func (r *Runner) run(id, key, rawURL string, opts sitemapgen.CrawlOptions) {
	defer r.wg.Done()
	defer func() {
		if p := recover(); p != nil {
			r.fail(id, fmt.Errorf("panic: %v", p))
		}
	}()

	// Store writes outlive cancellation so a stopped job is still recorded.
	store := context.WithoutCancel(r.ctx)

	progress := func(event sitemapgen.ProgressEvent) {
		if err := r.Jobs.AppendProgress(store, id, event); err != nil {
			r.Logger.Warn("append progress failed", "job", id, "err", err)
		}
		r.notify(&sitemapgen.JobMessage{Type: sitemapgen.MessageProgress, JobID: id, Data: event})
	}

	records, err := r.Crawler.Crawl(r.ctx, rawURL, opts, progress)
	if err != nil {
		r.fail(id, err)
		return
	}

	set, err := r.Builder.Build(records)
	if err != nil {
		r.fail(id, fmt.Errorf("build sitemaps: %w", err))
		return
	}

	completedAt := r.now()
	status := sitemapgen.JobCompleted
	count := len(records)
	if _, err := r.Jobs.UpdateJob(store, id, sitemapgen.JobUpdate{
		Status:      &status,
		CompletedAt: &completedAt,
		URLCount:    &count,
		Result:      set,
	}); err != nil {
		r.fail(id, fmt.Errorf("store result: %w", err))
		return
	}

	if r.Cache != nil {
		if err := r.Cache.Set(store, key, &sitemapgen.CachedResult{
			JobID:       id,
			Result:      set,
			URLCount:    count,
			CompletedAt: completedAt,
		}); err != nil {
			r.Logger.Warn("cache write failed", "job", id, "key", key, "err", err)
		}
	}

	r.Logger.Info("job completed", "job", id, "urls", count, "sitemaps", set.Len())
	r.notify(&sitemapgen.JobMessage{
		Type:  sitemapgen.MessageCompleted,
		JobID: id,
		Data: sitemapgen.CompletedData{
			URLCount:     count,
			SitemapCount: set.Len(),
			HasIndex:     set.HasIndex(),
		},
	})
}

// fail marks the job failed and notifies observers.
func (r *Runner) fail(id string, cause error) {
	msg := cause.Error()
	status := sitemapgen.JobFailed
	completedAt := r.now()
	if _, err := r.Jobs.UpdateJob(context.WithoutCancel(r.ctx), id, sitemapgen.JobUpdate{
		Status:      &status,
		CompletedAt: &completedAt,
		Error:       &msg,
	}); err != nil {
		r.Logger.Error("mark job failed", "job", id, "err", err)
	}

	r.Logger.Error("job failed", "job", id, "err", cause)
	r.notify(&sitemapgen.JobMessage{
		Type:  sitemapgen.MessageError,
		JobID: id,
		Data:  sitemapgen.ErrorData{Error: msg},
	})
}

func (r *Runner) notify(msg *sitemapgen.JobMessage) {
	if r.Notifier != nil {
		r.Notifier.Notify(msg)
	}
}

// Wait blocks until all started jobs have finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Close cancels running jobs and waits for them to finish.
func (r *Runner) Close() error {
	r.cancel()
	r.wg.Wait()
	return nil
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC()
	}
	return r.Now()
}
