package mock

import (
	"context"

	"github.com/fwojciec/sitemapgen"
)

var (
	_ sitemapgen.JobService  = (*JobService)(nil)
	_ sitemapgen.JobRunner   = (*JobRunner)(nil)
	_ sitemapgen.JobNotifier = (*JobNotifier)(nil)
)

// JobService is a mock implementation of sitemapgen.JobService.
type JobService struct {
	CreateJobFn      func(ctx context.Context, job *sitemapgen.Job) error
	FindJobByIDFn    func(ctx context.Context, id string) (*sitemapgen.Job, error)
	UpdateJobFn      func(ctx context.Context, id string, upd sitemapgen.JobUpdate) (*sitemapgen.Job, error)
	AppendProgressFn func(ctx context.Context, id string, event sitemapgen.ProgressEvent) error
	FindProgressFn   func(ctx context.Context, id string, filter sitemapgen.ProgressFilter) ([]*sitemapgen.ProgressEvent, error)
}

func (s *JobService) CreateJob(ctx context.Context, job *sitemapgen.Job) error {
	return s.CreateJobFn(ctx, job)
}

func (s *JobService) FindJobByID(ctx context.Context, id string) (*sitemapgen.Job, error) {
	return s.FindJobByIDFn(ctx, id)
}

func (s *JobService) UpdateJob(ctx context.Context, id string, upd sitemapgen.JobUpdate) (*sitemapgen.Job, error) {
	return s.UpdateJobFn(ctx, id, upd)
}

func (s *JobService) AppendProgress(ctx context.Context, id string, event sitemapgen.ProgressEvent) error {
	return s.AppendProgressFn(ctx, id, event)
}

func (s *JobService) FindProgress(ctx context.Context, id string, filter sitemapgen.ProgressFilter) ([]*sitemapgen.ProgressEvent, error) {
	return s.FindProgressFn(ctx, id, filter)
}

// JobRunner is a mock implementation of sitemapgen.JobRunner.
type JobRunner struct {
	StartJobFn func(ctx context.Context, url string, opts sitemapgen.CrawlOptions) (*sitemapgen.Job, error)
}

func (r *JobRunner) StartJob(ctx context.Context, url string, opts sitemapgen.CrawlOptions) (*sitemapgen.Job, error) {
	return r.StartJobFn(ctx, url, opts)
}

// JobNotifier is a mock implementation of sitemapgen.JobNotifier.
type JobNotifier struct {
	NotifyFn func(msg *sitemapgen.JobMessage)
}

func (n *JobNotifier) Notify(msg *sitemapgen.JobMessage) {
	n.NotifyFn(msg)
}
