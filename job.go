package sitemapgen

import (
	"context"
	"time"
)

// JobStatus is the lifecycle state of a crawl job.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is a crawl request tracked by the orchestration layer.
type Job struct {
	ID          string       `json:"id"`
	URL         string       `json:"url"`
	Options     CrawlOptions `json:"options"`
	Status      JobStatus    `json:"status"`
	Cached      bool         `json:"cached"`
	StartedAt   time.Time    `json:"startedAt"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
	URLCount    int          `json:"urlCount"`
	Error       string       `json:"error,omitempty"`

	// Result is set once the job has completed.
	Result *SitemapSet `json:"-"`
}

// Validate returns an error if the job contains invalid fields.
func (j *Job) Validate() error {
	if j.URL == "" {
		return Errorf(EINVALID, "job URL required")
	}
	return j.Options.Validate()
}

// JobService represents a service for managing crawl jobs.
type JobService interface {
	// CreateJob stores a new job and assigns its ID.
	CreateJob(ctx context.Context, job *Job) error

	// FindJobByID retrieves a job, including its sitemap set if completed.
	// Returns ENOTFOUND if job does not exist.
	FindJobByID(ctx context.Context, id string) (*Job, error)

	// UpdateJob updates an existing job.
	// Returns ENOTFOUND if job does not exist.
	UpdateJob(ctx context.Context, id string, upd JobUpdate) (*Job, error)

	// AppendProgress records a progress event for a job.
	AppendProgress(ctx context.Context, id string, event ProgressEvent) error

	// FindProgress returns recorded progress events in emission order.
	FindProgress(ctx context.Context, id string, filter ProgressFilter) ([]*ProgressEvent, error)
}

// JobUpdate represents fields that can be updated on a job.
type JobUpdate struct {
	Status      *JobStatus
	CompletedAt *time.Time
	URLCount    *int
	Error       *string
	Result      *SitemapSet
}

// ProgressFilter represents a filter for FindProgress.
type ProgressFilter struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// JobRunner starts crawl jobs in the background.
type JobRunner interface {
	// StartJob validates the request and returns immediately with either a
	// running job or, on a cache hit, a completed job with Cached set.
	StartJob(ctx context.Context, url string, opts CrawlOptions) (*Job, error)
}

// Job message types pushed to observers.
const (
	MessageProgress  = "progress"
	MessageCompleted = "completed"
	MessageError     = "error"
)

// JobMessage is a notification about a job, delivered to subscribers.
type JobMessage struct {
	Type  string `json:"type"`
	JobID string `json:"jobId"`
	Data  any    `json:"data"`
}

// CompletedData is the payload of a completed message.
type CompletedData struct {
	URLCount     int  `json:"urlCount"`
	SitemapCount int  `json:"sitemapCount"`
	HasIndex     bool `json:"hasIndex"`
}

// ErrorData is the payload of an error message.
type ErrorData struct {
	Error string `json:"error"`
}

// JobNotifier delivers job messages to interested observers.
type JobNotifier interface {
	Notify(msg *JobMessage)
}
