package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fwojciec/sitemapgen"
	"github.com/google/uuid"
)

// Compile-time interface verification.
var _ sitemapgen.JobService = (*JobService)(nil)

// JobService implements sitemapgen.JobService using SQLite.
type JobService struct {
	db *DB
}

// NewJobService creates a new JobService.
func NewJobService(db *DB) *JobService {
	return &JobService{db: db}
}

// CreateJob creates a new job with a generated ID. A job created with a
// result, such as one served from the cache, stores its sitemaps too.
func (s *JobService) CreateJob(ctx context.Context, job *sitemapgen.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	job.ID = uuid.New().String()

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO jobs (id, url, max_urls, crawl_depth, concurrency, status, cached, started_at, completed_at, url_count, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, job.URL, job.Options.MaxURLs, job.Options.CrawlDepth, job.Options.Concurrency,
		string(job.Status), boolToInt(job.Cached), formatTime(job.StartedAt), nullTime(job.CompletedAt),
		job.URLCount, job.Error)
	if err != nil {
		return err
	}

	if job.Result != nil {
		if err := replaceSitemaps(ctx, tx, job.ID, job.Result); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// FindJobByID retrieves a job by ID, including its sitemaps once completed.
func (s *JobService) FindJobByID(ctx context.Context, id string) (*sitemapgen.Job, error) {
	var job sitemapgen.Job
	var status, startedAt string
	var completedAt sql.NullString
	var cached int

	err := s.db.QueryRowContext(ctx, `
		SELECT id, url, max_urls, crawl_depth, concurrency, status, cached, started_at, completed_at, url_count, error
		FROM jobs
		WHERE id = ?
	`, id).Scan(&job.ID, &job.URL, &job.Options.MaxURLs, &job.Options.CrawlDepth, &job.Options.Concurrency,
		&status, &cached, &startedAt, &completedAt, &job.URLCount, &job.Error)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, sitemapgen.Errorf(sitemapgen.ENOTFOUND, "Job not found")
	}
	if err != nil {
		return nil, err
	}

	job.Status = sitemapgen.JobStatus(status)
	job.Cached = cached != 0
	if job.StartedAt, err = parseTime(startedAt, "started_at"); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t, err := parseTime(completedAt.String, "completed_at")
		if err != nil {
			return nil, err
		}
		job.CompletedAt = &t
	}

	if job.Status == sitemapgen.JobCompleted {
		if job.Result, err = s.findSitemaps(ctx, id); err != nil {
			return nil, err
		}
	}

	return &job, nil
}

// findSitemaps loads the sitemap set of a job in generation order.
func (s *JobService) findSitemaps(ctx context.Context, jobID string) (*sitemapgen.SitemapSet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, content, is_index
		FROM sitemaps
		WHERE job_id = ?
		ORDER BY position
	`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := &sitemapgen.SitemapSet{}
	for rows.Next() {
		var doc sitemapgen.SitemapDocument
		var isIndex int
		if err := rows.Scan(&doc.Name, &doc.Content, &isIndex); err != nil {
			return nil, err
		}
		doc.IsIndex = isIndex != 0
		if doc.IsIndex {
			set.Index = &doc
		} else {
			set.Sitemaps = append(set.Sitemaps, &doc)
		}
	}
	return set, rows.Err()
}

// UpdateJob updates an existing job. A non-nil Result replaces the stored
// sitemaps.
func (s *JobService) UpdateJob(ctx context.Context, id string, upd sitemapgen.JobUpdate) (*sitemapgen.Job, error) {
	job, err := s.FindJobByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Status != nil {
		job.Status = *upd.Status
	}
	if upd.CompletedAt != nil {
		t := *upd.CompletedAt
		job.CompletedAt = &t
	}
	if upd.URLCount != nil {
		job.URLCount = *upd.URLCount
	}
	if upd.Error != nil {
		job.Error = *upd.Error
	}
	if upd.Result != nil {
		job.Result = upd.Result
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE jobs
		SET status = ?, completed_at = ?, url_count = ?, error = ?
		WHERE id = ?
	`, string(job.Status), nullTime(job.CompletedAt), job.URLCount, job.Error, id)
	if err != nil {
		return nil, err
	}

	if upd.Result != nil {
		if err := replaceSitemaps(ctx, tx, id, upd.Result); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return job, nil
}

// replaceSitemaps stores set as the sitemaps of a job, index first.
func replaceSitemaps(ctx context.Context, tx *sql.Tx, jobID string, set *sitemapgen.SitemapSet) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM sitemaps WHERE job_id = ?", jobID); err != nil {
		return err
	}
	for i, doc := range set.Files() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sitemaps (job_id, name, content, is_index, position)
			VALUES (?, ?, ?, ?, ?)
		`, jobID, doc.Name, doc.Content, boolToInt(doc.IsIndex), i)
		if err != nil {
			return fmt.Errorf("store %s: %w", doc.Name, err)
		}
	}
	return nil
}

// AppendProgress records a progress event for a job.
func (s *JobService) AppendProgress(ctx context.Context, id string, event sitemapgen.ProgressEvent) error {
	if err := s.jobExists(ctx, id); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode progress event: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO job_events (job_id, type, url, data)
		VALUES (?, ?, ?, ?)
	`, id, string(event.Type), event.URL, string(data))
	return err
}

// FindProgress returns the recorded events of a job in emission order.
func (s *JobService) FindProgress(ctx context.Context, id string, filter sitemapgen.ProgressFilter) ([]*sitemapgen.ProgressEvent, error) {
	if err := s.jobExists(ctx, id); err != nil {
		return nil, err
	}

	var query strings.Builder
	args := []any{id}
	query.WriteString("SELECT data FROM job_events WHERE job_id = ? ORDER BY id")
	appendPagination(&query, &args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*sitemapgen.ProgressEvent, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var event sitemapgen.ProgressEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			return nil, fmt.Errorf("decode progress event: %w", err)
		}
		events = append(events, &event)
	}
	return events, rows.Err()
}

func (s *JobService) jobExists(ctx context.Context, id string) error {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs WHERE id = ?", id).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return sitemapgen.Errorf(sitemapgen.ENOTFOUND, "Job not found")
	}
	return nil
}
