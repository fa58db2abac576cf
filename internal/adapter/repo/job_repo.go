package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storyboard-server/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository. Status transitions are
// guarded in SQL so a stale worker can never move a terminal job.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// Create inserts a new PENDING job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	metadata, err := encodeMetadata(job.Metadata)
	if err != nil {
		return err
	}
	query := `
INSERT INTO jobs (id, user_id, project_id, kind, status, done_items, total_items, result_url, metadata, error_message)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
`
	_, err = r.pool.Exec(ctx, query,
		job.ID,
		job.UserID,
		job.ProjectID,
		job.Kind,
		job.Status,
		job.DoneItems,
		job.TotalItems,
		job.ResultURL,
		metadata,
		job.ErrorMessage,
	)
	return err
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
SELECT id, user_id, project_id, kind, status, done_items, total_items, result_url, metadata, error_message, created_at, updated_at
FROM jobs
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, jobID)
	var job domain.Job
	var metadata []byte
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.ProjectID,
		&job.Kind,
		&job.Status,
		&job.DoneItems,
		&job.TotalItems,
		&job.ResultURL,
		&metadata,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &job.Metadata); err != nil {
			return nil, fmt.Errorf("repo: decode job metadata: %w", err)
		}
	}
	return &job, nil
}

// MarkRunning moves a PENDING job to RUNNING.
func (r *JobRepositoryPG) MarkRunning(ctx context.Context, jobID string) error {
	query := `
UPDATE jobs
SET status = $2, updated_at = NOW()
WHERE id = $1 AND status = $3;
`
	tag, err := r.pool.Exec(ctx, query, jobID, domain.JobStatusRunning, domain.JobStatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.transitionError(ctx, jobID, domain.JobStatusRunning)
	}
	return nil
}

// UpdateProgress writes the item counters after each processed target.
func (r *JobRepositoryPG) UpdateProgress(ctx context.Context, jobID string, done, total int) error {
	query := `
UPDATE jobs
SET done_items = $2, total_items = $3, updated_at = NOW()
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query, jobID, done, total)
	return err
}

// SetMetadata merges the given keys into the job's metadata document.
func (r *JobRepositoryPG) SetMetadata(ctx context.Context, jobID string, metadata map[string]any) error {
	if len(metadata) == 0 {
		return nil
	}
	doc, err := encodeMetadata(metadata)
	if err != nil {
		return err
	}
	query := `
UPDATE jobs
SET metadata = COALESCE(metadata, '{}'::jsonb) || $2::jsonb, updated_at = NOW()
WHERE id = $1;
`
	_, err = r.pool.Exec(ctx, query, jobID, doc)
	return err
}

// Complete writes the SUCCEEDED terminal state with result URL and metadata.
func (r *JobRepositoryPG) Complete(ctx context.Context, jobID, resultURL string, metadata map[string]any) error {
	doc, err := encodeMetadata(metadata)
	if err != nil {
		return err
	}
	query := `
UPDATE jobs
SET status = $2,
    result_url = $3,
    metadata = COALESCE(metadata, '{}'::jsonb) || $4::jsonb,
    updated_at = NOW()
WHERE id = $1 AND status IN ($5, $6);
`
	tag, err := r.pool.Exec(ctx, query, jobID, domain.JobStatusSucceeded, resultURL, doc,
		domain.JobStatusPending, domain.JobStatusRunning)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.transitionError(ctx, jobID, domain.JobStatusSucceeded)
	}
	return nil
}

// Fail writes the FAILED terminal state with a human-readable message.
func (r *JobRepositoryPG) Fail(ctx context.Context, jobID, message string) error {
	query := `
UPDATE jobs
SET status = $2, error_message = $3, updated_at = NOW()
WHERE id = $1 AND status IN ($4, $5);
`
	tag, err := r.pool.Exec(ctx, query, jobID, domain.JobStatusFailed, message,
		domain.JobStatusPending, domain.JobStatusRunning)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.transitionError(ctx, jobID, domain.JobStatusFailed)
	}
	return nil
}

func (r *JobRepositoryPG) transitionError(ctx context.Context, jobID string, next domain.JobStatus) error {
	job, err := r.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	return fmt.Errorf("repo: job %s is %s, cannot move to %s: %w", jobID, job.Status, next, domain.ErrInvalidTransition)
}

func encodeMetadata(metadata map[string]any) ([]byte, error) {
	if len(metadata) == 0 {
		return []byte("{}"), nil
	}
	doc, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("repo: encode job metadata: %w", err)
	}
	return doc, nil
}
