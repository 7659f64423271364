package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

const jobColumns = `id, content_id, job_type, status, progress, total_items, completed_items,
current_step, error_message, error_code, error_details, metadata, created_at, updated_at`

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// Create inserts a new job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.GenerationJob) error {
	query := `
INSERT INTO generation_jobs (id, content_id, job_type, status, progress, total_items, completed_items, current_step, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING created_at, updated_at;
`
	row := r.pool.QueryRow(ctx, query,
		job.ID,
		job.ContentID,
		job.Type,
		job.Status,
		job.Progress,
		job.TotalItems,
		job.CompletedItems,
		job.CurrentStep,
		nullableBytes(job.Metadata),
	)
	return row.Scan(&job.CreatedAt, &job.UpdatedAt)
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE id = $1;`
	job, err := scanJob(r.pool.QueryRow(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// ListByContent returns jobs owned by a content item, newest first. With
// activeOnly only pending/generating jobs are returned.
func (r *JobRepositoryPG) ListByContent(ctx context.Context, contentID string, activeOnly bool) ([]domain.GenerationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE content_id = $1`
	if activeOnly {
		query += ` AND status IN ('pending', 'generating')`
	}
	query += ` ORDER BY created_at DESC;`

	rows, err := r.pool.Query(ctx, query, contentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ListActive returns every pending/generating job across all contents.
func (r *JobRepositoryPG) ListActive(ctx context.Context) ([]domain.GenerationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs
WHERE status IN ('pending', 'generating')
ORDER BY created_at DESC;`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

// Update applies a partial update; nil fields keep their stored value.
func (r *JobRepositoryPG) Update(ctx context.Context, jobID string, u domain.JobUpdate) (*domain.GenerationJob, error) {
	query := `
UPDATE generation_jobs
SET status          = COALESCE($2, status),
    progress        = COALESCE($3, progress),
    completed_items = COALESCE($4, completed_items),
    current_step    = COALESCE($5, current_step),
    error_message   = COALESCE($6, error_message),
    error_code      = COALESCE($7, error_code),
    error_details   = COALESCE($8, error_details),
    metadata        = COALESCE($9, metadata),
    updated_at      = now()
WHERE id = $1
RETURNING ` + jobColumns + `;`

	job, err := scanJob(r.pool.QueryRow(ctx, query, jobID,
		u.Status,
		u.Progress,
		u.CompletedItems,
		u.CurrentStep,
		u.ErrorMessage,
		u.ErrorCode,
		nullableBytes(u.ErrorDetails),
		nullableBytes(u.Metadata),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// Delete removes a single job.
func (r *JobRepositoryPG) Delete(ctx context.Context, jobID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM generation_jobs WHERE id = $1;`, jobID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteTerminalByContent garbage-collects completed/failed jobs for a content item.
func (r *JobRepositoryPG) DeleteTerminalByContent(ctx context.Context, contentID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
DELETE FROM generation_jobs
WHERE content_id = $1 AND status IN ('completed', 'failed');`, contentID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// FailStale marks jobs last touched before olderThan and still active as
// failed with a timeout error code.
func (r *JobRepositoryPG) FailStale(ctx context.Context, olderThan time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
UPDATE generation_jobs
SET status        = 'failed',
    error_message = 'generation timed out: no progress reported',
    error_code    = 'timeout',
    updated_at    = now()
WHERE status IN ('pending', 'generating') AND updated_at < $1
RETURNING id;`, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.GenerationJob, error) {
	var job domain.GenerationJob
	if err := row.Scan(
		&job.ID,
		&job.ContentID,
		&job.Type,
		&job.Status,
		&job.Progress,
		&job.TotalItems,
		&job.CompletedItems,
		&job.CurrentStep,
		&job.ErrorMessage,
		&job.ErrorCode,
		&job.ErrorDetails,
		&job.Metadata,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &job, nil
}

func collectJobs(rows pgx.Rows) ([]domain.GenerationJob, error) {
	var jobs []domain.GenerationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func nullableBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
