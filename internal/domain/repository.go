package domain

import (
	"context"
	"time"
)

// JobRepository defines persistence for generation jobs.
type JobRepository interface {
	Create(ctx context.Context, job *GenerationJob) error
	GetByID(ctx context.Context, jobID string) (*GenerationJob, error)
	// ListByContent returns jobs for a content item, newest first.
	ListByContent(ctx context.Context, contentID string, activeOnly bool) ([]GenerationJob, error)
	// ListActive returns all pending/generating jobs across contents.
	ListActive(ctx context.Context) ([]GenerationJob, error)
	// Update applies a partial update and returns the resulting row.
	Update(ctx context.Context, jobID string, u JobUpdate) (*GenerationJob, error)
	Delete(ctx context.Context, jobID string) error
	// DeleteTerminalByContent removes completed/failed jobs for a content item
	// and reports how many rows were removed.
	DeleteTerminalByContent(ctx context.Context, contentID string) (int64, error)
	// FailStale marks jobs still active past the lease as failed with a
	// timeout error code and returns the affected job ids.
	FailStale(ctx context.Context, olderThan time.Time) ([]string, error)
}

// VideoUsageRepository persists billed video generations and serves the
// aggregates the budget check runs on.
type VideoUsageRepository interface {
	Record(ctx context.Context, u *VideoUsage) error
	// MonthlyTotal sums cost_usd for a brand since the given instant.
	MonthlyTotal(ctx context.Context, brandID string, since time.Time) (float64, error)
	// DailyCount counts records for a brand since the given instant.
	DailyCount(ctx context.Context, brandID string, since time.Time) (int, error)
	ListRecent(ctx context.Context, brandID string, limit int) ([]VideoUsage, error)
}

// BrandConfigRepository reads per-brand video settings.
type BrandConfigRepository interface {
	GetVideoConfig(ctx context.Context, brandID string) (*VideoConfig, error)
}
