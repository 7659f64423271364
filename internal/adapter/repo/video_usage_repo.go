package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// VideoUsageRepositoryPG implements domain.VideoUsageRepository.
type VideoUsageRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewVideoUsageRepository creates a usage repository backed by PostgreSQL.
func NewVideoUsageRepository(pool *pgxpool.Pool) *VideoUsageRepositoryPG {
	return &VideoUsageRepositoryPG{pool: pool}
}

// Record inserts one billed generation.
func (r *VideoUsageRepositoryPG) Record(ctx context.Context, u *domain.VideoUsage) error {
	query := `
INSERT INTO video_usage (id, brand_id, job_id, model, operation, duration_seconds, include_audio, cost_usd)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING created_at;
`
	row := r.pool.QueryRow(ctx, query,
		u.ID,
		u.BrandID,
		nullableString(u.JobID),
		u.Model,
		u.Operation,
		u.DurationSeconds,
		u.IncludeAudio,
		u.CostUSD,
	)
	return row.Scan(&u.CreatedAt)
}

// MonthlyTotal sums spend for a brand since the given instant.
func (r *VideoUsageRepositoryPG) MonthlyTotal(ctx context.Context, brandID string, since time.Time) (float64, error) {
	query := `
SELECT COALESCE(SUM(cost_usd), 0)
FROM video_usage
WHERE brand_id = $1 AND created_at >= $2;
`
	var total float64
	if err := r.pool.QueryRow(ctx, query, brandID, since).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// DailyCount counts generations for a brand since the given instant.
func (r *VideoUsageRepositoryPG) DailyCount(ctx context.Context, brandID string, since time.Time) (int, error) {
	query := `
SELECT COUNT(*)
FROM video_usage
WHERE brand_id = $1 AND created_at >= $2;
`
	var count int
	if err := r.pool.QueryRow(ctx, query, brandID, since).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ListRecent returns the most recent priced operations, newest first.
func (r *VideoUsageRepositoryPG) ListRecent(ctx context.Context, brandID string, limit int) ([]domain.VideoUsage, error) {
	query := `
SELECT id, brand_id, COALESCE(job_id::text, ''), model, operation, duration_seconds, include_audio, cost_usd, created_at
FROM video_usage
WHERE brand_id = $1
ORDER BY created_at DESC
LIMIT $2;
`
	rows, err := r.pool.Query(ctx, query, brandID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.VideoUsage
	for rows.Next() {
		var u domain.VideoUsage
		if err := rows.Scan(&u.ID, &u.BrandID, &u.JobID, &u.Model, &u.Operation, &u.DurationSeconds, &u.IncludeAudio, &u.CostUSD, &u.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

// BrandConfigRepositoryPG implements domain.BrandConfigRepository.
type BrandConfigRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewBrandConfigRepository creates a brand config repository backed by PostgreSQL.
func NewBrandConfigRepository(pool *pgxpool.Pool) *BrandConfigRepositoryPG {
	return &BrandConfigRepositoryPG{pool: pool}
}

// GetVideoConfig fetches a brand's video settings. Missing rows resolve to a
// disabled config rather than an error so new brands need no provisioning step.
func (r *BrandConfigRepositoryPG) GetVideoConfig(ctx context.Context, brandID string) (*domain.VideoConfig, error) {
	query := `
SELECT brand_id, enabled, monthly_budget_usd, daily_limit, default_model, default_duration, max_duration, include_audio
FROM brand_video_configs
WHERE brand_id = $1;
`
	var cfg domain.VideoConfig
	err := r.pool.QueryRow(ctx, query, brandID).Scan(
		&cfg.BrandID,
		&cfg.Enabled,
		&cfg.MonthlyBudgetUSD,
		&cfg.DailyLimit,
		&cfg.DefaultModel,
		&cfg.DefaultDuration,
		&cfg.MaxDuration,
		&cfg.IncludeAudio,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.VideoConfig{BrandID: brandID}, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
