// Package db owns the schema the service depends on. Bootstrapping is
// idempotent so local and CI environments can start from an empty database.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS generation_jobs (
    id              UUID PRIMARY KEY,
    content_id      TEXT NOT NULL,
    job_type        TEXT NOT NULL,
    status          TEXT NOT NULL DEFAULT 'pending',
    progress        INT  NOT NULL DEFAULT 0,
    total_items     INT  NOT NULL DEFAULT 1,
    completed_items INT  NOT NULL DEFAULT 0,
    current_step    TEXT NOT NULL DEFAULT '',
    error_message   TEXT NOT NULL DEFAULT '',
    error_code      TEXT NOT NULL DEFAULT '',
    error_details   JSONB,
    metadata        JSONB,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_generation_jobs_content
    ON generation_jobs (content_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_generation_jobs_status
    ON generation_jobs (status) WHERE status IN ('pending', 'generating');

CREATE TABLE IF NOT EXISTS video_usage (
    id               UUID PRIMARY KEY,
    brand_id         TEXT NOT NULL,
    job_id           UUID,
    model            TEXT NOT NULL,
    operation        TEXT NOT NULL DEFAULT '',
    duration_seconds INT  NOT NULL DEFAULT 0,
    include_audio    BOOLEAN NOT NULL DEFAULT FALSE,
    cost_usd         NUMERIC(10,4) NOT NULL DEFAULT 0,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_video_usage_brand
    ON video_usage (brand_id, created_at DESC);

CREATE TABLE IF NOT EXISTS brand_video_configs (
    brand_id           TEXT PRIMARY KEY,
    enabled            BOOLEAN NOT NULL DEFAULT FALSE,
    monthly_budget_usd NUMERIC(10,2),
    daily_limit        INT,
    default_model      TEXT NOT NULL DEFAULT 'veo-3',
    default_duration   INT  NOT NULL DEFAULT 8,
    max_duration       INT  NOT NULL DEFAULT 30,
    include_audio      BOOLEAN NOT NULL DEFAULT FALSE,
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// EnsureSchema creates the tables and indexes the service expects.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
