package domain

import "time"

// VideoUsage is the persisted, authoritative record of one billed video
// generation. Budget aggregates are computed over these rows.
type VideoUsage struct {
	ID              string
	BrandID         string
	JobID           string
	Model           string
	Operation       string
	DurationSeconds int
	IncludeAudio    bool
	CostUSD         float64
	CreatedAt       time.Time
}
