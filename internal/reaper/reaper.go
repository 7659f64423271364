// Package reaper resolves jobs whose owning request died mid-generation. A
// job still pending/generating past its lease gets failed with a timeout
// error code, so polling clients stop waiting on work that will never finish.
// The job tracker itself stays passive; this is the only component that fails
// jobs it does not own.
package reaper

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
)

// Sweeper fails jobs that stayed active beyond their lease.
type Sweeper struct {
	jobs   domain.JobRepository
	lease  time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

// New creates a sweeper over the given repository. lease is how long a job
// may go without an update before it is considered orphaned.
func New(jobs domain.JobRepository, lease time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{jobs: jobs, lease: lease, logger: logger, now: time.Now}
}

// Sweep fails every job last updated before now minus the lease and returns
// the affected job ids.
func (s *Sweeper) Sweep(ctx context.Context) ([]string, error) {
	cutoff := s.now().Add(-s.lease)
	ids, err := s.jobs.FailStale(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		s.logger.Warn().Strs("job_ids", ids).Time("cutoff", cutoff).Msg("reaper: failed stale jobs")
	}
	return ids, nil
}

// Run sweeps on the interval until the context is cancelled. Sweep errors are
// logged and the loop keeps going; a transient database failure must not stop
// the reaper.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error().Err(err).Msg("reaper: sweep failed")
			}
		}
	}
}
