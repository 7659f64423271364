package domain

import (
	"fmt"
	"time"
)

// JobType enumerates supported generation job categories.
type JobType string

const (
	JobTypeSingle    JobType = "single"
	JobTypeCarousel  JobType = "carousel"
	JobTypeComposite JobType = "composite"
	JobTypeVideo     JobType = "video"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusGenerating JobStatus = "generating"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Active reports whether a job in this status still has work in flight.
func (s JobStatus) Active() bool {
	return s == JobStatusPending || s == JobStatusGenerating
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// step. Re-asserting the current terminal status is allowed so that a route
// retrying its final write stays idempotent; everything else out of a terminal
// state is rejected.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s.Terminal() {
		return next == s
	}
	switch s {
	case JobStatusPending:
		return next == JobStatusGenerating || next == JobStatusCompleted || next == JobStatusFailed
	case JobStatusGenerating:
		return next == JobStatusCompleted || next == JobStatusFailed
	}
	return false
}

// GenerationJob tracks one unit of asynchronous generation work. A job is a
// progress envelope over work executing inside the request that created it;
// the row exists so polling clients can observe that work across requests.
type GenerationJob struct {
	ID             string
	ContentID      string
	Type           JobType
	Status         JobStatus
	Progress       int
	TotalItems     int
	CompletedItems int
	CurrentStep    string
	ErrorMessage   string
	ErrorCode      string
	ErrorDetails   []byte
	Metadata       []byte
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// JobUpdate carries a partial update. Nil fields are left unchanged.
type JobUpdate struct {
	Status         *JobStatus
	Progress       *int
	CompletedItems *int
	CurrentStep    *string
	ErrorMessage   *string
	ErrorCode      *string
	ErrorDetails   []byte
	Metadata       []byte
}

// Validate checks an update against the job's current state before it is
// persisted. The route that created a job owns its writes exclusively, so
// read-validate-write needs no locking.
func (j *GenerationJob) Validate(u JobUpdate) error {
	next := j.Status
	if u.Status != nil {
		next = *u.Status
	}
	if u.Status != nil && !j.Status.CanTransition(next) {
		if j.Status.Terminal() {
			return fmt.Errorf("%w: job %s is %s", ErrTerminalJob, j.ID, j.Status)
		}
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, next)
	}

	progress := j.Progress
	if u.Progress != nil {
		progress = *u.Progress
	}
	if progress < 0 || progress > 100 {
		return fmt.Errorf("%w: progress %d out of range", ErrInvalidUpdate, progress)
	}
	if u.Progress != nil && *u.Progress < j.Progress {
		return fmt.Errorf("%w: progress may not decrease (%d -> %d)", ErrInvalidUpdate, j.Progress, *u.Progress)
	}
	if progress == 100 && next != JobStatusCompleted {
		return fmt.Errorf("%w: progress 100 requires completed status", ErrInvalidUpdate)
	}

	completed := j.CompletedItems
	if u.CompletedItems != nil {
		completed = *u.CompletedItems
	}
	if completed < 0 || completed > j.TotalItems {
		return fmt.Errorf("%w: completed_items %d exceeds total_items %d", ErrInvalidUpdate, completed, j.TotalItems)
	}

	if next == JobStatusFailed {
		msg := j.ErrorMessage
		if u.ErrorMessage != nil {
			msg = *u.ErrorMessage
		}
		if msg == "" {
			return fmt.Errorf("%w: failed job requires an error message", ErrInvalidUpdate)
		}
	}
	return nil
}

// Apply mutates the job in memory with an already-validated update.
func (j *GenerationJob) Apply(u JobUpdate, now time.Time) {
	if u.Status != nil {
		j.Status = *u.Status
	}
	if u.Progress != nil {
		j.Progress = *u.Progress
	}
	if u.CompletedItems != nil {
		j.CompletedItems = *u.CompletedItems
	}
	if u.CurrentStep != nil {
		j.CurrentStep = *u.CurrentStep
	}
	if u.ErrorMessage != nil {
		j.ErrorMessage = *u.ErrorMessage
	}
	if u.ErrorCode != nil {
		j.ErrorCode = *u.ErrorCode
	}
	if len(u.ErrorDetails) > 0 {
		j.ErrorDetails = u.ErrorDetails
	}
	if len(u.Metadata) > 0 {
		j.Metadata = u.Metadata
	}
	j.UpdatedAt = now
}
