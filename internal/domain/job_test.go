package domain

import (
	"errors"
	"testing"
	"time"
)

func strPtr(s string) *string       { return &s }
func intPtr(i int) *int             { return &i }
func statusPtr(s JobStatus) *JobStatus { return &s }

func newTestJob(status JobStatus) *GenerationJob {
	return &GenerationJob{
		ID:         "job-1",
		ContentID:  "c1",
		Type:       JobTypeCarousel,
		Status:     status,
		TotalItems: 5,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
}

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to JobStatus
		want     bool
	}{
		{JobStatusPending, JobStatusGenerating, true},
		{JobStatusPending, JobStatusCompleted, true},
		{JobStatusPending, JobStatusFailed, true},
		{JobStatusGenerating, JobStatusCompleted, true},
		{JobStatusGenerating, JobStatusFailed, true},
		{JobStatusGenerating, JobStatusPending, false},
		{JobStatusCompleted, JobStatusFailed, false},
		{JobStatusCompleted, JobStatusPending, false},
		{JobStatusCompleted, JobStatusGenerating, false},
		{JobStatusFailed, JobStatusGenerating, false},
		{JobStatusCompleted, JobStatusCompleted, true},
		{JobStatusFailed, JobStatusFailed, true},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Fatalf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestValidateRejectsTerminalResurrection(t *testing.T) {
	job := newTestJob(JobStatusCompleted)
	err := job.Validate(JobUpdate{Status: statusPtr(JobStatusGenerating)})
	if !errors.Is(err, ErrTerminalJob) {
		t.Fatalf("err = %v, want ErrTerminalJob", err)
	}

	job = newTestJob(JobStatusFailed)
	job.ErrorMessage = "boom"
	err = job.Validate(JobUpdate{Status: statusPtr(JobStatusPending)})
	if !errors.Is(err, ErrTerminalJob) {
		t.Fatalf("err = %v, want ErrTerminalJob", err)
	}
}

func TestValidateAllowsIdempotentTerminalWrite(t *testing.T) {
	job := newTestJob(JobStatusCompleted)
	job.Progress = 100
	if err := job.Validate(JobUpdate{Status: statusPtr(JobStatusCompleted)}); err != nil {
		t.Fatalf("re-asserting completed should be a no-op, got %v", err)
	}
}

func TestValidateCompletedItemsBound(t *testing.T) {
	job := newTestJob(JobStatusGenerating)
	if err := job.Validate(JobUpdate{CompletedItems: intPtr(6)}); !errors.Is(err, ErrInvalidUpdate) {
		t.Fatalf("err = %v, want ErrInvalidUpdate for completed > total", err)
	}
	if err := job.Validate(JobUpdate{CompletedItems: intPtr(5)}); err != nil {
		t.Fatalf("completed == total should pass, got %v", err)
	}
}

func TestValidateProgressRules(t *testing.T) {
	job := newTestJob(JobStatusGenerating)
	job.Progress = 40

	if err := job.Validate(JobUpdate{Progress: intPtr(20)}); !errors.Is(err, ErrInvalidUpdate) {
		t.Fatalf("err = %v, want ErrInvalidUpdate for decreasing progress", err)
	}
	if err := job.Validate(JobUpdate{Progress: intPtr(101)}); !errors.Is(err, ErrInvalidUpdate) {
		t.Fatalf("err = %v, want ErrInvalidUpdate for progress > 100", err)
	}
	if err := job.Validate(JobUpdate{Progress: intPtr(100)}); !errors.Is(err, ErrInvalidUpdate) {
		t.Fatalf("err = %v, want ErrInvalidUpdate for progress 100 while generating", err)
	}
	if err := job.Validate(JobUpdate{Progress: intPtr(100), Status: statusPtr(JobStatusCompleted), CompletedItems: intPtr(5)}); err != nil {
		t.Fatalf("completing at 100 should pass, got %v", err)
	}
}

func TestValidateFailureRequiresMessage(t *testing.T) {
	job := newTestJob(JobStatusGenerating)
	if err := job.Validate(JobUpdate{Status: statusPtr(JobStatusFailed)}); !errors.Is(err, ErrInvalidUpdate) {
		t.Fatalf("err = %v, want ErrInvalidUpdate for failure without message", err)
	}
	if err := job.Validate(JobUpdate{Status: statusPtr(JobStatusFailed), ErrorMessage: strPtr("provider rejected prompt")}); err != nil {
		t.Fatalf("failure with message should pass, got %v", err)
	}
}

func TestApplyPartialUpdate(t *testing.T) {
	job := newTestJob(JobStatusPending)
	now := time.Now().Add(time.Minute)

	job.Apply(JobUpdate{
		Status:      statusPtr(JobStatusGenerating),
		Progress:    intPtr(20),
		CurrentStep: strPtr("Generating image 1 of 5"),
	}, now)

	if job.Status != JobStatusGenerating || job.Progress != 20 {
		t.Fatalf("job = %+v, update not applied", job)
	}
	if job.CurrentStep != "Generating image 1 of 5" {
		t.Fatalf("current step = %q", job.CurrentStep)
	}
	if job.CompletedItems != 0 {
		t.Fatalf("untouched field changed: completed = %d", job.CompletedItems)
	}
	if !job.UpdatedAt.Equal(now) {
		t.Fatalf("updated_at = %v, want %v", job.UpdatedAt, now)
	}
}
