// Package pollclient is the consumer-side companion to the job tracker: it
// watches the jobs of one content item on a fixed interval and keeps a local
// snapshot the caller can render. Once no job is active the network refetch is
// suspended until jobs reappear through other means (an initial fetch always
// happens on start).
package pollclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// DefaultInterval is the polling cadence.
const DefaultInterval = 2 * time.Second

// Job mirrors the tracker's wire representation.
type Job struct {
	ID             string          `json:"id"`
	ContentID      string          `json:"contentId"`
	Type           string          `json:"type"`
	Status         string          `json:"status"`
	Progress       int             `json:"progress"`
	TotalItems     int             `json:"totalItems"`
	CompletedItems int             `json:"completedItems"`
	CurrentStep    string          `json:"currentStep,omitempty"`
	ErrorMessage   string          `json:"errorMessage,omitempty"`
	ErrorCode      string          `json:"errorCode,omitempty"`
	ErrorDetails   json.RawMessage `json:"errorDetails,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Active reports whether the job still has work in flight.
func (j Job) Active() bool {
	return j.Status == "pending" || j.Status == "generating"
}

// Options configures a polling client.
type Options struct {
	BaseURL   string
	ContentID string
	// Interval defaults to DefaultInterval.
	Interval time.Duration
	// AutoPoll enables the interval loop; when false only the initial fetch
	// and explicit Refresh calls hit the network.
	AutoPoll bool
	// OnUpdate, when set, observes every snapshot change.
	OnUpdate func([]Job)
	Logger   zerolog.Logger
}

// Client polls the job tracker for one content item.
type Client struct {
	http     *resty.Client
	content  string
	interval time.Duration
	autoPoll bool
	onUpdate func([]Job)
	logger   zerolog.Logger

	mu   sync.Mutex
	jobs []Job
}

// New creates a polling client. Call Run to start the loop.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("pollclient: base url is required")
	}
	if opts.ContentID == "" {
		return nil, fmt.Errorf("pollclient: content id is required")
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Client{
		http:     resty.New().SetBaseURL(strings.TrimRight(opts.BaseURL, "/")),
		content:  opts.ContentID,
		interval: interval,
		autoPoll: opts.AutoPoll,
		onUpdate: opts.OnUpdate,
		logger:   opts.Logger,
	}, nil
}

// Run fetches once immediately and then, with AutoPoll, keeps the snapshot
// fresh until the context is cancelled. Ticks where every known job has
// settled skip the network entirely.
func (c *Client) Run(ctx context.Context) error {
	if err := c.Refresh(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("pollclient: initial fetch failed")
	}
	if !c.autoPoll {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !c.anyActive() {
				continue
			}
			if err := c.Refresh(ctx); err != nil {
				c.logger.Warn().Err(err).Msg("pollclient: refresh failed")
			}
		}
	}
}

// Refresh replaces the local snapshot with the server's state.
func (c *Client) Refresh(ctx context.Context) error {
	var out struct {
		Jobs []Job `json:"jobs"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("/v1/contents/%s/jobs", c.content))
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("pollclient: refresh returned %s", resp.Status())
	}
	c.setJobs(out.Jobs)
	return nil
}

// Snapshot returns a copy of the last known jobs, newest first.
func (c *Client) Snapshot() []Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Job, len(c.jobs))
	copy(out, c.jobs)
	return out
}

// ActiveCount returns how many known jobs are still pending/generating.
func (c *Client) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, j := range c.jobs {
		if j.Active() {
			n++
		}
	}
	return n
}

// Latest returns the most recently created job, if any. Listings arrive
// newest first, so this is the head of the snapshot.
func (c *Client) Latest() (Job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.jobs) == 0 {
		return Job{}, false
	}
	return c.jobs[0], true
}

// Dismiss removes a job optimistically, then issues the delete. When the
// server rejects it the optimistic change is abandoned and the snapshot is
// resynchronized from the server.
func (c *Client) Dismiss(ctx context.Context, jobID string) error {
	c.removeLocal(jobID)

	resp, err := c.http.R().
		SetContext(ctx).
		Delete(fmt.Sprintf("/v1/jobs/%s", jobID))
	if err == nil && !resp.IsError() {
		return nil
	}
	if err == nil {
		err = fmt.Errorf("pollclient: dismiss returned %s", resp.Status())
	}
	if refreshErr := c.Refresh(ctx); refreshErr != nil {
		c.logger.Warn().Err(refreshErr).Msg("pollclient: resync after failed dismiss")
	}
	return err
}

// ClearFinished asks the tracker to drop this content's terminal jobs, then
// resyncs.
func (c *Client) ClearFinished(ctx context.Context) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Delete(fmt.Sprintf("/v1/contents/%s/jobs", c.content))
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("pollclient: cleanup returned %s", resp.Status())
	}
	return c.Refresh(ctx)
}

func (c *Client) anyActive() bool {
	return c.ActiveCount() > 0
}

func (c *Client) setJobs(jobs []Job) {
	c.mu.Lock()
	c.jobs = jobs
	c.mu.Unlock()
	if c.onUpdate != nil {
		c.onUpdate(c.Snapshot())
	}
}

func (c *Client) removeLocal(jobID string) {
	c.mu.Lock()
	kept := c.jobs[:0]
	for _, j := range c.jobs {
		if j.ID != jobID {
			kept = append(kept, j)
		}
	}
	c.jobs = kept
	c.mu.Unlock()
	if c.onUpdate != nil {
		c.onUpdate(c.Snapshot())
	}
}
