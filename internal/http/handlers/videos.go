package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"server/internal/domain"
	"server/internal/providers/genai"
	"server/internal/providers/video"
	"server/internal/usage"
)

type budgetLimits struct {
	MonthlyBudget    *float64 `json:"monthlyBudget"`
	MonthlyUsed      float64  `json:"monthlyUsed"`
	BudgetRemaining  *float64 `json:"budgetRemaining"`
	DailyLimit       *int     `json:"dailyLimit"`
	DailyUsed        int      `json:"dailyUsed"`
	WithinBudget     bool     `json:"withinBudget"`
	WithinDailyLimit bool     `json:"withinDailyLimit"`
}

type videoConfigPayload struct {
	Enabled         bool     `json:"enabled"`
	MonthlyBudget   *float64 `json:"monthlyBudgetUsd"`
	DailyLimit      *int     `json:"dailyLimit"`
	DefaultModel    string   `json:"defaultModel"`
	DefaultDuration int      `json:"defaultDuration"`
	MaxDuration     int      `json:"maxDuration"`
	IncludeAudio    bool     `json:"includeAudio"`
}

type budgetState struct {
	cfg      *domain.VideoConfig
	estimate usage.VideoEstimate
	decision domain.BudgetDecision
	limits   budgetLimits
}

// monthStart and dayStart anchor the aggregates the budget check runs on:
// spend since the first of the current calendar month, count since local midnight.
func monthStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}

func dayStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func (a *App) brandBudgetState(ctx context.Context, brandID, model string, duration int, includeAudio bool) (*budgetState, error) {
	cfg, err := a.BrandConfigs.GetVideoConfig(ctx, brandID)
	if err != nil {
		return nil, fmt.Errorf("load brand config: %w", err)
	}
	if model == "" {
		model = cfg.DefaultModel
	}
	if model == "" {
		model = a.Cfg.VideoModel
	}
	if duration <= 0 {
		duration = cfg.DefaultDuration
	}
	if duration <= 0 {
		duration = 8
	}
	if cfg.MaxDuration > 0 && duration > cfg.MaxDuration {
		duration = cfg.MaxDuration
	}

	now := time.Now()
	monthlyUsed, err := a.Usage.MonthlyTotal(ctx, brandID, monthStart(now))
	if err != nil {
		return nil, fmt.Errorf("monthly usage: %w", err)
	}
	dailyUsed, err := a.Usage.DailyCount(ctx, brandID, dayStart(now))
	if err != nil {
		return nil, fmt.Errorf("daily usage: %w", err)
	}

	est := usage.EstimateVideoCost(model, duration, includeAudio)
	decision := domain.CheckBudgetLimits(*cfg, monthlyUsed, dailyUsed, est.TotalCost)

	return &budgetState{
		cfg:      cfg,
		estimate: est,
		decision: decision,
		limits: budgetLimits{
			MonthlyBudget:    cfg.MonthlyBudgetUSD,
			MonthlyUsed:      monthlyUsed,
			BudgetRemaining:  decision.BudgetRemaining,
			DailyLimit:       cfg.DailyLimit,
			DailyUsed:        dailyUsed,
			WithinBudget:     decision.WithinBudget,
			WithinDailyLimit: decision.WithinDailyLimit,
		},
	}, nil
}

func (s *budgetState) payload() map[string]any {
	return map[string]any{
		"enabled":     s.cfg.Enabled,
		"canGenerate": s.decision.CanGenerate,
		"warning":     s.decision.Warning,
		"estimate":    s.estimate,
		"limits":      s.limits,
		"config": videoConfigPayload{
			Enabled:         s.cfg.Enabled,
			MonthlyBudget:   s.cfg.MonthlyBudgetUSD,
			DailyLimit:      s.cfg.DailyLimit,
			DefaultModel:    s.cfg.DefaultModel,
			DefaultDuration: s.cfg.DefaultDuration,
			MaxDuration:     s.cfg.MaxDuration,
			IncludeAudio:    s.cfg.IncludeAudio,
		},
	}
}

// VideosEstimate runs the budget check without generating anything, so the UI
// can warn before the user commits.
func (a *App) VideosEstimate(w http.ResponseWriter, r *http.Request) {
	brandID := chi.URLParam(r, "brand_id")
	q := r.URL.Query()
	duration, _ := strconv.Atoi(q.Get("duration"))
	includeAudio := q.Get("audio") == "true"

	state, err := a.brandBudgetState(r.Context(), brandID, q.Get("model"), duration, includeAudio)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, state.payload())
}

type videoGenerateRequest struct {
	ContentID    string `json:"contentId"`
	Prompt       string `json:"prompt"`
	Model        string `json:"model"`
	Duration     int    `json:"duration"`
	IncludeAudio *bool  `json:"includeAudio"`
}

// VideosGenerate runs one budget-gated video generation synchronously,
// reporting progress through a generation job the client polls.
func (a *App) VideosGenerate(w http.ResponseWriter, r *http.Request) {
	brandID := chi.URLParam(r, "brand_id")
	var req videoGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.ContentID == "" || req.Prompt == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "contentId and prompt required")
		return
	}

	includeAudio := false
	state, err := a.brandBudgetState(r.Context(), brandID, req.Model, req.Duration, includeAudio)
	if err != nil {
		a.domainError(w, err)
		return
	}
	if req.IncludeAudio != nil {
		includeAudio = *req.IncludeAudio
	} else {
		includeAudio = state.cfg.IncludeAudio
	}
	if includeAudio != state.estimate.IncludeAudio {
		state, err = a.brandBudgetState(r.Context(), brandID, req.Model, req.Duration, includeAudio)
		if err != nil {
			a.domainError(w, err)
			return
		}
	}

	// Policy rejections happen before any external call and never produce a
	// failed job: no generation was attempted.
	if !state.decision.CanGenerate {
		a.json(w, http.StatusOK, state.payload())
		return
	}

	est := state.estimate
	job := &domain.GenerationJob{
		ID:         uuid.NewString(),
		ContentID:  req.ContentID,
		Type:       domain.JobTypeVideo,
		Status:     domain.JobStatusPending,
		TotalItems: 1,
	}
	if err := a.Jobs.Create(r.Context(), job); err != nil {
		a.domainError(w, err)
		return
	}

	a.advanceJob(r.Context(), job.ID, domain.JobUpdate{
		Status:      statusPtr(domain.JobStatusGenerating),
		Progress:    intPtr(10),
		CurrentStep: strPtr(fmt.Sprintf("Generating %ds video with %s", est.DurationSeconds, est.Model)),
	})

	asset, err := a.Videos.Generate(r.Context(), video.GenerateRequest{
		Prompt:          req.Prompt,
		Model:           est.Model,
		DurationSeconds: est.DurationSeconds,
		IncludeAudio:    includeAudio,
		RequestID:       job.ID,
	})
	if err != nil {
		a.failJob(r.Context(), job.ID, err)
		a.json(w, http.StatusBadGateway, map[string]any{
			"error":   "generation_failed",
			"message": err.Error(),
			"jobId":   job.ID,
		})
		return
	}

	duration := asset.DurationSeconds
	if duration <= 0 {
		duration = est.DurationSeconds
	}
	cost := est.TotalCost
	if actual, ok := usage.CostForDuration(est.Model, duration, includeAudio); ok {
		cost = actual
	}

	record := &domain.VideoUsage{
		ID:              uuid.NewString(),
		BrandID:         brandID,
		JobID:           job.ID,
		Model:           est.Model,
		Operation:       "video-generation",
		DurationSeconds: duration,
		IncludeAudio:    includeAudio,
		CostUSD:         cost,
	}
	if err := a.Usage.Record(r.Context(), record); err != nil {
		// The clip exists; losing the usage row would undercount spend, so
		// the job fails loudly instead of completing silently.
		a.failJob(r.Context(), job.ID, fmt.Errorf("record usage: %w", err))
		a.domainError(w, err)
		return
	}
	a.Ledger.Log(usage.Entry{
		Service:         usage.ServiceMedia,
		Model:           est.Model,
		Operation:       "video-generation",
		DurationSeconds: duration,
		IncludeAudio:    includeAudio,
		Metadata:        map[string]string{"brandId": brandID, "jobId": job.ID},
	})

	meta, _ := json.Marshal(map[string]any{
		"url":             asset.URL,
		"model":           est.Model,
		"durationSeconds": duration,
		"costUsd":         cost,
	})
	updated, err := a.Jobs.Update(r.Context(), job.ID, domain.JobUpdate{
		Status:         statusPtr(domain.JobStatusCompleted),
		Progress:       intPtr(100),
		CompletedItems: intPtr(1),
		CurrentStep:    strPtr("Done"),
		Metadata:       meta,
	})
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusCreated, map[string]any{
		"job":     jobToPayload(updated),
		"warning": state.decision.Warning,
		"cost":    cost,
	})
}

// VideosUsage returns spend rollups for display plus the most recent priced
// operations.
func (a *App) VideosUsage(w http.ResponseWriter, r *http.Request) {
	brandID := chi.URLParam(r, "brand_id")
	ctx := r.Context()
	now := time.Now()

	cfg, err := a.BrandConfigs.GetVideoConfig(ctx, brandID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	monthlySpent, err := a.Usage.MonthlyTotal(ctx, brandID, monthStart(now))
	if err != nil {
		a.domainError(w, err)
		return
	}
	dailySpent, err := a.Usage.MonthlyTotal(ctx, brandID, dayStart(now))
	if err != nil {
		a.domainError(w, err)
		return
	}
	dailyCount, err := a.Usage.DailyCount(ctx, brandID, dayStart(now))
	if err != nil {
		a.domainError(w, err)
		return
	}
	recent, err := a.Usage.ListRecent(ctx, brandID, 10)
	if err != nil {
		a.domainError(w, err)
		return
	}

	recentPayload := make([]map[string]any, len(recent))
	for i, u := range recent {
		recentPayload[i] = map[string]any{
			"id":              u.ID,
			"jobId":           u.JobID,
			"model":           u.Model,
			"operation":       u.Operation,
			"durationSeconds": u.DurationSeconds,
			"includeAudio":    u.IncludeAudio,
			"costUsd":         u.CostUSD,
			"formatted":       usage.FormatUSD(u.CostUSD),
			"createdAt":       u.CreatedAt,
		}
	}

	monthly := map[string]any{
		"spent":     monthlySpent,
		"formatted": usage.FormatUSD(monthlySpent),
	}
	if cfg.MonthlyBudgetUSD != nil {
		remaining := *cfg.MonthlyBudgetUSD - monthlySpent
		monthly["budget"] = *cfg.MonthlyBudgetUSD
		monthly["remaining"] = remaining
		monthly["remainingFormatted"] = usage.FormatUSD(remaining)
	}
	daily := map[string]any{
		"count":     dailyCount,
		"spent":     dailySpent,
		"formatted": usage.FormatUSD(dailySpent),
	}
	if cfg.DailyLimit != nil {
		daily["limit"] = *cfg.DailyLimit
	}

	a.json(w, http.StatusOK, map[string]any{
		"monthly": monthly,
		"daily":   daily,
		"recent":  recentPayload,
	})
}

// advanceJob applies a progress update, logging rather than failing the
// request when the write does not land; the generation work owns the outcome.
func (a *App) advanceJob(ctx context.Context, jobID string, u domain.JobUpdate) {
	if _, err := a.Jobs.Update(ctx, jobID, u); err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("job progress update failed")
	}
}

// failJob marks a job failed with an error code distinguishing provider
// rejections from generic failures.
func (a *App) failJob(ctx context.Context, jobID string, cause error) {
	code := "provider_error"
	var perr *genai.ProviderError
	if errors.As(cause, &perr) {
		code = perr.Code
	}
	msg := cause.Error()
	if _, err := a.Jobs.Update(ctx, jobID, domain.JobUpdate{
		Status:       statusPtr(domain.JobStatusFailed),
		ErrorMessage: &msg,
		ErrorCode:    &code,
	}); err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("failed to mark job failed")
	}
}

func statusPtr(s domain.JobStatus) *domain.JobStatus { return &s }
func intPtr(i int) *int                              { return &i }
func strPtr(s string) *string                        { return &s }
