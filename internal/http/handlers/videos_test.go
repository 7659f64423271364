package handlers

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"server/internal/domain"
	"server/internal/providers/genai"
)

func approxEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func floatPtr(f float64) *float64 { return &f }

func estimateVideo(t *testing.T, app *App, query string) map[string]any {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/brands/brand-1/videos/estimate"+query, nil)
	app.VideosEstimate(rec, withURLParam(req, "brand_id", "brand-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("estimate status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	return body
}

func generateVideo(t *testing.T, app *App, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/brands/brand-1/videos", strings.NewReader(body))
	app.VideosGenerate(rec, withURLParam(req, "brand_id", "brand-1"))
	return rec
}

func TestVideosEstimateDefaults(t *testing.T) {
	app, _, _, brands, _, _ := newTestApp()
	brands.cfg = &domain.VideoConfig{Enabled: true, MonthlyBudgetUSD: floatPtr(10)}

	body := estimateVideo(t, app, "")
	if body["canGenerate"] != true {
		t.Fatalf("canGenerate = %v, want true", body["canGenerate"])
	}
	est := body["estimate"].(map[string]any)
	if est["model"] != "veo-3" {
		t.Fatalf("model = %v, want veo-3", est["model"])
	}
	if d := est["duration"].(float64); d != 8 {
		t.Fatalf("duration = %v, want 8", d)
	}
	if total := est["totalCost"].(float64); !approxEq(total, 3.20) {
		t.Fatalf("totalCost = %v, want 3.20", total)
	}
	if est["formatted"] != "$3.20" {
		t.Fatalf("formatted = %v, want $3.20", est["formatted"])
	}
}

func TestVideosEstimateAudioAndCap(t *testing.T) {
	app, _, _, brands, _, _ := newTestApp()
	brands.cfg = &domain.VideoConfig{Enabled: true, MaxDuration: 10}

	body := estimateVideo(t, app, "?duration=30&audio=true")
	est := body["estimate"].(map[string]any)
	if d := est["duration"].(float64); d != 10 {
		t.Fatalf("duration = %v, want capped to 10", d)
	}
	// 10s veo-3 with audio: 10*0.40 + 10*0.10.
	if total := est["totalCost"].(float64); !approxEq(total, 5.0) {
		t.Fatalf("totalCost = %v, want 5.0", total)
	}
}

func TestVideosGenerateHappyPath(t *testing.T) {
	app, jobs, usageRepo, brands, _, videos := newTestApp()
	brands.cfg = &domain.VideoConfig{Enabled: true, MonthlyBudgetUSD: floatPtr(50)}

	rec := generateVideo(t, app, `{"contentId":"content-1","prompt":"a calm lake at dawn"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Job     jobPayload `json:"job"`
		Warning string     `json:"warning"`
		Cost    float64    `json:"cost"`
	}
	decodeBody(t, rec, &body)
	if body.Job.Status != "completed" || body.Job.Progress != 100 {
		t.Fatalf("job = %+v, want completed at 100", body.Job)
	}
	if !approxEq(body.Cost, 3.20) {
		t.Fatalf("cost = %v, want 3.20", body.Cost)
	}
	if videos.calls != 1 {
		t.Fatalf("provider calls = %d, want 1", videos.calls)
	}
	if len(usageRepo.records) != 1 {
		t.Fatalf("usage records = %d, want 1", len(usageRepo.records))
	}
	rec2 := usageRepo.records[0]
	if rec2.BrandID != "brand-1" || rec2.JobID != body.Job.ID || !approxEq(rec2.CostUSD, 3.20) {
		t.Fatalf("unexpected usage record: %+v", rec2)
	}
	if app.Ledger.Len() != 1 {
		t.Fatalf("ledger entries = %d, want 1", app.Ledger.Len())
	}

	stored, err := jobs.GetByID(t.Context(), body.Job.ID)
	if err != nil {
		t.Fatalf("stored job: %v", err)
	}
	var meta map[string]any
	if err := json.Unmarshal(stored.Metadata, &meta); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta["url"] == "" {
		t.Fatal("metadata missing asset url")
	}
}

func TestVideosGenerateBudgetExceeded(t *testing.T) {
	app, jobs, usageRepo, brands, _, videos := newTestApp()
	brands.cfg = &domain.VideoConfig{Enabled: true, MonthlyBudgetUSD: floatPtr(10)}
	usageRepo.records = append(usageRepo.records, domain.VideoUsage{
		BrandID: "brand-1", CostUSD: 9.50, CreatedAt: time.Now(),
	})

	rec := generateVideo(t, app, `{"contentId":"content-1","prompt":"x"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 policy rejection", rec.Code)
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["canGenerate"] != false {
		t.Fatalf("canGenerate = %v, want false", body["canGenerate"])
	}
	warning, _ := body["warning"].(string)
	if !strings.Contains(warning, "monthly budget") {
		t.Fatalf("warning = %q, want budget warning", warning)
	}
	if videos.calls != 0 {
		t.Fatalf("provider calls = %d, want 0", videos.calls)
	}
	// Policy rejections leave no job behind.
	active, err := jobs.ListActive(t.Context())
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(jobs.jobs) != 0 || len(active) != 0 {
		t.Fatalf("jobs created on rejection: %d", len(jobs.jobs))
	}
}

func TestVideosGenerateDailyLimit(t *testing.T) {
	app, _, usageRepo, brands, _, videos := newTestApp()
	limit := 2
	brands.cfg = &domain.VideoConfig{Enabled: true, DailyLimit: &limit}
	for range limit {
		usageRepo.records = append(usageRepo.records, domain.VideoUsage{
			BrandID: "brand-1", CreatedAt: time.Now(),
		})
	}

	rec := generateVideo(t, app, `{"contentId":"content-1","prompt":"x"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 policy rejection", rec.Code)
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["canGenerate"] != false {
		t.Fatalf("canGenerate = %v, want false", body["canGenerate"])
	}
	if !strings.Contains(body["warning"].(string), "daily limit") {
		t.Fatalf("warning = %q, want daily limit", body["warning"])
	}
	if videos.calls != 0 {
		t.Fatalf("provider calls = %d, want 0", videos.calls)
	}
}

func TestVideosGenerateDisabledBrand(t *testing.T) {
	app, _, _, _, _, videos := newTestApp()

	rec := generateVideo(t, app, `{"contentId":"content-1","prompt":"x"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 policy rejection", rec.Code)
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["enabled"] != false || body["canGenerate"] != false {
		t.Fatalf("body = %v, want disabled rejection", body)
	}
	if videos.calls != 0 {
		t.Fatalf("provider calls = %d, want 0", videos.calls)
	}
}

func TestVideosGenerateProviderFailure(t *testing.T) {
	app, jobs, usageRepo, brands, _, videos := newTestApp()
	brands.cfg = &domain.VideoConfig{Enabled: true}
	videos.err = &genai.ProviderError{Code: genai.CodeContentRejected, Status: 400, Message: "safety"}

	rec := generateVideo(t, app, `{"contentId":"content-1","prompt":"x"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	jobID, _ := body["jobId"].(string)
	if jobID == "" {
		t.Fatal("expected jobId in failure response")
	}

	job, err := jobs.GetByID(t.Context(), jobID)
	if err != nil {
		t.Fatalf("job lookup: %v", err)
	}
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("job status = %s, want failed", job.Status)
	}
	if job.ErrorCode != genai.CodeContentRejected {
		t.Fatalf("errorCode = %q, want content_rejected", job.ErrorCode)
	}
	if job.ErrorMessage == "" {
		t.Fatal("failed job requires an error message")
	}
	// No spend happened, so nothing was recorded.
	if len(usageRepo.records) != 0 {
		t.Fatalf("usage records = %d, want 0", len(usageRepo.records))
	}
}

func TestVideosUsageRollup(t *testing.T) {
	app, _, usageRepo, brands, _, _ := newTestApp()
	brands.cfg = &domain.VideoConfig{Enabled: true, MonthlyBudgetUSD: floatPtr(20)}
	now := time.Now()
	usageRepo.records = append(usageRepo.records,
		domain.VideoUsage{ID: "u1", BrandID: "brand-1", Model: "veo-3", CostUSD: 3.20, CreatedAt: now.Add(-time.Minute)},
		domain.VideoUsage{ID: "u2", BrandID: "brand-1", Model: "veo-2", CostUSD: 2.80, CreatedAt: now},
		domain.VideoUsage{ID: "u3", BrandID: "other", Model: "veo-3", CostUSD: 9.99, CreatedAt: now},
	)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/brands/brand-1/videos/usage", nil)
	app.VideosUsage(rec, withURLParam(req, "brand_id", "brand-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Monthly map[string]any   `json:"monthly"`
		Daily   map[string]any   `json:"daily"`
		Recent  []map[string]any `json:"recent"`
	}
	decodeBody(t, rec, &body)
	if spent := body.Monthly["spent"].(float64); !approxEq(spent, 6.0) {
		t.Fatalf("monthly spent = %v, want 6.0", spent)
	}
	if remaining := body.Monthly["remaining"].(float64); !approxEq(remaining, 14.0) {
		t.Fatalf("remaining = %v, want 14.0", remaining)
	}
	if body.Monthly["formatted"] != "$6.00" {
		t.Fatalf("formatted = %v, want $6.00", body.Monthly["formatted"])
	}
	if count := body.Daily["count"].(float64); count != 2 {
		t.Fatalf("daily count = %v, want 2", count)
	}
	if len(body.Recent) != 2 {
		t.Fatalf("recent entries = %d, want 2", len(body.Recent))
	}
	if body.Recent[0]["id"] != "u2" {
		t.Fatalf("recent[0] = %v, want newest first", body.Recent[0]["id"])
	}
}
