package handlers

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/providers/image"
	"server/internal/providers/video"
	"server/internal/usage"
)

type fakeJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*domain.GenerationJob
	seq  int
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: make(map[string]*domain.GenerationJob)}
}

func (r *fakeJobRepo) Create(ctx context.Context, job *domain.GenerationJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	job.CreatedAt = time.Unix(int64(r.seq), 0)
	job.UpdatedAt = job.CreatedAt
	clone := *job
	r.jobs[job.ID] = &clone
	return nil
}

func (r *fakeJobRepo) GetByID(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *job
	return &clone, nil
}

func (r *fakeJobRepo) ListByContent(ctx context.Context, contentID string, activeOnly bool) ([]domain.GenerationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.GenerationJob
	for _, job := range r.jobs {
		if job.ContentID != contentID {
			continue
		}
		if activeOnly && !job.Status.Active() {
			continue
		}
		out = append(out, *job)
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *fakeJobRepo) ListActive(ctx context.Context) ([]domain.GenerationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.GenerationJob
	for _, job := range r.jobs {
		if job.Status.Active() {
			out = append(out, *job)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *fakeJobRepo) Update(ctx context.Context, jobID string, u domain.JobUpdate) (*domain.GenerationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	job.Apply(u, time.Now())
	clone := *job
	return &clone, nil
}

func (r *fakeJobRepo) Delete(ctx context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[jobID]; !ok {
		return domain.ErrNotFound
	}
	delete(r.jobs, jobID)
	return nil
}

func (r *fakeJobRepo) DeleteTerminalByContent(ctx context.Context, contentID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, job := range r.jobs {
		if job.ContentID == contentID && job.Status.Terminal() {
			delete(r.jobs, id)
			n++
		}
	}
	return n, nil
}

func (r *fakeJobRepo) FailStale(ctx context.Context, olderThan time.Time) ([]string, error) {
	return nil, nil
}

func sortNewestFirst(jobs []domain.GenerationJob) {
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
}

type fakeUsageRepo struct {
	mu      sync.Mutex
	records []domain.VideoUsage
}

func (r *fakeUsageRepo) Record(ctx context.Context, u *domain.VideoUsage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u.CreatedAt = time.Now()
	r.records = append(r.records, *u)
	return nil
}

func (r *fakeUsageRepo) MonthlyTotal(ctx context.Context, brandID string, since time.Time) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total float64
	for _, rec := range r.records {
		if rec.BrandID == brandID && !rec.CreatedAt.Before(since) {
			total += rec.CostUSD
		}
	}
	return total, nil
}

func (r *fakeUsageRepo) DailyCount(ctx context.Context, brandID string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.records {
		if rec.BrandID == brandID && !rec.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *fakeUsageRepo) ListRecent(ctx context.Context, brandID string, limit int) ([]domain.VideoUsage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.VideoUsage
	for i := len(r.records) - 1; i >= 0 && len(out) < limit; i-- {
		if r.records[i].BrandID == brandID {
			out = append(out, r.records[i])
		}
	}
	return out, nil
}

type fakeBrandConfigs struct {
	cfg *domain.VideoConfig
}

func (r *fakeBrandConfigs) GetVideoConfig(ctx context.Context, brandID string) (*domain.VideoConfig, error) {
	if r.cfg == nil {
		return &domain.VideoConfig{BrandID: brandID}, nil
	}
	clone := *r.cfg
	clone.BrandID = brandID
	return &clone, nil
}

type fakeImageGenerator struct {
	calls int
	err   error
}

func (g *fakeImageGenerator) Generate(ctx context.Context, req image.GenerateRequest) (*image.Asset, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &image.Asset{URL: "https://cdn.example.com/" + req.RequestID + ".png", MIME: "image/png"}, nil
}

type fakeVideoGenerator struct {
	calls int
	err   error
}

func (g *fakeVideoGenerator) Generate(ctx context.Context, req video.GenerateRequest) (*video.Asset, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &video.Asset{
		URL:             "https://cdn.example.com/" + req.RequestID + ".mp4",
		MIME:            "video/mp4",
		DurationSeconds: req.DurationSeconds,
	}, nil
}

var errProviderDown = errors.New("request failed with status 503")

func newTestApp() (*App, *fakeJobRepo, *fakeUsageRepo, *fakeBrandConfigs, *fakeImageGenerator, *fakeVideoGenerator) {
	jobs := newFakeJobRepo()
	usageRepo := &fakeUsageRepo{}
	brands := &fakeBrandConfigs{}
	images := &fakeImageGenerator{}
	videos := &fakeVideoGenerator{}
	app := &App{
		Cfg: &infra.Config{
			VideoModel:     "veo-3",
			ImageModel:     "gemini-2.5-flash",
			StorageBaseURL: "http://localhost:8080/static",
		},
		Logger:       zerolog.Nop(),
		Jobs:         jobs,
		Usage:        usageRepo,
		BrandConfigs: brands,
		Ledger:       usage.NewLedger(100),
		Images:       images,
		Videos:       videos,
	}
	return app, jobs, usageRepo, brands, images, videos
}
