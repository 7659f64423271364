package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"server/internal/http/handlers"
	"server/internal/infra"
	"server/internal/middleware"
)

func NewRouter(app *handlers.App, cfg *infra.Config, logger infra.Logger) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
		middleware.CORS(cfg.AllowedOrigins),
		middleware.RateLimit(cfg.RateLimitPerMin, time.Minute),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/jobs", func(r chi.Router) {
		r.Post("/", app.JobsCreate)
		r.Get("/active", app.JobsActive)
		r.Get("/{job_id}", app.JobsGet)
		r.Patch("/{job_id}", app.JobsUpdate)
		r.Delete("/{job_id}", app.JobsDelete)
	})

	r.Route("/v1/contents/{content_id}", func(r chi.Router) {
		r.Get("/jobs", app.ContentJobsList)
		r.Delete("/jobs", app.ContentJobsCleanup)
		r.Post("/images", app.ImagesGenerate)
	})

	r.Route("/v1/brands/{brand_id}/videos", func(r chi.Router) {
		r.Post("/", app.VideosGenerate)
		r.Get("/estimate", app.VideosEstimate)
		r.Get("/usage", app.VideosUsage)
	})

	r.Get("/v1/usage/session", app.UsageSession)

	return r
}
