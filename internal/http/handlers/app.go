package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/providers/image"
	"server/internal/providers/video"
	"server/internal/storage"
	"server/internal/usage"
)

// App bundles the dependencies the route handlers need.
type App struct {
	Cfg          *infra.Config
	Logger       infra.Logger
	Jobs         domain.JobRepository
	Usage        domain.VideoUsageRepository
	BrandConfigs domain.BrandConfigRepository
	Ledger       *usage.Ledger
	Images       image.Generator
	Videos       video.Generator
	Store        *storage.FileStore
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]string{"error": errCode, "message": message})
}

// domainError maps repository/domain sentinels onto HTTP responses.
func (a *App) domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "job not found")
	case errors.Is(err, domain.ErrTerminalJob):
		a.error(w, http.StatusConflict, "terminal_job", err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		a.error(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, domain.ErrInvalidUpdate):
		a.error(w, http.StatusUnprocessableEntity, "invalid_update", err.Error())
	default:
		a.Logger.Error().Err(err).Msg("request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
