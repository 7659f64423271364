// Reaper sweeps orphaned generation jobs. See internal/reaper for the
// semantics.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/infra"
	"server/internal/reaper"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("reaper: db connection failed")
	}
	defer pool.Close()

	sweeper := reaper.New(repo.NewJobRepository(pool), cfg.ReaperLease, logger)
	logger.Info().
		Dur("interval", cfg.ReaperInterval).
		Dur("lease", cfg.ReaperLease).
		Msg("reaper: started")

	if err := sweeper.Run(ctx, cfg.ReaperInterval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("reaper: stopped with error")
	}
	logger.Info().Msg("reaper: stopped")
}
