package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinician-scheduling/internal/app"
	"github.com/hackgods/clinician-scheduling/internal/config"
	"github.com/hackgods/clinician-scheduling/internal/logging"
	"github.com/hackgods/clinician-scheduling/internal/scheduling"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logging.New("dev", "info", "slot-worker")
		l.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(cfg.Env, cfg.LogLevel, "slot-worker")
	logger.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Int("horizon_days", cfg.GenerationHorizonDays).
		Msg("slot worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(rootCtx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("startup failed")
		os.Exit(1)
	}
	defer deps.Close()

	// Run once at startup
	runOnce(rootCtx, deps.Service, cfg.GenerationHorizonDays, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping slot worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, deps.Service, cfg.GenerationHorizonDays, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *scheduling.Service, days int, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	start := time.Now()
	summary, err := svc.RunScheduledGeneration(runCtx, days)
	if err != nil {
		logger.Error().Err(err).Msg("generation pass failed")
		return
	}
	logger.Info().
		Int("doctors", summary.Doctors).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Int("slots_generated", summary.Generated).
		Dur("took", time.Since(start)).
		Msg("generation pass complete")
}
