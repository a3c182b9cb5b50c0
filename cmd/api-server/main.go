package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hackgods/clinician-scheduling/internal/api"
	"github.com/hackgods/clinician-scheduling/internal/app"
	"github.com/hackgods/clinician-scheduling/internal/auth"
	"github.com/hackgods/clinician-scheduling/internal/config"
	"github.com/hackgods/clinician-scheduling/internal/db"
	"github.com/hackgods/clinician-scheduling/internal/logging"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "api-server",
		Short: "Clinician scheduling API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.StoreDriver != config.StorePostgres {
				return fmt.Errorf("migrate needs STORE_DRIVER=%s", config.StorePostgres)
			}
			logger := logging.New(cfg.Env, cfg.LogLevel, "migrate")

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, 2)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.Migrate(ctx, pool, logger)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load error: %w", err)
	}
	logger := logging.New(cfg.Env, cfg.LogLevel, "api-server")
	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("store", cfg.StoreDriver).
		Str("events", cfg.EventsDriver).
		Str("timezone", cfg.Location.String()).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(rootCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	router := api.NewRouter(api.RouterConfig{
		Service: deps.Service,
		Auth:    auth.NewTokens(cfg.JWTSecret, "clinician-scheduling"),
		PgPool:  deps.PgPool,
		Redis:   deps.Redis,
		Logger:  logger,
		Env:     cfg.Env,
		Version: version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-rootCtx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	logger.Info().Msg("api-server stopped")
	return nil
}
