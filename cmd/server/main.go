package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/dayroster/internal/application"
	"github.com/JonMunkholm/dayroster/internal/config"
	"github.com/JonMunkholm/dayroster/internal/core"
	"github.com/JonMunkholm/dayroster/internal/logging"
	"github.com/JonMunkholm/dayroster/internal/web"
)

func main() {
	// Overload lets a local .env win over the shell environment.
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()
	app, err := application.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.Store.Migrate(ctx); err != nil {
		slog.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	service := app.Service
	server := web.NewServer(service, cfg, app.Store.Ping)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	if cfg.Schedule.Enabled {
		schedule, err := core.ParseSchedule(cfg.Schedule.Time, cfg.Schedule.Timezone)
		if err != nil {
			slog.Error("invalid schedule", "error", err)
			os.Exit(1)
		}
		fetcher, err := app.RosterFetcher(ctx)
		if err != nil {
			slog.Error("failed to open roster source", "error", err)
			os.Exit(1)
		}
		go service.StartSyncScheduler(jobCtx, schedule, fetcher)
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := gracefulStop(shutdownCtx, service.Limiter(), cancelJobs, server.Shutdown); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
