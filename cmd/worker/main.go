package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/hugh/pipedesk/internal/database"
	"github.com/hugh/pipedesk/internal/store"
	"github.com/hugh/pipedesk/internal/tasks"
	"github.com/hugh/pipedesk/pkg/config"
	"github.com/hugh/pipedesk/pkg/queue"
	"github.com/hugh/pipedesk/pkg/util"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := util.NewLogger(cfg.Server.Env, cfg.Server.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting pipedesk worker", "concurrency", cfg.Worker.Concurrency)

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN, Environment: cfg.Server.Env}); err != nil {
			logger.Warn("failed to initialize sentry", "error", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	srv := queue.NewServer(&cfg.Redis, cfg.Worker.Concurrency)

	handler := tasks.NewHandler(store.New(db), logger)
	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	// Periodic usage reset
	scheduler := queue.NewScheduler(&cfg.Redis)
	resetTask, err := tasks.NewUsageResetTask()
	if err != nil {
		logger.Error("failed to build usage reset task", "error", err)
		os.Exit(1)
	}
	entryID, err := scheduler.Register(cfg.Worker.UsageResetCron, resetTask)
	if err != nil {
		logger.Error("failed to schedule usage reset", "cron", cfg.Worker.UsageResetCron, "error", err)
		os.Exit(1)
	}
	if next, err := util.NextCronTime(cfg.Worker.UsageResetCron, time.Now()); err == nil {
		logger.Info("usage reset scheduled", "entry_id", entryID, "next_run", next)
	}

	if err := scheduler.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	if err := srv.Start(mux); err != nil {
		logger.Error("failed to start worker", "error", err)
		scheduler.Shutdown()
		os.Exit(1)
	}

	logger.Info("worker started, waiting for tasks...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker...")
	scheduler.Shutdown()
	srv.Shutdown()

	logger.Info("worker stopped")
}
