// Package main implements the entry point for the remindkit delivery
// daemon, which materializes occurrences of repeating tasks and delivers
// deadline-reminder push notifications.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/remindkit/remindkit/internal/config"
	"github.com/remindkit/remindkit/internal/notify"
	"github.com/remindkit/remindkit/internal/occurrence"
	"github.com/remindkit/remindkit/internal/platform/fcm"
	"github.com/remindkit/remindkit/internal/platform/logger"
	"github.com/remindkit/remindkit/internal/platform/postgres"
	"github.com/remindkit/remindkit/internal/platform/trigger"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Failed to run delivery daemon: %v", err)
	}
}

// run loads configuration, wires the application components together and
// blocks until the process receives a shutdown signal.
func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Set up structured logging using the configured log level
	appLogger, err := logger.Setup(cfg.Server.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	slog.Info("Delivery daemon configuration loaded",
		"log_level", cfg.Server.LogLevel,
		"pipeline_interval_minutes", cfg.Pipeline.IntervalMinutes,
		"generation_time", cfg.Reminders.GenerationTime)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	db, err := setupDatabase(cfg, appLogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Failed to close database connection", "error", err)
		}
	}()

	if err := postgres.MigrateUp(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Stores
	taskStore := postgres.NewPostgresTaskStore(db)
	notificationStore := postgres.NewPostgresNotificationStore(db)
	tokenStore := postgres.NewPostgresDeviceTokenStore(db)

	// Push delivery provider
	sender, err := fcm.NewClient(ctx, cfg.Push.CredentialsFile, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize push sender: %w", err)
	}

	// Engines
	generator := occurrence.NewGenerator(taskStore, appLogger)
	scheduler := notify.NewScheduler(notificationStore, cfg.Reminders.OffsetsMinutes, appLogger)
	pipeline := notify.NewPipeline(
		db,
		notificationStore,
		tokenStore,
		sender,
		notify.PipelineConfig{
			BatchSize:    cfg.Pipeline.BatchSize,
			RetryBackoff: time.Duration(cfg.Pipeline.RetryBackoffMinutes) * time.Minute,
			SendTimeout:  time.Duration(cfg.Pipeline.SendTimeoutSeconds) * time.Second,
			Concurrency:  cfg.Pipeline.Concurrency,
		},
		appLogger,
	)

	// Background triggers
	runner := trigger.NewRunner(time.UTC)

	interval := time.Duration(cfg.Pipeline.IntervalMinutes) * time.Minute
	if _, err := runner.ScheduleInterval(interval, func() {
		runPipeline(ctx, pipeline, appLogger)
	}); err != nil {
		return fmt.Errorf("failed to schedule delivery pipeline: %w", err)
	}

	if _, err := runner.ScheduleDaily(cfg.Reminders.GenerationTime, func() {
		runGeneration(ctx, generator, scheduler, taskStore, time.Now().UTC(), appLogger)
	}); err != nil {
		return fmt.Errorf("failed to schedule occurrence generation: %w", err)
	}

	runner.Start()
	appLogger.Info("Delivery daemon started")

	<-ctx.Done()
	appLogger.Info("Shutdown signal received, stopping triggers")
	runner.Stop()
	appLogger.Info("Delivery daemon stopped")
	return nil
}
