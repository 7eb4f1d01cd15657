package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/remindkit/remindkit/internal/domain"
	"github.com/remindkit/remindkit/internal/notify"
	"github.com/remindkit/remindkit/internal/occurrence"
	applogger "github.com/remindkit/remindkit/internal/platform/logger"
	"github.com/remindkit/remindkit/internal/store"
)

// runPipeline executes one delivery scan over due notifications.
func runPipeline(ctx context.Context, pipeline *notify.Pipeline, logger *slog.Logger) {
	ctx = applogger.WithLogger(ctx, logger.With("job", "delivery_pipeline"))
	result, err := pipeline.ProcessDue(ctx, time.Now().UTC())
	if err != nil {
		logger.Error("Delivery pipeline run failed", "error", err)
		return
	}
	if result.Processed > 0 || len(result.Errors) > 0 {
		logger.Info("Delivery pipeline run complete",
			"processed", result.Processed,
			"errors", len(result.Errors))
	}
}

// runGeneration materializes today's occurrences for every owner with
// repeating tasks and schedules deadline reminders for each new instance.
// Per-owner failures are logged and do not stop the sweep; the next run
// reconciles whatever was missed.
func runGeneration(
	ctx context.Context,
	generator *occurrence.Generator,
	scheduler *notify.Scheduler,
	tasks store.TaskStore,
	now time.Time,
	logger *slog.Logger,
) {
	ctx = applogger.WithLogger(ctx, logger.With("job", "occurrence_generation"))
	today := now.UTC().Format(domain.DateLayout)

	owners, err := tasks.ListOwnersWithRepeating(ctx)
	if err != nil {
		logger.Error("Failed to list owners with repeating tasks", "error", err)
		return
	}

	var created int
	for _, owner := range owners {
		instances, err := generator.GenerateMissing(ctx, owner, today)
		if err != nil {
			logger.Error("Occurrence generation failed for owner",
				"owner_id", owner,
				"error", err)
			continue
		}
		created += len(instances)

		// Each materialized instance gets its reminders now; the instance
		// itself is already persisted, so a scheduling failure only costs
		// notifications, not the occurrence.
		for _, instance := range instances {
			if err := scheduler.Schedule(ctx, instance); err != nil {
				logger.Error("Failed to schedule reminders for generated occurrence",
					"owner_id", owner,
					"task_id", instance.ID,
					"error", err)
			}
		}
	}

	logger.Info("Occurrence generation sweep complete",
		"date", today,
		"owners", len(owners),
		"created", created)
}
