package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/remindkit/remindkit/internal/domain"
	"github.com/remindkit/remindkit/internal/store"
)

// DefaultReminderOffsets are the minutes before a task's due time at
// which reminders are scheduled: one day, one hour, fifteen minutes.
var DefaultReminderOffsets = []int{1440, 60, 15}

// SchedulerError is a custom error type for scheduler errors.
type SchedulerError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for SchedulerError.
func (e *SchedulerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("notification scheduler %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("notification scheduler %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *SchedulerError) Unwrap() error {
	return e.Err
}

// Scheduler creates deadline-reminder notification records for tasks
// with a due time. Notification IDs are deterministic per (task, offset),
// so scheduling is idempotent: re-scheduling after a due-date change
// overwrites the unsent records instead of duplicating them.
type Scheduler struct {
	notifications store.NotificationStore
	offsets       []int
	logger        *slog.Logger
	now           func() time.Time
}

// NewScheduler creates a new Scheduler. When offsets is empty the default
// reminder offsets are used. If logger is nil, a default logger is used.
func NewScheduler(
	notifications store.NotificationStore,
	offsets []int,
	logger *slog.Logger,
) *Scheduler {
	if notifications == nil {
		panic("notifications store cannot be nil")
	}
	if len(offsets) == 0 {
		offsets = DefaultReminderOffsets
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		notifications: notifications,
		offsets:       offsets,
		logger:        logger.With(slog.String("component", "notification_scheduler")),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Schedule creates one reminder per configured offset for the task's due
// time, skipping offsets that already lie in the past. A task without a
// due time is a no-op. All records are written in one atomic batch.
func (s *Scheduler) Schedule(ctx context.Context, task *domain.Task) error {
	due, ok := task.DueAt()
	if !ok {
		s.logger.Debug("task has no due time, skipping reminders", "task_id", task.ID)
		return nil
	}

	now := s.now()
	var batch []*domain.Notification
	for _, offset := range s.offsets {
		scheduledFor := due.Add(-time.Duration(offset) * time.Minute)
		if !scheduledFor.After(now) {
			// Never schedule a reminder in the past.
			continue
		}

		payload := domain.NotificationPayload{
			Title: "Task Reminder",
			Body:  reminderBody(task.Title, offset),
			Data: map[string]string{
				"task_id": task.ID.String(),
				"type":    string(domain.NotificationTypeDeadlineReminder),
			},
			Icon: "/icons/icon-192.png",
		}

		n, err := domain.NewDeadlineReminder(task, offset, scheduledFor, payload)
		if err != nil {
			return &SchedulerError{
				Operation: "schedule",
				Message:   "failed to build reminder",
				Err:       err,
			}
		}
		batch = append(batch, n)
	}

	if len(batch) == 0 {
		return nil
	}

	if err := s.notifications.CreateMultiple(ctx, batch); err != nil {
		return &SchedulerError{
			Operation: "schedule",
			Message:   "failed to persist reminders",
			Err:       err,
		}
	}

	s.logger.Info("scheduled deadline reminders",
		"task_id", task.ID,
		"owner_id", task.OwnerID,
		"count", len(batch),
		"due_at", due)
	return nil
}

// Cancel deletes all unsent notifications for a task. Sent notifications
// are left as history. Used when a task's due date changes or the task
// is deleted.
func (s *Scheduler) Cancel(ctx context.Context, ownerID, taskID uuid.UUID) error {
	deleted, err := s.notifications.DeleteUnsentByTask(ctx, ownerID, taskID)
	if err != nil {
		return &SchedulerError{
			Operation: "cancel",
			Message:   "failed to delete unsent reminders",
			Err:       err,
		}
	}
	if deleted > 0 {
		s.logger.Info("cancelled pending reminders",
			"task_id", taskID,
			"owner_id", ownerID,
			"count", deleted)
	}
	return nil
}

// reminderBody renders the human-readable reminder text for an offset.
// The wording is selected by the magnitude of the offset.
func reminderBody(title string, offsetMinutes int) string {
	switch {
	case offsetMinutes < 60:
		if offsetMinutes == 1 {
			return fmt.Sprintf("%s is due in 1 minute", title)
		}
		return fmt.Sprintf("%s is due in %d minutes", title, offsetMinutes)
	case offsetMinutes < 1440:
		hours := offsetMinutes / 60
		if hours == 1 {
			return fmt.Sprintf("%s is due in 1 hour", title)
		}
		return fmt.Sprintf("%s is due in %d hours", title, hours)
	default:
		days := offsetMinutes / 1440
		if days == 1 {
			return fmt.Sprintf("%s is due tomorrow", title)
		}
		return fmt.Sprintf("%s is due in %d days", title, days)
	}
}
