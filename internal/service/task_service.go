package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/remindkit/remindkit/internal/domain"
	"github.com/remindkit/remindkit/internal/notify"
	"github.com/remindkit/remindkit/internal/occurrence"
	"github.com/remindkit/remindkit/internal/store"
)

// TaskServiceError is a custom error type for task service errors.
type TaskServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for TaskServiceError.
func (e *TaskServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("task service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("task service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *TaskServiceError) Unwrap() error {
	return e.Err
}

// NewTaskServiceError creates a new TaskServiceError.
func NewTaskServiceError(operation, message string, err error) *TaskServiceError {
	return &TaskServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// TaskService orchestrates task lifecycle operations around the
// occurrence and notification engines: creating and editing tasks keeps
// their reminders in sync, completing a repeating instance spawns its
// successor, deleting an instance suppresses its regeneration.
type TaskService interface {
	// CreateTask persists a new task and schedules its deadline reminders.
	// A new repeating task is assigned a fresh series ID.
	CreateTask(ctx context.Context, task *domain.Task) error

	// UpdateTask persists changes to a task and reschedules its
	// reminders from the updated due time.
	UpdateTask(ctx context.Context, task *domain.Task) error

	// CompleteTask marks a task completed, cancels its pending reminders
	// and, for repeating instances, eagerly spawns the next occurrence.
	// Returns the spawned successor, or nil when there is none.
	CompleteTask(ctx context.Context, ownerID, taskID uuid.UUID) (*domain.Task, error)

	// DeleteTask soft-deletes a task, records the date against the series
	// template so it is never regenerated, and cancels pending reminders.
	DeleteTask(ctx context.Context, ownerID, taskID uuid.UUID) error

	// RegisterDeviceToken registers (or reactivates) a push delivery
	// endpoint for a user.
	RegisterDeviceToken(ctx context.Context, ownerID uuid.UUID, token, deviceType string) error
}

// taskServiceImpl implements the TaskService interface.
type taskServiceImpl struct {
	tasks     store.TaskStore
	tokens    store.DeviceTokenStore
	generator *occurrence.Generator
	scheduler *notify.Scheduler
	logger    *slog.Logger
	today     func() string
}

// NewTaskService creates a new TaskService.
// It returns an error if any of the required dependencies are nil.
func NewTaskService(
	tasks store.TaskStore,
	tokens store.DeviceTokenStore,
	generator *occurrence.Generator,
	scheduler *notify.Scheduler,
	logger *slog.Logger,
) (TaskService, error) {
	if tasks == nil {
		return nil, domain.NewValidationError("tasks", "cannot be nil", domain.ErrValidation)
	}
	if tokens == nil {
		return nil, domain.NewValidationError("tokens", "cannot be nil", domain.ErrValidation)
	}
	if generator == nil {
		return nil, domain.NewValidationError("generator", "cannot be nil", domain.ErrValidation)
	}
	if scheduler == nil {
		return nil, domain.NewValidationError("scheduler", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &taskServiceImpl{
		tasks:     tasks,
		tokens:    tokens,
		generator: generator,
		scheduler: scheduler,
		logger:    logger.With(slog.String("component", "task_service")),
		today:     func() string { return time.Now().UTC().Format(domain.DateLayout) },
	}, nil
}

// CreateTask implements TaskService.CreateTask
func (s *taskServiceImpl) CreateTask(ctx context.Context, task *domain.Task) error {
	now := time.Now().UTC()
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.IsRepeating && task.SeriesID == uuid.Nil {
		task.SeriesID = uuid.New()
	}
	if task.Status == "" {
		task.Status = domain.TaskStatusTodo
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	if err := task.Validate(); err != nil {
		return NewTaskServiceError("create", "invalid task", err)
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		if store.IsDuplicateError(err) {
			return NewTaskServiceError("create", "task already exists", err)
		}
		return NewTaskServiceError("create", "failed to persist task", err)
	}

	// Reminder scheduling is background behavior: a failure here must not
	// lose the task the user just created.
	if err := s.scheduler.Schedule(ctx, task); err != nil {
		s.logger.Warn("failed to schedule reminders for new task",
			"task_id", task.ID,
			"error", err)
	}
	return nil
}

// UpdateTask implements TaskService.UpdateTask
func (s *taskServiceImpl) UpdateTask(ctx context.Context, task *domain.Task) error {
	task.UpdatedAt = time.Now().UTC()
	if err := task.Validate(); err != nil {
		return NewTaskServiceError("update", "invalid task", err)
	}

	if err := s.tasks.Update(ctx, task); err != nil {
		return NewTaskServiceError("update", "failed to persist task", err)
	}

	// The due time may have moved: drop the unsent reminders and schedule
	// from scratch. Deterministic reminder IDs make this idempotent.
	if err := s.scheduler.Cancel(ctx, task.OwnerID, task.ID); err != nil {
		s.logger.Warn("failed to cancel stale reminders",
			"task_id", task.ID,
			"error", err)
	}
	if err := s.scheduler.Schedule(ctx, task); err != nil {
		s.logger.Warn("failed to reschedule reminders",
			"task_id", task.ID,
			"error", err)
	}
	return nil
}

// CompleteTask implements TaskService.CompleteTask
func (s *taskServiceImpl) CompleteTask(
	ctx context.Context,
	ownerID, taskID uuid.UUID,
) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, ownerID, taskID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, NewTaskServiceError("complete", "task not found", err)
		}
		return nil, NewTaskServiceError("complete", "failed to load task", err)
	}

	if err := task.SetStatus(domain.TaskStatusCompleted); err != nil {
		return nil, NewTaskServiceError("complete", "failed to set status", err)
	}
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, NewTaskServiceError("complete", "failed to persist task", err)
	}

	// A completed task no longer needs its pending reminders.
	if err := s.scheduler.Cancel(ctx, ownerID, taskID); err != nil {
		s.logger.Warn("failed to cancel reminders for completed task",
			"task_id", taskID,
			"error", err)
	}

	successor, err := s.generator.SpawnNext(ctx, task, s.today())
	if err != nil {
		// The completion itself succeeded; the next generation run will
		// reconcile the missing successor.
		s.logger.Error("failed to spawn successor occurrence",
			"task_id", taskID,
			"error", err)
		return nil, nil
	}
	if successor != nil {
		if err := s.scheduler.Schedule(ctx, successor); err != nil {
			s.logger.Warn("failed to schedule reminders for successor",
				"task_id", successor.ID,
				"error", err)
		}
	}
	return successor, nil
}

// DeleteTask implements TaskService.DeleteTask
func (s *taskServiceImpl) DeleteTask(ctx context.Context, ownerID, taskID uuid.UUID) error {
	task, err := s.tasks.GetByID(ctx, ownerID, taskID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return NewTaskServiceError("delete", "task not found", err)
		}
		return NewTaskServiceError("delete", "failed to load task", err)
	}

	// Record the removal on the series template first so a concurrent
	// generation run cannot resurrect the date.
	if task.IsRepeating {
		if err := s.suppressOccurrence(ctx, task); err != nil {
			s.logger.Warn("failed to record deleted occurrence on template",
				"task_id", taskID,
				"error", err)
		}
	}

	task.IsDeleted = true
	task.UpdatedAt = time.Now().UTC()
	if err := s.tasks.Update(ctx, task); err != nil {
		return NewTaskServiceError("delete", "failed to persist task", err)
	}

	if err := s.scheduler.Cancel(ctx, ownerID, taskID); err != nil {
		s.logger.Warn("failed to cancel reminders for deleted task",
			"task_id", taskID,
			"error", err)
	}
	return nil
}

// suppressOccurrence records the instance's date in the deleted
// occurrences of its series template, so generation skips it forever.
// When the instance is the template itself, its suppression list must
// outlive the soft-deleted row: it migrates to the next-earliest live
// instance, which becomes the new template.
func (s *taskServiceImpl) suppressOccurrence(ctx context.Context, instance *domain.Task) error {
	all, err := s.tasks.ListByOwner(ctx, instance.OwnerID)
	if err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}

	// The template is the earliest-dated live instance of the series;
	// the successor is the earliest-dated one other than the instance.
	var template, successor *domain.Task
	for _, t := range all {
		if !sameSeries(t, instance) {
			continue
		}
		if template == nil || t.StartDate < template.StartDate {
			template = t
		}
		if t.ID != instance.ID && (successor == nil || t.StartDate < successor.StartDate) {
			successor = t
		}
	}
	if template == nil {
		return nil
	}

	if template.ID != instance.ID {
		template.AddDeletedOccurrence(instance.StartDate)
		if err := s.tasks.Update(ctx, template); err != nil {
			return fmt.Errorf("failed to update template: %w", err)
		}
		return nil
	}

	if successor == nil {
		// No live instances remain; the deleted flag stops regeneration
		// of the whole series.
		return nil
	}

	// The series continues under the successor: carry over the removed
	// dates plus the template's own date.
	for _, date := range instance.DeletedOccurrences {
		successor.AddDeletedOccurrence(date)
	}
	successor.AddDeletedOccurrence(instance.StartDate)
	if err := s.tasks.Update(ctx, successor); err != nil {
		return fmt.Errorf("failed to update successor template: %w", err)
	}
	return nil
}

// sameSeries reports whether two tasks belong to the same repeating series.
func sameSeries(a, b *domain.Task) bool {
	if a.SeriesID != uuid.Nil && b.SeriesID != uuid.Nil {
		return a.SeriesID == b.SeriesID
	}
	return a.IsRepeating == b.IsRepeating &&
		a.Title == b.Title &&
		a.RepeatFrequency == b.RepeatFrequency
}

// RegisterDeviceToken implements TaskService.RegisterDeviceToken
func (s *taskServiceImpl) RegisterDeviceToken(
	ctx context.Context,
	ownerID uuid.UUID,
	token, deviceType string,
) error {
	dt, err := domain.NewDeviceToken(ownerID, token, deviceType)
	if err != nil {
		return NewTaskServiceError("register_device_token", "invalid device token", err)
	}
	if err := s.tokens.Upsert(ctx, dt); err != nil {
		return NewTaskServiceError("register_device_token", "failed to persist device token", err)
	}
	s.logger.Info("registered device token",
		"owner_id", ownerID,
		"device_type", deviceType)
	return nil
}
