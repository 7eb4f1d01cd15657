package main

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remindkit/remindkit/internal/domain"
	"github.com/remindkit/remindkit/internal/notify"
	"github.com/remindkit/remindkit/internal/occurrence"
	"github.com/remindkit/remindkit/internal/store"
)

// fakeTaskStore is a minimal in-memory TaskStore for daemon job tests.
type fakeTaskStore struct {
	tasks   map[uuid.UUID]*domain.Task
	created []*domain.Task
}

var _ store.TaskStore = (*fakeTaskStore)(nil)

func newFakeTaskStore(tasks ...*domain.Task) *fakeTaskStore {
	f := &fakeTaskStore{tasks: make(map[uuid.UUID]*domain.Task)}
	for _, task := range tasks {
		f.tasks[task.ID] = task
	}
	return f
}

func (f *fakeTaskStore) Create(ctx context.Context, task *domain.Task) error {
	f.tasks[task.ID] = task
	return nil
}

func (f *fakeTaskStore) CreateIfAbsent(ctx context.Context, task *domain.Task) (bool, error) {
	if _, ok := f.tasks[task.ID]; ok {
		return false, nil
	}
	f.tasks[task.ID] = task
	f.created = append(f.created, task)
	return true, nil
}

func (f *fakeTaskStore) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*domain.Task, error) {
	task, ok := f.tasks[id]
	if !ok || task.OwnerID != ownerID {
		return nil, store.ErrTaskNotFound
	}
	return task, nil
}

func (f *fakeTaskStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Task, error) {
	var out []*domain.Task
	for _, task := range f.tasks {
		if task.OwnerID == ownerID && !task.IsDeleted {
			out = append(out, task)
		}
	}
	return out, nil
}

func (f *fakeTaskStore) OccurrenceExists(
	ctx context.Context,
	ownerID uuid.UUID,
	title, startDate string,
	frequency domain.Frequency,
) (bool, error) {
	for _, task := range f.tasks {
		if task.OwnerID == ownerID && !task.IsDeleted &&
			task.Title == title && task.StartDate == startDate &&
			task.RepeatFrequency == frequency {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeTaskStore) Update(ctx context.Context, task *domain.Task) error {
	f.tasks[task.ID] = task
	return nil
}

func (f *fakeTaskStore) ListOwnersWithRepeating(ctx context.Context) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]struct{})
	var out []uuid.UUID
	for _, task := range f.tasks {
		if task.IsRepeating && !task.IsDeleted {
			if _, ok := seen[task.OwnerID]; !ok {
				seen[task.OwnerID] = struct{}{}
				out = append(out, task.OwnerID)
			}
		}
	}
	return out, nil
}

func (f *fakeTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return f
}

// fakeNotificationStore records created notifications.
type fakeNotificationStore struct {
	created []*domain.Notification
}

var _ store.NotificationStore = (*fakeNotificationStore)(nil)

func (f *fakeNotificationStore) CreateMultiple(ctx context.Context, notifications []*domain.Notification) error {
	f.created = append(f.created, notifications...)
	return nil
}

func (f *fakeNotificationStore) ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.Notification, error) {
	return nil, nil
}

func (f *fakeNotificationStore) UpdateMultiple(ctx context.Context, notifications []*domain.Notification) error {
	return nil
}

func (f *fakeNotificationStore) DeleteUnsentByTask(ctx context.Context, ownerID, taskID uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeNotificationStore) WithTx(tx *sql.Tx) store.NotificationStore {
	return f
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunGenerationSchedulesRemindersForNewOccurrences(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()
	seriesID := uuid.New()

	// The series started yesterday relative to the generation run; both
	// dates sit in the future so the reminder offsets land after now.
	base := time.Now().UTC()
	startDate := base.Add(24 * time.Hour).Format(domain.DateLayout)
	generationTime := base.Add(48 * time.Hour)

	template := &domain.Task{
		ID:              domain.OccurrenceID(seriesID, startDate),
		OwnerID:         ownerID,
		SeriesID:        seriesID,
		Title:           "Water plants",
		StartDate:       startDate,
		StartTime:       "09:00",
		IsRepeating:     true,
		RepeatFrequency: domain.FrequencyDaily,
		Status:          domain.TaskStatusTodo,
	}

	tasks := newFakeTaskStore(template)
	notifications := &fakeNotificationStore{}
	generator := occurrence.NewGenerator(tasks, discardLogger())
	scheduler := notify.NewScheduler(notifications, nil, discardLogger())

	runGeneration(context.Background(), generator, scheduler, tasks, generationTime, discardLogger())

	require.Len(t, tasks.created, 1)
	instance := tasks.created[0]
	assert.Equal(t, generationTime.Format(domain.DateLayout), instance.StartDate)

	require.Len(t, notifications.created, len(notify.DefaultReminderOffsets),
		"every generated occurrence with a due time gets its reminders")
	for _, n := range notifications.created {
		assert.Equal(t, instance.ID, n.TaskID)
		assert.Equal(t, ownerID, n.OwnerID)
		assert.Equal(t, domain.NotificationTypeDeadlineReminder, n.Type)
		assert.False(t, n.Sent)
	}
}

func TestRunGenerationNothingToDo(t *testing.T) {
	t.Parallel()

	standalone := &domain.Task{
		ID:        uuid.New(),
		OwnerID:   uuid.New(),
		Title:     "File taxes",
		StartDate: "2024-01-05",
		Status:    domain.TaskStatusTodo,
	}
	tasks := newFakeTaskStore(standalone)
	notifications := &fakeNotificationStore{}
	generator := occurrence.NewGenerator(tasks, discardLogger())
	scheduler := notify.NewScheduler(notifications, nil, discardLogger())

	runGeneration(context.Background(), generator, scheduler, tasks, time.Now().UTC(), discardLogger())

	assert.Empty(t, tasks.created)
	assert.Empty(t, notifications.created)
}
