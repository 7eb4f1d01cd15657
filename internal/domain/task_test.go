package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validTask returns a minimal valid non-repeating task for tests to mutate.
func validTask() *Task {
	return &Task{
		ID:        uuid.New(),
		OwnerID:   uuid.New(),
		Title:     "Water plants",
		StartDate: "2024-01-05",
		Status:    TaskStatusTodo,
	}
}

func TestOccurrenceIDDeterministic(t *testing.T) {
	t.Parallel()

	seriesID := uuid.New()

	first := OccurrenceID(seriesID, "2024-01-05")
	second := OccurrenceID(seriesID, "2024-01-05")
	assert.Equal(t, first, second, "same series and date must yield the same ID")

	otherDate := OccurrenceID(seriesID, "2024-01-06")
	assert.NotEqual(t, first, otherDate, "different dates must yield different IDs")

	otherSeries := OccurrenceID(uuid.New(), "2024-01-05")
	assert.NotEqual(t, first, otherSeries, "different series must yield different IDs")
}

func TestNotificationIDDeterministic(t *testing.T) {
	t.Parallel()

	taskID := uuid.New()

	first := NotificationID(taskID, 60)
	second := NotificationID(taskID, 60)
	assert.Equal(t, first, second)

	assert.NotEqual(t, first, NotificationID(taskID, 15))
	assert.NotEqual(t, first, NotificationID(uuid.New(), 60))
}

func TestTaskValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Task)
		wantErr error
	}{
		{
			name:    "valid non-repeating task",
			mutate:  func(*Task) {},
			wantErr: nil,
		},
		{
			name:    "missing ID",
			mutate:  func(task *Task) { task.ID = uuid.Nil },
			wantErr: ErrTaskIDEmpty,
		},
		{
			name:    "missing owner",
			mutate:  func(task *Task) { task.OwnerID = uuid.Nil },
			wantErr: ErrTaskOwnerIDEmpty,
		},
		{
			name:    "missing title",
			mutate:  func(task *Task) { task.Title = "" },
			wantErr: ErrTaskTitleEmpty,
		},
		{
			name:    "malformed start date",
			mutate:  func(task *Task) { task.StartDate = "05-01-2024" },
			wantErr: ErrInvalidDate,
		},
		{
			name:    "unknown status",
			mutate:  func(task *Task) { task.Status = "archived" },
			wantErr: ErrInvalidStatus,
		},
		{
			name: "repeating without series ID",
			mutate: func(task *Task) {
				task.IsRepeating = true
				task.RepeatFrequency = FrequencyDaily
			},
			wantErr: ErrTaskSeriesIDEmpty,
		},
		{
			name: "repeating without frequency",
			mutate: func(task *Task) {
				task.IsRepeating = true
				task.SeriesID = uuid.New()
			},
			wantErr: ErrTaskFrequencyMissing,
		},
		{
			name: "repeating with unknown frequency",
			mutate: func(task *Task) {
				task.IsRepeating = true
				task.SeriesID = uuid.New()
				task.RepeatFrequency = "fortnightly"
			},
			wantErr: ErrInvalidFrequency,
		},
		{
			name: "repeating with malformed end date",
			mutate: func(task *Task) {
				task.IsRepeating = true
				task.SeriesID = uuid.New()
				task.RepeatFrequency = FrequencyWeekly
				task.RepeatEndDate = "next year"
			},
			wantErr: ErrInvalidDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			task := validTask()
			tt.mutate(task)

			err := task.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestTaskDueAt(t *testing.T) {
	t.Parallel()

	task := validTask()
	task.StartTime = "14:30"

	due, ok := task.DueAt()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 5, 14, 30, 0, 0, time.UTC), due)

	task.StartTime = ""
	_, ok = task.DueAt()
	assert.False(t, ok, "task without a start time has no due timestamp")

	task.StartTime = "25:99"
	_, ok = task.DueAt()
	assert.False(t, ok, "malformed start time has no due timestamp")
}

func TestTaskSetStatus(t *testing.T) {
	t.Parallel()

	task := validTask()

	require.NoError(t, task.SetStatus(TaskStatusCompleted))
	assert.Equal(t, TaskStatusCompleted, task.Status)
	assert.True(t, task.Completed, "completed flag must track status")

	require.NoError(t, task.SetStatus(TaskStatusTodo))
	assert.False(t, task.Completed)

	err := task.SetStatus("archived")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.Equal(t, TaskStatusTodo, task.Status, "invalid status must not be applied")
}

func TestTaskDeletedOccurrences(t *testing.T) {
	t.Parallel()

	task := validTask()
	assert.False(t, task.HasDeletedOccurrence("2024-01-06"))

	task.AddDeletedOccurrence("2024-01-06")
	assert.True(t, task.HasDeletedOccurrence("2024-01-06"))

	task.AddDeletedOccurrence("2024-01-06")
	assert.Len(t, task.DeletedOccurrences, 1, "duplicate dates must be ignored")
}

func TestValidDate(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidDate("2024-02-29"))
	assert.False(t, ValidDate("2023-02-29"))
	assert.False(t, ValidDate("2024-1-5"))
	assert.False(t, ValidDate(""))
}
