package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Calendar layouts used throughout the application. Dates are stored and
// compared as plain calendar strings, never converted between time zones.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Frequency describes how often a repeating task recurs.
type Frequency string

// Supported repeat frequencies.
const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Valid reports whether f is a supported frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

// Possible task status values.
const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// Valid reports whether s is a supported task status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

// Task-specific validation errors.
var (
	// ErrTaskIDEmpty is returned when a task ID is empty or nil.
	ErrTaskIDEmpty = errors.New("task ID cannot be empty")

	// ErrTaskOwnerIDEmpty is returned when a task's owner ID is empty or nil.
	ErrTaskOwnerIDEmpty = errors.New("task owner ID cannot be empty")

	// ErrTaskTitleEmpty is returned when a task's title is empty.
	ErrTaskTitleEmpty = errors.New("task title cannot be empty")

	// ErrTaskSeriesIDEmpty is returned when a repeating task has no series ID.
	ErrTaskSeriesIDEmpty = errors.New("repeating task requires a series ID")

	// ErrTaskFrequencyMissing is returned when a repeating task has no frequency.
	ErrTaskFrequencyMissing = errors.New("repeating task requires a repeat frequency")
)

// occurrenceNamespace is the fixed namespace used to derive deterministic
// occurrence IDs. Creating the same (series, date) occurrence twice yields
// the same ID, so the store's uniqueness constraint rejects duplicates.
var occurrenceNamespace = uuid.MustParse("9e3b6c1a-4f82-4d3e-9a57-2c8f0d1b6e44")

// Task represents either a standalone task or one dated instance of a
// repeating series. All instances of a series share the same SeriesID;
// the earliest-dated instance acts as the template for new occurrences.
type Task struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	SeriesID    uuid.UUID `json:"series_id,omitempty"` // uuid.Nil for non-repeating tasks
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Priority    string    `json:"priority,omitempty"`

	StartDate       string    `json:"start_date"`           // YYYY-MM-DD, compared as a calendar string
	StartTime       string    `json:"start_time,omitempty"` // HH:MM, empty when the task has no due time
	IsRepeating     bool      `json:"is_repeating"`
	RepeatFrequency Frequency `json:"repeat_frequency,omitempty"`
	RepeatEndDate   string    `json:"repeat_end_date,omitempty"` // YYYY-MM-DD, empty when open-ended

	Status    TaskStatus `json:"status"`
	Completed bool       `json:"completed"`
	IsDeleted bool       `json:"is_deleted"`

	// DeletedOccurrences holds the dates of series instances the owner
	// explicitly removed. Those dates must never be regenerated.
	DeletedOccurrences []string `json:"deleted_occurrences,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidDate reports whether s is a well-formed YYYY-MM-DD calendar string.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// OccurrenceID derives the deterministic ID for the instance of a series
// on the given date. The same inputs always produce the same UUID, which
// turns the pre-creation existence check into an enforced constraint.
func OccurrenceID(seriesID uuid.UUID, date string) uuid.UUID {
	return uuid.NewSHA1(occurrenceNamespace, []byte(seriesID.String()+":"+date))
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrTaskIDEmpty
	}
	if t.OwnerID == uuid.Nil {
		return ErrTaskOwnerIDEmpty
	}
	if t.Title == "" {
		return ErrTaskTitleEmpty
	}
	if !ValidDate(t.StartDate) {
		return NewValidationError("start_date", "must be YYYY-MM-DD", ErrInvalidDate)
	}
	if !t.Status.Valid() {
		return NewValidationError("status", "must be todo, in_progress or completed", ErrInvalidStatus)
	}
	if t.IsRepeating {
		if t.SeriesID == uuid.Nil {
			return ErrTaskSeriesIDEmpty
		}
		if t.RepeatFrequency == "" {
			return ErrTaskFrequencyMissing
		}
		if !t.RepeatFrequency.Valid() {
			return NewValidationError(
				"repeat_frequency",
				"must be daily, weekly or monthly",
				ErrInvalidFrequency,
			)
		}
		if t.RepeatEndDate != "" && !ValidDate(t.RepeatEndDate) {
			return NewValidationError("repeat_end_date", "must be YYYY-MM-DD", ErrInvalidDate)
		}
	}
	return nil
}

// DueAt derives the absolute due timestamp from StartDate and StartTime.
// A task without a start time has no due timestamp and therefore gets no
// deadline reminders. Returns false when no timestamp can be derived.
func (t *Task) DueAt() (time.Time, bool) {
	if t.StartTime == "" {
		return time.Time{}, false
	}
	due, err := time.Parse(DateLayout+" "+TimeLayout, t.StartDate+" "+t.StartTime)
	if err != nil {
		return time.Time{}, false
	}
	return due.UTC(), true
}

// SetStatus updates the task status, keeping the Completed flag in sync,
// and bumps the update timestamp.
func (t *Task) SetStatus(status TaskStatus) error {
	if !status.Valid() {
		return NewValidationError("status", "must be todo, in_progress or completed", ErrInvalidStatus)
	}
	t.Status = status
	t.Completed = status == TaskStatusCompleted
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// HasDeletedOccurrence reports whether the owner explicitly removed the
// series instance on the given date.
func (t *Task) HasDeletedOccurrence(date string) bool {
	for _, d := range t.DeletedOccurrences {
		if d == date {
			return true
		}
	}
	return false
}

// AddDeletedOccurrence records a date the owner removed from the series.
// Duplicate dates are ignored.
func (t *Task) AddDeletedOccurrence(date string) {
	if t.HasDeletedOccurrence(date) {
		return
	}
	t.DeletedOccurrences = append(t.DeletedOccurrences, date)
	t.UpdatedAt = time.Now().UTC()
}
