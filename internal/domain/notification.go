package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationType identifies the kind of notification being delivered.
type NotificationType string

// Supported notification types.
const (
	NotificationTypeDeadlineReminder NotificationType = "deadline_reminder"
)

// MaxNotificationRetries bounds the retry counter of a notification.
// Once the counter reaches this value the record is terminal and is
// never rescheduled again.
const MaxNotificationRetries = 3

// Notification-specific validation errors.
var (
	// ErrNotificationIDEmpty is returned when a notification ID is empty or nil.
	ErrNotificationIDEmpty = errors.New("notification ID cannot be empty")

	// ErrNotificationOwnerIDEmpty is returned when a notification's owner ID is empty or nil.
	ErrNotificationOwnerIDEmpty = errors.New("notification owner ID cannot be empty")

	// ErrNotificationTaskIDEmpty is returned when a notification's task ID is empty or nil.
	ErrNotificationTaskIDEmpty = errors.New("notification task ID cannot be empty")

	// ErrNotificationRetryCount is returned when the retry counter is outside [0,3].
	ErrNotificationRetryCount = errors.New("notification retry count out of range")
)

// notificationNamespace is the fixed namespace used to derive deterministic
// notification IDs from (task, offset) pairs, making reminder creation
// idempotent per offset.
var notificationNamespace = uuid.MustParse("c4f1a9d2-73b6-45e0-8c2d-5f9e6a0b1837")

// NotificationPayload is the push payload delivered to the user's devices.
type NotificationPayload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
	Icon  string            `json:"icon,omitempty"`
}

// Notification represents one scheduled reminder for one task instance.
// Its lifecycle is: scheduled -> delivered | retry-pending; retry-pending
// -> delivered | retry-pending | failed-terminal. Delivered and
// failed-terminal are absorbing.
type Notification struct {
	ID           uuid.UUID           `json:"id"`
	OwnerID      uuid.UUID           `json:"owner_id"`
	TaskID       uuid.UUID           `json:"task_id"`
	Type         NotificationType    `json:"type"`
	ScheduledFor time.Time           `json:"scheduled_for"`
	Payload      NotificationPayload `json:"payload"`
	Sent         bool                `json:"sent"`
	SentAt       *time.Time          `json:"sent_at,omitempty"`
	RetryCount   int                 `json:"retry_count"`
	Error        string              `json:"error,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// NotificationID derives the deterministic ID for a reminder at the given
// offset before a task's due time. The same (task, offset) pair always
// yields the same UUID, so scheduling the same reminder twice overwrites
// rather than duplicates.
func NotificationID(taskID uuid.UUID, offsetMinutes int) uuid.UUID {
	return uuid.NewSHA1(
		notificationNamespace,
		[]byte(fmt.Sprintf("%s:%d", taskID, offsetMinutes)),
	)
}

// NewDeadlineReminder creates a reminder notification for a task due at
// the given time, scheduled offsetMinutes before it.
func NewDeadlineReminder(
	task *Task,
	offsetMinutes int,
	scheduledFor time.Time,
	payload NotificationPayload,
) (*Notification, error) {
	now := time.Now().UTC()
	n := &Notification{
		ID:           NotificationID(task.ID, offsetMinutes),
		OwnerID:      task.OwnerID,
		TaskID:       task.ID,
		Type:         NotificationTypeDeadlineReminder,
		ScheduledFor: scheduledFor.UTC(),
		Payload:      payload,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

// Validate checks if the Notification has valid data.
func (n *Notification) Validate() error {
	if n.ID == uuid.Nil {
		return ErrNotificationIDEmpty
	}
	if n.OwnerID == uuid.Nil {
		return ErrNotificationOwnerIDEmpty
	}
	if n.TaskID == uuid.Nil {
		return ErrNotificationTaskIDEmpty
	}
	if n.RetryCount < 0 || n.RetryCount > MaxNotificationRetries {
		return ErrNotificationRetryCount
	}
	return nil
}

// Terminal reports whether the notification is in an absorbing state.
func (n *Notification) Terminal() bool {
	return n.Sent
}

// MarkDelivered transitions the notification to the delivered state.
// Delivery counts as soon as any endpoint accepted the payload.
func (n *Notification) MarkDelivered(at time.Time) {
	at = at.UTC()
	n.Sent = true
	n.SentAt = &at
	n.Error = ""
	n.UpdatedAt = at
}

// MarkFailed transitions the notification to the terminal failed state.
// The record stays sent=true with the error preserved so it is never
// picked up by the delivery scan again.
func (n *Notification) MarkFailed(reason string) {
	n.Sent = true
	n.Error = reason
	n.UpdatedAt = time.Now().UTC()
}

// ScheduleRetry records a failed delivery attempt. It increments the
// retry counter and either reschedules the notification or, once the
// bound is reached, moves it to the terminal failed state. Returns true
// when another attempt will be made.
func (n *Notification) ScheduleRetry(now time.Time, backoff time.Duration, cause string) bool {
	n.RetryCount++
	if n.RetryCount >= MaxNotificationRetries {
		n.MarkFailed(fmt.Sprintf("Failed after %d retries: %s", MaxNotificationRetries, cause))
		return false
	}
	n.ScheduledFor = now.UTC().Add(backoff)
	n.Error = cause
	n.UpdatedAt = time.Now().UTC()
	return true
}
