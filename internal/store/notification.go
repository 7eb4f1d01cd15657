package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/remindkit/remindkit/internal/domain"
)

// NotificationStore defines the interface for notification data persistence.
type NotificationStore interface {
	// CreateMultiple saves a batch of notifications in one atomic write.
	// Notification IDs are deterministic per (task, offset); a record that
	// already exists and is still unsent is overwritten in place, so
	// rescheduling after a due-date change is idempotent. Records that
	// were already sent are left untouched as history.
	//
	// IMPORTANT: run within a transaction (store.RunInTransaction with
	// WithTx) when atomicity across the batch is required.
	CreateMultiple(ctx context.Context, notifications []*domain.Notification) error

	// ListDue retrieves up to limit notifications that are unsent and
	// scheduled at or before now, oldest first. This is a cross-owner
	// scan: the delivery pipeline fans in over all tenants.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.Notification, error)

	// UpdateMultiple persists status changes for a batch of notifications
	// in one atomic write. Used by the delivery pipeline to commit all of
	// an invocation's mutations together.
	UpdateMultiple(ctx context.Context, notifications []*domain.Notification) error

	// DeleteUnsentByTask removes all unsent notifications for a task,
	// returning the number of deleted records. Sent notifications are
	// kept as history.
	DeleteUnsentByTask(ctx context.Context, ownerID, taskID uuid.UUID) (int64, error)

	// WithTx returns a new NotificationStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) NotificationStore
}
