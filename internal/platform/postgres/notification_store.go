package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/remindkit/remindkit/internal/domain"
	"github.com/remindkit/remindkit/internal/platform/logger"
	"github.com/remindkit/remindkit/internal/store"
)

// PostgresNotificationStore implements the store.NotificationStore interface
// using a PostgreSQL database as the storage backend.
type PostgresNotificationStore struct {
	db store.DBTX
}

// NewPostgresNotificationStore creates a new PostgreSQL implementation of
// the NotificationStore interface.
func NewPostgresNotificationStore(db store.DBTX) *PostgresNotificationStore {
	if db == nil {
		panic("db cannot be nil")
	}
	return &PostgresNotificationStore{db: db}
}

// Ensure PostgresNotificationStore implements store.NotificationStore interface
var _ store.NotificationStore = (*PostgresNotificationStore)(nil)

const notificationColumns = `id, owner_id, task_id, type, scheduled_for, title, body,
	data, icon, sent, sent_at, retry_count, error, created_at, updated_at`

const notificationColumnCount = 15

// CreateMultiple implements store.NotificationStore.CreateMultiple
// Batches above the provider write limit are split into chunks; callers
// needing cross-chunk atomicity must run inside a transaction.
func (s *PostgresNotificationStore) CreateMultiple(
	ctx context.Context,
	notifications []*domain.Notification,
) error {
	if len(notifications) == 0 {
		return nil
	}
	for _, n := range notifications {
		if err := n.Validate(); err != nil {
			return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
		}
	}

	for _, batch := range chunk(notifications, maxBatchOps) {
		if err := s.createBatch(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

// createBatch writes one chunk as a single multi-row upsert. A record that
// already exists is overwritten only while unsent, so sent notifications
// remain untouched history.
func (s *PostgresNotificationStore) createBatch(
	ctx context.Context,
	notifications []*domain.Notification,
) error {
	placeholders := make([]string, 0, len(notifications))
	args := make([]any, 0, len(notifications)*notificationColumnCount)

	for i, n := range notifications {
		base := i * notificationColumnCount
		cols := make([]string, notificationColumnCount)
		for j := range cols {
			cols[j] = fmt.Sprintf("$%d", base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(cols, ", ")+")")

		data, err := json.Marshal(n.Payload.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal notification data: %w", err)
		}
		if n.Payload.Data == nil {
			data = []byte("{}")
		}

		args = append(args,
			n.ID,
			n.OwnerID,
			n.TaskID,
			string(n.Type),
			n.ScheduledFor,
			n.Payload.Title,
			n.Payload.Body,
			data,
			n.Payload.Icon,
			n.Sent,
			n.SentAt,
			n.RetryCount,
			n.Error,
			n.CreatedAt,
			n.UpdatedAt,
		)
	}

	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES ` + strings.Join(placeholders, ", ") + `
		ON CONFLICT (id) DO UPDATE SET
			scheduled_for = EXCLUDED.scheduled_for,
			title = EXCLUDED.title,
			body = EXCLUDED.body,
			data = EXCLUDED.data,
			icon = EXCLUDED.icon,
			retry_count = 0,
			error = '',
			updated_at = EXCLUDED.updated_at
		WHERE NOT notifications.sent
	`

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		logger.FromContext(ctx).Error("failed to create notifications",
			"count", len(notifications),
			"error", err)
		return store.NewStoreError("notification", "create", "batch write failed", err)
	}
	return nil
}

// ListDue implements store.NotificationStore.ListDue
// This is the cross-owner fan-in scan the delivery pipeline runs on.
func (s *PostgresNotificationStore) ListDue(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*domain.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE NOT sent AND scheduled_for <= $1
		ORDER BY scheduled_for ASC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification row: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification rows: %w", err)
	}
	return notifications, nil
}

// UpdateMultiple implements store.NotificationStore.UpdateMultiple
func (s *PostgresNotificationStore) UpdateMultiple(
	ctx context.Context,
	notifications []*domain.Notification,
) error {
	query := `
		UPDATE notifications
		SET scheduled_for = $2, sent = $3, sent_at = $4, retry_count = $5,
			error = $6, updated_at = $7
		WHERE id = $1
	`

	for _, n := range notifications {
		if err := n.Validate(); err != nil {
			return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
		}
		result, err := s.db.ExecContext(ctx, query,
			n.ID,
			n.ScheduledFor,
			n.Sent,
			n.SentAt,
			n.RetryCount,
			n.Error,
			n.UpdatedAt,
		)
		if err != nil {
			logger.FromContext(ctx).Error("failed to update notification",
				"notification_id", n.ID,
				"error", err)
			return store.NewStoreError("notification", "update", "write failed", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: %s", store.ErrNotificationNotFound, n.ID)
		}
	}
	return nil
}

// DeleteUnsentByTask implements store.NotificationStore.DeleteUnsentByTask
func (s *PostgresNotificationStore) DeleteUnsentByTask(
	ctx context.Context,
	ownerID, taskID uuid.UUID,
) (int64, error) {
	query := `
		DELETE FROM notifications
		WHERE owner_id = $1 AND task_id = $2 AND NOT sent
	`

	result, err := s.db.ExecContext(ctx, query, ownerID, taskID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete unsent notifications: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// WithTx implements store.NotificationStore.WithTx
func (s *PostgresNotificationStore) WithTx(tx *sql.Tx) store.NotificationStore {
	return &PostgresNotificationStore{db: tx}
}

// scanNotification maps one database row to a domain notification.
func scanNotification(row rowScanner) (*domain.Notification, error) {
	var (
		n                domain.Notification
		notificationType string
		data             []byte
		sentAt           sql.NullTime
	)

	err := row.Scan(
		&n.ID,
		&n.OwnerID,
		&n.TaskID,
		&notificationType,
		&n.ScheduledFor,
		&n.Payload.Title,
		&n.Payload.Body,
		&data,
		&n.Payload.Icon,
		&n.Sent,
		&sentAt,
		&n.RetryCount,
		&n.Error,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	n.Type = domain.NotificationType(notificationType)
	if sentAt.Valid {
		t := sentAt.Time
		n.SentAt = &t
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &n.Payload.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notification data: %w", err)
		}
	}
	return &n, nil
}
