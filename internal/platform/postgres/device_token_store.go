package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/remindkit/remindkit/internal/domain"
	"github.com/remindkit/remindkit/internal/platform/logger"
	"github.com/remindkit/remindkit/internal/store"
)

// PostgresDeviceTokenStore implements the store.DeviceTokenStore interface
// using a PostgreSQL database as the storage backend.
type PostgresDeviceTokenStore struct {
	db store.DBTX
}

// NewPostgresDeviceTokenStore creates a new PostgreSQL implementation of
// the DeviceTokenStore interface.
func NewPostgresDeviceTokenStore(db store.DBTX) *PostgresDeviceTokenStore {
	if db == nil {
		panic("db cannot be nil")
	}
	return &PostgresDeviceTokenStore{db: db}
}

// Ensure PostgresDeviceTokenStore implements store.DeviceTokenStore interface
var _ store.DeviceTokenStore = (*PostgresDeviceTokenStore)(nil)

// Upsert implements store.DeviceTokenStore.Upsert
// The raw token value is the primary key, so re-registration updates the
// existing record in place and reactivates it.
func (s *PostgresDeviceTokenStore) Upsert(ctx context.Context, token *domain.DeviceToken) error {
	if err := token.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO device_tokens (token, owner_id, device_type, is_active, last_used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (token) DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			device_type = EXCLUDED.device_type,
			is_active = TRUE,
			last_used = EXCLUDED.last_used
	`

	_, err := s.db.ExecContext(ctx, query,
		token.Token,
		token.OwnerID,
		token.DeviceType,
		token.IsActive,
		token.LastUsed,
		token.CreatedAt,
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to upsert device token",
			"owner_id", token.OwnerID,
			"error", err)
		return store.NewStoreError("device_token", "upsert", "write failed", err)
	}
	return nil
}

// ListActiveByOwner implements store.DeviceTokenStore.ListActiveByOwner
func (s *PostgresDeviceTokenStore) ListActiveByOwner(
	ctx context.Context,
	ownerID uuid.UUID,
) ([]*domain.DeviceToken, error) {
	query := `
		SELECT token, owner_id, device_type, is_active, last_used, created_at
		FROM device_tokens
		WHERE owner_id = $1 AND is_active
		ORDER BY last_used DESC
	`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*domain.DeviceToken
	for rows.Next() {
		var dt domain.DeviceToken
		err := rows.Scan(
			&dt.Token,
			&dt.OwnerID,
			&dt.DeviceType,
			&dt.IsActive,
			&dt.LastUsed,
			&dt.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device token row: %w", err)
		}
		tokens = append(tokens, &dt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating device token rows: %w", err)
	}
	return tokens, nil
}

// DeactivateTokens implements store.DeviceTokenStore.DeactivateTokens
// Lookup is keyed directly on the token value, so invalidating a token
// reported by the delivery provider needs no owner scan.
func (s *PostgresDeviceTokenStore) DeactivateTokens(
	ctx context.Context,
	tokens []string,
) (int64, error) {
	if len(tokens) == 0 {
		return 0, nil
	}

	var total int64
	for _, batch := range chunk(tokens, maxBatchOps) {
		placeholders := make([]string, len(batch))
		args := make([]any, len(batch))
		for i, t := range batch {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args[i] = t
		}

		query := `
			UPDATE device_tokens
			SET is_active = FALSE
			WHERE token IN (` + strings.Join(placeholders, ", ") + `)
		`

		result, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			logger.FromContext(ctx).Error("failed to deactivate device tokens",
				"count", len(batch),
				"error", err)
			return total, fmt.Errorf("failed to deactivate device tokens: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("failed to get rows affected: %w", err)
		}
		total += affected
	}
	return total, nil
}

// MarkUsed implements store.DeviceTokenStore.MarkUsed
func (s *PostgresDeviceTokenStore) MarkUsed(
	ctx context.Context,
	tokens []string,
	at time.Time,
) error {
	if len(tokens) == 0 {
		return nil
	}

	for _, batch := range chunk(tokens, maxBatchOps) {
		placeholders := make([]string, len(batch))
		args := make([]any, 0, len(batch)+1)
		args = append(args, at.UTC())
		for i, t := range batch {
			placeholders[i] = fmt.Sprintf("$%d", i+2)
			args = append(args, t)
		}

		query := `
			UPDATE device_tokens
			SET last_used = $1
			WHERE token IN (` + strings.Join(placeholders, ", ") + `)
		`

		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to mark device tokens used: %w", err)
		}
	}
	return nil
}

// WithTx implements store.DeviceTokenStore.WithTx
func (s *PostgresDeviceTokenStore) WithTx(tx *sql.Tx) store.DeviceTokenStore {
	return &PostgresDeviceTokenStore{db: tx}
}
