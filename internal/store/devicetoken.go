package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/remindkit/remindkit/internal/domain"
)

// DeviceTokenStore defines the interface for device token persistence.
type DeviceTokenStore interface {
	// Upsert registers a device token, keyed by the raw token value.
	// Re-registering an existing token reactivates it and refreshes its
	// owner, device type and last-used timestamp.
	Upsert(ctx context.Context, token *domain.DeviceToken) error

	// ListActiveByOwner retrieves all active delivery endpoints for a user.
	ListActiveByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.DeviceToken, error)

	// DeactivateTokens flips IsActive to false for every record matching
	// one of the raw token values, across all owners. Delivery results do
	// not carry ownership, so invalidation is keyed on the token itself.
	// Returns the number of deactivated records.
	DeactivateTokens(ctx context.Context, tokens []string) (int64, error)

	// MarkUsed refreshes the last-used timestamp for the given tokens
	// after a successful delivery.
	MarkUsed(ctx context.Context, tokens []string, at time.Time) error

	// WithTx returns a new DeviceTokenStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) DeviceTokenStore
}
