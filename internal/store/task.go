package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/remindkit/remindkit/internal/domain"
)

// TaskStore defines the interface for task data persistence.
type TaskStore interface {
	// Create saves a new task to the store.
	// Returns validation errors if the task data is invalid.
	Create(ctx context.Context, task *domain.Task) error

	// CreateIfAbsent saves a new task unless a task with the same ID
	// already exists. Occurrence IDs are deterministic per (series, date),
	// so this acts as a conditional "create if absent" and closes the
	// read-then-write race of a plain existence check.
	// Returns true when the task was created, false when it already existed.
	CreateIfAbsent(ctx context.Context, task *domain.Task) (bool, error)

	// GetByID retrieves a task by owner and ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, ownerID, id uuid.UUID) (*domain.Task, error)

	// ListByOwner retrieves all of an owner's tasks that are not
	// soft-deleted, in start-date order. This is the working set the
	// occurrence generator reconciles against.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Task, error)

	// OccurrenceExists reports whether an instance with the given title,
	// start date and frequency already exists for the owner. Used as the
	// store-side half of the generator's existence check, defending
	// against an incomplete in-memory task set.
	OccurrenceExists(
		ctx context.Context,
		ownerID uuid.UUID,
		title, startDate string,
		frequency domain.Frequency,
	) (bool, error)

	// Update persists changes to an existing task.
	// Returns ErrTaskNotFound if the task does not exist.
	Update(ctx context.Context, task *domain.Task) error

	// ListOwnersWithRepeating returns the IDs of all owners that have at
	// least one live repeating task. The daily generation trigger iterates
	// over this set.
	ListOwnersWithRepeating(ctx context.Context) ([]uuid.UUID, error)

	// WithTx returns a new TaskStore instance that uses the provided transaction.
	// The transaction should be created and managed by the caller, typically
	// via store.RunInTransaction.
	WithTx(tx *sql.Tx) TaskStore
}
