package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/remindkit/remindkit/internal/domain"
	"github.com/remindkit/remindkit/internal/platform/logger"
	"github.com/remindkit/remindkit/internal/store"
)

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db store.DBTX
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the
// TaskStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
func NewPostgresTaskStore(db store.DBTX) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	return &PostgresTaskStore{db: db}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

const taskColumns = `id, owner_id, series_id, title, description, tags, priority,
	start_date, start_time, is_repeating, repeat_frequency, repeat_end_date,
	status, completed, is_deleted, deleted_occurrences, created_at, updated_at`

// Create implements store.TaskStore.Create
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	args, err := taskArgs(task)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return store.ErrOccurrenceExists
		}
		logger.FromContext(ctx).Error("failed to create task",
			"task_id", task.ID,
			"owner_id", task.OwnerID,
			"error", err)
		return store.NewStoreError("task", "create", "insert failed", err)
	}
	return nil
}

// CreateIfAbsent implements store.TaskStore.CreateIfAbsent
// The deterministic occurrence ID carries the uniqueness guarantee, so the
// insert is conditional on the primary key.
func (s *PostgresTaskStore) CreateIfAbsent(ctx context.Context, task *domain.Task) (bool, error) {
	if err := task.Validate(); err != nil {
		return false, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO NOTHING
	`

	args, err := taskArgs(task)
	if err != nil {
		return false, err
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		logger.FromContext(ctx).Error("failed to create task",
			"task_id", task.ID,
			"owner_id", task.OwnerID,
			"error", err)
		return false, fmt.Errorf("failed to create task: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// GetByID implements store.TaskStore.GetByID
func (s *PostgresTaskStore) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE id = $1 AND owner_id = $2
	`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// ListByOwner implements store.TaskStore.ListByOwner
func (s *PostgresTaskStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE owner_id = $1 AND NOT is_deleted
		ORDER BY start_date ASC, created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}
	return tasks, nil
}

// OccurrenceExists implements store.TaskStore.OccurrenceExists
func (s *PostgresTaskStore) OccurrenceExists(
	ctx context.Context,
	ownerID uuid.UUID,
	title, startDate string,
	frequency domain.Frequency,
) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM tasks
			WHERE owner_id = $1 AND title = $2 AND start_date = $3
				AND repeat_frequency = $4 AND NOT is_deleted
		)
	`

	var exists bool
	err := s.db.QueryRowContext(ctx, query, ownerID, title, startDate, string(frequency)).
		Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check occurrence existence: %w", err)
	}
	return exists, nil
}

// Update implements store.TaskStore.Update
func (s *PostgresTaskStore) Update(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE tasks
		SET title = $3, description = $4, tags = $5, priority = $6,
			start_date = $7, start_time = $8, is_repeating = $9,
			repeat_frequency = $10, repeat_end_date = $11, status = $12,
			completed = $13, is_deleted = $14, deleted_occurrences = $15,
			updated_at = $16
		WHERE id = $1 AND owner_id = $2
	`

	tags, occurrences, err := taskJSON(task)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.OwnerID,
		task.Title,
		task.Description,
		tags,
		task.Priority,
		task.StartDate,
		task.StartTime,
		task.IsRepeating,
		string(task.RepeatFrequency),
		task.RepeatEndDate,
		string(task.Status),
		task.Completed,
		task.IsDeleted,
		occurrences,
		task.UpdatedAt,
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to update task",
			"task_id", task.ID,
			"owner_id", task.OwnerID,
			"error", err)
		return store.NewStoreError("task", "update", "write failed", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrTaskNotFound
	}
	return nil
}

// ListOwnersWithRepeating implements store.TaskStore.ListOwnersWithRepeating
func (s *PostgresTaskStore) ListOwnersWithRepeating(ctx context.Context) ([]uuid.UUID, error) {
	query := `
		SELECT DISTINCT owner_id
		FROM tasks
		WHERE is_repeating AND NOT is_deleted
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners with repeating tasks: %w", err)
	}
	defer rows.Close()

	var owners []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan owner row: %w", err)
		}
		owners = append(owners, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating owner rows: %w", err)
	}
	return owners, nil
}

// WithTx implements store.TaskStore.WithTx
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{db: tx}
}

// taskJSON marshals the task's set-valued fields for JSONB columns.
func taskJSON(task *domain.Task) (tags, occurrences []byte, err error) {
	tags, err = json.Marshal(task.Tags)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal tags: %w", err)
	}
	if task.Tags == nil {
		tags = []byte("[]")
	}
	occurrences, err = json.Marshal(task.DeletedOccurrences)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal deleted occurrences: %w", err)
	}
	if task.DeletedOccurrences == nil {
		occurrences = []byte("[]")
	}
	return tags, occurrences, nil
}

// taskArgs builds the full insert argument list for a task.
func taskArgs(task *domain.Task) ([]any, error) {
	tags, occurrences, err := taskJSON(task)
	if err != nil {
		return nil, err
	}
	return []any{
		task.ID,
		task.OwnerID,
		uuid.NullUUID{UUID: task.SeriesID, Valid: task.SeriesID != uuid.Nil},
		task.Title,
		task.Description,
		tags,
		task.Priority,
		task.StartDate,
		task.StartTime,
		task.IsRepeating,
		string(task.RepeatFrequency),
		task.RepeatEndDate,
		string(task.Status),
		task.Completed,
		task.IsDeleted,
		occurrences,
		task.CreatedAt,
		task.UpdatedAt,
	}, nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask maps one database row to a domain task.
func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task        domain.Task
		seriesID    uuid.NullUUID
		frequency   string
		status      string
		tags        []byte
		occurrences []byte
	)

	err := row.Scan(
		&task.ID,
		&task.OwnerID,
		&seriesID,
		&task.Title,
		&task.Description,
		&tags,
		&task.Priority,
		&task.StartDate,
		&task.StartTime,
		&task.IsRepeating,
		&frequency,
		&task.RepeatEndDate,
		&status,
		&task.Completed,
		&task.IsDeleted,
		&occurrences,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if seriesID.Valid {
		task.SeriesID = seriesID.UUID
	}
	task.RepeatFrequency = domain.Frequency(frequency)
	task.Status = domain.TaskStatus(status)
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &task.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}
	if len(occurrences) > 0 {
		if err := json.Unmarshal(occurrences, &task.DeletedOccurrences); err != nil {
			return nil, fmt.Errorf("failed to unmarshal deleted occurrences: %w", err)
		}
	}
	return &task, nil
}
