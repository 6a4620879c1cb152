package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/docpolish/docpolish-api/internal/domain"
	"github.com/docpolish/docpolish-api/internal/platform/logger"
	"github.com/docpolish/docpolish-api/internal/store"
	"github.com/google/uuid"
)

// PostgresTaskStore implements the store.TaskStore interface using PostgreSQL
type PostgresTaskStore struct {
	db store.DBTX
}

// NewPostgresTaskStore creates a new PostgresTaskStore
func NewPostgresTaskStore(db store.DBTX) *PostgresTaskStore {
	return &PostgresTaskStore{
		db: db,
	}
}

// WithTx returns a new store bound to the provided transaction.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{db: tx}
}

// taskColumns is the column list shared by every task query.
const taskColumns = `id, status, payload, result, error_message, created_at, updated_at, expires_at`

// CreateTask persists a new task record. The insert is a single statement so
// creation is atomic; any failure surfaces to the caller.
func (s *PostgresTaskStore) CreateTask(ctx context.Context, task *domain.Task) error {
	log := logger.FromContext(ctx)

	payload, err := json.Marshal(task.Payload)
	if err != nil {
		return store.NewStoreError("task", "create", "failed to marshal payload", err)
	}

	query := `
		INSERT INTO tasks (id, status, payload, error_message, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = s.db.ExecContext(ctx, query,
		task.ID,
		task.Status,
		payload,
		task.ErrorMessage,
		task.CreatedAt,
		task.UpdatedAt,
		task.ExpiresAt,
	)

	if err != nil {
		log.Error("failed to create task",
			"task_id", task.ID,
			"error", err)
		return fmt.Errorf("failed to create task: %w", MapError(err))
	}

	return nil
}

// GetTask retrieves a task by ID.
func (s *PostgresTaskStore) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id = $1`, taskColumns)

	row := s.db.QueryRowContext(ctx, query, id)

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrTaskNotFound, id)
		}
		return nil, fmt.Errorf("failed to get task: %w", MapError(err))
	}

	return task, nil
}

// UpdateTask writes the task's status, result, error message, and updated_at
// in a single conditional update guarded by the status the caller read.
// A concurrent status change matches zero rows and surfaces as
// ErrStatusConflict, the same closed-window discipline the dequeue claim
// uses. Results larger than store.MaxResultBytes are rejected with
// ErrPayloadTooLarge so the caller can degrade and retry.
func (s *PostgresTaskStore) UpdateTask(
	ctx context.Context,
	task *domain.Task,
	expectedStatus domain.TaskStatus,
) error {
	log := logger.FromContext(ctx)

	var result []byte
	if task.Result != nil {
		var err error
		result, err = json.Marshal(task.Result)
		if err != nil {
			return store.NewStoreError("task", "update", "failed to marshal result", err)
		}
		if len(result) > store.MaxResultBytes {
			return fmt.Errorf("%w: result is %d bytes", store.ErrPayloadTooLarge, len(result))
		}
	}

	query := `
		UPDATE tasks
		SET status = $1, result = $2, error_message = $3, updated_at = $4
		WHERE id = $5 AND status = $6
	`

	res, err := s.db.ExecContext(ctx, query,
		task.Status,
		result,
		task.ErrorMessage,
		task.UpdatedAt,
		task.ID,
		expectedStatus,
	)

	if err != nil {
		log.Error("failed to update task",
			"task_id", task.ID,
			"status", task.Status,
			"error", err)
		return fmt.Errorf("failed to update task: %w", MapError(err))
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return s.classifyMissedUpdate(ctx, task.ID, expectedStatus)
	}

	return nil
}

// classifyMissedUpdate distinguishes a vanished row from a concurrent status
// change after a conditional update matched nothing.
func (s *PostgresTaskStore) classifyMissedUpdate(
	ctx context.Context,
	id uuid.UUID,
	expectedStatus domain.TaskStatus,
) error {
	var current domain.TaskStatus
	err := s.db.QueryRowContext(ctx, `SELECT status FROM tasks WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", store.ErrTaskNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to classify missed update: %w", MapError(err))
	}

	return fmt.Errorf("%w: expected %s, task is %s", store.ErrStatusConflict, expectedStatus, current)
}

// DequeueNext claims the oldest pending task in a single conditional update.
// The subselect locks the candidate row with SKIP LOCKED, so two racing
// schedulers can never claim the same task.
func (s *PostgresTaskStore) DequeueNext(ctx context.Context) (*domain.Task, error) {
	log := logger.FromContext(ctx)

	query := fmt.Sprintf(`
		UPDATE tasks
		SET status = $1, updated_at = $2
		WHERE id = (
			SELECT id FROM tasks
			WHERE status = $3
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING %s
	`, taskColumns)

	row := s.db.QueryRowContext(ctx, query,
		domain.TaskStatusProcessing,
		time.Now().UTC(),
		domain.TaskStatusPending,
	)

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNoPendingTasks
		}
		log.Error("failed to dequeue task", "error", err)
		return nil, fmt.Errorf("failed to dequeue task: %w", MapError(err))
	}

	return task, nil
}

// GetProcessingTasks retrieves tasks in processing state, optionally limited
// to those whose updated_at is older than the given duration.
func (s *PostgresTaskStore) GetProcessingTasks(
	ctx context.Context,
	olderThan time.Duration,
) ([]*domain.Task, error) {
	log := logger.FromContext(ctx)

	var query string
	var args []any

	if olderThan > 0 {
		query = fmt.Sprintf(`
			SELECT %s FROM tasks
			WHERE status = $1 AND updated_at < $2
			ORDER BY created_at ASC
		`, taskColumns)
		args = []any{domain.TaskStatusProcessing, time.Now().UTC().Add(-olderThan)}
	} else {
		query = fmt.Sprintf(`
			SELECT %s FROM tasks
			WHERE status = $1
			ORDER BY created_at ASC
		`, taskColumns)
		args = []any{domain.TaskStatusProcessing}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query processing tasks", "error", err)
		return nil, fmt.Errorf("failed to query processing tasks: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

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

// DeleteExpired removes all task records whose expiry precedes now.
func (s *PostgresTaskStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	log := logger.FromContext(ctx)

	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE expires_at < $1`, now)
	if err != nil {
		log.Error("failed to delete expired tasks", "error", err)
		return 0, fmt.Errorf("%w: %v", store.ErrDeleteFailed, err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask reads one task row into a domain.Task.
func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task         domain.Task
		payload      []byte
		result       []byte
		errorMessage sql.NullString
	)

	err := row.Scan(
		&task.ID,
		&task.Status,
		&payload,
		&result,
		&errorMessage,
		&task.CreatedAt,
		&task.UpdatedAt,
		&task.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(payload, &task.Payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	if len(result) > 0 {
		task.Result = &domain.TaskResult{}
		if err := json.Unmarshal(result, task.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal task result: %w", err)
		}
	}

	task.ErrorMessage = errorMessage.String

	return &task, nil
}
