package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/docpolish/docpolish-api/internal/domain"
	"github.com/google/uuid"
)

// TaskStore defines the interface for persisting beautification tasks.
// The task store is the single shared mutable resource of the pipeline; all
// components communicate through it rather than through in-process state.
type TaskStore interface {
	// CreateTask persists a new task. Creation is atomic: a store failure
	// must surface to the caller rather than leaving a phantom task.
	CreateTask(ctx context.Context, task *domain.Task) error

	// GetTask retrieves a task by its ID. Returns ErrTaskNotFound when the
	// task does not exist.
	GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// UpdateTask writes the task's status, result, error message, and
	// updated_at, conditional on the stored status still being
	// expectedStatus. This is what keeps racing terminal writers safe:
	// whichever write commits first wins, and the loser's conditional
	// update matches zero rows. Returns ErrStatusConflict when the stored
	// status moved, ErrTaskNotFound when the task does not exist, and
	// ErrPayloadTooLarge when the serialized result exceeds MaxResultBytes.
	UpdateTask(ctx context.Context, task *domain.Task, expectedStatus domain.TaskStatus) error

	// DequeueNext atomically claims the oldest pending task, transitioning
	// it to processing before returning it. Returns ErrNoPendingTasks when
	// no task is eligible.
	DequeueNext(ctx context.Context) (*domain.Task, error)

	// GetProcessingTasks retrieves tasks in processing state. If olderThan is
	// non-zero, only tasks whose updated_at is older than the duration are
	// returned. Used for startup recovery of interrupted work.
	GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]*domain.Task, error)

	// DeleteExpired removes all tasks whose expires_at precedes now and
	// returns the number of records deleted.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// WithTx returns a new TaskStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller.
	WithTx(tx *sql.Tx) TaskStore
}
