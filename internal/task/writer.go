package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/docpolish/docpolish-api/internal/domain"
	"github.com/docpolish/docpolish-api/internal/store"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

// Status writes are retried with a fixed short delay on transient store
// failures.
const (
	writeRetryAttempts = 3
	writeRetryDelay    = 500 * time.Millisecond
)

// TransitionWriter owns the legal transitions of a task record. It is the
// single write path for status changes: the scheduler, the worker, the
// watchdog, and external cancellation all go through it, which is what makes
// racing terminal writes safe.
type TransitionWriter struct {
	store  store.TaskStore
	logger *slog.Logger
}

// NewTransitionWriter creates a TransitionWriter.
func NewTransitionWriter(taskStore store.TaskStore, logger *slog.Logger) (*TransitionWriter, error) {
	if taskStore == nil {
		return nil, ErrNilTaskStore
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	return &TransitionWriter{
		store:  taskStore,
		logger: logger,
	}, nil
}

// Complete transitions a task into completed with the given result.
func (w *TransitionWriter) Complete(ctx context.Context, taskID uuid.UUID, result *domain.TaskResult) error {
	return w.Transition(ctx, taskID, domain.TaskStatusCompleted, result, "")
}

// Fail transitions a task into failed with the given error description.
func (w *TransitionWriter) Fail(ctx context.Context, taskID uuid.UUID, errMsg string) error {
	return w.Transition(ctx, taskID, domain.TaskStatusFailed, nil, errMsg)
}

// Cancel transitions a task into cancelled.
func (w *TransitionWriter) Cancel(ctx context.Context, taskID uuid.UUID) error {
	return w.Transition(ctx, taskID, domain.TaskStatusCancelled, nil, "cancelled by request")
}

// Transition validates and commits one status change. Re-applying the status
// a task already holds is a no-op success, not an error, so that the write
// path stays idempotent under retry and under the worker/watchdog race.
// Transitions out of a terminal state fail with domain.ErrInvalidTransition.
//
// The commit is conditional on the status the validation read: if a
// concurrent writer moved the task in between, the write is rejected and the
// transition re-validates against the fresh status. The state machine only
// moves forward, so the loop always reaches a no-op, an invalid transition,
// or a clean commit.
func (w *TransitionWriter) Transition(
	ctx context.Context,
	taskID uuid.UUID,
	newStatus domain.TaskStatus,
	result *domain.TaskResult,
	errMsg string,
) error {
	logger := w.logger.With("task_id", taskID, "new_status", newStatus)

	for {
		current, err := w.store.GetTask(ctx, taskID)
		if err != nil {
			return fmt.Errorf("failed to load task for transition: %w", err)
		}

		if current.Status == newStatus {
			logger.Debug("transition already applied, treating as no-op")
			return nil
		}

		if !current.Status.CanTransitionTo(newStatus) {
			return fmt.Errorf("%w: %s -> %s",
				domain.ErrInvalidTransition, current.Status, newStatus)
		}

		updated := *current
		updated.Status = newStatus
		updated.UpdatedAt = time.Now().UTC()

		// Status-specific fields: result only on completed, error only on
		// failed or cancelled.
		updated.Result = nil
		if newStatus == domain.TaskStatusCompleted {
			updated.Result = result
		}
		if newStatus == domain.TaskStatusFailed || newStatus == domain.TaskStatusCancelled {
			updated.ErrorMessage = domain.CapErrorMessage(errMsg)
		}

		err = w.write(ctx, &updated, current.Status)
		if errors.Is(err, store.ErrStatusConflict) {
			logger.Debug("status changed under transition, re-validating",
				"read_status", current.Status)
			continue
		}
		if err != nil {
			logger.Error("failed to commit transition, task left in last written state",
				"error", err)
			return err
		}

		logger.Info("task transitioned", "from_status", current.Status)
		return nil
	}
}

// write commits the task with fixed-delay retry on transient failures and
// result degradation on size rejection. The terminal status itself is never
// dropped: if the full result does not fit, a shrunk one is written instead.
func (w *TransitionWriter) write(
	ctx context.Context,
	task *domain.Task,
	expectedStatus domain.TaskStatus,
) error {
	err := w.writeWithRetry(ctx, task, expectedStatus)
	if err == nil || !errors.Is(err, store.ErrPayloadTooLarge) {
		return err
	}

	// Degrade step 1: drop the inline content, keep the storage reference.
	w.logger.Warn("result exceeds store size limit, degrading",
		"task_id", task.ID)
	degraded := *task
	degraded.Result = degradeResult(task.Result)

	err = w.writeWithRetry(ctx, &degraded, expectedStatus)
	if err == nil || !errors.Is(err, store.ErrPayloadTooLarge) {
		return err
	}

	// Degrade step 2: minimal result shape.
	w.logger.Warn("degraded result still too large, writing minimal result",
		"task_id", task.ID)
	minimal := *task
	minimal.Result = minimalResult(task.Result)

	return w.writeWithRetry(ctx, &minimal, expectedStatus)
}

// writeWithRetry retries transient store failures; not-found, size, conflict,
// and validation errors surface immediately.
func (w *TransitionWriter) writeWithRetry(
	ctx context.Context,
	task *domain.Task,
	expectedStatus domain.TaskStatus,
) error {
	backoff := retry.WithMaxRetries(writeRetryAttempts, retry.NewConstant(writeRetryDelay))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := w.store.UpdateTask(ctx, task, expectedStatus)
		if err == nil {
			return nil
		}
		if errors.Is(err, store.ErrTaskNotFound) ||
			errors.Is(err, store.ErrPayloadTooLarge) ||
			errors.Is(err, store.ErrStatusConflict) {
			return err
		}
		return retry.RetryableError(err)
	})
}

// degradeResult drops the large sub-fields of a result while preserving the
// output reference.
func degradeResult(result *domain.TaskResult) *domain.TaskResult {
	if result == nil {
		return nil
	}

	degraded := *result
	degraded.Content = ""
	degraded.Degraded = true
	return &degraded
}

// minimalResult keeps only what a caller needs to retrieve the output.
func minimalResult(result *domain.TaskResult) *domain.TaskResult {
	if result == nil {
		return nil
	}

	return &domain.TaskResult{
		OutputKey:      result.OutputKey,
		OutputFilename: result.OutputFilename,
		Degraded:       true,
		CompletedAt:    result.CompletedAt,
	}
}
