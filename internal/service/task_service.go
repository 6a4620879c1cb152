// Package service provides the task lifecycle operations consumed by
// external callers.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/docpolish/docpolish-api/internal/domain"
	"github.com/docpolish/docpolish-api/internal/store"
	"github.com/docpolish/docpolish-api/internal/task"
	"github.com/google/uuid"
)

// Common sentinel errors for TaskService
var (
	// ErrTaskNotFound indicates that the task does not exist.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskNotCancellable indicates the task is already terminal.
	ErrTaskNotCancellable = errors.New("task cannot be cancelled")
)

// TaskService provides the task lifecycle interface: create a task from a
// payload, read its status with a derived progress percentage, request
// cancellation.
type TaskService struct {
	taskStore   store.TaskStore
	writer      *task.TransitionWriter
	retention   time.Duration
	nominalTime time.Duration
	logger      *slog.Logger
}

// NewTaskService creates a TaskService. nominalTime is the expected task
// duration used for progress estimation, typically the watchdog bound.
func NewTaskService(
	taskStore store.TaskStore,
	writer *task.TransitionWriter,
	retention time.Duration,
	nominalTime time.Duration,
	logger *slog.Logger,
) (*TaskService, error) {
	if taskStore == nil {
		return nil, task.ErrNilTaskStore
	}
	if writer == nil {
		return nil, task.ErrNilWriter
	}
	if logger == nil {
		return nil, task.ErrNilLogger
	}

	return &TaskService{
		taskStore:   taskStore,
		writer:      writer,
		retention:   retention,
		nominalTime: nominalTime,
		logger:      logger,
	}, nil
}

// CreateTask validates the payload and persists a pending task. Creation is
// atomic: a store failure fails the request rather than leaving a task
// visible to the caller but absent from the store.
func (s *TaskService) CreateTask(ctx context.Context, payload domain.TaskPayload) (*domain.Task, error) {
	newTask, err := domain.NewTask(payload, s.retention)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if err := s.taskStore.CreateTask(ctx, newTask); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.logger.Info("task created",
		"task_id", newTask.ID,
		"output_format", payload.OutputFormat,
		"expires_at", newTask.ExpiresAt)

	return newTask, nil
}

// GetTask retrieves a task with its derived progress percentage.
func (s *TaskService) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, int, error) {
	t, err := s.taskStore.GetTask(ctx, id)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, 0, wrapWithID(ErrTaskNotFound, id)
		}
		return nil, 0, fmt.Errorf("failed to get task: %w", err)
	}

	return t, s.progress(t), nil
}

// CancelTask requests cancellation of a task. A task already in a terminal
// state is not cancellable.
func (s *TaskService) CancelTask(ctx context.Context, id uuid.UUID) error {
	err := s.writer.Cancel(ctx, id)
	if err == nil {
		return nil
	}

	if store.IsNotFoundError(err) {
		return wrapWithID(ErrTaskNotFound, id)
	}
	if errors.Is(err, domain.ErrInvalidTransition) {
		return fmt.Errorf("%w: %s", ErrTaskNotCancellable, id)
	}
	return fmt.Errorf("failed to cancel task: %w", err)
}

// progress derives a progress percentage: 0 while pending, an elapsed-time
// estimate capped at 95 while processing, 100 when completed, 0 otherwise.
func (s *TaskService) progress(t *domain.Task) int {
	switch t.Status {
	case domain.TaskStatusCompleted:
		return 100
	case domain.TaskStatusProcessing:
		if s.nominalTime <= 0 {
			return 0
		}
		elapsed := time.Since(t.UpdatedAt)
		pct := int(elapsed * 100 / s.nominalTime)
		if pct > 95 {
			pct = 95
		}
		if pct < 0 {
			pct = 0
		}
		return pct
	default:
		return 0
	}
}

func wrapWithID(sentinel error, id uuid.UUID) error {
	return fmt.Errorf("%w: %s", sentinel, id)
}
