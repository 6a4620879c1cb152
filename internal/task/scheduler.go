package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/docpolish/docpolish-api/internal/domain"
	"github.com/docpolish/docpolish-api/internal/store"
)

// Scheduler selects the next eligible task from the store, oldest pending
// first, and claims it. The claim is the store's own atomic conditional
// update, so two scheduler instances racing on the same row cannot both win.
type Scheduler struct {
	store  store.TaskStore
	logger *slog.Logger
}

// NewScheduler creates a Scheduler.
func NewScheduler(taskStore store.TaskStore, logger *slog.Logger) (*Scheduler, error) {
	if taskStore == nil {
		return nil, ErrNilTaskStore
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	return &Scheduler{
		store:  taskStore,
		logger: logger,
	}, nil
}

// DequeueNext returns at most one claimed task, already transitioned to
// processing. When no pending task exists it returns (nil, nil) rather than
// blocking; callers re-poll on their own interval.
func (s *Scheduler) DequeueNext(ctx context.Context) (*domain.Task, error) {
	task, err := s.store.DequeueNext(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNoPendingTasks) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue next task: %w", err)
	}

	s.logger.Info("claimed task",
		"task_id", task.ID,
		"created_at", task.CreatedAt)

	return task, nil
}
