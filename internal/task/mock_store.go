package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/docpolish/docpolish-api/internal/domain"
	"github.com/docpolish/docpolish-api/internal/store"
	"github.com/google/uuid"
)

// MockTaskStore is an in-memory store.TaskStore for tests. Each operation
// has an overridable function field; when unset, a map-backed default
// behavior applies, including the store's result size limit.
type MockTaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.Task

	CreateFn        func(ctx context.Context, task *domain.Task) error
	GetFn           func(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	UpdateFn        func(ctx context.Context, task *domain.Task, expectedStatus domain.TaskStatus) error
	DequeueFn       func(ctx context.Context) (*domain.Task, error)
	GetProcessingFn func(ctx context.Context, olderThan time.Duration) ([]*domain.Task, error)
	DeleteExpiredFn func(ctx context.Context, now time.Time) (int64, error)

	UpdateCalls        int
	DeleteExpiredCalls int
}

// NewMockTaskStore creates an empty MockTaskStore.
func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{
		tasks: make(map[uuid.UUID]*domain.Task),
	}
}

// CreateTask implements store.TaskStore.
func (m *MockTaskStore) CreateTask(ctx context.Context, task *domain.Task) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, task)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *task
	m.tasks[task.ID] = &clone
	return nil
}

// GetTask implements store.TaskStore.
func (m *MockTaskStore) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrTaskNotFound, id)
	}

	clone := *task
	return &clone, nil
}

// UpdateTask implements store.TaskStore, enforcing the result size limit and
// the conditional-write guard the real store applies.
func (m *MockTaskStore) UpdateTask(
	ctx context.Context,
	task *domain.Task,
	expectedStatus domain.TaskStatus,
) error {
	m.mu.Lock()
	m.UpdateCalls++
	m.mu.Unlock()

	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, task, expectedStatus)
	}

	if task.Result != nil {
		data, err := json.Marshal(task.Result)
		if err != nil {
			return err
		}
		if len(data) > store.MaxResultBytes {
			return fmt.Errorf("%w: result is %d bytes", store.ErrPayloadTooLarge, len(data))
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.tasks[task.ID]
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrTaskNotFound, task.ID)
	}
	if current.Status != expectedStatus {
		return fmt.Errorf("%w: expected %s, task is %s",
			store.ErrStatusConflict, expectedStatus, current.Status)
	}

	clone := *task
	m.tasks[task.ID] = &clone
	return nil
}

// DequeueNext implements store.TaskStore: oldest pending first, claimed into
// processing before being returned.
func (m *MockTaskStore) DequeueNext(ctx context.Context) (*domain.Task, error) {
	if m.DequeueFn != nil {
		return m.DequeueFn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var pending []*domain.Task
	for _, t := range m.tasks {
		if t.Status == domain.TaskStatusPending {
			pending = append(pending, t)
		}
	}
	if len(pending) == 0 {
		return nil, store.ErrNoPendingTasks
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	claimed := pending[0]
	claimed.Status = domain.TaskStatusProcessing
	claimed.UpdatedAt = time.Now().UTC()

	clone := *claimed
	return &clone, nil
}

// GetProcessingTasks implements store.TaskStore.
func (m *MockTaskStore) GetProcessingTasks(
	ctx context.Context,
	olderThan time.Duration,
) ([]*domain.Task, error) {
	if m.GetProcessingFn != nil {
		return m.GetProcessingFn(ctx, olderThan)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)

	var tasks []*domain.Task
	for _, t := range m.tasks {
		if t.Status != domain.TaskStatusProcessing {
			continue
		}
		if olderThan > 0 && !t.UpdatedAt.Before(cutoff) {
			continue
		}
		clone := *t
		tasks = append(tasks, &clone)
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}

// DeleteExpired implements store.TaskStore.
func (m *MockTaskStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	m.DeleteExpiredCalls++
	m.mu.Unlock()

	if m.DeleteExpiredFn != nil {
		return m.DeleteExpiredFn(ctx, now)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for id, t := range m.tasks {
		if t.ExpiresAt.Before(now) {
			delete(m.tasks, id)
			deleted++
		}
	}
	return deleted, nil
}

// WithTx implements store.TaskStore; the mock has no transactions.
func (m *MockTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return m
}
