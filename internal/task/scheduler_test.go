package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docpolish/docpolish-api/internal/domain"
)

func TestSchedulerDequeueNext(t *testing.T) {
	t.Parallel()

	t.Run("empty queue yields no task and no error", func(t *testing.T) {
		t.Parallel()

		scheduler, err := NewScheduler(NewMockTaskStore(), testLogger())
		require.NoError(t, err)

		task, err := scheduler.DequeueNext(context.Background())
		assert.NoError(t, err)
		assert.Nil(t, task)
	})

	t.Run("oldest pending task is claimed first", func(t *testing.T) {
		t.Parallel()

		mockStore := NewMockTaskStore()
		scheduler, err := NewScheduler(mockStore, testLogger())
		require.NoError(t, err)

		oldest := seedTask(t, mockStore, domain.TaskStatusPending)
		middle := seedTask(t, mockStore, domain.TaskStatusPending)
		newest := seedTask(t, mockStore, domain.TaskStatusPending)

		// Creation order is the queue order regardless of map iteration.
		backdate(t, mockStore, oldest.ID, -3*time.Minute)
		backdate(t, mockStore, middle.ID, -2*time.Minute)
		backdate(t, mockStore, newest.ID, -1*time.Minute)

		for _, want := range []*domain.Task{oldest, middle, newest} {
			claimed, err := scheduler.DequeueNext(context.Background())
			require.NoError(t, err)
			require.NotNil(t, claimed)
			assert.Equal(t, want.ID, claimed.ID)
			assert.Equal(t, domain.TaskStatusProcessing, claimed.Status)
		}

		task, err := scheduler.DequeueNext(context.Background())
		assert.NoError(t, err)
		assert.Nil(t, task)
	})

	t.Run("completed and cancelled tasks are never claimed", func(t *testing.T) {
		t.Parallel()

		mockStore := NewMockTaskStore()
		scheduler, err := NewScheduler(mockStore, testLogger())
		require.NoError(t, err)

		seedTask(t, mockStore, domain.TaskStatusCompleted)
		seedTask(t, mockStore, domain.TaskStatusCancelled)
		seedTask(t, mockStore, domain.TaskStatusProcessing)

		task, err := scheduler.DequeueNext(context.Background())
		assert.NoError(t, err)
		assert.Nil(t, task)
	})

	t.Run("store failure surfaces as an error", func(t *testing.T) {
		t.Parallel()

		mockStore := NewMockTaskStore()
		mockStore.DequeueFn = func(ctx context.Context) (*domain.Task, error) {
			return nil, errors.New("connection refused")
		}

		scheduler, err := NewScheduler(mockStore, testLogger())
		require.NoError(t, err)

		task, err := scheduler.DequeueNext(context.Background())
		assert.Error(t, err)
		assert.Nil(t, task)
	})
}

// backdate shifts a stored task's creation time to pin queue ordering.
func backdate(t *testing.T, s *MockTaskStore, id uuid.UUID, by time.Duration) {
	t.Helper()

	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		t.Fatalf("task %s not found", id)
	}
	task.CreatedAt = task.CreatedAt.Add(by)
}
