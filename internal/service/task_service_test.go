package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docpolish/docpolish-api/internal/domain"
	"github.com/docpolish/docpolish-api/internal/task"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, mockStore *task.MockTaskStore) *TaskService {
	t.Helper()

	writer, err := task.NewTransitionWriter(mockStore, testLogger())
	require.NoError(t, err)

	svc, err := NewTaskService(mockStore, writer, 24*time.Hour, 5*time.Minute, testLogger())
	require.NoError(t, err)
	return svc
}

func TestTaskServiceCreateTask(t *testing.T) {
	t.Parallel()

	t.Run("valid payload yields a pending task", func(t *testing.T) {
		t.Parallel()

		mockStore := task.NewMockTaskStore()
		svc := newTestService(t, mockStore)

		created, err := svc.CreateTask(context.Background(), domain.TaskPayload{
			DocumentID:   "doc-1",
			OutputFormat: "html",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusPending, created.Status)

		stored, err := mockStore.GetTask(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, stored.ID)
	})

	t.Run("invalid payload is a validation error", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t, task.NewMockTaskStore())

		_, err := svc.CreateTask(context.Background(), domain.TaskPayload{})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("store failure fails the request, no orphan task", func(t *testing.T) {
		t.Parallel()

		mockStore := task.NewMockTaskStore()
		mockStore.CreateFn = func(ctx context.Context, t *domain.Task) error {
			return errors.New("connection refused")
		}
		svc := newTestService(t, mockStore)

		_, err := svc.CreateTask(context.Background(), domain.TaskPayload{
			DocumentID:   "doc-1",
			OutputFormat: "html",
		})
		assert.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrValidation)
	})
}

func TestTaskServiceGetTask(t *testing.T) {
	t.Parallel()

	t.Run("unknown task maps to not found", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t, task.NewMockTaskStore())

		_, _, err := svc.GetTask(context.Background(), uuid.New())
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})

	t.Run("progress derivation per status", func(t *testing.T) {
		t.Parallel()

		mockStore := task.NewMockTaskStore()
		svc := newTestService(t, mockStore)

		seed := func(status domain.TaskStatus) uuid.UUID {
			created, err := domain.NewTask(domain.TaskPayload{
				DocumentID:   "doc-1",
				OutputFormat: "html",
			}, time.Hour)
			require.NoError(t, err)
			created.Status = status
			require.NoError(t, mockStore.CreateTask(context.Background(), created))
			return created.ID
		}

		cases := []struct {
			status domain.TaskStatus
			want   int
		}{
			{domain.TaskStatusPending, 0},
			{domain.TaskStatusCompleted, 100},
			{domain.TaskStatusFailed, 0},
			{domain.TaskStatusCancelled, 0},
		}
		for _, tc := range cases {
			id := seed(tc.status)
			_, progress, err := svc.GetTask(context.Background(), id)
			require.NoError(t, err)
			assert.Equal(t, tc.want, progress, "status %s", tc.status)
		}
	})

	t.Run("processing progress grows with elapsed time, capped", func(t *testing.T) {
		t.Parallel()

		mockStore := task.NewMockTaskStore()
		svc := newTestService(t, mockStore)

		created, err := domain.NewTask(domain.TaskPayload{
			DocumentID:   "doc-1",
			OutputFormat: "html",
		}, time.Hour)
		require.NoError(t, err)
		created.Status = domain.TaskStatusProcessing
		require.NoError(t, mockStore.CreateTask(context.Background(), created))

		// Just claimed: essentially zero progress.
		_, early, err := svc.GetTask(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Less(t, early, 5)

		// Nominal time is 5m; 2.5m elapsed should read ~50%.
		created.UpdatedAt = time.Now().UTC().Add(-150 * time.Second)
		require.NoError(t, mockStore.UpdateTask(context.Background(), created, domain.TaskStatusProcessing))

		_, mid, err := svc.GetTask(context.Background(), created.ID)
		require.NoError(t, err)
		assert.InDelta(t, 50, mid, 3)

		// Far past nominal time: capped below completion.
		created.UpdatedAt = time.Now().UTC().Add(-time.Hour)
		require.NoError(t, mockStore.UpdateTask(context.Background(), created, domain.TaskStatusProcessing))

		_, late, err := svc.GetTask(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, 95, late)
	})
}

func TestTaskServiceCancelTask(t *testing.T) {
	t.Parallel()

	t.Run("pending task is cancellable", func(t *testing.T) {
		t.Parallel()

		mockStore := task.NewMockTaskStore()
		svc := newTestService(t, mockStore)

		created, err := svc.CreateTask(context.Background(), domain.TaskPayload{
			DocumentID:   "doc-1",
			OutputFormat: "html",
		})
		require.NoError(t, err)

		require.NoError(t, svc.CancelTask(context.Background(), created.ID))

		stored, _, err := svc.GetTask(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusCancelled, stored.Status)
	})

	t.Run("terminal task is not cancellable", func(t *testing.T) {
		t.Parallel()

		mockStore := task.NewMockTaskStore()
		svc := newTestService(t, mockStore)

		created, err := domain.NewTask(domain.TaskPayload{
			DocumentID:   "doc-1",
			OutputFormat: "html",
		}, time.Hour)
		require.NoError(t, err)
		created.Status = domain.TaskStatusCompleted
		require.NoError(t, mockStore.CreateTask(context.Background(), created))

		err = svc.CancelTask(context.Background(), created.ID)
		assert.ErrorIs(t, err, ErrTaskNotCancellable)
	})

	t.Run("unknown task maps to not found", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t, task.NewMockTaskStore())

		err := svc.CancelTask(context.Background(), uuid.New())
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})
}
