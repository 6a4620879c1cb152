package task

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docpolish/docpolish-api/internal/domain"
)

func newTestRunner(t *testing.T, mockStore *MockTaskStore, cfg RunnerConfig) *Runner {
	t.Helper()

	writer, err := NewTransitionWriter(mockStore, testLogger())
	require.NoError(t, err)

	scheduler, err := NewScheduler(mockStore, testLogger())
	require.NoError(t, err)

	worker := newTestWorker(t, mockStore, newStubDocuments(), &stubRewriter{})

	watchdog, err := NewWatchdog(writer, cfg.TaskTimeout, testLogger())
	require.NoError(t, err)

	runner, err := NewRunner(scheduler, worker, watchdog, writer, cfg, testLogger())
	require.NoError(t, err)
	return runner
}

func TestRunnerRunOnce(t *testing.T) {
	t.Parallel()

	t.Run("executes one pending task to completion", func(t *testing.T) {
		t.Parallel()

		mockStore := NewMockTaskStore()
		runner := newTestRunner(t, mockStore, DefaultRunnerConfig())

		task, err := domain.NewTask(domain.TaskPayload{
			DocumentID:   "doc",
			OutputFormat: "html",
			InlineHTML:   "<p>body</p>",
		}, time.Hour)
		require.NoError(t, err)
		require.NoError(t, mockStore.CreateTask(context.Background(), task))

		ran, err := runner.RunOnce(context.Background())
		require.NoError(t, err)
		assert.True(t, ran)

		stored, err := mockStore.GetTask(context.Background(), task.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusCompleted, stored.Status)
	})

	t.Run("empty queue is a quiet no-op", func(t *testing.T) {
		t.Parallel()

		runner := newTestRunner(t, NewMockTaskStore(), DefaultRunnerConfig())

		ran, err := runner.RunOnce(context.Background())
		require.NoError(t, err)
		assert.False(t, ran)
	})
}

func TestRunnerTriggerOnce(t *testing.T) {
	t.Parallel()

	t.Run("acknowledges the claim and finishes in the background", func(t *testing.T) {
		t.Parallel()

		mockStore := NewMockTaskStore()
		runner := newTestRunner(t, mockStore, DefaultRunnerConfig())

		task, err := domain.NewTask(domain.TaskPayload{
			DocumentID:   "doc",
			OutputFormat: "html",
			InlineHTML:   "<p>body</p>",
		}, time.Hour)
		require.NoError(t, err)
		require.NoError(t, mockStore.CreateTask(context.Background(), task))

		claimed, err := runner.TriggerOnce(context.Background())
		require.NoError(t, err)
		require.NotNil(t, claimed)
		assert.Equal(t, task.ID, claimed.ID)
		assert.Equal(t, domain.TaskStatusProcessing, claimed.Status)

		require.Eventually(t, func() bool {
			stored, err := mockStore.GetTask(context.Background(), task.ID)
			return err == nil && stored.Status == domain.TaskStatusCompleted
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("no pending work yields a nil claim", func(t *testing.T) {
		t.Parallel()

		runner := newTestRunner(t, NewMockTaskStore(), DefaultRunnerConfig())

		claimed, err := runner.TriggerOnce(context.Background())
		require.NoError(t, err)
		assert.Nil(t, claimed)
	})
}

func TestRunnerRecovery(t *testing.T) {
	t.Parallel()

	t.Run("stale processing tasks are failed on start", func(t *testing.T) {
		t.Parallel()

		mockStore := NewMockTaskStore()
		cfg := RunnerConfig{PollInterval: time.Hour, TaskTimeout: time.Minute}
		runner := newTestRunner(t, mockStore, cfg)

		stale := seedTask(t, mockStore, domain.TaskStatusProcessing)
		mockStore.mu.Lock()
		mockStore.tasks[stale.ID].UpdatedAt = time.Now().UTC().Add(-2 * time.Minute)
		mockStore.mu.Unlock()

		fresh := seedTask(t, mockStore, domain.TaskStatusProcessing)

		require.NoError(t, runner.Start())
		defer runner.Stop()

		recovered, err := mockStore.GetTask(context.Background(), stale.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusFailed, recovered.Status)
		assert.Contains(t, recovered.ErrorMessage, "interrupted by restart")

		untouched, err := mockStore.GetTask(context.Background(), fresh.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusProcessing, untouched.Status)
	})
}
