package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docpolish/docpolish-api/internal/domain"
)

// RunnerConfig holds configuration for the polling runner.
type RunnerConfig struct {
	// PollInterval is how often the runner checks for pending work.
	PollInterval time.Duration

	// TaskTimeout is the per-task wall-clock bound enforced by the watchdog.
	TaskTimeout time.Duration
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		PollInterval: 5 * time.Second,
		TaskTimeout:  5 * time.Minute,
	}
}

// Runner drives the pipeline as a single cooperative scheduling loop:
// timer tick, dequeue at most one task, execute it to completion, repeat.
// Cycles are serialized; the system targets at-most-one-active-task
// semantics, not parallel job execution.
type Runner struct {
	scheduler  *Scheduler
	worker     *Worker
	watchdog   *Watchdog
	writer     *TransitionWriter
	config     RunnerConfig
	logger     *slog.Logger
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewRunner creates a Runner from the pipeline components.
func NewRunner(
	scheduler *Scheduler,
	worker *Worker,
	watchdog *Watchdog,
	writer *TransitionWriter,
	config RunnerConfig,
	logger *slog.Logger,
) (*Runner, error) {
	if scheduler == nil {
		return nil, fmt.Errorf("scheduler cannot be nil")
	}
	if worker == nil {
		return nil, fmt.Errorf("worker cannot be nil")
	}
	if watchdog == nil {
		return nil, fmt.Errorf("watchdog cannot be nil")
	}
	if writer == nil {
		return nil, ErrNilWriter
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		scheduler:  scheduler,
		worker:     worker,
		watchdog:   watchdog,
		writer:     writer,
		config:     config,
		logger:     logger,
		ctx:        ctx,
		cancelFunc: cancel,
	}, nil
}

// Start recovers work interrupted by a previous run, then begins the polling
// loop.
func (r *Runner) Start() error {
	if err := r.recover(); err != nil {
		return fmt.Errorf("failed to recover interrupted tasks: %w", err)
	}

	r.wg.Add(1)
	go r.loop()

	r.logger.Info("task runner started",
		"poll_interval", r.config.PollInterval,
		"task_timeout", r.config.TaskTimeout)
	return nil
}

// Stop shuts the runner down and waits for an in-flight cycle to finish.
func (r *Runner) Stop() {
	r.cancelFunc()
	r.wg.Wait()
	r.logger.Info("task runner stopped")
}

// RunOnce performs one dequeue-and-execute cycle. Returns the executed task's
// presence so external triggers can report a no-op versus an acknowledgement.
func (r *Runner) RunOnce(ctx context.Context) (bool, error) {
	task, err := r.scheduler.DequeueNext(ctx)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}

	disarm := r.watchdog.Arm(task.ID)
	defer disarm()

	// The worker decides the terminal state itself; an execution error here
	// has already been recorded against the task.
	if err := r.worker.ExecuteTask(ctx, task); err != nil {
		r.logger.Debug("task cycle finished with failure", "task_id", task.ID)
	}

	return true, nil
}

// TriggerOnce claims at most one pending task and executes it in the
// background, returning the claimed task immediately so the caller can
// acknowledge the claim. Returns nil when no pending task exists.
func (r *Runner) TriggerOnce(ctx context.Context) (*domain.Task, error) {
	task, err := r.scheduler.DequeueNext(ctx)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, nil
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		disarm := r.watchdog.Arm(task.ID)
		defer disarm()

		// Detached from the triggering request; execution outlives it.
		if err := r.worker.ExecuteTask(r.ctx, task); err != nil {
			r.logger.Debug("triggered task finished with failure", "task_id", task.ID)
		}
	}()

	return task, nil
}

// loop is the cooperative polling loop.
func (r *Runner) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RunOnce(r.ctx); err != nil {
				r.logger.Error("dequeue cycle failed", "error", err)
			}
		}
	}
}

// recover force-fails tasks stuck in processing from a crashed run. Only
// tasks older than the watchdog bound are touched; younger ones may still
// be racing a live watchdog in another instance.
func (r *Runner) recover() error {
	ctx := r.ctx

	stuck, err := r.scheduler.store.GetProcessingTasks(ctx, r.config.TaskTimeout)
	if err != nil {
		return err
	}

	if len(stuck) == 0 {
		return nil
	}

	r.logger.Info("recovering interrupted tasks", "count", len(stuck))

	for _, t := range stuck {
		if err := r.writer.Fail(ctx, t.ID, "processing interrupted by restart"); err != nil {
			r.logger.Error("failed to fail interrupted task",
				"task_id", t.ID,
				"error", err)
		}
	}

	return nil
}
