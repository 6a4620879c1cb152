package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/docpolish/docpolish-api/internal/domain"
	"github.com/google/uuid"
)

// Watchdog force-fails a task whose worker does not reach a terminal state
// within the configured wall-clock bound. The watchdog's terminal write
// races against the worker's own; whichever lands first wins, since both go
// through the idempotent transition writer, and the loser is rejected by the
// terminal-state rule.
type Watchdog struct {
	writer  *TransitionWriter
	timeout time.Duration
	logger  *slog.Logger
}

// NewWatchdog creates a Watchdog enforcing the given per-task bound.
func NewWatchdog(writer *TransitionWriter, timeout time.Duration, logger *slog.Logger) (*Watchdog, error) {
	if writer == nil {
		return nil, ErrNilWriter
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	return &Watchdog{
		writer:  writer,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Arm starts a single-shot timer for the task and returns a disarm function.
// The caller must invoke disarm once the worker's own terminal write
// succeeds; disarming after the timer fired is a no-op.
func (d *Watchdog) Arm(taskID uuid.UUID) (disarm func()) {
	timer := time.NewTimer(d.timeout)
	done := make(chan struct{})

	go func() {
		select {
		case <-timer.C:
			d.logger.Warn("task exceeded timeout, force-failing",
				"task_id", taskID,
				"timeout", d.timeout)

			// Deliberately not the worker's context: the timeout write must
			// land even while the worker is still running.
			err := d.writer.Fail(context.Background(), taskID,
				fmt.Sprintf("task timed out after %s", d.timeout))
			if err != nil && !isAlreadyTerminal(err) {
				d.logger.Error("watchdog failed to record timeout",
					"task_id", taskID,
					"error", err)
			}
		case <-done:
			timer.Stop()
		}
	}()

	return func() { close(done) }
}

func isAlreadyTerminal(err error) bool {
	return errors.Is(err, domain.ErrInvalidTransition)
}
