package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/docpolish/docpolish-api/internal/store"
	"github.com/sethvargo/go-retry"
)

// Sweeper sweep retry bounds.
const (
	sweepRetryBase = time.Second
	sweepRetryMax  = 4
)

// Sweeper periodically deletes expired task records. A failed sweep is
// logged and retried on the next interval tick; it has no user-visible
// failure surface.
type Sweeper struct {
	store    store.TaskStore
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper running on the given interval.
func NewSweeper(taskStore store.TaskStore, interval time.Duration, logger *slog.Logger) (*Sweeper, error) {
	if taskStore == nil {
		return nil, ErrNilTaskStore
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	return &Sweeper{
		store:    taskStore,
		interval: interval,
		logger:   logger,
	}, nil
}

// Run sweeps once immediately, then on every interval tick until the context
// is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("sweeper stopping")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Sweep deletes expired records with bounded exponential backoff and returns
// the number deleted. Exposed for direct invocation in tests and tooling.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	var deleted int64

	backoff := retry.WithMaxRetries(sweepRetryMax, retry.NewExponential(sweepRetryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		n, err := s.store.DeleteExpired(ctx, time.Now().UTC())
		if err != nil {
			return retry.RetryableError(err)
		}
		deleted = n
		return nil
	})

	return deleted, err
}

func (s *Sweeper) sweep(ctx context.Context) {
	deleted, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error("expiry sweep failed, will retry next interval", "error", err)
		return
	}

	if deleted > 0 {
		s.logger.Info("swept expired tasks", "deleted", deleted)
	}
}
