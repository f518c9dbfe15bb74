// Package scheduler triggers reconciliation runs.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"topicpush/internal/reconcile"
	"topicpush/internal/runlock"
)

// Runner performs one reconciliation run.
type Runner interface {
	RunOnce(ctx context.Context) (reconcile.Result, error)
}

// Reporter publishes the outcome of a run.
type Reporter interface {
	Report(ctx context.Context, res reconcile.Result, runErr error)
}

// Scheduler runs reconciliation once or on a fixed interval.
type Scheduler struct {
	runner   Runner
	lock     runlock.Locker
	reporter Reporter
	log      *slog.Logger
	tick     time.Duration
}

// New creates a Scheduler with the default 24-hour interval.
func New(runner Runner, lock runlock.Locker, reporter Reporter, log *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		lock:     lock,
		reporter: reporter,
		log:      log,
		tick:     24 * time.Hour,
	}
}

// SetTickInterval overrides the default interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.tick = d
}

// Run starts the scheduler loop, blocking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	_ = s.Tick(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.Tick(ctx)
		}
	}
}

// Tick performs one guarded run. A run skipped because another one holds
// the lock is not an error.
func (s *Scheduler) Tick(ctx context.Context) error {
	release, err := s.lock.Acquire(ctx)
	if errors.Is(err, runlock.ErrLocked) {
		s.log.Info("skipping run, another run is in progress")
		return nil
	}
	if err != nil {
		s.log.Error("acquire run lock", "error", err)
		return err
	}
	defer func() {
		// Release even when ctx was cancelled mid-run.
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.log.Error("release run lock", "error", err)
		}
	}()

	start := time.Now()
	res, err := s.runner.RunOnce(ctx)
	if err != nil {
		s.log.Error("run failed", "run_id", res.RunID, "error", err)
	} else {
		s.log.Debug("run took", "run_id", res.RunID, "elapsed", time.Since(start))
	}
	s.reporter.Report(ctx, res, err)
	return err
}
