// Package schedule drives the timer-based jobs: the 15-minute external
// reading poll and the daily digest.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kentwatersensors/floodwatch/internal/observability"
)

// Job is one unit of scheduled work. Errors are logged and never stop the
// schedule; the next tick retries naturally.
type Job func(ctx context.Context) error

// Scheduler runs jobs on wall-clock schedules. The clock is injectable so
// tests can advance time deterministically.
type Scheduler struct {
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates a Scheduler.
func New(clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Scheduler {
	return &Scheduler{clock: clock, metrics: metrics, logger: logger}
}

// Every runs the job once at start (when runAtStart is set) and then on every
// interval tick until the context is cancelled. A tick that arrives while the
// previous run is still active is skipped, never run concurrently.
func (s *Scheduler) Every(ctx context.Context, name string, interval time.Duration, runAtStart bool, job Job) {
	var running atomic.Bool

	launch := func() {
		if !running.CompareAndSwap(false, true) {
			s.metrics.JobTicksSkipped.WithLabelValues(name).Inc()
			s.logger.Warn("job still running, skipping tick", "job", name)
			return
		}
		go func() {
			defer running.Store(false)
			s.runOnce(ctx, name, job)
		}()
	}

	if runAtStart {
		launch()
	}

	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("schedule stopping", "job", name, "reason", ctx.Err())
			return
		case <-ticker.Chan():
			launch()
		}
	}
}

// DailyAt runs the job every day at hour:minute in local time until the
// context is cancelled. Runs execute inline; the next occurrence is computed
// after the current run finishes, so runs never overlap.
func (s *Scheduler) DailyAt(ctx context.Context, name string, hour, minute int, job Job) {
	for {
		now := s.clock.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}

		select {
		case <-ctx.Done():
			s.logger.Info("schedule stopping", "job", name, "reason", ctx.Err())
			return
		case <-s.clock.After(next.Sub(now)):
			s.runOnce(ctx, name, job)
		}
	}
}

// runOnce executes a single job run, containing panics and errors so a bad
// cycle cannot terminate the schedule.
func (s *Scheduler) runOnce(ctx context.Context, name string, job Job) {
	start := s.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked", "job", name, "panic", fmt.Sprint(r))
		}
		s.metrics.JobDuration.WithLabelValues(name).Observe(s.clock.Since(start).Seconds())
	}()

	if err := job(ctx); err != nil {
		s.logger.Error("job run failed", "job", name, "error", err)
	}
}
