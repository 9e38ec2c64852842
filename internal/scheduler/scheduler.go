// Package scheduler runs the periodic jobs of the server and the worker on
// six-field cron expressions (seconds first).
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled task.
type Job func(ctx context.Context) error

// Scheduler manages all cron tasks.
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	timeout time.Duration

	mu   sync.Mutex
	jobs map[string]Job
}

// New creates a scheduler whose jobs run under ctx, each bounded by timeout
// when it is positive.
func New(ctx context.Context, timeout time.Duration) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		ctx:     ctx,
		timeout: timeout,
		jobs:    make(map[string]Job),
	}
}

// Register adds job under name at spec. Runs of the same job never overlap.
func (s *Scheduler) Register(name, spec string, job Job) error {
	s.mu.Lock()
	if _, dup := s.jobs[name]; dup {
		s.mu.Unlock()
		return fmt.Errorf("register %s task: already registered", name)
	}
	s.mu.Unlock()

	wrapped := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() { s.run(name, job) }))
	if _, err := s.cron.AddJob(spec, wrapped); err != nil {
		return fmt.Errorf("register %s task: %w", name, err)
	}

	s.mu.Lock()
	s.jobs[name] = job
	s.mu.Unlock()
	return nil
}

// RunNow executes a registered job immediately, as done at startup.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown task %q", name)
	}
	return s.run(name, job)
}

func (s *Scheduler) run(name string, job Job) error {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	slog.InfoContext(ctx, "Running scheduled task", "task", name)
	if err := job(ctx); err != nil {
		slog.ErrorContext(ctx, "Scheduled task failed", "task", name, "error", err, "duration", time.Since(start))
		return err
	}
	slog.InfoContext(ctx, "Scheduled task completed", "task", name, "duration", time.Since(start))
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("Scheduler started", "tasks", len(s.cron.Entries()))
}

// Stop stops the scheduler and waits for running tasks up to ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		slog.Info("Scheduler stopped")
	case <-ctx.Done():
		slog.Warn("Scheduler stop timed out")
	}
}
