package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Scheduler executes registered jobs on their schedules. A tick is skipped
// when the previous run of the same job has not returned yet.
type Scheduler struct {
	mu      sync.Mutex
	entries []*entry
	names   map[string]struct{}
	cron    *cron.Cron
	cancel  context.CancelFunc
	logger  *slog.Logger
}

type entry struct {
	job  Job
	busy sync.Mutex
}

// NewScheduler creates a scheduler. Jobs must be registered before Start.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		names:  make(map[string]struct{}),
		logger: logger,
	}
}

// ValidateSchedule reports whether expr is a 5-field cron expression or a
// descriptor such as "@every 10m".
func ValidateSchedule(expr string) error {
	_, err := parser.Parse(expr)
	return err
}

// RegisterJob validates the job's schedule and adds it.
func (s *Scheduler) RegisterJob(j Job) error {
	if err := ValidateSchedule(j.Schedule()); err != nil {
		return fmt.Errorf("cron: invalid schedule for job %q: %w", j.Name(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.names[j.Name()]; exists {
		return fmt.Errorf("cron: duplicate job name %q", j.Name())
	}
	s.names[j.Name()] = struct{}{}
	s.entries = append(s.entries, &entry{job: j})
	return nil
}

// Start begins executing registered jobs.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := cron.New(cron.WithParser(parser))
	for _, e := range s.entries {
		if _, err := c.AddFunc(e.job.Schedule(), func() { s.tick(ctx, e) }); err != nil {
			cancel()
			return fmt.Errorf("cron: scheduling job %q: %w", e.job.Name(), err)
		}
	}

	s.cron, s.cancel = c, cancel
	c.Start()
	s.logger.Info("cron: scheduler started", "jobs", len(s.entries))
	return nil
}

func (s *Scheduler) tick(ctx context.Context, e *entry) {
	if !e.busy.TryLock() {
		s.logger.Warn("cron: job still running, skipping tick", "job", e.job.Name())
		return
	}
	defer e.busy.Unlock()

	if err := e.job.Run(ctx); err != nil {
		s.logger.Error("cron: job failed", "job", e.job.Name(), "error", err)
	}
}

// Stop cancels running jobs and waits for them to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.mu.Unlock()

	if c == nil {
		return nil
	}
	cancel()
	select {
	case <-c.Stop().Done():
		s.logger.Info("cron: scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("cron: waiting for jobs: %w", ctx.Err())
	}
}
