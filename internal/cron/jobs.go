package cron

import (
	"context"
	"log/slog"
	"time"
)

// SlotPruner is the part of the execution controller the prune job needs.
type SlotPruner interface {
	PruneIdle(maxIdle time.Duration) int
}

// SlotPruneJob forgets per-user slot entries idle longer than MaxIdle.
type SlotPruneJob struct {
	Controller   SlotPruner
	MaxIdle      time.Duration
	ScheduleExpr string // empty = "@every 10m"
	Logger       *slog.Logger
}

// Compile-time interface check.
var _ Job = (*SlotPruneJob)(nil)

// Name implements Job.
func (j *SlotPruneJob) Name() string { return "slot_prune" }

// Schedule implements Job.
func (j *SlotPruneJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "@every 10m"
}

// Run implements Job.
func (j *SlotPruneJob) Run(_ context.Context) error {
	if n := j.Controller.PruneIdle(j.MaxIdle); n > 0 && j.Logger != nil {
		j.Logger.Info("cron: pruned idle slots", "count", n)
	}
	return nil
}
