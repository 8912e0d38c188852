// Package cron runs periodic maintenance jobs, such as reclaiming idle
// per-user slot entries.
package cron

import "context"

// Job defines a periodic background task.
type Job interface {
	// Name returns a unique identifier for this job.
	Name() string

	// Schedule returns a 5-field cron expression or a descriptor such as
	// "@every 10m".
	Schedule() string

	// Run executes the job. Implementations should honor ctx cancellation.
	Run(ctx context.Context) error
}
