package aggregation

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
)

// Scheduler drives the Jobs on the cadence §4.11 calls for: "a scheduler
// runs each job at its own interval." Grounded on partition.Manager's
// StartScheduler, which established robfig/cron/v3 as this codebase's
// scheduled-job mechanism instead of a hand-rolled ticker loop.
type Scheduler struct {
	jobs *Jobs
	cron *cron.Cron
}

func NewScheduler(jobs *Jobs) *Scheduler {
	return &Scheduler{jobs: jobs}
}

// Start runs every hourly rollup job once immediately, then on an hourly
// cadence, and the cache warmers every 5 minutes so cached reads stay
// fresh well inside their TTLs (§4.11).
func (s *Scheduler) Start(ctx context.Context) error {
	s.jobs.RunHourly(ctx)
	s.jobs.RunCacheWarmers(ctx)

	s.cron = cron.New()
	if _, err := s.cron.AddFunc("@hourly", func() {
		runCtx := context.Background()
		s.jobs.RunHourly(runCtx)
	}); err != nil {
		return fmt.Errorf("register hourly aggregation job: %w", err)
	}
	if _, err := s.cron.AddFunc("*/5 * * * *", func() {
		runCtx := context.Background()
		s.jobs.RunCacheWarmers(runCtx)
	}); err != nil {
		return fmt.Errorf("register cache warmer job: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler, if running.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}
