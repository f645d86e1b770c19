// Package scheduler runs the pipeline kernel's jobs on independent
// recurring intervals: a time.NewTicker/select{ctx.Done(), ticker.C}
// loop per named job, since upload/batch/submit each run on their own
// schedule rather than one combined cycle.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
)

// JobFunc is one scheduled unit of work. forceRun and dryRun are always
// false for ticker-driven invocations; the control surface (A2) invokes
// jobs directly with either set for manual/dry runs instead of through
// the scheduler.
type JobFunc func(ctx context.Context, forceRun, dryRun bool) error

// Job pairs a named recurring task with the interval it runs on.
type Job struct {
	Name     string
	Interval time.Duration
	Run      JobFunc
}

// Scheduler drives each registered Job on its own ticker, concurrently,
// until the supplied context is cancelled.
type Scheduler struct {
	jobs   []Job
	logger lgr.L
}

// New builds a Scheduler over jobs. A nil logger falls back to lgr.NoOp.
func New(jobs []Job, logger lgr.L) *Scheduler {
	if logger == nil {
		logger = lgr.NoOp
	}
	return &Scheduler{jobs: jobs, logger: logger}
}

// Start blocks until ctx is cancelled, running every registered job on
// its own goroutine and ticker.
func (s *Scheduler) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, job := range s.jobs {
		wg.Add(1)
		go func(j Job) {
			defer wg.Done()
			s.runJobLoop(ctx, j)
		}(job)
	}
	wg.Wait()
}

func (s *Scheduler) runJobLoop(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	s.logger.Logf("INFO scheduler: %s started with interval %v", job.Name, job.Interval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Logf("INFO scheduler: %s stopped", job.Name)
			return
		case <-ticker.C:
			if err := job.Run(ctx, false, false); err != nil {
				s.logger.Logf("ERROR scheduler: %s run failed: %v", job.Name, err)
			}
		}
	}
}
