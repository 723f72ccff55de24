package purge

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Scheduler re-drives the purge queue on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	purger *Purger
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler registers the purge job on schedule, e.g. "@every 5m".
// Overlapping runs are delayed rather than run concurrently.
func NewScheduler(purger *Purger, schedule string, logger *slog.Logger) (*Scheduler, error) {
	logger = logger.With("system", "cron")
	ctx, cancel := context.WithCancel(context.Background())

	c := cron.New(cron.WithChain(
		recoverWrapper(logger),
		cron.DelayIfStillRunning(cron.DiscardLogger),
	))
	s := &Scheduler{cron: c, purger: purger, logger: logger, ctx: ctx, cancel: cancel}

	if _, err := c.AddFunc(schedule, s.run); err != nil {
		cancel()
		return nil, err
	}
	logger.Info("registered purge job", "schedule", schedule)
	return s, nil
}

func (s *Scheduler) run() {
	log := s.logger.With("job_name", "storage-purge", "execution_id", uuid.NewString())
	start := time.Now()

	purged, failed, err := s.purger.RunPending(s.ctx)
	if err != nil {
		log.Error("purge job failed", "error", err)
		return
	}
	log.Debug("purge job finished", "purged", purged, "failed", failed, "duration", time.Since(start))
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("cron scheduler started")
}

// Stop halts scheduling and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("cron scheduler stopped")
}

func recoverWrapper(logger *slog.Logger) cron.JobWrapper {
	return func(j cron.Job) cron.Job {
		return cron.FuncJob(func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("job panicked", "panic", r, "stack_trace", string(debug.Stack()))
				}
			}()
			j.Run()
		})
	}
}
