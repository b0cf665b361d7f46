// Package jobs runs scheduled background work on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Recorder observes job runs. *metrics.Metrics satisfies it.
type Recorder interface {
	JobRun(job string, err error)
}

// Job is one unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler runs registered jobs on cron specs. Overlapping runs of the
// same job are skipped and panics are recovered.
type Scheduler struct {
	cron     *cron.Cron
	recorder Recorder
	logger   *slog.Logger
	timeout  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a Scheduler. recorder may be nil. Each run is bounded
// by timeout.
func NewScheduler(recorder Recorder, timeout time.Duration, logger *slog.Logger) *Scheduler {
	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		recorder: recorder,
		logger:   logger,
		timeout:  timeout,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Add schedules job on spec, a standard five-field cron expression or a
// descriptor such as "@hourly".
func (s *Scheduler) Add(spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() { s.RunNow(job) })
	if err != nil {
		return fmt.Errorf("schedule %s: %w", job.Name(), err)
	}
	s.logger.Info("job scheduled", "job", job.Name(), "spec", spec)
	return nil
}

// RunNow runs job once in the calling goroutine.
func (s *Scheduler) RunNow(job Job) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := job.Run(ctx)
	if s.recorder != nil {
		s.recorder.JobRun(job.Name(), err)
	}
	if err != nil {
		s.logger.Error("job failed", "job", job.Name(), "duration", time.Since(start), "error", err)
		return
	}
	s.logger.Debug("job finished", "job", job.Name(), "duration", time.Since(start))
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Shutdown stops scheduling, cancels running jobs and waits for them to
// return or ctx to expire.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
