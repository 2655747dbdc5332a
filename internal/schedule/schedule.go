// Package schedule runs the daily and weekly pipelines on cron specs.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/TobiSchelling/chartpulse/internal/database"
)

// Job runs one pipeline for a date.
type Job func(ctx context.Context, date string)

// Specs holds standard five-field cron expressions. An empty spec disables
// that job.
type Specs struct {
	Daily  string
	Weekly string
}

// Scheduler wraps a cron runner with the pipeline jobs registered.
type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	timeout time.Duration
	today   func() string
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}

// New creates a Scheduler. Runs of the same job never overlap, and a
// panicking job is logged instead of stopping the scheduler.
func New(ctx context.Context, specs Specs, daily, weekly Job, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{s: logger.Sugar()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		timeout: 2 * time.Hour,
		today:   database.GetToday,
	}

	if err := s.add(ctx, "daily", specs.Daily, daily); err != nil {
		return nil, err
	}
	if err := s.add(ctx, "weekly", specs.Weekly, weekly); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) add(ctx context.Context, name, spec string, job Job) error {
	if spec == "" || job == nil {
		s.logger.Info("job not scheduled", zap.String("job", name))
		return nil
	}
	_, err := s.cron.AddFunc(spec, func() {
		// keep each run bounded
		rctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		date := s.today()
		s.logger.Info("scheduled run starting", zap.String("job", name), zap.String("date", date))
		job(rctx, date)
	})
	if err != nil {
		return fmt.Errorf("invalid %s schedule %q: %w", name, spec, err)
	}
	s.logger.Info("job scheduled", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// Jobs returns the number of registered jobs.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// Next returns the next activation time of every registered job.
func (s *Scheduler) Next() []time.Time {
	entries := s.cron.Entries()
	out := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Schedule.Next(time.Now()))
	}
	return out
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", s.Jobs()))
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}
