// Package scheduler runs the watcher's jobs on gocron with at most one job
// executing at a time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// JobFunc is the unit of scheduled work.
type JobFunc func(ctx context.Context) error

// Daily is a wall-clock time of day.
type Daily struct {
	Hour   uint
	Minute uint
}

// ParseDaily parses an "HH:MM" clock time.
func ParseDaily(clock string) (Daily, error) {
	at, err := time.Parse("15:04", clock)
	if err != nil {
		return Daily{}, fmt.Errorf("parse daily time %q: %w", clock, err)
	}
	return Daily{Hour: uint(at.Hour()), Minute: uint(at.Minute())}, nil
}

// Scheduler wraps a gocron scheduler. Jobs share one execution slot, so a
// daily job that comes due during a long check waits for it to finish.
type Scheduler struct {
	cron   gocron.Scheduler
	logger *zap.Logger

	mu   sync.RWMutex
	jobs map[string]gocron.Job
}

// New constructs a Scheduler whose daily jobs fire in loc.
func New(loc *time.Location, logger *zap.Logger, opts ...gocron.SchedulerOption) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	base := []gocron.SchedulerOption{
		gocron.WithLocation(loc),
		gocron.WithLimitConcurrentJobs(1, gocron.LimitModeWait),
		gocron.WithLogger(zapLogger{logger.Sugar()}),
	}
	cron, err := gocron.NewScheduler(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("new scheduler: %w", err)
	}
	return &Scheduler{
		cron:   cron,
		logger: logger,
		jobs:   make(map[string]gocron.Job),
	}, nil
}

// Every registers a job that runs every interval, measured from the end of
// the previous run. The first run is one interval after start.
func (s *Scheduler) Every(name string, interval time.Duration, fn JobFunc) error {
	if interval <= 0 {
		return fmt.Errorf("schedule %s: interval must be positive", name)
	}
	return s.add(name, gocron.DurationJob(interval), fn, gocron.WithIntervalFromCompletion())
}

// DailyAt registers a job that runs once a day at clock ("HH:MM") in the
// scheduler's location.
func (s *Scheduler) DailyAt(name, clock string, fn JobFunc) error {
	daily, err := ParseDaily(clock)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	def := gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(daily.Hour, daily.Minute, 0)))
	return s.add(name, def, fn)
}

func (s *Scheduler) add(name string, def gocron.JobDefinition, fn JobFunc, extra ...gocron.JobOption) error {
	opts := append([]gocron.JobOption{
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}, extra...)
	j, err := s.cron.NewJob(def, gocron.NewTask(s.wrap(name, fn)), opts...)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.mu.Lock()
	s.jobs[name] = j
	s.mu.Unlock()
	s.logger.Info("job scheduled", zap.String("job", name))
	return nil
}

// NextRun reports when the named job runs next. It is only known once the
// scheduler has started.
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	s.mu.RLock()
	j, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return time.Time{}, false
	}
	next, err := j.NextRun()
	if err != nil || next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}

// Run starts the jobs and blocks until ctx is done. Shutdown cancels the
// context of any job still running and waits for it to return.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	for name := range s.jobNames() {
		if next, ok := s.NextRun(name); ok {
			s.logger.Info("job next run", zap.String("job", name), zap.Time("next_run", next))
		}
	}

	<-ctx.Done()
	err := s.cron.Shutdown()
	s.logger.Info("scheduler stopped")
	if err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	return nil
}

func (s *Scheduler) jobNames() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make(map[string]struct{}, len(s.jobs))
	for name := range s.jobs {
		names[name] = struct{}{}
	}
	return names
}

// wrap logs job outcomes and turns a panic into an error.
func (s *Scheduler) wrap(name string, fn JobFunc) func(context.Context) error {
	return func(ctx context.Context) error {
		if ctx.Err() != nil {
			return nil
		}
		start := time.Now()
		err := safeCall(ctx, fn)
		if err != nil {
			s.logger.Error("job failed",
				zap.String("job", name),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err),
			)
			return err
		}
		s.logger.Debug("job finished", zap.String("job", name), zap.Duration("elapsed", time.Since(start)))
		return nil
	}
}

// errPanic marks errors recovered from a panicking job.
var errPanic = errors.New("job panicked")

func safeCall(ctx context.Context, fn JobFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v\n%s", errPanic, r, debug.Stack())
		}
	}()
	return fn(ctx)
}

// zapLogger adapts zap to gocron's key-value logger.
type zapLogger struct {
	s *zap.SugaredLogger
}

func (l zapLogger) Debug(msg string, args ...any) { l.s.Debugw(msg, args...) }
func (l zapLogger) Error(msg string, args ...any) { l.s.Errorw(msg, args...) }
func (l zapLogger) Info(msg string, args ...any)  { l.s.Infow(msg, args...) }
func (l zapLogger) Warn(msg string, args ...any)  { l.s.Warnw(msg, args...) }
