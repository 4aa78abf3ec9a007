// Package scheduler runs the periodic price reconciliation and cleanup jobs.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/config"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/logging"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/model"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/service"
)

// Job names.
const (
	JobDaily   = "daily_refresh"
	JobCatchUp = "catch_up_refresh"
	JobCleanup = "cleanup"
)

// runTimeout bounds a single scheduled run; the reconciler applies its own job timeout inside it.
const runTimeout = 3 * time.Hour

// Reconciler is the part of service.BatchReconciler the scheduler drives.
type Reconciler interface {
	RunDaily(ctx context.Context) (model.BatchJobRecord, error)
	RunCatchUp(ctx context.Context) (model.BatchJobRecord, error)
}

// Cleaner is the part of service.CleanupService the scheduler drives.
type Cleaner interface {
	Cleanup(ctx context.Context) (service.CleanupResult, error)
}

// JobInfo describes a registered job for status reporting.
type JobInfo struct {
	Name string    `json:"name"`
	Spec string    `json:"spec"`
	Next time.Time `json:"next"`
	Prev time.Time `json:"prev"`
}

type registered struct {
	spec string
	id   cron.EntryID
	job  cron.Job
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron   *cron.Cron
	logger *logging.Logger
	jobs   map[string]registered

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// New registers the daily, catch-up and cleanup jobs on their cron specs in the configured timezone.
func New(cfg config.ScheduleConfig, reconciler Reconciler, cleaner Cleaner, logger *logging.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone %q: %w", cfg.Timezone, err)
	}

	logger = logger.Component("scheduler")
	cl := cronLogger{logger: logger}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
		),
		logger: logger,
		jobs:   make(map[string]registered),
		ctx:    ctx,
		cancel: cancel,
	}

	specs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{JobDaily, cfg.DailySpec, s.reconcileJob(JobDaily, reconciler.RunDaily)},
		{JobCatchUp, cfg.CatchUpSpec, s.reconcileJob(JobCatchUp, reconciler.RunCatchUp)},
		{JobCleanup, cfg.CleanupSpec, func(ctx context.Context) error {
			_, err := cleaner.Cleanup(ctx)
			return err
		}},
	}

	for _, j := range specs {
		if err := s.add(j.name, j.spec, j.run); err != nil {
			cancel()
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) add(name, spec string, run func(context.Context) error) error {
	cl := cronLogger{logger: s.logger}
	// The chain is applied here rather than with cron.WithChain so Trigger shares it.
	job := cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).
		Then(cron.FuncJob(func() {
			ctx, cancel := context.WithTimeout(s.ctx, runTimeout)
			defer cancel()

			start := time.Now()
			s.logger.Info().Str("job", name).Msg("scheduled job started")
			if err := run(ctx); err != nil {
				s.logger.Error().Err(err).Str("job", name).Dur("duration", time.Since(start)).Msg("scheduled job failed")
				return
			}
			s.logger.Info().Str("job", name).Dur("duration", time.Since(start)).Msg("scheduled job finished")
		}))

	id, err := s.cron.AddJob(spec, job)
	if err != nil {
		return fmt.Errorf("invalid cron spec %q for %s: %w", spec, name, err)
	}
	s.jobs[name] = registered{spec: spec, id: id, job: job}
	return nil
}

func (s *Scheduler) reconcileJob(name string, run func(context.Context) (model.BatchJobRecord, error)) func(context.Context) error {
	return func(ctx context.Context) error {
		job, err := run(ctx)
		if err != nil {
			return err
		}
		s.logger.Info().
			Str("job", name).
			Str("job_id", job.JobID).
			Int("succeeded", job.TickersSucceeded).
			Int("failed", job.TickersFailed).
			Msg("reconcile run recorded")
		return nil
	}
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, info := range s.Jobs() {
		s.logger.Info().Str("job", info.Name).Str("spec", info.Spec).Time("next", info.Next).Msg("job scheduled")
	}
}

// Stop prevents new runs, cancels running ones and waits for them until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	var done context.Context
	s.once.Do(func() {
		done = s.cron.Stop()
		s.cancel()
	})
	if done == nil {
		return nil
	}
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Trigger runs a registered job immediately on the calling goroutine.
// The run is skipped if the same job is already in progress.
func (s *Scheduler) Trigger(name string) error {
	r, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	r.job.Run()
	return nil
}

// Jobs returns the registered jobs ordered by name.
func (s *Scheduler) Jobs() []JobInfo {
	out := make([]JobInfo, 0, len(s.jobs))
	for name, r := range s.jobs {
		e := s.cron.Entry(r.id)
		out = append(out, JobInfo{Name: name, Spec: r.spec, Next: e.Next, Prev: e.Prev})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct {
	logger *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
