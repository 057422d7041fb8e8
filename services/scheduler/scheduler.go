// Package scheduler runs the recurring jobs of the platform on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/quransn/academy/core"
)

// MetaCollection holds one JobRun record per job, keyed by job name.
const MetaCollection = "meta"

// Job is a recurring task. Run returns the number of items it processed.
type Job struct {
	Name string
	Spec string // cron spec, e.g. "@every 1m" or "0 9 * * *"
	Run  func(ctx context.Context) (int, error)
}

// JobRun is the outcome of the last run of a job.
type JobRun struct {
	Name      string        `json:"name"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Processed int           `json:"processed"`
	Error     string        `json:"error,omitempty"`
	Runs      int           `json:"runs"`
}

type Scheduler struct {
	cron   *cron.Cron
	db     core.DB
	logger core.Logger
	jobs   map[string]Job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(db core.DB, logger core.Logger) *Scheduler {
	cl := cronLogger{logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		db:     db,
		logger: logger,
		jobs:   make(map[string]Job),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add schedules job. A blank spec disables it.
func (s *Scheduler) Add(job Job) error {
	if job.Spec == "" {
		return nil
	}
	if _, ok := s.jobs[job.Name]; ok {
		return fmt.Errorf("job %q already scheduled", job.Name)
	}
	if _, err := s.cron.AddFunc(job.Spec, func() { s.run(job) }); err != nil {
		return errors.Wrapf(err, "scheduling job %q", job.Name)
	}
	s.jobs[job.Name] = job
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	s.cancel()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow runs the job `name` immediately, outside of its schedule.
func (s *Scheduler) RunNow(name string) (JobRun, error) {
	job, ok := s.jobs[name]
	if !ok {
		return JobRun{}, core.NewNotFoundError(fmt.Sprintf("unknown job %q", name))
	}
	return s.run(job), nil
}

func (s *Scheduler) run(job Job) JobRun {
	started := core.NowFunc()
	n, err := job.Run(s.ctx)
	run := JobRun{
		Name:      job.Name,
		StartedAt: started,
		Duration:  time.Since(started),
		Processed: n,
	}
	if err != nil {
		run.Error = err.Error()
		s.logger.Error(fmt.Sprintf("job %s: %v", job.Name, err), err)
	} else if n > 0 {
		s.logger.Info(fmt.Sprintf("job %s: %d processed", job.Name, n))
	}

	if rerr := s.record(&run); rerr != nil {
		s.logger.Warn(fmt.Sprintf("job %s: recording run: %v", job.Name, rerr))
	}
	return run
}

func (s *Scheduler) record(run *JobRun) error {
	return s.db.Update(s.ctx, func(tx core.DBTx) error {
		prev, err := core.GetRecord[JobRun](tx, MetaCollection, run.Name)
		if err != nil && err != core.ErrRecordNotFound {
			return err
		}
		run.Runs = prev.Runs + 1
		return core.PutRecord(tx, MetaCollection, run.Name, run)
	})
}

// Status lists the last run of every job that ran at least once.
func (s *Scheduler) Status(ctx context.Context) ([]JobRun, error) {
	var runs []JobRun
	err := s.db.View(ctx, func(tx core.DBTx) error {
		var err error
		runs, err = core.ListRecords[JobRun](tx, MetaCollection, nil)
		return err
	})
	return runs, err
}

// cronLogger adapts core.Logger to cron.Logger.
type cronLogger struct {
	logger core.Logger
}

func formatKV(msg string, keysAndValues []interface{}) string {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		msg += fmt.Sprintf(" %v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	return msg
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(formatKV("cron: "+msg, keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(formatKV(fmt.Sprintf("cron: %s: %v", msg, err), keysAndValues), err)
}
