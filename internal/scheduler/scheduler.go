package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"social-relay-go/internal/metrics"
	"social-relay-go/internal/store"
)

// JobFunc is the body of a periodic job. It must honor ctx cancellation.
type JobFunc func(ctx context.Context) error

// Job is a named periodic task
type Job struct {
	Name     string
	Interval time.Duration
	Run      JobFunc
}

// Scheduler fires the registered jobs on independent intervals. Before each
// run it consults the persisted job run record: if the previous run of the
// same job name has not finished, the tick is skipped. Different job names
// run concurrently; a slow drain never delays cleanup.
type Scheduler struct {
	cron      *cron.Cron
	store     *store.Store
	metrics   *metrics.Metrics
	jobs      []Job
	entries   map[string]cron.EntryID
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.RWMutex
}

// New creates a scheduler; jobs are added with Register before Start
func New(st *store.Store, m *metrics.Metrics) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		store:   st,
		metrics: m,
		entries: make(map[string]cron.EntryID),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register adds a named job with its own interval
func (s *Scheduler) Register(name string, interval time.Duration, run JobFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, Job{Name: name, Interval: interval, Run: run})
}

// Start schedules all registered jobs and starts the cron loop
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	// a previous Stop cancelled the context; restarted jobs need a live one
	s.ctx, s.cancel = context.WithCancel(context.Background())

	for _, job := range s.jobs {
		if _, ok := s.entries[job.Name]; ok {
			// already scheduled by an earlier Start; cron keeps its entries
			// across Stop, so re-adding would fire the job twice per interval
			continue
		}
		job := job
		schedule := fmt.Sprintf("@every %s", job.Interval)
		entryID, err := s.cron.AddFunc(schedule, func() { s.runJob(job) })
		if err != nil {
			return fmt.Errorf("failed to add cron job %s: %w", job.Name, err)
		}
		s.entries[job.Name] = entryID
		logrus.Infof("Registered job %s with interval %s", job.Name, job.Interval)
	}

	s.cron.Start()
	s.isRunning = true

	logrus.Infof("Scheduler started with %d jobs", len(s.jobs))
	return nil
}

// Stop cancels running jobs and stops the cron loop. The scheduler can be
// started again afterwards.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}

	// Cancel context to stop any running operations
	s.cancel()

	ctx := s.cron.Stop()
	s.isRunning = false
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		logrus.Info("Scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Scheduler stop timeout, forcing shutdown")
	}

	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Wait blocks until all in-flight job runs have returned
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// RunOnce triggers a single run of a named job outside its schedule. The
// overlap guard still applies.
func (s *Scheduler) RunOnce(name string) error {
	for _, job := range s.jobs {
		if job.Name == name {
			s.runJob(job)
			return nil
		}
	}
	return fmt.Errorf("unknown job: %s", name)
}

// NextRun returns the next scheduled time of a named job
func (s *Scheduler) NextRun(name string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entryID, ok := s.entries[name]
	if !ok || !s.isRunning {
		return time.Time{}
	}
	return s.cron.Entry(entryID).Next
}

// runJob executes one tick of a job under the overlap guard. The finish
// timestamp is recorded even when the job returns an error or panics, so a
// failed run never blocks future ticks.
func (s *Scheduler) runJob(job Job) {
	s.wg.Add(1)
	defer s.wg.Done()

	ok, err := s.store.TryStartJob(job.Name)
	if err != nil {
		logrus.Errorf("Failed to check job run record for %s: %v", job.Name, err)
		return
	}
	if !ok {
		logrus.Infof("Previous run of job %s has not finished, skipping tick", job.Name)
		if s.metrics != nil {
			s.metrics.JobSkips.WithLabelValues(job.Name).Inc()
		}
		return
	}

	status := "success"
	defer func() {
		if r := recover(); r != nil {
			status = "panic"
			logrus.Errorf("Job %s panicked: %v", job.Name, r)
		}
		if finishErr := s.store.FinishJob(job.Name, status); finishErr != nil {
			logrus.Errorf("Failed to record finish for job %s: %v", job.Name, finishErr)
		}
	}()

	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()

	logrus.Debugf("Starting job %s", job.Name)
	if err := job.Run(ctx); err != nil {
		status = "error"
		logrus.Errorf("Job %s failed: %v", job.Name, err)
		return
	}
	logrus.Debugf("Job %s completed", job.Name)
}
