package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"
)

// ErrJobNotFound is returned for unknown job ids.
var ErrJobNotFound = errors.New("job not found")

// JobStatus represents the status of a job.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusScheduled JobStatus = "scheduled"
)

// JobInfo contains information about a scheduled job.
type JobInfo struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	Status            JobStatus `json:"status"`
	LastRun           time.Time `json:"lastRun"`
	NextRun           time.Time `json:"nextRun"`
	LastDuration      string    `json:"lastDuration,omitempty"`
	Schedule          string    `json:"schedule"`
	Enabled           bool      `json:"enabled"`
	RunCount          int       `json:"runCount"`
	ErrorCount        int       `json:"errorCount"`
	LastError         string    `json:"lastError,omitempty"`
	Singleton         bool      `json:"singleton"`
	InstantAfterStart bool      `json:"instantAfterStart,omitempty"`
}

// JobFunc represents a function that can be scheduled.
type JobFunc func(ctx context.Context) error

type job struct {
	info   JobInfo
	fn     JobFunc
	gocron gocron.Job
}

// Scheduler manages scheduled jobs. It is safe for concurrent use.
type Scheduler struct {
	mu      sync.RWMutex
	gocron  gocron.Scheduler
	jobs    map[string]*job
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// New creates a new scheduler.
func New() (*Scheduler, error) {
	gocronScheduler, err := gocron.NewScheduler(gocron.WithLogger(newLogger()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		gocron: gocronScheduler,
		jobs:   make(map[string]*job),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start starts the scheduler and triggers the jobs marked to run after start.
func (s *Scheduler) Start() {
	log.Info("Starting job scheduler")
	s.gocron.Start()

	s.mu.Lock()
	s.started = true
	var instant []string
	for id, j := range s.jobs {
		if nextRun, err := j.gocron.NextRun(); err == nil {
			j.info.NextRun = nextRun
		} else {
			log.Warn("Failed to get next run time for job", "id", id, "error", err)
		}
		if j.info.InstantAfterStart {
			instant = append(instant, id)
		}
	}
	s.mu.Unlock()

	sort.Strings(instant)
	for _, id := range instant {
		log.Info("Running job immediately after start", "id", id)
		if err := s.RunJobNow(id); err != nil {
			log.Error("Failed to run job immediately after start", "id", id, "error", err)
		}
	}
	log.Info("Job scheduler started", "jobs", len(s.jobs))
}

// Stop stops the scheduler and cancels running jobs.
func (s *Scheduler) Stop() error {
	log.Info("Stopping job scheduler")
	s.cancel()
	return s.gocron.Shutdown()
}

// AddJob adds a job that may overlap with itself.
func (s *Scheduler) AddJob(id, name, description, schedule string, jobDef gocron.JobDefinition, fn JobFunc, instantAfterStart bool) error {
	return s.AddJobWithOptions(id, name, description, schedule, jobDef, fn, false, instantAfterStart)
}

// AddSingletonJob adds a job of which only one instance runs at a time.
func (s *Scheduler) AddSingletonJob(id, name, description, schedule string, jobDef gocron.JobDefinition, fn JobFunc, instantAfterStart bool) error {
	return s.AddJobWithOptions(id, name, description, schedule, jobDef, fn, true, instantAfterStart)
}

// AddJobWithOptions adds a new job to the scheduler.
func (s *Scheduler) AddJobWithOptions(
	id, name, description, schedule string,
	jobDef gocron.JobDefinition,
	fn JobFunc,
	singleton, instantAfterStart bool,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; exists {
		return fmt.Errorf("job %s already exists", id)
	}

	var opts []gocron.JobOption
	if singleton {
		opts = append(opts, gocron.WithSingletonMode(gocron.LimitModeReschedule))
	}

	gj, err := s.gocron.NewJob(jobDef, gocron.NewTask(s.wrapJobFunc(id)), opts...)
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", id, err)
	}

	s.jobs[id] = &job{
		info: JobInfo{
			ID:                id,
			Name:              name,
			Description:       description,
			Status:            JobStatusScheduled,
			Schedule:          schedule,
			Enabled:           true,
			Singleton:         singleton,
			InstantAfterStart: instantAfterStart,
		},
		fn:     fn,
		gocron: gj,
	}
	log.Info("Added job to scheduler", "id", id, "name", name, "singleton", singleton)
	return nil
}

// RunJobNow triggers a job immediately.
func (s *Scheduler) RunJobNow(id string) error {
	s.mu.RLock()
	j, exists := s.jobs[id]
	s.mu.RUnlock()
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	log.Info("Manually triggering job", "id", id, "name", j.info.Name)
	if err := j.gocron.RunNow(); err != nil {
		return fmt.Errorf("failed to trigger job %s: %w", id, err)
	}
	return nil
}

// GetJobs returns a snapshot of all jobs sorted by id.
func (s *Scheduler) GetJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.info)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

// GetJob returns a snapshot of a single job.
func (s *Scheduler) GetJob(id string) (JobInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, exists := s.jobs[id]
	if !exists {
		return JobInfo{}, false
	}
	return j.info, true
}

// EnableJob enables a job.
func (s *Scheduler) EnableJob(id string) error {
	return s.setEnabled(id, true)
}

// DisableJob disables a job. Disabled jobs are skipped when they fire.
func (s *Scheduler) DisableJob(id string) error {
	return s.setEnabled(id, false)
}

func (s *Scheduler) setEnabled(id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	j.info.Enabled = enabled
	log.Info("Changed job state", "id", id, "enabled", enabled)
	return nil
}

// wrapJobFunc wraps a job function to update job statistics.
func (s *Scheduler) wrapJobFunc(id string) func() {
	return func() {
		s.mu.Lock()
		j := s.jobs[id]
		if j == nil {
			s.mu.Unlock()
			log.Error("Job info not found", "id", id)
			return
		}
		if !j.info.Enabled {
			s.mu.Unlock()
			log.Debug("Job is disabled, skipping", "id", id)
			return
		}
		start := time.Now()
		j.info.Status = JobStatusRunning
		j.info.LastRun = start
		j.info.RunCount++
		fn := j.fn
		s.mu.Unlock()

		log.Info("Starting job", "id", id)
		err := fn(s.ctx)

		s.mu.Lock()
		defer s.mu.Unlock()
		j.info.LastDuration = time.Since(start).Round(time.Millisecond).String()
		if s.started {
			if nextRun, nerr := j.gocron.NextRun(); nerr == nil {
				j.info.NextRun = nextRun
			}
		}
		if err != nil {
			log.Error("Job failed", "id", id, "error", err)
			j.info.Status = JobStatusFailed
			j.info.ErrorCount++
			j.info.LastError = err.Error()
			return
		}
		log.Info("Job completed successfully", "id", id, "duration", j.info.LastDuration)
		j.info.Status = JobStatusCompleted
		j.info.LastError = ""
	}
}
