package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schoolfees/backend/internal/infrastructure/config"
)

// JobStatus represents the status of a scheduled job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// JobType identifies which reminder pass a job runs
type JobType string

const (
	// JobTypeDailySweep sends a fee reminder to every student with pending fees
	JobTypeDailySweep JobType = "DAILY_FEE_SWEEP"
	// JobTypeHourlyScan sends due-today and overdue reminders
	JobTypeHourlyScan JobType = "HOURLY_DUE_SCAN"
)

// AllJobTypes returns every job type the scheduler knows about
func AllJobTypes() []JobType {
	return []JobType{JobTypeDailySweep, JobTypeHourlyScan}
}

// IsValid checks if the job type is known
func (t JobType) IsValid() bool {
	return t == JobTypeDailySweep || t == JobTypeHourlyScan
}

// Trigger sources
const (
	TriggerCron   = "cron"
	TriggerManual = "manual"
)

// Job is one queued execution of a reminder pass
type Job struct {
	ID          uuid.UUID
	Type        JobType
	Trigger     string
	Status      JobStatus
	Error       string
	QueuedAt    time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
	NextRetryAt *time.Time
}

// NewJob creates a new job instance
func NewJob(jobType JobType, trigger string, maxRetries int, now time.Time) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       jobType,
		Trigger:    trigger,
		Status:     JobStatusPending,
		QueuedAt:   now,
		MaxRetries: maxRetries,
	}
}

// Start marks the job as running
func (j *Job) Start(now time.Time) {
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.CompletedAt = nil
	j.Error = ""
}

// Complete marks the job as successful
func (j *Job) Complete(now time.Time) {
	j.Status = JobStatusSuccess
	j.CompletedAt = &now
}

// Fail marks the job as failed
func (j *Job) Fail(err string, now time.Time) {
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// ShouldRetry returns true if the job should be retried
func (j *Job) ShouldRetry() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// ScheduleRetry schedules the job for retry
func (j *Job) ScheduleRetry(delay time.Duration, now time.Time) {
	j.RetryCount++
	j.Status = JobStatusPending
	next := now.Add(delay)
	j.NextRetryAt = &next
}

// JobExecutor runs a job
type JobExecutor interface {
	Execute(ctx context.Context, job *Job) error
}

// Task is a unit of work bound to a job type
type Task func(ctx context.Context) error

// TaskExecutor routes jobs to the task registered for their type
type TaskExecutor struct {
	tasks map[JobType]Task
}

// NewTaskExecutor creates an executor with no tasks
func NewTaskExecutor() *TaskExecutor {
	return &TaskExecutor{tasks: make(map[JobType]Task)}
}

// Register binds a task to a job type, replacing any previous binding
func (e *TaskExecutor) Register(jobType JobType, task Task) *TaskExecutor {
	e.tasks[jobType] = task
	return e
}

// Execute implements JobExecutor
func (e *TaskExecutor) Execute(ctx context.Context, job *Job) error {
	task, ok := e.tasks[job.Type]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJobType, job.Type)
	}
	return task(ctx)
}

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	MaxConcurrentJobs int
	JobTimeout        time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
	QueueSize         int
}

// DefaultSchedulerConfig returns default scheduler configuration
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		MaxConcurrentJobs: 2,
		JobTimeout:        30 * time.Minute,
		RetryAttempts:     2,
		RetryDelay:        time.Minute,
		QueueSize:         16,
	}
}

// SchedulerConfigFrom converts the application config, filling gaps with defaults
func SchedulerConfigFrom(cfg config.SchedulerConfig) SchedulerConfig {
	out := DefaultSchedulerConfig()
	if cfg.MaxConcurrentJobs > 0 {
		out.MaxConcurrentJobs = cfg.MaxConcurrentJobs
	}
	if cfg.JobTimeout > 0 {
		out.JobTimeout = cfg.JobTimeout
	}
	if cfg.RetryAttempts > 0 {
		out.RetryAttempts = cfg.RetryAttempts
	}
	if cfg.RetryDelay > 0 {
		out.RetryDelay = cfg.RetryDelay
	}
	return out
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock overrides the scheduler's time source
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// Scheduler runs reminder jobs on a bounded worker pool
type Scheduler struct {
	config   SchedulerConfig
	executor JobExecutor
	logger   *zap.Logger
	now      func() time.Time

	jobs      chan *Job
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	lastRuns  map[JobType]Job
}

// NewScheduler creates a new scheduler instance
func NewScheduler(cfg SchedulerConfig, executor JobExecutor, logger *zap.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultSchedulerConfig().QueueSize
	}
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = 1
	}
	s := &Scheduler{
		config:   cfg,
		executor: executor,
		logger:   logger,
		now:      time.Now,
		jobs:     make(chan *Job, cfg.QueueSize),
		lastRuns: make(map[JobType]Job),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start starts the worker pool
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	for i := 0; i < s.config.MaxConcurrentJobs; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Reminder scheduler started",
		zap.Int("workers", s.config.MaxConcurrentJobs),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels running jobs and waits for workers to exit
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Reminder scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Reminder scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether workers are accepting jobs
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// SubmitJob submits a job for execution
func (s *Scheduler) SubmitJob(job *Job) error {
	if !s.IsRunning() {
		return ErrSchedulerNotRunning
	}

	// snapshot before the send: once queued, the job belongs to a worker
	s.mu.Lock()
	prev, hadPrev := s.lastRuns[job.Type]
	s.lastRuns[job.Type] = *job
	s.mu.Unlock()

	select {
	case s.jobs <- job:
		s.logger.Debug("Job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("job_type", string(job.Type)),
			zap.String("trigger", job.Trigger),
		)
		return nil
	default:
		s.mu.Lock()
		if cur := s.lastRuns[job.Type]; cur.ID == job.ID {
			if hadPrev {
				s.lastRuns[job.Type] = prev
			} else {
				delete(s.lastRuns, job.Type)
			}
		}
		s.mu.Unlock()
		return ErrJobQueueFull
	}
}

// Enqueue creates and submits a job of the given type
func (s *Scheduler) Enqueue(jobType JobType, trigger string) (*Job, error) {
	if !jobType.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJobType, jobType)
	}
	job := NewJob(jobType, trigger, s.config.RetryAttempts, s.now())
	if err := s.SubmitJob(job); err != nil {
		return nil, err
	}
	return job, nil
}

// LastRuns returns a snapshot of the most recent job per type
func (s *Scheduler) LastRuns() map[JobType]Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[JobType]Job, len(s.lastRuns))
	for k, v := range s.lastRuns {
		out[k] = v
	}
	return out
}

func (s *Scheduler) record(job *Job) {
	s.mu.Lock()
	s.lastRuns[job.Type] = *job
	s.mu.Unlock()
}

// worker processes jobs from the queue
func (s *Scheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Worker stopping", zap.Int("worker_id", workerID))
			return
		case job := <-s.jobs:
			s.processJob(ctx, job, workerID)
		}
	}
}

// processJob executes a single job
func (s *Scheduler) processJob(ctx context.Context, job *Job, workerID int) {
	job.Start(s.now())
	s.record(job)
	s.logger.Info("Processing job",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.Type)),
		zap.Int("attempt", job.RetryCount+1),
	)

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	err := s.executor.Execute(jobCtx, job)
	cancel()

	if err != nil {
		job.Fail(err.Error(), s.now())
		s.record(job)
		s.logger.Error("Job failed",
			zap.Int("worker_id", workerID),
			zap.String("job_id", job.ID.String()),
			zap.String("job_type", string(job.Type)),
			zap.Error(err),
		)

		if job.ShouldRetry() && ctx.Err() == nil {
			job.ScheduleRetry(s.config.RetryDelay, s.now())
			s.logger.Info("Job scheduled for retry",
				zap.String("job_id", job.ID.String()),
				zap.Int("retry_count", job.RetryCount),
				zap.Int("max_retries", job.MaxRetries),
			)
			s.wg.Add(1)
			go s.requeueAfter(ctx, job, s.config.RetryDelay)
		}
		return
	}

	job.Complete(s.now())
	s.record(job)
	s.logger.Info("Job completed successfully",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.Type)),
	)
}

// requeueAfter puts a failed job back on the queue once its retry delay has passed
func (s *Scheduler) requeueAfter(ctx context.Context, job *Job, delay time.Duration) {
	defer s.wg.Done()

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	s.record(job)
	select {
	case s.jobs <- job:
	case <-ctx.Done():
	}
}
