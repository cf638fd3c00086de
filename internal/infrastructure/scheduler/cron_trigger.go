package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/schoolfees/backend/internal/infrastructure/config"
)

// JobEnqueuer accepts jobs for execution
type JobEnqueuer interface {
	Enqueue(jobType JobType, trigger string) (*Job, error)
}

// CronTriggerConfig holds configuration for the cron trigger
type CronTriggerConfig struct {
	DailyHour     int
	DailyMinute   int
	HourlyEnabled bool
	CheckInterval time.Duration
	// Location defines the wall clock the daily time refers to
	Location *time.Location
}

// DefaultCronTriggerConfig returns default cron trigger configuration
func DefaultCronTriggerConfig() CronTriggerConfig {
	return CronTriggerConfig{
		DailyHour:     defaultDailyHour,
		DailyMinute:   defaultDailyMinute,
		HourlyEnabled: true,
		CheckInterval: 30 * time.Second,
		Location:      time.Local,
	}
}

// CronTriggerConfigFrom builds the trigger config from application settings
func CronTriggerConfigFrom(cfg config.SchedulerConfig, loc *time.Location) (CronTriggerConfig, error) {
	out := DefaultCronTriggerConfig()
	hour, minute, err := ParseCronSchedule(cfg.DailyCronSchedule)
	if err != nil {
		return out, err
	}
	out.DailyHour = hour
	out.DailyMinute = minute
	out.HourlyEnabled = cfg.HourlyScanEnabled
	if cfg.CheckInterval > 0 {
		out.CheckInterval = cfg.CheckInterval
	}
	if loc != nil {
		out.Location = loc
	}
	return out, nil
}

// TriggerStatus describes the trigger for operators
type TriggerStatus struct {
	Running       bool
	DailyHour     int
	DailyMinute   int
	HourlyEnabled bool
	Timezone      string
	NextDailyRun  time.Time
	LastDailyRun  string
	LastHourlyRun string
	LastJobs      map[JobType]Job
}

// CronTrigger fires the daily sweep at a fixed local time and the hourly
// scan on the hour. Each slot fires at most once even when the check
// interval is shorter than a minute.
type CronTrigger struct {
	config    CronTriggerConfig
	scheduler JobEnqueuer
	logger    *zap.Logger
	now       func() time.Time

	cancel        context.CancelFunc
	wg            sync.WaitGroup
	mu            sync.Mutex
	isRunning     bool
	lastDailyRun  string // date of the last daily sweep
	lastHourlyRun string // date and hour of the last hourly scan
}

// NewCronTrigger creates a new cron trigger
func NewCronTrigger(cfg CronTriggerConfig, scheduler JobEnqueuer, logger *zap.Logger) *CronTrigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCronTriggerConfig().CheckInterval
	}
	return &CronTrigger{
		config:    cfg,
		scheduler: scheduler,
		logger:    logger,
		now:       time.Now,
	}
}

// Start starts the cron trigger
func (c *CronTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("Cron trigger started",
		zap.Int("daily_hour", c.config.DailyHour),
		zap.Int("daily_minute", c.config.DailyMinute),
		zap.Bool("hourly_enabled", c.config.HourlyEnabled),
		zap.String("timezone", c.config.Location.String()),
		zap.Duration("check_interval", c.config.CheckInterval),
	)
	return nil
}

// Stop stops the cron trigger
func (c *CronTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Cron trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *CronTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkAndTrigger(c.now())
		}
	}
}

// checkAndTrigger enqueues whichever passes are due at now
func (c *CronTrigger) checkAndTrigger(now time.Time) {
	local := now.In(c.config.Location)

	if c.claimDaily(local) {
		c.logger.Info("Triggering daily fee sweep")
		c.enqueue(JobTypeDailySweep, TriggerCron)
	}
	if c.claimHourly(local) {
		c.logger.Info("Triggering hourly due scan")
		c.enqueue(JobTypeHourlyScan, TriggerCron)
	}
}

func (c *CronTrigger) claimDaily(local time.Time) bool {
	if local.Hour() != c.config.DailyHour || local.Minute() != c.config.DailyMinute {
		return false
	}
	key := local.Format("2006-01-02")

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastDailyRun == key {
		return false
	}
	c.lastDailyRun = key
	return true
}

func (c *CronTrigger) claimHourly(local time.Time) bool {
	if !c.config.HourlyEnabled || local.Minute() != 0 {
		return false
	}
	key := local.Format("2006-01-02T15")

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastHourlyRun == key {
		return false
	}
	c.lastHourlyRun = key
	return true
}

func (c *CronTrigger) enqueue(jobType JobType, trigger string) {
	job, err := c.scheduler.Enqueue(jobType, trigger)
	if err != nil {
		c.logger.Error("Failed to enqueue reminder job",
			zap.String("job_type", string(jobType)),
			zap.Error(err),
		)
		return
	}
	c.logger.Debug("Reminder job enqueued",
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(jobType)),
	)
}

// TriggerManual enqueues a pass immediately, outside the cron schedule
func (c *CronTrigger) TriggerManual(jobType JobType) (*Job, error) {
	return c.scheduler.Enqueue(jobType, TriggerManual)
}

// NextDailyRun returns the next instant the daily sweep fires after now
func (c *CronTrigger) NextDailyRun(now time.Time) time.Time {
	local := now.In(c.config.Location)
	next := time.Date(local.Year(), local.Month(), local.Day(),
		c.config.DailyHour, c.config.DailyMinute, 0, 0, c.config.Location)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Status returns the trigger state together with the latest jobs
func (c *CronTrigger) Status() TriggerStatus {
	c.mu.Lock()
	st := TriggerStatus{
		Running:       c.isRunning,
		DailyHour:     c.config.DailyHour,
		DailyMinute:   c.config.DailyMinute,
		HourlyEnabled: c.config.HourlyEnabled,
		Timezone:      c.config.Location.String(),
		LastDailyRun:  c.lastDailyRun,
		LastHourlyRun: c.lastHourlyRun,
	}
	c.mu.Unlock()

	st.NextDailyRun = c.NextDailyRun(c.now())
	if s, ok := c.scheduler.(interface{ LastRuns() map[JobType]Job }); ok {
		st.LastJobs = s.LastRuns()
	}
	return st
}
