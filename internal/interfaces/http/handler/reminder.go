package handler

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schoolfees/backend/internal/application/reminder"
	"github.com/schoolfees/backend/internal/infrastructure/logger"
	"github.com/schoolfees/backend/internal/infrastructure/scheduler"
	"github.com/schoolfees/backend/internal/interfaces/http/dto"
)

// ReminderRunner runs the two reminder passes in the caller's goroutine
type ReminderRunner interface {
	ScanDueInstallments(ctx context.Context) (reminder.Summary, error)
	RunDailySweep(ctx context.Context) (reminder.Summary, error)
}

// FeeReminderSender sends a single fee reminder
type FeeReminderSender interface {
	SendFeeReminder(ctx context.Context, studentID uuid.UUID, academicYear string) (*reminder.NotificationResponse, error)
}

// ReminderJobs queues reminder passes on the background scheduler
type ReminderJobs interface {
	TriggerManual(jobType scheduler.JobType) (*scheduler.Job, error)
	Status() scheduler.TriggerStatus
}

// JobResponse describes a queued or finished reminder job
type JobResponse struct {
	ID          uuid.UUID  `json:"id"`
	Type        string     `json:"type"`
	Trigger     string     `json:"trigger"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count"`
	QueuedAt    time.Time  `json:"queued_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func toJobResponse(j scheduler.Job) JobResponse {
	return JobResponse{
		ID:          j.ID,
		Type:        string(j.Type),
		Trigger:     j.Trigger,
		Status:      string(j.Status),
		Error:       j.Error,
		RetryCount:  j.RetryCount,
		QueuedAt:    j.QueuedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}

// SchedulerStatusResponse is the operator view of the reminder scheduler
type SchedulerStatusResponse struct {
	Enabled       bool                   `json:"enabled"`
	Running       bool                   `json:"running"`
	DailyTime     string                 `json:"daily_time,omitempty"`
	HourlyEnabled bool                   `json:"hourly_enabled"`
	Timezone      string                 `json:"timezone,omitempty"`
	NextDailyRun  *time.Time             `json:"next_daily_run,omitempty"`
	LastDailyRun  string                 `json:"last_daily_run,omitempty"`
	LastHourlyRun string                 `json:"last_hourly_run,omitempty"`
	LastJobs      map[string]JobResponse `json:"last_jobs"`
}

// SingleReminderResponse is the outcome of reminding one student
type SingleReminderResponse struct {
	reminder.Summary
	Notification *reminder.NotificationResponse `json:"notification"`
}

// ReminderHandler handles manual reminder triggers
type ReminderHandler struct {
	BaseHandler
	runner ReminderRunner
	sender FeeReminderSender
	jobs   ReminderJobs
}

// NewReminderHandler creates a ReminderHandler. jobs may be nil when the
// scheduler is disabled; passes then only run synchronously.
func NewReminderHandler(runner ReminderRunner, sender FeeReminderSender, jobs ReminderJobs) *ReminderHandler {
	return &ReminderHandler{runner: runner, sender: sender, jobs: jobs}
}

// Sweep runs the daily fee sweep
// POST /reminders/sweep[?async=true]
func (h *ReminderHandler) Sweep(c *gin.Context) {
	h.runPass(c, scheduler.JobTypeDailySweep, h.runner.RunDailySweep)
}

// Scan runs the due-today and overdue scan
// POST /reminders/scan[?async=true]
func (h *ReminderHandler) Scan(c *gin.Context) {
	h.runPass(c, scheduler.JobTypeHourlyScan, h.runner.ScanDueInstallments)
}

func (h *ReminderHandler) runPass(c *gin.Context, jobType scheduler.JobType, run func(context.Context) (reminder.Summary, error)) {
	async, _ := strconv.ParseBool(c.Query("async"))
	if async {
		h.enqueue(c, jobType)
		return
	}

	summary, err := run(c.Request.Context())
	if err != nil {
		// the pass was cut short; report what it managed
		logger.L(c.Request.Context()).Warn("reminder pass interrupted",
			zap.String("job_type", string(jobType)),
			zap.Error(err),
		)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			h.Fail(c, dto.ErrCodeServiceUnavailable, "Reminder pass did not finish in time; retry with async=true")
			return
		}
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

func (h *ReminderHandler) enqueue(c *gin.Context, jobType scheduler.JobType) {
	if h.jobs == nil {
		h.Fail(c, dto.ErrCodeServiceUnavailable, "Reminder scheduler is disabled")
		return
	}
	job, err := h.jobs.TriggerManual(jobType)
	if err != nil {
		if errors.Is(err, scheduler.ErrSchedulerNotRunning) || errors.Is(err, scheduler.ErrJobQueueFull) {
			h.Fail(c, dto.ErrCodeServiceUnavailable, err.Error())
			return
		}
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, toJobResponse(*job))
}

// RemindStudent sends one fee reminder for a student's ledger
// POST /students/:id/reminders
func (h *ReminderHandler) RemindStudent(c *gin.Context) {
	studentID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req reminder.SendFeeReminderInput
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &req) {
		return
	}

	n, err := h.sender.SendFeeReminder(c.Request.Context(), studentID, req.AcademicYear)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, SingleReminderResponse{
		Summary:      reminder.Summary{Processed: 1, Sent: 1, Failures: []reminder.Failure{}},
		Notification: n,
	})
}

// SchedulerStatus reports the cron trigger and the latest job per pass
// GET /reminders/scheduler/status
func (h *ReminderHandler) SchedulerStatus(c *gin.Context) {
	resp := SchedulerStatusResponse{LastJobs: map[string]JobResponse{}}
	if h.jobs == nil {
		h.Success(c, resp)
		return
	}

	st := h.jobs.Status()
	resp.Enabled = true
	resp.Running = st.Running
	resp.DailyTime = time.Date(0, 1, 1, st.DailyHour, st.DailyMinute, 0, 0, time.UTC).Format("15:04")
	resp.HourlyEnabled = st.HourlyEnabled
	resp.Timezone = st.Timezone
	if !st.NextDailyRun.IsZero() {
		next := st.NextDailyRun
		resp.NextDailyRun = &next
	}
	resp.LastDailyRun = st.LastDailyRun
	resp.LastHourlyRun = st.LastHourlyRun
	for t, j := range st.LastJobs {
		resp.LastJobs[string(t)] = toJobResponse(j)
	}
	h.Success(c, resp)
}
