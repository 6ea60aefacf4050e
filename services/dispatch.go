package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stridehq/stride/channel"
	"github.com/stridehq/stride/config"
	"github.com/stridehq/stride/models"
	"github.com/stridehq/stride/utils"
)

const dispatchLeaseKey = "dispatch:tick:lease"

// Dispatcher finds due outbound tasks on a fixed period and fans them out to
// a project's subscribed members, recording a per-recipient outcome row.
// Recipient failures are isolated: they never abort sibling sends, the task,
// or the tick.
type Dispatcher struct {
	db          *gorm.DB
	sender      channel.Sender
	lease       *Lease
	interval    time.Duration
	maxAttempts int
	backoff     time.Duration
}

// NewDispatcher builds the dispatcher from application configuration.
func NewDispatcher(db *gorm.DB, sender channel.Sender) *Dispatcher {
	cfg := config.Get()
	return &Dispatcher{
		db:     db,
		sender: sender,
		lease: &Lease{
			Key: dispatchLeaseKey,
			TTL: time.Duration(cfg.DispatchLeaseTTLSec) * time.Second,
		},
		interval:    time.Duration(cfg.DispatchIntervalSec) * time.Second,
		maxAttempts: cfg.DispatchMaxAttempts,
		backoff:     time.Duration(cfg.DispatchBackoffMS) * time.Millisecond,
	}
}

// Start launches the background tick loop.
func (d *Dispatcher) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.Tick(ctx)
			}
		}
	}()
}

// Tick runs one scheduler pass. A tick that cannot take the lease while a
// prior one is still running is a no-op. Errors are logged and swallowed; the
// next period retries.
func (d *Dispatcher) Tick(ctx context.Context) {
	release, ok := d.lease.Acquire(ctx)
	if !ok {
		if utils.Sugar != nil {
			utils.Sugar.Debugf("dispatch tick skipped, lease held")
		}
		return
	}
	defer release()

	if err := d.ProcessDueTasks(ctx); err != nil {
		if utils.Sugar != nil {
			utils.Sugar.Errorf("dispatch tick failed: %v", err)
		}
	}
}

// ProcessDueTasks queries SCHEDULED tasks whose time has come and delivers
// each to all eligible recipients. Every task reaches DONE regardless of
// per-recipient outcomes; there is no partial-failure status.
func (d *Dispatcher) ProcessDueTasks(ctx context.Context) error {
	var due []models.DispatchTask
	if err := d.db.Where("status = ? AND scheduled_at <= ?", models.DispatchScheduled, time.Now()).
		Order("scheduled_at ASC").
		Find(&due).Error; err != nil {
		return fmt.Errorf("query due tasks: %w", err)
	}

	for i := range due {
		d.processTask(ctx, &due[i])
	}
	return nil
}

func (d *Dispatcher) processTask(ctx context.Context, task *models.DispatchTask) {
	now := time.Now()
	// Flip to SENDING before any sends to narrow the double-send window. The
	// guarded WHERE keeps a racing instance from picking the task up twice.
	res := d.db.Model(&models.DispatchTask{}).
		Where("id = ? AND status = ?", task.ID, models.DispatchScheduled).
		Updates(map[string]interface{}{"status": models.DispatchSending, "started_at": now})
	if res.Error != nil {
		if utils.Sugar != nil {
			utils.Sugar.Errorf("task %s: transition to SENDING failed: %v", task.PublicID, res.Error)
		}
		return
	}
	if res.RowsAffected == 0 {
		return // someone else took it
	}

	runID := uuid.NewString()
	recipients, err := d.recipients(task.ProjectID)
	if err != nil {
		if utils.Sugar != nil {
			utils.Sugar.Errorf("task %s: resolve recipients failed: %v", task.PublicID, err)
		}
		recipients = nil
	}

	for _, rcpt := range recipients {
		d.deliver(ctx, task, runID, rcpt)
	}

	finished := time.Now()
	if err := d.db.Model(&models.DispatchTask{}).
		Where("id = ?", task.ID).
		Updates(map[string]interface{}{"status": models.DispatchDone, "finished_at": finished}).Error; err != nil {
		if utils.Sugar != nil {
			utils.Sugar.Errorf("task %s: transition to DONE failed: %v", task.PublicID, err)
		}
	}
	if utils.Sugar != nil {
		utils.Sugar.Infof("task %s dispatched to %d recipients (run %s)", task.PublicID, len(recipients), runID)
	}
}

// recipients resolves the active, subscribed members of the task's project.
func (d *Dispatcher) recipients(projectID uint) ([]models.User, error) {
	var users []models.User
	err := d.db.Model(&models.User{}).
		Joins("JOIN project_members ON project_members.user_id = users.id").
		Where("project_members.project_id = ? AND project_members.subscribed = ? AND users.active = ?", projectID, true, true).
		Order("users.id ASC").
		Find(&users).Error
	return users, err
}

// deliver sends to one recipient and writes exactly one outcome row. Channel
// errors stop here.
func (d *Dispatcher) deliver(ctx context.Context, task *models.DispatchTask, runID string, rcpt models.User) {
	entry := models.DispatchLog{
		TaskID: task.ID,
		UserID: rcpt.ID,
		RunID:  runID,
	}

	if rcpt.ChannelID == "" {
		entry.Outcome = models.OutcomeFailure
		entry.Error = "recipient not connected"
		entry.Attempts = 0
		d.writeLog(&entry)
		return
	}

	maxAttempts := d.maxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		entry.Attempts = attempt
		if lastErr = d.send(ctx, task, rcpt); lastErr == nil {
			entry.Outcome = models.OutcomeSuccess
			d.writeLog(&entry)
			return
		}
		if attempt < maxAttempts {
			time.Sleep(d.backoff * time.Duration(attempt))
		}
	}

	entry.Error = lastErr.Error()
	if maxAttempts > 1 {
		entry.Outcome = models.OutcomeFailedPermanent
	} else {
		entry.Outcome = models.OutcomeFailure
	}
	d.writeLog(&entry)
}

// send guards the channel call so a panicking Sender implementation is
// contained to the recipient it failed on.
func (d *Dispatcher) send(ctx context.Context, task *models.DispatchTask, rcpt models.User) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("channel panic: %v", r)
		}
	}()
	return d.sender.Send(ctx, task.ProjectID, rcpt.ChannelID, task.Content)
}

func (d *Dispatcher) writeLog(entry *models.DispatchLog) {
	if err := d.db.Create(entry).Error; err != nil && utils.Sugar != nil {
		utils.Sugar.Errorf("dispatch log write failed (task %d user %d): %v", entry.TaskID, entry.UserID, err)
	}
}

// ScheduleTask creates a new outbound task for a project.
func (d *Dispatcher) ScheduleTask(projectID uint, content string, scheduledAt time.Time) (*models.DispatchTask, error) {
	if content == "" {
		return nil, validationf("dispatch content must not be empty")
	}
	var project models.Project
	if err := d.db.First(&project, projectID).Error; err != nil {
		return nil, configurationf("project %d not configured", projectID)
	}

	task := models.DispatchTask{
		PublicID:    uuid.NewString(),
		ProjectID:   projectID,
		Content:     utils.Sanitize(content),
		ScheduledAt: scheduledAt,
		Status:      models.DispatchScheduled,
	}
	if err := d.db.Create(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// TaskLogs returns the per-recipient outcome rows for a task.
func (d *Dispatcher) TaskLogs(taskPublicID string) ([]models.DispatchLog, error) {
	var task models.DispatchTask
	if err := d.db.Where("public_id = ?", taskPublicID).First(&task).Error; err != nil {
		return nil, notFoundf("dispatch task %s", taskPublicID)
	}
	var logs []models.DispatchLog
	err := d.db.Where("task_id = ?", task.ID).Order("id ASC").Find(&logs).Error
	return logs, err
}
