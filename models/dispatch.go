package models

import "time"

// Dispatch task statuses. Transitions only move forward:
// SCHEDULED -> SENDING -> DONE.
const (
	DispatchScheduled = "SCHEDULED"
	DispatchSending   = "SENDING"
	DispatchDone      = "DONE"
)

// Per-recipient delivery outcomes.
const (
	OutcomeSuccess = "SUCCESS"
	OutcomeFailure = "FAILURE"
	// OutcomeFailedPermanent marks a recipient whose bounded retries were
	// exhausted. Only produced when DispatchMaxAttempts > 1.
	OutcomeFailedPermanent = "FAILED_PERMANENT"
)

// DispatchTask is an admin-scheduled outbound message for a project's subscribers.
type DispatchTask struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	PublicID    string     `gorm:"size:36;uniqueIndex" json:"public_id"`
	ProjectID   uint       `gorm:"index;not null" json:"project_id"`
	Content     string     `gorm:"type:text;not null" json:"content"`
	ScheduledAt time.Time  `gorm:"index;not null" json:"scheduled_at"`
	Status      string     `gorm:"size:16;default:'SCHEDULED';index" json:"status"`
	StartedAt   *time.Time `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// DispatchLog records one delivery attempt outcome per (task, recipient).
// Append-only; written during a dispatch run.
type DispatchLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TaskID    uint      `gorm:"index;not null" json:"task_id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	RunID     string    `gorm:"size:36;index" json:"run_id"`
	Outcome   string    `gorm:"size:24;not null" json:"outcome"`
	Attempts  int       `gorm:"default:1" json:"attempts"`
	Error     string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
