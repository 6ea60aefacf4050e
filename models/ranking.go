package models

import "time"

// RankingAggregate caches running totals per (user, project) so leaderboard
// reads never scan the completion ledger. It is derived state: it must always
// equal the sum/count over APPROVED completion records for the pair, and is
// maintained incrementally via deltas inside the same transaction that
// mutates the ledger.
type RankingAggregate struct {
	ID            uint `gorm:"primaryKey" json:"id"`
	UserID        uint `gorm:"uniqueIndex:idx_user_project;not null" json:"user_id"`
	ProjectID     uint `gorm:"uniqueIndex:idx_user_project;not null" json:"project_id"`
	TotalPoints   int  `gorm:"default:0" json:"total_points"`
	CompletedDays int  `gorm:"default:0" json:"completed_days"`
	// CompletionRate is completedDays / project.TotalDays * 100, rounded.
	CompletionRate int       `gorm:"default:0" json:"completion_rate"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
