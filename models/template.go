package models

import "time"

// DayTemplate configures one day of a project: what to do and what it is worth.
// Unique per (project, day). Created by admin batch import, read by the ledger.
type DayTemplate struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ProjectID     uint      `gorm:"uniqueIndex:idx_project_day;not null" json:"project_id"`
	DayNumber     int       `gorm:"uniqueIndex:idx_project_day;not null" json:"day_number"`
	Title         string    `gorm:"size:255;not null" json:"title"`
	Description   string    `gorm:"type:text" json:"description"`
	PointsBase    int       `gorm:"not null" json:"points_base"`
	RequiresPhoto bool      `gorm:"default:false" json:"requires_photo"`
	// Synthesized marks templates produced by the opt-in compatibility fallback
	// rather than admin configuration.
	Synthesized bool      `gorm:"default:false" json:"synthesized"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
