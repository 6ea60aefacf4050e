package models

import "time"

// Project is a time-boxed challenge composed of daily micro-actions.
type Project struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OrganizationID uint      `gorm:"index" json:"organization_id"`
	Name           string    `gorm:"size:128;not null" json:"name"`
	Description    string    `gorm:"type:text" json:"description"`
	TotalDays      int       `gorm:"default:21" json:"total_days"`
	StartDate      time.Time `json:"start_date"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ProjectMember enrolls a user into a project. Subscribed members receive
// scheduled outbound messages for the project.
type ProjectMember struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ProjectID  uint      `gorm:"uniqueIndex:idx_project_user;not null" json:"project_id"`
	UserID     uint      `gorm:"uniqueIndex:idx_project_user;not null" json:"user_id"`
	Subscribed bool      `gorm:"default:true" json:"subscribed"`
	CreatedAt  time.Time `json:"created_at"`
	User       User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}
