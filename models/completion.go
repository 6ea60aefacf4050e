package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Completion record statuses.
const (
	CompletionNotStarted    = "NOT_STARTED"
	CompletionPendingReview = "PENDING_REVIEW"
	CompletionApproved      = "APPROVED"
	CompletionRejected      = "REJECTED"
)

// MediaRefList is an ordered list of media references persisted as a JSON
// array in a text column. Legacy rows may still hold a bare path; Scan accepts
// both, Value always writes the JSON form.
type MediaRefList []string

// Value implements driver.Valuer.
func (m MediaRefList) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal([]string(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *MediaRefList) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("unsupported media ref column type %T", src)
	}
	*m = parseMediaRefs(raw)
	return nil
}

// parseMediaRefs tolerates the legacy bare-path encoding alongside the JSON array form.
func parseMediaRefs(raw string) MediaRefList {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "[]" || raw == "null" {
		return nil
	}
	if strings.HasPrefix(raw, "[") {
		var list []string
		if err := json.Unmarshal([]byte(raw), &list); err == nil {
			return MediaRefList(list)
		}
	}
	return MediaRefList{raw}
}

// CompletionRecord is the ledger row for one user's proof of completing one
// project day. At most one record exists per (user, project, day); submissions
// upsert it, evaluations decide it.
type CompletionRecord struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	UserID        uint         `gorm:"uniqueIndex:idx_user_project_day;not null" json:"user_id"`
	ProjectID     uint         `gorm:"uniqueIndex:idx_user_project_day;not null" json:"project_id"`
	DayNumber     int          `gorm:"uniqueIndex:idx_user_project_day;not null" json:"day_number"`
	Status        string       `gorm:"size:32;default:'NOT_STARTED'" json:"status"`
	PointsAwarded int          `gorm:"default:0" json:"points_awarded"`
	MediaRefs     MediaRefList `gorm:"type:text" json:"media_refs"`
	Notes         string       `gorm:"type:text" json:"notes"`
	SubmittedAt   *time.Time   `json:"submitted_at"`
	EvaluatedAt   *time.Time   `json:"evaluated_at"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// ApprovedPoints returns the record's current contribution to ranking totals.
func (c *CompletionRecord) ApprovedPoints() int {
	if c.Status == CompletionApproved {
		return c.PointsAwarded
	}
	return 0
}

// NormalizeLegacyMediaRefs rewrites rows whose media column still holds a bare
// path into the JSON array encoding. One-time migration pass, run at boot.
func NormalizeLegacyMediaRefs(db *gorm.DB) (int, error) {
	type row struct {
		ID        uint
		MediaRefs string
	}
	var rows []row
	if err := db.Model(&CompletionRecord{}).
		Where("media_refs != '' AND media_refs NOT LIKE '[%'").
		Select("id", "media_refs").
		Find(&rows).Error; err != nil {
		return 0, err
	}
	fixed := 0
	for _, r := range rows {
		list := parseMediaRefs(r.MediaRefs)
		val, err := list.Value()
		if err != nil {
			continue
		}
		if err := db.Model(&CompletionRecord{}).Where("id = ?", r.ID).
			Update("media_refs", val).Error; err != nil {
			return fixed, err
		}
		fixed++
	}
	return fixed, nil
}
