package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/stridehq/stride/config"
	"github.com/stridehq/stride/models"
	"github.com/stridehq/stride/utils"
)

const rankCachePrefix = "rank:"

// RankingService maintains the per (user, project) running totals and serves
// leaderboard reads from them, so ranking queries never scan the ledger.
type RankingService struct {
	db *gorm.DB
}

// NewRankingService creates a ranking service over the given database.
func NewRankingService(db *gorm.DB) *RankingService {
	return &RankingService{db: db}
}

// ApplyDelta adjusts the aggregate for (userID, projectID) inside the caller's
// transaction. The aggregate row is locked for the duration, and totals plus
// the derived completion rate are written in a single update, so concurrent
// writers cannot observe a half-applied aggregate.
func (r *RankingService) ApplyDelta(tx *gorm.DB, userID, projectID uint, pointsDelta, completionDelta int) error {
	if pointsDelta == 0 && completionDelta == 0 {
		return nil
	}

	totalDays := r.projectTotalDays(tx, projectID)

	var agg models.RankingAggregate
	err := lockForUpdate(tx).
		Where("user_id = ? AND project_id = ?", userID, projectID).
		First(&agg).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		agg = models.RankingAggregate{
			UserID:    userID,
			ProjectID: projectID,
		}
	case err != nil:
		return err
	}

	agg.TotalPoints += pointsDelta
	if agg.TotalPoints < 0 {
		agg.TotalPoints = 0
	}
	agg.CompletedDays += completionDelta
	if agg.CompletedDays < 0 {
		agg.CompletedDays = 0
	}
	agg.CompletionRate = completionRate(agg.CompletedDays, totalDays)

	if err := tx.Save(&agg).Error; err != nil {
		return err
	}

	utils.InvalidateByPrefix(rankCachePrefix)
	return nil
}

// projectTotalDays reads the owning project's day count, falling back to the
// configured default when the project row is missing.
func (r *RankingService) projectTotalDays(tx *gorm.DB, projectID uint) int {
	fallback := config.Get().DefaultProjectDays
	var project models.Project
	if err := tx.First(&project, projectID).Error; err != nil {
		if utils.Sugar != nil {
			utils.Sugar.Warnf("project %d missing while updating aggregate, assuming %d days", projectID, fallback)
		}
		return fallback
	}
	if project.TotalDays <= 0 {
		return fallback
	}
	return project.TotalDays
}

func completionRate(completedDays, totalDays int) int {
	if totalDays <= 0 {
		return 0
	}
	rate := int(math.Round(float64(completedDays) / float64(totalDays) * 100))
	if rate < 0 {
		return 0
	}
	if rate > 100 {
		return 100
	}
	return rate
}

// UserRankEntry is one leaderboard row.
type UserRankEntry struct {
	UserID      uint   `json:"user_id"`
	Username    string `json:"username"`
	TotalPoints int    `json:"total_points"`
}

// RankUsers returns the top users by accumulated points across all projects.
// Ties break by user id ascending so the ordering is deterministic.
func (r *RankingService) RankUsers(limit int) ([]UserRankEntry, error) {
	if limit <= 0 {
		limit = config.Get().RankingLimit
	}

	cacheKey := fmt.Sprintf("%susers:%d", rankCachePrefix, limit)
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		var cached []UserRankEntry
		if err := json.Unmarshal(b, &cached); err == nil {
			return cached, nil
		}
	}

	var entries []UserRankEntry
	err := r.db.Model(&models.RankingAggregate{}).
		Select("ranking_aggregates.user_id AS user_id, users.username AS username, SUM(ranking_aggregates.total_points) AS total_points").
		Joins("JOIN users ON users.id = ranking_aggregates.user_id").
		Where("users.active = ?", true).
		Group("ranking_aggregates.user_id, users.username").
		Order("total_points DESC, user_id ASC").
		Limit(limit).
		Scan(&entries).Error
	if err != nil {
		return nil, err
	}

	utils.CacheSetJSON(cacheKey, entries, time.Duration(config.Get().RankingCacheTTLSec)*time.Second)
	return entries, nil
}

// OrgRankEntry is one organization leaderboard row.
type OrgRankEntry struct {
	OrganizationID uint   `json:"organization_id"`
	Name           string `json:"name"`
	TotalPoints    int    `json:"total_points"`
	AveragePoints  int    `json:"average_points"`
	MemberCount    int    `json:"member_count"`
}

// RankOrganizations returns the full organization leaderboard ordered by total
// points descending, ties broken by organization id.
func (r *RankingService) RankOrganizations() ([]OrgRankEntry, error) {
	cacheKey := rankCachePrefix + "orgs"
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		var cached []OrgRankEntry
		if err := json.Unmarshal(b, &cached); err == nil {
			return cached, nil
		}
	}

	var entries []OrgRankEntry
	err := r.db.Model(&models.RankingAggregate{}).
		Select("users.organization_id AS organization_id, organizations.name AS name, SUM(ranking_aggregates.total_points) AS total_points, COUNT(DISTINCT users.id) AS member_count").
		Joins("JOIN users ON users.id = ranking_aggregates.user_id").
		Joins("JOIN organizations ON organizations.id = users.organization_id").
		Where("users.active = ?", true).
		Group("users.organization_id, organizations.name").
		Order("total_points DESC, organization_id ASC").
		Scan(&entries).Error
	if err != nil {
		return nil, err
	}

	for i := range entries {
		if entries[i].MemberCount > 0 {
			entries[i].AveragePoints = int(math.Round(float64(entries[i].TotalPoints) / float64(entries[i].MemberCount)))
		}
	}

	utils.CacheSetJSON(cacheKey, entries, time.Duration(config.Get().RankingCacheTTLSec)*time.Second)
	return entries, nil
}
