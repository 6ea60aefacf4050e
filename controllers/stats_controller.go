package controllers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/stridehq/stride/models"
	"github.com/stridehq/stride/utils"
)

// StatsController provides platform statistics such as counts and dispatch outcomes.
type StatsController struct {
	db *gorm.DB
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{db: db}
}

// GetStats returns aggregate statistics for the platform.
func (s *StatsController) GetStats(ctx *gin.Context) {
	var userCount int64
	var projectCount int64
	var pendingReviews int64
	var dispatchSuccess int64
	var dispatchFailure int64

	if err := s.db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		// Fallback to 0 instead of failing the whole endpoint
		userCount = 0
	}

	if err := s.db.Model(&models.Project{}).Count(&projectCount).Error; err != nil {
		projectCount = 0
	}

	if err := s.db.Model(&models.CompletionRecord{}).
		Where("status = ?", models.CompletionPendingReview).
		Count(&pendingReviews).Error; err != nil {
		pendingReviews = 0
	}

	if err := s.db.Model(&models.DispatchLog{}).
		Where("outcome = ?", models.OutcomeSuccess).
		Count(&dispatchSuccess).Error; err != nil {
		dispatchSuccess = 0
	}

	if err := s.db.Model(&models.DispatchLog{}).
		Where("outcome IN ?", []string{models.OutcomeFailure, models.OutcomeFailedPermanent}).
		Count(&dispatchFailure).Error; err != nil {
		dispatchFailure = 0
	}

	utils.Success(ctx, gin.H{
		"user_count":       userCount,
		"project_count":    projectCount,
		"pending_reviews":  pendingReviews,
		"dispatch_success": dispatchSuccess,
		"dispatch_failure": dispatchFailure,
	})
}
