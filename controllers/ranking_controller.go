package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stridehq/stride/services"
	"github.com/stridehq/stride/utils"
)

// RankingController serves the user and organization leaderboards.
type RankingController struct {
	ranking *services.RankingService
}

// NewRankingController creates a new controller instance.
func NewRankingController(ranking *services.RankingService) *RankingController {
	return &RankingController{ranking: ranking}
}

// Users returns the top users by total points.
func (r *RankingController) Users(ctx *gin.Context) {
	limit := 0
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			utils.Error(ctx, http.StatusBadRequest, 40040, "invalid limit")
			return
		}
		limit = n
	}

	entries, err := r.ranking.RankUsers(limit)
	if err != nil {
		serviceError(ctx, err)
		return
	}
	if entries == nil {
		entries = []services.UserRankEntry{}
	}
	utils.Success(ctx, entries)
}

// Organizations returns the full organization leaderboard.
func (r *RankingController) Organizations(ctx *gin.Context) {
	entries, err := r.ranking.RankOrganizations()
	if err != nil {
		serviceError(ctx, err)
		return
	}
	if entries == nil {
		entries = []services.OrgRankEntry{}
	}
	utils.Success(ctx, entries)
}
