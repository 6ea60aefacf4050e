package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stridehq/stride/services"
	"github.com/stridehq/stride/utils"
)

// DispatchController exposes outbound task scheduling and delivery logs.
type DispatchController struct {
	dispatcher *services.Dispatcher
}

// NewDispatchController creates a new controller instance.
func NewDispatchController(dispatcher *services.Dispatcher) *DispatchController {
	return &DispatchController{dispatcher: dispatcher}
}

type createTaskRequest struct {
	ProjectID   uint      `json:"project_id" binding:"required"`
	Content     string    `json:"content" binding:"required"`
	ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
}

// CreateTask schedules an outbound message for a project's subscribers. Admin only.
func (d *DispatchController) CreateTask(ctx *gin.Context) {
	var req createTaskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40050, "invalid task payload")
		return
	}

	task, err := d.dispatcher.ScheduleTask(req.ProjectID, req.Content, req.ScheduledAt)
	if err != nil {
		serviceError(ctx, err)
		return
	}

	utils.Success(ctx, task)
}

// TaskLogs returns the per-recipient outcome rows for a task. Admin only.
func (d *DispatchController) TaskLogs(ctx *gin.Context) {
	publicID := ctx.Param("id")
	if publicID == "" {
		utils.Error(ctx, http.StatusBadRequest, 40051, "invalid task id")
		return
	}

	logs, err := d.dispatcher.TaskLogs(publicID)
	if err != nil {
		serviceError(ctx, err)
		return
	}

	utils.Success(ctx, logs)
}
