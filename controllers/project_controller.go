package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stridehq/stride/config"
	"github.com/stridehq/stride/models"
	"github.com/stridehq/stride/utils"
)

// ProjectController manages projects, enrollment and the day template plan.
type ProjectController struct {
	db *gorm.DB
}

// NewProjectController creates a new controller instance.
func NewProjectController(db *gorm.DB) *ProjectController {
	return &ProjectController{db: db}
}

type createProjectRequest struct {
	OrganizationID uint      `json:"organization_id"`
	Name           string    `json:"name" binding:"required,max=128"`
	Description    string    `json:"description"`
	TotalDays      int       `json:"total_days"`
	StartDate      time.Time `json:"start_date"`
}

// CreateProject creates a new challenge project.
func (p *ProjectController) CreateProject(ctx *gin.Context) {
	var req createProjectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid project payload")
		return
	}

	totalDays := req.TotalDays
	if totalDays <= 0 {
		totalDays = config.Get().DefaultProjectDays
	}

	project := models.Project{
		OrganizationID: req.OrganizationID,
		Name:           req.Name,
		Description:    utils.Sanitize(req.Description),
		TotalDays:      totalDays,
		StartDate:      req.StartDate,
	}
	if err := p.db.Create(&project).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to create project")
		return
	}

	utils.Success(ctx, project)
}

type templateImportItem struct {
	DayNumber     int    `json:"day_number" binding:"required,min=1"`
	Title         string `json:"title" binding:"required,max=255"`
	Description   string `json:"description"`
	PointsBase    int    `json:"points_base"`
	RequiresPhoto bool   `json:"requires_photo"`
}

type templateImportRequest struct {
	Templates []templateImportItem `json:"templates" binding:"required,min=1,dive"`
}

// ImportTemplates batch-imports a project's day plan. The whole batch runs in
// one transaction: either every day is upserted or none is.
func (p *ProjectController) ImportTemplates(ctx *gin.Context) {
	projectID, ok := paramUint(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid project id")
		return
	}

	var req templateImportRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40022, "invalid template batch payload")
		return
	}

	var project models.Project
	if err := p.db.First(&project, projectID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40420, "project not found")
		return
	}

	cfg := config.Get()
	err := p.db.Transaction(func(tx *gorm.DB) error {
		for _, item := range req.Templates {
			points := item.PointsBase
			if points <= 0 {
				points = cfg.PointsBase
			}
			tmpl := models.DayTemplate{
				ProjectID:     projectID,
				DayNumber:     item.DayNumber,
				Title:         item.Title,
				Description:   utils.Sanitize(item.Description),
				PointsBase:    points,
				RequiresPhoto: item.RequiresPhoto,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "project_id"}, {Name: "day_number"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"title", "description", "points_base", "requires_photo", "synthesized", "updated_at",
				}),
			}).Create(&tmpl).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "template import failed")
		return
	}

	utils.Success(ctx, gin.H{"imported": len(req.Templates)})
}

// ListTemplates returns the configured day plan for a project.
func (p *ProjectController) ListTemplates(ctx *gin.Context) {
	projectID, ok := paramUint(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid project id")
		return
	}

	var templates []models.DayTemplate
	if err := p.db.Where("project_id = ?", projectID).Order("day_number ASC").Find(&templates).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to load templates")
		return
	}

	utils.Success(ctx, templates)
}

type addMemberRequest struct {
	UserID     uint `json:"user_id" binding:"required"`
	Subscribed bool `json:"subscribed"`
}

// AddMember enrolls a user into a project.
func (p *ProjectController) AddMember(ctx *gin.Context) {
	projectID, ok := paramUint(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid project id")
		return
	}

	var req addMemberRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40023, "invalid member payload")
		return
	}

	var user models.User
	if err := p.db.First(&user, req.UserID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40421, "user not found")
		return
	}

	member := models.ProjectMember{
		ProjectID:  projectID,
		UserID:     req.UserID,
		Subscribed: req.Subscribed,
	}
	if err := p.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"subscribed"}),
	}).Create(&member).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to enroll member")
		return
	}

	utils.Success(ctx, member)
}

func paramUint(ctx *gin.Context, name string) (uint, bool) {
	raw := ctx.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
