package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stridehq/stride/models"
	"github.com/stridehq/stride/services"
	"github.com/stridehq/stride/utils"
)

// CompletionController exposes the completion ledger over HTTP.
type CompletionController struct {
	ledger *services.LedgerService
}

// NewCompletionController creates a new controller instance.
func NewCompletionController(ledger *services.LedgerService) *CompletionController {
	return &CompletionController{ledger: ledger}
}

type submitRequest struct {
	ProjectID uint     `json:"project_id" binding:"required"`
	DayNumber int      `json:"day_number" binding:"required,min=1"`
	MediaRefs []string `json:"media_refs"`
	Notes     string   `json:"notes"`
}

// Submit records the authenticated user's proof for a project day.
func (c *CompletionController) Submit(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var req submitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid submission payload")
		return
	}

	record, err := c.ledger.Submit(userID, req.ProjectID, req.DayNumber, req.MediaRefs, req.Notes)
	if err != nil {
		serviceError(ctx, err)
		return
	}

	utils.Success(ctx, record)
}

type evaluateRequest struct {
	Decision string `json:"decision" binding:"required,oneof=APPROVED REJECTED"`
	Notes    string `json:"notes"`
}

// Evaluate decides a pending submission. Admin only.
func (c *CompletionController) Evaluate(ctx *gin.Context) {
	recordID, ok := paramUint(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40031, "invalid record id")
		return
	}

	var req evaluateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40032, "invalid evaluation payload")
		return
	}

	record, err := c.ledger.Evaluate(recordID, req.Decision, req.Notes)
	if err != nil {
		serviceError(ctx, err)
		return
	}

	utils.Success(ctx, record)
}

// ListMine returns the authenticated user's ledger for a project.
func (c *CompletionController) ListMine(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	projectID, ok := paramUint(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid project id")
		return
	}

	records, err := c.ledger.ListForUser(userID, projectID)
	if err != nil {
		serviceError(ctx, err)
		return
	}
	if records == nil {
		records = []models.CompletionRecord{}
	}
	utils.Success(ctx, records)
}
