package controllers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stridehq/stride/config"
	"github.com/stridehq/stride/services"
	"github.com/stridehq/stride/utils"
)

// WebhookController receives provider callbacks announcing completion proofs.
type WebhookController struct {
	webhook *services.WebhookService
}

// NewWebhookController creates a new controller instance.
func NewWebhookController(webhook *services.WebhookService) *WebhookController {
	return &WebhookController{webhook: webhook}
}

// Receive handles an inbound callback for the configured provider.
func (w *WebhookController) Receive(ctx *gin.Context) {
	provider := ctx.Param("provider")
	if provider != config.Get().ChannelProvider {
		utils.Error(ctx, http.StatusNotFound, 40450, "unknown provider")
		return
	}

	raw, err := io.ReadAll(io.LimitReader(ctx.Request.Body, 1<<20))
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40060, "unreadable payload")
		return
	}

	record, err := w.webhook.HandleSubmission(raw)
	if err != nil {
		serviceError(ctx, err)
		return
	}

	utils.Success(ctx, record)
}
