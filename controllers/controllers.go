package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stridehq/stride/middleware"
	"github.com/stridehq/stride/services"
	"github.com/stridehq/stride/utils"
)

// getUserID extracts the authenticated user id placed in context by the auth middleware.
func getUserID(ctx *gin.Context) (uint, bool) {
	v, ok := ctx.Get(middleware.ContextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// serviceError maps the service error taxonomy onto the response envelope.
func serviceError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		utils.Error(ctx, http.StatusBadRequest, 40001, err.Error())
	case errors.Is(err, services.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40401, err.Error())
	case errors.Is(err, services.ErrConfiguration):
		utils.Error(ctx, http.StatusUnprocessableEntity, 42201, err.Error())
	default:
		if utils.Sugar != nil {
			utils.Sugar.Errorf("internal error: %v", err)
		}
		utils.Error(ctx, http.StatusInternalServerError, 50001, "internal error")
	}
}
