package http

import (
	"wellness-sync/domain/apperror"
	"wellness-sync/infrastructure/logger"

	"github.com/gin-gonic/gin"
)

// respondError writes {"error": msg} with the status mapped from the error kind.
func respondError(ctx *gin.Context, op string, err error) {
	status := apperror.HTTPStatus(err)
	entry := logger.GetLogger().WithField("path", ctx.FullPath()).WithField("op", op).WithField("error", err)
	if status >= 500 {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}
	ctx.JSON(status, gin.H{"error": err.Error()})
}
