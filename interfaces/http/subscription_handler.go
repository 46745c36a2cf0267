package http

import (
	"net/http"

	"wellness-sync/domain/apperror"
	"wellness-sync/domain/dto"
	"wellness-sync/usecase"

	"github.com/gin-gonic/gin"
)

type ISubscriptionHandler interface {
	Manage(ctx *gin.Context)
}

type SubscriptionHandler struct {
	manager usecase.ISubscriptionManager
}

func NewSubscriptionHandler(manager usecase.ISubscriptionManager) ISubscriptionHandler {
	return &SubscriptionHandler{manager: manager}
}

// Manage dispatches on the request action: view, create, delete or validate.
func (h *SubscriptionHandler) Manage(ctx *gin.Context) {
	var req dto.WebhookAdminRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondError(ctx, "subscription.manage", apperror.Validation("subscription.manage", "action is required"))
		return
	}
	host := ctx.Request.Host
	c := ctx.Request.Context()

	var (
		res interface{}
		err error
	)
	switch req.Action {
	case usecase.ActionView:
		res, err = h.manager.View(c, host)
	case usecase.ActionCreate:
		res, err = h.manager.Create(c, host, req.VerifyToken)
	case usecase.ActionDelete:
		res, err = h.manager.Delete(c)
	case usecase.ActionValidate:
		res, err = h.manager.Validate(c, host, req.VerifyToken)
	default:
		err = apperror.Validation("subscription.manage", "unknown action: "+req.Action)
	}
	if err != nil {
		respondError(ctx, "subscription."+req.Action, err)
		return
	}
	ctx.JSON(http.StatusOK, res)
}
