package http

import (
	"net/http"

	"wellness-sync/domain/apperror"
	"wellness-sync/domain/dto"
	"wellness-sync/interfaces/middleware"
	"wellness-sync/usecase"

	"github.com/gin-gonic/gin"
)

type IStravaAuthHandler interface {
	Auth(ctx *gin.Context)
}

type StravaAuthHandler struct {
	flow usecase.IAuthorizationFlow
}

func NewStravaAuthHandler(flow usecase.IAuthorizationFlow) IStravaAuthHandler {
	return &StravaAuthHandler{flow: flow}
}

// Auth serves both steps of the browser flow: {type:"authorize_url"} returns the provider URL,
// {code} exchanges the code for the session user.
func (h *StravaAuthHandler) Auth(ctx *gin.Context) {
	var req dto.StravaAuthRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondError(ctx, "strava.auth", apperror.Validation("strava.auth", "invalid request body"))
		return
	}
	origin := ctx.GetHeader("Origin")

	if req.Type == dto.AuthRequestAuthorizeURL {
		authURL, _ := h.flow.BuildAuthorizationURL(origin, req.ReturnURL)
		ctx.JSON(http.StatusOK, dto.AuthorizeURLResponse{URL: authURL})
		return
	}

	userID := ctx.GetString(middleware.ContextUserID)
	athlete, err := h.flow.ExchangeCode(ctx.Request.Context(), req.Code, userID, origin)
	if err != nil {
		status := apperror.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			respondError(ctx, "strava.exchange", err)
			return
		}
		// The browser flow only distinguishes success from a bad request.
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res := dto.ExchangeResponse{Success: true, Athlete: athlete}
	if req.State != "" {
		if state, err := h.flow.DecodeState(req.State); err == nil {
			res.ReturnURL = state.ReturnURL
		}
	}
	ctx.JSON(http.StatusOK, res)
}
