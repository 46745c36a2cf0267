package http

import (
	"net/http"

	"wellness-sync/interfaces/middleware"
	"wellness-sync/usecase"

	"github.com/gin-gonic/gin"
)

type IStravaHandler interface {
	Sync(ctx *gin.Context)
	Status(ctx *gin.Context)
	Segment(ctx *gin.Context)
}

type StravaHandler struct {
	sync     usecase.IActivitySync
	segments usecase.ISegmentLookup
}

func NewStravaHandler(sync usecase.IActivitySync, segments usecase.ISegmentLookup) IStravaHandler {
	return &StravaHandler{sync: sync, segments: segments}
}

func (h *StravaHandler) Sync(ctx *gin.Context) {
	res, err := h.sync.SyncUser(ctx.Request.Context(), ctx.GetString(middleware.ContextUserID))
	if err != nil {
		respondError(ctx, "strava.sync", err)
		return
	}
	ctx.JSON(http.StatusOK, res)
}

func (h *StravaHandler) Status(ctx *gin.Context) {
	res, err := h.sync.Status(ctx.Request.Context(), ctx.GetString(middleware.ContextUserID))
	if err != nil {
		respondError(ctx, "strava.status", err)
		return
	}
	ctx.JSON(http.StatusOK, res)
}

func (h *StravaHandler) Segment(ctx *gin.Context) {
	res, err := h.segments.GetSegment(ctx.Request.Context(), ctx.GetString(middleware.ContextUserID), ctx.Param("segmentId"))
	if err != nil {
		respondError(ctx, "strava.segment", err)
		return
	}
	ctx.JSON(http.StatusOK, res)
}
