package http

import (
	"net/http"

	"wellness-sync/usecase"

	"github.com/gin-gonic/gin"
)

type IStageHandler interface {
	Process(ctx *gin.Context)
	Stream(ctx *gin.Context)
}

// StreamServer serves the live log of a stage sync.
type StreamServer interface {
	Serve(c *gin.Context)
}

type StageHandler struct {
	batch  usecase.IBatchSync
	stream StreamServer
}

func NewStageHandler(batch usecase.IBatchSync, stream StreamServer) IStageHandler {
	return &StageHandler{batch: batch, stream: stream}
}

func (h *StageHandler) Process(ctx *gin.Context) {
	stageID := ctx.Param("stageId")
	report, err := h.batch.Run(ctx.Request.Context(), stageID)
	if err != nil {
		respondError(ctx, "stage.process", err)
		return
	}
	ctx.JSON(http.StatusOK, report)
}

func (h *StageHandler) Stream(ctx *gin.Context) {
	if h.stream == nil {
		ctx.JSON(http.StatusNotImplemented, gin.H{"error": "live stream not configured"})
		return
	}
	h.stream.Serve(ctx)
}
