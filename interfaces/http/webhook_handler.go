package http

import (
	"errors"
	"io"
	"net/http"

	"wellness-sync/domain/model"
	"wellness-sync/infrastructure/logger"
	"wellness-sync/usecase"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
)

const (
	maxWebhookBody = 1 << 20
	eventReceived  = "EVENT_RECEIVED"
)

type IWebhookHandler interface {
	Verify(ctx *gin.Context)
	Receive(ctx *gin.Context)
}

type WebhookHandler struct {
	ingestor usecase.IWebhookIngestor
}

func NewWebhookHandler(ingestor usecase.IWebhookIngestor) IWebhookHandler {
	return &WebhookHandler{ingestor: ingestor}
}

// Verify answers the subscription handshake.
func (h *WebhookHandler) Verify(ctx *gin.Context) {
	mode := ctx.Query("hub.mode")
	if !h.ingestor.VerifyChallenge(mode, ctx.Query("hub.verify_token")) {
		logger.GetLogger().WithField("mode", mode).Warn("Webhook verification failed")
		ctx.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"hub.challenge": ctx.Query("hub.challenge")})
}

// Receive acknowledges every parsable event with 200, whatever happens downstream, so the
// provider never retries.
func (h *WebhookHandler) Receive(ctx *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxWebhookBody))
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		logger.GetLogger().WithField("limit", tooLarge.Limit).Warn("Webhook payload too large")
		ctx.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
		return
	}
	if err != nil || !gjson.ValidBytes(body) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}

	evt := ParseWebhookEvent(body)
	_, _ = h.ingestor.HandleEvent(ctx.Request.Context(), evt)
	ctx.String(http.StatusOK, eventReceived)
}

// ParseWebhookEvent reads ids that may arrive as JSON strings or numbers.
func ParseWebhookEvent(body []byte) *model.WebhookEvent {
	parsed := gjson.ParseBytes(body)
	evt := &model.WebhookEvent{
		AspectType:     parsed.Get("aspect_type").String(),
		ObjectType:     parsed.Get("object_type").String(),
		ObjectID:       parsed.Get("object_id").String(),
		OwnerID:        parsed.Get("owner_id").String(),
		SubscriptionID: parsed.Get("subscription_id").Int(),
		EventTime:      parsed.Get("event_time").Int(),
		Raw:            body,
	}
	if updates := parsed.Get("updates"); updates.IsObject() {
		evt.Updates = make(map[string]string)
		updates.ForEach(func(key, value gjson.Result) bool {
			evt.Updates[key.String()] = value.String()
			return true
		})
	}
	return evt
}
