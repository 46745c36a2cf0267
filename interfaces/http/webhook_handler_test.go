package http_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"wellness-sync/domain/model"
	handler "wellness-sync/interfaces/http"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func webhookRouter(ingestor *MockIngestor) *gin.Engine {
	h := handler.NewWebhookHandler(ingestor)
	r := gin.New()
	r.GET("/webhook", h.Verify)
	r.POST("/webhook", h.Receive)
	return r
}

func TestWebhookHandler_VerifyEchoesChallenge(t *testing.T) {
	ingestor := new(MockIngestor)
	ingestor.On("VerifyChallenge", "subscribe", "verify-me").Return(true)

	w := httptest.NewRecorder()
	webhookRouter(ingestor).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=xyz789", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"hub.challenge":"xyz789"}`, w.Body.String())
}

func TestWebhookHandler_VerifyRejectsWrongToken(t *testing.T) {
	ingestor := new(MockIngestor)
	ingestor.On("VerifyChallenge", "subscribe", "nope").Return(false)

	w := httptest.NewRecorder()
	webhookRouter(ingestor).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=xyz789", nil))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.NotContains(t, w.Body.String(), "xyz789")
}

func TestWebhookHandler_ReceiveRejectsMalformedJSON(t *testing.T) {
	ingestor := new(MockIngestor)

	w := httptest.NewRecorder()
	webhookRouter(ingestor).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"aspect_type":`)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "error")
	ingestor.AssertNotCalled(t, "HandleEvent", mock.Anything, mock.Anything)
}

func TestWebhookHandler_ReceiveAlwaysAcknowledges(t *testing.T) {
	ingestor := new(MockIngestor)
	ingestor.On("HandleEvent", mock.Anything, mock.MatchedBy(func(e *model.WebhookEvent) bool {
		return e.ObjectID == "12345678987654321" && e.OwnerID == "134815" && e.AspectType == "create"
	})).Return("failed", assert.AnError)

	body := `{"aspect_type":"create","event_time":1516126040,"object_id":12345678987654321,"object_type":"activity","owner_id":"134815","subscription_id":120475,"updates":{}}`
	w := httptest.NewRecorder()
	webhookRouter(ingestor).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "EVENT_RECEIVED", w.Body.String())
	ingestor.AssertExpectations(t)
}

func TestParseWebhookEvent(t *testing.T) {
	evt := handler.ParseWebhookEvent([]byte(`{"aspect_type":"update","object_type":"athlete","object_id":"134815","owner_id":134815,"subscription_id":120475,"event_time":1516126040,"updates":{"authorized":"false"}}`))

	assert.Equal(t, "134815", evt.ObjectID)
	assert.Equal(t, "134815", evt.OwnerID)
	assert.Equal(t, int64(120475), evt.SubscriptionID)
	assert.Equal(t, int64(1516126040), evt.EventTime)
	require.NotNil(t, evt.Updates)
	assert.True(t, evt.Deauthorization())

	evt = handler.ParseWebhookEvent([]byte(`{"aspect_type":"create","object_type":"activity","object_id":1}`))
	assert.Nil(t, evt.Updates)
}

func TestWebhookHandler_ReceiveOversizedBodyIsNotReportedAsMalformed(t *testing.T) {
	ingestor := new(MockIngestor)
	body := `{"aspect_type":"create","object_type":"activity","padding":"` + strings.Repeat("x", 1<<20) + `"}`

	w := httptest.NewRecorder()
	webhookRouter(ingestor).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.NotContains(t, w.Body.String(), "invalid JSON")
	ingestor.AssertNotCalled(t, "HandleEvent", mock.Anything, mock.Anything)
}
