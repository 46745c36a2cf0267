package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wellness-sync/domain/model"
	"wellness-sync/infrastructure/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "router-secret"

type stubHandlers struct{}

func (stubHandlers) ok(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"path": c.FullPath()}) }

func (s stubHandlers) Healthz(c *gin.Context) { s.ok(c) }
func (s stubHandlers) Auth(c *gin.Context)    { s.ok(c) }
func (s stubHandlers) Verify(c *gin.Context)  { s.ok(c) }
func (s stubHandlers) Receive(c *gin.Context) { s.ok(c) }
func (s stubHandlers) Manage(c *gin.Context)  { s.ok(c) }
func (s stubHandlers) Process(c *gin.Context) { s.ok(c) }
func (s stubHandlers) Stream(c *gin.Context)  { s.ok(c) }
func (s stubHandlers) Sync(c *gin.Context)    { s.ok(c) }
func (s stubHandlers) Status(c *gin.Context)  { s.ok(c) }
func (s stubHandlers) Segment(c *gin.Context) { s.ok(c) }

func testRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	s := stubHandlers{}
	return InitiateRouter(RouterConfig{SecretKey: secret, AllowedOrigins: []string{"https://app.example.com"}}, Handlers{
		Health: s, StravaAuth: s, Webhook: s, Subscription: s, Stage: s, Strava: s,
	})
}

func request(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_PublicRoutes(t *testing.T) {
	r := testRouter()

	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, request(r, http.MethodPost, "/strava/auth", "").Code)
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/webhook", "").Code)
	assert.Equal(t, http.StatusOK, request(r, http.MethodPost, "/webhook", "").Code)
}

func TestRouter_SessionAndAdminGuards(t *testing.T) {
	r := testRouter()
	user, err := utils.GenerateToken("u1", "", "", secret, time.Hour)
	require.NoError(t, err)
	admin, err := utils.GenerateToken("a1", "", model.RoleAdmin, secret, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, request(r, http.MethodPost, "/api/strava/sync", "").Code)
	assert.Equal(t, http.StatusOK, request(r, http.MethodPost, "/api/strava/sync", user).Code)
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/api/strava/status", user).Code)
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/api/strava/segments/42", user).Code)

	assert.Equal(t, http.StatusForbidden, request(r, http.MethodPost, "/api/strava/stages/s1/process", user).Code)
	assert.Equal(t, http.StatusOK, request(r, http.MethodPost, "/api/strava/stages/s1/process", admin).Code)
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/api/strava/stages/s1/stream", admin).Code)

	assert.Equal(t, http.StatusUnauthorized, request(r, http.MethodPost, "/admin/strava/webhook", "").Code)
	assert.Equal(t, http.StatusForbidden, request(r, http.MethodPost, "/admin/strava/webhook", user).Code)
	assert.Equal(t, http.StatusOK, request(r, http.MethodPost, "/admin/strava/webhook", admin).Code)
}

func TestRouter_CORS(t *testing.T) {
	r := testRouter()

	req := httptest.NewRequest(http.MethodOptions, "/strava/auth", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/strava/auth", nil)
	req.Header.Set("Origin", "https://evil.example.net")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
