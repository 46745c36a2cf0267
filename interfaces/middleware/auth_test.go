package middleware

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

const secret = "session-secret"

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(ContextUserID), "role": c.GetString(ContextRole)})
	})
	r.GET("/", handlers...)
	return r
}

func do(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	r := newRouter(Auth(secret))

	token, err := utils.GenerateToken("u1", "eddy", "", secret, time.Hour)
	require.NoError(t, err)
	w := do(r, token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"u1","role":""}`, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, do(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "garbage").Code)

	forged, err := utils.GenerateToken("u1", "eddy", "", "other-secret", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(r, forged).Code)

	expired, err := utils.GenerateToken("u1", "eddy", "", secret, -time.Minute)
	require.NoError(t, err)
	w = do(r, expired)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Timing is everything")
}

func TestOptionalAuth(t *testing.T) {
	r := newRouter(OptionalAuth(secret))

	w := do(r, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"","role":""}`, w.Body.String())

	w = do(r, "garbage")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"","role":""}`, w.Body.String())

	token, err := utils.GenerateToken("u2", "", "", secret, time.Hour)
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_id":"u2","role":""}`, do(r, token).Body.String())
}

func TestAdminOnly(t *testing.T) {
	r := newRouter(Auth(secret), AdminOnly())

	user, err := utils.GenerateToken("u1", "", "", secret, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, do(r, user).Code)

	admin, err := utils.GenerateToken("a1", "", model.RoleAdmin, secret, time.Hour)
	require.NoError(t, err)
	w := do(r, admin)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"a1","role":"admin"}`, w.Body.String())
}
