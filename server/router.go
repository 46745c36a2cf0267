package server

import (
	"time"

	httpHandler "wellness-sync/interfaces/http"
	"wellness-sync/interfaces/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Health       httpHandler.IHealthHandler
	StravaAuth   httpHandler.IStravaAuthHandler
	Webhook      httpHandler.IWebhookHandler
	Subscription httpHandler.ISubscriptionHandler
	Stage        httpHandler.IStageHandler
	Strava       httpHandler.IStravaHandler
}

type RouterConfig struct {
	SecretKey      string
	AllowedOrigins []string
	WebhookPath    string
}

func InitiateRouter(cfg RouterConfig, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	router.Use(cors.New(cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", "apikey", "x-client-info"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		AllowOriginFunc: func(origin string) bool {
			_, ok := allowed[origin]
			return ok
		},
		MaxAge: 12 * time.Hour,
	}))

	webhookPath := cfg.WebhookPath
	if webhookPath == "" {
		webhookPath = "/webhook"
	}

	router.GET("/healthz", h.Health.Healthz)
	router.POST("/strava/auth", middleware.OptionalAuth(cfg.SecretKey), h.StravaAuth.Auth)
	router.GET(webhookPath, h.Webhook.Verify)
	router.POST(webhookPath, h.Webhook.Receive)

	admin := router.Group("/admin", middleware.Auth(cfg.SecretKey), middleware.AdminOnly())
	admin.POST("/strava/webhook", h.Subscription.Manage)

	api := router.Group("/api")
	api.Use(middleware.Auth(cfg.SecretKey))
	{
		strava := api.Group("/strava")
		strava.POST("/sync", h.Strava.Sync)
		strava.GET("/status", h.Strava.Status)
		strava.GET("/segments/:segmentId", h.Strava.Segment)

		stages := strava.Group("/stages/:stageId", middleware.AdminOnly())
		stages.POST("/process", h.Stage.Process)
		stages.GET("/stream", h.Stage.Stream)
	}

	return router
}
