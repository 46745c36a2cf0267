package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wellness-sync/domain/repository"
	"wellness-sync/infrastructure/cache"
	"wellness-sync/infrastructure/clients/strava"
	"wellness-sync/infrastructure/configuration"
	"wellness-sync/infrastructure/logger"
	"wellness-sync/infrastructure/persistence"
	"wellness-sync/infrastructure/pubsub"
	"wellness-sync/infrastructure/realtime"
	"wellness-sync/infrastructure/servicebus"
	httpHandler "wellness-sync/interfaces/http"
	"wellness-sync/server"
	"wellness-sync/usecase"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"golang.org/x/sync/errgroup"
)

var httpServer *http.Server

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
	}
}

func main() {
	defer recoverPanic()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	g, ctx := errgroup.WithContext(ctx)

	// Load env from files (non-destructive; OS env still has precedence)
	configuration.LoadEnvFromFile("config.env", ".env")

	cfg, err := configuration.Load()
	if err != nil {
		logger.GetLogger().WithField("error", err).Fatal("Unable to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logger.GetLogger().WithField("error", err).Fatal("Refusing to start with incomplete configuration")
	}
	logger.Configure(cfg.Logger.Format, cfg.Logger.Level)

	loc, err := cfg.Location()
	if err != nil {
		logger.GetLogger().WithField("error", err).Fatal("Invalid timezone")
	}

	psqlDb, err := persistence.NewPostgreSQLDB(cfg.Database.Psql)
	if err != nil {
		logger.GetLogger().WithField("error", err).Fatal("PostgreSQL is required")
	}
	defer psqlDb.Close()
	if err := persistence.EnsureIntegrationSchema(psqlDb); err != nil {
		logger.GetLogger().WithField("error", err).Fatal("Failed ensuring integration schema")
	}

	secretStore, closeSecrets, err := initiateSecretStore(cfg, psqlDb)
	if err != nil {
		logger.GetLogger().WithField("error", err).Fatal("Credential store initialization failed")
	}
	defer closeSecrets()

	gormDb, err := persistence.OpenGorm(psqlDb)
	if err != nil {
		logger.GetLogger().WithField("error", err).Fatal("Failed to open stage catalog")
	}

	mongoClient := initiateMongo(ctx, cfg.Database.Mongo)
	if mongoClient != nil {
		defer func() { _ = mongoClient.Disconnect(context.Background()) }()
	}

	pubSubClient, err := pubsub.NewPubSub(ctx, cfg.Pubsub.ProjectID)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while instantiate PubSub")
		pubSubClient = nil
	}
	if pubSubClient != nil {
		defer pubSubClient.Close()
	}

	azServiceBusClient, err := servicebus.NewServiceBus(ctx, cfg.ServiceBus.Namespace)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Azure Service Bus not available - continuing without notifications")
		azServiceBusClient = nil
	}

	redisClient, err := cache.NewCache(ctx, cfg.RedisClient.Addr(), cfg.RedisClient.Username, cfg.RedisClient.Password)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Redis not available - refresh lock and rate limit are process local")
		redisClient = nil
	}

	// Interfaces stay nil unless Redis is up.
	var (
		refreshLock repository.IRefreshLock
		limiter     strava.Limiter
	)
	if redisClient != nil {
		defer redisClient.Close()
		var cmd redis.Cmdable = redisClient
		refreshLock = cache.NewRefreshLock(cmd)
		limiter = cache.NewRateLimiter(cmd, cfg.Strava.RateLimit15Min, cfg.Strava.RateLimitDaily)
		logger.GetLogger().Info("Redis client initialized successfully.")
	}

	stravaClient := strava.NewStravaClient(strava.Config{
		ClientID:     cfg.Strava.ClientID,
		ClientSecret: cfg.Strava.ClientSecret,
		AuthURL:      cfg.Strava.AuthURL,
		TokenURL:     cfg.Strava.TokenURL,
		APIBaseURL:   cfg.Strava.APIBaseURL,
		Scope:        cfg.Strava.Scope,
	}, nil, limiter)

	connections := persistence.NewDeviceConnectionRepository(psqlDb)
	workouts := persistence.NewWorkoutMetricRepository(psqlDb)
	results := persistence.NewStageResultRepository(psqlDb)
	stages := persistence.NewStageRepository(gormDb)
	hub := realtime.NewSyncHub()

	vault := usecase.NewTokenVault(secretStore)
	refresher := usecase.NewTokenRefresher(vault, stravaClient, refreshLock, cfg.Sync)
	mapper := usecase.NewActivityMapper(workouts, results)

	ingestor := usecase.NewWebhookIngestor(cfg.Strava.WebhookVerifyToken, loc, usecase.WebhookDeps{
		Connections: connections,
		Vault:       vault,
		Refresher:   refresher,
		Strava:      stravaClient,
		Mapper:      mapper,
		Stages:      stages,
		Leaderboard: pubsub.NewLeaderboardPublisher(pubSubClient, cfg.Pubsub.LeaderboardTopic),
		Notifier:    servicebus.NewNotifier(azServiceBusClient, cfg.ServiceBus.NotificationQueue),
		EventLog:    persistence.NewWebhookEventLog(mongoClient, cfg.Database.Mongo.Name),
	})
	batch := usecase.NewBatchSync(usecase.BatchSyncDeps{
		Stages:      stages,
		Results:     results,
		Refresher:   refresher,
		Strava:      stravaClient,
		Mapper:      mapper,
		Broadcaster: hub,
	}, loc, cfg.Sync.Concurrency)
	activitySync := usecase.NewActivitySync(usecase.ActivitySyncDeps{
		Vault:       vault,
		Refresher:   refresher,
		Strava:      stravaClient,
		Mapper:      mapper,
		Workouts:    workouts,
		Connections: connections,
	}, cfg.Sync)

	router := server.InitiateRouter(server.RouterConfig{
		SecretKey:      cfg.App.SecretKey,
		AllowedOrigins: cfg.App.AllowedOrigins,
		WebhookPath:    cfg.Strava.WebhookPath,
	}, server.Handlers{
		Health:       httpHandler.NewHealthHandler(),
		StravaAuth:   httpHandler.NewStravaAuthHandler(usecase.NewAuthorizationFlow(stravaClient, vault, connections, cfg)),
		Webhook:      httpHandler.NewWebhookHandler(ingestor),
		Subscription: httpHandler.NewSubscriptionHandler(usecase.NewSubscriptionManager(stravaClient, &http.Client{Timeout: 15 * time.Second}, cfg)),
		Stage:        httpHandler.NewStageHandler(batch, hub),
		Strava:       httpHandler.NewStravaHandler(activitySync, usecase.NewSegmentLookup(refresher, stravaClient)),
	})

	app := cfg.App
	logger.GetLogger().WithFields(map[string]interface{}{"port": app.Port, "tls": app.TLSEnabled}).Info("Starting application")
	httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		if app.TLSEnabled {
			if app.TLSCertFile == "" || app.TLSKeyFile == "" {
				logger.GetLogger().Error("TLS enabled but cert or key path empty; falling back to HTTP")
			} else {
				logger.GetLogger().WithFields(map[string]interface{}{"cert": app.TLSCertFile, "key": app.TLSKeyFile}).Info("Serving HTTPS")
				if err := httpServer.ListenAndServeTLS(app.TLSCertFile, app.TLSKeyFile); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			}
		}
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	select {
	case <-interrupt:
		logger.GetLogger().Info("Application shutdown requested")
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}

	if err := g.Wait(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Server returned an error")
		os.Exit(2)
	}
}

// initiateSecretStore opens the credential backend selected by database.secretsVendor.
// The Postgres store shares the primary pool.
func initiateSecretStore(cfg *configuration.Config, psqlDb *sql.DB) (repository.ISecretStore, func(), error) {
	key := cfg.Strava.TokenEncryptionKey
	switch cfg.Database.SecretsVendor {
	case "mssql":
		mssqlDb, err := persistence.NewMSSQLDB(cfg.Database.Mssql)
		if err != nil {
			return nil, nil, err
		}
		if err := persistence.EnsureSecretStoreSchemaMSSQL(mssqlDb); err != nil {
			_ = mssqlDb.Close()
			return nil, nil, err
		}
		logger.GetLogger().Info("Credential store: SQL Server")
		return persistence.NewSecretStoreMSSQL(mssqlDb, key), func() { _ = mssqlDb.Close() }, nil
	default:
		logger.GetLogger().Info("Credential store: PostgreSQL")
		return persistence.NewSecretStorePostgres(psqlDb, key), func() {}, nil
	}
}

// initiateMongo returns nil when Mongo is not configured or unreachable; the webhook
// event log then becomes a no-op.
func initiateMongo(ctx context.Context, cfg configuration.Db) *mongo.Client {
	if cfg.Host == "" {
		logger.GetLogger().Info("MongoDB not configured - webhook events are not archived")
		return nil
	}
	client, err := persistence.NewMongoDb(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("MongoDB not available - continuing without event archive")
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		logger.GetLogger().WithField("error", err).Warn("MongoDB ping failed - continuing without event archive")
		_ = client.Disconnect(context.Background())
		return nil
	}
	logger.GetLogger().Info("MongoDB connected successfully")
	return client
}
