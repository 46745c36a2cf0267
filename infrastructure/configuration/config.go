package configuration

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"wellness-sync/domain/apperror"
	"wellness-sync/infrastructure/logger"

	"github.com/spf13/viper"
)

type Config struct {
	App         App         `mapstructure:"app"`
	Database    Database    `mapstructure:"database"`
	RedisClient RedisClient `mapstructure:"redisClient"`
	Pubsub      Pubsub      `mapstructure:"pubsub"`
	ServiceBus  ServiceBus  `mapstructure:"serviceBus"`
	Logger      Logger      `mapstructure:"logger"`
	Strava      Strava      `mapstructure:"strava"`
	Sync        Sync        `mapstructure:"sync"`
}

type App struct {
	Port           int      `mapstructure:"port"`
	SecretKey      string   `mapstructure:"secretKey"`
	TLSEnabled     bool     `mapstructure:"tlsEnabled"`
	TLSCertFile    string   `mapstructure:"tlsCertFile"`
	TLSKeyFile     string   `mapstructure:"tlsKeyFile"`
	PublicURL      string   `mapstructure:"publicURL"`
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
	Timezone       string   `mapstructure:"timezone"`
}

type Database struct {
	Psql  Db `mapstructure:"psql"`
	Mongo Db `mapstructure:"mongo"`
	Mssql Db `mapstructure:"mssql"`
	// SecretsVendor selects the credential store backend: postgres or mssql.
	SecretsVendor string `mapstructure:"secretsVendor"`
}

type Db struct {
	Name     string `mapstructure:"name"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslMode"`
}

type Pubsub struct {
	ProjectID        string `mapstructure:"projectID"`
	LeaderboardTopic string `mapstructure:"leaderboardTopic"`
}

type ServiceBus struct {
	Namespace         string `mapstructure:"namespace"`
	NotificationQueue string `mapstructure:"notificationQueue"`
}

type RedisClient struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	Username string `mapstructure:"username"`
}

func (r RedisClient) Addr() string {
	if r.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

type Logger struct {
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
}

type Strava struct {
	ClientID           string `mapstructure:"clientId"`
	ClientSecret       string `mapstructure:"clientSecret"`
	WebhookVerifyToken string `mapstructure:"webhookVerifyToken"`
	TokenEncryptionKey string `mapstructure:"tokenEncryptionKey"`
	AuthURL            string `mapstructure:"authURL"`
	TokenURL           string `mapstructure:"tokenURL"`
	APIBaseURL         string `mapstructure:"apiBaseURL"`
	Scope              string `mapstructure:"scope"`
	CallbackPath       string `mapstructure:"callbackPath"`
	WebhookPath        string `mapstructure:"webhookPath"`
	RateLimit15Min     int    `mapstructure:"rateLimit15Min"`
	RateLimitDaily     int    `mapstructure:"rateLimitDaily"`
}

type Sync struct {
	Concurrency      int           `mapstructure:"concurrency"`
	LookbackDays     int           `mapstructure:"lookbackDays"`
	PageSize         int           `mapstructure:"pageSize"`
	MaxPages         int           `mapstructure:"maxPages"`
	MaxDetailFetches int           `mapstructure:"maxDetailFetches"`
	RefreshSkew      time.Duration `mapstructure:"refreshSkew"`
	RefreshLockTTL   time.Duration `mapstructure:"refreshLockTTL"`
}

// Load reads config[-ENV].json and the environment into an immutable Config.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	name := getConfig()
	v.SetConfigName(name)
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AddConfigPath("../")
	v.AddConfigPath("../../")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			logger.GetLogger().WithField("error", err).Error("Error reading config file")
			return nil, apperror.Config("configuration.Load", err.Error())
		}
		logger.GetLogger().WithField("config", name).Warn("Config file not found, using environment only")
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		logger.GetLogger().WithField("error", err).Error("Viper unable to decode into struct")
		return nil, apperror.Config("configuration.Load", err.Error())
	}
	c.normalize()
	logger.GetLogger().WithField("config", name).Info("Config set up successfully")
	return &c, nil
}

func getConfig() string {
	name := "config"
	if env := os.Getenv("ENV"); env != "" {
		name = fmt.Sprintf("%s-%s", name, env)
	}
	return name
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", 10001)
	v.SetDefault("app.timezone", "UTC")
	v.SetDefault("database.psql.port", "5432")
	v.SetDefault("database.psql.sslMode", "disable")
	v.SetDefault("database.mssql.port", "1433")
	v.SetDefault("database.mongo.port", "27017")
	v.SetDefault("database.secretsVendor", "postgres")
	v.SetDefault("redisClient.port", "6379")
	v.SetDefault("pubsub.leaderboardTopic", "leaderboard-recalculation")
	v.SetDefault("serviceBus.notificationQueue", "notifications")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.level", "info")
	v.SetDefault("strava.authURL", "https://www.strava.com/oauth/authorize")
	v.SetDefault("strava.tokenURL", "https://www.strava.com/oauth/token")
	v.SetDefault("strava.apiBaseURL", "https://www.strava.com/api/v3")
	v.SetDefault("strava.scope", "read,activity:read_all,profile:read_all")
	v.SetDefault("strava.callbackPath", "/strava/callback")
	v.SetDefault("strava.webhookPath", "/webhook")
	v.SetDefault("strava.rateLimit15Min", 80)
	v.SetDefault("strava.rateLimitDaily", 800)
	v.SetDefault("sync.concurrency", 5)
	v.SetDefault("sync.lookbackDays", 60)
	v.SetDefault("sync.pageSize", 100)
	v.SetDefault("sync.maxPages", 10)
	v.SetDefault("sync.maxDetailFetches", 80)
	v.SetDefault("sync.refreshSkew", "0s")
	v.SetDefault("sync.refreshLockTTL", "30s")
}

var envBindings = map[string][]string{
	"app.port":                  {"APP_PORT", "PORT"},
	"app.secretKey":             {"SECRET_KEY"},
	"app.tlsEnabled":            {"TLS_ENABLED"},
	"app.tlsCertFile":           {"TLS_CERT_FILE"},
	"app.tlsKeyFile":            {"TLS_KEY_FILE"},
	"app.publicURL":             {"PUBLIC_URL"},
	"app.allowedOrigins":        {"ALLOWED_ORIGINS"},
	"app.timezone":              {"APP_TIMEZONE"},
	"database.psql.name":        {"DB_NAME"},
	"database.psql.host":        {"DB_HOST"},
	"database.psql.port":        {"DB_PORT"},
	"database.psql.user":        {"DB_USER"},
	"database.psql.password":    {"DB_PASSWORD"},
	"database.psql.sslMode":     {"DB_SSLMODE"},
	"database.mssql.name":       {"MSSQL_DB_NAME"},
	"database.mssql.host":       {"MSSQL_HOST"},
	"database.mssql.port":       {"MSSQL_PORT"},
	"database.mssql.user":       {"MSSQL_USER"},
	"database.mssql.password":   {"MSSQL_PASSWORD"},
	"database.mongo.name":       {"MONGO_DB_NAME"},
	"database.mongo.host":       {"MONGO_HOST"},
	"database.mongo.port":       {"MONGO_PORT"},
	"database.mongo.user":       {"MONGO_USER"},
	"database.mongo.password":   {"MONGO_PASSWORD"},
	"database.secretsVendor":    {"SECRETS_VENDOR"},
	"redisClient.host":          {"REDIS_HOST"},
	"redisClient.port":          {"REDIS_PORT"},
	"redisClient.username":      {"REDIS_USERNAME"},
	"redisClient.password":      {"REDIS_PASSWORD"},
	"pubsub.projectID":          {"PUBSUB_PROJECT_ID"},
	"serviceBus.namespace":      {"SERVICEBUS_NAMESPACE"},
	"logger.format":             {"LOG_FORMAT"},
	"logger.level":              {"LOG_LEVEL"},
	"strava.clientId":           {"STRAVA_CLIENT_ID"},
	"strava.clientSecret":       {"STRAVA_CLIENT_SECRET"},
	"strava.webhookVerifyToken": {"STRAVA_VERIFY_TOKEN"},
	"strava.tokenEncryptionKey": {"TOKEN_ENCRYPTION_KEY"},
	"sync.concurrency":          {"SYNC_CONCURRENCY"},
}

func bindEnv(v *viper.Viper) error {
	for key, envs := range envBindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return apperror.Config("configuration.bindEnv", err.Error())
		}
	}
	return nil
}

func (c *Config) normalize() {
	origins := make([]string, 0, len(c.App.AllowedOrigins))
	for _, o := range c.App.AllowedOrigins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	c.App.AllowedOrigins = origins
	c.App.PublicURL = strings.TrimRight(c.App.PublicURL, "/")
	c.Database.SecretsVendor = strings.ToLower(c.Database.SecretsVendor)
	if c.Sync.Concurrency < 1 {
		c.Sync.Concurrency = 1
	}
}

// Validate reports every missing secret the service cannot run without.
func (c *Config) Validate() error {
	var missing []string
	if c.Strava.ClientID == "" {
		missing = append(missing, "STRAVA_CLIENT_ID")
	}
	if c.Strava.ClientSecret == "" {
		missing = append(missing, "STRAVA_CLIENT_SECRET")
	}
	if c.Strava.WebhookVerifyToken == "" {
		missing = append(missing, "STRAVA_VERIFY_TOKEN")
	}
	if c.Strava.TokenEncryptionKey == "" {
		missing = append(missing, "TOKEN_ENCRYPTION_KEY")
	}
	if c.App.SecretKey == "" {
		missing = append(missing, "SECRET_KEY")
	}
	switch c.Database.SecretsVendor {
	case "postgres", "mssql":
	default:
		missing = append(missing, "SECRETS_VENDOR (postgres|mssql)")
	}
	if len(missing) > 0 {
		return apperror.Config("configuration.Validate", "missing required settings: "+strings.Join(missing, ", "))
	}
	return nil
}

// Location returns the timezone stage dates are interpreted in.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return nil, apperror.Config("configuration.Location", err.Error())
	}
	return loc, nil
}

// IsAllowedOrigin reports whether origin may be used to derive OAuth redirect URIs.
func (a App) IsAllowedOrigin(origin string) bool {
	origin = strings.TrimRight(origin, "/")
	for _, o := range a.AllowedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}
