package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	SessionSecret       string
	DatabaseURL         string // postgres:// DSN, or sqlite://<path> for local runs
	RedisURL            string
	FrontendURLEndsWith string
	DevPassword         string
	AllowCrossSiteDev   bool
	HealthAdminKey      string
	HealthPingURLs      map[string]string // HEALTH_PING_URLS="frontend=https://...,cdn=https://..."
	LogLevel            string
	AdmissionMaxRetries int           // bounded retries for transient store errors during admission
	IdempotencyTTL      time.Duration // how long an Idempotency-Key deduplicates an investment
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("ADMISSION_MAX_RETRIES", 5)
	viper.SetDefault("IDEMPOTENCY_TTL", "24h")

	env := viper.GetString("NODE_ENV")
	if env == "" {
		env = viper.GetString("APP_ENV")
	}
	if env == "" {
		env = "development"
	}

	dbURL := viper.GetString("DATABASE_URL_DEV")
	if env == "production" {
		dbURL = viper.GetString("DATABASE_URL_PROD")
	} else if env == "test" {
		dbURL = viper.GetString("DATABASE_URL_TEST")
	}
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL_DEV")
	}

	retries := viper.GetInt("ADMISSION_MAX_RETRIES")
	if retries < 1 {
		retries = 1
	}
	ttl := viper.GetDuration("IDEMPOTENCY_TTL")
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &Config{
		Env:                 env,
		Port:                viper.GetString("PORT"),
		SessionSecret:       viper.GetString("SESSION_SECRET"),
		DatabaseURL:         dbURL,
		RedisURL:            viper.GetString("REDIS_URL"),
		FrontendURLEndsWith: viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         viper.GetString("DEV_PASSWORD"),
		AllowCrossSiteDev:   strings.EqualFold(viper.GetString("ALLOW_CROSS_SITE_DEV"), "true"),
		HealthAdminKey:      viper.GetString("HEALTH_ADMIN_KEY"),
		HealthPingURLs:      parsePingURLs(viper.GetString("HEALTH_PING_URLS")),
		LogLevel:            viper.GetString("LOG_LEVEL"),
		AdmissionMaxRetries: retries,
		IdempotencyTTL:      ttl,
	}, nil
}

func parsePingURLs(s string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		name, url, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || name == "" || url == "" {
			continue
		}
		out[strings.TrimSpace(name)] = strings.TrimSpace(url)
	}
	return out
}
