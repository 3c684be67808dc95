package gymauth

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadConfigFromEnv builds a [Config] from GYMAUTH_* environment variables on top of
// the defaults. A .env file in the working directory is loaded first when present;
// variables already set in the environment win.
//
//	GYMAUTH_BACKEND_URL, GYMAUTH_BACKEND_TIMEOUT
//	GYMAUTH_SESSION_STORE, GYMAUTH_SESSION_REDIS_PREFIX, GYMAUTH_SESSION_FILE, GYMAUTH_SESSION_TTL
//	GYMAUTH_REJECT_EXPIRED_TOKENS
//	GYMAUTH_ROLES_TIMEOUT, GYMAUTH_PERMISSIONS_TIMEOUT
//	GYMAUTH_POLLING_ENABLED, GYMAUTH_POLLING_INTERVAL_MS
//	GYMAUTH_DEBUG, GYMAUTH_LOG_FORMAT
//	GYMAUTH_AUDIT_ENABLED, GYMAUTH_AUDIT_BUFFER
//	GYMAUTH_METRICS_ENABLED, GYMAUTH_DEFAULT_ROUTE
func LoadConfigFromEnv() (Config, error) {
	_ = godotenv.Load(".env")

	cfg := defaultConfig()

	cfg.Backend.BaseURL = getEnv("GYMAUTH_BACKEND_URL", cfg.Backend.BaseURL)
	cfg.Backend.RequestTimeout = getEnvAsDuration("GYMAUTH_BACKEND_TIMEOUT", cfg.Backend.RequestTimeout)

	cfg.Session.Store = getEnv("GYMAUTH_SESSION_STORE", cfg.Session.Store)
	cfg.Session.RedisPrefix = getEnv("GYMAUTH_SESSION_REDIS_PREFIX", cfg.Session.RedisPrefix)
	cfg.Session.FilePath = getEnv("GYMAUTH_SESSION_FILE", cfg.Session.FilePath)
	cfg.Session.TTL = getEnvAsDuration("GYMAUTH_SESSION_TTL", cfg.Session.TTL)
	cfg.Session.RejectExpiredTokens = getEnvAsBool("GYMAUTH_REJECT_EXPIRED_TOKENS", cfg.Session.RejectExpiredTokens)

	cfg.Roles.FetchTimeout = getEnvAsDuration("GYMAUTH_ROLES_TIMEOUT", cfg.Roles.FetchTimeout)
	cfg.Permissions.FetchTimeout = getEnvAsDuration("GYMAUTH_PERMISSIONS_TIMEOUT", cfg.Permissions.FetchTimeout)

	EmbedOptions{
		EnablePolling:     getEnvAsBool("GYMAUTH_POLLING_ENABLED", cfg.Sync.Enabled),
		PollingIntervalMs: getEnvAsInt("GYMAUTH_POLLING_INTERVAL_MS", 0),
		EnableDebugLogs:   getEnvAsBool("GYMAUTH_DEBUG", cfg.Logging.EnableDebugLogs),
	}.Apply(&cfg)
	cfg.Logging.Format = getEnv("GYMAUTH_LOG_FORMAT", cfg.Logging.Format)

	cfg.Audit.Enabled = getEnvAsBool("GYMAUTH_AUDIT_ENABLED", cfg.Audit.Enabled)
	cfg.Audit.BufferSize = getEnvAsInt("GYMAUTH_AUDIT_BUFFER", cfg.Audit.BufferSize)
	cfg.Metrics.Enabled = getEnvAsBool("GYMAUTH_METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Routing.DefaultRoute = getEnv("GYMAUTH_DEFAULT_ROUTE", cfg.Routing.DefaultRoute)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
