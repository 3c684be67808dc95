package gymauth

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Config defines the runtime configuration of an [Engine].
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	Backend     BackendConfig
	Session     SessionConfig
	Roles       RolesConfig
	Permissions PermissionsConfig
	Sync        SyncConfig
	Logging     LoggingConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
	Routing     RoutingConfig
}

/*
====================================
BACKEND CONFIG
====================================
*/

// BackendConfig locates the REST backend.
type BackendConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// Session store backends.
const (
	SessionStoreRedis  = "redis"
	SessionStoreFile   = "file"
	SessionStoreMemory = "memory"
)

// SessionConfig selects and tunes the session store.
type SessionConfig struct {
	Store       string // "redis", "file" or "memory" (default)
	RedisPrefix string
	FilePath    string
	// TTL expires Redis entries; zero keeps them until logout.
	TTL time.Duration
	// RejectExpiredTokens discards restored sessions whose access token has expired.
	RejectExpiredTokens bool
}

/*
====================================
ROLES / PERMISSIONS CONFIG
====================================
*/

// RolesConfig tunes the role directory.
type RolesConfig struct {
	FetchTimeout time.Duration
}

// PermissionsConfig tunes the permission cache.
type PermissionsConfig struct {
	FetchTimeout time.Duration
}

// SyncConfig controls the permission polling loop.
type SyncConfig struct {
	Enabled  bool
	Interval time.Duration
}

/*
====================================
LOGGING / AUDIT / METRICS CONFIG
====================================
*/

// Log formats.
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// LoggingConfig controls the engine logger built when none is supplied.
type LoggingConfig struct {
	EnableDebugLogs bool
	Format          string // "json" (default) or "console"
}

// AuditConfig defines audit dispatcher behavior.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig enables in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// RoutingConfig holds navigation defaults.
type RoutingConfig struct {
	DefaultRoute string
}

// EmbedOptions is the configuration surface offered to embedding applications.
type EmbedOptions struct {
	EnablePolling     bool
	PollingIntervalMs int
	EnableDebugLogs   bool
}

// Apply maps the options onto cfg. A zero PollingIntervalMs keeps cfg's interval.
func (o EmbedOptions) Apply(cfg *Config) {
	cfg.Sync.Enabled = o.EnablePolling
	if o.PollingIntervalMs > 0 {
		cfg.Sync.Interval = time.Duration(o.PollingIntervalMs) * time.Millisecond
	}
	cfg.Logging.EnableDebugLogs = o.EnableDebugLogs
}

// DefaultConfig returns the baseline configuration. Backend.BaseURL must still be set.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Backend: BackendConfig{
			RequestTimeout: 10 * time.Second,
		},
		Session: SessionConfig{
			Store:               SessionStoreMemory,
			RedisPrefix:         "gymauth",
			RejectExpiredTokens: true,
		},
		Roles: RolesConfig{
			FetchTimeout: 5 * time.Second,
		},
		Permissions: PermissionsConfig{
			FetchTimeout: 5 * time.Second,
		},
		Sync: SyncConfig{
			Enabled:  true,
			Interval: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Format: LogFormatJSON,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Routing: RoutingConfig{
			DefaultRoute: "/",
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	// Backend
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return errors.New("Backend BaseURL is required")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("Backend BaseURL must be an absolute http(s) URL")
	}
	if c.Backend.RequestTimeout <= 0 {
		return errors.New("Backend RequestTimeout must be > 0")
	}

	// Session
	switch c.Session.Store {
	case SessionStoreRedis:
		if c.Session.RedisPrefix == "" {
			return errors.New("Session RedisPrefix is required for the redis store")
		}
	case SessionStoreFile:
		if c.Session.FilePath == "" {
			return errors.New("Session FilePath is required for the file store")
		}
	case SessionStoreMemory:
	default:
		return errors.New("Session Store must be 'redis', 'file' or 'memory'")
	}
	if c.Session.TTL < 0 {
		return errors.New("Session TTL must be >= 0")
	}

	// Roles / Permissions
	if c.Roles.FetchTimeout <= 0 {
		return errors.New("Roles FetchTimeout must be > 0")
	}
	if c.Permissions.FetchTimeout <= 0 {
		return errors.New("Permissions FetchTimeout must be > 0")
	}

	// Sync
	if c.Sync.Enabled && c.Sync.Interval < time.Second {
		return errors.New("Sync Interval must be >= 1s when polling is enabled")
	}

	// Logging
	if c.Logging.Format != LogFormatJSON && c.Logging.Format != LogFormatConsole {
		return errors.New("Logging Format must be 'json' or 'console'")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Routing
	if !strings.HasPrefix(c.Routing.DefaultRoute, "/") {
		return errors.New("Routing DefaultRoute must start with '/'")
	}

	return nil
}
