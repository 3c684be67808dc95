package gymauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ironhall/gymauth/authsession"
	"github.com/ironhall/gymauth/backend"
	"github.com/ironhall/gymauth/internal/audit"
	"github.com/ironhall/gymauth/permcache"
	"github.com/ironhall/gymauth/permsync"
	"github.com/ironhall/gymauth/roles"
	"github.com/ironhall/gymauth/session"
)

// Builder assembles an [Engine].
//
// A Builder is not safe for concurrent use and can be built once.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	http   *http.Client
	store  session.Store
	logger *zap.Logger
	clock  clock.Clock

	auditSink AuditSink

	authenticator authsession.Authenticator
	roleFetcher   roles.Fetcher
	permFetcher   permcache.Fetcher

	built bool
}

// New returns a Builder seeded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBackendURL sets Config.Backend.BaseURL.
func (b *Builder) WithBackendURL(baseURL string) *Builder {
	b.config.Backend.BaseURL = baseURL
	return b
}

// WithEmbedOptions applies the embedding application's options on top of the configuration.
func (b *Builder) WithEmbedOptions(opts EmbedOptions) *Builder {
	opts.Apply(&b.config)
	return b
}

// WithRedis supplies the client used when Session.Store is "redis". The engine does not
// close it.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithHTTPClient sets the client used for backend calls.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.http = client
	return b
}

// WithStore overrides the configured session store.
func (b *Builder) WithStore(store session.Store) *Builder {
	b.store = store
	return b
}

// WithLogger sets the engine logger. Without it one is built from Config.Logging.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the sink used when Config.Audit.Enabled is true. Without it audit
// events are written to the engine logger.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock sets the time source for polling, fetch timing and token expiry checks.
func (b *Builder) WithClock(clk clock.Clock) *Builder {
	b.clock = clk
	return b
}

// WithAuthenticator replaces the backend login/logout calls.
func (b *Builder) WithAuthenticator(auth authsession.Authenticator) *Builder {
	b.authenticator = auth
	return b
}

// WithRoleFetcher replaces the backend role catalog fetch.
func (b *Builder) WithRoleFetcher(f roles.Fetcher) *Builder {
	b.roleFetcher = f
	return b
}

// WithPermissionFetcher replaces the backend permission fetch.
func (b *Builder) WithPermissionFetcher(f permcache.Fetcher) *Builder {
	b.permFetcher = f
	return b
}

// WithMetricsEnabled toggles Config.Metrics.Enabled.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles Config.Metrics.EnableLatencyHistograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine's components. It fails when
// the configuration is invalid or a required dependency is missing. A Builder can be
// built once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// -------- LOGGER --------
	logger := b.logger
	ownsLogger := false
	if logger == nil {
		var err error
		logger, err = newLogger(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("build logger: %w", err)
		}
		ownsLogger = true
	}

	clk := b.clock
	if clk == nil {
		clk = clock.New()
	}

	// -------- SESSION STORE --------
	store := b.store
	if store == nil {
		switch cfg.Session.Store {
		case SessionStoreRedis:
			if b.redis == nil {
				return nil, errors.New("redis session store requires a redis client")
			}
			store = session.NewRedisStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.TTL)
		case SessionStoreFile:
			store = session.NewFileStore(cfg.Session.FilePath)
		default:
			store = session.NewMemoryStore()
		}
	}

	// -------- BACKEND CLIENT --------
	client, err := backend.New(cfg.Backend.BaseURL, backend.Options{
		HTTPClient: b.http,
		Timeout:    cfg.Backend.RequestTimeout,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		config:     cfg,
		logger:     logger,
		clock:      clk,
		client:     client,
		store:      store,
		metrics:    NewMetrics(cfg.Metrics),
		ownsLogger: ownsLogger,
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())

	// -------- AUDIT --------
	if cfg.Audit.Enabled {
		sink := b.auditSink
		if sink == nil {
			sink = audit.NewZapSink(logger)
		}
		e.audit = audit.NewDispatcher(audit.Config{
			Enabled:    true,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
			Logger:     logger,
		}, sink)
	}

	// -------- ROLES --------
	var roleFetcher roles.Fetcher = client
	if b.roleFetcher != nil {
		roleFetcher = b.roleFetcher
	}
	e.roles = roles.NewDirectory(roleFetcher, roles.Options{
		Logger:  logger,
		Timeout: cfg.Roles.FetchTimeout,
		Clock:   clk,
		OnLoad:  e.onRolesLoad,
	})

	// -------- PERMISSIONS --------
	var permFetcher permcache.Fetcher = client
	if b.permFetcher != nil {
		permFetcher = b.permFetcher
	}
	e.perms = permcache.New(permFetcher, permcache.Options{
		Logger:          logger,
		FetchTimeout:    cfg.Permissions.FetchTimeout,
		Clock:           clk,
		Observer:        e.onFetch,
		OnListenerPanic: e.onListenerPanic,
	})
	e.unsubscribe = e.perms.Subscribe(e.onPermissionsChanged)

	// -------- SESSION --------
	var auth authsession.Authenticator = client
	if b.authenticator != nil {
		auth = b.authenticator
	}
	e.auth = authsession.New(auth, e.roles, e.perms, store, authsession.Options{
		Logger:              logger,
		DefaultRoute:        cfg.Routing.DefaultRoute,
		RejectExpiredTokens: cfg.Session.RejectExpiredTokens,
		Clock:               clk,
		Observer:            e.onSessionEvent,
	})
	client.SetTokenSource(e.auth.AccessToken)

	// -------- POLLING --------
	e.syncer = permsync.New(permsync.Config{
		Enabled:  cfg.Sync.Enabled,
		Interval: cfg.Sync.Interval,
	}, e.perms, e.auth, permsync.Options{
		Logger:   logger,
		Clock:    clk,
		Observer: e.onPoll,
	})

	b.built = true
	logger.Debug("engine built",
		zap.String("backend", cfg.Backend.BaseURL),
		zap.String("session_store", cfg.Session.Store),
		zap.Bool("polling", cfg.Sync.Enabled),
	)
	return e, nil
}
