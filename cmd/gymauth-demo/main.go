// Command gymauth-demo runs a gymauth engine against an in-process fake backend and
// Redis, logs in, changes the user's grants on the server and waits for the poller to
// pick the change up.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/ironhall/gymauth"
	"github.com/ironhall/gymauth/internal/fakebackend"
	"github.com/ironhall/gymauth/metrics/export/prometheus"
	"github.com/ironhall/gymauth/permission"
	"github.com/ironhall/gymauth/roles"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		interval    time.Duration
		debug       bool
		showMetrics bool
		redisAddr   string
		audit       bool
	)

	flagSet := pflag.NewFlagSet("gymauth-demo", pflag.ContinueOnError)
	flagSet.DurationVar(&interval, "interval", 2*time.Second, "permission polling interval")
	flagSet.BoolVar(&debug, "debug", false, "enable debug logs")
	flagSet.BoolVar(&showMetrics, "metrics", true, "print Prometheus metrics before exiting")
	flagSet.StringVar(&redisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	flagSet.BoolVar(&audit, "audit", true, "log audit events")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if interval < time.Second {
		return fmt.Errorf("--interval must be at least 1s, got %s", interval)
	}

	// -------- REDIS --------
	if redisAddr == "" {
		redisAddr = os.Getenv("REDIS_ADDR")
	}
	if redisAddr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		redisAddr = mr.Addr()
		fmt.Printf("using miniredis at %s\n", redisAddr)
	} else {
		fmt.Printf("using redis at %s\n", redisAddr)
	}
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{redisAddr}})
	defer func() { _ = rdb.Close() }()

	// -------- BACKEND --------
	fake := fakebackend.New()
	fake.AddUser("front@gym.test", fakebackend.User{ID: 7, Secret: "demo", Name: "Front Desk", Email: "front@gym.test", RoleID: 2})
	fake.SetRoles([]roles.Role{
		{ID: 1, Name: "Admin", Route: "/dashboard"},
		{ID: 2, Name: "Receptionist", Route: "/clients"},
		{ID: 3, Name: "Trainer", Route: "/schedule"},
	})
	fake.SetPermissions(2, permission.Payload{
		AccessibleModules: []string{"Clients", "Memberships"},
		Grants: []permission.Grant{
			{Module: "Clients", Privilege: "Read"},
			{Module: "Clients", Privilege: "Create"},
			{Module: "Memberships", Privilege: "Read"},
		},
	})
	srv := httptest.NewServer(fake.Handler())
	defer srv.Close()
	fmt.Printf("fake backend at %s\n", srv.URL)

	// -------- ENGINE --------
	cfg := gymauth.DefaultConfig()
	cfg.Backend.BaseURL = srv.URL
	cfg.Session.Store = gymauth.SessionStoreRedis
	cfg.Session.RedisPrefix = "gymauth-demo"
	cfg.Logging.Format = gymauth.LogFormatConsole
	cfg.Audit.Enabled = audit

	logger := zap.NewNop()
	if debug {
		dev, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		logger = dev
	}

	engine, err := gymauth.New().
		WithConfig(cfg).
		WithEmbedOptions(gymauth.EmbedOptions{
			EnablePolling:     true,
			PollingIntervalMs: int(interval / time.Millisecond),
			EnableDebugLogs:   debug,
		}).
		WithRedis(rdb).
		WithLogger(logger).
		WithAuditSink(gymauth.NewJSONWriterSink(os.Stdout)).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	changed := make(chan *gymauth.PermissionSnapshot, 4)
	unsubscribe := engine.Subscribe(func(snap *gymauth.PermissionSnapshot) {
		select {
		case changed <- snap:
		default:
		}
	})
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, ok := engine.RestoreSession(ctx); ok {
		fmt.Println("restored a previous session")
	}

	identity, err := engine.Login(ctx, "front@gym.test", "demo")
	if err != nil {
		var lerr *gymauth.LoginError
		if errors.As(err, &lerr) {
			return fmt.Errorf("login rejected (%s): %s", lerr.Reason, lerr.Message)
		}
		return err
	}
	drain(changed)

	fmt.Printf("\nlogged in as %s (role %d), redirect to %s\n", identity.DisplayName, identity.RoleID, engine.RedirectTarget())
	printDecisions(engine)

	// -------- SERVER-SIDE CHANGE --------
	fmt.Println("\nadmin revokes Clients/Create and grants Payments on the server...")
	fake.SetPermissions(2, permission.Payload{
		AccessibleModules: []string{"Clients", "Memberships", "Payments"},
		Grants: []permission.Grant{
			{Module: "Clients", Privilege: "Read"},
			{Module: "Memberships", Privilege: "Read"},
			{Module: "Payments", Privilege: "Create"},
		},
	})
	fmt.Printf("still cached: Clients/Create=%v (waiting up to %s for the poller)\n",
		engine.HasPrivilege("Clients", "Create"), interval)

	select {
	case snap := <-changed:
		fmt.Printf("poller applied a new snapshot: %d modules, %d grants\n", snap.Modules.Len(), snap.Grants.Len())
	case <-time.After(interval + 5*time.Second):
		return errors.New("poller did not detect the change")
	}
	printDecisions(engine)

	st := engine.Status()
	fmt.Printf("\nstatus: authenticated=%v cache=%s stale=%v roles_degraded=%v polling=%v\n",
		st.Authenticated, st.CacheState, st.Stale, st.RolesDegraded, st.Polling)

	engine.Logout(ctx)
	fmt.Printf("logged out, Clients access=%v, backend logouts=%d\n", engine.HasModuleAccess("Clients"), fake.Logouts())

	if showMetrics {
		rec := httptest.NewRecorder()
		prometheus.NewCollector(engine).Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
		fmt.Println("\n---- metrics ----")
		for _, line := range strings.Split(rec.Body.String(), "\n") {
			if strings.HasPrefix(line, "gymauth_") && !strings.HasSuffix(line, " 0") {
				fmt.Println(line)
			}
		}
	}
	return nil
}

func drain(ch <-chan *gymauth.PermissionSnapshot) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func printDecisions(engine *gymauth.Engine) {
	menu := engine.NavigationModules([]string{"Dashboard", "Clients", "Memberships", "Payments", "Staff"})
	fmt.Printf("  menu: %s\n", strings.Join(menu, ", "))
	for _, g := range []gymauth.Grant{
		{Module: "Clients", Privilege: "Create"},
		{Module: "Clients", Privilege: "Read"},
		{Module: "Payments", Privilege: "Create"},
	} {
		fmt.Printf("  %-16s %v\n", g.String(), engine.HasPrivilege(g.Module, g.Privilege))
	}
}
