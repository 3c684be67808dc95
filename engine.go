package gymauth

import (
	"context"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/ironhall/gymauth/authsession"
	"github.com/ironhall/gymauth/backend"
	"github.com/ironhall/gymauth/internal/audit"
	"github.com/ironhall/gymauth/permcache"
	"github.com/ironhall/gymauth/permission"
	"github.com/ironhall/gymauth/permsync"
	"github.com/ironhall/gymauth/roles"
	"github.com/ironhall/gymauth/session"
)

// Identity is the logged-in user.
type Identity = session.Identity

// Role is one entry of the role catalog.
type Role = roles.Role

// Grant is one module/privilege pair.
type Grant = permission.Grant

// PermissionSnapshot is the immutable permission view delivered to listeners.
type PermissionSnapshot = permcache.Snapshot

// CacheState is the lifecycle state of the permission cache.
type CacheState = permcache.State

// PollResult is the outcome of one permission poll.
type PollResult = permsync.Result

// Engine is the authorization client of one embedding application: it owns the
// session, the role catalog, the permission cache and the polling loop.
//
// Engine methods are safe for concurrent use after [Builder.Build].
type Engine struct {
	config Config
	logger *zap.Logger
	clock  clock.Clock

	client  *backend.Client
	store   session.Store
	roles   *roles.Directory
	perms   *permcache.Cache
	auth    *authsession.Session
	syncer  *permsync.Syncer
	audit   *audit.Dispatcher
	metrics *Metrics

	// ctx outlives individual calls and bounds the polling goroutine.
	ctx    context.Context
	cancel context.CancelFunc

	unsubscribe func()
	ownsLogger  bool
	closed      atomic.Bool
}

// Login authenticates identifier/secret against the backend, loads the permissions of
// the user's role and persists the session. On success polling starts.
//
// Failures are [*LoginError] values matching [ErrLogin]; nothing is persisted and any
// previous session is gone.
func (e *Engine) Login(ctx context.Context, identifier, secret string) (Identity, error) {
	if e.closed.Load() {
		return Identity{}, ErrEngineClosed
	}

	identity, err := e.auth.Login(ctx, identifier, secret)
	if err != nil {
		e.syncer.Stop()
		e.emitAudit(ctx, auditEventLoginFailure, false, 0, 0, err, nil)
		return Identity{}, err
	}

	e.emitAudit(ctx, auditEventLoginSuccess, true, identity.ID, identity.RoleID, nil, nil)
	e.startPolling()
	return identity, nil
}

// Logout stops polling, notifies the backend and clears all local state. It never fails;
// backend and storage errors are logged.
func (e *Engine) Logout(ctx context.Context) {
	if e.closed.Load() {
		return
	}
	identity, _ := e.auth.CurrentIdentity()

	e.syncer.Stop()
	e.auth.Logout(ctx)
	e.emitAudit(ctx, auditEventLogout, true, identity.ID, identity.RoleID, nil, nil)
}

// RestoreSession reloads a persisted session at startup. It reports false when there is
// nothing valid to restore; invalid records are wiped. On success polling starts.
func (e *Engine) RestoreSession(ctx context.Context) (Identity, bool) {
	if e.closed.Load() {
		return Identity{}, false
	}

	identity, ok := e.auth.RestoreSession(ctx)
	if !ok {
		return Identity{}, false
	}
	e.emitAudit(ctx, auditEventSessionRestored, true, identity.ID, identity.RoleID, nil, func() map[string]string {
		return map[string]string{"roles_degraded": boolString(e.roles.Degraded())}
	})
	e.startPolling()
	return identity, true
}

// RedirectTarget returns the landing route of the current user's role, or the configured
// default route when logged out or the role has none.
func (e *Engine) RedirectTarget() string {
	identity, ok := e.auth.CurrentIdentity()
	if !ok {
		return e.config.Routing.DefaultRoute
	}
	return e.auth.RedirectTarget(identity)
}

// CurrentIdentity returns the logged-in identity.
func (e *Engine) CurrentIdentity() (Identity, bool) {
	return e.auth.CurrentIdentity()
}

// LoadRoles refreshes the role catalog. The returned error is a warning wrapping
// [ErrRoleDirectoryUnavailable] when the fallback catalog was substituted.
func (e *Engine) LoadRoles(ctx context.Context) ([]Role, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	coll, warn := e.roles.Load(ctx)
	return coll.Roles(), warn
}

// Roles returns the current role catalog.
func (e *Engine) Roles() []Role {
	return e.roles.Roles()
}

// FindRole looks up a role in the current catalog.
func (e *Engine) FindRole(id int64) (Role, bool) {
	return e.roles.FindByID(id)
}

// RefreshPermissions refetches the current role's permissions.
func (e *Engine) RefreshPermissions(ctx context.Context) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if _, ok := e.auth.CurrentIdentity(); !ok {
		return ErrNotAuthenticated
	}
	return e.perms.Refresh(ctx)
}

// CompareWithServer reports whether the backend's permissions differ from the cached ones.
func (e *Engine) CompareWithServer(ctx context.Context) (bool, error) {
	if e.closed.Load() {
		return false, ErrEngineClosed
	}
	if _, ok := e.auth.CurrentIdentity(); !ok {
		return false, ErrNotAuthenticated
	}
	return e.perms.CompareWithServer(ctx)
}

// PollNow runs one polling cycle immediately, whether or not the loop is running.
func (e *Engine) PollNow(ctx context.Context) (PollResult, error) {
	if e.closed.Load() {
		return permsync.Skipped, ErrEngineClosed
	}
	if _, ok := e.auth.CurrentIdentity(); !ok {
		return permsync.Skipped, ErrNotAuthenticated
	}
	return e.syncer.PollOnce(ctx)
}

/*
====================================
DECISIONS
====================================
*/

// HasModuleAccess reports whether the current role may open module.
func (e *Engine) HasModuleAccess(module string) bool {
	return e.perms.HasModuleAccess(module)
}

// HasPrivilege reports whether the current role holds privilege on module.
func (e *Engine) HasPrivilege(module, privilege string) bool {
	return e.perms.HasPrivilege(module, privilege)
}

// HasAnyPrivilege reports whether the current role holds at least one of privileges on
// module. An empty list is false.
func (e *Engine) HasAnyPrivilege(module string, privileges ...string) bool {
	return e.perms.HasAnyPrivilege(module, privileges...)
}

// HasAllPrivileges reports whether the current role holds every one of privileges on
// module. An empty list is false.
func (e *Engine) HasAllPrivileges(module string, privileges ...string) bool {
	return e.perms.HasAllPrivileges(module, privileges...)
}

// AccessibleModules returns the current role's modules, sorted.
func (e *Engine) AccessibleModules() []string {
	return e.perms.AccessibleModules()
}

// Grants returns the current role's grants, sorted.
func (e *Engine) Grants() []Grant {
	return e.perms.Grants()
}

// PrivilegesFor returns the current role's privileges on module, sorted.
func (e *Engine) PrivilegesFor(module string) []string {
	return e.perms.PrivilegesFor(module)
}

// Guard returns a route guard that evaluates against the live cache on every call.
// With no privileges it checks module access; otherwise it requires all privileges.
func (e *Engine) Guard(module string, privileges ...string) func() bool {
	privs := append([]string(nil), privileges...)
	return func() bool {
		if len(privs) == 0 {
			return e.perms.HasModuleAccess(module)
		}
		return e.perms.HasAllPrivileges(module, privs...)
	}
}

// NavigationModules filters candidates, in order, to those the current role may open.
func (e *Engine) NavigationModules(candidates []string) []string {
	out := make([]string, 0, len(candidates))
	for _, m := range candidates {
		if e.perms.HasModuleAccess(m) {
			out = append(out, m)
		}
	}
	return out
}

// Subscribe registers fn for permission change notifications and returns a function
// that removes it.
func (e *Engine) Subscribe(fn func(*PermissionSnapshot)) (unsubscribe func()) {
	return e.perms.Subscribe(fn)
}

// Status is a summary suitable for a "permissions may be outdated" banner.
type Status struct {
	Authenticated bool
	CacheState    CacheState
	Stale         bool
	RolesDegraded bool
	Polling       bool
}

// Status returns the engine's current status.
func (e *Engine) Status() Status {
	_, authed := e.auth.CurrentIdentity()
	return Status{
		Authenticated: authed,
		CacheState:    e.perms.State(),
		Stale:         e.perms.Stale(),
		RolesDegraded: e.roles.Degraded(),
		Polling:       e.syncer.Running(),
	}
}

/*
====================================
LIFECYCLE
====================================
*/

func (e *Engine) startPolling() {
	if e.syncer.Start(e.ctx) {
		e.logger.Debug("polling started", zap.Duration("interval", e.syncer.Interval()))
	}
}

// Close stops polling and flushes the audit dispatcher. The persisted session is kept
// so that the next start can restore it. Close is idempotent.
func (e *Engine) Close() {
	if e == nil || !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.syncer.Stop()
	e.cancel()
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	if e.audit != nil {
		e.audit.Close()
	}
	if e.ownsLogger {
		_ = e.logger.Sync()
	}
}

// AuditDropped returns the number of audit events dropped because the buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine's counters and fetch latency histogram.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}
