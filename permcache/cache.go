package permcache

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ironhall/gymauth/permission"
)

const defaultFetchTimeout = 5 * time.Second

// Fetcher retrieves the permission set of a role.
type Fetcher interface {
	FetchPermissions(ctx context.Context, roleID int64) (permission.Payload, error)
}

// FetcherFunc adapts a function to [Fetcher].
type FetcherFunc func(ctx context.Context, roleID int64) (permission.Payload, error)

// FetchPermissions calls f.
func (f FetcherFunc) FetchPermissions(ctx context.Context, roleID int64) (permission.Payload, error) {
	return f(ctx, roleID)
}

// Options configures a [Cache].
type Options struct {
	Logger *zap.Logger
	// FetchTimeout bounds each fetch; zero means 5s.
	FetchTimeout time.Duration
	Clock        clock.Clock
	// Observer is called after every fetch completes, outside any lock.
	Observer func(FetchEvent)
	// OnListenerPanic is called after a listener panic has been recovered.
	OnListenerPanic func(recovered any)
}

// Cache holds the active role's permission snapshot.
type Cache struct {
	fetcher  Fetcher
	logger   *zap.Logger
	timeout  time.Duration
	clock    clock.Clock
	observer func(FetchEvent)
	onPanic  func(any)

	registry *permission.Registry
	snap     atomic.Pointer[Snapshot]
	compare  singleflight.Group

	mu         sync.Mutex
	state      State
	roleID     int64
	generation uint64
	seq        uint64
	applied    uint64
	stale      bool
	lastErr    error

	listeners listenerRegistry
}

// New creates an uninitialized [Cache].
func New(fetcher Fetcher, opts Options) *Cache {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	registry, _ := permission.NewRegistry(0)

	return &Cache{
		fetcher:  fetcher,
		logger:   logger.Named("permcache"),
		timeout:  timeout,
		clock:    clk,
		observer: opts.Observer,
		onPanic:  opts.OnListenerPanic,
		registry: registry,
	}
}

// Initialize loads the permissions of roleID and makes them current.
//
// Switching to a different role drops the previous snapshot before the fetch starts,
// whatever its outcome. When the fetch fails and no snapshot exists the cache enters
// [Error] and the returned error wraps [ErrAuthorizationFetch]; when a snapshot for the
// same role already exists it stays current and is marked stale.
func (c *Cache) Initialize(ctx context.Context, roleID int64) error {
	if roleID <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRole, roleID)
	}

	c.mu.Lock()
	if c.roleID != roleID {
		if c.roleID != 0 {
			c.logger.Debug("role switch, dropping snapshot",
				zap.Int64("from_role_id", c.roleID),
				zap.Int64("to_role_id", roleID),
			)
		}
		c.resetLocked()
		c.roleID = roleID
	}
	gen, seq := c.beginLocked()
	c.mu.Unlock()

	return c.run(ctx, FetchInitialize, roleID, gen, seq)
}

// Refresh re-fetches the active role's permissions and swaps the snapshot. On failure
// the previous snapshot stays current, [Cache.Stale] reports true and the error wraps
// [ErrAuthorizationFetch]. Refresh also recovers a cache in the [Error] state.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.roleID == 0 {
		c.mu.Unlock()
		return ErrNotInitialized
	}
	roleID := c.roleID
	gen, seq := c.beginLocked()
	c.mu.Unlock()

	return c.run(ctx, FetchRefresh, roleID, gen, seq)
}

// CompareWithServer fetches the active role's permissions and reports whether they
// differ from the current snapshot, comparing modules and grants as unordered sets. It
// never changes the cache. A role with no snapshot always differs.
func (c *Cache) CompareWithServer(ctx context.Context) (bool, error) {
	c.mu.Lock()
	roleID := c.roleID
	c.mu.Unlock()
	if roleID == 0 {
		return false, ErrNotInitialized
	}

	start := c.clock.Now()
	v, err, _ := c.compare.Do(strconv.FormatInt(roleID, 10), func() (interface{}, error) {
		return c.fetch(ctx, roleID)
	})
	ev := FetchEvent{Kind: FetchCompare, RoleID: roleID, Elapsed: c.clock.Since(start)}
	if err != nil {
		ev.Err = fmt.Errorf("%w: %v", ErrAuthorizationFetch, err)
		c.observe(ev)
		return false, ev.Err
	}

	payload := v.(permission.Payload)
	snap := c.snap.Load()
	switch {
	case snap == nil || snap.RoleID != roleID:
		ev.Differs = true
	default:
		ev.Differs = !snap.Modules.EqualKeys(payload.AccessibleModules) ||
			!snap.Grants.EqualKeys(payload.GrantKeys())
	}
	c.observe(ev)
	return ev.Differs, nil
}

// Clear drops the snapshot, resets to [Uninitialized] and invalidates every in-flight
// fetch. Listeners are not notified.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.resetLocked()
	c.roleID = 0
	c.mu.Unlock()
}

func (c *Cache) resetLocked() {
	c.generation++
	c.snap.Store(nil)
	c.state = Uninitialized
	c.stale = false
	c.lastErr = nil
}

func (c *Cache) beginLocked() (gen, seq uint64) {
	c.seq++
	c.state = Loading
	return c.generation, c.seq
}

func (c *Cache) fetch(ctx context.Context, roleID int64) (permission.Payload, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := c.fetcher.FetchPermissions(ctx, roleID)
	if err != nil {
		return permission.Payload{}, err
	}
	if err := payload.Validate(); err != nil {
		return permission.Payload{}, err
	}
	return payload, nil
}

func (c *Cache) run(ctx context.Context, kind FetchKind, roleID int64, gen, seq uint64) error {
	start := c.clock.Now()
	payload, fetchErr := c.fetch(ctx, roleID)
	fetchedAt := c.clock.Now()

	var snap *Snapshot
	if fetchErr == nil {
		snap, fetchErr = buildSnapshot(c.registry, roleID, payload, fetchedAt)
	}

	ev := FetchEvent{Kind: kind, RoleID: roleID, Elapsed: fetchedAt.Sub(start)}
	err := c.apply(gen, seq, roleID, snap, fetchErr, &ev)
	c.observe(ev)

	if ev.Applied {
		c.listeners.notify(snap, c.logger, c.onPanic)
	}
	return err
}

func (c *Cache) apply(gen, seq uint64, roleID int64, snap *Snapshot, fetchErr error, ev *FetchEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || roleID != c.roleID || seq < c.applied {
		ev.Discarded = true
		c.logger.Debug("discarding superseded permission response",
			zap.Int64("role_id", roleID),
			zap.Uint64("seq", seq),
		)
		return ErrSuperseded
	}

	if fetchErr != nil {
		err := fmt.Errorf("%w: %v", ErrAuthorizationFetch, fetchErr)
		ev.Err = err
		c.lastErr = err
		if c.snap.Load() == nil {
			c.state = Error
			c.logger.Warn("permission load failed", zap.Int64("role_id", roleID), zap.Error(fetchErr))
			return err
		}
		c.state = Ready
		c.stale = true
		ev.Stale = true
		c.logger.Warn("permission refresh failed, keeping previous snapshot",
			zap.Int64("role_id", roleID),
			zap.Error(fetchErr),
		)
		return err
	}

	c.snap.Store(snap)
	c.applied = seq
	c.state = Ready
	c.stale = false
	c.lastErr = nil
	ev.Applied = true
	c.logger.Debug("permission snapshot applied",
		zap.Int64("role_id", roleID),
		zap.Int("modules", snap.Modules.Len()),
		zap.Int("grants", snap.Grants.Len()),
	)
	return nil
}

func (c *Cache) observe(ev FetchEvent) {
	if c.observer != nil {
		c.observer(ev)
	}
}

// HasModuleAccess reports whether module is accessible.
func (c *Cache) HasModuleAccess(module string) bool {
	s := c.snap.Load()
	return s != nil && s.Modules.Contains(module)
}

// HasPrivilege reports whether (module, privilege) is granted.
func (c *Cache) HasPrivilege(module, privilege string) bool {
	s := c.snap.Load()
	return s != nil && s.Grants.Contains(permission.GrantKey(module, privilege))
}

// HasAnyPrivilege reports whether at least one of privileges is granted on module.
// An empty list is never satisfied.
func (c *Cache) HasAnyPrivilege(module string, privileges ...string) bool {
	s := c.snap.Load()
	if s == nil {
		return false
	}
	for _, p := range privileges {
		if s.Grants.Contains(permission.GrantKey(module, p)) {
			return true
		}
	}
	return false
}

// HasAllPrivileges reports whether every one of privileges is granted on module.
// An empty list is never satisfied.
func (c *Cache) HasAllPrivileges(module string, privileges ...string) bool {
	s := c.snap.Load()
	if s == nil || len(privileges) == 0 {
		return false
	}
	for _, p := range privileges {
		if !s.Grants.Contains(permission.GrantKey(module, p)) {
			return false
		}
	}
	return true
}

// AccessibleModules returns the accessible modules, sorted.
func (c *Cache) AccessibleModules() []string {
	s := c.snap.Load()
	if s == nil {
		return []string{}
	}
	return s.Modules.Keys()
}

// Grants returns every grant sorted by module then privilege.
func (c *Cache) Grants() []permission.Grant {
	s := c.snap.Load()
	if s == nil {
		return []permission.Grant{}
	}
	keys := s.Grants.Keys()
	out := make([]permission.Grant, 0, len(keys))
	for _, k := range keys {
		if g, ok := permission.SplitGrantKey(k); ok {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Module != out[j].Module {
			return out[i].Module < out[j].Module
		}
		return out[i].Privilege < out[j].Privilege
	})
	return out
}

// PrivilegesFor returns the privileges granted on module, sorted.
func (c *Cache) PrivilegesFor(module string) []string {
	out := []string{}
	for _, g := range c.Grants() {
		if g.Module == module {
			out = append(out, g.Privilege)
		}
	}
	return out
}

// Snapshot returns the current snapshot.
func (c *Cache) Snapshot() (*Snapshot, bool) {
	s := c.snap.Load()
	return s, s != nil
}

// State returns the lifecycle state.
func (c *Cache) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RoleID returns the active role, if any.
func (c *Cache) RoleID() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roleID, c.roleID != 0
}

// Stale reports whether the last fetch failed while an older snapshot stayed current.
func (c *Cache) Stale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stale
}

// LastError returns the error of the last applied fetch, or nil after a success.
func (c *Cache) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}
