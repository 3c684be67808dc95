package roles

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Fetcher retrieves the role catalog from the backend.
type Fetcher interface {
	FetchRoles(ctx context.Context) ([]Role, error)
}

// FetcherFunc adapts a function to [Fetcher].
type FetcherFunc func(ctx context.Context) ([]Role, error)

// FetchRoles calls f.
func (f FetcherFunc) FetchRoles(ctx context.Context) ([]Role, error) {
	return f(ctx)
}

// Options configures a [Directory].
type Options struct {
	Logger *zap.Logger
	// Timeout bounds each fetch; zero leaves the caller's deadline in charge.
	Timeout time.Duration
	// Clock times each fetch. Nil uses the wall clock.
	Clock clock.Clock
	// OnLoad is called after every completed load with the fetch latency and the
	// warning, if any.
	OnLoad func(elapsed time.Duration, warning error)
}

// Directory holds the most recently loaded role catalog.
type Directory struct {
	fetcher Fetcher
	logger  *zap.Logger
	clock   clock.Clock
	timeout time.Duration
	onLoad  func(time.Duration, error)

	current atomic.Pointer[Collection]
	group   singleflight.Group

	mu      sync.RWMutex
	lastErr error
}

// NewDirectory creates a [Directory]. Until the first [Directory.Load] the catalog
// is empty.
func NewDirectory(fetcher Fetcher, opts Options) *Directory {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	d := &Directory{
		fetcher: fetcher,
		logger:  logger.Named("roles"),
		clock:   clk,
		timeout: opts.Timeout,
		onLoad:  opts.OnLoad,
	}
	d.current.Store(emptyCollection())
	return d
}

// Load fetches the catalog and replaces the current collection with it.
//
// Load always returns a usable collection. When the backend fails or returns a
// malformed catalog, the fallback catalog becomes current and the returned error wraps
// [ErrUnavailable]; that error is a warning, not a failure. Concurrent calls share a
// single fetch.
func (d *Directory) Load(ctx context.Context) (*Collection, error) {
	type loadResult struct {
		coll    *Collection
		warning error
	}

	v, _, _ := d.group.Do("load", func() (interface{}, error) {
		coll, warning := d.load(ctx)
		return loadResult{coll: coll, warning: warning}, nil
	})

	res := v.(loadResult)
	return res.coll, res.warning
}

func (d *Directory) load(ctx context.Context) (*Collection, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := d.clock.Now()
	list, err := d.fetcher.FetchRoles(ctx)
	if err == nil {
		err = validateRoles(list)
	}
	elapsed := d.clock.Since(start)

	var (
		coll    *Collection
		dropped []int64
		warning error
	)
	if err != nil {
		warning = fmt.Errorf("%w: %v", ErrUnavailable, err)
		coll, _ = NewCollection(FallbackRoles, Fallback)
		d.logger.Warn("role catalog unavailable, using fallback roles", zap.Error(err))
	} else {
		coll, dropped = NewCollection(list, SourceOfTruth)
		for _, id := range dropped {
			d.logger.Warn("duplicate role id dropped", zap.Int64("role_id", id))
		}
		d.logger.Debug("role catalog loaded", zap.Int("roles", coll.Len()))
	}

	d.current.Store(coll)
	d.mu.Lock()
	d.lastErr = warning
	d.mu.Unlock()

	if d.onLoad != nil {
		d.onLoad(elapsed, warning)
	}

	return coll, warning
}

// FindByID looks id up in the current collection.
func (d *Directory) FindByID(id int64) (Role, bool) {
	return d.current.Load().FindByID(id)
}

// Current returns the current collection.
func (d *Directory) Current() *Collection {
	return d.current.Load()
}

// Roles returns the current catalog in fetch order.
func (d *Directory) Roles() []Role {
	return d.current.Load().Roles()
}

// RouteFor returns the route of role id, or def when the role is unknown or has no route.
func (d *Directory) RouteFor(id int64, def string) string {
	r, ok := d.FindByID(id)
	if !ok || r.Route == "" {
		return def
	}
	return r.Route
}

// Degraded reports whether the current catalog is the fallback catalog.
func (d *Directory) Degraded() bool {
	return d.current.Load().Degraded()
}

// LastError returns the warning of the most recent load, or nil.
func (d *Directory) LastError() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastErr
}
