package permsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/ironhall/gymauth/session"
)

// DefaultInterval is the polling cadence used when Config.Interval is zero.
const DefaultInterval = 60 * time.Second

// Config controls the polling loop.
type Config struct {
	Enabled  bool
	Interval time.Duration
}

// Comparer is the permission cache surface the loop drives.
type Comparer interface {
	CompareWithServer(ctx context.Context) (bool, error)
	Refresh(ctx context.Context) error
}

// IdentitySource reports the active identity.
type IdentitySource interface {
	CurrentIdentity() (session.Identity, bool)
}

// Result is the outcome of one poll.
type Result uint8

const (
	// Skipped means no identity was active.
	Skipped Result = iota
	// Unchanged means the server matched the cache.
	Unchanged
	// Refreshed means drift was detected and the cache was refreshed.
	Refreshed
	// Failed means the compare or the refresh returned an error.
	Failed
)

func (r Result) String() string {
	switch r {
	case Skipped:
		return "skipped"
	case Unchanged:
		return "unchanged"
	case Refreshed:
		return "refreshed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("result(%d)", uint8(r))
	}
}

// Options configures a [Syncer].
type Options struct {
	Logger *zap.Logger
	Clock  clock.Clock
	// Observer is called after every poll.
	Observer func(Result, error)
}

// Syncer is the polling controller.
type Syncer struct {
	cfg      Config
	cmp      Comparer
	ids      IdentitySource
	logger   *zap.Logger
	clock    clock.Clock
	observer func(Result, error)

	poll sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a stopped [Syncer].
func New(cfg Config, cmp Comparer, ids IdentitySource, opts Options) *Syncer {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	return &Syncer{
		cfg:      cfg,
		cmp:      cmp,
		ids:      ids,
		logger:   logger.Named("permsync"),
		clock:    clk,
		observer: opts.Observer,
	}
}

// Interval returns the polling cadence.
func (s *Syncer) Interval() time.Duration {
	return s.cfg.Interval
}

// Start launches the polling goroutine. It reports false when polling is disabled or
// already running. The loop stops when ctx is cancelled or [Syncer.Stop] is called.
func (s *Syncer) Start(ctx context.Context) bool {
	if !s.cfg.Enabled {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return false
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	ticker := s.clock.Ticker(s.cfg.Interval)
	go func() {
		defer close(done)
		defer ticker.Stop()

		s.logger.Info("permission polling started", zap.Duration("interval", s.cfg.Interval))
		for {
			select {
			case <-ctx.Done():
				s.logger.Info("permission polling stopped")
				return
			case <-ticker.C:
				s.PollOnce(ctx)
			}
		}
	}()
	return true
}

// Stop cancels the polling goroutine and waits for it to exit. It is idempotent.
func (s *Syncer) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Running reports whether the polling goroutine is active.
func (s *Syncer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// PollOnce runs one compare and, on drift, one refresh. Polls never overlap.
func (s *Syncer) PollOnce(ctx context.Context) (Result, error) {
	s.poll.Lock()
	defer s.poll.Unlock()

	res, err := s.pollOnce(ctx)
	if err != nil {
		s.logger.Warn("permission poll failed", zap.Error(err))
	} else if res == Refreshed {
		s.logger.Info("permission drift detected, cache refreshed")
	}
	if s.observer != nil {
		s.observer(res, err)
	}
	return res, err
}

func (s *Syncer) pollOnce(ctx context.Context) (Result, error) {
	if _, ok := s.ids.CurrentIdentity(); !ok {
		return Skipped, nil
	}

	differs, err := s.cmp.CompareWithServer(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// cancelled by Stop mid-poll
			return Skipped, nil
		}
		return Failed, err
	}
	if !differs {
		return Unchanged, nil
	}

	if err := s.cmp.Refresh(ctx); err != nil {
		return Failed, err
	}
	return Refreshed, nil
}
