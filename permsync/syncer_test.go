package permsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/ironhall/gymauth/session"
)

type fakeCache struct {
	mu         sync.Mutex
	clock      clock.Clock
	server     int
	cached     int
	compares   int
	refreshes  int
	refreshAt  time.Time
	compareErr error
}

func (f *fakeCache) CompareWithServer(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.compares++
	if f.compareErr != nil {
		return false, f.compareErr
	}
	return f.server != f.cached, nil
}

func (f *fakeCache) Refresh(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	f.cached = f.server
	if f.clock != nil {
		f.refreshAt = f.clock.Now()
	}
	return nil
}

func (f *fakeCache) changeServer() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.server++
}

func (f *fakeCache) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.compares, f.refreshes
}

type fakeIdentity struct {
	mu     sync.Mutex
	active bool
}

func (f *fakeIdentity) set(active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = active
}

func (f *fakeIdentity) CurrentIdentity() (session.Identity, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.active {
		return session.Identity{}, false
	}
	return session.Identity{ID: 1, RoleID: 2}, true
}

func waitResult(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for poll")
		return Skipped
	}
}

func TestDriftDetectedAtNextTick(t *testing.T) {
	mock := clock.NewMock()
	start := mock.Now()
	cache := &fakeCache{clock: mock}
	ids := &fakeIdentity{active: true}

	results := make(chan Result, 4)
	s := New(Config{Enabled: true, Interval: 60 * time.Second}, cache, ids, Options{
		Clock:    mock,
		Observer: func(r Result, _ error) { results <- r },
	})
	if !s.Start(context.Background()) {
		t.Fatal("expected Start to launch the loop")
	}
	defer s.Stop()

	mock.Add(10 * time.Second)
	cache.changeServer()
	if compares, _ := cache.counts(); compares != 0 {
		t.Fatalf("polled before the interval elapsed: %d", compares)
	}

	mock.Add(50 * time.Second)
	if r := waitResult(t, results); r != Refreshed {
		t.Fatalf("expected Refreshed, got %s", r)
	}

	cache.mu.Lock()
	at := cache.refreshAt
	cache.mu.Unlock()
	if got := at.Sub(start); got != 60*time.Second {
		t.Fatalf("refresh happened at %s, want 60s", got)
	}

	mock.Add(60 * time.Second)
	if r := waitResult(t, results); r != Unchanged {
		t.Fatalf("expected Unchanged on the following tick, got %s", r)
	}
	if _, refreshes := cache.counts(); refreshes != 1 {
		t.Fatalf("expected one refresh, got %d", refreshes)
	}
}

func TestPollOnceSkipsWithoutIdentity(t *testing.T) {
	cache := &fakeCache{server: 1}
	s := New(Config{Enabled: true}, cache, &fakeIdentity{}, Options{})

	r, err := s.PollOnce(context.Background())
	if err != nil || r != Skipped {
		t.Fatalf("expected Skipped, got %s %v", r, err)
	}
	if compares, _ := cache.counts(); compares != 0 {
		t.Fatal("must not contact the backend while unauthenticated")
	}
}

func TestPollOnceFailure(t *testing.T) {
	cache := &fakeCache{compareErr: errors.New("down")}
	s := New(Config{Enabled: true}, cache, &fakeIdentity{active: true}, Options{})

	r, err := s.PollOnce(context.Background())
	if err == nil || r != Failed {
		t.Fatalf("expected Failed, got %s %v", r, err)
	}
	if _, refreshes := cache.counts(); refreshes != 0 {
		t.Fatal("must not refresh after a failed compare")
	}
}

func TestStartStop(t *testing.T) {
	s := New(Config{Enabled: true, Interval: time.Hour}, &fakeCache{}, &fakeIdentity{}, Options{Clock: clock.NewMock()})

	if !s.Start(context.Background()) {
		t.Fatal("expected start")
	}
	if s.Start(context.Background()) {
		t.Fatal("second Start must report false")
	}
	if !s.Running() {
		t.Fatal("expected running")
	}
	s.Stop()
	s.Stop()
	if s.Running() {
		t.Fatal("expected stopped")
	}
	if !s.Start(context.Background()) {
		t.Fatal("expected restart after Stop")
	}
	s.Stop()
}

func TestDisabledNeverStarts(t *testing.T) {
	s := New(Config{Enabled: false}, &fakeCache{}, &fakeIdentity{}, Options{})
	if s.Start(context.Background()) || s.Running() {
		t.Fatal("disabled syncer must not start")
	}
	if s.Interval() != DefaultInterval {
		t.Fatalf("expected default interval, got %s", s.Interval())
	}
}

func TestContextCancelStopsLoop(t *testing.T) {
	s := New(Config{Enabled: true, Interval: time.Hour}, &fakeCache{}, &fakeIdentity{}, Options{Clock: clock.NewMock()})
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()
	s.Stop()
	if s.Running() {
		t.Fatal("expected stopped")
	}
}
