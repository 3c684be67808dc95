package permcache

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Listener is called with the snapshot that just became current.
type Listener func(*Snapshot)

// ListenerID identifies a registered listener.
type ListenerID = uuid.UUID

type listenerEntry struct {
	id ListenerID
	fn Listener
}

type listenerRegistry struct {
	mu      sync.Mutex
	entries []listenerEntry
}

func (r *listenerRegistry) add(fn Listener) ListenerID {
	id := uuid.New()
	r.mu.Lock()
	r.entries = append(r.entries, listenerEntry{id: id, fn: fn})
	r.mu.Unlock()
	return id
}

func (r *listenerRegistry) remove(id ListenerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.id == id {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (r *listenerRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *listenerRegistry) notify(snap *Snapshot, logger *zap.Logger, onPanic func(any)) {
	r.mu.Lock()
	entries := make([]listenerEntry, len(r.entries))
	copy(entries, r.entries)
	r.mu.Unlock()

	for _, e := range entries {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("permission listener panicked",
						zap.String("listener_id", e.id.String()),
						zap.Any("panic", rec),
					)
					if onPanic != nil {
						onPanic(rec)
					}
				}
			}()
			e.fn(snap)
		}()
	}
}

// AddChangeListener registers fn and returns its id.
func (c *Cache) AddChangeListener(fn Listener) ListenerID {
	return c.listeners.add(fn)
}

// RemoveChangeListener unregisters the listener with id. It reports whether the
// listener was registered.
func (c *Cache) RemoveChangeListener(id ListenerID) bool {
	return c.listeners.remove(id)
}

// Subscribe registers fn and returns a function that unregisters it. Calling the
// returned function more than once is harmless.
func (c *Cache) Subscribe(fn Listener) (unsubscribe func()) {
	id := c.listeners.add(fn)
	var once sync.Once
	return func() {
		once.Do(func() { c.listeners.remove(id) })
	}
}

// ListenerCount returns the number of registered listeners.
func (c *Cache) ListenerCount() int {
	return c.listeners.len()
}
