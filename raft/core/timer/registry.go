// Package timer implements the node's named-timer facility.
//
// Exactly one timer is ever active per name. It is built on
// time.AfterFunc, generalizing the single-ticker helper this package
// replaces: instead of one anonymous recurring ticker, callers schedule,
// query, adjust, and cancel timers by name.
package timer

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Registry owns zero or more named, one-shot timers.
type Registry struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	ended  bool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		timers: make(map[string]*time.Timer),
	}
}

// Set schedules callback to fire once after duration. It is an error to
// call Set for a name that already has a pending timer; callers use Active
// plus Adjust to reschedule one in flight.
func (r *Registry) Set(name string, duration time.Duration, callback func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ended {
		return fmt.Errorf("timer: registry ended")
	}
	if _, ok := r.timers[name]; ok {
		return fmt.Errorf("timer: %q already scheduled", name)
	}

	r.timers[name] = time.AfterFunc(duration, func() {
		r.Forget(name)
		callback()
	})
	log.Debugf("timer %q armed for %s", name, duration)
	return nil
}

// Active reports whether a timer by this name is currently pending.
func (r *Registry) Active(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.timers[name]
	return ok
}

// Adjust resets an already-scheduled timer to a new duration without
// invoking its callback. It is a no-op if no timer by this name is pending.
func (r *Registry) Adjust(name string, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.timers[name]
	if !ok {
		return
	}
	t.Reset(duration)
	log.Debugf("timer %q reset to %s", name, duration)
}

// Clear cancels every timer owned by this registry. Cancelling an
// already-fired timer is a no-op; cancelling during callback execution does
// not abort the callback, it only prevents the registry from tracking a
// stale entry.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearLocked()
}

func (r *Registry) clearLocked() {
	for name, t := range r.timers {
		t.Stop()
		delete(r.timers, name)
	}
}

// End clears all timers and releases the registry. Further Set calls
// return an error.
func (r *Registry) End() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearLocked()
	r.ended = true
}

// Forget drops the bookkeeping entry for name without stopping the
// underlying timer. Call this from inside a firing callback so the
// callback's own completion doesn't race a concurrent Set for the same
// name (the fired timer is already spent; nothing to Stop).
func (r *Registry) Forget(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.timers, name)
}
