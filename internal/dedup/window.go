// Package dedup suppresses duplicate deliveries of the same external event.
// Platform gateways redeliver events on reconnects and shard overlap; acting
// twice on one removal event would double-post audit records.
package dedup

import (
	"sync"
	"time"
)

const (
	// DefaultWindow is how long an observed key suppresses repeats.
	DefaultWindow = 3 * time.Second
	// evictAfter is when a key is dropped from the set. Slightly longer
	// than the window so eviction never races a late duplicate.
	evictAfter = 5 * time.Second
)

// Window is an expiring set of recently observed keys.
type Window struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
	now    func() time.Time
}

func New(window time.Duration) *Window {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Window{window: window, seen: make(map[string]time.Time), now: time.Now}
}

// SetNow overrides the clock; tests only.
func (w *Window) SetNow(now func() time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.now = now
}

// Observe records the key and reports whether it is a duplicate of one seen
// inside the window. Stale keys are pruned lazily on each call.
func (w *Window) Observe(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	for k, at := range w.seen {
		if now.Sub(at) > evictAfter {
			delete(w.seen, k)
		}
	}
	if at, ok := w.seen[key]; ok && now.Sub(at) <= w.window {
		return true
	}
	w.seen[key] = now
	return false
}
