package chat

import (
	"sync"
	"time"
)

// renderThrottle coalesces bursts of deltas into periodic renders. While
// a timer is pending, further triggers are absorbed; the pending timer is
// never re-armed, so renders of the same buffer cannot overlap.
type renderThrottle struct {
	interval time.Duration
	fn       func()

	mu    sync.Mutex
	timer *time.Timer
}

func newRenderThrottle(interval time.Duration, fn func()) *renderThrottle {
	return &renderThrottle{interval: interval, fn: fn}
}

func (t *renderThrottle) trigger() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		return
	}
	t.timer = time.AfterFunc(t.interval, func() {
		t.mu.Lock()
		t.timer = nil
		t.mu.Unlock()
		t.fn()
	})
}

// stop cancels any pending render. Safe to call repeatedly.
func (t *renderThrottle) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
