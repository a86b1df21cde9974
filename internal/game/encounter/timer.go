package encounter

import (
	"sync"
	"time"
)

// TickTimer fires a callback at a fixed interval until stopped.
// It is safe for concurrent use.
type TickTimer struct {
	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

// NewTickTimer creates and starts a timer that calls onTick every interval.
// onTick is called from a dedicated goroutine.
//
// Precondition: interval > 0; onTick must not be nil.
// Postcondition: Returns a running TickTimer; onTick fires until Stop is called.
func NewTickTimer(interval time.Duration, onTick func()) *TickTimer {
	t := &TickTimer{done: make(chan struct{})}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-t.done:
				return
			case <-ticker.C:
				t.mu.Lock()
				stopped := t.stopped
				t.mu.Unlock()
				if stopped {
					return
				}
				onTick()
			}
		}
	}()
	return t
}

// Stop prevents further callbacks. Safe to call multiple times.
//
// Postcondition: onTick will not be called after Stop returns, except for a
// tick already in flight.
func (t *TickTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	close(t.done)
}
