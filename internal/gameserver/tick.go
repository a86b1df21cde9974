package gameserver

import (
	"context"
	"sync"
	"time"
)

// TickManager runs the periodic simulation callbacks: behavior stepping,
// boss mechanic evaluation, and the party invite sweep. Callbacks sharing an
// interval run sequentially on one goroutine per interval.
//
// Invariant: each callback is invoked at most once per its interval.
type TickManager struct {
	mu    sync.Mutex
	ticks map[string]tickEntry
}

type tickEntry struct {
	interval time.Duration
	fn       func()
}

// NewTickManager returns an empty manager.
func NewTickManager() *TickManager {
	return &TickManager{
		ticks: make(map[string]tickEntry),
	}
}

// RegisterTick registers a callback under name firing every interval.
// Replaces any existing callback of the same name.
//
// Precondition: interval must be > 0; all registrations must happen before
// Start (a later registration with a new interval never fires).
func (t *TickManager) RegisterTick(name string, interval time.Duration, fn func()) {
	if interval <= 0 {
		panic("gameserver.RegisterTick: interval must be > 0")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ticks[name] = tickEntry{interval: interval, fn: fn}
}

// Unregister removes the callback registered under name.
func (t *TickManager) Unregister(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.ticks, name)
}

// Start begins one tick loop per distinct registered interval. Runs until
// ctx is cancelled.
//
// Postcondition: every registered callback fires once per its interval.
func (t *TickManager) Start(ctx context.Context) {
	t.mu.Lock()
	intervals := make(map[time.Duration]bool)
	for _, e := range t.ticks {
		intervals[e.interval] = true
	}
	t.mu.Unlock()

	for interval := range intervals {
		go t.loop(ctx, interval)
	}
}

func (t *TickManager) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.mu.Lock()
			callbacks := make([]func(), 0, len(t.ticks))
			for _, e := range t.ticks {
				if e.interval == interval {
					callbacks = append(callbacks, e.fn)
				}
			}
			t.mu.Unlock()
			for _, fn := range callbacks {
				fn()
			}
		}
	}
}
