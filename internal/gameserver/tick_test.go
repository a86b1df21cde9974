package gameserver_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cory-johannsen/duskfall/internal/gameserver"
)

func TestTickManager_StartsAndStops(t *testing.T) {
	tm := gameserver.NewTickManager()
	tm.RegisterTick("behavior", 50*time.Millisecond, func() {})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tm.Start(ctx)
	time.Sleep(120 * time.Millisecond)
	cancel()
	// Should not block or panic after cancel
}

func TestTickManager_CallbackInvoked(t *testing.T) {
	tm := gameserver.NewTickManager()
	called := make(chan struct{}, 1)
	tm.RegisterTick("behavior", 20*time.Millisecond, func() {
		select {
		case called <- struct{}{}:
		default:
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	tm.Start(ctx)
	select {
	case <-called:
		// success
	case <-ctx.Done():
		t.Fatal("tick callback not invoked within timeout")
	}
}

func TestTickManager_DistinctIntervalsBothFire(t *testing.T) {
	tm := gameserver.NewTickManager()
	var fast, slow atomic.Int64
	tm.RegisterTick("fast", 20*time.Millisecond, func() { fast.Add(1) })
	tm.RegisterTick("slow", 60*time.Millisecond, func() { slow.Add(1) })
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	tm.Start(ctx)
	<-ctx.Done()
	if fast.Load() == 0 {
		t.Fatal("fast callback never fired")
	}
	if slow.Load() == 0 {
		t.Fatal("slow callback never fired")
	}
	if fast.Load() <= slow.Load() {
		t.Fatalf("fast (%d) should fire more often than slow (%d)", fast.Load(), slow.Load())
	}
}

func TestTickManager_UnregisterStopsCallback(t *testing.T) {
	tm := gameserver.NewTickManager()
	var count atomic.Int64
	tm.RegisterTick("sweep", 20*time.Millisecond, func() { count.Add(1) })
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	tm.Start(ctx)
	time.Sleep(60 * time.Millisecond)
	tm.Unregister("sweep")
	countAfterUnregister := count.Load()
	time.Sleep(60 * time.Millisecond)
	if count.Load() > countAfterUnregister+1 {
		t.Fatalf("tick continued after unregister: before=%d after=%d", countAfterUnregister, count.Load())
	}
}
