package capture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGuardMutualExclusion(t *testing.T) {
	guard := NewGuard()
	ctx := context.Background()

	var held atomic.Int32
	var violations atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			lease, err := guard.Acquire(ctx, "chan-1", time.Second)
			if err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}

			if held.Add(1) > 1 {
				violations.Add(1)
			}
			time.Sleep(time.Millisecond)
			held.Add(-1)

			lease.Release()
		}()
	}

	wg.Wait()

	if violations.Load() > 0 {
		t.Errorf("Lease held concurrently %d times", violations.Load())
	}
}

func TestGuardBusyTimeout(t *testing.T) {
	guard := NewGuard()
	ctx := context.Background()

	lease, err := guard.Acquire(ctx, "chan-1", time.Second)
	if err != nil {
		t.Fatalf("First acquire failed: %v", err)
	}
	defer lease.Release()

	_, err = guard.Acquire(ctx, "chan-1", 10*time.Millisecond)
	if !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy, got %v", err)
	}
}

func TestGuardIndependentChannels(t *testing.T) {
	guard := NewGuard()
	ctx := context.Background()

	lease1, err := guard.Acquire(ctx, "chan-1", time.Second)
	if err != nil {
		t.Fatalf("Acquire chan-1 failed: %v", err)
	}
	defer lease1.Release()

	// A different channel's lease is unaffected
	lease2, err := guard.Acquire(ctx, "chan-2", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Acquire chan-2 failed: %v", err)
	}
	lease2.Release()
}

func TestGuardIdempotentRelease(t *testing.T) {
	guard := NewGuard()
	ctx := context.Background()

	lease, err := guard.Acquire(ctx, "chan-1", time.Second)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	lease.Release()
	lease.Release()
	lease.Release()

	// The channel must be acquirable again after double release
	lease2, err := guard.Acquire(ctx, "chan-1", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Reacquire after double release failed: %v", err)
	}
	lease2.Release()
}

func TestGuardContextCancel(t *testing.T) {
	guard := NewGuard()

	lease, err := guard.Acquire(context.Background(), "chan-1", time.Second)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer lease.Release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err = guard.Acquire(ctx, "chan-1", time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestGuardHeldAndForget(t *testing.T) {
	guard := NewGuard()
	ctx := context.Background()

	if guard.Held("chan-1") {
		t.Error("Unknown channel should not be held")
	}

	lease, err := guard.Acquire(ctx, "chan-1", time.Second)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if !guard.Held("chan-1") {
		t.Error("Expected lease to be held")
	}

	lease.Release()

	if guard.Held("chan-1") {
		t.Error("Expected lease to be free after release")
	}

	guard.Forget("chan-1")

	if guard.Held("chan-1") {
		t.Error("Forgotten channel should not be held")
	}
}
