package provider

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func TestPoolLimitsConcurrency(t *testing.T) {
	pool := NewPool(2, nil)

	var active, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := pool.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			n := atomic.AddInt32(&active, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			pool.Release()
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&peak); got > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", got)
	}
}

func TestPoolShrinkHalvesToFloor(t *testing.T) {
	pool := NewPool(5, nil)

	want := []int{2, 1, 1}
	for i, limit := range want {
		pool.Shrink()
		if got := pool.Limit(); got != limit {
			t.Fatalf("after %d shrinks limit = %d, want %d", i+1, got, limit)
		}
	}
}

func TestAcquireHonorsContext(t *testing.T) {
	pool := NewPool(1, nil)
	if err := pool.Acquire(context.Background()); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := pool.Acquire(ctx); err == nil {
		t.Fatal("expected Acquire to fail once the context expires")
	}

	pool.Release()
	if err := pool.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire after Release failed: %v", err)
	}
}

func TestBlockedAcquireWakesOnRelease(t *testing.T) {
	pool := NewPool(1, nil)
	if err := pool.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- pool.Acquire(context.Background())
	}()

	time.Sleep(5 * time.Millisecond)
	pool.Release()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("blocked Acquire returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked Acquire never woke after Release")
	}
}

// Feature: provider-pool, Property 1: no sequence of shrinks drives the
// limit below one, and every shrink either halves the limit or leaves
// it at the floor.
func TestProperty_PoolShrinkStaysAboveZero(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		start := rapid.IntRange(1, 64).Draw(t, "start")
		shrinks := rapid.IntRange(0, 10).Draw(t, "shrinks")

		pool := NewPool(start, nil)
		prev := pool.Limit()
		for i := 0; i < shrinks; i++ {
			pool.Shrink()
			cur := pool.Limit()
			if cur < 1 {
				t.Fatalf("limit fell to %d", cur)
			}
			if cur != prev/2 && cur != 1 {
				t.Fatalf("limit went %d -> %d, want halving or floor", prev, cur)
			}
			prev = cur
		}
	})
}
