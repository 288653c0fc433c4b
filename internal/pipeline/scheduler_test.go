package pipeline

import (
	"sync"
	"testing"
)

func TestSlotPoolEnforcesCapacity(t *testing.T) {
	pool := newSlotPool(2)
	if !pool.TryAcquire() || !pool.TryAcquire() {
		t.Fatal("expected two acquisitions to succeed")
	}
	if pool.TryAcquire() {
		t.Fatal("expected third acquisition to fail")
	}
	pool.Release()
	if !pool.TryAcquire() {
		t.Fatal("expected acquisition after release")
	}
	if pool.InUse() != 2 {
		t.Fatalf("expected 2 slots in use, got %d", pool.InUse())
	}
}

func TestSlotPoolMinimumCapacity(t *testing.T) {
	pool := newSlotPool(0)
	if !pool.TryAcquire() {
		t.Fatal("expected capacity clamped to one")
	}
	if pool.TryAcquire() {
		t.Fatal("expected single slot")
	}
}

func TestSlotPoolReleaseNeverUnderflows(t *testing.T) {
	pool := newSlotPool(1)
	pool.Release()
	if pool.InUse() != 0 {
		t.Fatalf("expected zero in use, got %d", pool.InUse())
	}
}

func TestSlotPoolConcurrentAcquire(t *testing.T) {
	pool := newSlotPool(3)
	var wg sync.WaitGroup
	acquired := make(chan struct{}, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if pool.TryAcquire() {
				acquired <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(acquired)
	count := 0
	for range acquired {
		count++
	}
	if count != 3 {
		t.Fatalf("expected exactly 3 acquisitions, got %d", count)
	}
	if pool.InUse() != 3 {
		t.Fatalf("expected 3 in use, got %d", pool.InUse())
	}
}
