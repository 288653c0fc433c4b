package pipeline

import "sync"

// slotPool is the admission gate for concurrent transcription jobs. A slot
// is acquired before a job is submitted and released when the job reaches a
// terminal provider state, so the in-flight count never exceeds capacity.
type slotPool struct {
	mu       sync.Mutex
	capacity int
	inUse    int
}

func newSlotPool(capacity int) *slotPool {
	if capacity < 1 {
		capacity = 1
	}
	return &slotPool{capacity: capacity}
}

// TryAcquire reserves a slot if one is free.
func (p *slotPool) TryAcquire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inUse >= p.capacity {
		return false
	}
	p.inUse++
	return true
}

// Release returns a slot to the pool.
func (p *slotPool) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inUse > 0 {
		p.inUse--
	}
}

// InUse reports how many slots are currently held.
func (p *slotPool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse
}
