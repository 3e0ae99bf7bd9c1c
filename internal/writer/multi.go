package writer

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Coordinator backs a multi-output job (e.g. a Ha/OIII pair written from
// one input frame): it shares one backpressure bound across N per-output
// Writers, and only releases a frame's slot once every output for that
// index has reported completion, per spec.md §4.3's "Multi-output jobs".
type Coordinator struct {
	numOutputs int
	sem        *semaphore.Weighted // nil when unbounded

	mu      sync.Mutex
	pending map[int]int // output index -> outstanding output count
}

// NewCoordinator builds a Coordinator for a job producing numOutputs
// parallel outputs per input frame, bounded to maxActive in-flight frames
// (0 disables bounding).
func NewCoordinator(numOutputs, maxActive int) *Coordinator {
	c := &Coordinator{numOutputs: numOutputs, pending: make(map[int]int)}
	if maxActive > 0 {
		c.sem = semaphore.NewWeighted(int64(maxActive))
	}
	return c
}

// WaitForSlot acquires the shared backpressure slot for output index o
// before any of its N writers begin producing frames for it.
func (c *Coordinator) WaitForSlot(ctx context.Context) error {
	if c.sem == nil {
		return nil
	}
	return c.sem.Acquire(ctx, 1)
}

// Release is called by each per-output Writer as it finishes index o. The
// underlying slot is released only once all numOutputs writers have
// reported, matching the SlotReleaser interface so a Coordinator can be
// passed directly to writer.New.
func (c *Coordinator) Release(index int) {
	c.mu.Lock()
	remaining, ok := c.pending[index]
	if !ok {
		remaining = c.numOutputs
	}
	remaining--
	if remaining <= 0 {
		delete(c.pending, index)
		c.mu.Unlock()
		if c.sem != nil {
			c.sem.Release(1)
		}
		return
	}
	c.pending[index] = remaining
	c.mu.Unlock()
}
