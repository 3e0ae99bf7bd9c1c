package stack

import "sync/atomic"

// addRejection accumulates a rejection tally under an atomic add, per
// spec.md §5's "global counters ... updated under atomic operations".
func addRejection(counter *int64, n int) {
	atomic.AddInt64(counter, int64(n))
}
