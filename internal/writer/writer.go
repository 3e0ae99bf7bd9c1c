// Package writer implements the Sequence Writer (SW): it serializes
// concurrently produced frames into an ordered container with bounded
// memory, per spec.md §4.3.
package writer

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/five82/seqstack/internal/joberr"
	"github.com/five82/seqstack/internal/seqio"
)

// Task is a (index, frame) pair delivered to the writer. A nil Frame means
// "the frame at this index failed; skip it but advance ordering."
type Task struct {
	Index int
	Frame *seqio.Frame
}

// SlotReleaser is notified when a task holding a memory slot has been fully
// consumed. The default single-output Writer releases its own semaphore;
// a Coordinator (multi.go) instead waits for every output of an index to
// report before releasing the shared slot.
type SlotReleaser interface {
	Release(index int)
}

type semaphoreReleaser struct{ sem *semaphore.Weighted }

func (r *semaphoreReleaser) Release(int) {
	if r.sem != nil {
		r.sem.Release(1)
	}
}

type frameGeom struct {
	width, height, channels int
	storage                 seqio.StorageKind
}

func geomOf(f *seqio.Frame) frameGeom {
	return frameGeom{f.Width, f.Height, f.Channels, f.Storage}
}

// Writer drives the holding-map consumer algorithm of spec.md §4.3.
type Writer struct {
	out      seqio.Writer
	expected int // < 0 if unknown

	sem      *semaphore.Weighted // nil when maxActive == 0 (unbounded)
	releaser SlotReleaser

	mu           sync.Mutex
	cond         *sync.Cond
	queue        []Task
	holding      map[int]Task
	currentIndex int
	aborted      bool

	errMu    sync.Mutex
	firstErr error

	geomMu    sync.Mutex
	haveGeom  bool
	firstGeom frameGeom

	consumerDone chan struct{}
}

// New builds a Writer over out. maxActive bounds concurrent in-memory
// frames (0 disables bounding, per spec.md §4.3's backpressure section).
// If releaser is non-nil (a multi-output Coordinator), the Writer defers
// slot release to it instead of managing its own semaphore.
func New(out seqio.Writer, maxActive int, releaser SlotReleaser) *Writer {
	w := &Writer{out: out, holding: make(map[int]Task)}
	w.cond = sync.NewCond(&w.mu)
	if releaser != nil {
		w.releaser = releaser
	} else if maxActive > 0 {
		sem := semaphore.NewWeighted(int64(maxActive))
		w.sem = sem
		w.releaser = &semaphoreReleaser{sem: sem}
	} else {
		w.releaser = &semaphoreReleaser{sem: nil}
	}
	return w
}

// Start spawns the consumer goroutine. expectedFrameCount may be negative
// when the final count is not known ahead of time.
func (w *Writer) Start(expectedFrameCount int) {
	w.expected = expectedFrameCount
	w.consumerDone = make(chan struct{})
	go w.consume()
}

// Append is workers' non-blocking enqueue of a produced (or failed, frame
// == nil) task.
func (w *Writer) Append(t Task) {
	w.mu.Lock()
	w.queue = append(w.queue, t)
	w.cond.Signal()
	w.mu.Unlock()
}

// WaitForSlot blocks while the in-flight frame count is at its bound,
// cancellable via ctx. Callers using a multi-output Coordinator must call
// the coordinator's WaitForSlot instead; this Writer's own semaphore is
// unused in that mode.
func (w *Writer) WaitForSlot(ctx context.Context) error {
	if w.sem == nil {
		return nil
	}
	return w.sem.Acquire(ctx, 1)
}

// consume is the single consumer thread: maintains current_index and a
// holding map of out-of-order tasks keyed by output index.
func (w *Writer) consume() {
	defer close(w.consumerDone)
	for {
		if w.expected >= 0 && w.currentIndex >= w.expected {
			return
		}
		t, ok := w.popReady()
		if !ok {
			return
		}
		if err := w.handleTask(t); err != nil {
			w.setErr(err)
			w.abortAndDrain()
			return
		}
	}
}

// popReady waits until current_index is available either in the holding
// map or as the head of the queue (stashing out-of-order arrivals), or
// until the writer is aborted.
func (w *Writer) popReady() (Task, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for {
		if t, ok := w.holding[w.currentIndex]; ok {
			delete(w.holding, w.currentIndex)
			return t, true
		}
		if len(w.queue) > 0 {
			t := w.queue[0]
			w.queue = w.queue[1:]
			if t.Index != w.currentIndex {
				w.holding[t.Index] = t
				continue
			}
			return t, true
		}
		if w.aborted {
			return Task{}, false
		}
		w.cond.Wait()
	}
}

// handleTask writes a non-null frame (after checking geometry agreement),
// or skips a null frame, then advances current_index and releases the
// task's memory slot.
func (w *Writer) handleTask(t Task) error {
	if t.Frame != nil {
		g := geomOf(t.Frame)
		w.geomMu.Lock()
		if !w.haveGeom {
			w.haveGeom = true
			w.firstGeom = g
		} else if g != w.firstGeom {
			w.geomMu.Unlock()
			return fmt.Errorf("%w: frame %d geometry disagrees with the sequence", joberr.ErrIncompatible, t.Index)
		}
		w.geomMu.Unlock()
		if err := w.out.WriteFrame(t.Index, t.Frame); err != nil {
			return fmt.Errorf("%w: %v", joberr.ErrWriteFailed, err)
		}
	}
	w.mu.Lock()
	w.currentIndex++
	w.mu.Unlock()
	w.releaser.Release(t.Index)
	return nil
}

// abortAndDrain flags the writer aborted and releases slots held by every
// task still sitting in the queue or holding map, so callers blocked on
// WaitForSlot are not left waiting forever, per spec.md §4.3's "queued
// tasks are drained and released".
func (w *Writer) abortAndDrain() {
	w.mu.Lock()
	w.aborted = true
	drained := append([]Task(nil), w.queue...)
	w.queue = nil
	for _, t := range w.holding {
		drained = append(drained, t)
	}
	w.holding = make(map[int]Task)
	w.cond.Broadcast()
	w.mu.Unlock()
	for _, t := range drained {
		w.releaser.Release(t.Index)
	}
}

func (w *Writer) setErr(err error) {
	w.errMu.Lock()
	if w.firstErr == nil {
		w.firstErr = err
	}
	w.errMu.Unlock()
}

func (w *Writer) getErr() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.firstErr
}

// Stop requests the writer to finish. aborting=false lets the consumer
// drain remaining queued/held work normally; aborting=true stops
// immediately and drains outstanding slots. Stop always waits for the
// consumer to exit and returns the first error observed, if any.
func (w *Writer) Stop(aborting bool) error {
	if aborting {
		w.abortAndDrain()
	} else {
		w.mu.Lock()
		w.aborted = true
		w.cond.Broadcast()
		w.mu.Unlock()
	}
	<-w.consumerDone
	if err := w.out.Close(); err != nil {
		w.setErr(fmt.Errorf("%w: %v", joberr.ErrWriteFailed, err))
	}
	return w.getErr()
}
