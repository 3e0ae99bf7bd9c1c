package engine

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/five82/seqstack/internal/joberr"
	"github.com/five82/seqstack/internal/jobguard"
	"github.com/five82/seqstack/internal/selection"
	"github.com/five82/seqstack/internal/seqio"
	"github.com/five82/seqstack/internal/util"
	"github.com/five82/seqstack/internal/writer"
)

// State is one point in the SE state machine of spec.md §4.2:
// Idle -> Preparing -> Running -> (Cancelling | Finalizing) -> Done.
type State int

const (
	StateIdle State = iota
	StatePreparing
	StateRunning
	StateCancelling
	StateFinalizing
	StateDone
)

// DiskSpaceCheck, when non-nil, is consulted before a has-output job with
// a known size starts; it should return the free byte count at the job's
// output destination (callers typically wire this to
// internal/util.GetAvailableSpace). A nil check skips the precheck.
type DiskSpaceCheck func() uint64

// bytesPerSample returns the on-disk element size the default output-size
// estimate assumes for a storage kind.
func bytesPerSample(s seqio.StorageKind) int64 {
	if s == seqio.StorageF32 {
		return 4
	}
	return 2
}

// Run executes job to completion, failure, or cancellation, per spec.md
// §4.2. Only one SE/ST job may run at a time in the process; Run returns
// jobguard.ErrBusy immediately if another job holds the guard.
func Run(ctx context.Context, job *Job, diskSpace DiskSpaceCheck) (*Result, error) {
	guard := jobguard.Default()
	if !guard.TryAcquire() {
		return nil, jobguard.ErrBusy
	}
	defer guard.Release()

	geom := job.Store.Geometry()

	sel, err := selection.Build(job.Store.FrameCount(), job.Include)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", joberr.ErrPreparationFailed, err)
	}

	if job.Flags.HasOutput && !job.Flags.PartialImage && diskSpace != nil {
		var size int64
		if job.Hooks.ComputeOutputSize != nil {
			size = job.Hooks.ComputeOutputSize(geom, sel.Len())
		} else {
			size = int64(geom.Width) * int64(geom.Height) * int64(geom.Channels) * bytesPerSample(geom.Storage) * int64(sel.Len())
		}
		if avail := diskSpace(); avail > 0 && int64(avail) < size {
			return nil, fmt.Errorf("%w: need %d bytes, have %d", joberr.ErrOutOfSpace, size, avail)
		}
	}

	nbThreads := decideThreads(job, geom)
	if nbThreads < 1 {
		return nil, fmt.Errorf("%w: no worker threads available under the memory budget", joberr.ErrOutOfMemory)
	}

	if job.Hooks.Prepare != nil {
		if err := job.Hooks.Prepare(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", joberr.ErrPreparationFailed, err)
		}
	}

	result := &Result{Selected: sel.Len(), State: StateRunning}
	var excluded int64
	var firstErr atomic.Pointer[error]
	setErr := func(e error) {
		firstErr.CompareAndSwap(nil, &e)
	}

	sem := semaphore.NewWeighted(int64(nbThreads))
	g, gctx := errgroup.WithContext(ctx)

	for o := 0; o < sel.Len(); o++ {
		o := o
		if gctx.Err() != nil {
			break
		}
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			processOne(gctx, job, sel, o, &excluded, setErr)
			if p := firstErr.Load(); p != nil {
				return *p // a recorded error is fatal: cancel gctx so no new frames start
			}
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		result.State = StateCancelling
		result.Cancelled = true
	}

	result.Excluded = int(atomic.LoadInt64(&excluded))
	if p := firstErr.Load(); p != nil {
		result.FirstError = *p
	}

	result.State = StateFinalizing
	var finalizeErr error
	if job.Hooks.Finalize != nil {
		finalizeErr = job.Hooks.Finalize(ctx, result)
	}

	result.State = StateDone
	if job.Hooks.Idle != nil {
		job.Hooks.Idle(result)
	}

	if finalizeErr != nil {
		return result, finalizeErr
	}
	if result.FirstError != nil {
		return result, result.FirstError
	}
	if result.Cancelled {
		return result, joberr.ErrCancelled
	}
	return result, nil
}

// processOne drives one frame through read -> image -> save, applying the
// stop-on-error vs exclude-and-continue policy of spec.md §4.2.
func processOne(ctx context.Context, job *Job, sel selection.Map, o int, excluded *int64, setErr func(error)) {
	if ctx.Err() != nil {
		return
	}
	i := sel.Source(o)

	usesWriter := job.Flags.OutputKind == OutputSequence && job.Writer != nil
	if usesWriter {
		if err := job.Writer.WaitForSlot(ctx); err != nil {
			return // cancelled while waiting; the outer loop will observe ctx.Err()
		}
	}

	fail := func(err error) {
		atomic.AddInt64(excluded, 1)
		if job.Flags.StopOnError {
			setErr(err)
		}
		if usesWriter {
			job.Writer.Append(writer.Task{Index: o, Frame: nil})
		}
	}

	frame, area, err := readFrame(ctx, job, i)
	if err != nil {
		fail(fmt.Errorf("%w: frame %d: %v", joberr.ErrFrameReadFailed, i, err))
		return
	}

	if job.Hooks.Image != nil {
		if err := job.Hooks.Image(ctx, o, i, frame, area); err != nil {
			fail(fmt.Errorf("%w: frame %d: %v", joberr.ErrFrameProcessingFailed, i, err))
			return
		}
	}

	if job.Flags.HasOutput && job.Hooks.Save != nil {
		if err := job.Hooks.Save(ctx, o, i, frame); err != nil {
			setErr(fmt.Errorf("%w: frame %d: %v", joberr.ErrWriteFailed, i, err))
			if usesWriter {
				job.Writer.Append(writer.Task{Index: o, Frame: nil})
			}
		}
	}
}

// readFrame reads frame i fully, or a registration-adjusted area when
// Flags.PartialImage is set.
func readFrame(ctx context.Context, job *Job, i int) (*seqio.Frame, *seqio.Rect, error) {
	threadID := 0
	if !job.Flags.PartialImage {
		frame, err := job.Store.ReadFrame(ctx, i, job.Flags.ForceFloat, threadID)
		return frame, nil, err
	}

	geom := job.Store.Geometry()
	area := seqio.Rect{X: 0, Y: 0, W: geom.Width, H: geom.Height}
	if job.Area != nil {
		area = *job.Area
	}
	shift := job.Store.Registration(0, i)
	adjusted := clipArea(area, geom, shift)

	frame := &seqio.Frame{Width: adjusted.W, Height: adjusted.H, Channels: geom.Channels, Storage: seqio.StorageF32}
	frame.PixelsF32 = make([]float32, adjusted.W*adjusted.H*geom.Channels)
	for ch := 0; ch < geom.Channels; ch++ {
		dst := make([]float64, adjusted.W*adjusted.H)
		if err := job.Store.ReadPartial(ctx, i, ch, adjusted, threadID, dst); err != nil {
			return nil, nil, err
		}
		base := ch * adjusted.W * adjusted.H
		for idx, v := range dst {
			frame.PixelsF32[base+idx] = float32(v)
		}
	}
	return frame, &adjusted, nil
}

// clipArea shifts area by the registration offset (-shiftx, +shifty) per
// spec.md §4.2 and clips the result to the image extent.
func clipArea(area seqio.Rect, geom seqio.Geometry, shift seqio.Shift) seqio.Rect {
	x := area.X - shift.IntX
	y := area.Y + shift.IntY
	w, h := area.W, area.H
	if x < 0 {
		w += x
		x = 0
	}
	if y < 0 {
		h += y
		y = 0
	}
	if x+w > geom.Width {
		w = geom.Width - x
	}
	if y+h > geom.Height {
		h = geom.Height - y
	}
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return seqio.Rect{X: x, Y: y, W: w, H: h}
}

// decideThreads picks the worker count per spec.md §5: the minimum of
// available CPUs, the job's memory budget, the user cap, and reader
// reentrancy.
func decideThreads(job *Job, geom seqio.Geometry) int {
	if !job.Store.IsReentrantReader() || !job.Flags.Parallel {
		return 1
	}
	n := util.LogicalCores()
	if job.Workers > 0 && job.Workers < n {
		n = job.Workers
	}
	if job.Hooks.ComputeMemoryBudget != nil {
		if budget := job.Hooks.ComputeMemoryBudget(); budget > 0 && budget < n {
			n = budget
		}
	}
	if n < 1 {
		n = 1
	}
	return n
}
