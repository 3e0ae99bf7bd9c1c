// Package engine implements the Sequence Engine (SE): a parallel per-frame
// loop with memory-aware thread count, user-defined hooks, orderly writer
// interaction, and cooperative cancellation, per spec.md §4.2.
package engine

import (
	"context"

	"github.com/five82/seqstack/internal/seqio"
	"github.com/five82/seqstack/internal/writer"
)

// OutputKind distinguishes a job's write destination.
type OutputKind int

const (
	// OutputNone means the job produces no per-frame output (e.g. a
	// read-only analysis pass).
	OutputNone OutputKind = iota
	// OutputPerFile means Save writes each frame under its own derived
	// filename with no ordering requirement.
	OutputPerFile
	// OutputSequence means Save enqueues into a Sequence Writer, which
	// serializes frames back into ascending-index order.
	OutputSequence
)

// Hooks are the caller-supplied callbacks a job drives frames through.
// Any hook left nil is skipped (Prepare/Finalize/Idle) or treated as a
// no-op success (ComputeMemoryBudget/ComputeOutputSize default below).
type Hooks struct {
	// Prepare runs once before the main loop; a non-nil error aborts the
	// job with joberr.ErrPreparationFailed.
	Prepare func(ctx context.Context) error

	// Image processes one frame. o is the output index, i the resolved
	// source index, frame the materialized (or partially read) frame,
	// area the area that was read when Flags.PartialImage is set.
	Image func(ctx context.Context, o, i int, frame *seqio.Frame, area *seqio.Rect) error

	// Save persists a successfully processed frame. Jobs with
	// Flags.OutputKind == OutputSequence normally implement this by
	// enqueueing into a *writer.Writer; OutputPerFile jobs write
	// directly. Required when Flags.HasOutput is true.
	Save func(ctx context.Context, o, i int, frame *seqio.Frame) error

	// Finalize runs once after every frame has been processed (or the
	// job aborted), before Idle.
	Finalize func(ctx context.Context, result *Result) error

	// ComputeMemoryBudget returns how many concurrent worker threads the
	// job's memory budget allows. Defaults to an unbounded budget (only
	// available-CPU/reentrancy/user-cap limits apply) when nil.
	ComputeMemoryBudget func() int

	// ComputeOutputSize estimates total output bytes for the disk-space
	// precheck. Defaults to width*height*channels*bytesPerSample*N when
	// nil.
	ComputeOutputSize func(geom seqio.Geometry, nSelected int) int64

	// Idle is scheduled once the job reaches Done, on the caller's
	// chosen goroutine/thread (Run invokes it synchronously after
	// Finalize; callers wanting main-thread delivery should dispatch
	// from within Idle themselves).
	Idle func(result *Result)
}

// Flags are the per-job behavior switches of spec.md §4.2.
type Flags struct {
	HasOutput    bool
	PartialImage bool
	ForceFloat   bool
	StopOnError  bool
	Parallel     bool
	OutputKind   OutputKind
}

// Job specifies one Sequence Engine run.
type Job struct {
	Store   seqio.FrameStore
	Include func(index int) bool
	Hooks   Hooks
	Flags   Flags

	// Area is the region read for every frame when Flags.PartialImage is
	// set; nil means the full image extent.
	Area *seqio.Rect

	// Writer is the Sequence Writer frames are enqueued into when
	// Flags.OutputKind == OutputSequence. The job does not start or stop
	// it; the caller owns its lifecycle.
	Writer *writer.Writer

	// Workers caps concurrent threads (0 = no user cap); Parallel=false
	// in Flags forces single-threaded execution regardless.
	Workers int
}

// Result summarizes a completed (or aborted) run.
type Result struct {
	Selected   int
	Excluded   int
	FirstError error
	Cancelled  bool
	State      State
}
