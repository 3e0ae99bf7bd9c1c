// Package joberr defines the job-level and per-frame error kinds shared by
// the engine, writer and stacker, per spec.md §7. Callers compare against
// these with errors.Is; the core never panics on a recoverable condition.
package joberr

import "errors"

var (
	// ErrPreparationFailed means a job's Prepare hook refused to start;
	// the job aborts before any frame work begins.
	ErrPreparationFailed = errors.New("preparation failed")

	// ErrFrameReadFailed means a single frame was unreadable. Per-frame:
	// recovered locally unless the job runs with StopOnError.
	ErrFrameReadFailed = errors.New("frame read failed")

	// ErrFrameProcessingFailed means a hook returned a non-nil error for
	// one frame. Per-frame, same recovery policy as ErrFrameReadFailed.
	ErrFrameProcessingFailed = errors.New("frame processing failed")

	// ErrWriteFailed means the sequence writer or a per-file save failed.
	// Job-level fatal.
	ErrWriteFailed = errors.New("write failed")

	// ErrIncompatible means a frame's geometry or bit depth disagreed
	// with the job or writer. Job-level fatal.
	ErrIncompatible = errors.New("incompatible frame")

	// ErrOutOfSpace means disk space was insufficient for the job's
	// computed or estimated output size. Job-level fatal.
	ErrOutOfSpace = errors.New("out of space")

	// ErrOutOfMemory means the memory budget could not accommodate even
	// a single worker thread. Job-level fatal.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrCancelled means the caller requested cancellation. Terminal,
	// not logged as a failure.
	ErrCancelled = errors.New("cancelled")

	// ErrInternal means an invariant was violated (e.g. the block planner
	// produced too few blocks). Always fatal.
	ErrInternal = errors.New("internal error")
)
