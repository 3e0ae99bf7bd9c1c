package seqio

import "context"

// Rect is a rectangular region of a single channel plane, top-down
// (row 0 is the top row regardless of the container's on-disk orientation).
type Rect struct {
	X, Y, W, H int
}

// FrameStore is the external contract the engine, writer and stacker
// depend on. A concrete store (per-file FITS, FITS cube, SER, movie) is
// an external collaborator; the core never reaches past this interface.
type FrameStore interface {
	// FrameCount returns the number of frames in the sequence.
	FrameCount() int

	// Geometry returns the sequence-wide shape and storage kind.
	Geometry() Geometry

	// ReadFrame returns frame index fully materialized. wantFloat requests
	// conversion from 16-bit storage to float32 on read. threadID
	// identifies the calling worker, for stores that keep per-thread
	// decode state.
	ReadFrame(ctx context.Context, index int, wantFloat bool, threadID int) (*Frame, error)

	// ReadPartial reads a rectangular region of one channel of frame index
	// into dst, which must have length >= rect.W*rect.H. The returned data
	// is oriented top-down regardless of the container's native order.
	ReadPartial(ctx context.Context, index, channel int, rect Rect, threadID int, dst []float64) error

	// Registration returns the frame's shift, or the zero shift if absent.
	Registration(channel, index int) Shift

	// CreateWriter returns a Writer that serializes frame-index order into
	// a container of the given kind at path. expectedFrameCount may be
	// negative when the final count is not known ahead of time.
	CreateWriter(kind ContainerKind, path string, expectedFrameCount int) (Writer, error)

	// IsReentrantReader reports whether multiple goroutines may call
	// ReadFrame/ReadPartial concurrently on this store. The engine falls
	// back to a single in-flight reader when this is false.
	IsReentrantReader() bool
}

// Writer is the per-output-index sink a FrameStore hands back from
// CreateWriter. The Sequence Writer (internal/writer) always presents
// frames in ascending index order.
type Writer interface {
	// WriteFrame appends frame at the given output index. The Sequence
	// Writer calls it with strictly increasing indices; indices of failed
	// frames are skipped, so the indices can have gaps.
	WriteFrame(index int, frame *Frame) error

	// Close finalizes the container (e.g. writes a trailer, renames a
	// temp file into place) and releases any held resources.
	Close() error
}
