package writer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/five82/seqstack/internal/seqio"
	"github.com/five82/seqstack/internal/writer"
)

// recordingWriter captures WriteFrame calls in the order the writer makes
// them, so tests can assert on strict index ordering.
type recordingWriter struct {
	mu     sync.Mutex
	indexes []int
	closed bool
	failOn int // WriteFrame fails when index == failOn; -1 disables
}

func newRecordingWriter() *recordingWriter { return &recordingWriter{failOn: -1} }

func (w *recordingWriter) WriteFrame(index int, _ *seqio.Frame) error {
	if index == w.failOn {
		return errors.New("simulated write failure")
	}
	w.mu.Lock()
	w.indexes = append(w.indexes, index)
	w.mu.Unlock()
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func (w *recordingWriter) snapshot() []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]int(nil), w.indexes...)
}

func mkFrame() *seqio.Frame {
	return &seqio.Frame{Width: 1, Height: 1, Channels: 1, Storage: seqio.StorageF32, PixelsF32: []float32{1}}
}

func TestWriterReordersOutOfOrderAppends(t *testing.T) {
	out := newRecordingWriter()
	w := writer.New(out, 0, nil)
	w.Start(3)

	w.Append(writer.Task{Index: 2, Frame: mkFrame()})
	w.Append(writer.Task{Index: 0, Frame: mkFrame()})
	w.Append(writer.Task{Index: 1, Frame: mkFrame()})

	if err := w.Stop(false); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	got := out.snapshot()
	want := []int{0, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestWriterSkipsNilFrameButAdvancesIndex(t *testing.T) {
	out := newRecordingWriter()
	w := writer.New(out, 0, nil)
	w.Start(3)

	w.Append(writer.Task{Index: 0, Frame: mkFrame()})
	w.Append(writer.Task{Index: 1, Frame: nil})
	w.Append(writer.Task{Index: 2, Frame: mkFrame()})

	if err := w.Stop(false); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	got := out.snapshot()
	want := []int{0, 2}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v (index 1 should have been skipped)", got, want)
	}
}

func TestWriterPropagatesWriteFailure(t *testing.T) {
	out := newRecordingWriter()
	out.failOn = 1
	w := writer.New(out, 0, nil)
	w.Start(3)

	w.Append(writer.Task{Index: 0, Frame: mkFrame()})
	w.Append(writer.Task{Index: 1, Frame: mkFrame()})
	w.Append(writer.Task{Index: 2, Frame: mkFrame()})

	if err := w.Stop(false); err == nil {
		t.Fatal("expected Stop to report the write failure")
	}
}

func TestWaitForSlotBlocksAtBoundAndAbortReleases(t *testing.T) {
	out := newRecordingWriter()
	w := writer.New(out, 1, nil)
	w.Start(-1)

	ctx := context.Background()
	if err := w.WaitForSlot(ctx); err != nil {
		t.Fatalf("first WaitForSlot: %v", err)
	}

	blocked := make(chan error, 1)
	go func() {
		blocked <- w.WaitForSlot(ctx)
	}()

	select {
	case <-blocked:
		t.Fatal("second WaitForSlot should have blocked at the bound of 1")
	case <-time.After(50 * time.Millisecond):
	}

	// Appending the task for index 0 frees the held slot, either when the
	// consumer writes it or when Stop(true) drains it first.
	w.Append(writer.Task{Index: 0, Frame: mkFrame()})
	if err := w.Stop(true); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	select {
	case err := <-blocked:
		if err != nil {
			t.Fatalf("blocked WaitForSlot returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked WaitForSlot was never released after Stop(true)")
	}
}

func TestWaitForSlotUnboundedNeverBlocks(t *testing.T) {
	out := newRecordingWriter()
	w := writer.New(out, 0, nil)
	w.Start(-1)
	for i := 0; i < 100; i++ {
		if err := w.WaitForSlot(context.Background()); err != nil {
			t.Fatalf("WaitForSlot: %v", err)
		}
	}
	_ = w.Stop(true)
}
