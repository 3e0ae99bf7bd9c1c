package dirstore_test

import (
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/five82/seqstack/internal/seqio"
	"github.com/five82/seqstack/internal/seqio/dirstore"
)

// writeRawFrame writes one dirstore frame file by hand, matching the
// package's on-disk header format, so tests can seed a directory without
// depending on an already-open Store.
func writeRawFrame(t *testing.T, path string, width, height, channels int, storage seqio.StorageKind, f32 []float32) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating %s: %v", path, err)
	}
	defer f.Close()

	buf := make([]byte, 18)
	copy(buf[:4], "SQST")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(width))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(height))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(channels))
	buf[16] = byte(storage)
	buf[17] = 0
	if _, err := f.Write(buf); err != nil {
		t.Fatalf("writing header: %v", err)
	}

	payload := make([]byte, len(f32)*4)
	for i, v := range f32 {
		binary.LittleEndian.PutUint32(payload[i*4:], math.Float32bits(v))
	}
	if _, err := f.Write(payload); err != nil {
		t.Fatalf("writing payload: %v", err)
	}
}

func TestRoundTripPerFileFrames(t *testing.T) {
	dir := t.TempDir()

	// Seed frame 0 by hand so Open has something to establish geometry
	// from, then use the opened Store's own CreateWriter for the rest.
	writeRawFrame(t, filepath.Join(dir, "00000.frame"), 2, 2, 1, seqio.StorageF32, []float32{1, 2, 3, 4})

	store, err := dirstore.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	out, err := store.CreateWriter(seqio.ContainerFITSPerFile, dir+string(filepath.Separator), 3)
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}
	frames := [][]float32{{1, 2, 3, 4}, {5, 6, 7, 8}, {9, 10, 11, 12}}
	for i, vals := range frames {
		f := &seqio.Frame{Width: 2, Height: 2, Channels: 1, Storage: seqio.StorageF32, PixelsF32: vals}
		if err := out.WriteFrame(i, f); err != nil {
			t.Fatalf("WriteFrame(%d): %v", i, err)
		}
	}
	if err := out.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	store2, err := dirstore.Open(dir)
	if err != nil {
		t.Fatalf("re-Open: %v", err)
	}
	if store2.FrameCount() != 3 {
		t.Fatalf("got FrameCount=%d, want 3", store2.FrameCount())
	}
	for i, want := range frames {
		frame, err := store2.ReadFrame(context.Background(), i, false, 0)
		if err != nil {
			t.Fatalf("ReadFrame(%d): %v", i, err)
		}
		for j, v := range want {
			if frame.PixelsF32[j] != v {
				t.Fatalf("frame %d sample %d = %v, want %v", i, j, frame.PixelsF32[j], v)
			}
		}
	}
}

func TestReadPartialExtractsSubRect(t *testing.T) {
	dir := t.TempDir()
	writeRawFrame(t, filepath.Join(dir, "00000.frame"), 3, 3, 1, seqio.StorageF32,
		[]float32{1, 2, 3, 4, 5, 6, 7, 8, 9})

	store, err := dirstore.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	dst := make([]float64, 4)
	if err := store.ReadPartial(context.Background(), 0, 0, seqio.Rect{X: 1, Y: 1, W: 2, H: 2}, 0, dst); err != nil {
		t.Fatalf("ReadPartial: %v", err)
	}
	want := []float64{5, 6, 8, 9}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("got %v, want %v", dst, want)
		}
	}
}

func TestRegistrationSidecarIsLoaded(t *testing.T) {
	dir := t.TempDir()
	writeRawFrame(t, filepath.Join(dir, "00000.frame"), 2, 2, 1, seqio.StorageF32, []float32{0, 0, 0, 0})
	writeRawFrame(t, filepath.Join(dir, "00001.frame"), 2, 2, 1, seqio.StorageF32, []float32{0, 0, 0, 0})
	if err := os.WriteFile(filepath.Join(dir, "registration.txt"), []byte("1 3 -2\n"), 0644); err != nil {
		t.Fatalf("writing sidecar: %v", err)
	}

	store, err := dirstore.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := store.Registration(0, 1); got.IntX != 3 || got.IntY != -2 {
		t.Fatalf("got %+v, want IntX=3 IntY=-2", got)
	}
	if got := store.Registration(0, 0); got.IntX != 0 || got.IntY != 0 {
		t.Fatalf("got %+v, want zero shift for frame with no sidecar entry", got)
	}
}

func TestOpenMissingDirFails(t *testing.T) {
	if _, err := dirstore.Open(filepath.Join(t.TempDir(), "does-not-exist")); err == nil {
		t.Fatal("expected error opening a nonexistent directory")
	}
}

func TestOpenEmptyDirFails(t *testing.T) {
	if _, err := dirstore.Open(t.TempDir()); err == nil {
		t.Fatal("expected error opening a directory with no frame files")
	}
}
