package stack_test

import (
	"context"
	"testing"

	"github.com/five82/seqstack/internal/config"
	"github.com/five82/seqstack/internal/selection"
	"github.com/five82/seqstack/internal/seqio"
	"github.com/five82/seqstack/internal/stack"
)

// memStore is a minimal in-memory seqio.FrameStore backing a handful of
// flat-valued mono frames, for exercising stack.Run end to end.
type memStore struct {
	geom   seqio.Geometry
	frames [][]float64 // frames[i] is a width*height mono plane
}

func (m *memStore) FrameCount() int            { return len(m.frames) }
func (m *memStore) Geometry() seqio.Geometry   { return m.geom }
func (m *memStore) IsReentrantReader() bool    { return true }
func (m *memStore) Registration(int, int) seqio.Shift {
	return seqio.Shift{}
}

func (m *memStore) ReadFrame(_ context.Context, index int, wantFloat bool, _ int) (*seqio.Frame, error) {
	plane := m.frames[index]
	f := &seqio.Frame{Width: m.geom.Width, Height: m.geom.Height, Channels: 1, Storage: seqio.StorageF32}
	f.PixelsF32 = make([]float32, len(plane))
	for i, v := range plane {
		f.PixelsF32[i] = float32(v)
	}
	return f, nil
}

func (m *memStore) ReadPartial(_ context.Context, index, channel int, rect seqio.Rect, _ int, dst []float64) error {
	plane := m.frames[index]
	w := m.geom.Width
	for row := 0; row < rect.H; row++ {
		srcRow := (rect.Y + row) * w
		copy(dst[row*rect.W:(row+1)*rect.W], plane[srcRow+rect.X:srcRow+rect.X+rect.W])
	}
	return nil
}

func (m *memStore) CreateWriter(seqio.ContainerKind, string, int) (seqio.Writer, error) {
	panic("not used by stack.Run")
}

func newFlatStore(width, height int, values ...float64) *memStore {
	s := &memStore{geom: seqio.Geometry{Width: width, Height: height, Channels: 1, Storage: seqio.StorageF32}}
	for _, v := range values {
		plane := make([]float64, width*height)
		for i := range plane {
			plane[i] = v
		}
		s.frames = append(s.frames, plane)
	}
	return s
}

func TestRunStacksFlatFramesToMedian(t *testing.T) {
	store := newFlatStore(4, 4, 10, 20, 30)
	sel, err := selection.Build(store.FrameCount(), nil)
	if err != nil {
		t.Fatalf("selection.Build: %v", err)
	}

	job := &stack.Job{
		Store:       store,
		Selection:   sel,
		Config:      config.NewConfig(),
		StackConfig: &config.StackConfig{Rejection: config.RejectNone, Normalization: config.NormNone, SigmaLow: 3, SigmaHigh: 3},
	}

	res, err := stack.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, v := range res.Frame.PixelsF32 {
		if v != 20 {
			t.Fatalf("pixel %d = %v, want 20 (median of 10,20,30)", i, v)
		}
	}
}

func TestRunRejectsOutlierFrame(t *testing.T) {
	store := newFlatStore(4, 4, 100, 101, 99, 100, 102, 5000)
	sel, err := selection.Build(store.FrameCount(), nil)
	if err != nil {
		t.Fatalf("selection.Build: %v", err)
	}

	job := &stack.Job{
		Store:       store,
		Selection:   sel,
		Config:      config.NewConfig(),
		StackConfig: &config.StackConfig{Rejection: config.RejectSigma, Normalization: config.NormNone, SigmaLow: 3, SigmaHigh: 3},
	}

	res, err := stack.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, v := range res.Frame.PixelsF32 {
		if v > 200 {
			t.Fatalf("pixel %d = %v, outlier frame (5000) should have been rejected", i, v)
		}
	}
	if res.Counts.High[0] == 0 {
		t.Fatal("expected a recorded high rejection")
	}
}

// regStore is memStore plus a configurable per-frame y-shift, for
// exercising the registration-aware block clipping of spec.md §4.4.2.
type regStore struct {
	memStore
	shiftY map[int]int // frame index -> IntY
}

func (m *regStore) Registration(_ int, index int) seqio.Shift {
	return seqio.Shift{IntY: m.shiftY[index]}
}

func TestRunShiftedFrameOffImageRowZeroFills(t *testing.T) {
	// spec.md §8 scenario 6: two single-row frames; frame 1 is registered
	// with shifty=+1, which (for a 1-row image) pushes the only row it
	// could read entirely off-image, so frame 1 contributes zero at (x,0)
	// instead of its own pixel value.
	store := &regStore{
		memStore: memStore{
			geom:   seqio.Geometry{Width: 2, Height: 1, Channels: 1, Storage: seqio.StorageF32},
			frames: [][]float64{{10, 10}, {20, 20}},
		},
		shiftY: map[int]int{1: 1},
	}
	sel, err := selection.Build(store.FrameCount(), nil)
	if err != nil {
		t.Fatalf("selection.Build: %v", err)
	}

	cfg := config.NewConfig()
	cfg.Workers = 1 // a 1-row image has nothing to gain from parallel blocks
	job := &stack.Job{
		Store:       store,
		Selection:   sel,
		Config:      cfg,
		StackConfig: &config.StackConfig{Rejection: config.RejectNone, Normalization: config.NormNone, SigmaLow: 3, SigmaHigh: 3},
	}

	res, err := stack.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, v := range res.Frame.PixelsF32 {
		if v != 5 {
			t.Fatalf("pixel %d = %v, want 5 (mean of frame0's 10 and frame1's zero-filled contribution)", i, v)
		}
	}
}

func TestRunEmptySelectionFails(t *testing.T) {
	store := newFlatStore(4, 4, 10)
	var sel selection.Map
	job := &stack.Job{
		Store:       store,
		Selection:   sel,
		Config:      config.NewConfig(),
		StackConfig: config.NewStackConfig(),
	}
	if _, err := stack.Run(context.Background(), job); err == nil {
		t.Fatal("expected error for empty selection")
	}
}
