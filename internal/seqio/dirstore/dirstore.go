// Package dirstore is a reference seqio.FrameStore backed by a plain
// directory of flat binary frame files. It stands in for the FITS/SER
// codecs the core treats as external collaborators, so the engine, writer
// and stacker can be exercised end to end without a real astronomy format.
package dirstore

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/five82/seqstack/internal/seqio"
)

const magic = "SQST"

// frameFileName returns the on-disk name for frame index under dir.
func frameFileName(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("%05d.frame", index))
}

// Store reads a directory of `NNNNN.frame` files sharing one geometry.
// Reads are plain os.ReadFile calls with no shared handle, so Store is
// reentrant.
type Store struct {
	dir      string
	geometry seqio.Geometry
	count    int
	reg      map[int]seqio.Shift
}

// Open scans dir for frame files, reads the first frame's header to
// establish geometry, and loads an optional "registration.txt" sidecar
// (one line per frame: "index shiftx shifty").
func Open(dir string) (*Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("dirstore: cannot read %s: %w", dir, err)
	}

	var indices []int
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".frame") {
			continue
		}
		idxStr := strings.TrimSuffix(e.Name(), ".frame")
		idx, err := strconv.Atoi(idxStr)
		if err != nil {
			continue
		}
		indices = append(indices, idx)
	}
	if len(indices) == 0 {
		return nil, fmt.Errorf("dirstore: no frame files found in %s", dir)
	}
	sort.Ints(indices)

	geom, err := readHeader(frameFileName(dir, indices[0]))
	if err != nil {
		return nil, fmt.Errorf("dirstore: reading header of frame 0: %w", err)
	}

	reg, err := loadRegistration(filepath.Join(dir, "registration.txt"))
	if err != nil {
		return nil, err
	}

	return &Store{dir: dir, geometry: geom, count: len(indices), reg: reg}, nil
}

func loadRegistration(path string) (map[int]seqio.Shift, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dirstore: opening registration file: %w", err)
	}
	defer func() { _ = f.Close() }()

	reg := make(map[int]seqio.Shift)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) != 3 {
			return nil, fmt.Errorf("dirstore: malformed registration line %q", line)
		}
		idx, err1 := strconv.Atoi(parts[0])
		sx, err2 := strconv.Atoi(parts[1])
		sy, err3 := strconv.Atoi(parts[2])
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, fmt.Errorf("dirstore: malformed registration line %q", line)
		}
		reg[idx] = seqio.Shift{IntX: sx, IntY: sy}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("dirstore: reading registration file: %w", err)
	}
	return reg, nil
}

func (s *Store) FrameCount() int           { return s.count }
func (s *Store) Geometry() seqio.Geometry  { return s.geometry }
func (s *Store) IsReentrantReader() bool   { return true }

func (s *Store) Registration(_, index int) seqio.Shift {
	if s.reg == nil {
		return seqio.Shift{}
	}
	return s.reg[index]
}

// header is the fixed-size record prefixed to every frame file.
type header struct {
	Width, Height, Channels int32
	Storage, BitDepth       uint8
}

const headerSize = 4 + 4*3 + 1 + 1 // magic + 3 int32 + 2 uint8

func readHeader(path string) (seqio.Geometry, error) {
	f, err := os.Open(path)
	if err != nil {
		return seqio.Geometry{}, err
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, headerSize)
	if _, err := f.Read(buf); err != nil {
		return seqio.Geometry{}, fmt.Errorf("dirstore: short header in %s: %w", path, err)
	}
	if string(buf[:4]) != magic {
		return seqio.Geometry{}, fmt.Errorf("dirstore: bad magic in %s", path)
	}
	w := int32(binary.LittleEndian.Uint32(buf[4:8]))
	h := int32(binary.LittleEndian.Uint32(buf[8:12]))
	c := int32(binary.LittleEndian.Uint32(buf[12:16]))
	storage := buf[16]
	bitdepth := buf[17]

	return seqio.Geometry{
		Width:    int(w),
		Height:   int(h),
		Channels: int(c),
		Storage:  seqio.StorageKind(storage),
		BitDepth: seqio.BitDepthHint(bitdepth),
	}, nil
}

func writeHeader(f *os.File, g seqio.Geometry) error {
	buf := make([]byte, headerSize)
	copy(buf[:4], magic)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(g.Width))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(g.Height))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(g.Channels))
	buf[16] = byte(g.Storage)
	buf[17] = byte(g.BitDepth)
	_, err := f.Write(buf)
	return err
}

func bytesPerSample(storage seqio.StorageKind) int {
	if storage == seqio.StorageF32 {
		return 4
	}
	return 2
}

// ReadFrame reads frame index in full. wantFloat converts uint16 storage
// to float32 after loading.
func (s *Store) ReadFrame(_ context.Context, index int, wantFloat bool, _ int) (*seqio.Frame, error) {
	if index < 0 || index >= s.count {
		return nil, fmt.Errorf("dirstore: frame %d unreadable: index out of range", index)
	}
	path := frameFileName(s.dir, index)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dirstore: frame %d unreadable: %w", index, err)
	}
	if len(data) < headerSize {
		return nil, fmt.Errorf("dirstore: frame %d unreadable: truncated header", index)
	}
	g := s.geometry
	payload := data[headerSize:]
	n := g.Width * g.Height * g.Channels

	frame := &seqio.Frame{Width: g.Width, Height: g.Height, Channels: g.Channels, BitDepth: g.BitDepth}

	switch g.Storage {
	case seqio.StorageU16:
		if len(payload) != n*2 {
			return nil, fmt.Errorf("dirstore: frame %d unreadable: payload size mismatch", index)
		}
		u16 := make([]uint16, n)
		for i := 0; i < n; i++ {
			u16[i] = binary.LittleEndian.Uint16(payload[i*2:])
		}
		if wantFloat {
			f32 := make([]float32, n)
			for i, v := range u16 {
				f32[i] = float32(v)
			}
			frame.Storage = seqio.StorageF32
			frame.PixelsF32 = f32
		} else {
			frame.Storage = seqio.StorageU16
			frame.Pixels = u16
		}
	case seqio.StorageF32:
		if len(payload) != n*4 {
			return nil, fmt.Errorf("dirstore: frame %d unreadable: payload size mismatch", index)
		}
		f32 := make([]float32, n)
		for i := 0; i < n; i++ {
			bits := binary.LittleEndian.Uint32(payload[i*4:])
			f32[i] = math.Float32frombits(bits)
		}
		frame.Storage = seqio.StorageF32
		frame.PixelsF32 = f32
	default:
		return nil, fmt.Errorf("dirstore: frame %d unreadable: unknown storage kind", index)
	}

	if sh := s.Registration(0, index); sh != (seqio.Shift{}) {
		frame.AlignShift = &sh
	}
	return frame, nil
}

// ReadPartial reads a rectangle of one channel of frame index into dst,
// converting samples to float64 regardless of on-disk storage.
func (s *Store) ReadPartial(_ context.Context, index, channel int, rect seqio.Rect, _ int, dst []float64) error {
	if index < 0 || index >= s.count {
		return fmt.Errorf("dirstore: frame %d unreadable: index out of range", index)
	}
	if len(dst) < rect.W*rect.H {
		return fmt.Errorf("dirstore: ReadPartial destination too small: have %d, want %d", len(dst), rect.W*rect.H)
	}
	path := frameFileName(s.dir, index)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("dirstore: frame %d unreadable: %w", index, err)
	}
	g := s.geometry
	bps := bytesPerSample(g.Storage)
	planeSize := g.Width * g.Height
	planeOffset := headerSize + channel*planeSize*bps

	for row := 0; row < rect.H; row++ {
		srcY := rect.Y + row
		rowOffset := planeOffset + (srcY*g.Width+rect.X)*bps
		for col := 0; col < rect.W; col++ {
			off := rowOffset + col*bps
			if off+bps > len(data) {
				return fmt.Errorf("dirstore: frame %d unreadable: rect out of bounds", index)
			}
			var v float64
			if g.Storage == seqio.StorageF32 {
				v = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off:])))
			} else {
				v = float64(binary.LittleEndian.Uint16(data[off:]))
			}
			dst[row*rect.W+col] = v
		}
	}
	return nil
}

