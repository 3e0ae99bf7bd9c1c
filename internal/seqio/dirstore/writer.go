package dirstore

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/five82/seqstack/internal/seqio"
)

// CreateWriter returns a Writer for the given container kind. path is
// treated as an output-file prefix for ContainerFITSPerFile (one file per
// index) or as a single output file path for ContainerSER (frames appended
// sequentially behind one fixed header, mirroring the "fixed header
// followed by fixed-size frames" shape of a real SER container).
func (s *Store) CreateWriter(kind seqio.ContainerKind, path string, expectedFrameCount int) (seqio.Writer, error) {
	switch kind {
	case seqio.ContainerSER:
		return newSERWriter(path, s.geometry, expectedFrameCount)
	default:
		return newPerFileWriter(path), nil
	}
}

// perFileWriter writes one "<prefix>%05d.frame" file per output index.
type perFileWriter struct {
	prefix string
}

func newPerFileWriter(prefix string) *perFileWriter {
	return &perFileWriter{prefix: prefix}
}

func (w *perFileWriter) WriteFrame(index int, frame *seqio.Frame) error {
	path := fmt.Sprintf("%s%05d.frame", w.prefix, index)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("dirstore: creating output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dirstore: creating %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	geom := seqio.Geometry{
		Width: frame.Width, Height: frame.Height, Channels: frame.Channels,
		Storage: frame.Storage, BitDepth: frame.BitDepth,
	}
	if err := writeHeader(f, geom); err != nil {
		return fmt.Errorf("dirstore: writing header for %s: %w", path, err)
	}
	if err := writePayload(f, frame); err != nil {
		return fmt.Errorf("dirstore: writing payload for %s: %w", path, err)
	}
	return nil
}

func (w *perFileWriter) Close() error { return nil }

// serWriter appends frames sequentially behind a single fixed header,
// verifying that every frame shares the first frame's geometry and bit
// depth (spec.md 4.3 point 3: a geometry/bitpix disagreement fails the
// writer).
type serWriter struct {
	f        *os.File
	geometry *seqio.Geometry
	written  int
}

func newSERWriter(path string, declared seqio.Geometry, expectedFrameCount int) (*serWriter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("dirstore: creating output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("dirstore: creating %s: %w", path, err)
	}
	w := &serWriter{f: f}
	if declared.Width > 0 {
		g := declared
		w.geometry = &g
		if err := writeHeader(f, declared); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("dirstore: writing SER header: %w", err)
		}
	}
	_ = expectedFrameCount // informational only; SER containers don't need it up front
	return w, nil
}

func (w *serWriter) WriteFrame(index int, frame *seqio.Frame) error {
	geom := seqio.Geometry{
		Width: frame.Width, Height: frame.Height, Channels: frame.Channels,
		Storage: frame.Storage, BitDepth: frame.BitDepth,
	}
	if w.geometry == nil {
		g := geom
		w.geometry = &g
		if err := writeHeader(w.f, geom); err != nil {
			return fmt.Errorf("dirstore: writing SER header: %w", err)
		}
	} else if *w.geometry != geom {
		return fmt.Errorf("dirstore: frame %d geometry/storage disagrees with sequence header", index)
	}
	if err := writePayload(w.f, frame); err != nil {
		return fmt.Errorf("dirstore: writing frame %d: %w", index, err)
	}
	w.written++
	return nil
}

func (w *serWriter) Close() error {
	return w.f.Close()
}

func writePayload(f *os.File, frame *seqio.Frame) error {
	n := frame.Width * frame.Height * frame.Channels
	switch frame.Storage {
	case seqio.StorageU16:
		buf := make([]byte, n*2)
		for i, v := range frame.Pixels {
			binary.LittleEndian.PutUint16(buf[i*2:], v)
		}
		_, err := f.Write(buf)
		return err
	case seqio.StorageF32:
		buf := make([]byte, n*4)
		for i, v := range frame.PixelsF32 {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
		}
		_, err := f.Write(buf)
		return err
	default:
		return fmt.Errorf("dirstore: unknown storage kind %d", frame.Storage)
	}
}
