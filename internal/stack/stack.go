// Package stack implements the Block-Parallel Stacker (ST): it merges an
// entire sequence into a single output image by per-pixel reduction,
// reading memory-budgeted horizontal strips in parallel, per spec.md §4.4.
package stack

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/five82/seqstack/internal/block"
	"github.com/five82/seqstack/internal/config"
	"github.com/five82/seqstack/internal/joberr"
	"github.com/five82/seqstack/internal/jobguard"
	"github.com/five82/seqstack/internal/selection"
	"github.com/five82/seqstack/internal/seqio"
	"github.com/five82/seqstack/internal/util"
)

// Job describes one stack run: a frame store, a dense selection of input
// frames, and the stacking configuration.
type Job struct {
	Store       seqio.FrameStore
	Selection   selection.Map
	Config      *config.Config
	StackConfig *config.StackConfig

	// Progress, if non-nil, is called with a fraction in [0, 1] as blocks
	// complete, per spec.md §6's progress model.
	Progress func(fraction float64)
}

// Result is the stacked image plus the rejection tallies accumulated
// during reduction.
type Result struct {
	Frame  *seqio.Frame
	Counts *RejectionCounts
}

// Run executes a stack job to completion or failure. Cancellation via ctx
// is observed between blocks; on cancellation the partial output is
// discarded and joberr.ErrCancelled is returned, per spec.md §4.4.6. Only
// one SE/ST job may run at a time in the process; Run returns
// jobguard.ErrBusy immediately if another job holds the guard.
func Run(ctx context.Context, job *Job) (*Result, error) {
	guard := jobguard.Default()
	if !guard.TryAcquire() {
		return nil, jobguard.ErrBusy
	}
	defer guard.Release()

	if job.Selection.Len() == 0 {
		return nil, fmt.Errorf("%w: empty selection", joberr.ErrPreparationFailed)
	}
	geom := job.Store.Geometry()
	width, height, channels := geom.Width, geom.Height, geom.Channels
	n := job.Selection.Len()

	nbThreads := decideThreads(job.Config, job.Store.IsReentrantReader())

	rowBudget := job.StackConfig.MemoryBudgetRow
	if rowBudget <= 0 {
		rowBudget = config.MemoryBudgetRowsForMegapixels(width, height)
	}

	plan, err := block.Build(width, height, channels, nbThreads, rowBudget)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", joberr.ErrInternal, err)
	}

	var coeffs [][]NormCoeff
	if job.StackConfig.Normalization != config.NormNone {
		coeffs, err = computeNormCoefficients(ctx, job, geom)
		if err != nil {
			return nil, err
		}
	}

	output := make([]float64, width*height*channels)
	counts := NewRejectionCounts(channels)

	useMedian := job.StackConfig.Rejection == config.RejectNone

	sem := semaphore.NewWeighted(int64(nbThreads))
	g, gctx := errgroup.WithContext(ctx)

	var blocksDone int64
	totalBlocks := int64(len(plan.Blocks))

	for threadID, blk := range plan.Blocks {
		blk := blk
		threadIDCopy := threadID % nbThreads
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			if gctx.Err() != nil {
				return fmt.Errorf("%w", joberr.ErrCancelled)
			}
			if err := processBlock(gctx, job, geom, blk, n, coeffs, useMedian, counts, threadIDCopy, output); err != nil {
				return err
			}
			done := atomic.AddInt64(&blocksDone, 1)
			if job.Progress != nil {
				job.Progress(float64(done) / float64(totalBlocks))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w", joberr.ErrCancelled)
	}

	frame := assembleFrame(output, geom, job.Config.ForceFloat)
	return &Result{Frame: frame, Counts: counts}, nil
}

// processBlock reads one block from every selected frame and reduces it
// into the shared output buffer. Blocks never overlap, so writes into
// output require no synchronization (spec.md §5's "per-pixel writes are
// naturally exclusive").
func processBlock(ctx context.Context, job *Job, geom seqio.Geometry, blk block.Block, n int, coeffs [][]NormCoeff, useMedian bool, counts *RejectionCounts, threadID int, output []float64) error {
	width, height := geom.Width, geom.Height
	blockHeight := blk.Height()

	frameRows := make([][]float64, n)
	for f := 0; f < n; f++ {
		srcIdx := job.Selection.Source(f)
		shift := job.Store.Registration(blk.Channel, srcIdx)
		rows := make([]float64, width*blockHeight)
		if err := readBlockRows(ctx, job.Store, srcIdx, blk.Channel, width, height, blk.RowStart, blk.RowEnd, shift.IntY, threadID, rows); err != nil {
			return fmt.Errorf("%w: %v", joberr.ErrFrameReadFailed, err)
		}
		frameRows[f] = rows
	}

	samples := make([]float64, n)
	for localY := 0; localY < blockHeight; localY++ {
		y := blk.RowStart + localY
		for x := 0; x < width; x++ {
			for f := 0; f < n; f++ {
				srcIdx := job.Selection.Source(f)
				shift := job.Store.Registration(blk.Channel, srcIdx)
				sx := x - shift.IntX
				var raw float64
				if sx >= 0 && sx < width {
					raw = frameRows[f][localY*width+sx]
				}
				if coeffs != nil {
					raw = ApplyNorm(raw, coeffs[blk.Channel][f], job.StackConfig.Normalization)
				}
				samples[f] = raw
			}
			v := ReducePixel(samples, useMedian, job.StackConfig.Rejection, job.StackConfig.SigmaLow, job.StackConfig.SigmaHigh, counts, blk.Channel)
			outRow := height - 1 - y // mirrored row, spec.md §4.4.3
			output[(blk.Channel*height+outRow)*width+x] = v
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w", joberr.ErrCancelled)
		}
	}
	return nil
}

// computeNormCoefficients reads each selected frame's full extent once to
// derive per-channel location/scale statistics (spec.md §4.4.5 step 1),
// then builds the per (channel, frame) coefficient table.
func computeNormCoefficients(ctx context.Context, job *Job, geom seqio.Geometry) ([][]NormCoeff, error) {
	n := job.Selection.Len()
	stats := make([]FrameStats, n)
	rect := seqio.Rect{X: 0, Y: 0, W: geom.Width, H: geom.Height}
	buf := make([]float64, geom.Width*geom.Height)
	for f := 0; f < n; f++ {
		srcIdx := job.Selection.Source(f)
		loc := make([]float64, geom.Channels)
		scale := make([]float64, geom.Channels)
		for ch := 0; ch < geom.Channels; ch++ {
			if err := job.Store.ReadPartial(ctx, srcIdx, ch, rect, 0, buf); err != nil {
				return nil, fmt.Errorf("%w: %v", joberr.ErrFrameReadFailed, err)
			}
			loc[ch], scale[ch] = RobustLocationScale(buf)
		}
		stats[f] = FrameStats{Location: loc, Scale: scale}
	}
	reference := job.StackConfig.ReferenceFrame
	if reference < 0 || reference >= n {
		reference = 0
	}
	return BuildNormCoefficients(stats, job.StackConfig.Normalization, reference), nil
}

// assembleFrame packages the reduced output buffer into a Frame, storing
// as float32 unless the source geometry is 16-bit integer and the caller
// did not force float output.
func assembleFrame(output []float64, geom seqio.Geometry, forceFloat bool) *seqio.Frame {
	f := &seqio.Frame{Width: geom.Width, Height: geom.Height, Channels: geom.Channels}
	if geom.Storage == seqio.StorageU16 && !forceFloat {
		f.Storage = seqio.StorageU16
		f.Pixels = make([]uint16, len(output))
		for i, v := range output {
			f.Pixels[i] = ConvertSample[uint16](v)
		}
		return f
	}
	f.Storage = seqio.StorageF32
	f.PixelsF32 = make([]float32, len(output))
	for i, v := range output {
		f.PixelsF32[i] = ConvertSample[float32](v)
	}
	return f
}

// decideThreads picks the worker count per spec.md §5: the minimum of
// available physical CPUs, the user cap, and reader reentrancy (a
// non-reentrant store forces single-threaded reads). Block stacking is
// arithmetic-heavy per pixel, so it is sized to physical cores rather than
// logical ones: hyperthreads sharing an ALU/cache don't add real throughput
// to this workload.
func decideThreads(cfg *config.Config, reentrant bool) int {
	if !reentrant {
		return 1
	}
	n := util.PhysicalCores()
	if cfg.Workers > 0 && cfg.Workers < n {
		n = cfg.Workers
	}
	if !cfg.Parallel {
		n = 1
	}
	if n < 1 {
		n = 1
	}
	return n
}
