package seqstack

import (
	"context"
	"fmt"

	"github.com/five82/seqstack/internal/config"
	"github.com/five82/seqstack/internal/engine"
	"github.com/five82/seqstack/internal/reporter"
	"github.com/five82/seqstack/internal/seqio"
	"github.com/five82/seqstack/internal/util"
	"github.com/five82/seqstack/internal/writer"
)

// FrameProcessor drives every frame of a sequence through a caller-supplied
// callback, optionally writing the results back out in order.
type FrameProcessor struct {
	config   *config.Config
	reporter Reporter
}

type frameOptions struct {
	cfg      *config.Config
	reporter Reporter
}

// FrameOption configures a FrameProcessor.
type FrameOption func(*frameOptions)

// NewFrameProcessor creates a FrameProcessor with the given options.
func NewFrameProcessor(opts ...FrameOption) (*FrameProcessor, error) {
	o := &frameOptions{cfg: config.NewConfig(), reporter: reporter.NullReporter{}}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	return &FrameProcessor{config: o.cfg, reporter: o.reporter}, nil
}

// WithFrameWorkers caps the number of concurrent frame-processing threads.
func WithFrameWorkers(workers int) FrameOption {
	return func(o *frameOptions) { o.cfg.Workers = workers }
}

// WithFrameDisableParallel forces single-threaded frame processing.
func WithFrameDisableParallel() FrameOption {
	return func(o *frameOptions) { o.cfg.Parallel = false }
}

// WithStopOnError aborts the job on the first frame failure instead of
// excluding the failed frame and continuing.
func WithStopOnError() FrameOption {
	return func(o *frameOptions) { o.cfg.StopOnError = true }
}

// WithMaxActiveFrames bounds the number of in-flight frames buffered ahead
// of a sequence writer; 0 disables bounding.
func WithMaxActiveFrames(n int) FrameOption {
	return func(o *frameOptions) { o.cfg.MaxActiveBlocks = n }
}

// WithFrameReporter attaches a Reporter that receives stage and completion
// events for every job this FrameProcessor runs.
func WithFrameReporter(r Reporter) FrameOption {
	return func(o *frameOptions) {
		if r != nil {
			o.reporter = r
		}
	}
}

// ImageFunc processes one frame in place. o is the output index, i the
// source sequence index.
type ImageFunc func(ctx context.Context, o, i int, frame *seqio.Frame) error

// FrameResult summarizes a completed (or partially completed) run.
type FrameResult struct {
	Selected   int
	Excluded   int
	Cancelled  bool
	FirstError error
}

// ProcessReadOnly runs fn over every frame selected by include (nil selects
// all) with no output; useful for analysis passes that only need read
// access, e.g. computing statistics ahead of a stack job.
func (p *FrameProcessor) ProcessReadOnly(ctx context.Context, store seqio.FrameStore, include func(index int) bool, fn ImageFunc) (*FrameResult, error) {
	job := &engine.Job{
		Store:   store,
		Include: include,
		Hooks: engine.Hooks{
			Image: func(ctx context.Context, o, i int, frame *seqio.Frame, _ *seqio.Rect) error {
				return fn(ctx, o, i, frame)
			},
			ComputeMemoryBudget: memoryBudgetFor(store.Geometry()),
		},
		Flags: engine.Flags{
			StopOnError: p.config.StopOnError,
			Parallel:    p.config.Parallel,
			OutputKind:  engine.OutputNone,
		},
		Workers: p.config.Workers,
	}
	return p.run(ctx, job)
}

// memoryBudgetFor returns a ComputeMemoryBudget hook capping worker count
// to however many whole frames (held as float32 working buffers) fit in
// available system memory, per spec.md §5's "CPUs × memory budget × cap"
// thread-count decision. Returns a hook that reports 0 (unbounded) when
// available memory cannot be determined.
func memoryBudgetFor(geom seqio.Geometry) func() int {
	frameBytes := int64(geom.Width) * int64(geom.Height) * int64(geom.Channels) * 4
	return func() int {
		if frameBytes <= 0 {
			return 0
		}
		avail := util.AvailableMemoryBytes()
		if avail == 0 {
			return 0
		}
		budget := int64(avail) / frameBytes
		if budget < 1 {
			budget = 1
		}
		return int(budget)
	}
}

// ProcessToSequence runs fn over every selected frame and writes each
// result, in ascending output-index order, into a new sequence created via
// store.CreateWriter. kind/path/expectedCount describe the output
// container; expectedCount may be negative if unknown ahead of time.
func (p *FrameProcessor) ProcessToSequence(ctx context.Context, store seqio.FrameStore, include func(index int) bool, kind seqio.ContainerKind, path string, expectedCount int, fn ImageFunc) (*FrameResult, error) {
	out, err := store.CreateWriter(kind, path, expectedCount)
	if err != nil {
		return nil, fmt.Errorf("seqstack: creating output writer: %w", err)
	}

	sw := writer.New(out, p.config.MaxActiveBlocks, nil)
	sw.Start(expectedCount)

	job := &engine.Job{
		Store:   store,
		Include: include,
		Writer:  sw,
		Hooks: engine.Hooks{
			Image: func(ctx context.Context, o, i int, frame *seqio.Frame, _ *seqio.Rect) error {
				return fn(ctx, o, i, frame)
			},
			Save: func(_ context.Context, o, _ int, frame *seqio.Frame) error {
				sw.Append(writer.Task{Index: o, Frame: frame})
				return nil
			},
			ComputeMemoryBudget: memoryBudgetFor(store.Geometry()),
		},
		Flags: engine.Flags{
			HasOutput:   true,
			StopOnError: p.config.StopOnError,
			Parallel:    p.config.Parallel,
			OutputKind:  engine.OutputSequence,
		},
		Workers: p.config.Workers,
	}

	result, runErr := p.run(ctx, job)

	// A clean run drains the writer's remaining queue normally; any
	// failure (cancellation, stop-on-error, finalize) aborts it so
	// WaitForSlot callers are not left blocked.
	stopErr := sw.Stop(runErr != nil)
	if runErr == nil && stopErr != nil {
		runErr = stopErr
	}
	return result, runErr
}

func (p *FrameProcessor) run(ctx context.Context, job *engine.Job) (*FrameResult, error) {
	p.reporter.Stage("processing", "")
	res, err := engine.Run(ctx, job, func() uint64 { return util.GetAvailableSpace(".") })

	fr := &FrameResult{}
	if res != nil {
		fr.Selected = res.Selected
		fr.Excluded = res.Excluded
		fr.Cancelled = res.Cancelled
		fr.FirstError = res.FirstError
	}
	if err != nil {
		p.reporter.Error(err)
	}
	p.reporter.Complete(Summary{
		Selected:  fr.Selected,
		Excluded:  fr.Excluded,
		Err:       fr.FirstError,
		Cancelled: fr.Cancelled,
	})
	return fr, err
}
