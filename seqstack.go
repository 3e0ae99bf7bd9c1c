// Package seqstack provides a Go library for stacking astronomical image
// sequences: bounded-memory per-frame processing, order-preserving sequence
// writing, and block-parallel stacking with outlier rejection.
//
// Basic usage:
//
//	store, err := dirstore.Open("lights/")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	stacker, err := seqstack.New(
//	    seqstack.WithRejection(seqstack.RejectSigma),
//	    seqstack.WithSigma(3, 3),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := stacker.Stack(ctx, store, nil, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("stacked %dx%d, %d low rejections on channel 0\n",
//	    result.Frame.Width, result.Frame.Height, result.RejectLow[0])
package seqstack

import (
	"context"
	"fmt"

	"github.com/five82/seqstack/internal/config"
	"github.com/five82/seqstack/internal/reporter"
	"github.com/five82/seqstack/internal/selection"
	"github.com/five82/seqstack/internal/seqio"
	"github.com/five82/seqstack/internal/stack"
)

// Rejection selects a stacker outlier-rejection algorithm.
type Rejection = config.RejectionKind

const (
	RejectNone        = config.RejectNone
	RejectPercentile  = config.RejectPercentile
	RejectSigma       = config.RejectSigma
	RejectSigmaMedian = config.RejectSigmaMedian
	RejectWinsorized  = config.RejectWinsorized
	RejectLinearFit   = config.RejectLinearFit
)

// Normalization selects a stacker inter-frame normalization mode.
type Normalization = config.NormalizationKind

const (
	NormNone                  = config.NormNone
	NormAdditive              = config.NormAdditive
	NormMultiplicative        = config.NormMultiplicative
	NormAdditiveScaling       = config.NormAdditiveScaling
	NormMultiplicativeScaling = config.NormMultiplicativeScaling
)

// Stacker merges an entire sequence into a single output image.
type Stacker struct {
	config      *config.Config
	stackConfig *config.StackConfig
	reporter    Reporter
}

type stackerOptions struct {
	cfg      *config.Config
	stackCfg *config.StackConfig
	reporter Reporter
}

// Option configures a Stacker.
type Option func(*stackerOptions)

// New creates a Stacker with the given options.
func New(opts ...Option) (*Stacker, error) {
	o := &stackerOptions{
		cfg:      config.NewConfig(),
		stackCfg: config.NewStackConfig(),
		reporter: reporter.NullReporter{},
	}

	for _, opt := range opts {
		opt(o)
	}

	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	if err := o.stackCfg.Validate(); err != nil {
		return nil, err
	}

	return &Stacker{config: o.cfg, stackConfig: o.stackCfg, reporter: o.reporter}, nil
}

// WithRejection sets the outlier-rejection algorithm applied per pixel.
func WithRejection(r Rejection) Option {
	return func(o *stackerOptions) { o.stackCfg.Rejection = r }
}

// WithSigma sets the low/high sigma thresholds used by the percentile and
// sigma-clip family of rejection algorithms.
func WithSigma(low, high float64) Option {
	return func(o *stackerOptions) {
		o.stackCfg.SigmaLow = low
		o.stackCfg.SigmaHigh = high
	}
}

// WithNormalization sets the inter-frame brightness normalization mode
// applied before rejection.
func WithNormalization(n Normalization) Option {
	return func(o *stackerOptions) { o.stackCfg.Normalization = n }
}

// WithReferenceFrame sets which selected frame (by position within the
// selection, not source sequence index) normalization coefficients are
// computed relative to.
func WithReferenceFrame(index int) Option {
	return func(o *stackerOptions) { o.stackCfg.ReferenceFrame = index }
}

// WithMemoryBudgetRows caps the per-thread row budget the block planner
// uses; 0 selects a default tiered by image size.
func WithMemoryBudgetRows(rows int) Option {
	return func(o *stackerOptions) { o.stackCfg.MemoryBudgetRow = rows }
}

// WithWorkers caps the number of concurrent block-processing threads.
// Default is 0 (use all available CPUs).
func WithWorkers(workers int) Option {
	return func(o *stackerOptions) { o.cfg.Workers = workers }
}

// WithDisableParallel forces single-threaded execution regardless of
// available CPUs or worker cap.
func WithDisableParallel() Option {
	return func(o *stackerOptions) { o.cfg.Parallel = false }
}

// WithForceFloat forces float32 output even when the source sequence is
// 16-bit integer.
func WithForceFloat() Option {
	return func(o *stackerOptions) { o.cfg.ForceFloat = true }
}

// WithReporter attaches a Reporter that receives stage and completion
// events for every job this Stacker runs. Per-call progress fractions are
// still delivered through the callback passed to Stack.
func WithReporter(r Reporter) Option {
	return func(o *stackerOptions) {
		if r != nil {
			o.reporter = r
		}
	}
}

// Result is a stacked image plus the per-channel rejection tallies
// accumulated while reducing it.
type Result struct {
	Frame      *seqio.Frame
	RejectLow  []int64
	RejectHigh []int64
}

// Stack merges every frame selected by include (nil selects all frames)
// into a single output image. progress, if non-nil, is called with a
// fraction in [0, 1] as blocks complete, in addition to any Reporter
// attached via WithReporter.
func (s *Stacker) Stack(ctx context.Context, store seqio.FrameStore, include func(index int) bool, progress func(float64)) (*Result, error) {
	s.reporter.Stage("stacking", fmt.Sprintf("rejection=%v normalization=%v", s.stackConfig.Rejection, s.stackConfig.Normalization))
	s.reporter.Progress(reporter.Progress{Stage: "stacking", Kind: ProgressReset})

	sel, err := selection.Build(store.FrameCount(), include)
	if err != nil {
		err = fmt.Errorf("seqstack: %w", err)
		s.reporter.Error(err)
		return nil, err
	}

	job := &stack.Job{
		Store:       store,
		Selection:   sel,
		Config:      s.config,
		StackConfig: s.stackConfig,
		Progress: func(fraction float64) {
			s.reporter.Progress(reporter.Progress{Stage: "stacking", Kind: ProgressFraction, Fraction: fraction})
			if progress != nil {
				progress(fraction)
			}
		},
	}
	res, err := stack.Run(ctx, job)
	s.reporter.Progress(reporter.Progress{Stage: "stacking", Kind: ProgressDone})
	if err != nil {
		s.reporter.Error(err)
		s.reporter.Complete(Summary{Err: err, Cancelled: ctx.Err() != nil})
		return nil, err
	}

	result := &Result{
		Frame:      res.Frame,
		RejectLow:  append([]int64(nil), res.Counts.Low...),
		RejectHigh: append([]int64(nil), res.Counts.High...),
	}
	s.reporter.Complete(Summary{
		Selected:   sel.Len(),
		RejectLow:  result.RejectLow,
		RejectHigh: result.RejectHigh,
	})
	return result, nil
}
