package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	seqstack "github.com/five82/seqstack"
	"github.com/five82/seqstack/internal/logging"
	"github.com/five82/seqstack/internal/seqio"
	"github.com/five82/seqstack/internal/seqio/dirstore"
	"github.com/five82/seqstack/internal/util"
)

type stackArgs struct {
	dir       string
	out       string
	logDir    string
	verbose   bool
	noLog     bool
	workers   int
	reject    string
	normalize string
	sigmaLow  float64
	sigmaHigh float64
}

func runStack(args []string) error {
	fs := flag.NewFlagSet("stack", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Stack a sequence into a single output image.

Usage:
  %s stack <dir> <out> [options]

Required:
  dir       Directory containing a dirstore sequence
  out       Output file path (written as a single dirstore frame)

Options:
  -v, --verbose          Enable verbose output
  -l, --log-dir <PATH>   Log directory (defaults to ~/.local/state/seqstack/logs)
  --no-log               Disable log file creation
  --workers <N>          Number of parallel worker threads. Default: auto
  --reject <KIND>        none|sigma|percentile|sigma-median|winsorized|linear-fit. Default: sigma
  --normalize <KIND>     none|additive|multiplicative|additive-scaling|multiplicative-scaling. Default: none
  --sigma-low <F>        Low sigma threshold. Default: 3.0
  --sigma-high <F>       High sigma threshold. Default: 3.0
`, appName)
	}

	var sa stackArgs
	fs.StringVar(&sa.logDir, "l", "", "Log directory")
	fs.StringVar(&sa.logDir, "log-dir", "", "Log directory")
	fs.BoolVar(&sa.verbose, "v", false, "Enable verbose output")
	fs.BoolVar(&sa.verbose, "verbose", false, "Enable verbose output")
	fs.BoolVar(&sa.noLog, "no-log", false, "Disable log file creation")
	fs.IntVar(&sa.workers, "workers", 0, "Number of parallel worker threads")
	fs.StringVar(&sa.reject, "reject", "sigma", "Rejection algorithm")
	fs.StringVar(&sa.normalize, "normalize", "none", "Normalization mode")
	fs.Float64Var(&sa.sigmaLow, "sigma-low", 3.0, "Low sigma threshold")
	fs.Float64Var(&sa.sigmaHigh, "sigma-high", 3.0, "High sigma threshold")

	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) < 2 {
		fs.Usage()
		return fmt.Errorf("dir and out are required")
	}
	sa.dir, sa.out = rest[0], rest[1]

	return executeStack(sa)
}

func parseRejection(s string) (seqstack.Rejection, error) {
	switch s {
	case "none":
		return seqstack.RejectNone, nil
	case "percentile":
		return seqstack.RejectPercentile, nil
	case "sigma":
		return seqstack.RejectSigma, nil
	case "sigma-median":
		return seqstack.RejectSigmaMedian, nil
	case "winsorized":
		return seqstack.RejectWinsorized, nil
	case "linear-fit":
		return seqstack.RejectLinearFit, nil
	default:
		return 0, fmt.Errorf("unknown --reject %q", s)
	}
}

func parseNormalization(s string) (seqstack.Normalization, error) {
	switch s {
	case "none":
		return seqstack.NormNone, nil
	case "additive":
		return seqstack.NormAdditive, nil
	case "multiplicative":
		return seqstack.NormMultiplicative, nil
	case "additive-scaling":
		return seqstack.NormAdditiveScaling, nil
	case "multiplicative-scaling":
		return seqstack.NormMultiplicativeScaling, nil
	default:
		return 0, fmt.Errorf("unknown --normalize %q", s)
	}
}

func executeStack(sa stackArgs) error {
	logDir := sa.logDir
	if logDir == "" {
		logDir = logging.DefaultLogDir()
	}
	logger, err := logging.Setup(logDir, sa.verbose, sa.noLog, os.Args)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	if logger != nil {
		defer func() { _ = logger.Close() }()
	}

	store, err := dirstore.Open(sa.dir)
	if err != nil {
		return fmt.Errorf("opening sequence: %w", err)
	}

	rejection, err := parseRejection(sa.reject)
	if err != nil {
		return err
	}
	normalization, err := parseNormalization(sa.normalize)
	if err != nil {
		return err
	}

	rep := buildReporter(sa.verbose, logger)

	destDir := filepath.Dir(sa.out)
	if destDir == "" {
		destDir = "."
	}
	util.CheckDiskSpace(destDir, func(format string, args ...any) {
		rep.Warning(fmt.Sprintf(format, args...))
	})

	stacker, err := seqstack.New(
		seqstack.WithRejection(rejection),
		seqstack.WithNormalization(normalization),
		seqstack.WithSigma(sa.sigmaLow, sa.sigmaHigh),
		seqstack.WithWorkers(sa.workers),
		seqstack.WithReporter(rep),
	)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	result, err := stacker.Stack(ctx, store, nil, nil)
	if err != nil {
		return err
	}

	return writeResultAtomically(store, sa.out, result.Frame)
}

// writeResultAtomically writes frame to a temp file alongside the final
// destination, then renames it into place, so a crash or cancellation mid
// write never leaves a truncated output file at sa.out.
func writeResultAtomically(store seqio.FrameStore, destPath string, frame *seqio.Frame) error {
	destDir := filepath.Dir(destPath)
	if destDir == "" {
		destDir = "."
	}
	tempPath, err := util.CreateTempFilePath(destDir, ".seqstack_stack", "tmp")
	if err != nil {
		return fmt.Errorf("preparing output file: %w", err)
	}

	out, err := store.CreateWriter(seqio.ContainerSER, tempPath, 1)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := out.WriteFrame(0, frame); err != nil {
		_ = out.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing stacked frame: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("finalizing output file: %w", err)
	}
	if err := os.Rename(tempPath, destPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("moving output file into place: %w", err)
	}
	return nil
}
