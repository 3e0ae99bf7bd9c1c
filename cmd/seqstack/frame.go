package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	seqstack "github.com/five82/seqstack"
	"github.com/five82/seqstack/internal/logging"
	"github.com/five82/seqstack/internal/reporter"
	"github.com/five82/seqstack/internal/seqio"
	"github.com/five82/seqstack/internal/seqio/dirstore"
)

type frameArgs struct {
	dir     string
	prefix  string
	logDir  string
	verbose bool
	noLog   bool
	workers int
}

func runFrame(args []string) error {
	fs := flag.NewFlagSet("frame", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Run an identity per-frame pass over a sequence.

Usage:
  %s frame <dir> <prefix> [options]

Required:
  dir       Directory containing a dirstore sequence
  prefix    Output file prefix; frames are written as <prefix>NNNNN.frame

Options:
  -v, --verbose          Enable verbose output
  -l, --log-dir <PATH>   Log directory (defaults to ~/.local/state/seqstack/logs)
  --no-log               Disable log file creation
  --workers <N>          Number of parallel worker threads. Default: auto
`, appName)
	}

	var fa frameArgs
	fs.StringVar(&fa.logDir, "l", "", "Log directory")
	fs.StringVar(&fa.logDir, "log-dir", "", "Log directory")
	fs.BoolVar(&fa.verbose, "v", false, "Enable verbose output")
	fs.BoolVar(&fa.verbose, "verbose", false, "Enable verbose output")
	fs.BoolVar(&fa.noLog, "no-log", false, "Disable log file creation")
	fs.IntVar(&fa.workers, "workers", 0, "Number of parallel worker threads")

	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) < 2 {
		fs.Usage()
		return fmt.Errorf("dir and prefix are required")
	}
	fa.dir, fa.prefix = rest[0], rest[1]

	return executeFrame(fa)
}

func executeFrame(fa frameArgs) error {
	logDir := fa.logDir
	if logDir == "" {
		logDir = logging.DefaultLogDir()
	}
	logger, err := logging.Setup(logDir, fa.verbose, fa.noLog, os.Args)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	if logger != nil {
		defer func() { _ = logger.Close() }()
	}

	store, err := dirstore.Open(fa.dir)
	if err != nil {
		return fmt.Errorf("opening sequence: %w", err)
	}

	rep := buildReporter(fa.verbose, logger)

	proc, err := seqstack.NewFrameProcessor(
		seqstack.WithFrameWorkers(fa.workers),
		seqstack.WithFrameReporter(rep),
	)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	_, err = proc.ProcessToSequence(ctx, store, nil, seqio.ContainerFITSPerFile, fa.prefix, store.FrameCount(),
		func(_ context.Context, _, _ int, _ *seqio.Frame) error { return nil })
	return err
}

func buildReporter(verbose bool, logger *logging.Logger) seqstack.Reporter {
	term := reporter.NewTerminalReporterVerbose(verbose)
	if logger == nil {
		return term
	}
	return reporter.NewCompositeReporter(term, reporter.NewLogReporter(logger.Writer()))
}
