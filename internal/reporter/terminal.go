package reporter

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

// TerminalReporter outputs human-friendly, colored text to the terminal.
type TerminalReporter struct {
	mu         sync.Mutex
	bar        *progressbar.ProgressBar
	maxPercent float64
	lastStage  string
	verbose    bool
	cyan       *color.Color
	green      *color.Color
	yellow     *color.Color
	red        *color.Color
	magenta    *color.Color
	bold       *color.Color
	dim        *color.Color
}

// NewTerminalReporter creates a terminal reporter with verbose mode disabled.
func NewTerminalReporter() *TerminalReporter {
	return NewTerminalReporterVerbose(false)
}

// NewTerminalReporterVerbose creates a terminal reporter with configurable
// verbose mode.
func NewTerminalReporterVerbose(verbose bool) *TerminalReporter {
	return &TerminalReporter{
		verbose: verbose,
		cyan:    color.New(color.FgCyan, color.Bold),
		green:   color.New(color.FgGreen),
		yellow:  color.New(color.FgYellow, color.Bold),
		red:     color.New(color.FgRed, color.Bold),
		magenta: color.New(color.FgMagenta),
		bold:    color.New(color.Bold),
		dim:     color.New(color.Faint),
	}
}

const labelWidth = 14

func (r *TerminalReporter) printLabel(label, value string) {
	padded := fmt.Sprintf("%-*s", labelWidth, label)
	fmt.Printf("  %s %s\n", r.bold.Sprint(padded), value)
}

func (r *TerminalReporter) finishBar() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar != nil {
		_ = r.bar.Finish()
		r.bar = nil
	}
	r.maxPercent = 0
}

// Stage announces a new phase (preparing, running, finalizing, ...).
func (r *TerminalReporter) Stage(name, message string) {
	r.mu.Lock()
	changed := r.lastStage != name
	r.lastStage = name
	r.mu.Unlock()
	if changed {
		fmt.Println()
		_, _ = r.cyan.Println(strings.ToUpper(name))
	}
	if message != "" {
		fmt.Printf("  %s %s\n", r.magenta.Sprint("›"), message)
	}
}

// Progress renders one progress update, per spec.md §6's four-shape
// callback.
func (r *TerminalReporter) Progress(p Progress) {
	switch p.Kind {
	case ProgressReset:
		r.finishBar()
		return
	case ProgressDone:
		r.finishBar()
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar == nil {
		r.bar = progressbar.NewOptions64(
			100,
			progressbar.OptionSetDescription(""),
			progressbar.OptionSetWidth(40),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionShowDescriptionAtLineEnd(),
			progressbar.OptionSetElapsedTime(false),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}

	if p.Kind == ProgressPulsate {
		_ = r.bar.Add64(1)
		r.bar.Describe(p.Message)
		return
	}

	clamped := p.Fraction
	if clamped > 1 {
		clamped = 1
	}
	if clamped < 0 {
		clamped = 0
	}
	pct := clamped * 100
	if pct >= r.maxPercent {
		r.maxPercent = pct
		_ = r.bar.Set64(int64(pct))
	}
	r.bar.Describe(p.Message)
}

func (r *TerminalReporter) Warning(message string) {
	fmt.Println()
	_, _ = r.yellow.Printf("WARN: %s\n", message)
}

func (r *TerminalReporter) Error(err error) {
	_, _ = fmt.Fprintln(os.Stderr)
	_, _ = r.red.Fprintf(os.Stderr, "ERROR: %s\n", err)
}

// Complete reports the job's final Summary, colored per spec.md §7: green
// on clean success, amber on partial success, red on failure.
func (r *TerminalReporter) Complete(summary Summary) {
	r.finishBar()
	fmt.Println()
	_, _ = r.cyan.Println("RESULTS")
	r.printLabel("Selected:", fmt.Sprintf("%d", summary.Selected))
	r.printLabel("Excluded:", fmt.Sprintf("%d", summary.Excluded))

	switch summary.Classify() {
	case OutcomeSuccess:
		fmt.Printf("  %s %s\n", r.green.Add(color.Bold).Sprint("✓"), r.bold.Sprint("completed"))
	case OutcomePartial:
		amber := color.New(color.FgYellow)
		fmt.Printf("  %s %s\n", amber.Sprint("!"),
			amber.Sprintf("%d images failed and were excluded", summary.Excluded))
	case OutcomeCancelled:
		fmt.Printf("  %s %s\n", r.yellow.Sprint("✗"), r.yellow.Sprint("cancelled"))
	case OutcomeFailure:
		fmt.Printf("  %s %s\n", r.red.Sprint("✗"), r.red.Sprintf("failed: %v", summary.Err))
	}

	for ch := range summary.RejectLow {
		low, high := int64(0), int64(0)
		if ch < len(summary.RejectLow) {
			low = summary.RejectLow[ch]
		}
		if ch < len(summary.RejectHigh) {
			high = summary.RejectHigh[ch]
		}
		if low > 0 || high > 0 {
			r.printLabel(fmt.Sprintf("Channel %d:", ch), fmt.Sprintf("%d low, %d high rejections", low, high))
		}
	}
}

func (r *TerminalReporter) Verbose(message string) {
	if !r.verbose {
		return
	}
	fmt.Printf("  %s %s\n", r.dim.Sprint("›"), r.dim.Sprint(message))
}
