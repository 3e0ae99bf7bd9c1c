package reporter

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// LogReporter writes timestamped job events to a log file.
type LogReporter struct {
	w                  io.Writer
	mu                 sync.Mutex
	lastProgressBucket int
}

// NewLogReporter creates a log reporter writing to w.
func NewLogReporter(w io.Writer) *LogReporter {
	return &LogReporter{w: w, lastProgressBucket: -1}
}

func (r *LogReporter) log(level, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	msg := fmt.Sprintf(format, args...)
	_, _ = fmt.Fprintf(r.w, "%s [%s] %s\n", timestamp, level, msg)
}

func (r *LogReporter) Stage(name, message string) {
	r.log("INFO", "[%s] %s", name, message)
}

// Progress logs at 5% buckets, the way the teacher throttles frequent
// numeric progress to avoid flooding the log file.
func (r *LogReporter) Progress(p Progress) {
	switch p.Kind {
	case ProgressReset:
		r.mu.Lock()
		r.lastProgressBucket = -1
		r.mu.Unlock()
		return
	case ProgressDone:
		r.log("INFO", "progress complete: %s", p.Message)
		return
	case ProgressPulsate:
		r.log("DEBUG", "%s", p.Message)
		return
	}

	bucket := int(p.Fraction * 20)
	r.mu.Lock()
	if bucket <= r.lastProgressBucket {
		r.mu.Unlock()
		return
	}
	r.lastProgressBucket = bucket
	r.mu.Unlock()
	r.log("INFO", "progress: %.0f%% (%s)", p.Fraction*100, p.Message)
}

func (r *LogReporter) Warning(message string) {
	r.log("WARN", "%s", message)
}

func (r *LogReporter) Error(err error) {
	r.log("ERROR", "%v", err)
}

func (r *LogReporter) Complete(summary Summary) {
	r.log("INFO", "=== COMPLETE ===")
	r.log("INFO", "selected=%d excluded=%d outcome=%d", summary.Selected, summary.Excluded, summary.Classify())
	for ch := range summary.RejectLow {
		low, high := int64(0), int64(0)
		if ch < len(summary.RejectLow) {
			low = summary.RejectLow[ch]
		}
		if ch < len(summary.RejectHigh) {
			high = summary.RejectHigh[ch]
		}
		if low > 0 || high > 0 {
			r.log("INFO", "channel %d: %d low, %d high rejections", ch, low, high)
		}
	}
	if summary.Err != nil {
		r.log("ERROR", "job failed: %v", summary.Err)
	}
}

func (r *LogReporter) Verbose(message string) {
	r.log("DEBUG", "%s", message)
}
