// Package seqstack provides a Go library for stacking astronomical image
// sequences.
package seqstack

import (
	"time"

	"github.com/five82/seqstack/internal/reporter"
)

// Event types for external integration (e.g. a GUI frontend watching a
// long-running stack job over a JSON event stream).
const (
	EventTypeStage    = "stage"
	EventTypeProgress = "progress"
	EventTypeWarning  = "warning"
	EventTypeError    = "error"
	EventTypeComplete = "complete"
)

// Event is the interface for all seqstack events.
type Event interface {
	Type() string
	Timestamp() int64
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventType string `json:"type"`
	Time      int64  `json:"timestamp"`
}

func (e BaseEvent) Type() string     { return e.EventType }
func (e BaseEvent) Timestamp() int64 { return e.Time }

// StageEvent announces a new job phase (preparing, running, finalizing, ...).
type StageEvent struct {
	BaseEvent
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// ProgressEvent represents a progress update.
type ProgressEvent struct {
	BaseEvent
	Stage    string  `json:"stage"`
	Message  string  `json:"message"`
	Fraction float64 `json:"fraction"`
	Reset    bool    `json:"reset"`
	Done     bool    `json:"done"`
	Pulsate  bool    `json:"pulsate"`
}

// WarningEvent represents a warning message.
type WarningEvent struct {
	BaseEvent
	Message string `json:"message"`
}

// ErrorEvent represents an error.
type ErrorEvent struct {
	BaseEvent
	Message string `json:"message"`
}

// CompleteEvent represents job completion.
type CompleteEvent struct {
	BaseEvent
	Selected   int     `json:"selected"`
	Excluded   int     `json:"excluded"`
	Cancelled  bool    `json:"cancelled"`
	Error      string  `json:"error,omitempty"`
	RejectLow  []int64 `json:"reject_low,omitempty"`
	RejectHigh []int64 `json:"reject_high,omitempty"`
}

// EventHandler is called with events during a job. Returning an error has
// no effect on the job; it is reserved for future cancellation wiring.
type EventHandler func(Event) error

// NewTimestamp returns the current Unix timestamp.
func NewTimestamp() int64 {
	return time.Now().Unix()
}

// eventReporter adapts an EventHandler to the Reporter interface, the way
// callers outside this module observe job progress without depending on
// internal/reporter directly.
type eventReporter struct {
	handler EventHandler
}

// NewEventReporter wraps handler as a Reporter. A nil handler yields a
// reporter that discards every event.
func NewEventReporter(handler EventHandler) Reporter {
	if handler == nil {
		return reporter.NullReporter{}
	}
	return &eventReporter{handler: handler}
}

func (r *eventReporter) Stage(name, message string) {
	_ = r.handler(StageEvent{
		BaseEvent: BaseEvent{EventType: EventTypeStage, Time: NewTimestamp()},
		Stage:     name,
		Message:   message,
	})
}

func (r *eventReporter) Progress(p Progress) {
	_ = r.handler(ProgressEvent{
		BaseEvent: BaseEvent{EventType: EventTypeProgress, Time: NewTimestamp()},
		Stage:     p.Stage,
		Message:   p.Message,
		Fraction:  p.Fraction,
		Reset:     p.Kind == ProgressReset,
		Done:      p.Kind == ProgressDone,
		Pulsate:   p.Kind == ProgressPulsate,
	})
}

func (r *eventReporter) Warning(message string) {
	_ = r.handler(WarningEvent{
		BaseEvent: BaseEvent{EventType: EventTypeWarning, Time: NewTimestamp()},
		Message:   message,
	})
}

func (r *eventReporter) Error(err error) {
	_ = r.handler(ErrorEvent{
		BaseEvent: BaseEvent{EventType: EventTypeError, Time: NewTimestamp()},
		Message:   err.Error(),
	})
}

func (r *eventReporter) Complete(s Summary) {
	ev := CompleteEvent{
		BaseEvent:  BaseEvent{EventType: EventTypeComplete, Time: NewTimestamp()},
		Selected:   s.Selected,
		Excluded:   s.Excluded,
		Cancelled:  s.Cancelled,
		RejectLow:  s.RejectLow,
		RejectHigh: s.RejectHigh,
	}
	if s.Err != nil {
		ev.Error = s.Err.Error()
	}
	_ = r.handler(ev)
}

func (r *eventReporter) Verbose(string) {}
