// Package seqstack provides a Go library for stacking astronomical image
// sequences.
//
// This file re-exports the internal Reporter interface and associated types
// so callers can receive progress and completion events directly.
package seqstack

import "github.com/five82/seqstack/internal/reporter"

// Reporter receives progress and lifecycle events from a running job.
// Implement this interface to drive a custom UI; internal/reporter ships a
// colored terminal implementation and a plain-text log implementation.
type Reporter = reporter.Reporter

// NullReporter is a no-op Reporter that discards every event.
type NullReporter = reporter.NullReporter

// Progress is one progress update delivered from a running job.
type Progress = reporter.Progress

// ProgressKind distinguishes a numeric-fraction update from a reset/done/
// pulsate control signal.
type ProgressKind = reporter.ProgressKind

const (
	ProgressFraction = reporter.ProgressFraction
	ProgressReset    = reporter.ProgressReset
	ProgressDone     = reporter.ProgressDone
	ProgressPulsate  = reporter.ProgressPulsate
)

// Summary is the final status of a frame or stack job.
type Summary = reporter.Summary

// Outcome classifies a Summary for display coloring.
type Outcome = reporter.Outcome

const (
	OutcomeSuccess   = reporter.OutcomeSuccess
	OutcomePartial   = reporter.OutcomePartial
	OutcomeFailure   = reporter.OutcomeFailure
	OutcomeCancelled = reporter.OutcomeCancelled
)
