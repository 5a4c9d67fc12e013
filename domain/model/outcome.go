package model

import (
	"time"

	pkgerrors "github.com/Skryldev/audiobatch/pkg/errors"
)

// OutcomeKind tags an Outcome
type OutcomeKind string

const (
	OutcomeSucceeded OutcomeKind = "succeeded"
	OutcomeSkipped   OutcomeKind = "skipped"
	OutcomeFailed    OutcomeKind = "failed"
	// OutcomePreviewed is only produced in dry-run mode.
	OutcomePreviewed OutcomeKind = "previewed"
)

// SkipReason explains a Skipped outcome
type SkipReason string

const SkipAlreadyExists SkipReason = "already_exists"

// Outcome is the result of processing one WorkItem
type Outcome struct {
	Kind OutcomeKind
	Item WorkItem

	// Succeeded, Skipped and Previewed
	OutputPath string
	// Succeeded
	OutputBytes int64
	// Skipped
	SkipReason SkipReason
	// Failed
	ErrKind pkgerrors.Kind
	Message string
	// Previewed
	Invocation   *Invocation
	OutputExists bool
}

func Succeeded(item WorkItem, outputPath string, size int64) Outcome {
	return Outcome{Kind: OutcomeSucceeded, Item: item, OutputPath: outputPath, OutputBytes: size}
}

func Skipped(item WorkItem, outputPath string) Outcome {
	return Outcome{Kind: OutcomeSkipped, Item: item, OutputPath: outputPath, SkipReason: SkipAlreadyExists}
}

func Failed(item WorkItem, kind pkgerrors.Kind, message string) Outcome {
	return Outcome{Kind: OutcomeFailed, Item: item, ErrKind: kind, Message: message}
}

func Previewed(item WorkItem, outputPath string, inv Invocation, exists bool) Outcome {
	return Outcome{Kind: OutcomePreviewed, Item: item, OutputPath: outputPath, Invocation: &inv, OutputExists: exists}
}

// Failure is one entry of the summary failure list
type Failure struct {
	RelPath string
	Kind    pkgerrors.Kind
	Message string
}

// Preview is one dry-run entry
type Preview struct {
	RelPath      string
	OutputPath   string
	OutputExists bool
	Invocation   Invocation
}

// RunSummary aggregates outcomes for one run
type RunSummary struct {
	RunID           string
	TotalDiscovered int
	Succeeded       int
	Skipped         int
	Failed          int
	Previewed       int
	// NotProcessed counts queued items discarded by cancellation.
	NotProcessed int
	OutputBytes  int64
	Failures     []Failure
	Previews     []Preview
	Elapsed      time.Duration
}

// Conserved reports whether every discovered item is accounted for.
func (s RunSummary) Conserved() bool {
	return s.Succeeded+s.Skipped+s.Failed+s.Previewed+s.NotProcessed == s.TotalDiscovered
}
