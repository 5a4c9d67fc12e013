package progress

import (
	"sync/atomic"
	"time"
)

// Stage represents the event that produced an update
type Stage string

const (
	StageDiscover Stage = "discover"
	StageEncode   Stage = "encode"
	StageSkip     Stage = "skip"
	StageFail     Stage = "fail"
	StagePreview  Stage = "preview"
	StageDone     Stage = "done"
)

// Update holds a progress update. Percent is run-wide: items reported so
// far over items discovered so far.
type Update struct {
	RunID     string
	Stage     Stage
	Path      string
	Percent   float64
	Done      int
	Total     int
	Message   string
	Timestamp time.Time
}

// Reporter is the interface for progress reporting
type Reporter interface {
	Report(update Update)
}

// ChannelReporter sends updates to a channel without blocking the run.
// Updates that find the channel full are counted and dropped.
type ChannelReporter struct {
	ch      chan<- Update
	dropped atomic.Int64
}

// NewChannelReporter creates a reporter that sends updates to ch
func NewChannelReporter(ch chan<- Update) *ChannelReporter {
	return &ChannelReporter{ch: ch}
}

func (r *ChannelReporter) Report(update Update) {
	select {
	case r.ch <- update:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns how many updates were discarded.
func (r *ChannelReporter) Dropped() int64 { return r.dropped.Load() }

// FuncReporter adapts a plain function.
type FuncReporter func(Update)

func (f FuncReporter) Report(update Update) { f(update) }

type multiReporter []Reporter

func (m multiReporter) Report(update Update) {
	for _, r := range m {
		r.Report(update)
	}
}

// Multi fans updates out to every non-nil reporter in order.
func Multi(reporters ...Reporter) Reporter {
	var m multiReporter
	for _, r := range reporters {
		if r != nil {
			m = append(m, r)
		}
	}
	switch len(m) {
	case 0:
		return NoopReporter{}
	case 1:
		return m[0]
	}
	return m
}

// NoopReporter discards all updates
type NoopReporter struct{}

func (NoopReporter) Report(Update) {}
