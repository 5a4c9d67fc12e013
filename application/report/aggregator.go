// Package report accumulates per-item outcomes into a run summary and
// streams progress while the run is in flight.
package report

import (
	"sync"
	"time"

	"github.com/Skryldev/audiobatch/domain/model"
	"github.com/Skryldev/audiobatch/pkg/progress"
)

// Aggregator is safe for concurrent use by all workers of one run.
type Aggregator struct {
	reporter progress.Reporter
	now      func() time.Time
	start    time.Time

	mu        sync.Mutex
	summary   model.RunSummary
	reported  int
	finalized bool
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithReporter streams an update for every discovered and recorded item.
func WithReporter(r progress.Reporter) Option {
	return func(a *Aggregator) {
		if r != nil {
			a.reporter = r
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

func NewAggregator(runID string, opts ...Option) *Aggregator {
	a := &Aggregator{
		reporter: progress.NoopReporter{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.start = a.now()
	a.summary.RunID = runID
	return a
}

// Discovered counts one item yielded by discovery.
func (a *Aggregator) Discovered() {
	a.mu.Lock()
	if a.finalized {
		a.mu.Unlock()
		return
	}
	a.summary.TotalDiscovered++
	u := a.update(progress.StageDiscover, "")
	a.mu.Unlock()
	a.reporter.Report(u)
}

// Record accumulates one outcome. Outcomes may arrive in any order;
// failures and previews are listed in arrival order.
func (a *Aggregator) Record(o model.Outcome) {
	a.mu.Lock()
	if a.finalized {
		a.mu.Unlock()
		return
	}
	s := &a.summary
	var stage progress.Stage
	var msg string
	switch o.Kind {
	case model.OutcomeSucceeded:
		s.Succeeded++
		s.OutputBytes += o.OutputBytes
		stage = progress.StageEncode
	case model.OutcomeSkipped:
		s.Skipped++
		stage, msg = progress.StageSkip, string(o.SkipReason)
	case model.OutcomeFailed:
		s.Failed++
		s.Failures = append(s.Failures, model.Failure{
			RelPath: o.Item.RelPath,
			Kind:    o.ErrKind,
			Message: o.Message,
		})
		stage, msg = progress.StageFail, o.Message
	case model.OutcomePreviewed:
		s.Previewed++
		p := model.Preview{RelPath: o.Item.RelPath, OutputPath: o.OutputPath, OutputExists: o.OutputExists}
		if o.Invocation != nil {
			p.Invocation = *o.Invocation
		}
		s.Previews = append(s.Previews, p)
		stage = progress.StagePreview
	default:
		a.mu.Unlock()
		return
	}
	a.reported++
	u := a.update(stage, o.Item.RelPath)
	u.Message = msg
	a.mu.Unlock()
	a.reporter.Report(u)
}

// MarkNotProcessed counts queued items discarded by cancellation.
func (a *Aggregator) MarkNotProcessed(n int) {
	if n <= 0 {
		return
	}
	a.mu.Lock()
	if a.finalized {
		a.mu.Unlock()
		return
	}
	a.summary.NotProcessed += n
	a.reported += n
	a.mu.Unlock()
}

// Progress returns items reported over items discovered so far, in
// percent. The denominator grows while discovery is still running.
func (a *Aggregator) Progress() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.percent()
}

// Finalize freezes the summary. Later calls return the same totals and
// further records are ignored. The done update counts only items that
// produced an outcome, so a cancelled run finishes below 100%.
func (a *Aggregator) Finalize() model.RunSummary {
	a.mu.Lock()
	if !a.finalized {
		a.finalized = true
		a.summary.Elapsed = a.now().Sub(a.start)
	}
	out := a.summary
	out.Failures = append([]model.Failure(nil), a.summary.Failures...)
	out.Previews = append([]model.Preview(nil), a.summary.Previews...)
	total := out.TotalDiscovered
	done := a.reported - out.NotProcessed
	a.mu.Unlock()

	var pct float64
	if total > 0 {
		pct = float64(done) / float64(total) * 100
	}
	a.reporter.Report(progress.Update{
		RunID:     out.RunID,
		Stage:     progress.StageDone,
		Percent:   pct,
		Done:      done,
		Total:     total,
		Timestamp: a.now(),
	})
	return out
}

// Must hold mu.
func (a *Aggregator) percent() float64 {
	if a.summary.TotalDiscovered == 0 {
		return 0
	}
	return float64(a.reported) / float64(a.summary.TotalDiscovered) * 100
}

// Must hold mu.
func (a *Aggregator) update(stage progress.Stage, path string) progress.Update {
	return progress.Update{
		RunID:     a.summary.RunID,
		Stage:     stage,
		Path:      path,
		Percent:   a.percent(),
		Done:      a.reported,
		Total:     a.summary.TotalDiscovered,
		Timestamp: a.now(),
	}
}
