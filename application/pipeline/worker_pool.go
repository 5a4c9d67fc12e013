package pipeline

import (
	"context"
	"errors"
	"iter"
	"runtime"
	"sync"

	"github.com/Skryldev/audiobatch/domain/model"
	"github.com/Skryldev/audiobatch/pkg/logger"
	"go.uber.org/zap"
)

// ErrStarted is returned when a pool is reconfigured or rerun after Run began.
var ErrStarted = errors.New("worker pool already started")

// State is the lifecycle of one run
type State string

const (
	StateIdle        State = "idle"
	StateDispatching State = "dispatching"
	StateDraining    State = "draining"
	StateCompleted   State = "completed"
)

// Processor executes one item
type Processor interface {
	Process(ctx context.Context, item model.WorkItem) model.Outcome
}

// ProcessorFunc adapts a plain function to Processor
type ProcessorFunc func(ctx context.Context, item model.WorkItem) model.Outcome

func (f ProcessorFunc) Process(ctx context.Context, item model.WorkItem) model.Outcome {
	return f(ctx, item)
}

// Recorder receives discovery counts and outcomes. Implementations must be
// safe for concurrent use.
type Recorder interface {
	Discovered()
	Record(outcome model.Outcome)
	MarkNotProcessed(n int)
}

// WorkerPool dispatches discovered items to at most concurrency workers.
// Items are queued FIFO; a worker keeps dequeuing until the queue is empty
// and then exits, and new workers are started as items arrive.
type WorkerPool struct {
	proc       Processor
	rec        Recorder
	hardCancel bool
	log        *logger.Logger

	mu          sync.Mutex
	concurrency int
	state       State
	queue       []model.WorkItem
	active      int
	wg          sync.WaitGroup
}

// PoolOption configures a WorkerPool
type PoolOption func(*WorkerPool)

// WithWorkers sets the initial concurrency bound; n <= 0 is ignored.
func WithWorkers(n int) PoolOption {
	return func(wp *WorkerPool) {
		if n > 0 {
			wp.concurrency = n
		}
	}
}

// WithHardCancel lets run cancellation reach in-flight items.
func WithHardCancel(enabled bool) PoolOption {
	return func(wp *WorkerPool) {
		wp.hardCancel = enabled
	}
}

// NewWorkerPool creates a new worker pool. Concurrency defaults to the
// number of CPUs.
func NewWorkerPool(proc Processor, rec Recorder, log *logger.Logger, opts ...PoolOption) *WorkerPool {
	if log == nil {
		log = logger.Nop()
	}
	wp := &WorkerPool{
		proc:        proc,
		rec:         rec,
		log:         log,
		concurrency: runtime.NumCPU(),
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(wp)
	}
	return wp
}

// SetConcurrency changes the worker bound. It is only honored before Run.
func (wp *WorkerPool) SetConcurrency(n int) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.state != StateIdle {
		return ErrStarted
	}
	if n > 0 {
		wp.concurrency = n
	}
	return nil
}

// Concurrency returns the current worker bound.
func (wp *WorkerPool) Concurrency() int {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.concurrency
}

// State returns the current lifecycle state.
func (wp *WorkerPool) State() State {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.state
}

// Run consumes items, dispatching each as it is discovered, and returns
// once every dispatched item has been recorded. A discovery error stops
// dispatch and is returned after in-flight items finish.
//
// Canceling ctx stops dispatch and discards queued items as not processed.
// In-flight items run to completion unless hard cancellation is enabled.
func (wp *WorkerPool) Run(ctx context.Context, items iter.Seq2[model.WorkItem, error]) error {
	wp.mu.Lock()
	if wp.state != StateIdle {
		wp.mu.Unlock()
		return ErrStarted
	}
	wp.state = StateDispatching
	wp.mu.Unlock()

	execCtx := ctx
	if !wp.hardCancel {
		execCtx = context.WithoutCancel(ctx)
	}

	var discoveryErr error
	for item, err := range items {
		if err != nil {
			discoveryErr = err
			break
		}
		if ctx.Err() != nil {
			break
		}
		wp.rec.Discovered()
		wp.enqueue(ctx, execCtx, item)
	}

	wp.setState(StateDraining)
	wp.wg.Wait()

	// Workers drain the queue themselves; this only catches a cancellation
	// that landed after the last worker exited.
	wp.mu.Lock()
	leftover := len(wp.queue)
	wp.queue = nil
	wp.state = StateCompleted
	wp.mu.Unlock()
	if leftover > 0 {
		wp.rec.MarkNotProcessed(leftover)
	}

	if discoveryErr != nil {
		wp.log.Error("discovery aborted", zap.Error(discoveryErr))
	}
	return discoveryErr
}

func (wp *WorkerPool) enqueue(ctx, execCtx context.Context, item model.WorkItem) {
	wp.mu.Lock()
	wp.queue = append(wp.queue, item)
	spawn := wp.active < wp.concurrency
	if spawn {
		wp.active++
		wp.wg.Add(1)
	}
	wp.mu.Unlock()

	if spawn {
		go wp.worker(ctx, execCtx)
	}
}

func (wp *WorkerPool) worker(ctx, execCtx context.Context) {
	defer wp.wg.Done()
	for {
		item, ok := wp.next(ctx)
		if !ok {
			return
		}
		wp.rec.Record(wp.proc.Process(execCtx, item))
	}
}

// next pops the queue head. When the run is canceled the queue is
// discarded instead. The active count drops in the same critical section
// that observes an empty queue, so enqueue never strands an item.
func (wp *WorkerPool) next(ctx context.Context) (model.WorkItem, bool) {
	wp.mu.Lock()
	dropped := 0
	if ctx.Err() != nil && len(wp.queue) > 0 {
		dropped = len(wp.queue)
		wp.queue = nil
	}
	if len(wp.queue) == 0 {
		wp.active--
		wp.mu.Unlock()
		if dropped > 0 {
			wp.log.Info("run canceled, discarding queued items", zap.Int("count", dropped))
			wp.rec.MarkNotProcessed(dropped)
		}
		return model.WorkItem{}, false
	}
	item := wp.queue[0]
	wp.queue[0] = model.WorkItem{}
	wp.queue = wp.queue[1:]
	wp.mu.Unlock()
	return item, true
}

func (wp *WorkerPool) setState(s State) {
	wp.mu.Lock()
	wp.state = s
	wp.mu.Unlock()
}
