package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/zonetrack/internal/domain/model"
	"github.com/okian/zonetrack/internal/domain/types"
	"github.com/okian/zonetrack/pkg/logger"
	"github.com/okian/zonetrack/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// ErrShutdown is passed to the failure callback for trials that were accepted
// but never analyzed because the workers stopped first.
var ErrShutdown = errors.New("worker stopped before the trial was analyzed")

// Analyzer turns a trial into its report. Implementations must be safe for
// concurrent use; each call gets its own trial.
type Analyzer interface {
	Analyze(ctx context.Context, t *model.Trial) (types.TrialReport, error)
}

// Saver persists finished reports.
type Saver interface {
	Save(ctx context.Context, r types.TrialReport) error
}

// Queue defines how workers receive trials.
type Queue interface {
	Dequeue(ctx context.Context) <-chan *model.Trial
}

// FailureFunc is told about trials that produced no stored report.
type FailureFunc func(ctx context.Context, t *model.Trial, err error)

// Worker processes trials until its queue closes or it is shut down.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the trial in hand.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	analyzer  Analyzer
	saver     Saver
	name      string
	onFailure FailureFunc
	active    *atomic.Int64

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, analyzer Analyzer, saver Saver, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     queue,
		analyzer:  analyzer,
		saver:     saver,
		name:      "worker",
		onFailure: func(context.Context, *model.Trial, error) {},
		active:    new(atomic.Int64),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	dctx, stop := context.WithCancel(ctx)
	trials := w.queue.Dequeue(dctx)
	defer func() {
		stop()
		for t := range trials {
			w.abandon(ctx, t)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case t, ok := <-trials:
			if !ok {
				return
			}
			tctx := logger.WithFields(ctx, logger.String("trial_id", t.ID))
			if err := w.process(tctx, t); err != nil {
				w.logger.Error(tctx, "trial analysis failed", logger.Error(err))
				w.onFailure(tctx, t, err)
			}
		}
	}
}

// abandon reports a trial the worker received but will not analyze.
func (w *InMemoryWorker) abandon(ctx context.Context, t *model.Trial) {
	tctx := logger.WithFields(ctx, logger.String("trial_id", t.ID))
	w.logger.Warn(tctx, "trial dropped at shutdown")
	metrics.RecordErrorByComponent("worker", "shutdown")
	w.onFailure(tctx, t, ErrShutdown)
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, t *model.Trial) error {
	metrics.UpdateWorkerActiveCount(int(w.active.Add(1)))
	start := time.Now()
	defer func() {
		metrics.UpdateWorkerActiveCount(int(w.active.Add(-1)))
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	report, err := w.analyzer.Analyze(ctx, t)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "analysis_error")
		return fmt.Errorf("analyze trial %s: %w", t.ID, err)
	}

	if err := w.saver.Save(ctx, report); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "store_error")
		metrics.RecordErrorByType("store_error", "high")
		return fmt.Errorf("store report %s: %w", t.ID, err)
	}

	w.logger.Debug(ctx, "trial analyzed",
		logger.Int("frames", report.Frames),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	active  atomic.Int64

	logger logger.Logger
}

// NewPool creates a worker pool. A non-positive count uses one worker per CPU.
func NewPool(workerCount int, queue Queue, analyzer Analyzer, saver Saver, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range pool.workers {
		w := NewInMemoryWorker(queue, analyzer, saver,
			append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)...)
		w.active = &pool.active
		pool.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Active returns the number of workers analyzing a trial right now.
func (p *Pool) Active() int { return int(p.active.Load()) }

// Shutdown closes the queue and lets workers drain it. Workers still busy
// when ctx (or the pool timeout) expires are stopped after their current trial.
// Trials left in the queue then go to the failure callback with ErrShutdown.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	drainCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var errs []error
	for i, w := range p.workers {
		select {
		case <-w.done:
			continue
		case <-drainCtx.Done():
		}
		if err := w.Shutdown(drainCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			errs = append(errs, err)
		}
	}
	if d, ok := p.queue.(interface{ Drain() []*model.Trial }); ok && len(p.workers) > 0 {
		left := d.Drain()
		if len(left) > 0 {
			p.logger.Warn(ctx, "trials left in queue at shutdown", logger.Int("count", len(left)))
		}
		for _, t := range left {
			p.workers[0].abandon(ctx, t)
		}
	}
	return errors.Join(errs...)
}
