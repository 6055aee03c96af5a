// Package service wires the analysis engine to the trial queue, the worker
// pool, the report store and the deduper, and implements the dependencies
// required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/zonetrack/internal/adapters/mq/queue"
	"github.com/okian/zonetrack/internal/adapters/mq/worker"
	"github.com/okian/zonetrack/internal/adapters/repository"
	"github.com/okian/zonetrack/internal/domain/analysis"
	"github.com/okian/zonetrack/internal/domain/dedupe"
	"github.com/okian/zonetrack/internal/domain/model"
	"github.com/okian/zonetrack/internal/domain/types"
	"github.com/okian/zonetrack/pkg/logger"
	"github.com/okian/zonetrack/pkg/metrics"
)

const (
	defaultQueueSize    = 1_000
	defaultDedupeSize   = 100_000
	defaultMaxListLimit = 100
	defaultListLimit    = 20
)

// Service implements the API dependencies for zone analysis.
type Service struct {
	mu sync.RWMutex

	engine   *analysis.Engine
	analyzer *engineAdapter
	store    repository.Store
	deduper  dedupe.Deduper
	queue    *queue.InMemoryQueue
	pool     *worker.Pool

	workerCount  int
	queueSize    int
	dedupeSize   int
	maxListLimit int

	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// New constructs a Service around engine. Nothing runs until Start.
func New(engine *analysis.Engine, opts ...Option) (*Service, error) {
	if engine == nil {
		return nil, ErrNilEngine
	}
	s := &Service{
		engine:       engine,
		workerCount:  runtime.NumCPU(),
		queueSize:    defaultQueueSize,
		dedupeSize:   defaultDedupeSize,
		maxListLimit: defaultMaxListLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	s.analyzer = &engineAdapter{engine: engine}
	return s, nil
}

// Start creates the queue and the deduper and starts the worker pool.
// Workers outlive ctx and stop on Stop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s.analyzer, s.store,
		worker.WithLogger(s.logger),
		worker.WithOnFailure(s.onFailure),
	)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool.Start(runCtx)

	metrics.UpdateArenaZones(len(s.engine.Arena().Zones()))

	s.started = true
	s.logger.Info(ctx, "zone analysis service started",
		logger.String("arena", s.engine.Arena().Name()),
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains queued trials and stops the workers. Stored reports remain
// readable and the service may be started again.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping zone analysis service")

	err := s.pool.Shutdown(ctx)
	s.cancel()
	s.started = false
	if err != nil {
		return fmt.Errorf("worker pool: %w", err)
	}
	s.logger.Info(ctx, "zone analysis service stopped")
	return nil
}

// Close stops the service and closes the report store.
func (s *Service) Close(ctx context.Context) error {
	stopErr := s.Stop(ctx)
	if err := s.store.Close(); err != nil {
		return errors.Join(stopErr, fmt.Errorf("report store: %w", err))
	}
	return stopErr
}

// Submit validates t and queues it for analysis. A trial id seen before is
// acknowledged as a duplicate without being analysed again. An empty id is
// replaced with a generated one. Queue errors (queue.ErrFull, queue.ErrClosed)
// release the id so the caller may retry.
func (s *Service) Submit(ctx context.Context, t model.Trial) (types.Ack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return types.Ack{}, ErrNotStarted
	}

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if err := s.engine.Validate(t); err != nil {
		metrics.RecordTrialFailed("invalid")
		return types.Ack{}, err
	}
	if s.deduper.SeenAndRecord(ctx, t.ID) {
		metrics.RecordTrialDuplicate()
		s.logger.Debug(ctx, "duplicate trial", logger.String("trial_id", t.ID))
		return types.Ack{TrialID: t.ID, Duplicate: true}, nil
	}

	t.Received = time.Now()
	if err := s.queue.Enqueue(ctx, &t); err != nil {
		s.deduper.Unrecord(ctx, t.ID)
		return types.Ack{}, fmt.Errorf("enqueue trial %s: %w", t.ID, err)
	}
	metrics.RecordTrialSubmitted()
	return types.Ack{TrialID: t.ID}, nil
}

// AnalyzeNow analyses t on the caller's goroutine and stores the report,
// replacing any earlier report of the same id.
func (s *Service) AnalyzeNow(ctx context.Context, t model.Trial) (types.TrialReport, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	report, err := s.analyzer.Analyze(ctx, &t)
	if err != nil {
		return types.TrialReport{}, err
	}
	if err := s.store.Save(ctx, report); err != nil {
		return types.TrialReport{}, fmt.Errorf("store report %s: %w", t.ID, err)
	}

	s.mu.RLock()
	if s.started {
		s.deduper.SeenAndRecord(ctx, t.ID)
	}
	s.mu.RUnlock()
	return report, nil
}

// Report returns the stored report of a trial, or repository.ErrNotFound.
func (s *Service) Report(ctx context.Context, trialID string) (types.TrialReport, error) {
	return s.store.Get(ctx, trialID)
}

// Reports lists stored reports, newest first. limit <= 0 uses a default;
// larger limits are capped.
func (s *Service) Reports(ctx context.Context, limit int) ([]types.TrialSummary, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, s.maxListLimit)
	return s.store.List(ctx, limit)
}

// Classify returns per-frame zone membership without storing anything.
func (s *Service) Classify(ctx context.Context, samples []model.Sample) ([]types.FrameMembership, error) {
	return s.engine.Classify(ctx, samples)
}

// Zones describes every resolved zone.
func (s *Service) Zones() []types.ZoneInfo {
	return s.engine.Zones()
}

// Arena describes the arena, its units and zones.
func (s *Service) Arena() types.ArenaInfo {
	a := s.engine.Arena()
	info := types.ArenaInfo{
		Name:    a.Name(),
		Units:   "px",
		Primary: s.engine.Primary(),
		Zones:   s.engine.Zones(),
	}
	if c, ok := a.Calibration(); ok && c.Units != "" {
		info.Units = c.Units
	}
	return info
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"arena":       s.engine.Arena().Name(),
		"zones":       len(s.engine.Arena().Zones()),
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}

	ctx := context.Background()
	if n, err := s.store.Count(ctx); err == nil {
		stats["reports"] = n
	}
	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["activeWorkers"] = s.pool.Active()
		stats["trackedTrials"] = s.deduper.Size()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.pool.Size())
	}
	return stats
}

// onFailure releases the id of a trial whose analysis or storage failed so
// it can be resubmitted.
func (s *Service) onFailure(ctx context.Context, t *model.Trial, _ error) {
	s.deduper.Unrecord(ctx, t.ID)
}
