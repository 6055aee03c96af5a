package repository

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/okian/zonetrack/internal/domain/types"
	"github.com/okian/zonetrack/pkg/metrics"
)

// MemoryStore keeps reports in a map. Reports are lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]types.TrialReport
	closed  bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	metrics.UpdateStoreRecords(0)
	return &MemoryStore{reports: make(map[string]types.TrialReport)}
}

func (s *MemoryStore) Save(_ context.Context, r types.TrialReport) error {
	start := time.Now()
	defer func() { metrics.RecordStoreWriteLatency(float64(time.Since(start).Microseconds()) / 1000) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.reports[r.TrialID] = r
	metrics.UpdateStoreRecords(len(s.reports))
	return nil
}

func (s *MemoryStore) Get(_ context.Context, trialID string) (types.TrialReport, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreQueryLatency(float64(time.Since(start).Microseconds()) / 1000) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[trialID]
	if !ok {
		return types.TrialReport{}, fmt.Errorf("%w: %q", ErrNotFound, trialID)
	}
	return r, nil
}

func (s *MemoryStore) List(_ context.Context, limit int) ([]types.TrialSummary, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	s.mu.RLock()
	out := make([]types.TrialSummary, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, r.Summary())
	}
	s.mu.RUnlock()

	slices.SortFunc(out, newestFirst)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports), nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// newestFirst orders by analysis time descending, then trial id ascending.
func newestFirst(a, b types.TrialSummary) int {
	if c := b.AnalyzedAt.Compare(a.AnalyzedAt); c != 0 {
		return c
	}
	return strings.Compare(a.TrialID, b.TrialID)
}
