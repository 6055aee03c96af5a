package service

import (
	"context"
	"errors"
	"time"

	"github.com/okian/zonetrack/internal/domain/analysis"
	"github.com/okian/zonetrack/internal/domain/model"
	"github.com/okian/zonetrack/internal/domain/types"
	"github.com/okian/zonetrack/pkg/metrics"
)

// engineAdapter adapts analysis.Engine to worker.Analyzer and records
// per-trial metrics.
type engineAdapter struct {
	engine *analysis.Engine
}

func (a *engineAdapter) Analyze(ctx context.Context, t *model.Trial) (types.TrialReport, error) {
	start := time.Now()
	res, err := a.engine.Analyze(ctx, *t)
	if err != nil {
		metrics.RecordTrialFailed(failureReason(err))
		return types.TrialReport{}, err
	}
	metrics.RecordAnalysisLatency(float64(time.Since(start).Microseconds()) / 1000)
	metrics.RecordTrialAnalyzed()

	r := res.Report
	metrics.RecordFrames(r.Frames, r.Frames-r.ValidFrames)
	for _, z := range r.Zones {
		metrics.RecordZoneEntries(z.Zone, z.Entries)
	}
	return r, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, analysis.ErrTooManySamples):
		return "too_many_samples"
	case errors.Is(err, analysis.ErrInvalidTrial):
		return "invalid"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "internal"
	}
}
