// Package analysis runs one trial through the full pipeline: raw samples are
// mapped into the arena frame, classified against the resolved zones and
// reduced to a report. The arena is resolved once when the Engine is built;
// every Analyze call is independent and safe to run concurrently.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/okian/zonetrack/internal/domain/arena"
	"github.com/okian/zonetrack/internal/domain/classify"
	"github.com/okian/zonetrack/internal/domain/model"
	"github.com/okian/zonetrack/internal/domain/occupancy"
	"github.com/okian/zonetrack/internal/domain/resolve"
	"github.com/okian/zonetrack/internal/domain/transform"
	"github.com/okian/zonetrack/internal/domain/types"
	"github.com/okian/zonetrack/pkg/logger"
)

// Sentinel errors.
var (
	ErrInvalidTrial   = errors.New("invalid trial")
	ErrTooManySamples = errors.New("trial exceeds sample limit")
)

// Engine is the per-arena analysis pipeline.
type Engine struct {
	arena      *arena.Arena
	zones      *resolve.Zones
	pipeline   *transform.Pipeline
	classifier *classify.Classifier
	analyzer   *occupancy.Analyzer

	threshold  float64
	minFrames  int
	minSeconds float64
	primary    []string
	binSeconds float64
	maxSamples int
	log        logger.Logger
	now        func() time.Time
}

// Result is a trial report plus the per-frame membership behind it.
type Result struct {
	Report types.TrialReport
	Table  *classify.Table
}

// New resolves a and prepares the pipeline. Configuration and geometry
// errors are returned here, never from Analyze.
func New(a *arena.Arena, opts ...Option) (*Engine, error) {
	e := &Engine{arena: a, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	if e.log == nil {
		e.log = logger.Nop()
	}

	p, err := resolve.Pipeline(a)
	if err != nil {
		return nil, err
	}
	zs, err := resolve.Resolve(a, p)
	if err != nil {
		return nil, err
	}
	c, err := classify.New(zs)
	if err != nil {
		return nil, err
	}
	if e.primary == nil {
		e.primary = DefaultPrimary(a)
	}
	seen := make(map[string]bool, len(e.primary))
	for _, id := range e.primary {
		if _, ok := a.Zone(id); !ok {
			return nil, &arena.ConfigurationError{ZoneID: id, Field: "primary_zones", Rule: "primary zone does not exist", Err: arena.ErrUnknownZone}
		}
		if seen[id] {
			return nil, &arena.ConfigurationError{ZoneID: id, Field: "primary_zones", Rule: "primary zone listed more than once"}
		}
		seen[id] = true
	}

	e.pipeline, e.zones, e.classifier = p, zs, c
	e.analyzer = occupancy.New(
		occupancy.WithMinDwellFrames(e.minFrames),
		occupancy.WithMinDwellSeconds(e.minSeconds),
		occupancy.WithPrimaryZones(e.primary...),
	)
	e.log.Info(context.Background(), "arena resolved",
		logger.String("arena", a.Name()),
		logger.Int("zones", zs.Len()),
		logger.Any("primary", e.primary),
		logger.Bool("transformed", !p.IsIdentity()),
	)
	return e, nil
}

// DefaultPrimary lists, in declaration order, the zones that are not the
// parent of a proportional zone. For a floor split into centre and periphery
// this is the centre and periphery.
func DefaultPrimary(a *arena.Arena) []string {
	out := []string{}
	for _, z := range a.Zones() {
		if len(a.Children(z.ID)) == 0 {
			out = append(out, z.ID)
		}
	}
	return out
}

// Arena returns the arena the engine was built for.
func (e *Engine) Arena() *arena.Arena { return e.arena }

// Primary returns the transition matrix zones.
func (e *Engine) Primary() []string { return slices.Clone(e.primary) }

// Analyze produces the report of one trial.
func (e *Engine) Analyze(ctx context.Context, t model.Trial) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	tbl, err := e.table(t.ID, t.Samples)
	if err != nil {
		return nil, err
	}
	res, err := e.analyzer.Analyze(tbl, t.FrameRate)
	if err != nil {
		return nil, fmt.Errorf("%w: trial %q: %w", ErrInvalidTrial, t.ID, err)
	}

	report := types.TrialReport{
		TrialID:     t.ID,
		Subject:     t.Subject,
		Labels:      t.Labels,
		FrameRate:   t.FrameRate,
		Frames:      res.Frames,
		ValidFrames: res.ValidFrames,
		Duration:    res.Duration,
		Zones:       e.named(res.Zones),
		States:      res.Transitions.States,
		Transitions: res.Transitions.Rows(),
		AnalyzedAt:  e.now().UTC(),
	}
	if e.binSeconds > 0 {
		bins, err := e.analyzer.AnalyzeBins(tbl, t.FrameRate, e.binSeconds)
		if err != nil {
			return nil, fmt.Errorf("%w: trial %q: %w", ErrInvalidTrial, t.ID, err)
		}
		for _, b := range bins {
			report.Bins = append(report.Bins, types.BinReport{
				Index:       b.Index,
				Start:       b.Start,
				End:         b.End,
				Zones:       e.named(b.Result.Zones),
				Transitions: b.Result.Transitions.Rows(),
			})
		}
	}

	e.log.Debug(ctx, "trial analyzed",
		logger.String("trial_id", t.ID),
		logger.Int("frames", res.Frames),
		logger.Int("valid_frames", res.ValidFrames),
		logger.Duration("took", time.Since(start)),
	)
	return &Result{Report: report, Table: tbl}, nil
}

// Validate runs the checks Analyze would fail on without classifying any
// sample, so queued trials can be rejected before they are accepted.
func (e *Engine) Validate(t model.Trial) error {
	if !(t.FrameRate > 0) || math.IsInf(t.FrameRate, 0) {
		return fmt.Errorf("%w: trial %q: %w: %v", ErrInvalidTrial, t.ID, occupancy.ErrInvalidFrameRate, t.FrameRate)
	}
	if e.maxSamples > 0 && len(t.Samples) > e.maxSamples {
		return fmt.Errorf("%w: trial %q has %d samples, limit %d", ErrTooManySamples, t.ID, len(t.Samples), e.maxSamples)
	}
	for i, s := range t.Samples {
		if s.Frame < -model.MaxFrame || s.Frame > model.MaxFrame {
			return fmt.Errorf("%w: trial %q: %w: %d, limit ±%d",
				ErrInvalidTrial, t.ID, occupancy.ErrFrameRange, s.Frame, model.MaxFrame)
		}
		if i > 0 && s.Frame <= t.Samples[i-1].Frame {
			return fmt.Errorf("%w: trial %q: %w: frame %d follows %d",
				ErrInvalidTrial, t.ID, classify.ErrFrameOrder, t.Samples[i].Frame, t.Samples[i-1].Frame)
		}
	}
	return nil
}

// Classify returns the zones each sample falls in, for rendering.
func (e *Engine) Classify(ctx context.Context, samples []model.Sample) ([]types.FrameMembership, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tbl, err := e.table("", samples)
	if err != nil {
		return nil, err
	}
	out := make([]types.FrameMembership, tbl.Len())
	for i := range out {
		inside := tbl.InsideAt(i)
		if inside == nil {
			inside = []string{}
		}
		out[i] = types.FrameMembership{Frame: tbl.Frame(i), Valid: tbl.Valid(i), Inside: inside}
	}
	return out, nil
}

// Zones describes every resolved zone in declaration order.
func (e *Engine) Zones() []types.ZoneInfo {
	var out []types.ZoneInfo
	for _, z := range e.arena.Zones() {
		s, _ := e.zones.Shape(z.ID)
		b := s.Bounds()
		out = append(out, types.ZoneInfo{
			ID:        z.ID,
			Name:      z.DisplayName(),
			Type:      string(z.Def.Kind()),
			Shape:     string(s.Kind()),
			Bounds:    [4]float64{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y},
			DependsOn: e.arena.DependsOn(z.ID),
			Primary:   slices.Contains(e.primary, z.ID),
		})
	}
	return out
}

// table maps samples into the arena frame, masks low-confidence samples and
// classifies them. The caller's samples are not modified.
func (e *Engine) table(id string, samples []model.Sample) (*classify.Table, error) {
	if e.maxSamples > 0 && len(samples) > e.maxSamples {
		return nil, fmt.Errorf("%w: trial %q has %d samples, limit %d", ErrTooManySamples, id, len(samples), e.maxSamples)
	}
	prepared := make([]model.Sample, len(samples))
	for i, s := range samples {
		if e.threshold > 0 && s.Likelihood < e.threshold {
			s.Pos = model.Missing()
		}
		s.Pos = s.Pos.Map(e.pipeline.Apply)
		prepared[i] = s
	}
	tbl, err := e.classifier.Table(prepared)
	if err != nil {
		return nil, fmt.Errorf("%w: trial %q: %w", ErrInvalidTrial, id, err)
	}
	return tbl, nil
}

func (e *Engine) named(rows []types.ZoneRow) []types.ZoneRow {
	out := slices.Clone(rows)
	for i := range out {
		out[i].Name = e.zones.Name(out[i].Zone)
	}
	return out
}
