// Package occupancy reduces per-frame zone membership into occupancy,
// entries, exits, dwell, latency and a transition matrix. Each zone is
// reduced independently; the matrix is built over a designated primary set.
//
// Policies:
//   - Undefined frames count toward neither occupancy nor its denominator.
//   - The first defined frame is placement: starting inside is not an entry.
//     Its dwell is reported but left out of the mean (its start is unknown).
//   - A dwell still open at the end of the trial is neither an exit nor part
//     of the mean.
//   - Times come from frame numbers relative to the trial's first sample.
package occupancy

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/okian/zonetrack/internal/domain/classify"
	"github.com/okian/zonetrack/internal/domain/model"
	"github.com/okian/zonetrack/internal/domain/types"
	"gonum.org/v1/gonum/stat"
)

// roundSlack absorbs float error when converting seconds to frames.
const roundSlack = 1e-9

// Sentinel errors.
var (
	ErrInvalidFrameRate = errors.New("frame rate must be positive and finite")
	ErrInvalidBin       = errors.New("bin width must be positive")
	ErrUnknownZone      = errors.New("unknown primary zone")
	ErrFrameRange       = errors.New("frame number out of range")
)

// checkFrames rejects frame numbers whose differences could overflow.
// Frames are strictly increasing, so the ends bound the rest.
func checkFrames(t *classify.Table) error {
	n := t.Len()
	if n == 0 {
		return nil
	}
	for _, f := range []int{t.Frame(0), t.Frame(n - 1)} {
		if f < -model.MaxFrame || f > model.MaxFrame {
			return fmt.Errorf("%w: %d, limit ±%d", ErrFrameRange, f, model.MaxFrame)
		}
	}
	return nil
}

// Analyzer holds analysis settings. It keeps no per-trial state and is safe
// for concurrent use.
type Analyzer struct {
	minFrames  int
	minSeconds float64
	primary    []string
}

// New creates an Analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Result is the analysis of one trial (or one bin of it).
type Result struct {
	FrameRate      float64
	Frames         int
	ValidFrames    int
	Duration       float64
	MinDwellFrames int
	Zones          []types.ZoneRow
	Transitions    Matrix
}

// Zone returns the row of one zone.
func (r *Result) Zone(id string) (types.ZoneRow, bool) {
	for _, z := range r.Zones {
		if z.Zone == id {
			return z, true
		}
	}
	return types.ZoneRow{}, false
}

// MinDwell returns the minimum dwell in frames at the given rate.
func (a *Analyzer) MinDwell(frameRate float64) int {
	k := a.minFrames
	if a.minSeconds > 0 {
		if f := int(math.Ceil(a.minSeconds*frameRate - roundSlack)); f > k {
			k = f
		}
	}
	return max(k, 1)
}

// Primary returns the configured primary zones, or nil for every zone.
func (a *Analyzer) Primary() []string { return slices.Clone(a.primary) }

// Analyze reduces t. Irregular data (missing frames, zones never entered, an
// empty trial) yields sentinel values, never an error.
func (a *Analyzer) Analyze(t *classify.Table, frameRate float64) (*Result, error) {
	if !(frameRate > 0) || math.IsInf(frameRate, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrameRate, frameRate)
	}
	if err := checkFrames(t); err != nil {
		return nil, err
	}
	primary := a.primary
	if primary == nil {
		primary = t.Zones()
	}
	for _, id := range primary {
		if !t.Has(id) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownZone, id)
		}
	}
	k := a.MinDwell(frameRate)
	frames := t.Frames()
	res := &Result{
		FrameRate:      frameRate,
		Frames:         len(frames),
		MinDwellFrames: k,
	}
	for i := range frames {
		if t.Valid(i) {
			res.ValidFrames++
		}
	}
	if n := len(frames); n > 0 {
		res.Duration = float64(frames[n-1]-frames[0]+1) / frameRate
	}
	for _, id := range t.Zones() {
		seq, _ := t.Sequence(id)
		res.Zones = append(res.Zones, zoneStats(id, seq, frames, frameRate, k))
	}
	res.Transitions = transitions(t, primary, frames, k)
	return res, nil
}

// span is a run of rows [start, end).
type span struct {
	start, end int
}

// frameLen is the length of s in frames. A run reaching the end of the
// trial lasts through its last frame.
func frameLen(s span, frames []int) int {
	return endFrame(s, frames) - frames[s.start]
}

func endFrame(s span, frames []int) int {
	if s.end < len(frames) {
		return frames[s.end]
	}
	return frames[len(frames)-1] + 1
}

func zoneStats(id string, seq []classify.Membership, frames []int, rate float64, k int) types.ZoneRow {
	row := types.ZoneRow{Zone: id, Latency: types.Never()}
	first := -1
	for i, m := range seq {
		if m == classify.Undefined {
			continue
		}
		if first < 0 {
			first = i
		}
		row.ValidFrames++
		if m == classify.Inside {
			row.InsideFrames++
		}
	}
	row.Seconds = float64(row.InsideFrames) / rate
	if row.ValidFrames > 0 {
		row.Percent = float64(row.InsideFrames) / float64(row.ValidFrames) * 100
	}
	if first < 0 {
		return row
	}

	var durations []float64
	for _, s := range insideRuns(seq) {
		initial := s.start == first
		length := frameLen(s, frames)
		if !initial && length < k {
			continue
		}
		d := types.DwellRow{
			StartFrame: frames[s.start],
			EndFrame:   endFrame(s, frames),
			Seconds:    float64(length) / rate,
			Initial:    initial,
			Complete:   s.end < len(seq),
		}
		row.Dwells = append(row.Dwells, d)
		if !initial {
			row.Entries++
			if row.Latency.IsNever() {
				row.Latency = types.After(float64(frames[s.start]-frames[0]) / rate)
			}
		}
		if d.Complete {
			row.Exits++
			if !initial {
				durations = append(durations, d.Seconds)
			}
		}
	}
	if len(durations) > 0 {
		row.MeanDwell = stat.Mean(durations, nil)
	}
	return row
}

// insideRuns returns maximal runs of Inside.
func insideRuns(seq []classify.Membership) []span {
	var out []span
	start := -1
	for i, m := range seq {
		switch {
		case m == classify.Inside && start < 0:
			start = i
		case m != classify.Inside && start >= 0:
			out = append(out, span{start, i})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, span{start, len(seq)})
	}
	return out
}
