package occupancy

import (
	"fmt"
	"math"

	"github.com/okian/zonetrack/internal/domain/classify"
	"github.com/okian/zonetrack/internal/domain/model"
)

// Bin is the analysis of one fixed-width time window.
type Bin struct {
	Index  int
	Start  float64 // seconds from the first sample
	End    float64
	Result *Result
}

// AnalyzeBins splits t into windows of binSeconds measured from the first
// sample and analyses each one on its own; the first frame of each window is
// treated as placement. Windows with no samples are left out, so the number
// of bins never exceeds the number of samples.
func (a *Analyzer) AnalyzeBins(t *classify.Table, frameRate, binSeconds float64) ([]Bin, error) {
	if !(binSeconds > 0) || math.IsInf(binSeconds, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBin, binSeconds)
	}
	if !(frameRate > 0) || math.IsInf(frameRate, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrameRate, frameRate)
	}
	if err := checkFrames(t); err != nil {
		return nil, err
	}
	n := t.Len()
	if n == 0 {
		return nil, nil
	}
	width := binSeconds * frameRate
	f0 := t.Frame(0)
	if float64(t.Frame(n-1)-f0)/width > model.MaxFrame {
		return nil, fmt.Errorf("%w: %v s is too narrow for this trial", ErrInvalidBin, binSeconds)
	}
	binOf := func(i int) int { return int(math.Floor(float64(t.Frame(i)-f0) / width)) }

	var out []Bin
	for start := 0; start < n; {
		idx := binOf(start)
		end := start
		for end < n && binOf(end) == idx {
			end++
		}
		r, err := a.Analyze(t.Slice(start, end), frameRate)
		if err != nil {
			return nil, err
		}
		out = append(out, Bin{
			Index:  idx,
			Start:  float64(idx) * binSeconds,
			End:    float64(idx+1) * binSeconds,
			Result: r,
		})
		start = end
	}
	return out, nil
}
