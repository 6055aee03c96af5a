package occupancy

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithMinDwellFrames drops entries whose dwell before the next exit lasts
// fewer than k frames. k <= 1 disables the filter.
func WithMinDwellFrames(k int) Option {
	return func(a *Analyzer) {
		a.minFrames = k
	}
}

// WithMinDwellSeconds is WithMinDwellFrames expressed in seconds; it is
// converted with the trial's frame rate, rounding up. When both are set the
// stricter one applies.
func WithMinDwellSeconds(s float64) Option {
	return func(a *Analyzer) {
		a.minSeconds = s
	}
}

// WithPrimaryZones sets the zones that make up the transition matrix, in
// order. When zones overlap, the first one listed wins a frame.
func WithPrimaryZones(ids ...string) Option {
	return func(a *Analyzer) {
		a.primary = append([]string(nil), ids...)
	}
}
