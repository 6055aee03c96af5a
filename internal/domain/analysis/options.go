package analysis

import (
	"time"

	"github.com/okian/zonetrack/pkg/logger"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLikelihoodThreshold treats samples whose tracker confidence is below t
// as missing. Zero disables the check.
func WithLikelihoodThreshold(t float64) Option {
	return func(e *Engine) {
		e.threshold = t
	}
}

// WithMinDwellFrames sets the minimum dwell, in frames, for a counted entry.
func WithMinDwellFrames(k int) Option {
	return func(e *Engine) {
		e.minFrames = k
	}
}

// WithMinDwellSeconds sets the minimum dwell, in seconds, for a counted entry.
func WithMinDwellSeconds(s float64) Option {
	return func(e *Engine) {
		e.minSeconds = s
	}
}

// WithPrimaryZones sets the transition matrix zones. Without it the engine
// uses every zone that is not the parent of a proportional zone.
func WithPrimaryZones(ids ...string) Option {
	return func(e *Engine) {
		e.primary = append([]string(nil), ids...)
	}
}

// WithBinSeconds adds a time-binned breakdown to every report.
func WithBinSeconds(s float64) Option {
	return func(e *Engine) {
		e.binSeconds = s
	}
}

// WithMaxSamples rejects trials longer than n samples. Zero means no limit.
func WithMaxSamples(n int) Option {
	return func(e *Engine) {
		e.maxSamples = n
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithClock overrides the time source used to stamp reports.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}
