// Package model contains domain models passed between layers.
package model

import (
	"time"

	"gonum.org/v1/gonum/spatial/r2"
)

// Position is an optional coordinate. The zero value is missing.
type Position struct {
	p  r2.Vec
	ok bool
}

// At is a detected position.
func At(x, y float64) Position { return Position{p: r2.Vec{X: x, Y: y}, ok: true} }

// Missing is a frame with no detection.
func Missing() Position { return Position{} }

// Get returns the coordinate and whether it is present.
func (p Position) Get() (r2.Vec, bool) { return p.p, p.ok }

// Valid reports whether the position is present.
func (p Position) Valid() bool { return p.ok }

// Map returns the position transformed by f; missing stays missing.
func (p Position) Map(f func(r2.Vec) r2.Vec) Position {
	if !p.ok {
		return p
	}
	return Position{p: f(p.p), ok: true}
}

// MaxFrame bounds the magnitude of a frame number. Differences of two
// bounded frames fit an int and convert to float64 exactly.
const MaxFrame = 1 << 52

// Sample is one tracked frame. Likelihood is the tracker's confidence in
// [0,1]; trackers without one report 1.
type Sample struct {
	Frame      int
	Pos        Position
	Likelihood float64
}

// Trial is one subject's recording submitted for analysis.
type Trial struct {
	ID        string            // unique id for idempotency
	Subject   string            // animal / subject identifier
	FrameRate float64           // frames per second
	Samples   []Sample          // ordered by Frame
	Labels    map[string]string // free-form metadata, e.g. group, session
	Received  time.Time
}

// Duration is the span covered by the samples in seconds.
func (t Trial) Duration() float64 {
	if len(t.Samples) == 0 || t.FrameRate <= 0 {
		return 0
	}
	first, last := float64(t.Samples[0].Frame), float64(t.Samples[len(t.Samples)-1].Frame)
	return (last - first + 1) / t.FrameRate
}
