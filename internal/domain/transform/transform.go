// Package transform maps raw tracker coordinates into the arena's physical
// frame. Each stage is a pure function over a point; a Pipeline applies them
// in order.
package transform

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/okian/zonetrack/internal/domain/geometry"
	"gonum.org/v1/gonum/spatial/r2"
)

// ErrInvalidOrder reports an unknown, repeated or missing stage in a custom
// order.
var ErrInvalidOrder = errors.New("invalid stage order")

// Kind names a stage.
type Kind string

// Stage kinds.
const (
	KindScale     Kind = "scale"
	KindRotate    Kind = "rotate"
	KindTranslate Kind = "translate"
	KindFlipY     Kind = "flip_y"
)

// DefaultOrder is scale, rotate, translate, flip.
var DefaultOrder = []Kind{KindScale, KindRotate, KindTranslate, KindFlipY}

// Stage is one step of a pipeline.
type Stage interface {
	Kind() Kind
	Apply(p r2.Vec) r2.Vec
	// Factor is the uniform length scale the stage applies.
	Factor() float64
}

// Scale multiplies both axes by K.
type Scale struct{ K float64 }

func (Scale) Kind() Kind              { return KindScale }
func (s Scale) Apply(p r2.Vec) r2.Vec { return r2.Scale(s.K, p) }
func (s Scale) Factor() float64       { return s.K }

// Rotate turns points counter-clockwise by Deg degrees about Pivot.
type Rotate struct {
	Deg   float64
	Pivot r2.Vec
	rot   r2.Rotation
}

// NewRotate builds a rotation stage.
func NewRotate(deg float64, pivot r2.Vec) Rotate {
	return Rotate{Deg: deg, Pivot: pivot, rot: r2.NewRotation(deg*math.Pi/180, pivot)}
}

func (Rotate) Kind() Kind              { return KindRotate }
func (r Rotate) Apply(p r2.Vec) r2.Vec { return r.rot.Rotate(p) }
func (Rotate) Factor() float64         { return 1 }

// Translate recentres points on Origin.
type Translate struct{ Origin r2.Vec }

func (Translate) Kind() Kind              { return KindTranslate }
func (t Translate) Apply(p r2.Vec) r2.Vec { return r2.Sub(p, t.Origin) }
func (Translate) Factor() float64         { return 1 }

// FlipY inverts the y axis.
type FlipY struct{}

func (FlipY) Kind() Kind            { return KindFlipY }
func (FlipY) Apply(p r2.Vec) r2.Vec { return r2.Vec{X: p.X, Y: -p.Y} }
func (FlipY) Factor() float64       { return 1 }

// ScaleFromCalibration returns units per raw unit given two raw points a known
// real distance apart.
func ScaleFromCalibration(p1, p2 r2.Vec, realDistance float64) (float64, error) {
	if !(realDistance > 0) || math.IsInf(realDistance, 0) {
		return 0, geometry.Invalid("calibration", "real distance must be positive and finite, got %v", realDistance)
	}
	d := r2.Norm(r2.Sub(p2, p1))
	if d == 0 {
		return 0, geometry.Invalid("calibration", "calibration points coincide at (%g,%g)", p1.X, p1.Y)
	}
	return realDistance / d, nil
}

// Pipeline applies stages in order. The zero value is the identity.
type Pipeline struct {
	stages []Stage
}

// NewPipeline composes stages in the given order.
func NewPipeline(stages ...Stage) *Pipeline {
	return &Pipeline{stages: slices.Clone(stages)}
}

// Identity is the pipeline with no stages.
func Identity() *Pipeline { return &Pipeline{} }

// Apply maps a raw point into the physical frame.
func (p *Pipeline) Apply(pt r2.Vec) r2.Vec {
	for _, s := range p.stages {
		pt = s.Apply(pt)
	}
	return pt
}

// Factor is the product of every stage's length scale.
func (p *Pipeline) Factor() float64 {
	f := 1.0
	for _, s := range p.stages {
		f *= s.Factor()
	}
	return f
}

// IsIdentity reports whether the pipeline has no stages.
func (p *Pipeline) IsIdentity() bool { return len(p.stages) == 0 }

// Stages returns the stages in application order.
func (p *Pipeline) Stages() []Stage { return slices.Clone(p.stages) }

// Spec declares a pipeline. Zero Scale means no scaling; nil Pivot rotates
// about the raw origin; nil Origin skips translation. Pivot and Origin are raw
// coordinates.
type Spec struct {
	Scale       float64
	RotationDeg float64
	Pivot       *r2.Vec
	Origin      *r2.Vec
	FlipY       bool
	Order       []Kind
}

// Build composes the stages a Spec enables in Spec.Order (DefaultOrder when
// empty). Stages that would have no effect are left out; a custom order must
// still name every stage the Spec enables. Pivot and Origin are
// carried through the stages before them so they keep naming the same
// physical location.
func Build(s Spec) (*Pipeline, error) {
	order := s.Order
	if len(order) == 0 {
		order = DefaultOrder
	}
	if err := checkOrder(order); err != nil {
		return nil, err
	}
	if s.Scale < 0 || math.IsNaN(s.Scale) || math.IsInf(s.Scale, 0) {
		return nil, geometry.Invalid("scale", "scale must be positive and finite, got %v", s.Scale)
	}
	if len(s.Order) > 0 {
		for _, k := range s.enabled() {
			if !slices.Contains(order, k) {
				return nil, fmt.Errorf("%w: stage %q is enabled but not ordered", ErrInvalidOrder, k)
			}
		}
	}
	p := &Pipeline{}
	for _, k := range order {
		switch k {
		case KindScale:
			if s.Scale != 0 && s.Scale != 1 {
				p.stages = append(p.stages, Scale{K: s.Scale})
			}
		case KindRotate:
			if s.RotationDeg != 0 {
				var pivot r2.Vec
				if s.Pivot != nil {
					pivot = *s.Pivot
				}
				p.stages = append(p.stages, NewRotate(s.RotationDeg, p.Apply(pivot)))
			}
		case KindTranslate:
			if s.Origin != nil {
				p.stages = append(p.stages, Translate{Origin: p.Apply(*s.Origin)})
			}
		case KindFlipY:
			if s.FlipY {
				p.stages = append(p.stages, FlipY{})
			}
		}
	}
	return p, nil
}

// enabled lists the stages that have an effect, in DefaultOrder.
func (s Spec) enabled() []Kind {
	var out []Kind
	if s.Scale != 0 && s.Scale != 1 {
		out = append(out, KindScale)
	}
	if s.RotationDeg != 0 {
		out = append(out, KindRotate)
	}
	if s.Origin != nil {
		out = append(out, KindTranslate)
	}
	if s.FlipY {
		out = append(out, KindFlipY)
	}
	return out
}

// ParseOrder converts stage names.
func ParseOrder(names []string) ([]Kind, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]Kind, len(names))
	for i, n := range names {
		out[i] = Kind(n)
	}
	if err := checkOrder(out); err != nil {
		return nil, err
	}
	return out, nil
}

func checkOrder(order []Kind) error {
	seen := make(map[Kind]bool, len(order))
	for _, k := range order {
		if !slices.Contains(DefaultOrder, k) {
			return fmt.Errorf("%w: unknown stage %q", ErrInvalidOrder, k)
		}
		if seen[k] {
			return fmt.Errorf("%w: stage %q repeated", ErrInvalidOrder, k)
		}
		seen[k] = true
	}
	return nil
}
