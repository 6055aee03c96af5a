// Package classify tests positions against resolved zones and records the
// per-frame membership of a trial.
package classify

import (
	"errors"
	"fmt"
	"slices"

	"github.com/okian/zonetrack/internal/domain/geometry"
	"github.com/okian/zonetrack/internal/domain/model"
)

// Sentinel errors.
var (
	ErrFrameOrder   = errors.New("frames must be strictly increasing")
	ErrLength       = errors.New("membership sequence length mismatch")
	ErrUnknownZone  = errors.New("unknown zone")
	ErrMissingShape = errors.New("zone has no shape")
)

// Membership is the classification of one position against one zone.
type Membership int8

// Membership states. Undefined is a missing position, never a false negative.
const (
	Outside Membership = iota
	Inside
	Undefined
)

func (m Membership) String() string {
	switch m {
	case Outside:
		return "outside"
	case Inside:
		return "inside"
	case Undefined:
		return "undefined"
	default:
		return fmt.Sprintf("membership(%d)", int8(m))
	}
}

// Classify tests one position against one shape.
func Classify(s geometry.Shape, pos model.Position) Membership {
	p, ok := pos.Get()
	if !ok {
		return Undefined
	}
	if s.Contains(p) {
		return Inside
	}
	return Outside
}

// Source provides resolved zones; *resolve.Zones satisfies it.
type Source interface {
	IDs() []string
	Shape(id string) (geometry.Shape, bool)
}

// Classifier classifies positions against a fixed zone set.
type Classifier struct {
	ids    []string
	shapes []geometry.Shape
}

// New snapshots the zones of src in its id order.
func New(src Source) (*Classifier, error) {
	ids := src.IDs()
	c := &Classifier{ids: ids, shapes: make([]geometry.Shape, len(ids))}
	for i, id := range ids {
		s, ok := src.Shape(id)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingShape, id)
		}
		c.shapes[i] = s
	}
	return c, nil
}

// Zones returns the zone ids in classification order.
func (c *Classifier) Zones() []string { return slices.Clone(c.ids) }

// Point classifies one position against every zone.
func (c *Classifier) Point(pos model.Position) []Membership {
	out := make([]Membership, len(c.shapes))
	for i, s := range c.shapes {
		out[i] = Classify(s, pos)
	}
	return out
}

// Inside lists the zones containing pos. Overlap is legal, so several zones
// may be returned.
func (c *Classifier) Inside(pos model.Position) []string {
	var out []string
	for i, m := range c.Point(pos) {
		if m == Inside {
			out = append(out, c.ids[i])
		}
	}
	return out
}

// Table classifies every sample. Samples must already be in the physical
// frame and ordered by strictly increasing frame index.
func (c *Classifier) Table(samples []model.Sample) (*Table, error) {
	t := &Table{
		zones:  slices.Clone(c.ids),
		index:  indexOf(c.ids),
		frames: make([]int, len(samples)),
		valid:  make([]bool, len(samples)),
		rows:   make([][]Membership, len(c.ids)),
	}
	for z := range t.rows {
		t.rows[z] = make([]Membership, len(samples))
	}
	for i, s := range samples {
		if i > 0 && s.Frame <= samples[i-1].Frame {
			return nil, fmt.Errorf("%w: frame %d follows %d", ErrFrameOrder, s.Frame, samples[i-1].Frame)
		}
		t.frames[i] = s.Frame
		t.valid[i] = s.Pos.Valid()
		for z, shape := range c.shapes {
			t.rows[z][i] = Classify(shape, s.Pos)
		}
	}
	return t, nil
}

func indexOf(ids []string) map[string]int {
	m := make(map[string]int, len(ids))
	for i, id := range ids {
		m[id] = i
	}
	return m
}
