// Package arena holds the declarative arena model: named reference points,
// zone definitions and optional calibration. Construction validates every
// rule a resolver relies on, so a built *Arena is always resolvable up to
// geometric degeneracy.
package arena

import (
	"errors"
	"math"
	"slices"

	"github.com/okian/zonetrack/internal/domain/zonegraph"
	"gonum.org/v1/gonum/spatial/r2"
)

// Reserved state names used by the transition matrix.
const (
	StateOutside   = "outside"
	StateUndefined = "undefined"
)

// Arena is an immutable, validated arena definition.
type Arena struct {
	name        string
	points      []ReferencePoint
	pointIndex  map[string]r2.Vec
	zones       []Zone
	zoneIndex   map[string]int
	graph       *zonegraph.Graph
	order       []string
	calibration *Calibration
	orientation *Orientation
}

// New validates and builds an arena. The first broken rule is returned as a
// *ConfigurationError.
func New(name string, points []ReferencePoint, zones []Zone, opts ...Option) (*Arena, error) {
	a := &Arena{
		name:       name,
		points:     slices.Clone(points),
		pointIndex: make(map[string]r2.Vec, len(points)),
		zones:      slices.Clone(zones),
		zoneIndex:  make(map[string]int, len(zones)),
	}
	for _, o := range opts {
		o(a)
	}
	if err := a.validatePoints(); err != nil {
		return nil, err
	}
	if err := a.validateZones(); err != nil {
		return nil, err
	}
	if err := a.buildOrder(); err != nil {
		return nil, err
	}
	if err := a.validateCalibration(); err != nil {
		return nil, err
	}
	if err := a.validateOrientation(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Arena) validatePoints() error {
	for _, p := range a.points {
		if p.Name == "" {
			return configErr("", "points", "reference point name must not be empty")
		}
		if _, ok := a.pointIndex[p.Name]; ok {
			return configErr("", "points."+p.Name, "reference point names must be unique")
		}
		if !finite(p.Pos.X) || !finite(p.Pos.Y) {
			return configErr("", "points."+p.Name, "coordinates must be finite")
		}
		a.pointIndex[p.Name] = p.Pos
	}
	return nil
}

func (a *Arena) validateZones() error {
	for i, z := range a.zones {
		switch {
		case z.ID == "":
			return configErr("", "id", "zone id must not be empty")
		case z.ID == StateOutside || z.ID == StateUndefined:
			return configErr(z.ID, "id", "%q is a reserved state name", z.ID)
		}
		if _, ok := a.zoneIndex[z.ID]; ok {
			return configErr(z.ID, "id", "zone ids must be unique")
		}
		a.zoneIndex[z.ID] = i
	}
	for _, z := range a.zones {
		if err := a.validateDefinition(z); err != nil {
			return err
		}
	}
	return nil
}

func (a *Arena) validateDefinition(z Zone) error {
	switch d := z.Def.(type) {
	case Polygon:
		if len(d.Vertices) < 3 {
			return configErr(z.ID, "vertices", "polygon needs at least 3 vertices, got %d", len(d.Vertices))
		}
		for _, v := range d.Vertices {
			if err := a.checkAnchor(z.ID, "vertices", v); err != nil {
				return err
			}
		}
	case Circle:
		if err := a.checkAnchor(z.ID, "center", d.Center); err != nil {
			return err
		}
		if !(d.Radius > 0) || !finite(d.Radius) {
			return configErr(z.ID, "radius", "radius must be > 0, got %v", d.Radius)
		}
	case Rectangle:
		if !finite(d.XMin) || !finite(d.XMax) || !(d.XMin < d.XMax) {
			return configErr(z.ID, "x_min", "x_min must be < x_max, got [%v,%v]", d.XMin, d.XMax)
		}
		if !finite(d.YMin) || !finite(d.YMax) || !(d.YMin < d.YMax) {
			return configErr(z.ID, "y_min", "y_min must be < y_max, got [%v,%v]", d.YMin, d.YMax)
		}
	case Proportional:
		if d.Parent == "" {
			return configErr(z.ID, "parent_zone", "proportional zone needs a parent zone")
		}
		if _, ok := a.zoneIndex[d.Parent]; !ok {
			return configErr(z.ID, "parent_zone", "parent zone %q does not exist", d.Parent)
		}
		if d.Exclude != "" {
			if d.Exclude == z.ID {
				return configErr(z.ID, "exclude", "a zone cannot exclude itself")
			}
			if _, ok := a.zoneIndex[d.Exclude]; !ok {
				return configErr(z.ID, "exclude", "excluded zone %q does not exist", d.Exclude)
			}
		}
		return checkFraction(z.ID, d.Box)
	case nil:
		return configErr(z.ID, "type", "zone has no definition")
	default:
		return configErr(z.ID, "type", "unsupported zone definition %T", d)
	}
	return nil
}

func checkFraction(id string, f Fraction) error {
	for _, v := range []struct {
		field string
		val   float64
	}{{"fx_min", f.XMin}, {"fy_min", f.YMin}, {"fx_max", f.XMax}, {"fy_max", f.YMax}} {
		if !(v.val >= 0 && v.val <= 1) {
			return configErr(id, v.field, "fraction must be in [0,1], got %v", v.val)
		}
	}
	if !(f.XMin < f.XMax) {
		return configErr(id, "fx_min", "fx_min must be < fx_max")
	}
	if !(f.YMin < f.YMax) {
		return configErr(id, "fy_min", "fy_min must be < fy_max")
	}
	return nil
}

func (a *Arena) checkAnchor(zone, field string, an Anchor) error {
	if an.IsRef() {
		if _, ok := a.pointIndex[an.Point]; !ok {
			return configErr(zone, field, "reference point %q does not exist", an.Point)
		}
		return nil
	}
	if !finite(an.Lit.X) || !finite(an.Lit.Y) {
		return configErr(zone, field, "coordinate must be finite")
	}
	return nil
}

func (a *Arena) buildOrder() error {
	nodes := make([]zonegraph.Node, len(a.zones))
	for i, z := range a.zones {
		nodes[i] = zonegraph.Node{ID: z.ID, DependsOn: z.Def.dependsOn()}
	}
	g, err := zonegraph.New(nodes)
	if err != nil {
		return &ConfigurationError{Field: "parent_zone", Rule: err.Error(), Err: err}
	}
	order, err := g.Order()
	if err != nil {
		var cyc *zonegraph.CycleError
		if errors.As(err, &cyc) {
			return &ConfigurationError{ZoneID: cyc.Cycles[0][0], Field: "parent_zone", Rule: err.Error(), Err: err}
		}
		return &ConfigurationError{Field: "parent_zone", Rule: err.Error(), Err: err}
	}
	a.graph = g
	a.order = order
	return nil
}

func (a *Arena) validateCalibration() error {
	c := a.calibration
	if c == nil {
		return nil
	}
	if err := a.checkAnchor("", "calibration.from", c.From); err != nil {
		return err
	}
	if err := a.checkAnchor("", "calibration.to", c.To); err != nil {
		return err
	}
	if !(c.Distance > 0) || !finite(c.Distance) {
		return configErr("", "calibration.distance", "distance must be > 0, got %v", c.Distance)
	}
	return nil
}

func (a *Arena) validateOrientation() error {
	o := a.orientation
	if o == nil {
		return nil
	}
	if !finite(o.RotationDeg) {
		return configErr("", "orientation.rotation", "rotation must be finite")
	}
	if o.Pivot != nil {
		if err := a.checkAnchor("", "orientation.pivot", *o.Pivot); err != nil {
			return err
		}
	}
	if o.Origin != nil {
		if err := a.checkAnchor("", "orientation.origin", *o.Origin); err != nil {
			return err
		}
	}
	return nil
}

// Name returns the arena name.
func (a *Arena) Name() string { return a.name }

// Points returns the reference points in declaration order.
func (a *Arena) Points() []ReferencePoint { return slices.Clone(a.points) }

// Locate returns the raw coordinate of an anchor.
func (a *Arena) Locate(an Anchor) (r2.Vec, error) {
	if !an.IsRef() {
		return an.Lit, nil
	}
	p, ok := a.pointIndex[an.Point]
	if !ok {
		return r2.Vec{}, fmtUnknown(ErrUnknownPoint, an.Point)
	}
	return p, nil
}

// Zone looks up a zone by id.
func (a *Arena) Zone(id string) (Zone, bool) {
	i, ok := a.zoneIndex[id]
	if !ok {
		return Zone{}, false
	}
	return a.zones[i], true
}

// Zones returns the zones in declaration order.
func (a *Arena) Zones() []Zone { return slices.Clone(a.zones) }

// DependencyOrder returns zone ids so that every zone follows its parent and
// excluded sibling.
func (a *Arena) DependencyOrder() []string { return slices.Clone(a.order) }

// DependsOn returns the zones id is derived from.
func (a *Arena) DependsOn(id string) []string { return a.graph.DependsOn(id) }

// Children returns the proportional zones whose parent is id, in declaration
// order. Exclusion edges are not included.
func (a *Arena) Children(id string) []string {
	var out []string
	for _, z := range a.zones {
		if p, ok := z.Def.(Proportional); ok && p.Parent == id {
			out = append(out, z.ID)
		}
	}
	return out
}

// Calibration returns the calibration, if set.
func (a *Arena) Calibration() (Calibration, bool) {
	if a.calibration == nil {
		return Calibration{}, false
	}
	return *a.calibration, true
}

// Orientation returns the orientation, if set.
func (a *Arena) Orientation() (Orientation, bool) {
	if a.orientation == nil {
		return Orientation{}, false
	}
	o := *a.orientation
	o.Order = slices.Clone(o.Order)
	return o, true
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
