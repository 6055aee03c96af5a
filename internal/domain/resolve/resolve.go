// Package resolve turns a validated arena into concrete zone shapes in the
// physical frame. Zones are resolved in dependency order so a proportional
// zone always finds its parent and excluded sibling already built.
package resolve

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/okian/zonetrack/internal/domain/arena"
	"github.com/okian/zonetrack/internal/domain/geometry"
	"github.com/okian/zonetrack/internal/domain/transform"
	"gonum.org/v1/gonum/spatial/r2"
)

// Zones is the resolved, immutable geometry of an arena. It is safe for
// concurrent reads.
type Zones struct {
	ids      []string
	order    []string
	names    map[string]string
	shapes   map[string]geometry.Shape
	pipeline *transform.Pipeline
}

// Resolve builds every zone of a through p. A nil p is the identity. The
// first failure stops resolution and no partial result is returned.
func Resolve(a *arena.Arena, p *transform.Pipeline) (*Zones, error) {
	if p == nil {
		p = transform.Identity()
	}
	zs := &Zones{
		order:    a.DependencyOrder(),
		names:    make(map[string]string),
		shapes:   make(map[string]geometry.Shape),
		pipeline: p,
	}
	for _, z := range a.Zones() {
		zs.ids = append(zs.ids, z.ID)
		zs.names[z.ID] = z.DisplayName()
	}
	for _, id := range zs.order {
		z, _ := a.Zone(id)
		s, err := zs.resolveZone(a, z)
		if err != nil {
			return nil, err
		}
		zs.shapes[id] = s
	}
	return zs, nil
}

func (zs *Zones) resolveZone(a *arena.Arena, z arena.Zone) (geometry.Shape, error) {
	switch d := z.Def.(type) {
	case arena.Polygon:
		vs := make([]r2.Vec, len(d.Vertices))
		for i, an := range d.Vertices {
			v, err := zs.locate(a, z.ID, "vertices", an)
			if err != nil {
				return nil, err
			}
			vs[i] = v
		}
		s, err := geometry.NewPolygon(vs)
		return s, zoneGeometryErr(z.ID, err)
	case arena.Circle:
		c, err := zs.locate(a, z.ID, "center", d.Center)
		if err != nil {
			return nil, err
		}
		s, err := geometry.NewCircle(c, d.Radius*math.Abs(zs.pipeline.Factor()))
		return s, zoneGeometryErr(z.ID, err)
	case arena.Rectangle:
		r, err := geometry.NewRect(d.XMin, d.YMin, d.XMax, d.YMax)
		if err != nil {
			return nil, zoneGeometryErr(z.ID, err)
		}
		s, err := geometry.Map(r, zs.pipeline)
		return s, zoneGeometryErr(z.ID, err)
	case arena.Proportional:
		return zs.resolveProportional(z.ID, d)
	default:
		return nil, &arena.ConfigurationError{ZoneID: z.ID, Field: "type", Rule: fmt.Sprintf("unsupported zone definition %T", d)}
	}
}

// resolveProportional applies the fraction to the parent's bounding box. With
// an exclusion the result is the box minus the sibling's own shape, which is
// generally not a box.
func (zs *Zones) resolveProportional(id string, d arena.Proportional) (geometry.Shape, error) {
	parent, ok := zs.shapes[d.Parent]
	if !ok {
		return nil, &arena.ConfigurationError{ZoneID: id, Field: "parent_zone", Rule: fmt.Sprintf("parent zone %q is not resolved", d.Parent)}
	}
	b := geometry.SubBox(parent.Bounds(), d.Box.XMin, d.Box.YMin, d.Box.XMax, d.Box.YMax)
	box, err := geometry.NewRect(b.Min.X, b.Min.Y, b.Max.X, b.Max.Y)
	if err != nil {
		return nil, zoneGeometryErr(id, err)
	}
	if d.Exclude == "" {
		return box, nil
	}
	cut, ok := zs.shapes[d.Exclude]
	if !ok {
		return nil, &arena.ConfigurationError{ZoneID: id, Field: "exclude", Rule: fmt.Sprintf("excluded zone %q is not resolved", d.Exclude)}
	}
	return geometry.Difference{Base: box, Cut: cut}, nil
}

func (zs *Zones) locate(a *arena.Arena, id, field string, an arena.Anchor) (r2.Vec, error) {
	v, err := a.Locate(an)
	if err != nil {
		return r2.Vec{}, &arena.ConfigurationError{ZoneID: id, Field: field, Rule: err.Error(), Err: err}
	}
	return zs.pipeline.Apply(v), nil
}

// zoneGeometryErr renames the subject of a geometry error to the zone.
func zoneGeometryErr(id string, err error) error {
	if err == nil {
		return nil
	}
	var ge *geometry.InvalidGeometryError
	if errors.As(err, &ge) {
		return &geometry.InvalidGeometryError{Subject: "zone " + id, Reason: ge.Subject + ": " + ge.Reason}
	}
	return fmt.Errorf("zone %s: %w", id, err)
}

// IDs returns zone ids in declaration order.
func (zs *Zones) IDs() []string { return slices.Clone(zs.ids) }

// Order returns zone ids in resolution order.
func (zs *Zones) Order() []string { return slices.Clone(zs.order) }

// Shape returns the resolved shape of a zone.
func (zs *Zones) Shape(id string) (geometry.Shape, bool) {
	s, ok := zs.shapes[id]
	return s, ok
}

// Name returns a zone's display name.
func (zs *Zones) Name(id string) string { return zs.names[id] }

// Len is the number of zones.
func (zs *Zones) Len() int { return len(zs.ids) }

// Pipeline returns the transform the zones were resolved through.
func (zs *Zones) Pipeline() *transform.Pipeline { return zs.pipeline }
