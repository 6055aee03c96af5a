package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// minVertices is the smallest vertex count of a closed boundary.
const minVertices = 3

// Polygon is a simple closed boundary. The closing edge is implicit.
type Polygon struct {
	vertices []r2.Vec
	bounds   r2.Box
}

// NewPolygon drops repeated consecutive vertices (including an explicit
// closing vertex) and rejects boundaries with fewer than three distinct
// vertices or zero area.
func NewPolygon(vs []r2.Vec) (Polygon, error) {
	out := make([]r2.Vec, 0, len(vs))
	for _, v := range vs {
		if math.IsNaN(v.X) || math.IsNaN(v.Y) {
			return Polygon{}, Invalid("polygon", "vertex is NaN")
		}
		if len(out) > 0 && out[len(out)-1] == v {
			continue
		}
		out = append(out, v)
	}
	if len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	if len(out) < minVertices {
		return Polygon{}, Invalid("polygon", "need at least %d distinct vertices, got %d", minVertices, len(out))
	}
	p := Polygon{vertices: out, bounds: boundsOf(out)}
	if p.Area() == 0 {
		return Polygon{}, Invalid("polygon", "vertices are collinear")
	}
	return p, nil
}

func (p Polygon) Kind() Kind { return KindPolygon }

// Vertices returns a copy of the boundary vertices.
func (p Polygon) Vertices() []r2.Vec {
	return append([]r2.Vec(nil), p.vertices...)
}

func (p Polygon) Bounds() r2.Box { return p.bounds }

// Area is the absolute shoelace area.
func (p Polygon) Area() float64 {
	var sum float64
	n := len(p.vertices)
	for i := range p.vertices {
		sum += r2.Cross(p.vertices[i], p.vertices[(i+1)%n])
	}
	return math.Abs(sum) / 2
}

// Contains casts a ray towards +X and counts edge crossings. An edge takes
// part only when min(y1,y2) <= p.Y < max(y1,y2), so a vertex shared by two
// edges on the ray is counted once and horizontal edges never count. The
// result is deterministic at shared zone boundaries: points on the low-x and
// low-y sides of a boundary are inside, the opposite sides are outside.
func (p Polygon) Contains(pt r2.Vec) bool {
	b := p.bounds
	if pt.X < b.Min.X || pt.X > b.Max.X || pt.Y < b.Min.Y || pt.Y > b.Max.Y {
		return false
	}
	inside := false
	n := len(p.vertices)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, c := p.vertices[j], p.vertices[i]
		if (a.Y <= pt.Y) == (c.Y <= pt.Y) {
			continue
		}
		x := a.X + (pt.Y-a.Y)*(c.X-a.X)/(c.Y-a.Y)
		if pt.X < x {
			inside = !inside
		}
	}
	return inside
}
