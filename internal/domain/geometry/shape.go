// Package geometry holds resolved, dependency-free zone shapes and their
// point-membership predicates. Shapes are immutable once built.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// alignTolerance bounds the drift allowed when deciding whether a mapped
// rectangle is still axis aligned.
const alignTolerance = 1e-9

// Kind tags the concrete shape behind a Shape.
type Kind string

// Shape kinds.
const (
	KindPolygon    Kind = "polygon"
	KindCircle     Kind = "circle"
	KindRect       Kind = "rectangle"
	KindDifference Kind = "difference"
)

// Shape is a resolved zone region.
type Shape interface {
	Kind() Kind
	// Contains reports whether p lies inside the region.
	Contains(p r2.Vec) bool
	// Bounds returns the axis-aligned bounding box of the region.
	Bounds() r2.Box
}

// Mapper maps points between coordinate frames. Factor is the uniform length
// scale the mapping applies, used to carry radii across.
type Mapper interface {
	Apply(p r2.Vec) r2.Vec
	Factor() float64
}

// Circle is a disc, boundary inclusive.
type Circle struct {
	Center r2.Vec
	Radius float64
}

// NewCircle validates the radius.
func NewCircle(center r2.Vec, radius float64) (Circle, error) {
	if !(radius > 0) || math.IsInf(radius, 0) {
		return Circle{}, Invalid("circle", "radius must be positive and finite, got %v", radius)
	}
	return Circle{Center: center, Radius: radius}, nil
}

func (c Circle) Kind() Kind { return KindCircle }

func (c Circle) Contains(p r2.Vec) bool {
	return r2.Norm2(r2.Sub(p, c.Center)) <= c.Radius*c.Radius
}

func (c Circle) Bounds() r2.Box {
	return r2.Box{
		Min: r2.Vec{X: c.Center.X - c.Radius, Y: c.Center.Y - c.Radius},
		Max: r2.Vec{X: c.Center.X + c.Radius, Y: c.Center.Y + c.Radius},
	}
}

// Rect is an axis-aligned box, boundary inclusive.
type Rect struct {
	Box r2.Box
}

// NewRect requires xMin < xMax and yMin < yMax.
func NewRect(xMin, yMin, xMax, yMax float64) (Rect, error) {
	if !(xMin < xMax) || !(yMin < yMax) {
		return Rect{}, Invalid("rectangle", "bounds must satisfy x_min < x_max and y_min < y_max, got x=[%v,%v] y=[%v,%v]", xMin, xMax, yMin, yMax)
	}
	return Rect{Box: r2.Box{Min: r2.Vec{X: xMin, Y: yMin}, Max: r2.Vec{X: xMax, Y: yMax}}}, nil
}

func (r Rect) Kind() Kind { return KindRect }

func (r Rect) Contains(p r2.Vec) bool {
	return r.Box.Min.X <= p.X && p.X <= r.Box.Max.X &&
		r.Box.Min.Y <= p.Y && p.Y <= r.Box.Max.Y
}

func (r Rect) Bounds() r2.Box { return r.Box }

// SubBox returns the fractional sub-box of b. Fractions are measured from
// b.Min along each axis.
func SubBox(b r2.Box, fxMin, fyMin, fxMax, fyMax float64) r2.Box {
	size := b.Size()
	return r2.Box{
		Min: r2.Vec{X: b.Min.X + fxMin*size.X, Y: b.Min.Y + fyMin*size.Y},
		Max: r2.Vec{X: b.Min.X + fxMax*size.X, Y: b.Min.Y + fyMax*size.Y},
	}
}

// Difference is Base minus Cut. The effective region is not a box even when
// Base is one, so membership always consults Cut.
type Difference struct {
	Base Shape
	Cut  Shape
}

func (d Difference) Kind() Kind { return KindDifference }

func (d Difference) Contains(p r2.Vec) bool {
	return d.Base.Contains(p) && !d.Cut.Contains(p)
}

func (d Difference) Bounds() r2.Box { return d.Base.Bounds() }

// Map carries s into the frame described by m. Rectangles that stay axis
// aligned remain rectangles; rotated ones become polygons.
func Map(s Shape, m Mapper) (Shape, error) {
	switch v := s.(type) {
	case Polygon:
		vs := make([]r2.Vec, len(v.vertices))
		for i, p := range v.vertices {
			vs[i] = m.Apply(p)
		}
		return NewPolygon(vs)
	case Circle:
		return NewCircle(m.Apply(v.Center), v.Radius*math.Abs(m.Factor()))
	case Rect:
		return mapRect(v, m)
	case Difference:
		base, err := Map(v.Base, m)
		if err != nil {
			return nil, err
		}
		cut, err := Map(v.Cut, m)
		if err != nil {
			return nil, err
		}
		return Difference{Base: base, Cut: cut}, nil
	default:
		return nil, Invalid("map", "unsupported shape %T", s)
	}
}

func mapRect(r Rect, m Mapper) (Shape, error) {
	corners := []r2.Vec{
		m.Apply(r.Box.Min),
		m.Apply(r2.Vec{X: r.Box.Max.X, Y: r.Box.Min.Y}),
		m.Apply(r.Box.Max),
		m.Apply(r2.Vec{X: r.Box.Min.X, Y: r.Box.Max.Y}),
	}
	if axisAligned(corners) {
		b := boundsOf(corners)
		return NewRect(b.Min.X, b.Min.Y, b.Max.X, b.Max.Y)
	}
	return NewPolygon(corners)
}

func axisAligned(c []r2.Vec) bool {
	for i := range c {
		a, b := c[i], c[(i+1)%len(c)]
		if math.Abs(a.X-b.X) > alignTolerance && math.Abs(a.Y-b.Y) > alignTolerance {
			return false
		}
	}
	return true
}

func boundsOf(vs []r2.Vec) r2.Box {
	b := r2.Box{Min: vs[0], Max: vs[0]}
	for _, v := range vs[1:] {
		b.Min.X = math.Min(b.Min.X, v.X)
		b.Min.Y = math.Min(b.Min.Y, v.Y)
		b.Max.X = math.Max(b.Max.X, v.X)
		b.Max.Y = math.Max(b.Max.Y, v.Y)
	}
	return b
}
