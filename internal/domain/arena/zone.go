package arena

import (
	"fmt"

	"github.com/okian/zonetrack/internal/domain/geometry"
	"gonum.org/v1/gonum/spatial/r2"
)

// ReferencePoint is a named coordinate in raw (pre-transform) units.
type ReferencePoint struct {
	Name string
	Pos  r2.Vec
}

// Anchor is either a reference point name or a literal coordinate.
type Anchor struct {
	Point string
	Lit   r2.Vec
}

// Ref anchors to a named reference point.
func Ref(name string) Anchor { return Anchor{Point: name} }

// At anchors to a literal coordinate.
func At(x, y float64) Anchor { return Anchor{Lit: r2.Vec{X: x, Y: y}} }

// IsRef reports whether the anchor names a reference point.
func (a Anchor) IsRef() bool { return a.Point != "" }

func (a Anchor) String() string {
	if a.IsRef() {
		return a.Point
	}
	return fmt.Sprintf("(%g,%g)", a.Lit.X, a.Lit.Y)
}

// Definition is the closed set of zone variants: Polygon, Circle, Rectangle
// and Proportional.
type Definition interface {
	Kind() geometry.Kind
	// dependsOn lists the zones this definition is derived from.
	dependsOn() []string
}

// KindProportional tags proportional zones. Resolved proportional zones are
// rectangles or differences.
const KindProportional geometry.Kind = "proportional"

// Polygon is a closed boundary through at least three anchors.
type Polygon struct {
	Vertices []Anchor
}

// Circle is a disc around an anchor.
type Circle struct {
	Center Anchor
	Radius float64
}

// Rectangle is an axis-aligned box in raw units.
type Rectangle struct {
	XMin, YMin, XMax, YMax float64
}

// Fraction is a sub-box of a parent bounding box, each bound in [0,1].
type Fraction struct {
	XMin, YMin, XMax, YMax float64
}

// Proportional is a fractional sub-box of the parent zone's bounding box,
// optionally minus a sibling zone.
type Proportional struct {
	Parent  string
	Box     Fraction
	Exclude string
}

func (Polygon) Kind() geometry.Kind      { return geometry.KindPolygon }
func (Circle) Kind() geometry.Kind       { return geometry.KindCircle }
func (Rectangle) Kind() geometry.Kind    { return geometry.KindRect }
func (Proportional) Kind() geometry.Kind { return KindProportional }

func (Polygon) dependsOn() []string   { return nil }
func (Circle) dependsOn() []string    { return nil }
func (Rectangle) dependsOn() []string { return nil }

func (p Proportional) dependsOn() []string {
	if p.Exclude == "" {
		return []string{p.Parent}
	}
	return []string{p.Parent, p.Exclude}
}

// Zone is a named region definition.
type Zone struct {
	ID   string
	Name string
	Def  Definition
}

// DisplayName falls back to the id.
func (z Zone) DisplayName() string {
	if z.Name == "" {
		return z.ID
	}
	return z.Name
}

// Calibration sets the raw-to-physical scale from two anchors a known
// distance apart.
type Calibration struct {
	From     Anchor
	To       Anchor
	Distance float64
	Units    string
}

// Orientation describes the rotation, recentring and axis flip applied after
// scaling. Order lists stage names; empty means the default order.
type Orientation struct {
	RotationDeg float64
	Pivot       *Anchor
	Origin      *Anchor
	FlipY       bool
	Order       []string
}
