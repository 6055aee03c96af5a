package config

import (
	"context"
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/okian/zonetrack/internal/domain/arena"
	"gonum.org/v1/gonum/spatial/r2"
)

// ArenaFile is the YAML layout of an arena definition.
//
//	name: open-field
//	points:
//	  - {name: bl, x: 0, y: 0}
//	zones:
//	  - {id: floor, type: polygon, vertices: [{point: bl}, {point: br}, {point: tr}, {x: 0, y: 500}]}
//	  - {id: center, type: proportional, parent_zone: floor, fx_min: 0.25, fy_min: 0.25, fx_max: 0.75, fy_max: 0.75}
//	  - {id: periphery, type: proportional, parent_zone: floor, fx_max: 1, fy_max: 1, exclude: center}
//	calibration: {from: {point: bl}, to: {point: br}, distance: 50, units: cm}
type ArenaFile struct {
	Name        string           `koanf:"name"`
	Points      []PointFile      `koanf:"points"`
	Zones       []ZoneFile       `koanf:"zones"`
	Calibration *CalibrationFile `koanf:"calibration"`
	Orientation *OrientationFile `koanf:"orientation"`
}

// PointFile is a named reference point.
type PointFile struct {
	Name string  `koanf:"name"`
	X    float64 `koanf:"x"`
	Y    float64 `koanf:"y"`
}

// AnchorFile names a reference point or gives a literal coordinate.
type AnchorFile struct {
	Point string   `koanf:"point"`
	X     *float64 `koanf:"x"`
	Y     *float64 `koanf:"y"`
}

// ZoneFile is one zone. Which fields apply depends on Type.
type ZoneFile struct {
	ID   string `koanf:"id"`
	Name string `koanf:"name"`
	Type string `koanf:"type"`

	Vertices []AnchorFile `koanf:"vertices"`

	Center *AnchorFile `koanf:"center"`
	Radius float64     `koanf:"radius"`

	XMin float64 `koanf:"x_min"`
	YMin float64 `koanf:"y_min"`
	XMax float64 `koanf:"x_max"`
	YMax float64 `koanf:"y_max"`

	ParentZone string  `koanf:"parent_zone"`
	FXMin      float64 `koanf:"fx_min"`
	FYMin      float64 `koanf:"fy_min"`
	FXMax      float64 `koanf:"fx_max"`
	FYMax      float64 `koanf:"fy_max"`
	Exclude    string  `koanf:"exclude"`
}

// CalibrationFile is the raw-to-physical scale.
type CalibrationFile struct {
	From     AnchorFile `koanf:"from"`
	To       AnchorFile `koanf:"to"`
	Distance float64    `koanf:"distance"`
	Units    string     `koanf:"units"`
}

// OrientationFile is rotation, recentring and axis flip.
type OrientationFile struct {
	RotationDeg float64     `koanf:"rotation_deg"`
	Pivot       *AnchorFile `koanf:"pivot"`
	Origin      *AnchorFile `koanf:"origin"`
	FlipY       bool        `koanf:"flip_y"`
	Order       []string    `koanf:"order"`
}

// LoadArena reads a YAML arena definition and validates it.
func LoadArena(_ context.Context, path string) (*arena.Arena, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
	}
	var af ArenaFile
	if err := k.UnmarshalWithConf("", &af, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidArena, path, err)
	}
	return af.Build()
}

// Build converts the file layout into a validated arena.
func (af ArenaFile) Build() (*arena.Arena, error) {
	points := make([]arena.ReferencePoint, len(af.Points))
	for i, p := range af.Points {
		points[i] = arena.ReferencePoint{Name: p.Name, Pos: r2.Vec{X: p.X, Y: p.Y}}
	}
	zones := make([]arena.Zone, len(af.Zones))
	for i, zf := range af.Zones {
		z, err := zf.zone()
		if err != nil {
			return nil, err
		}
		zones[i] = z
	}

	var opts []arena.Option
	if c := af.Calibration; c != nil {
		from, err := c.From.anchor("calibration.from")
		if err != nil {
			return nil, err
		}
		to, err := c.To.anchor("calibration.to")
		if err != nil {
			return nil, err
		}
		opts = append(opts, arena.WithCalibration(arena.Calibration{From: from, To: to, Distance: c.Distance, Units: c.Units}))
	}
	if o := af.Orientation; o != nil {
		orient := arena.Orientation{RotationDeg: o.RotationDeg, FlipY: o.FlipY, Order: o.Order}
		var err error
		if orient.Pivot, err = o.Pivot.optional("orientation.pivot"); err != nil {
			return nil, err
		}
		if orient.Origin, err = o.Origin.optional("orientation.origin"); err != nil {
			return nil, err
		}
		opts = append(opts, arena.WithOrientation(orient))
	}
	return arena.New(af.Name, points, zones, opts...)
}

func (zf ZoneFile) zone() (arena.Zone, error) {
	z := arena.Zone{ID: zf.ID, Name: zf.Name}
	switch zf.Type {
	case "polygon":
		vs := make([]arena.Anchor, len(zf.Vertices))
		for i, v := range zf.Vertices {
			a, err := v.anchor("vertices")
			if err != nil {
				return z, withZone(err, zf.ID)
			}
			vs[i] = a
		}
		z.Def = arena.Polygon{Vertices: vs}
	case "circle":
		if zf.Center == nil {
			return z, &arena.ConfigurationError{ZoneID: zf.ID, Field: "center", Rule: "circle needs a center"}
		}
		c, err := zf.Center.anchor("center")
		if err != nil {
			return z, withZone(err, zf.ID)
		}
		z.Def = arena.Circle{Center: c, Radius: zf.Radius}
	case "rectangle":
		z.Def = arena.Rectangle{XMin: zf.XMin, YMin: zf.YMin, XMax: zf.XMax, YMax: zf.YMax}
	case "proportional":
		z.Def = arena.Proportional{
			Parent:  zf.ParentZone,
			Box:     arena.Fraction{XMin: zf.FXMin, YMin: zf.FYMin, XMax: zf.FXMax, YMax: zf.FYMax},
			Exclude: zf.Exclude,
		}
	default:
		return z, &arena.ConfigurationError{ZoneID: zf.ID, Field: "type", Rule: fmt.Sprintf("unknown zone type %q", zf.Type)}
	}
	return z, nil
}

func (af AnchorFile) anchor(field string) (arena.Anchor, error) {
	switch {
	case af.Point != "" && (af.X != nil || af.Y != nil):
		return arena.Anchor{}, &arena.ConfigurationError{Field: field, Rule: "give either a point name or x/y, not both"}
	case af.Point != "":
		return arena.Ref(af.Point), nil
	case af.X != nil && af.Y != nil:
		return arena.At(*af.X, *af.Y), nil
	default:
		return arena.Anchor{}, &arena.ConfigurationError{Field: field, Rule: "anchor needs a point name or both x and y"}
	}
}

func (af *AnchorFile) optional(field string) (*arena.Anchor, error) {
	if af == nil {
		return nil, nil
	}
	a, err := af.anchor(field)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func withZone(err error, id string) error {
	if ce, ok := err.(*arena.ConfigurationError); ok {
		ce.ZoneID = id
	}
	return err
}
