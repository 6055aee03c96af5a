package resolve

import (
	"errors"

	"github.com/okian/zonetrack/internal/domain/arena"
	"github.com/okian/zonetrack/internal/domain/transform"
	"gonum.org/v1/gonum/spatial/r2"
)

// Pipeline builds the raw-to-physical transform declared by the arena's
// calibration and orientation. An arena with neither yields the identity.
func Pipeline(a *arena.Arena) (*transform.Pipeline, error) {
	var spec transform.Spec
	if c, ok := a.Calibration(); ok {
		from, err := a.Locate(c.From)
		if err != nil {
			return nil, calibrationErr("calibration.from", err)
		}
		to, err := a.Locate(c.To)
		if err != nil {
			return nil, calibrationErr("calibration.to", err)
		}
		k, err := transform.ScaleFromCalibration(from, to, c.Distance)
		if err != nil {
			return nil, err
		}
		spec.Scale = k
	}
	if o, ok := a.Orientation(); ok {
		order, err := transform.ParseOrder(o.Order)
		if err != nil {
			return nil, &arena.ConfigurationError{Field: "orientation.order", Rule: err.Error(), Err: err}
		}
		spec.Order = order
		spec.RotationDeg = o.RotationDeg
		spec.FlipY = o.FlipY
		if spec.Pivot, err = locateOpt(a, o.Pivot, "orientation.pivot"); err != nil {
			return nil, err
		}
		if spec.Origin, err = locateOpt(a, o.Origin, "orientation.origin"); err != nil {
			return nil, err
		}
	}
	p, err := transform.Build(spec)
	if errors.Is(err, transform.ErrInvalidOrder) {
		return nil, &arena.ConfigurationError{Field: "orientation.order", Rule: err.Error(), Err: err}
	}
	return p, err
}

func locateOpt(a *arena.Arena, an *arena.Anchor, field string) (*r2.Vec, error) {
	if an == nil {
		return nil, nil
	}
	v, err := a.Locate(*an)
	if err != nil {
		return nil, calibrationErr(field, err)
	}
	return &v, nil
}

func calibrationErr(field string, err error) error {
	if errors.Is(err, arena.ErrConfiguration) {
		return err
	}
	return &arena.ConfigurationError{Field: field, Rule: err.Error(), Err: err}
}

// Arena resolves a with the transform it declares.
func Arena(a *arena.Arena) (*Zones, error) {
	p, err := Pipeline(a)
	if err != nil {
		return nil, err
	}
	return Resolve(a, p)
}
