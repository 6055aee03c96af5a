package arena_test

import (
	"errors"
	"testing"

	"github.com/okian/zonetrack/internal/domain/arena"
	"github.com/okian/zonetrack/internal/domain/zonegraph"
	. "github.com/smartystreets/goconvey/convey"
	"gonum.org/v1/gonum/spatial/r2"
)

func openField() ([]arena.ReferencePoint, []arena.Zone) {
	points := []arena.ReferencePoint{
		{Name: "tl", Pos: r2.Vec{X: 0, Y: 100}},
		{Name: "tr", Pos: r2.Vec{X: 100, Y: 100}},
		{Name: "br", Pos: r2.Vec{X: 100, Y: 0}},
		{Name: "bl", Pos: r2.Vec{X: 0, Y: 0}},
	}
	zones := []arena.Zone{
		{ID: "periphery", Def: arena.Proportional{Parent: "floor", Box: arena.Fraction{XMax: 1, YMax: 1}, Exclude: "center"}},
		{ID: "center", Name: "Center", Def: arena.Proportional{Parent: "floor", Box: arena.Fraction{XMin: 0.25, YMin: 0.25, XMax: 0.75, YMax: 0.75}}},
		{ID: "floor", Def: arena.Polygon{Vertices: []arena.Anchor{arena.Ref("bl"), arena.Ref("br"), arena.Ref("tr"), arena.Ref("tl")}}},
		{ID: "bowl", Def: arena.Circle{Center: arena.At(50, 50), Radius: 5}},
	}
	return points, zones
}

func configError(err error) *arena.ConfigurationError {
	var ce *arena.ConfigurationError
	if errors.As(err, &ce) {
		return ce
	}
	return nil
}

func TestNew(t *testing.T) {
	Convey("Given an open field with derived zones declared before their parent", t, func() {
		points, zones := openField()
		a, err := arena.New("open-field", points, zones)
		So(err, ShouldBeNil)

		Convey("Then the dependency order resolves parents first", func() {
			order := a.DependencyOrder()
			idx := map[string]int{}
			for i, id := range order {
				idx[id] = i
			}
			So(idx["floor"], ShouldBeLessThan, idx["center"])
			So(idx["center"], ShouldBeLessThan, idx["periphery"])
		})

		Convey("Then zones keep declaration order", func() {
			So(a.Zones()[0].ID, ShouldEqual, "periphery")
			z, ok := a.Zone("center")
			So(ok, ShouldBeTrue)
			So(z.DisplayName(), ShouldEqual, "Center")
		})

		Convey("Then anchors locate to raw coordinates", func() {
			p, err := a.Locate(arena.Ref("tr"))
			So(err, ShouldBeNil)
			So(p, ShouldResemble, r2.Vec{X: 100, Y: 100})
			p, _ = a.Locate(arena.At(3, 4))
			So(p, ShouldResemble, r2.Vec{X: 3, Y: 4})
			_, err = a.Locate(arena.Ref("nope"))
			So(errors.Is(err, arena.ErrUnknownPoint), ShouldBeTrue)
		})

		Convey("Then children follow the parent edge only", func() {
			So(a.Children("floor"), ShouldResemble, []string{"periphery", "center"})
			So(a.Children("center"), ShouldBeNil)
			So(a.DependsOn("periphery"), ShouldResemble, []string{"floor", "center"})
		})
	})
}

func TestValidation(t *testing.T) {
	points, _ := openField()
	cases := []struct {
		name  string
		zones []arena.Zone
		zone  string
		field string
	}{
		{"duplicate ids", []arena.Zone{
			{ID: "a", Def: arena.Rectangle{XMax: 1, YMax: 1}},
			{ID: "a", Def: arena.Rectangle{XMax: 1, YMax: 1}},
		}, "a", "id"},
		{"missing point", []arena.Zone{
			{ID: "p", Def: arena.Polygon{Vertices: []arena.Anchor{arena.Ref("bl"), arena.Ref("ghost"), arena.Ref("tl")}}},
		}, "p", "vertices"},
		{"too few vertices", []arena.Zone{
			{ID: "p", Def: arena.Polygon{Vertices: []arena.Anchor{arena.Ref("bl"), arena.Ref("tl")}}},
		}, "p", "vertices"},
		{"zero radius", []arena.Zone{
			{ID: "c", Def: arena.Circle{Center: arena.At(0, 0)}},
		}, "c", "radius"},
		{"inverted x bounds", []arena.Zone{
			{ID: "r", Def: arena.Rectangle{XMin: 10, XMax: 0, YMax: 1}},
		}, "r", "x_min"},
		{"inverted y bounds", []arena.Zone{
			{ID: "r", Def: arena.Rectangle{XMax: 1, YMin: 5, YMax: 5}},
		}, "r", "y_min"},
		{"missing parent", []arena.Zone{
			{ID: "c", Def: arena.Proportional{Parent: "floor", Box: arena.Fraction{XMax: 1, YMax: 1}}},
		}, "c", "parent_zone"},
		{"fraction out of range", []arena.Zone{
			{ID: "r", Def: arena.Rectangle{XMax: 1, YMax: 1}},
			{ID: "c", Def: arena.Proportional{Parent: "r", Box: arena.Fraction{XMax: 1.5, YMax: 1}}},
		}, "c", "fx_max"},
		{"self exclusion", []arena.Zone{
			{ID: "r", Def: arena.Rectangle{XMax: 1, YMax: 1}},
			{ID: "c", Def: arena.Proportional{Parent: "r", Box: arena.Fraction{XMax: 1, YMax: 1}, Exclude: "c"}},
		}, "c", "exclude"},
		{"reserved id", []arena.Zone{
			{ID: "outside", Def: arena.Rectangle{XMax: 1, YMax: 1}},
		}, "outside", "id"},
		{"missing definition", []arena.Zone{{ID: "x"}}, "x", "type"},
	}

	Convey("Given arena definitions that each break one rule", t, func() {
		for _, tc := range cases {
			Convey("When the arena has "+tc.name, func() {
				_, err := arena.New("bad", points, tc.zones)

				Convey("Then a ConfigurationError names the zone and field", func() {
					So(errors.Is(err, arena.ErrConfiguration), ShouldBeTrue)
					ce := configError(err)
					So(ce, ShouldNotBeNil)
					So(ce.ZoneID, ShouldEqual, tc.zone)
					So(ce.Field, ShouldEqual, tc.field)
				})
			})
		}
	})

	Convey("Given A's parent is B and B's parent is A", t, func() {
		zones := []arena.Zone{
			{ID: "A", Def: arena.Proportional{Parent: "B", Box: arena.Fraction{XMax: 1, YMax: 1}}},
			{ID: "B", Def: arena.Proportional{Parent: "A", Box: arena.Fraction{XMax: 1, YMax: 1}}},
		}
		_, err := arena.New("cyclic", nil, zones)

		Convey("Then construction fails with a ConfigurationError naming the cycle", func() {
			So(errors.Is(err, arena.ErrConfiguration), ShouldBeTrue)
			var cyc *zonegraph.CycleError
			So(errors.As(err, &cyc), ShouldBeTrue)
			So(cyc.Cycles[0], ShouldResemble, []string{"A", "B"})
			So(configError(err).ZoneID, ShouldEqual, "A")
			So(err.Error(), ShouldContainSubstring, "A -> B -> A")
		})
	})

	Convey("Given duplicate reference point names", t, func() {
		_, err := arena.New("pts", []arena.ReferencePoint{{Name: "a"}, {Name: "a"}}, nil)
		So(errors.Is(err, arena.ErrConfiguration), ShouldBeTrue)
	})

	Convey("Given calibration with a zero distance", t, func() {
		_, err := arena.New("cal", points, nil, arena.WithCalibration(arena.Calibration{
			From: arena.Ref("bl"), To: arena.Ref("br"),
		}))
		So(configError(err).Field, ShouldEqual, "calibration.distance")
	})

	Convey("Given an orientation pivot on an unknown point", t, func() {
		pivot := arena.Ref("ghost")
		_, err := arena.New("rot", points, nil, arena.WithOrientation(arena.Orientation{RotationDeg: 90, Pivot: &pivot}))
		So(configError(err).Field, ShouldEqual, "orientation.pivot")
	})
}
