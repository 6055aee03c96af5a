package analysis_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/zonetrack/internal/domain/analysis"
	"github.com/okian/zonetrack/internal/domain/arena"
	"github.com/okian/zonetrack/internal/domain/model"
	"github.com/okian/zonetrack/internal/domain/occupancy"
	"github.com/okian/zonetrack/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
	"gonum.org/v1/gonum/spatial/r2"
)

// openField is a 500x500 px floor calibrated to 50 cm, split into a centre
// and a periphery.
func openField() *arena.Arena {
	a, err := arena.New("open-field",
		[]arena.ReferencePoint{
			{Name: "bl", Pos: r2.Vec{X: 0, Y: 0}},
			{Name: "br", Pos: r2.Vec{X: 500, Y: 0}},
			{Name: "tr", Pos: r2.Vec{X: 500, Y: 500}},
			{Name: "tl", Pos: r2.Vec{X: 0, Y: 500}},
		},
		[]arena.Zone{
			{ID: "floor", Name: "Floor", Def: arena.Polygon{Vertices: []arena.Anchor{arena.Ref("bl"), arena.Ref("br"), arena.Ref("tr"), arena.Ref("tl")}}},
			{ID: "center", Name: "Center", Def: arena.Proportional{Parent: "floor", Box: arena.Fraction{XMin: 0.25, YMin: 0.25, XMax: 0.75, YMax: 0.75}}},
			{ID: "periphery", Def: arena.Proportional{Parent: "floor", Box: arena.Fraction{XMax: 1, YMax: 1}, Exclude: "center"}},
		},
		arena.WithCalibration(arena.Calibration{From: arena.Ref("bl"), To: arena.Ref("br"), Distance: 50, Units: "cm"}),
	)
	So(err, ShouldBeNil)
	return a
}

func trial(positions ...model.Position) model.Trial {
	t := model.Trial{ID: "t-1", Subject: "mouse-7", FrameRate: 25}
	for i, p := range positions {
		t.Samples = append(t.Samples, model.Sample{Frame: i, Pos: p, Likelihood: 1})
	}
	return t
}

func TestEngine(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	Convey("Given an engine over a calibrated open field", t, func() {
		e, err := analysis.New(openField(), analysis.WithClock(func() time.Time { return fixed }))
		So(err, ShouldBeNil)

		Convey("Then the default primary zones are the leaves", func() {
			So(e.Primary(), ShouldResemble, []string{"center", "periphery"})
		})

		Convey("Then zones are described in physical units", func() {
			zs := e.Zones()
			So(zs, ShouldHaveLength, 3)
			So(zs[1].ID, ShouldEqual, "center")
			So(zs[1].Bounds[0], ShouldAlmostEqual, 12.5, 1e-9)
			So(zs[1].Bounds[2], ShouldAlmostEqual, 37.5, 1e-9)
			So(zs[2].Shape, ShouldEqual, "difference")
			So(zs[2].DependsOn, ShouldResemble, []string{"floor", "center"})
			So(zs[0].Primary, ShouldBeFalse)
		})

		Convey("When a raw trajectory moves from the border to the centre and back", func() {
			res, err := e.Analyze(context.Background(), trial(
				model.At(10, 10), model.At(20, 20), model.At(250, 250), model.At(260, 250),
				model.Missing(), model.At(255, 250), model.At(10, 250),
			))
			So(err, ShouldBeNil)
			r := res.Report

			Convey("Then the centre is entered twice, once after the missing frame", func() {
				c, ok := r.Zone("center")
				So(ok, ShouldBeTrue)
				So(c.Name, ShouldEqual, "Center")
				So(c.Entries, ShouldEqual, 2)
				So(c.Exits, ShouldEqual, 2)
				s, _ := c.Latency.Seconds()
				So(s, ShouldAlmostEqual, 0.08, 1e-12)
				So(c.InsideFrames, ShouldEqual, 3)
			})

			Convey("Then the floor holds every valid frame", func() {
				f, _ := r.Zone("floor")
				So(f.InsideFrames, ShouldEqual, 6)
				So(f.Percent, ShouldEqual, 100)
				So(f.Dwells[0].Initial, ShouldBeTrue)
			})

			Convey("Then the missing frame shows in the transitions", func() {
				So(r.States, ShouldResemble, []string{"center", "periphery", "outside", "undefined"})
				So(r.Transitions, ShouldContain, rowOf("center", "undefined", 1))
				So(r.Transitions, ShouldContain, rowOf("undefined", "center", 1))
				So(r.Transitions, ShouldContain, rowOf("periphery", "center", 1))
				So(r.Transitions, ShouldContain, rowOf("center", "periphery", 1))
			})

			Convey("Then the report is stamped and carries the table", func() {
				So(r.AnalyzedAt.Equal(fixed), ShouldBeTrue)
				So(r.Frames, ShouldEqual, 7)
				So(r.ValidFrames, ShouldEqual, 6)
				So(res.Table.Len(), ShouldEqual, 7)
			})
		})

		Convey("When classifying samples for rendering", func() {
			rows, err := e.Classify(context.Background(), trial(model.At(250, 250), model.Missing(), model.At(900, 900)).Samples)
			So(err, ShouldBeNil)

			Convey("Then overlapping zones are all listed", func() {
				So(rows[0].Inside, ShouldResemble, []string{"floor", "center"})
				So(rows[1].Valid, ShouldBeFalse)
				So(rows[2].Inside, ShouldResemble, []string{})
			})
		})

		Convey("When the trial has no samples", func() {
			res, err := e.Analyze(context.Background(), trial())

			Convey("Then it yields an empty report, not an error", func() {
				So(err, ShouldBeNil)
				c, _ := res.Report.Zone("center")
				So(c.Latency.IsNever(), ShouldBeTrue)
			})
		})

		Convey("When the frame rate is missing", func() {
			tr := trial(model.At(1, 1))
			tr.FrameRate = 0
			_, err := e.Analyze(context.Background(), tr)
			So(errors.Is(err, analysis.ErrInvalidTrial), ShouldBeTrue)
		})

		Convey("When frames are out of order", func() {
			tr := trial(model.At(1, 1), model.At(2, 2))
			tr.Samples[1].Frame = 0
			_, err := e.Analyze(context.Background(), tr)
			So(errors.Is(err, analysis.ErrInvalidTrial), ShouldBeTrue)
		})

		Convey("When the context is already cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := e.Analyze(ctx, trial(model.At(1, 1)))
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})

	Convey("Given a likelihood threshold", t, func() {
		e, err := analysis.New(openField(), analysis.WithLikelihoodThreshold(0.6))
		So(err, ShouldBeNil)
		tr := trial(model.At(250, 250), model.At(250, 250))
		tr.Samples[1].Likelihood = 0.2

		Convey("Then low-confidence samples become undefined", func() {
			res, err := e.Analyze(context.Background(), tr)
			So(err, ShouldBeNil)
			So(res.Report.ValidFrames, ShouldEqual, 1)
			So(tr.Samples[1].Pos.Valid(), ShouldBeTrue)
		})
	})

	Convey("Given bins and a sample limit", t, func() {
		e, err := analysis.New(openField(), analysis.WithBinSeconds(0.1), analysis.WithMaxSamples(5))
		So(err, ShouldBeNil)

		Convey("Then reports carry one row set per bin", func() {
			res, err := e.Analyze(context.Background(), trial(model.At(1, 1), model.At(1, 1), model.At(1, 1), model.At(1, 1), model.At(1, 1)))
			So(err, ShouldBeNil)
			So(res.Report.Bins, ShouldHaveLength, 2)
		})

		Convey("Then longer trials are rejected", func() {
			positions := make([]model.Position, 6)
			_, err := e.Analyze(context.Background(), trial(positions...))
			So(errors.Is(err, analysis.ErrTooManySamples), ShouldBeTrue)
		})
	})

	Convey("Given a trial checked before it is queued", t, func() {
		e, err := analysis.New(openField(), analysis.WithMaxSamples(3))
		So(err, ShouldBeNil)

		Convey("Then a well-formed trial passes", func() {
			So(e.Validate(trial(model.At(1, 1), model.Missing())), ShouldBeNil)
		})

		Convey("Then a zero frame rate is invalid", func() {
			tr := trial(model.At(1, 1))
			tr.FrameRate = 0
			So(errors.Is(e.Validate(tr), analysis.ErrInvalidTrial), ShouldBeTrue)
		})

		Convey("Then repeated frames are invalid", func() {
			tr := trial(model.At(1, 1), model.At(2, 2))
			tr.Samples[1].Frame = 0
			So(errors.Is(e.Validate(tr), analysis.ErrInvalidTrial), ShouldBeTrue)
		})

		Convey("Then the sample limit applies", func() {
			positions := make([]model.Position, 4)
			So(errors.Is(e.Validate(trial(positions...)), analysis.ErrTooManySamples), ShouldBeTrue)
		})

		Convey("Then frame numbers beyond the bound are invalid", func() {
			tr := trial(model.At(1, 1), model.At(1, 1), model.At(300, 300))
			tr.Samples[0].Frame = -5e18
			tr.Samples[2].Frame = 5e18
			err := e.Validate(tr)
			So(errors.Is(err, analysis.ErrInvalidTrial), ShouldBeTrue)
			So(errors.Is(err, occupancy.ErrFrameRange), ShouldBeTrue)

			_, err = e.Analyze(context.Background(), tr)
			So(errors.Is(err, analysis.ErrInvalidTrial), ShouldBeTrue)
		})

		Convey("Then frames at the bound are accepted", func() {
			tr := trial(model.At(1, 1), model.At(1, 1))
			tr.Samples[0].Frame = -model.MaxFrame
			tr.Samples[1].Frame = model.MaxFrame
			So(e.Validate(tr), ShouldBeNil)
		})
	})

	Convey("Given bins and two samples far apart", t, func() {
		e, err := analysis.New(openField(), analysis.WithBinSeconds(1))
		So(err, ShouldBeNil)
		tr := trial(model.At(100, 100), model.At(250, 250))
		tr.Samples[1].Frame = 25_000_000

		Convey("Then only windows holding samples become bins", func() {
			res, err := e.Analyze(context.Background(), tr)
			So(err, ShouldBeNil)
			So(res.Report.Bins, ShouldHaveLength, 2)
			So(res.Report.Bins[1].Index, ShouldEqual, 1_000_000)
			So(res.Report.Duration, ShouldBeGreaterThan, 0)
			center, _ := res.Report.Zone("center")
			secs, reached := center.Latency.Seconds()
			So(reached, ShouldBeTrue)
			So(secs, ShouldAlmostEqual, 1_000_000.0)
		})
	})

	Convey("Given an unknown primary zone", t, func() {
		_, err := analysis.New(openField(), analysis.WithPrimaryZones("ghost"))
		So(errors.Is(err, arena.ErrConfiguration), ShouldBeTrue)
	})

	Convey("Given a primary zone listed twice", t, func() {
		_, err := analysis.New(openField(), analysis.WithPrimaryZones("center", "periphery", "center"))

		Convey("Then it is rejected on primary_zones", func() {
			var cerr *arena.ConfigurationError
			So(errors.As(err, &cerr), ShouldBeTrue)
			So(cerr.Field, ShouldEqual, "primary_zones")
			So(cerr.ZoneID, ShouldEqual, "center")
		})
	})
}

func rowOf(from, to string, n int) types.TransitionRow {
	return types.TransitionRow{From: from, To: to, Count: n}
}
